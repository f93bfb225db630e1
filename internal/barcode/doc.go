// Package barcode locates and decodes a single QR code in a pixel buffer.
//
// Decoding is delegated to a pluggable Backend; the default backend wraps
// gozxing's QR reader. A missing code is reported as a nil *Result with a nil
// error, never as an error.
package barcode
