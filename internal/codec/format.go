// Package codec turns container bytes (JPEG, PNG, ...) into a normalized
// 8-bit RGBA pixel buffer.
package codec

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Format is a supported image container format.
type Format int

const (
	FormatUnknown Format = iota
	FormatJPEG
	FormatPNG
	FormatGIF
	FormatBMP
	FormatTIFF
	FormatWebP
)

// SupportedFormats lists every format the decoder can attempt, in declaration order.
var SupportedFormats = []Format{FormatJPEG, FormatPNG, FormatGIF, FormatBMP, FormatTIFF, FormatWebP}

// String returns the canonical lower-case name of the format.
func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	case FormatGIF:
		return "gif"
	case FormatBMP:
		return "bmp"
	case FormatTIFF:
		return "tiff"
	case FormatWebP:
		return "webp"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// ParseFormat maps a name or extension ("jpg", ".PNG", "image/webp") to a Format.
func ParseFormat(s string) (Format, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, ".")
	s = strings.TrimPrefix(s, "image/")
	switch s {
	case "jpg", "jpeg", "jpe", "jfif":
		return FormatJPEG, true
	case "png":
		return FormatPNG, true
	case "gif":
		return FormatGIF, true
	case "bmp":
		return FormatBMP, true
	case "tif", "tiff":
		return FormatTIFF, true
	case "webp":
		return FormatWebP, true
	default:
		return FormatUnknown, false
	}
}

// FormatFromPath infers the format from a file name or URI extension.
func FormatFromPath(path string) Format {
	// URIs may carry a query string after the extension.
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	f, _ := ParseFormat(filepath.Ext(path))
	return f
}

// IsSupportedPath reports whether the path has a supported image extension.
func IsSupportedPath(path string) bool {
	return FormatFromPath(path) != FormatUnknown
}

var signatures = []struct {
	format Format
	match  func([]byte) bool
}{
	{FormatJPEG, func(b []byte) bool { return bytes.HasPrefix(b, []byte{0xFF, 0xD8, 0xFF}) }},
	{FormatPNG, func(b []byte) bool { return bytes.HasPrefix(b, []byte("\x89PNG\r\n\x1a\n")) }},
	{FormatGIF, func(b []byte) bool {
		return bytes.HasPrefix(b, []byte("GIF87a")) || bytes.HasPrefix(b, []byte("GIF89a"))
	}},
	{FormatBMP, func(b []byte) bool { return bytes.HasPrefix(b, []byte("BM")) }},
	{FormatTIFF, func(b []byte) bool {
		return bytes.HasPrefix(b, []byte("II*\x00")) || bytes.HasPrefix(b, []byte("MM\x00*"))
	}},
	{FormatWebP, func(b []byte) bool {
		return len(b) >= 12 && bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WEBP"))
	}},
}

// Sniff identifies the container format from its magic bytes.
func Sniff(data []byte) Format {
	for _, s := range signatures {
		if s.match(data) {
			return s.format
		}
	}
	return FormatUnknown
}
