package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// Pixels is a decoded image as a tightly packed, non-premultiplied 8-bit RGBA buffer.
type Pixels struct {
	Width  int
	Height int
	Stride int
	Data   []byte
	Format Format
}

// Image exposes the buffer as an *image.NRGBA without copying.
func (p *Pixels) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    p.Data,
		Stride: p.Stride,
		Rect:   image.Rect(0, 0, p.Width, p.Height),
	}
}

// FallbackPolicy is the ordered list of formats tried after the declared one.
type FallbackPolicy []Format

// DefaultFallbackPolicy tries PNG, then JPEG.
func DefaultFallbackPolicy() FallbackPolicy { return FallbackPolicy{FormatPNG, FormatJPEG} }

// ParseFallbackPolicy builds a policy from format names, rejecting unknown names.
func ParseFallbackPolicy(names []string) (FallbackPolicy, error) {
	policy := make(FallbackPolicy, 0, len(names))
	for _, n := range names {
		f, ok := ParseFormat(n)
		if !ok {
			return nil, fmt.Errorf("unsupported fallback format %q", n)
		}
		policy = append(policy, f)
	}
	return policy, nil
}

type decodeFunc func(io.Reader) (image.Image, error)

var decoders = map[Format]decodeFunc{
	FormatJPEG: jpeg.Decode,
	FormatPNG:  png.Decode,
	FormatGIF:  gif.Decode,
	FormatBMP:  bmp.Decode,
	FormatTIFF: tiff.Decode,
	FormatWebP: webp.Decode,
}

// Decoder decodes container bytes under a declared format with an ordered fallback.
type Decoder struct {
	Fallback FallbackPolicy
}

// NewDecoder returns a decoder using the given fallback policy.
// A nil policy disables fallback entirely.
func NewDecoder(policy FallbackPolicy) *Decoder {
	return &Decoder{Fallback: policy}
}

// Candidates returns the ordered, de-duplicated list of formats that Decode
// will attempt for data declared as the given format.
func (d *Decoder) Candidates(data []byte, declared Format) []Format {
	first := declared
	if first == FormatUnknown {
		first = Sniff(data)
	}
	out := make([]Format, 0, len(d.Fallback)+1)
	seen := make(map[Format]bool, len(d.Fallback)+1)
	add := func(f Format) {
		if f == FormatUnknown || seen[f] {
			return
		}
		if _, ok := decoders[f]; !ok {
			return
		}
		seen[f] = true
		out = append(out, f)
	}
	add(first)
	for _, f := range d.Fallback {
		add(f)
	}
	return out
}

// Decode decodes data, preferring the declared format and then the fallback policy.
func (d *Decoder) Decode(data []byte, declared Format) (*Pixels, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Kind: KindCorrupt, Err: ErrEmptyInput}
	}

	candidates := d.Candidates(data, declared)
	var errs []error
	for _, f := range candidates {
		img, err := decoders[f](bytes.NewReader(data))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f, err))
			continue
		}
		return toPixels(img, f), nil
	}

	kind := KindUnknownFormat
	if declared != FormatUnknown || Sniff(data) != FormatUnknown {
		kind = KindCorrupt
	}
	return nil, &DecodeError{Kind: kind, Tried: candidates, Err: errors.Join(errs...)}
}

func toPixels(img image.Image, f Format) *Pixels {
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	return &Pixels{
		Width:  b.Dx(),
		Height: b.Dy(),
		Stride: nrgba.Stride,
		Data:   nrgba.Pix,
		Format: f,
	}
}
