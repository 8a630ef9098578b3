// Package imageprep prepares a screenshot for attachment to a planning call:
// decode, bound to a maximum resolution, and re-encode as JPEG with
// adaptive quality, using github.com/disintegration/imaging.
package imageprep

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // decode PNG screenshots produced by the browser driver
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // decode WebP screenshots from CDP captures that request that format
)

// Options bounds the output image.
type Options struct {
	MaxWidth  int
	MaxHeight int
	Quality   int // base JPEG quality before size-based adaptation
}

// DefaultOptions returns the default bound of 800x600.
func DefaultOptions() Options {
	return Options{MaxWidth: 800, MaxHeight: 600, Quality: 85}
}

// verbatimThreshold is the size below which an input is forwarded unchanged
// rather than being decoded and re-encoded.
const verbatimThreshold = 1024

// Prepare takes a raw image (PNG or JPEG bytes, a data URL, or base64 text)
// and returns JPEG-encoded bytes bounded by opts, plus the media type to
// report to the model. Inputs under 1KB are forwarded verbatim.
func Prepare(raw []byte, opts Options) ([]byte, string, error) {
	if len(raw) == 0 {
		return nil, "", fmt.Errorf("imageprep: empty input")
	}
	if len(raw) < verbatimThreshold {
		return raw, sniffMediaType(raw), nil
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("imageprep: decode: %w", err)
	}

	resized := imaging.Fit(img, opts.MaxWidth, opts.MaxHeight, imaging.Lanczos)

	quality := adaptiveQuality(len(raw), opts.Quality)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: quality}); err != nil {
		return nil, "", fmt.Errorf("imageprep: encode: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

// DecodeDataURLOrBase64 accepts a data URL ("data:image/png;base64,...."), a
// raw base64 string, or already-decoded bytes, and returns decoded bytes.
func DecodeDataURLOrBase64(input string) ([]byte, error) {
	s := strings.TrimSpace(input)
	if strings.HasPrefix(s, "data:") {
		idx := strings.Index(s, ",")
		if idx < 0 {
			return nil, fmt.Errorf("imageprep: malformed data URL")
		}
		s = s[idx+1:]
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("imageprep: base64 decode: %w", err)
	}
	return decoded, nil
}

// adaptiveQuality lowers JPEG quality for larger originals to keep encoded
// payloads small.
func adaptiveQuality(originalSize, base int) int {
	switch {
	case originalSize > 4*1024*1024:
		return clampQuality(base - 25)
	case originalSize > 1024*1024:
		return clampQuality(base - 15)
	case originalSize > 256*1024:
		return clampQuality(base - 5)
	default:
		return clampQuality(base)
	}
}

func clampQuality(q int) int {
	if q < 40 {
		return 40
	}
	if q > 95 {
		return 95
	}
	return q
}

func sniffMediaType(raw []byte) string {
	if len(raw) >= 8 && bytes.Equal(raw[:8], []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}) {
		return "image/png"
	}
	if len(raw) >= 2 && raw[0] == 0xff && raw[1] == 0xd8 {
		return "image/jpeg"
	}
	return "application/octet-stream"
}
