package imageprep_test

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/guideforge/engine/planner/imageprep"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 255), G: uint8(y % 255), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPrepareForwardsTinyInputVerbatim(t *testing.T) {
	tiny := []byte("not really an image but small")
	out, mediaType, err := imageprep.Prepare(tiny, imageprep.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, tiny, out)
	require.Equal(t, "application/octet-stream", mediaType)
}

func TestPrepareResizesAndReencodesLargeImage(t *testing.T) {
	raw := encodePNG(t, 1600, 1200)
	out, mediaType, err := imageprep.Prepare(raw, imageprep.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", mediaType)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)
	require.LessOrEqual(t, cfg.Width, 800)
	require.LessOrEqual(t, cfg.Height, 600)
}

func TestDecodeDataURLOrBase64(t *testing.T) {
	raw := encodePNG(t, 10, 10)
	encoded := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)
	decoded, err := imageprep.DecodeDataURLOrBase64(encoded)
	require.NoError(t, err)
	require.Equal(t, raw, decoded)
}
