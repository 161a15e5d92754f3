package migrate

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestThumbnail_Scales(t *testing.T) {
	src := testPNG(t, 120, 90)

	tests := []struct {
		divisor int
		wantW   int
		wantH   int
	}{
		{1, 120, 90},
		{3, 40, 30},
		{4, 30, 22},
		{500, 1, 1},
	}

	for _, tt := range tests {
		thumb, err := Thumbnail(src, tt.divisor)
		require.NoError(t, err)

		cfg, err := jpeg.DecodeConfig(bytes.NewReader(thumb))
		require.NoError(t, err)
		assert.Equal(t, tt.wantW, cfg.Width, "divisor %d", tt.divisor)
		assert.Equal(t, tt.wantH, cfg.Height, "divisor %d", tt.divisor)
	}
}

func TestThumbnail_RejectsBadInput(t *testing.T) {
	_, err := Thumbnail(nil, 4)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = Thumbnail([]byte("not an image"), 4)
	assert.Error(t, err)

	_, err = Thumbnail(testPNG(t, 4, 4), 0)
	assert.Error(t, err)
}
