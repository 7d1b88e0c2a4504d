package raster

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	for y := range Height {
		for x := range Width {
			img.Set(x, y, c)
		}
	}
	return img
}

func noiseImage(seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, Width, Height))
	rng.Read(img.Pix)
	return img
}

func TestEncodeRaster_Size(t *testing.T) {
	raw, err := EncodeRaster(noiseImage(1), DefaultFiller)
	require.NoError(t, err)
	assert.Len(t, raw, 300*800+64)
	assert.Equal(t, RawSize, len(raw))
}

func TestEncodeRaster_Deterministic(t *testing.T) {
	img := noiseImage(42)
	a, err := EncodeRaster(img, DefaultFiller)
	require.NoError(t, err)
	b, err := EncodeRaster(img, DefaultFiller)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a, b), "encoding the same pixels twice differs")
}

func TestEncodeRaster_WrongSize(t *testing.T) {
	sizes := []image.Rectangle{
		image.Rect(0, 0, 800, 600),
		image.Rect(0, 0, 599, 800),
		image.Rect(0, 0, 600, 801),
		image.Rect(0, 0, 0, 0),
	}
	for _, r := range sizes {
		raw, err := EncodeRaster(image.NewRGBA(r), DefaultFiller)
		assert.Nil(t, raw, "partial output for %v", r)

		var verr *ValidationError
		if assert.True(t, errors.As(err, &verr), "error for %v = %v", r, err) {
			assert.Equal(t, r.Dx(), verr.Width)
			assert.Equal(t, r.Dy(), verr.Height)
		}
	}
}

func TestEncodeRaster_OffsetBounds(t *testing.T) {
	// A sub-image with non-zero Min must encode like the same pixels at origin.
	big := image.NewRGBA(image.Rect(0, 0, Width+10, Height+10))
	for i := range big.Pix {
		big.Pix[i] = byte(i * 7)
	}
	sub := big.SubImage(image.Rect(10, 10, Width+10, Height+10))
	origin := image.NewRGBA(image.Rect(0, 0, Width, Height))
	for y := range Height {
		for x := range Width {
			origin.Set(x, y, big.At(x+10, y+10))
		}
	}

	a, err := EncodeRaster(sub, DefaultFiller)
	require.NoError(t, err)
	b, err := EncodeRaster(origin, DefaultFiller)
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

func TestEncodeRaster_PackingOrder(t *testing.T) {
	img := solidImage(color.White)
	img.Set(0, 0, color.Black) // first pixel of row 0 -> high nibble
	img.Set(3, 1, color.Black) // second pixel of byte 1 in row 1 -> low nibble

	raw, err := EncodeRaster(img, DefaultFiller)
	require.NoError(t, err)

	assert.Equal(t, byte(0x0E), raw[0], "row 0 byte 0")
	assert.Equal(t, byte(0xEE), raw[1], "row 0 byte 1")
	assert.Equal(t, byte(0xE0), raw[RowBytes+1], "row 1 byte 1")
	assert.Equal(t, byte(0xEE), raw[PixelBytes-1], "last pixel byte")
}

func TestEncodeRaster_Trailer(t *testing.T) {
	for _, filler := range []byte{DefaultFiller, LegacyFiller} {
		raw, err := EncodeRaster(solidImage(color.Black), filler)
		require.NoError(t, err)
		for i := PixelBytes; i < RawSize; i++ {
			if raw[i] != filler {
				t.Fatalf("trailer[%d] = 0x%02X, want 0x%02X", i-PixelBytes, raw[i], filler)
			}
		}
		assert.Equal(t, byte(0x00), raw[PixelBytes-1], "black pixels")
	}
}

func TestEncodeRaster_ImageTypesAgree(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, Width, Height))
	rgba := image.NewRGBA(gray.Rect)
	paletted := image.NewPaletted(gray.Rect, color.Palette{color.Black, color.White, color.Gray{0x80}})
	for y := range Height {
		for x := range Width {
			v := uint8((x + y) % 3)
			paletted.SetColorIndex(x, y, v)
			c := paletted.Palette[v]
			gray.Set(x, y, c)
			rgba.Set(x, y, c)
		}
	}

	want, err := EncodeRaster(rgba, DefaultFiller)
	require.NoError(t, err)
	for name, img := range map[string]image.Image{"gray": gray, "paletted": paletted} {
		got, err := EncodeRaster(img, DefaultFiller)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestLuminance(t *testing.T) {
	tests := []struct {
		r, g, b uint8
		want    uint8
	}{
		{0, 0, 0, 0},
		{255, 255, 255, 255},
		{255, 0, 0, 54},  // 54.213
		{0, 255, 0, 182}, // 182.376
		{0, 0, 255, 18},  // 18.411
		{10, 10, 10, 10},
		{1, 1, 0, 1}, // 0.9278 rounds up
	}
	for _, tt := range tests {
		if got := Luminance(tt.r, tt.g, tt.b); got != tt.want {
			t.Errorf("Luminance(%d,%d,%d) = %d, want %d", tt.r, tt.g, tt.b, got, tt.want)
		}
	}
}

func TestNibble(t *testing.T) {
	tests := []struct {
		l    uint8
		want uint8
	}{
		{0x00, 0},
		{0x1F, 0},
		{0x20, 2},
		{0x7F, 6},
		{0x80, 8},
		{0xE0, 14},
		{0xFF, 14},
	}
	for _, tt := range tests {
		if got := Nibble(tt.l); got != tt.want {
			t.Errorf("Nibble(0x%02X) = %d, want %d", tt.l, got, tt.want)
		}
	}
}

func TestNibble_Monotonic(t *testing.T) {
	for l1 := 0; l1 < 256; l1++ {
		for l2 := l1 + 1; l2 < 256; l2++ {
			n1, n2 := Nibble(uint8(l1)), Nibble(uint8(l2))
			if l1&0xE0 < l2&0xE0 && n1 >= n2 {
				t.Fatalf("Nibble(%d)=%d not below Nibble(%d)=%d", l1, n1, l2, n2)
			}
			if n1 > n2 {
				t.Fatalf("Nibble decreasing between %d and %d", l1, l2)
			}
		}
	}
}

func TestLevel(t *testing.T) {
	assert.Equal(t, uint8(0), Level(0))
	assert.Equal(t, uint8(0xFF), Level(14))
	prev := Level(0)
	for n := uint8(2); n <= 14; n += 2 {
		l := Level(n)
		assert.Greater(t, l, prev, "Level(%d)", n)
		prev = l
	}
}

func TestDecodeRaster(t *testing.T) {
	img := solidImage(color.White)
	img.Set(0, 0, color.Black)
	raw, err := EncodeRaster(img, DefaultFiller)
	require.NoError(t, err)

	gray, err := DecodeRaster(raw)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), gray.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(0xFF), gray.GrayAt(1, 0).Y)
	assert.Equal(t, uint8(0xFF), gray.GrayAt(Width-1, Height-1).Y)

	_, err = DecodeRaster(raw[:100])
	assert.Error(t, err)
}
