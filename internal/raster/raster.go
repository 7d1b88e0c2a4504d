package raster

import (
	"fmt"
	"image"
	"image/color"
)

// Device display geometry.
const (
	Width  = 600
	Height = 800

	RowBytes    = Width / 2          // two pixels per byte
	PixelBytes  = RowBytes * Height  // 240000
	TrailerSize = 64                 // sentinel bytes after the pixel data
	RawSize     = PixelBytes + TrailerSize
)

// Trailer filler bytes. Two encoders in the field disagree on the value;
// DefaultFiller is the one used by the page-streaming upload path.
const (
	DefaultFiller byte = 0x00
	LegacyFiller  byte = 0x81
)

// Raw is an uncompressed device raster: packed 4-bit pixels plus trailer.
type Raw []byte

// ValidationError reports a bitmap that cannot be encoded for the device.
type ValidationError struct {
	Width  int
	Height int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("raster: image must be %dx%d, got %dx%d", Width, Height, e.Width, e.Height)
}

// Luminance returns the Rec. 709 luma of an 8-bit RGB triple, rounded half up.
func Luminance(r, g, b uint8) uint8 {
	return uint8((2126*uint32(r) + 7152*uint32(g) + 722*uint32(b) + 5000) / 10000)
}

// Nibble quantizes a luminance value to the device's 4-bit gray scale.
// Only the top three bits survive, so the result is one of 0, 2, ..., 14.
func Nibble(l uint8) uint8 {
	return (l & 0xE0) >> 4
}

// Level maps a 4-bit gray value back to an 8-bit gray level for previews.
func Level(nibble uint8) uint8 {
	n := nibble & 0x0F
	if n >= 14 {
		return 0xFF
	}
	return uint8(uint32(n) * 0xFF / 14)
}

// EncodeRaster packs a 600x800 image into the device raster format.
func EncodeRaster(img image.Image, filler byte) (Raw, error) {
	b := img.Bounds()
	if b.Dx() != Width || b.Dy() != Height {
		return nil, &ValidationError{Width: b.Dx(), Height: b.Dy()}
	}

	raw := make(Raw, RawSize)
	switch src := img.(type) {
	case *image.RGBA:
		packRows(raw, func(x, y int) uint8 {
			i := src.PixOffset(b.Min.X+x, b.Min.Y+y)
			return Nibble(Luminance(src.Pix[i], src.Pix[i+1], src.Pix[i+2]))
		})
	case *image.NRGBA:
		packRows(raw, func(x, y int) uint8 {
			i := src.PixOffset(b.Min.X+x, b.Min.Y+y)
			return Nibble(Luminance(src.Pix[i], src.Pix[i+1], src.Pix[i+2]))
		})
	case *image.Gray:
		packRows(raw, func(x, y int) uint8 {
			return Nibble(src.Pix[src.PixOffset(b.Min.X+x, b.Min.Y+y)])
		})
	default:
		packRows(raw, func(x, y int) uint8 {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			return Nibble(Luminance(c.R, c.G, c.B))
		})
	}

	for i := PixelBytes; i < RawSize; i++ {
		raw[i] = filler
	}
	return raw, nil
}

func packRows(raw Raw, nibbleAt func(x, y int) uint8) {
	for y := range Height {
		row := raw[y*RowBytes : (y+1)*RowBytes]
		for x := 0; x < Width; x += 2 {
			row[x/2] = nibbleAt(x, y)<<4 | nibbleAt(x+1, y)
		}
	}
}

// DecodeRaster expands a device raster into a grayscale image.
func DecodeRaster(raw Raw) (*image.Gray, error) {
	if len(raw) != RawSize {
		return nil, fmt.Errorf("raster: raw size %d, want %d", len(raw), RawSize)
	}
	img := image.NewGray(image.Rect(0, 0, Width, Height))
	for y := range Height {
		row := raw[y*RowBytes : (y+1)*RowBytes]
		dst := img.Pix[y*img.Stride : y*img.Stride+Width]
		for i, v := range row {
			dst[2*i] = Level(v >> 4)
			dst[2*i+1] = Level(v & 0x0F)
		}
	}
	return img, nil
}
