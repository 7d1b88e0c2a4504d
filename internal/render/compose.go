package render

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/mzyy94/airbeagle/internal/raster"
)

// Page layout on the 600x800 panel.
const (
	FontSize    = 30
	TextMargin  = 5
	BarHeight   = 5
	MarkHeight  = 3
	coverWidth  = raster.Width / 2
	coverHeight = raster.Height / 2
)

var barColor = color.Gray{Y: 0x80}

// Compositor lays out title and book pages.
type Compositor struct {
	Title  string
	Author string
	// Bookmarks are 1-based page numbers marked below the progress bar.
	Bookmarks []int

	face   font.Face
	scaler draw.Scaler
}

// NewCompositor prepares the bold face used for the title page.
func NewCompositor(title, author string) (*Compositor, error) {
	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    FontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	return &Compositor{Title: title, Author: author, face: face, scaler: draw.CatmullRom}, nil
}

func blankPage() *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, raster.Width, raster.Height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	return dst
}

// TitlePage draws the cover centered at half size with the author above it
// and the title below it.
func (c *Compositor) TitlePage(cover image.Image) *image.RGBA {
	dst := blankPage()
	x0 := (raster.Width - coverWidth) / 2
	y0 := (raster.Height - coverHeight) / 2
	c.scaler.Scale(dst, image.Rect(x0, y0, x0+coverWidth, y0+coverHeight), cover, cover.Bounds(), draw.Over, nil)

	d := &font.Drawer{Dst: dst, Src: image.Black, Face: c.face}
	if c.Title != "" {
		bounds, advance := font.BoundString(c.face, c.Title)
		d.Dot = fixed.P((raster.Width-advance.Ceil())/2, raster.Height-TextMargin-bounds.Max.Y.Ceil())
		d.DrawString(c.Title)
	}
	if c.Author != "" {
		bounds, advance := font.BoundString(c.face, c.Author)
		d.Dot = fixed.P((raster.Width-advance.Ceil())/2, TextMargin-bounds.Min.Y.Floor())
		d.DrawString(c.Author)
	}
	return dst
}

// BookPage scales page i of n to fit the panel, centers it and draws a
// reading progress bar along the bottom edge.
func (c *Compositor) BookPage(page image.Image, i, n int) *image.RGBA {
	dst := blankPage()
	c.scaler.Scale(dst, FitRect(page.Bounds().Size(), dst.Bounds()), page, page.Bounds(), draw.Over, nil)

	last := n - 1
	if last > 0 {
		bar := image.Rect(0, raster.Height-BarHeight, raster.Width*i/last, raster.Height)
		draw.Draw(dst, bar, image.NewUniform(barColor), image.Point{}, draw.Src)
		for _, nr := range c.Bookmarks {
			if nr < 1 || nr > n {
				continue
			}
			x := raster.Width * (nr - 1) / last
			if x >= raster.Width {
				x = raster.Width - 1
			}
			mark := image.Rect(x, raster.Height-MarkHeight, x+1, raster.Height)
			draw.Draw(dst, mark, image.Black, image.Point{}, draw.Src)
		}
	}
	return dst
}

// FitRect returns the largest rectangle with the aspect ratio of size that
// fits into area, centered in it.
func FitRect(size image.Point, area image.Rectangle) image.Rectangle {
	aw, ah := area.Dx(), area.Dy()
	if size.X <= 0 || size.Y <= 0 {
		return area
	}
	w, h := aw, size.Y*aw/size.X
	if h > ah {
		w, h = size.X*ah/size.Y, ah
	}
	x := area.Min.X + (aw-w)/2
	y := area.Min.Y + (ah-h)/2
	return image.Rect(x, y, x+w, y+h)
}
