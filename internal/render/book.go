package render

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mzyy94/airbeagle/internal/beagle"
	"github.com/mzyy94/airbeagle/internal/raster"
	"github.com/mzyy94/airbeagle/internal/upload"
)

// DefaultAuthor is used when a book has no author.
const DefaultAuthor = "No Author"

// TitleFromFilename turns "moby_dick.pdf" into "moby dick".
func TitleFromFilename(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimSpace(strings.ReplaceAll(base, "_", " "))
}

// Book is a document ready to be rendered for the device.
type Book struct {
	Meta      beagle.BookMeta
	Source    Source
	Bookmarks []int
}

// NewBook fills in defaults for missing metadata. An empty title is derived
// from fallbackName, an empty id from author and title.
func NewBook(src Source, title, author, id, fallbackName string) Book {
	if strings.TrimSpace(author) == "" {
		author = DefaultAuthor
	}
	if strings.TrimSpace(title) == "" {
		title = TitleFromFilename(fallbackName)
	}
	if id == "" {
		id = upload.NewBookID(author, title)
	}
	return Book{
		Meta:   beagle.BookMeta{ID: id, Title: title, Author: author},
		Source: src,
	}
}

// PageCount is the number of device pages: a title page plus every document page.
func (b Book) PageCount() int { return b.Source.Len() + 1 }

// Render calls fn with every device page in upload order. Page 0 is the
// title page built from the first document page; document page i follows
// as device page i+1.
func (b Book) Render(ctx context.Context, fn func(index int, img *image.RGBA) error) error {
	n := b.Source.Len()
	if n == 0 {
		return fmt.Errorf("book %q has no pages", b.Meta.Title)
	}
	comp, err := NewCompositor(b.Meta.Title, b.Meta.Author)
	if err != nil {
		return err
	}
	comp.Bookmarks = b.Bookmarks

	cover, err := b.Source.Page(0)
	if err != nil {
		return fmt.Errorf("page 0: %w", err)
	}
	if err := fn(0, comp.TitlePage(cover)); err != nil {
		return err
	}
	for i := range n {
		if err := ctx.Err(); err != nil {
			return &beagle.CancelledError{Err: err}
		}
		page, err := b.Source.Page(i)
		if err != nil {
			return fmt.Errorf("page %d: %w", i, err)
		}
		if err := fn(i+1, comp.BookPage(page, i, n)); err != nil {
			return err
		}
	}
	return nil
}

// Producer renders and compresses the book for an upload pipeline.
func (b Book) Producer(codec raster.Codec) upload.Producer {
	return func(ctx context.Context, emit upload.Emit) error {
		return b.Render(ctx, func(index int, img *image.RGBA) error {
			data, err := codec.Encode(img)
			if err != nil {
				return fmt.Errorf("encode page %d: %w", index, err)
			}
			log.Debug().Int("page", index).Int("bytes", len(data)).Msg("page rendered")
			return emit(upload.Page{Index: index, Data: data})
		})
	}
}
