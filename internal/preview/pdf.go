package preview

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"
	"os"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog/log"

	"github.com/mzyy94/airbeagle/internal/raster"
	"github.com/mzyy94/airbeagle/internal/upload"
)

// DPI is the pixel density of the e-reader panel, used to size PDF pages so
// a preview prints at the physical size of the screen.
const DPI = 200

// PNG decodes a compressed device page and encodes what the panel would
// show as a grayscale PNG.
func PNG(codec raster.Codec, page raster.Compressed) ([]byte, error) {
	img, err := codec.Preview(page)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// Collect runs produce to completion and returns every page it emitted.
func Collect(ctx context.Context, produce upload.Producer) ([]raster.Compressed, error) {
	var pages []raster.Compressed
	err := produce(ctx, func(p upload.Page) error {
		pages = append(pages, p.Data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pages, nil
}

// GeneratePDF renders compressed device pages into a PDF in memory, one
// panel-sized page per device page.
func GeneratePDF(codec raster.Codec, pages []raster.Compressed) ([]byte, error) {
	var out bytes.Buffer
	if err := Write(&out, codec, pages); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// WritePDF writes the preview PDF to a file.
func WritePDF(path string, codec raster.Codec, pages []raster.Compressed) error {
	data, err := GeneratePDF(codec, pages)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	log.Info().Str("path", path).Int("pages", len(pages)).Msg("preview written")
	return nil
}

// Write streams the preview PDF to w.
func Write(w io.Writer, codec raster.Codec, pages []raster.Compressed) error {
	if len(pages) == 0 {
		return fmt.Errorf("no pages to write")
	}
	widthMM := float64(raster.Width) / DPI * 25.4
	heightMM := float64(raster.Height) / DPI * 25.4

	pdf := fpdf.New("P", "mm", "", "")
	pdf.SetAutoPageBreak(false, 0)
	for i, page := range pages {
		data, err := PNG(codec, page)
		if err != nil {
			return fmt.Errorf("page %d: %w", i, err)
		}
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: widthMM, Ht: heightMM})
		name := fmt.Sprintf("page%d", i)
		pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(data))
		pdf.ImageOptions(name, 0, 0, widthMM, heightMM, false, fpdf.ImageOptions{}, 0, "")
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("generate PDF: %w", err)
	}
	return nil
}
