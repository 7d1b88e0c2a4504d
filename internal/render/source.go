package render

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Source yields the document pages of a book in reading order.
type Source interface {
	Len() int
	Page(i int) (image.Image, error)
}

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// IsImageFile reports whether name has an extension Decode understands.
func IsImageFile(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// Decode reads one image in any registered format.
func Decode(r io.Reader) (image.Image, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	log.Debug().Str("format", format).Stringer("size", img.Bounds().Size()).Msg("image decoded")
	return img, nil
}

// LoadImage decodes the image stored at path.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// FileSource loads pages lazily from image files.
type FileSource []string

// Files builds a FileSource from paths. Directories are expanded to the image
// files they contain, sorted by name.
func Files(paths ...string) (FileSource, error) {
	var out FileSource
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !st.IsDir() {
			out = append(out, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		var names []string
		for _, e := range entries {
			if !e.IsDir() && IsImageFile(e.Name()) {
				names = append(names, filepath.Join(p, e.Name()))
			}
		}
		sort.Strings(names)
		out = append(out, names...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no images in %s", strings.Join(paths, ", "))
	}
	return out, nil
}

func (s FileSource) Len() int { return len(s) }

func (s FileSource) Page(i int) (image.Image, error) {
	return LoadImage(s[i])
}

// Images is a Source over already decoded images.
type Images []image.Image

func (s Images) Len() int { return len(s) }

func (s Images) Page(i int) (image.Image, error) { return s[i], nil }
