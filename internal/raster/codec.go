package raster

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"image"
	"io"
	"strings"
)

// Container selects the wrapper around the deflate stream sent to the device.
// The device locates the end of a page from the stream itself, so the codec
// never adds a length prefix of its own.
type Container int

const (
	ContainerGzip Container = iota
	ContainerZlib
)

func (c Container) String() string {
	switch c {
	case ContainerGzip:
		return "gzip"
	case ContainerZlib:
		return "zlib"
	default:
		return fmt.Sprintf("Container(%d)", int(c))
	}
}

// ParseContainer converts a configuration string to a Container.
func ParseContainer(s string) (Container, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "gzip":
		return ContainerGzip, nil
	case "zlib":
		return ContainerZlib, nil
	default:
		return 0, fmt.Errorf("raster: unknown container %q", s)
	}
}

// Compressed is the wire form of a page.
type Compressed []byte

// Codec turns images into compressed device pages.
type Codec struct {
	Filler    byte
	Container Container
}

// DefaultCodec returns the codec used for uploads unless configured otherwise.
func DefaultCodec() Codec {
	return Codec{Filler: DefaultFiller, Container: ContainerGzip}
}

// Encode converts a 600x800 image into a compressed page.
func (c Codec) Encode(img image.Image) (Compressed, error) {
	raw, err := EncodeRaster(img, c.Filler)
	if err != nil {
		return nil, err
	}
	return c.Compress(raw)
}

// Compress deflates a raster at best compression. Output is deterministic:
// the gzip header carries no name and a zero modification time.
func (c Codec) Compress(raw Raw) (Compressed, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	var err error
	switch c.Container {
	case ContainerGzip:
		w, err = gzip.NewWriterLevel(&buf, flate.BestCompression)
	case ContainerZlib:
		w, err = zlib.NewWriterLevel(&buf, flate.BestCompression)
	default:
		return nil, fmt.Errorf("raster: unsupported container %v", c.Container)
	}
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("raster: compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("raster: compress: %w", err)
	}
	return Compressed(buf.Bytes()), nil
}

// Decompress inflates a page and checks that it holds a full raster.
func (c Codec) Decompress(page Compressed) (Raw, error) {
	var r io.ReadCloser
	var err error
	switch c.Container {
	case ContainerGzip:
		r, err = gzip.NewReader(bytes.NewReader(page))
	case ContainerZlib:
		r, err = zlib.NewReader(bytes.NewReader(page))
	default:
		return nil, fmt.Errorf("raster: unsupported container %v", c.Container)
	}
	if err != nil {
		return nil, fmt.Errorf("raster: decompress: %w", err)
	}
	defer r.Close()

	raw, err := io.ReadAll(io.LimitReader(r, RawSize+1))
	if err != nil {
		return nil, fmt.Errorf("raster: decompress: %w", err)
	}
	if len(raw) != RawSize {
		return nil, fmt.Errorf("raster: decompressed %d bytes, want %d", len(raw), RawSize)
	}
	return Raw(raw), nil
}

// Preview decodes a compressed page into a grayscale image.
func (c Codec) Preview(page Compressed) (*image.Gray, error) {
	raw, err := c.Decompress(page)
	if err != nil {
		return nil, err
	}
	return DecodeRaster(raw)
}
