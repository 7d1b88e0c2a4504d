package beagle

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

// Link frames the byte stream to the device: text lines in both directions
// and raw binary blobs towards the device.
//
// Binary payloads carry no length prefix. The device finds the end of a page
// from the compressed stream itself, which only works because the transport
// delivers bytes reliably and in order. Link adds no framing to compensate.
//
// Link is not safe for concurrent use; Session owns it exclusively.
type Link struct {
	r *bufio.Reader
	w io.Writer
}

// NewLink wraps a connected byte stream.
func NewLink(rw io.ReadWriter) *Link {
	return &Link{r: bufio.NewReader(rw), w: rw}
}

// WriteCommand writes line followed by a single newline and flushes.
func (l *Link) WriteCommand(line string) error {
	if strings.ContainsAny(line, "\r\n") {
		return errors.New("beagle: command line contains a line break")
	}
	log.Debug().Str("line", line).Msg(">>")
	if _, err := io.WriteString(l.w, line+"\n"); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	return l.flush()
}

// WriteBinary writes data verbatim and flushes.
func (l *Link) WriteBinary(data []byte) error {
	log.Debug().Int("bytes", len(data)).Msg(">> binary")
	if _, err := l.w.Write(data); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	return l.flush()
}

// ReadLine blocks until a full line arrives and returns it without the line
// terminator. A stream that ends before the newline yields a ConnectionError.
func (l *Link) ReadLine() (string, error) {
	line, err := l.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return "", &ConnectionError{Op: "read", Err: err}
	}
	line = strings.TrimRight(line, "\r\n")
	log.Debug().Str("line", line).Msg("<<")
	return line, nil
}

// flush pushes buffered output towards the device when the writer supports
// it: bufio-style Flush, or Drain as offered by serial ports.
func (l *Link) flush() error {
	var err error
	switch w := l.w.(type) {
	case interface{ Flush() error }:
		err = w.Flush()
	case interface{ Drain() error }:
		err = w.Drain()
	}
	if err != nil {
		return &ConnectionError{Op: "flush", Err: err}
	}
	return nil
}
