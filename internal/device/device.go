// Package device keeps one connection to the e-reader and serializes all
// commands sent over it.
package device

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/mzyy94/airbeagle/internal/beagle"
	"github.com/mzyy94/airbeagle/internal/raster"
	"github.com/mzyy94/airbeagle/internal/render"
	"github.com/mzyy94/airbeagle/internal/transport"
	"github.com/mzyy94/airbeagle/internal/upload"
)

// ErrBusy is returned when an upload is requested while another is running.
var ErrBusy = errors.New("device: upload in progress")

// Dialer opens the byte stream to the device.
type Dialer func(ctx context.Context, addr string, baud int) (transport.Conn, error)

// Device is a high-level handle on one e-reader. Commands are serialized;
// the connection is opened on first use and dropped after a transport error
// or a cancelled command, to be reopened by the next call.
type Device struct {
	addr string
	baud int
	dial Dialer

	mu      sync.Mutex
	conn    transport.Conn
	session *beagle.Session

	// Readable without mu so status queries do not wait for an upload.
	online atomic.Bool
	info   atomic.Pointer[beagle.Info]

	status UploadStatus
}

// New creates a Device for the transport address addr.
func New(addr string, baud int) *Device {
	return NewWithDialer(addr, baud, transport.Open)
}

// NewWithDialer creates a Device that opens its stream with dial.
func NewWithDialer(addr string, baud int, dial Dialer) *Device {
	return &Device{addr: addr, baud: baud, dial: dial}
}

// Address returns the transport address.
func (d *Device) Address() string { return d.addr }

// Online reports whether a connection is currently open.
func (d *Device) Online() bool { return d.online.Load() }

// LastInfo returns the device information read when the connection was
// opened, or nil while offline.
func (d *Device) LastInfo() beagle.Info {
	p := d.info.Load()
	if p == nil {
		return nil
	}
	out := make(beagle.Info, len(*p))
	for k, v := range *p {
		out[k] = v
	}
	return out
}

// Status returns the state of the current or last upload.
func (d *Device) Status() UploadStatus { return d.status.Snapshot() }

// Connect opens the transport and checks that a beagle answers on it.
func (d *Device) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connectLocked(ctx)
}

func (d *Device) connectLocked(ctx context.Context) error {
	if d.session != nil {
		return nil
	}
	log.Info().Str("addr", d.addr).Msg("connecting to device")
	conn, err := d.dial(ctx, d.addr, d.baud)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	d.conn = conn
	d.session = beagle.NewSession(conn)

	var info beagle.Info
	err = d.runLocked(ctx, func(s *beagle.Session) error {
		var err error
		info, err = s.Info(ctx)
		return err
	})
	if err != nil {
		_ = d.dropLocked()
		return fmt.Errorf("connect: %w", err)
	}
	d.info.Store(&info)
	d.online.Store(true)
	fw, _ := info.Get("FIRMWARE", "GIT")
	serial, _ := info.Get("DEVICE", "SERIAL")
	log.Info().Str("firmware", fw).Str("serial", serial).Msg("connected to device")
	return nil
}

// Disconnect closes the transport. A read blocked on the device returns.
func (d *Device) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropLocked()
}

func (d *Device) dropLocked() error {
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	d.session = nil
	d.online.Store(false)
	d.info.Store(nil)
	log.Info().Str("addr", d.addr).Msg("disconnected from device")
	return err
}

// runLocked calls fn with the session. A cancelled ctx closes the transport
// so a blocked read returns; the connection is then dropped. d.mu must be held.
func (d *Device) runLocked(ctx context.Context, fn func(*beagle.Session) error) error {
	conn := d.conn
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	err := fn(d.session)
	cancelled := !stop()
	if err == nil && !cancelled {
		return nil
	}
	if cancelled && !beagle.IsCancelled(err) {
		err = &beagle.CancelledError{Err: ctx.Err()}
	}
	var cerr *beagle.ConnectionError
	if cancelled || errors.As(err, &cerr) {
		if dropErr := d.dropLocked(); dropErr != nil {
			log.Debug().Err(dropErr).Msg("close after failure")
		}
	}
	return err
}

// do runs fn with a connected session, connecting first when needed.
func (d *Device) do(ctx context.Context, fn func(*beagle.Session) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.connectLocked(ctx); err != nil {
		return err
	}
	return d.runLocked(ctx, fn)
}

// Info queries device information.
func (d *Device) Info(ctx context.Context) (beagle.Info, error) {
	var info beagle.Info
	err := d.do(ctx, func(s *beagle.Session) error {
		var err error
		info, err = s.Info(ctx)
		return err
	})
	return info, err
}

// Books lists the books stored on the device.
func (d *Device) Books(ctx context.Context) ([]beagle.Book, error) {
	var books []beagle.Book
	err := d.do(ctx, func(s *beagle.Session) error {
		var err error
		books, err = s.ListBooks(ctx)
		return err
	})
	return books, err
}

// DeleteBook removes a book. A refusal is beagle.ErrDeleteRefused.
func (d *Device) DeleteBook(ctx context.Context, id string) error {
	return d.do(ctx, func(s *beagle.Session) error { return s.DeleteBook(ctx, id) })
}

// Virgin resets the device to factory state.
func (d *Device) Virgin(ctx context.Context) error {
	return d.do(ctx, func(s *beagle.Session) error { return s.Virgin(ctx) })
}

// PartnerID returns the partner id, ok false if none is set.
func (d *Device) PartnerID(ctx context.Context) (id string, ok bool, err error) {
	err = d.do(ctx, func(s *beagle.Session) error {
		var err error
		id, ok, err = s.PartnerID(ctx)
		return err
	})
	return id, ok, err
}

// SetPartnerID stores a partner id on the device.
func (d *Device) SetPartnerID(ctx context.Context, id string) error {
	return d.do(ctx, func(s *beagle.Session) error { return s.SetPartnerID(ctx, id) })
}

// Upload renders book, compresses it with codec and streams it to the
// device. onProgress may be nil.
func (d *Device) Upload(ctx context.Context, book render.Book, codec raster.Codec, queueSize int, onProgress upload.ProgressFunc) error {
	total := book.PageCount()
	if !d.status.tryStart(book.Meta.ID, book.Meta.Title, total) {
		return ErrBusy
	}
	progress := func(p upload.Progress) {
		d.status.progress(p)
		if onProgress != nil {
			onProgress(p)
		}
	}

	err := d.do(ctx, func(s *beagle.Session) error {
		return upload.UploadBook(ctx, s, book.Meta, book.Producer(codec),
			upload.WithTotal(total), upload.WithQueueSize(queueSize), upload.WithProgress(progress))
	})
	d.status.finish(err)
	if err != nil {
		log.Error().Err(err).Str("id", book.Meta.ID).Msg("upload failed")
	}
	return err
}

// SendUtilityPage renders img to fit the panel and stores it as utility
// page index.
func (d *Device) SendUtilityPage(ctx context.Context, index int, img image.Image, codec raster.Codec) error {
	comp, err := render.NewCompositor("", "")
	if err != nil {
		return err
	}
	page, err := codec.Encode(comp.BookPage(img, 0, 1))
	if err != nil {
		return err
	}
	return d.do(ctx, func(s *beagle.Session) error { return s.SendUtilityPage(ctx, index, page) })
}
