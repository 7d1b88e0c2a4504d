package upload

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/OpenPrinting/go-mfp/util/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mzyy94/airbeagle/internal/beagle"
)

// Sender delivers one compressed page to the device.
type Sender interface {
	SendPage(ctx context.Context, index int, page []byte) error
}

// BookSession is the part of beagle.Session an upload drives.
type BookSession interface {
	Sender
	OpenBook(ctx context.Context, meta beagle.BookMeta) error
	EndBook(ctx context.Context) error
	Abandon()
}

// Emit hands one page to the pipeline. It blocks while the queue is full.
type Emit func(Page) error

// Producer renders and compresses pages, calling emit for each in upload
// order. Returning nil ends the stream.
type Producer func(ctx context.Context, emit Emit) error

// Run connects produce and sender through a bounded queue. Each side runs on
// its own goroutine; the first error from either side aborts the queue so the
// other side stops, and that error is returned. Pages are sent in the order
// they were emitted with the index the producer gave them.
func Run(ctx context.Context, sender Sender, produce Producer, opts ...Option) error {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	q := NewQueue(cfg.queueSize)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := produce(gctx, func(p Page) error { return q.Push(gctx, p) })
		if err != nil {
			q.Abort(err)
			return err
		}
		q.Close()
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		var sent int
		var bytes int64
		for {
			p, ok, err := q.Pop(gctx)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if err := sender.SendPage(gctx, p.Index, p.Data); err != nil {
				err = fmt.Errorf("page %d: %w", p.Index, err)
				q.Abort(err)
				return err
			}
			sent++
			bytes += int64(len(p.Data))
			log.Debug().Int("page", p.Index).Int("bytes", len(p.Data)).Msg("page sent")
			if cfg.progress != nil {
				cfg.progress(Progress{
					Page:    p.Index,
					Sent:    sent,
					Total:   cfg.total,
					Bytes:   bytes,
					Elapsed: time.Since(start),
				})
			}
		}
	})

	return g.Wait()
}

// UploadBook opens meta on the device, streams every produced page and
// closes the book. When streaming fails or is cancelled no ENDBOOK is sent.
// On any failure after the book was opened the local session is abandoned,
// so the next upload starts from Idle.
func UploadBook(ctx context.Context, s BookSession, meta beagle.BookMeta, produce Producer, opts ...Option) error {
	start := time.Now()
	if err := s.OpenBook(ctx, meta); err != nil {
		return fmt.Errorf("open book: %w", err)
	}
	if err := Run(ctx, s, produce, opts...); err != nil {
		s.Abandon()
		return err
	}
	if err := s.EndBook(ctx); err != nil {
		s.Abandon()
		return fmt.Errorf("end book: %w", err)
	}
	log.Info().Str("id", meta.ID).Str("title", meta.Title).
		Dur("elapsed", time.Since(start)).Msg("upload finished")
	return nil
}

// NewBookID derives a book id from author and title. The same pair always
// yields the same id.
func NewBookID(author, title string) string {
	u := uuid.SHA1(uuid.NameSpaceDNS, "airbeagle\n"+author+"\n"+title)
	return strings.ToUpper(strings.ReplaceAll(u.String(), "-", ""))
}
