package device

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mzyy94/airbeagle/internal/beagle"
)

// DefaultHeartbeatInterval is how often an idle device is pinged.
const DefaultHeartbeatInterval = 30 * time.Second

// Heartbeat periodically pings the device so Online and LastInfo follow
// the real device while nobody is using it.
type Heartbeat struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Ping sends INFO unless another command holds the device. When offline it
// connects instead, which sends INFO once. busy reports that the ping was
// skipped.
func (d *Device) Ping(ctx context.Context) (busy bool, err error) {
	if !d.mu.TryLock() {
		return true, nil
	}
	defer d.mu.Unlock()
	if d.session == nil {
		// connectLocked fetches INFO itself.
		return false, d.connectLocked(ctx)
	}
	var info beagle.Info
	err = d.runLocked(ctx, func(s *beagle.Session) error {
		var err error
		info, err = s.Info(ctx)
		return err
	})
	if err != nil {
		return false, err
	}
	d.info.Store(&info)
	return false, nil
}

// StartHeartbeat pings d every interval until Stop is called or ctx ends.
// Each ping is bounded by the interval.
func StartHeartbeat(ctx context.Context, d *Device, interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info().Str("addr", d.Address()).Dur("interval", interval).Msg("heartbeat started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("heartbeat stopped")
				return
			case <-ticker.C:
			}
			pingCtx, pingCancel := context.WithTimeout(ctx, interval)
			busy, err := d.Ping(pingCtx)
			pingCancel()
			switch {
			case busy:
				log.Trace().Msg("heartbeat skipped, device busy")
			case err != nil:
				log.Debug().Err(err).Msg("heartbeat failed")
			}
		}
	}()

	return &Heartbeat{cancel: cancel, done: done}
}

// Stop stops the heartbeat and waits for a running ping to finish.
func (h *Heartbeat) Stop() {
	h.cancel()
	<-h.done
}
