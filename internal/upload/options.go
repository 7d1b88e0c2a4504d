package upload

import "time"

// Progress is reported after each page the device acknowledged.
type Progress struct {
	Page    int   // index of the acknowledged page
	Sent    int   // pages acknowledged so far
	Total   int   // expected page count, 0 if unknown
	Bytes   int64 // compressed bytes sent so far
	Elapsed time.Duration
}

// ProgressFunc receives Progress updates. It runs on the sending goroutine
// and should return quickly.
type ProgressFunc func(Progress)

type config struct {
	queueSize int
	total     int
	progress  ProgressFunc
}

func defaultConfig() config {
	return config{queueSize: DefaultQueueSize}
}

// Option configures Run and UploadBook.
type Option func(*config)

// WithQueueSize sets how many compressed pages may wait for the device.
func WithQueueSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithTotal sets the page count reported in Progress.
func WithTotal(n int) Option {
	return func(c *config) { c.total = n }
}

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(c *config) { c.progress = fn }
}
