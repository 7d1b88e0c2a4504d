package device

import (
	"sync"
	"time"

	"github.com/mzyy94/airbeagle/internal/upload"
)

// UploadStatus tracks the most recent book upload.
type UploadStatus struct {
	mu         sync.RWMutex
	Uploading  bool   `json:"uploading"`
	BookID     string `json:"bookId,omitempty"`
	Title      string `json:"title,omitempty"`
	Page       int    `json:"page"`
	Total      int    `json:"total"`
	Bytes      int64  `json:"bytes"`
	LastError  string `json:"lastError,omitempty"`
	LastUpload string `json:"lastUpload,omitempty"` // RFC3339
}

// Snapshot returns a copy of the current status.
func (s *UploadStatus) Snapshot() UploadStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return UploadStatus{
		Uploading:  s.Uploading,
		BookID:     s.BookID,
		Title:      s.Title,
		Page:       s.Page,
		Total:      s.Total,
		Bytes:      s.Bytes,
		LastError:  s.LastError,
		LastUpload: s.LastUpload,
	}
}

// tryStart marks an upload as running unless one already is.
func (s *UploadStatus) tryStart(id, title string, total int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Uploading {
		return false
	}
	s.Uploading = true
	s.BookID = id
	s.Title = title
	s.Page = 0
	s.Total = total
	s.Bytes = 0
	s.LastError = ""
	return true
}

func (s *UploadStatus) progress(p upload.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Page = p.Sent
	s.Bytes = p.Bytes
}

func (s *UploadStatus) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Uploading = false
	s.LastUpload = time.Now().UTC().Format(time.RFC3339)
	if err != nil {
		s.LastError = err.Error()
	} else {
		s.LastError = ""
	}
}
