package webui

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mzyy94/airbeagle/internal/beagle"
	"github.com/mzyy94/airbeagle/internal/config"
	"github.com/mzyy94/airbeagle/internal/device"
	"github.com/mzyy94/airbeagle/internal/preview"
	"github.com/mzyy94/airbeagle/internal/raster"
	"github.com/mzyy94/airbeagle/internal/render"
)

// MaxUploadSize bounds the multipart body of book and preview requests.
const MaxUploadSize = 256 << 20

// pageField is the multipart field holding page images, in order.
const pageField = "page"

type handler struct {
	dev      *device.Device
	settings *config.Store
}

// NewHandler creates the HTTP API for dev. settings must not be nil; use
// config.NewMemoryStore when persistence is disabled.
func NewHandler(dev *device.Device, settings *config.Store) http.Handler {
	h := &handler{dev: dev, settings: settings}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", h.handleStatus)
	mux.HandleFunc("GET /api/books", h.handleListBooks)
	mux.HandleFunc("POST /api/books", h.handleUploadBook)
	mux.HandleFunc("DELETE /api/books/{id}", h.handleDeleteBook)
	mux.HandleFunc("POST /api/preview", h.handlePreview)
	mux.HandleFunc("GET /api/settings", h.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", h.handlePutSettings)
	return mux
}

type statusResponse struct {
	Online    bool                `json:"online"`
	State     string              `json:"state"`
	Address   string              `json:"address"`
	Device    map[string]string   `json:"device,omitempty"`
	Upload    device.UploadStatus `json:"upload"`
	UpdatedAt string              `json:"updatedAt"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("write response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// deviceStatus maps a device error to an HTTP status.
func deviceStatus(err error) int {
	var perr *beagle.ProtocolError
	switch {
	case errors.Is(err, beagle.ErrDeleteRefused), errors.Is(err, device.ErrBusy):
		return http.StatusConflict
	case beagle.IsCancelled(err):
		return http.StatusGatewayTimeout
	case errors.As(err, &perr):
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}

func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	upload := h.dev.Status()
	state := "offline"
	switch {
	case upload.Uploading:
		state = "uploading"
	case h.dev.Online():
		state = "idle"
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Online:    h.dev.Online(),
		State:     state,
		Address:   h.dev.Address(),
		Device:    h.dev.LastInfo(),
		Upload:    upload,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.dev.Books(r.Context())
	if err != nil {
		writeError(w, deviceStatus(err), err)
		return
	}
	if books == nil {
		books = []beagle.Book{}
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *handler) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := beagle.CleanID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.dev.DeleteBook(r.Context(), id); err != nil {
		writeError(w, deviceStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readPages decodes the uploaded page images in form order.
func readPages(r *http.Request) (render.Images, string, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, "", fmt.Errorf("parse form: %w", err)
	}
	files := r.MultipartForm.File[pageField]
	if len(files) == 0 {
		return nil, "", fmt.Errorf("no %q files in request", pageField)
	}
	pages := make(render.Images, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, "", err
		}
		img, err := render.Decode(f)
		f.Close()
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", fh.Filename, err)
		}
		pages = append(pages, img)
	}
	return pages, files[0].Filename, nil
}

func parseBookmarks(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("bad bookmark %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}

// bookFromRequest builds a book from a multipart form with "page" files and
// optional title, author, id and bookmarks fields.
func (h *handler) bookFromRequest(w http.ResponseWriter, r *http.Request) (render.Book, raster.Codec, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	pages, first, err := readPages(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return render.Book{}, raster.Codec{}, false
	}
	settings := h.settings.Get()
	codec, err := settings.Codec()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return render.Book{}, raster.Codec{}, false
	}

	id := r.FormValue("id")
	if id != "" {
		if id, err = beagle.NormalizeID(id); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return render.Book{}, raster.Codec{}, false
		}
	}
	author := r.FormValue("author")
	if strings.TrimSpace(author) == "" {
		author = settings.DefaultAuthor
	}
	book := render.NewBook(pages, r.FormValue("title"), author, id, first)
	if book.Bookmarks, err = parseBookmarks(r.FormValue("bookmarks")); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return render.Book{}, raster.Codec{}, false
	}
	return book, codec, true
}

func (h *handler) handleUploadBook(w http.ResponseWriter, r *http.Request) {
	book, codec, ok := h.bookFromRequest(w, r)
	if !ok {
		return
	}
	log.Info().Str("id", book.Meta.ID).Str("title", book.Meta.Title).Int("pages", book.PageCount()).Msg("upload requested")
	if err := h.dev.Upload(r.Context(), book, codec, h.settings.Get().QueueSize, nil); err != nil {
		writeError(w, deviceStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, beagle.Book{
		ID:       book.Meta.ID,
		Title:    book.Meta.Title,
		Author:   book.Meta.Author,
		LastPage: uint32(book.PageCount() - 1),
	})
}

func (h *handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	book, codec, ok := h.bookFromRequest(w, r)
	if !ok {
		return
	}
	pages, err := preview.Collect(r.Context(), book.Producer(codec))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", book.Meta.Title+".pdf"))
	if err := preview.Write(w, codec, pages); err != nil {
		log.Warn().Err(err).Msg("preview write failed")
	}
}

// --- Settings API ---

func (h *handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settings.Get())
}

func (h *handler) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var s config.Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if err := s.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.settings.Update(s); err != nil {
		log.Warn().Err(err).Msg("settings save failed")
		writeError(w, http.StatusInternalServerError, errors.New("failed to save settings"))
		return
	}
	writeJSON(w, http.StatusOK, s)
}
