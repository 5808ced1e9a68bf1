package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/harliandi/go-convert/internal/converter"
	"github.com/harliandi/go-convert/internal/history"
	"github.com/harliandi/go-convert/internal/storage"
	"github.com/harliandi/go-convert/pkg/metrics"
	"github.com/harliandi/go-convert/pkg/targetsize"
	"github.com/sirupsen/logrus"
)

const (
	maxMemory = 32 << 20 // 32MB max in-memory for multipart parsing

	outputExt = ".jpg"
)

// Deps are the collaborators a Handler needs
type Deps struct {
	Converter      *converter.Converter
	Pool           *converter.WorkerPool
	Store          *storage.Store
	History        *history.Log
	MaxUploadBytes int
	Logger         *logrus.Logger
}

// Handler handles HTTP requests for the image tools
type Handler struct {
	converter      *converter.Converter
	pool           *converter.WorkerPool
	store          *storage.Store
	history        *history.Log
	maxUploadBytes int64
	logger         *logrus.Logger
}

// New creates a new Handler
func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = converter.DefaultMaxFileSize
	}
	return &Handler{
		converter:      d.Converter,
		pool:           d.Pool,
		store:          d.Store,
		history:        d.History,
		maxUploadBytes: int64(d.MaxUploadBytes),
		logger:         d.Logger,
	}
}

// Register mounts the handler's routes on mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/image-tools/compress", h.Compress)
	mux.HandleFunc("/image-tools/resize", h.Resize)
	mux.HandleFunc("GET /download/{filename}", h.Download)
	mux.HandleFunc("/health", h.Health)
}

// NoHuffmanNote explains the larger outputs of builds without libjpeg.
const NoHuffmanNote = "built without libjpeg: Huffman tables are not optimized, so outputs are somewhat larger for a given quality"

// ConvertResponse is the JSON body of a successful conversion
type ConvertResponse struct {
	Success     bool    `json:"success"`
	DownloadURL string  `json:"download_url"`
	Filename    string  `json:"filename"`
	Size        int     `json:"size"`
	Quality     int     `json:"quality"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Scale       float64 `json:"scale"`
}

// Compress handles the /image-tools/compress endpoint
func (h *Handler) Compress(w http.ResponseWriter, r *http.Request) {
	upload, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	target := targetsize.TargetFromKB(r.FormValue("target_size_kb"))

	res, err := h.pool.Submit(r.Context(), func() (*targetsize.Result, error) {
		return h.converter.Compress(upload.data, target)
	})
	if err != nil {
		h.writeConvertError(w, err)
		return
	}

	h.finish(w, res, "compressed", history.ActionCompressImage, upload.name)
}

// Resize handles the /image-tools/resize endpoint
func (h *Handler) Resize(w http.ResponseWriter, r *http.Request) {
	upload, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	req := converter.ResizeRequest{
		Width:       converter.ParseDimension(r.FormValue("width")),
		Height:      converter.ParseDimension(r.FormValue("height")),
		TargetBytes: targetsize.TargetFromKB(r.FormValue("target_size_kb")),
	}

	res, err := h.pool.Submit(r.Context(), func() (*targetsize.Result, error) {
		return h.converter.Resize(upload.data, req)
	})
	if err != nil {
		h.writeConvertError(w, err)
		return
	}

	h.finish(w, res, "resized", history.ActionIncreaseSize, upload.name)
}

// Download handles the /download/{filename} endpoint
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")

	f, err := h.store.Open(name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidName) {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		h.logger.WithError(err).WithField("filename", name).Error("Download failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("ETag", f.ETag)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))

	var modTime time.Time
	if info, err := f.Stat(); err == nil {
		modTime = info.ModTime()
	}
	http.ServeContent(w, r, f.Name, modTime, f)
}

// Health handles the /health endpoint for readiness and liveness checks
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	active, queued := h.pool.Stats()
	body := map[string]any{
		"status":            "ok",
		"codec":             h.converter.Codec(),
		"optimized_huffman": h.converter.OptimizedHuffman(),
		"active":            active,
		"queued":            queued,
	}
	if !h.converter.OptimizedHuffman() {
		body["note"] = NoHuffmanNote
	}
	writeJSON(w, http.StatusOK, body)
}

type upload struct {
	name string
	data []byte
}

// readUpload parses the multipart form and reads the "file" part. It writes
// the error response itself and reports false when the request is unusable.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (*upload, bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return nil, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge, "Request too large")
		case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
			writeError(w, http.StatusBadRequest, "Content-Type must be multipart/form-data")
		default:
			writeError(w, http.StatusBadRequest, "Malformed multipart form")
		}
		return nil, false
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file")
		return nil, false
	}
	defer file.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "No selected file")
		return nil, false
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to read upload")
		writeError(w, http.StatusBadRequest, "Could not read file")
		return nil, false
	}

	return &upload{name: header.Filename, data: data}, true
}

// finish stores the output, logs the activity and writes the response. A
// failed history write removes the stored file so the log never points at
// an unlisted output, or lists a missing one.
func (h *Handler) finish(w http.ResponseWriter, res *targetsize.Result, prefix, action, originalName string) {
	name, err := h.store.Save(prefix, outputExt, res.Data)
	if err != nil {
		h.logger.WithError(err).Error("Failed to store output")
		writeError(w, http.StatusInternalServerError, "Failed to store output")
		return
	}

	if _, err := h.history.Record(action, originalName, name); err != nil {
		metrics.RecordHistoryWrite(false)
		h.logger.WithError(err).Error("Failed to record activity")
		if rmErr := h.store.Remove(name); rmErr != nil {
			h.logger.WithError(rmErr).WithField("filename", name).Warn("Failed to remove unlogged output")
		}
		writeError(w, http.StatusInternalServerError, "Failed to record activity")
		return
	}
	metrics.RecordHistoryWrite(true)

	writeJSON(w, http.StatusOK, ConvertResponse{
		Success:     true,
		DownloadURL: "/download/" + name,
		Filename:    name,
		Size:        res.Size,
		Quality:     res.Quality,
		Width:       res.Width,
		Height:      res.Height,
		Scale:       res.Scale,
	})
}

func (h *Handler) writeConvertError(w http.ResponseWriter, err error) {
	var decodeErr *converter.DecodeError
	var encodeErr *targetsize.EncodeError

	switch {
	case errors.Is(err, converter.ErrPoolBusy),
		errors.Is(err, converter.ErrPoolStopped),
		errors.Is(err, context.DeadlineExceeded):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "Service busy, please try again")
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the response
		h.logger.Debug("Request cancelled during encode")
	case errors.Is(err, converter.ErrFileTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.As(err, &decodeErr),
		errors.Is(err, converter.ErrImageTooLarge),
		errors.Is(err, converter.ErrInvalidImageDimensions):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &encodeErr):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		h.logger.WithError(err).Error("Conversion failed")
		writeError(w, http.StatusInternalServerError, "Conversion failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
