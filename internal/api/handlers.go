// internal/api/handlers.go
package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"sync"

	"fixity/internal/archive"
	"fixity/internal/check"
	"fixity/internal/errors"
	"fixity/internal/logging"
	"fixity/internal/snapshot"
	"fixity/internal/tree"
	"fixity/internal/validation"

	"go.uber.org/zap"
)

// FileEntry is one line of an archived snapshot.
type FileEntry struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// Baseline is an archived snapshot record together with its entries.
type Baseline struct {
	*archive.SnapshotRecord
	Files []FileEntry `json:"files"`
}

// Register mounts every API route on mux.
func Register(mux *http.ServeMux, a *archive.Archive, logger *logging.Logger, opts ...snapshot.Option) {
	baselines := NewBaselineHandler(a)
	checks := NewCheckHandler(a, logger, opts...)

	mux.HandleFunc("GET /health", Health)

	mux.HandleFunc("GET /api/baselines", baselines.List)
	mux.HandleFunc("GET /api/baselines/{id}", baselines.Get)

	mux.HandleFunc("POST /api/checks", checks.Create)
	mux.HandleFunc("GET /api/reports", checks.List)
	mux.HandleFunc("GET /api/reports/{id}", checks.Get)
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type BaselineHandler struct {
	archive *archive.Archive
}

func NewBaselineHandler(a *archive.Archive) *BaselineHandler {
	return &BaselineHandler{archive: a}
}

// List returns snapshot records, optionally filtered by ?name=.
func (h *BaselineHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.archive.ListSnapshots(r.URL.Query().Get("name"))
	if err != nil {
		errors.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *BaselineHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rec, s, err := h.archive.GetSnapshot(id)
	if err != nil {
		errors.Write(w, notFound(err, "baseline not found: "+id))
		return
	}

	files := make([]FileEntry, 0, s.Len())
	for _, e := range s.Entries() {
		files = append(files, FileEntry{Path: e.Path, Hash: e.Hex()})
	}
	writeJSON(w, http.StatusOK, Baseline{SnapshotRecord: rec, Files: files})
}

// CheckHandler runs on-demand checks and serves their reports.
type CheckHandler struct {
	archive *archive.Archive
	logger  *logging.Logger
	opts    []snapshot.Option

	// checks under one name must not interleave between reading the
	// latest baseline and recording the new one
	mu sync.Mutex
}

func NewCheckHandler(a *archive.Archive, logger *logging.Logger, opts ...snapshot.Option) *CheckHandler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &CheckHandler{archive: a, logger: logger, opts: opts}
}

func (h *CheckHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, err := validation.ValidateCheckRequest(r)
	if err != nil {
		errors.Write(w, err)
		return
	}

	h.mu.Lock()
	rec, err := check.Archived(r.Context(), h.archive, *req, h.opts...)
	h.mu.Unlock()
	if err != nil {
		h.logger.WithRequestID(r.Context()).Warn("check failed",
			zap.String("name", req.Name),
			zap.String("root", req.Root),
			zap.Error(err))
		errors.Write(w, classify(err))
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// List returns report records, optionally filtered by ?name=.
func (h *CheckHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.archive.ListReports(r.URL.Query().Get("name"))
	if err != nil {
		errors.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *CheckHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rec, err := h.archive.GetReport(id)
	if err != nil {
		errors.Write(w, notFound(err, "report not found: "+id))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func notFound(err error, message string) error {
	if stderrors.Is(err, archive.ErrNotFound) {
		return errors.NotFound(message)
	}
	return err
}

// classify maps check failures caused by the request or by a competing
// run to client errors.
func classify(err error) error {
	switch {
	case stderrors.Is(err, tree.ErrNotFound), stderrors.Is(err, tree.ErrNotADirectory):
		return errors.ValidationError(err.Error(), map[string]string{"root": "not a readable directory"})
	case stderrors.Is(err, archive.ErrConflict):
		return errors.Conflict(err.Error())
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
