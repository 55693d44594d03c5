// internal/api/handlers.go
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"trix/internal/commit"
	trixerrors "trix/internal/errors"
	"trix/internal/logging"
	"trix/internal/show"
)

// Browser is the read-only view of a repository the API serves.
type Browser interface {
	Log(limit int) ([]*commit.Commit, error)
	Show(ref string) (*show.Report, error)
	Cat(ref string) ([]byte, error)
}

// DefaultLogLimit caps /api/log when no limit is given.
const DefaultLogLimit = 100

// HistoryHandler serves commit history and objects.
type HistoryHandler struct {
	repo   Browser
	logger *logging.Logger
}

func NewHistoryHandler(repo Browser, logger *logging.Logger) *HistoryHandler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &HistoryHandler{repo: repo, logger: logger}
}

// Routes registers every endpoint on a new mux.
func (h *HistoryHandler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", Health)
	mux.HandleFunc("GET /api/log", h.Log)
	mux.HandleFunc("GET /api/commits/{hash}", h.Commit)
	mux.HandleFunc("GET /api/objects/{hash}", h.Object)
	return mux
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *HistoryHandler) Log(w http.ResponseWriter, r *http.Request) {
	limit := DefaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, r, trixerrors.ValidationError("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	commits, err := h.repo.Log(limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	views := make([]CommitView, 0, len(commits))
	for _, c := range commits {
		views = append(views, NewCommitView(c))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *HistoryHandler) Commit(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	if hash == "" {
		h.writeError(w, r, trixerrors.ValidationError("missing hash"))
		return
	}

	report, err := h.repo.Show(hash)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewReportView(report))
}

func (h *HistoryHandler) Object(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	if hash == "" {
		h.writeError(w, r, trixerrors.ValidationError("missing hash"))
		return
	}

	data, err := h.repo.Cat(hash)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

type ErrorBody struct {
	Error struct {
		Type    trixerrors.ErrorType `json:"type,omitempty"`
		Message string               `json:"message"`
	} `json:"error"`
}

func (h *HistoryHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := trixerrors.StatusCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithRequestID(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}

	var body ErrorBody
	body.Error.Type = trixerrors.TypeOf(err)
	body.Error.Message = err.Error()
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
