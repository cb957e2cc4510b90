package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"diaryx/internal/models"
	"diaryx/internal/storage"
)

// maxBodySize bounds inbound JSON payloads.
const maxBodySize = 1 << 20

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	store  storage.Store
	logger *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store storage.Store, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handlers{store: store, logger: logger}
}

// Routes registers every endpoint on mux.
func (h *Handlers) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Root)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	for _, base := range []string{"/api/v1/time-entries", "/api/v1/time-entries/{$}"} {
		mux.HandleFunc("POST "+base, h.CreateEntry)
		mux.HandleFunc("GET "+base, h.ListEntries)
	}
	mux.HandleFunc("POST /api/v1/time-entries/quick-add", h.QuickAdd)
	mux.HandleFunc("GET /api/v1/time-entries/summary", h.Summary)
	mux.HandleFunc("GET /api/v1/time-entries/{id}", h.GetEntry)
	mux.HandleFunc("PUT /api/v1/time-entries/{id}", h.UpdateEntry)
	mux.HandleFunc("DELETE /api/v1/time-entries/{id}", h.DeleteEntry)
}

// Root returns the welcome payload.
func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"message": "Welcome to DiaryX API"})
}

// Health is the liveness probe.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"status": "healthy"})
}

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("write response failed", "status", status, "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, detail string) {
	writeJSON(w, logger, status, errorBody{Detail: detail})
}

// writeStoreError maps a storage error to a response. Not-found maps to 404
// only when notFoundIs404 is set; a write that finds nothing after a
// successful existence check is a failed operation, not a missing entry.
func (h *Handlers) writeStoreError(w http.ResponseWriter, r *http.Request, action string, err error, notFoundIs404 bool) {
	if notFoundIs404 && errors.Is(err, storage.ErrNotFound) {
		writeError(w, h.logger, http.StatusNotFound, "Time entry not found")
		return
	}
	h.logger.Warn("storage call failed",
		"action", action,
		"error", err,
		"request_id", RequestIDFromContext(r.Context()),
	)
	writeError(w, h.logger, http.StatusBadRequest, fmt.Sprintf("Error %s: %v", action, err))
}

// decodeBody reads a JSON payload into dst and validates it. Any failure is
// returned as a message suitable for a 400 response.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("%s must be of type %s", typeErr.Field, typeErr.Type)
		}
		if errors.Is(err, models.ErrInvalidTimestamp) {
			return err
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return models.Validate(dst)
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid time entry id %q", r.PathValue("id"))
	}
	return id, nil
}

func userIDFrom(r *http.Request) string {
	return r.URL.Query().Get("user_id")
}
