package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"diaryx/internal/models"
)

// CreateEntry handles POST /api/v1/time-entries.
func (h *Handlers) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var in models.TimeEntryCreate
	if err := decodeBody(r, &in); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	h.create(w, r, in)
}

// QuickAdd handles POST /api/v1/time-entries/quick-add. Only the date is
// required; the duration is fixed at models.QuickAddDuration.
func (h *Handlers) QuickAdd(w http.ResponseWriter, r *http.Request) {
	var in models.TimeEntryQuickAdd
	if err := decodeBody(r, &in); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	h.create(w, r, in.ToCreate())
}

func (h *Handlers) create(w http.ResponseWriter, r *http.Request, in models.TimeEntryCreate) {
	entry, err := h.store.CreateEntry(r.Context(), in, userIDFrom(r))
	if err != nil {
		h.writeStoreError(w, r, "creating time entry", err, false)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, entry)
}

// ListEntries handles GET /api/v1/time-entries.
func (h *Handlers) ListEntries(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r.URL.Query())
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := h.store.ListEntries(r.Context(), filter)
	if err != nil {
		h.writeStoreError(w, r, "fetching time entries", err, false)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, entries)
}

// GetEntry handles GET /api/v1/time-entries/{id}.
func (h *Handlers) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	entry, err := h.store.GetEntry(r.Context(), id, userIDFrom(r))
	if err != nil {
		h.writeStoreError(w, r, "fetching time entry", err, true)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, entry)
}

// UpdateEntry handles PUT /api/v1/time-entries/{id}. The existence check and
// the update are two separate calls; nothing is held between them.
func (h *Handlers) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	var in models.TimeEntryCreate
	if err := decodeBody(r, &in); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	userID := userIDFrom(r)
	if _, err := h.store.GetEntry(r.Context(), id, userID); err != nil {
		h.writeStoreError(w, r, "updating time entry", err, true)
		return
	}
	entry, err := h.store.UpdateEntry(r.Context(), id, in, userID)
	if err != nil {
		h.writeStoreError(w, r, "updating time entry", err, false)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, entry)
}

// DeleteEntry handles DELETE /api/v1/time-entries/{id}.
func (h *Handlers) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	userID := userIDFrom(r)
	if _, err := h.store.GetEntry(r.Context(), id, userID); err != nil {
		h.writeStoreError(w, r, "deleting time entry", err, true)
		return
	}
	if err := h.store.DeleteEntry(r.Context(), id, userID); err != nil {
		h.writeStoreError(w, r, "deleting time entry", err, false)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"status": "deleted"})
}

// parseListFilter reads the optional start_date, end_date and user_id query
// parameters. A date-only end_date covers the whole of that day.
func parseListFilter(q url.Values) (models.ListFilter, error) {
	filter := models.ListFilter{UserID: q.Get("user_id")}

	if raw := q.Get("start_date"); raw != "" {
		start, err := models.ParseTimestamp(raw)
		if err != nil {
			return models.ListFilter{}, fmt.Errorf("start_date: %w", err)
		}
		filter.Start = start.Time
	}
	if raw := q.Get("end_date"); raw != "" {
		end, err := models.ParseTimestamp(raw)
		if err != nil {
			return models.ListFilter{}, fmt.Errorf("end_date: %w", err)
		}
		filter.End = end.Time
		if models.IsDateOnly(raw) {
			filter.End = end.AddDate(0, 0, 1).Add(-time.Microsecond)
		}
	}
	if !filter.Start.IsZero() && !filter.End.IsZero() && filter.Start.After(filter.End) {
		return models.ListFilter{}, errors.New("start_date must not be after end_date")
	}
	return filter, nil
}
