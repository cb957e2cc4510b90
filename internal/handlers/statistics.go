package handlers

import (
	"net/http"
	"sort"

	"diaryx/internal/models"
)

// ProjectSummary is the time logged against one project.
type ProjectSummary struct {
	Project      string  `json:"project"`
	TotalMinutes int     `json:"total_minutes"`
	Count        int     `json:"count"`
	Percentage   float64 `json:"percentage"`
}

// Summary aggregates the entries of a listing.
type Summary struct {
	TotalMinutes  int              `json:"total_minutes"`
	EntryCount    int              `json:"entry_count"`
	AverageEnergy *float64         `json:"average_energy"`
	AverageFocus  *float64         `json:"average_focus"`
	Projects      []ProjectSummary `json:"projects"`
}

// Summary handles GET /api/v1/time-entries/summary. It takes the same
// filters as ListEntries and aggregates in process.
func (h *Handlers) Summary(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, h.logger, http.StatusOK, Summarize(entries))
}

// Summarize totals minutes overall and per project, and averages the
// energy and focus ratings of the entries that carry them.
func Summarize(entries []models.TimeEntry) Summary {
	s := Summary{EntryCount: len(entries), Projects: []ProjectSummary{}}

	byProject := make(map[string]*ProjectSummary)
	var energySum, focusSum, energyN, focusN int
	for _, e := range entries {
		s.TotalMinutes += e.DurationMinutes

		name := ""
		if e.Project != nil {
			name = *e.Project
		}
		p, ok := byProject[name]
		if !ok {
			p = &ProjectSummary{Project: name}
			byProject[name] = p
		}
		p.TotalMinutes += e.DurationMinutes
		p.Count++

		if e.Energy != nil {
			energySum += *e.Energy
			energyN++
		}
		if e.Focus != nil {
			focusSum += *e.Focus
			focusN++
		}
	}

	s.AverageEnergy = average(energySum, energyN)
	s.AverageFocus = average(focusSum, focusN)

	for _, p := range byProject {
		if s.TotalMinutes > 0 {
			p.Percentage = float64(p.TotalMinutes) / float64(s.TotalMinutes) * 100
		}
		s.Projects = append(s.Projects, *p)
	}
	sort.Slice(s.Projects, func(i, j int) bool {
		if s.Projects[i].TotalMinutes != s.Projects[j].TotalMinutes {
			return s.Projects[i].TotalMinutes > s.Projects[j].TotalMinutes
		}
		return s.Projects[i].Project < s.Projects[j].Project
	})
	return s
}

func average(sum, n int) *float64 {
	if n == 0 {
		return nil
	}
	avg := float64(sum) / float64(n)
	return &avg
}
