// Package postgresttest provides an in-memory PostgREST server for tests.
// It understands the subset of the protocol that postgrest-go emits for a
// single-table CRUD client: eq/gte/lte filters, or=(...) groups, comma
// separated order terms, and the return=representation preference.
package postgresttest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Row is a stored record.
type Row map[string]any

// Server is a fake PostgREST endpoint. Every table gets an auto-increment
// id plus created_at and updated_at columns.
type Server struct {
	*httptest.Server

	Key string

	mu       sync.Mutex
	tables   map[string][]Row
	nextID   int64
	requests []*http.Request
	failNext *failure
	now      func() time.Time
}

type failure struct {
	status int
	body   string
}

// NewServer starts a fake server that accepts key as its API key.
func NewServer(key string) *Server {
	s := &Server{
		Key:    key,
		tables: make(map[string][]Row),
		nextID: 1,
		now:    time.Now,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Rows returns a copy of the rows in table.
func (s *Server) Rows(table string) []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Row, len(s.tables[table]))
	copy(out, s.tables[table])
	return out
}

// Requests returns every request seen so far.
func (s *Server) Requests() []*http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*http.Request(nil), s.requests...)
}

// FailNext makes the next request fail with status and a PostgREST error body.
func (s *Server) FailNext(status int, code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, _ := json.Marshal(map[string]string{"code": code, "message": message})
	s.failNext = &failure{status: status, body: string(body)}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r.Clone(r.Context()))

	if r.Header.Get("apikey") != s.Key || r.Header.Get("Authorization") != "Bearer "+s.Key {
		writeError(w, http.StatusUnauthorized, "PGRST301", "invalid API key")
		return
	}
	if f := s.failNext; f != nil {
		s.failNext = nil
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		fmt.Fprint(w, f.body)
		return
	}

	table, ok := strings.CutPrefix(r.URL.Path, "/rest/v1/")
	if !ok || table == "" || strings.Contains(table, "/") {
		writeError(w, http.StatusNotFound, "PGRST125", "invalid path")
		return
	}

	filters, order, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "PGRST100", err.Error())
		return
	}

	var result []Row
	switch r.Method {
	case http.MethodGet:
		result = s.matching(table, filters)
		sortRows(result, order)
	case http.MethodPost:
		var body json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "PGRST102", "invalid body")
			return
		}
		rows, err := decodeRows(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "PGRST102", err.Error())
			return
		}
		for _, row := range rows {
			stamp := s.now().UTC().Format(time.RFC3339Nano)
			row["id"] = float64(s.nextID)
			row["created_at"] = stamp
			row["updated_at"] = stamp
			s.nextID++
			s.tables[table] = append(s.tables[table], row)
			result = append(result, cloneRow(row))
		}
	case http.MethodPatch:
		var patch Row
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "PGRST102", "invalid body")
			return
		}
		stamp := s.now().UTC().Format(time.RFC3339Nano)
		for _, row := range s.tables[table] {
			if !matches(row, filters) {
				continue
			}
			for k, v := range patch {
				row[k] = v
			}
			row["updated_at"] = stamp
			result = append(result, cloneRow(row))
		}
	case http.MethodDelete:
		kept := s.tables[table][:0]
		for _, row := range s.tables[table] {
			if matches(row, filters) {
				result = append(result, row)
				continue
			}
			kept = append(kept, row)
		}
		s.tables[table] = kept
	default:
		writeError(w, http.StatusMethodNotAllowed, "PGRST000", "method not allowed")
		return
	}

	if r.Method != http.MethodGet && !wantsRepresentation(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if result == nil {
		result = []Row{}
	}
	w.Header().Set("Content-Type", "application/json")
	status := http.StatusOK
	if r.Method == http.MethodPost {
		status = http.StatusCreated
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(result)
}

type filter struct {
	column string
	op     string
	value  string
	// anyOf, when set, makes this a group that matches if any member does.
	anyOf []filter
}

type orderBy struct {
	column string
	desc   bool
}

func wantsRepresentation(r *http.Request) bool {
	for _, pref := range strings.Split(r.Header.Get("Prefer"), ",") {
		if strings.TrimSpace(pref) == "return=representation" {
			return true
		}
	}
	return false
}

func parseQuery(r *http.Request) ([]filter, []orderBy, error) {
	var filters []filter
	var order []orderBy
	for key, values := range r.URL.Query() {
		for _, v := range values {
			switch key {
			case "select":
				if v != "*" {
					return nil, nil, fmt.Errorf("unsupported select %q", v)
				}
			case "order":
				for _, term := range strings.Split(v, ",") {
					parts := strings.Split(term, ".")
					order = append(order, orderBy{column: parts[0], desc: len(parts) > 1 && parts[1] == "desc"})
				}
			case "or":
				if !strings.HasPrefix(v, "(") || !strings.HasSuffix(v, ")") {
					return nil, nil, fmt.Errorf("malformed or group %q", v)
				}
				var group []filter
				for _, member := range strings.Split(v[1:len(v)-1], ",") {
					column, cond, ok := strings.Cut(member, ".")
					if !ok {
						return nil, nil, fmt.Errorf("malformed or member %q", member)
					}
					f, err := parseFilter(column, cond)
					if err != nil {
						return nil, nil, err
					}
					group = append(group, f)
				}
				filters = append(filters, filter{anyOf: group})
			default:
				f, err := parseFilter(key, v)
				if err != nil {
					return nil, nil, err
				}
				filters = append(filters, f)
			}
		}
	}
	return filters, order, nil
}

func parseFilter(column, cond string) (filter, error) {
	op, value, ok := strings.Cut(cond, ".")
	if !ok {
		return filter{}, fmt.Errorf("malformed filter %s=%s", column, cond)
	}
	switch op {
	case "eq", "gte", "lte":
	default:
		return filter{}, fmt.Errorf("unsupported operator %q", op)
	}
	return filter{column: column, op: op, value: value}, nil
}

func (s *Server) matching(table string, filters []filter) []Row {
	var out []Row
	for _, row := range s.tables[table] {
		if matches(row, filters) {
			out = append(out, cloneRow(row))
		}
	}
	return out
}

func matches(row Row, filters []filter) bool {
	for _, f := range filters {
		if !f.match(row) {
			return false
		}
	}
	return true
}

func (f filter) match(row Row) bool {
	if f.anyOf != nil {
		for _, member := range f.anyOf {
			if member.match(row) {
				return true
			}
		}
		return false
	}
	v, ok := row[f.column]
	if !ok || v == nil {
		return false
	}
	c := compare(v, f.value)
	switch f.op {
	case "eq":
		return c == 0
	case "gte":
		return c >= 0
	case "lte":
		return c <= 0
	}
	return false
}

// compare orders a stored value against a filter literal, numerically or
// chronologically when both sides allow it.
func compare(stored any, literal string) int {
	switch v := stored.(type) {
	case float64:
		if n, err := strconv.ParseFloat(literal, 64); err == nil {
			switch {
			case v < n:
				return -1
			case v > n:
				return 1
			}
			return 0
		}
	case string:
		if a, err := time.Parse(time.RFC3339Nano, v); err == nil {
			if b, err := time.Parse(time.RFC3339Nano, literal); err == nil {
				return a.Compare(b)
			}
		}
		return strings.Compare(v, literal)
	}
	return strings.Compare(fmt.Sprint(stored), literal)
}

func sortRows(rows []Row, order []orderBy) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range order {
			c := compare(rows[i][o.column], fmt.Sprint(rows[j][o.column]))
			if c == 0 {
				continue
			}
			if o.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func decodeRows(body json.RawMessage) ([]Row, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var rows []Row
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	}
	var row Row
	if err := json.Unmarshal(body, &row); err != nil {
		return nil, err
	}
	return []Row{row}, nil
}

func cloneRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
}
