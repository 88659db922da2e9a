// Package testutil provides a configurable mock Opsgenie API server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockAlert is one alert record held by the mock server. CreatedAt drives
// time range filtering and sort order.
type MockAlert struct {
	ID        string
	Message   string
	Status    string
	Priority  string
	CreatedAt time.Time
	Logs      []map[string]any
	Extra     map[string]any
}

// MockOpsgenie is a mock Opsgenie API backed by httptest. It understands the
// subset of the alert search grammar the exporter emits: createdAt bounds and
// an optional status clause, with limit/offset paging and paging.next URLs.
type MockOpsgenie struct {
	server *httptest.Server

	mu         sync.RWMutex
	alerts     []MockAlert
	handlers   map[string]http.HandlerFunc
	failDetail map[string]bool
	failLogs   map[string]bool
	listFail   func(query string) bool
	headers    map[string]string

	// Tracking
	ListCalls      int
	DetailCalls    int
	LogCalls       int
	LastAuthHeader string
	LastListQuery  string
}

var (
	createdAfterRe  = regexp.MustCompile(`createdAt>=(\d+)`)
	createdBeforeRe = regexp.MustCompile(`createdAt<=(\d+)`)
	statusRe        = regexp.MustCompile(`status:(\w+)`)
)

// NewMockOpsgenie creates and starts a mock server.
func NewMockOpsgenie() *MockOpsgenie {
	mock := &MockOpsgenie{
		handlers:   make(map[string]http.HandlerFunc),
		failDetail: make(map[string]bool),
		failLogs:   make(map[string]bool),
		headers:    make(map[string]string),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.route))
	return mock
}

// BaseURL returns the mock API root, suitable for gateway.Config.BaseURL.
func (m *MockOpsgenie) BaseURL() string {
	return m.server.URL + "/v2"
}

// Close shuts down the mock server.
func (m *MockOpsgenie) Close() {
	m.server.Close()
}

// SetAlerts replaces the alert store.
func (m *MockOpsgenie) SetAlerts(alerts []MockAlert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = alerts
}

// SetHandler overrides handling for an exact path (e.g. "/v2/alerts").
func (m *MockOpsgenie) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// FailDetail makes GET /v2/alerts/{id} return 500 for the given id.
func (m *MockOpsgenie) FailDetail(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failDetail[id] = true
}

// FailLogs makes GET /v2/alerts/{id}/logs return 500 for the given id.
func (m *MockOpsgenie) FailLogs(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failLogs[id] = true
}

// FailListWhen installs a predicate over the raw search query; matching list
// requests return 500. Used to fail individual time chunks.
func (m *MockOpsgenie) FailListWhen(pred func(query string) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listFail = pred
}

// SetResponseHeader adds a header to every response, e.g. X-RateLimit-State.
func (m *MockOpsgenie) SetResponseHeader(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headers[key] = value
}

// GenAlerts builds n alerts with ids "alert-0".."alert-n-1", spaced by
// interval walking backward from newest. Each carries an AcknowledgeAlert
// log entry so detail processing has something to chew on.
func GenAlerts(n int, newest time.Time, interval time.Duration) []MockAlert {
	alerts := make([]MockAlert, 0, n)
	for i := 0; i < n; i++ {
		created := newest.Add(-time.Duration(i) * interval)
		alerts = append(alerts, MockAlert{
			ID:        fmt.Sprintf("alert-%d", i),
			Message:   fmt.Sprintf("mock alert %d", i),
			Status:    "open",
			Priority:  "P3",
			CreatedAt: created,
			Logs: []map[string]any{
				{
					"type":      "AcknowledgeAlert",
					"owner":     "ops@example.com",
					"createdAt": created.Add(5 * time.Minute).Format(time.RFC3339),
				},
			},
		})
	}
	return alerts
}

func (m *MockOpsgenie) route(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.LastAuthHeader = r.Header.Get("Authorization")
	handler, overridden := m.handlers[r.URL.Path]
	for key, value := range m.headers {
		w.Header().Set(key, value)
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if overridden {
		handler(w, r)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v2")
	switch {
	case path == "/alerts":
		m.handleList(w, r)
	case strings.HasPrefix(path, "/alerts/") && strings.HasSuffix(path, "/logs"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/alerts/"), "/logs")
		m.handleLogs(w, id)
	case strings.HasPrefix(path, "/alerts/"):
		m.handleDetail(w, strings.TrimPrefix(path, "/alerts/"))
	default:
		writeError(w, http.StatusNotFound, "no such endpoint")
	}
}

func (m *MockOpsgenie) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")

	m.mu.Lock()
	m.ListCalls++
	m.LastListQuery = query
	fail := m.listFail != nil && m.listFail(query)
	alerts := make([]MockAlert, len(m.alerts))
	copy(alerts, m.alerts)
	m.mu.Unlock()

	if fail {
		writeError(w, http.StatusInternalServerError, "injected list failure")
		return
	}

	selected := filterAlerts(alerts, query)
	sort.Slice(selected, func(i, j int) bool {
		return selected[i].CreatedAt.After(selected[j].CreatedAt)
	})

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n < limit {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	if offset > len(selected) {
		offset = len(selected)
	}
	end := offset + limit
	if end > len(selected) {
		end = len(selected)
	}
	page := selected[offset:end]

	data := make([]map[string]any, 0, len(page))
	for _, a := range page {
		data = append(data, summaryJSON(a))
	}

	resp := map[string]any{"data": data}
	if end < len(selected) {
		next := *r.URL
		next.Scheme = "http"
		next.Host = strings.TrimPrefix(m.server.URL, "http://")
		q := next.Query()
		q.Set("offset", strconv.Itoa(end))
		next.RawQuery = q.Encode()
		resp["paging"] = map[string]any{"next": next.String()}
	}

	writeJSON(w, resp)
}

func (m *MockOpsgenie) handleDetail(w http.ResponseWriter, id string) {
	m.mu.Lock()
	m.DetailCalls++
	fail := m.failDetail[id]
	alerts := make([]MockAlert, len(m.alerts))
	copy(alerts, m.alerts)
	m.mu.Unlock()

	if fail {
		writeError(w, http.StatusInternalServerError, "injected detail failure")
		return
	}

	for _, a := range alerts {
		if a.ID == id {
			writeJSON(w, map[string]any{"data": summaryJSON(a)})
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("alert %s not found", id))
}

func (m *MockOpsgenie) handleLogs(w http.ResponseWriter, id string) {
	m.mu.Lock()
	m.LogCalls++
	fail := m.failLogs[id]
	alerts := make([]MockAlert, len(m.alerts))
	copy(alerts, m.alerts)
	m.mu.Unlock()

	if fail {
		writeError(w, http.StatusInternalServerError, "injected logs failure")
		return
	}

	for _, a := range alerts {
		if a.ID == id {
			logs := a.Logs
			if logs == nil {
				logs = []map[string]any{}
			}
			writeJSON(w, map[string]any{"data": logs})
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("alert %s not found", id))
}

// filterAlerts applies the createdAt bounds and status clause of the search
// expression. Unknown clauses are ignored.
func filterAlerts(alerts []MockAlert, query string) []MockAlert {
	var afterUnix, beforeUnix int64
	afterUnix = -1
	beforeUnix = -1

	if match := createdAfterRe.FindStringSubmatch(query); match != nil {
		afterUnix, _ = strconv.ParseInt(match[1], 10, 64)
	}
	if match := createdBeforeRe.FindStringSubmatch(query); match != nil {
		beforeUnix, _ = strconv.ParseInt(match[1], 10, 64)
	}
	status := ""
	if match := statusRe.FindStringSubmatch(query); match != nil {
		status = match[1]
	}

	selected := make([]MockAlert, 0, len(alerts))
	for _, a := range alerts {
		unix := a.CreatedAt.Unix()
		if afterUnix >= 0 && unix < afterUnix {
			continue
		}
		if beforeUnix >= 0 && unix > beforeUnix {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		selected = append(selected, a)
	}
	return selected
}

func summaryJSON(a MockAlert) map[string]any {
	data := map[string]any{
		"id":        a.ID,
		"message":   a.Message,
		"status":    a.Status,
		"priority":  a.Priority,
		"createdAt": a.CreatedAt.Format(time.RFC3339),
	}
	for key, value := range a.Extra {
		data[key] = value
	}
	return data
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"message": message})
}
