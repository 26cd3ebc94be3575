package parasut

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

// recordedCall is one non-token request seen by the mock API.
type recordedCall struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   string
}

// mockAPI is a fake Parasut API: /oauth/token hands out "tok<N>" and every
// other path answers from routes (keyed "METHOD /path") or with {"data":{}}.
type mockAPI struct {
	srv        *httptest.Server
	tokenCalls atomic.Int32
	expiresIn  int

	mu     sync.Mutex
	calls  []recordedCall
	routes map[string]func(w http.ResponseWriter, r *http.Request)
}

func newMockAPI(t *testing.T) *mockAPI {
	t.Helper()
	m := &mockAPI{expiresIn: 3600, routes: map[string]func(http.ResponseWriter, *http.Request){}}
	m.srv = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.srv.Close)
	return m
}

func (m *mockAPI) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/oauth/token" {
		n := m.tokenCalls.Add(1)
		writeJSON(w, map[string]any{"access_token": "tok" + strconv.Itoa(int(n)), "expires_in": m.expiresIn})
		return
	}

	body, _ := io.ReadAll(r.Body)
	m.mu.Lock()
	m.calls = append(m.calls, recordedCall{
		Method: r.Method,
		Path:   r.URL.EscapedPath(),
		Query:  r.URL.RawQuery,
		Auth:   r.Header.Get("Authorization"),
		Body:   string(body),
	})
	h := m.routes[r.Method+" "+r.URL.Path]
	m.mu.Unlock()

	if h != nil {
		h(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"data":{}}`))
}

func (m *mockAPI) handle(route string, h func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[route] = h
}

func (m *mockAPI) recorded() []recordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recordedCall(nil), m.calls...)
}

func (m *mockAPI) lastCall(t *testing.T) recordedCall {
	t.Helper()
	calls := m.recorded()
	if len(calls) == 0 {
		t.Fatal("no API calls recorded")
	}
	return calls[len(calls)-1]
}

// newTestClient returns a Client for company 123 pointed at the mock API.
func newTestClient(t *testing.T, m *mockAPI, mutate ...func(*Options)) *Client {
	t.Helper()
	opts := Options{
		ClientID:     "cid",
		ClientSecret: "sec",
		Username:     "user@example.com",
		Password:     "pw",
		CompanyID:    "123",
		BaseURL:      m.srv.URL,
		InstanceID:   "acme",
		HTTPClient:   m.srv.Client(),
		Logger:       zap.NewNop(),
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	return New(opts)
}

// writeJSON encodes v as JSON into w.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic("test helper writeJSON: " + err.Error())
	}
}
