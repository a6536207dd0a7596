package services

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/vocabustudy/admin-portal/googleapi"
	"go.uber.org/zap"
)

const testProject = "vocab-test"

// fakeGoogle serves canned responses keyed by request path and records request bodies
type fakeGoogle struct {
	t        *testing.T
	server   *httptest.Server
	mu       sync.Mutex
	routes   map[string]func(w http.ResponseWriter, body map[string]interface{})
	requests map[string][]*http.Request
	bodies   map[string][]map[string]interface{}
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	f := &fakeGoogle{
		t:        t,
		routes:   map[string]func(http.ResponseWriter, map[string]interface{}){},
		requests: map[string][]*http.Request{},
		bodies:   map[string][]map[string]interface{}{},
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGoogle) serve(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}

	f.mu.Lock()
	handler, ok := f.routes[r.URL.Path]
	f.requests[r.URL.Path] = append(f.requests[r.URL.Path], r)
	f.bodies[r.URL.Path] = append(f.bodies[r.URL.Path], body)
	f.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"status":"NOT_FOUND"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	handler(w, body)
}

func (f *fakeGoogle) handle(path string, handler func(w http.ResponseWriter, body map[string]interface{})) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[path] = handler
}

// respond registers a fixed JSON response for path
func (f *fakeGoogle) respond(path, response string) {
	f.handle(path, func(w http.ResponseWriter, _ map[string]interface{}) {
		_, _ = w.Write([]byte(response))
	})
}

func (f *fakeGoogle) fail(path string, status int) {
	f.handle(path, func(w http.ResponseWriter, _ map[string]interface{}) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":{"code":` + strconv.Itoa(status) + `}}`))
	})
}

func (f *fakeGoogle) calls(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests[path])
}

func (f *fakeGoogle) lastBody(path string) map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	bodies := f.bodies[path]
	if len(bodies) == 0 {
		return nil
	}
	return bodies[len(bodies)-1]
}

func (f *fakeGoogle) lastRequest(path string) *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	reqs := f.requests[path]
	if len(reqs) == 0 {
		return nil
	}
	return reqs[len(reqs)-1]
}

func (f *fakeGoogle) client() *googleapi.Client {
	return googleapi.NewClient(googleapi.StaticTokenSource("owner"), f.server.Client(), nil, zap.NewNop())
}
