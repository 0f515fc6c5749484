// Package mondaytest provides a fake GraphQL endpoint that records calls.
package mondaytest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"

	"github.com/dt-pm-tools/board-sync/internal/config"
)

// Token is the API token the fake server expects.
const Token = "test-token"

var operationName = regexp.MustCompile(`^\s*(?:query|mutation)\s+(\w+)`)

// Call is a recorded API request.
type Call struct {
	Operation string
	Query     string
	Variables map[string]any
	Header    http.Header
}

// Var returns a variable as a string, or "" if absent or not a string.
func (c Call) Var(name string) string {
	s, _ := c.Variables[name].(string)
	return s
}

// ColumnValues decodes the JSON encoded "values" variable of a mutation.
func (c Call) ColumnValues(t testing.TB) map[string]any {
	t.Helper()
	out := map[string]any{}
	if err := json.Unmarshal([]byte(c.Var("values")), &out); err != nil {
		t.Fatalf("decoding column values %q: %v", c.Var("values"), err)
	}
	return out
}

// Responder produces the status code and JSON body for a call.
type Responder func(call Call) (int, any)

// Server is a fake API endpoint.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	calls      []Call
	responders map[string]Responder
}

// NewServer starts a fake endpoint that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	s := &Server{responders: map[string]Responder{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// On registers a responder for an operation.
func (s *Server) On(op string, r Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responders[op] = r
}

// OnData answers an operation with 200 and {"data": data}.
func (s *Server) OnData(op string, data any) {
	s.On(op, func(Call) (int, any) {
		return http.StatusOK, map[string]any{"data": data}
	})
}

// Calls returns every recorded call in order.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns the recorded calls for one operation.
func (s *Server) CallsTo(op string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Operation == op {
			out = append(out, c)
		}
	}
	return out
}

// Config returns a valid config pointing at the fake server.
func (s *Server) Config() config.Config {
	cfg := config.Default()
	cfg.APIURL = s.URL
	cfg.Token = Token
	cfg.Target.BoardID = "100"
	return cfg
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var req struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	call := Call{Query: req.Query, Variables: req.Variables, Header: r.Header.Clone()}
	if m := operationName.FindStringSubmatch(req.Query); m != nil {
		call.Operation = m[1]
	}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	responder := s.responders[call.Operation]
	s.mu.Unlock()

	if r.Header.Get("Authorization") != Token {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"Not Authenticated"}]}`))
		return
	}
	if responder == nil {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]string{{"message": "unexpected operation " + call.Operation}},
		})
		return
	}

	status, out := responder(call)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(out)
}
