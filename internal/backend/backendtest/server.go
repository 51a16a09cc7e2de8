// Package backendtest runs a fake job portal backend for tests.
package backendtest

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/victornm/portal/internal/auth"
	"github.com/victornm/portal/internal/backend"
)

const Token = "test-token"

// Server is a fake backend. Routes are registered with Handle; every request is recorded.
type Server struct {
	*httptest.Server

	engine *gin.Engine

	mu       sync.Mutex
	requests []Recorded
}

// Recorded is a request seen by the fake backend.
type Recorded struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	RequestID     string
	Body          []byte
}

func New(t *testing.T) *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{engine: gin.New()}
	s.engine.Use(s.record)
	s.Server = httptest.NewServer(s.engine)
	t.Cleanup(s.Close)

	return s
}

func (s *Server) Handle(method, path string, h gin.HandlerFunc) {
	s.engine.Handle(method, path, h)
}

// JSON registers a route answering with status and body encoded as JSON.
func (s *Server) JSON(method, path string, status int, body any) {
	s.Handle(method, path, func(c *gin.Context) {
		c.JSON(status, body)
	})
}

// Text registers a route answering with a plain-text body.
func (s *Server) Text(method, path string, status int, body string) {
	s.Handle(method, path, func(c *gin.Context) {
		c.String(status, body)
	})
}

// Client returns a backend client pointed at the fake, authenticated with Token.
func (s *Server) Client() *backend.Client {
	return backend.NewClient(backend.Config{
		BaseURL:     s.URL,
		Timeout:     5 * time.Second,
		Credentials: auth.Static(Token),
	})
}

func (s *Server) Requests() []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Recorded(nil), s.requests...)
}

// Last returns the last recorded request for path, and false when there was none.
func (s *Server) Last(path string) (Recorded, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].Path == path {
			return s.requests[i], true
		}
	}
	return Recorded{}, false
}

func (s *Server) record(c *gin.Context) {
	body, _ := c.GetRawData()
	c.Request.Body = http.NoBody
	if len(body) > 0 {
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
	}

	s.mu.Lock()
	s.requests = append(s.requests, Recorded{
		Method:        c.Request.Method,
		Path:          c.Request.URL.Path,
		Query:         c.Request.URL.RawQuery,
		Authorization: c.GetHeader("Authorization"),
		RequestID:     c.GetHeader(backend.RequestIDHeader),
		Body:          body,
	})
	s.mu.Unlock()

	c.Next()
}
