package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/portal/internal/backend/backendtest"
)

func makeConfig(t *testing.T) (Config, *miniredis.Miniredis) {
	t.Helper()

	rs := miniredis.RunT(t)
	srv := backendtest.New(t)

	c := DefaultConfig()
	c.Backend.BaseURL = srv.URL
	c.Redis.Pubsub.Addrs = []string{rs.Addr()}
	c.Redis.Store.Addrs = []string{rs.Addr()}
	c.Account.PasswordKey = "0123456789abcdef0123456789abcdef"
	return c, rs
}

func TestInit(t *testing.T) {
	c, rs := makeConfig(t)

	s, err := Init(c)
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		s.http.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get("/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = get("/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")

	assert.Equal(t, http.StatusOK, get("/debug/pprof/").Code)
	assert.Equal(t, http.StatusUnauthorized, get("/api/v1/questions").Code)

	rs.SetError("LOADING")
	assert.Equal(t, http.StatusServiceUnavailable, get("/healthz").Code)
}

func TestInit_Errors(t *testing.T) {
	tests := map[string]func(c *Config){
		"missing backend url": func(c *Config) {
			c.Backend.BaseURL = ""
		},
		"unreachable redis": func(c *Config) {
			c.Redis.Store.Addrs = []string{"127.0.0.1:1"}
		},
		"short password key": func(c *Config) {
			c.Account.PasswordKey = "short"
		},
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c, _ := makeConfig(t)
			mutate(&c)

			_, err := Init(c)
			assert.Error(t, err)
		})
	}
}
