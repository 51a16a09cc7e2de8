package execution_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/portal/internal/auth"
	"github.com/victornm/portal/internal/backend"
	"github.com/victornm/portal/internal/backend/backendtest"
	"github.com/victornm/portal/internal/domain"
	"github.com/victornm/portal/internal/execution"
)

var testCases = []domain.TestCase{
	{SampleInput: "2", ExpectedOutput: "4", Visibility: domain.VisibilityVisible},
	{SampleInput: "3", ExpectedOutput: "9", Visibility: domain.VisibilityHidden},
}

func TestService_Execute(t *testing.T) {
	tests := map[string]struct {
		arrange func(srv *backendtest.Server)
		req     execution.ExecuteRequest
		want    domain.ExecutionResult
	}{
		"array response should map to a list": {
			arrange: func(srv *backendtest.Server) {
				srv.JSON(http.MethodPost, "/codingQuestions/execute", http.StatusOK, []any{"4", "9"})
			},
			want: domain.ExecutionResult{Kind: domain.ResultList, Outputs: []string{"4", "9"}},
		},
		"null and non-string elements should be rendered": {
			arrange: func(srv *backendtest.Server) {
				srv.JSON(http.MethodPost, "/codingQuestions/execute", http.StatusOK, []any{nil, 350})
			},
			want: domain.ExecutionResult{Kind: domain.ResultList, Outputs: []string{"", "350"}},
		},
		"shorter array should be kept as is": {
			arrange: func(srv *backendtest.Server) {
				srv.JSON(http.MethodPost, "/codingQuestions/execute", http.StatusOK, []any{"4"})
			},
			want: domain.ExecutionResult{Kind: domain.ResultList, Outputs: []string{"4"}},
		},
		"scalar response should be wrapped": {
			arrange: func(srv *backendtest.Server) {
				srv.JSON(http.MethodPost, "/codingQuestions/execute", http.StatusOK, "Compilation failed: ';' expected")
			},
			want: domain.ExecutionResult{Kind: domain.ResultScalar, Outputs: []string{"Compilation failed: ';' expected"}},
		},
		"plain text response should be wrapped": {
			arrange: func(srv *backendtest.Server) {
				srv.Text(http.MethodPost, "/codingQuestions/execute", http.StatusOK, "120")
			},
			want: domain.ExecutionResult{Kind: domain.ResultScalar, Outputs: []string{"120"}},
		},
		"backend error should become one error entry with its message": {
			arrange: func(srv *backendtest.Server) {
				srv.JSON(http.MethodPost, "/codingQuestions/execute", http.StatusInternalServerError, gin.H{"message": "runner busy"})
			},
			want: domain.ExecutionResult{Kind: domain.ResultError, Outputs: []string{"Error: runner busy"}},
		},
		"backend error without message should use the status text": {
			arrange: func(srv *backendtest.Server) {
				srv.JSON(http.MethodPost, "/codingQuestions/execute", http.StatusBadGateway, gin.H{"error": "x"})
			},
			want: domain.ExecutionResult{Kind: domain.ResultError, Outputs: []string{"Error: Request failed with status code 502"}},
		},
		"unsupported language should become an error entry": {
			arrange: func(srv *backendtest.Server) {},
			req:     execution.ExecuteRequest{Language: "ruby", TestCases: testCases},
			want:    domain.ExecutionResult{Kind: domain.ResultError, Outputs: []string{`Error: unsupported language "ruby"`}},
		},
		"no test cases should become an error entry": {
			arrange: func(srv *backendtest.Server) {},
			req:     execution.ExecuteRequest{Language: domain.LanguagePython},
			want:    domain.ExecutionResult{Kind: domain.ResultError, Outputs: []string{"Error: no test cases to run"}},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			srv := backendtest.New(t)
			tt.arrange(srv)

			req := tt.req
			if req.Language == "" {
				req = execution.ExecuteRequest{Language: domain.LanguageJava, Code: "class Main {}", TestCases: testCases}
			}

			s := execution.NewService(execution.Config{Backend: srv.Client()})
			got := s.Execute(context.Background(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_Execute_SendsRequest(t *testing.T) {
	srv := backendtest.New(t)
	srv.JSON(http.MethodPost, "/codingQuestions/execute", http.StatusOK, []string{"4", "9"})

	s := execution.NewService(execution.Config{Backend: srv.Client()})
	_ = s.Execute(context.Background(), execution.ExecuteRequest{
		Language:  domain.LanguagePython,
		Code:      "",
		TestCases: testCases,
	})

	r, ok := srv.Last("/codingQuestions/execute")
	require.True(t, ok)
	assert.Equal(t, "Bearer "+backendtest.Token, r.Authorization)

	var body domain.ExecutionRequest
	require.NoError(t, json.Unmarshal(r.Body, &body))
	assert.Equal(t, domain.LanguagePython, body.Language)
	assert.Equal(t, "", body.Code, "empty code is still sent")
	assert.Equal(t, testCases, body.TestCases)
}

func TestService_Execute_TransportFailures(t *testing.T) {
	t.Run("unreachable backend", func(t *testing.T) {
		srv := backendtest.New(t)
		c := srv.Client()
		srv.Close()

		got := execution.NewService(execution.Config{Backend: c}).Execute(context.Background(), execution.ExecuteRequest{
			Language:  domain.LanguageJava,
			TestCases: testCases,
		})
		require.Equal(t, domain.ResultError, got.Kind)
		require.Len(t, got.Outputs, 1)
		assert.Regexp(t, `^Error: .+`, got.Outputs[0])
	})

	t.Run("timeout", func(t *testing.T) {
		srv := backendtest.New(t)
		srv.Handle(http.MethodPost, "/codingQuestions/execute", func(c *gin.Context) {
			time.Sleep(200 * time.Millisecond)
			c.JSON(http.StatusOK, []string{"late"})
		})

		c := backend.NewClient(backend.Config{
			BaseURL:     srv.URL,
			Timeout:     20 * time.Millisecond,
			Credentials: auth.Static(backendtest.Token),
		})

		got := execution.NewService(execution.Config{Backend: c}).Execute(context.Background(), execution.ExecuteRequest{
			Language:  domain.LanguageJava,
			TestCases: testCases,
		})
		assert.Equal(t, domain.ExecutionResult{Kind: domain.ResultError, Outputs: []string{"Error: request timed out"}}, got)
	})

	t.Run("missing token", func(t *testing.T) {
		srv := backendtest.New(t)
		c := backend.NewClient(backend.Config{BaseURL: srv.URL, Credentials: auth.Static("")})

		got := execution.NewService(execution.Config{Backend: c}).Execute(context.Background(), execution.ExecuteRequest{
			Language:  domain.LanguageJava,
			TestCases: testCases,
		})
		assert.Equal(t, []string{"Error: No authentication token found. Please log in."}, got.Outputs)
		assert.Empty(t, srv.Requests(), "nothing should be sent without a token")
	})
}
