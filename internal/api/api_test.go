package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/portal/internal/account"
	"github.com/victornm/portal/internal/api"
	"github.com/victornm/portal/internal/backend"
	"github.com/victornm/portal/internal/backend/backendtest"
	"github.com/victornm/portal/internal/catalog"
	"github.com/victornm/portal/internal/event"
	"github.com/victornm/portal/internal/execution"
	"github.com/victornm/portal/internal/jobs"
	"github.com/victornm/portal/internal/leaderboard"
	"github.com/victornm/portal/internal/submission"
	"github.com/victornm/portal/internal/videos"
)

var question = gin.H{
	"id":           3,
	"questionName": "Squares",
	"description":  "Print n*n",
	"complexity":   "Easy",
	"constraints":  "1 <= n <= 100",
	"testCases": []gin.H{
		{"sampleInput": "2", "expectedOutput": "4", "visibility": "visible"},
		{"sampleInput": "3", "expectedOutput": "9", "visibility": "visible"},
		{"sampleInput": "4", "expectedOutput": "16", "visibility": "hidden"},
	},
}

func TestAPI_Authentication(t *testing.T) {
	tests := map[string]struct {
		header     http.Header
		wantStatus int
		wantMsg    string
	}{
		"missing bearer token should be unauthorized": {
			header:     http.Header{api.HeaderApplicantID: {"7"}},
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "No authentication token found. Please log in.",
		},
		"malformed authorization should be unauthorized": {
			header:     http.Header{"Authorization": {"Basic abc"}, api.HeaderApplicantID: {"7"}},
			wantStatus: http.StatusUnauthorized,
		},
		"missing applicant should be a bad request": {
			header:     http.Header{"Authorization": {"Bearer " + backendtest.Token}},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "X-Applicant-ID header is required",
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h := makeHarness(t)
			w := h.do(http.MethodGet, "/api/v1/questions", nil, tt.header)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, decode[map[string]any](t, w)["message"])
			}
			assert.Empty(t, h.srv.Requests(), "nothing should reach the backend")
		})
	}
}

func TestAPI_ListQuestions(t *testing.T) {
	h := makeHarness(t)
	h.srv.JSON(http.MethodGet, "/codingQuestions/getAllQuestions/:id", http.StatusOK, []gin.H{
		{"id": 1, "questionName": "Sum", "questionNumber": 1},
	})

	w := h.do(http.MethodGet, "/api/v1/questions", nil, h.authed(http.Header{backend.RequestIDHeader: {"req-1"}}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"id":1,"questionName":"Sum","questionNumber":1}]`, w.Body.String())
	assert.Equal(t, "req-1", w.Header().Get(backend.RequestIDHeader))

	r, ok := h.srv.Last("/codingQuestions/getAllQuestions/7")
	require.True(t, ok)
	assert.Equal(t, "Bearer "+backendtest.Token, r.Authorization, "the caller's token is forwarded")
	assert.Equal(t, "req-1", r.RequestID)
}

func TestAPI_GetQuestion_HidesHiddenCases(t *testing.T) {
	h := makeHarness(t)
	h.srv.JSON(http.MethodGet, "/codingQuestions/getQuestion/:id", http.StatusOK, question)

	w := h.do(http.MethodGet, "/api/v1/questions/3", nil, h.authed(nil))
	require.Equal(t, http.StatusOK, w.Code)

	got := decode[api.Question](t, w)
	assert.Equal(t, "2", got.SampleInput)
	assert.Equal(t, "4", got.SampleOutput)
	require.Len(t, got.TestCases, 3)
	assert.Equal(t, "9", *got.TestCases[1].ExpectedOutput)
	assert.Nil(t, got.TestCases[2].ExpectedOutput)
	assert.Nil(t, got.TestCases[2].SampleInput)
	assert.NotContains(t, w.Body.String(), "16")
}

func TestAPI_RunCode(t *testing.T) {
	tests := map[string]struct {
		arrange    func(srv *backendtest.Server)
		body       any
		wantStatus int
		assertBody func(t *testing.T, body string)
		assert     func(t *testing.T, resp api.RunCodeResponse)
	}{
		"outputs should come back with a preview score": {
			arrange: func(srv *backendtest.Server) {
				srv.JSON(http.MethodPost, "/codingQuestions/execute", http.StatusOK, []string{"4\n", "9", "15"})
			},
			body:       gin.H{"language": "python", "code": "print(int(input())**2)"},
			wantStatus: http.StatusOK,
			assert: func(t *testing.T, resp api.RunCodeResponse) {
				assert.Equal(t, []*string{ptr("4\n"), ptr("9"), nil}, resp.Outputs)
				assert.Equal(t, 2, resp.Report.PassCount)
				assert.Equal(t, 67, resp.Report.Percentage)
				assert.Nil(t, resp.Report.Cases[2].Expected)
			},
		},
		"passing hidden case should not reveal its output": {
			arrange: func(srv *backendtest.Server) {
				srv.JSON(http.MethodPost, "/codingQuestions/execute", http.StatusOK, []string{"4", "9", "16"})
			},
			body:       gin.H{"language": "python", "code": "print(int(input())**2)"},
			wantStatus: http.StatusOK,
			assertBody: func(t *testing.T, body string) {
				assert.NotContains(t, body, "16")
			},
			assert: func(t *testing.T, resp api.RunCodeResponse) {
				assert.Equal(t, []*string{ptr("4"), ptr("9"), nil}, resp.Outputs)
				assert.Equal(t, 100, resp.Report.Percentage)
				assert.True(t, resp.Report.Cases[2].Passed)
				assert.Nil(t, resp.Report.Cases[2].Actual)
			},
		},
		"failed execution should be a single error entry": {
			arrange: func(srv *backendtest.Server) {
				srv.JSON(http.MethodPost, "/codingQuestions/execute", http.StatusInternalServerError, gin.H{"message": "runner busy"})
			},
			body:       gin.H{"language": "java", "code": ""},
			wantStatus: http.StatusOK,
			assert: func(t *testing.T, resp api.RunCodeResponse) {
				assert.Equal(t, []*string{ptr("Error: runner busy")}, resp.Outputs)
				assert.Equal(t, 0, resp.Report.PassCount)
				assert.Equal(t, 3, resp.Report.Total)
			},
		},
		"unsupported language should be rejected": {
			arrange:    func(srv *backendtest.Server) {},
			body:       gin.H{"language": "ruby", "code": "puts 1"},
			wantStatus: http.StatusBadRequest,
		},
		"missing language should be rejected": {
			arrange:    func(srv *backendtest.Server) {},
			body:       gin.H{"code": "puts 1"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h := makeHarness(t)
			h.srv.JSON(http.MethodGet, "/codingQuestions/getQuestion/:id", http.StatusOK, question)
			tt.arrange(h.srv)

			w := h.do(http.MethodPost, "/api/v1/questions/3/run", tt.body, h.authed(nil))
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.assertBody != nil {
				tt.assertBody(t, w.Body.String())
			}
			if tt.assert != nil {
				tt.assert(t, decode[api.RunCodeResponse](t, w))
			}
		})
	}
}

func TestAPI_SubmitCode(t *testing.T) {
	h := makeHarness(t)
	h.srv.JSON(http.MethodGet, "/codingQuestions/getQuestion/:id", http.StatusOK, question)
	h.srv.Text(http.MethodPost, "/codingQuestions/submit", http.StatusOK, "ok")

	msgs := h.subscribe(t, "test:applicant:7")

	w := h.do(http.MethodPost, "/api/v1/questions/3/submit", gin.H{
		"language": "java",
		"code":     "class Main {}",
		"outputs":  []string{"4", "9", "15"},
	}, h.authed(nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[api.SubmitCodeResponse](t, w)
	assert.Equal(t, 67, resp.Report.Percentage)
	assert.Nil(t, resp.SubmissionError)

	r, ok := h.srv.Last("/codingQuestions/submit")
	require.True(t, ok)
	assert.JSONEq(t, `{"applicantId":7,"questionId":3,"code":"class Main {}","language":"java","score":67}`, string(r.Body))

	h.eb.Stop()
	select {
	case m := <-msgs:
		assert.JSONEq(t, `{"event":"submission.recorded","data":{"questionId":3,"language":"java","score":67}}`, m.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification published")
	}
}

func TestAPI_SubmitCode_KeepsReportWhenRecordingFails(t *testing.T) {
	h := makeHarness(t)
	h.srv.JSON(http.MethodGet, "/codingQuestions/getQuestion/:id", http.StatusOK, question)
	h.srv.JSON(http.MethodPost, "/codingQuestions/submit", http.StatusInternalServerError, gin.H{"message": "db down"})

	w := h.do(http.MethodPost, "/api/v1/questions/3/submit", gin.H{
		"language": "java",
		"outputs":  []string{"4", "9", "16"},
	}, h.authed(nil))
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[api.SubmitCodeResponse](t, w)
	assert.Equal(t, 100, resp.Report.Percentage)
	require.NotNil(t, resp.SubmissionError)
	assert.Equal(t, "Failed to submit code: db down", resp.SubmissionError.Message)
}

func TestAPI_Leaderboard(t *testing.T) {
	h := makeHarness(t)
	h.srv.JSON(http.MethodGet, "/codingQuestions/getQuestion/:id", http.StatusOK, question)
	h.srv.Text(http.MethodPost, "/codingQuestions/submit", http.StatusOK, "ok")

	w := h.do(http.MethodGet, "/api/v1/questions/3/leaderboard", nil, h.authed(nil))
	assert.Equal(t, http.StatusNotFound, w.Code, "no submissions yet")

	msgs := h.subscribe(t, "test:question:3:leaderboard")

	w = h.do(http.MethodPost, "/api/v1/questions/3/submit", gin.H{
		"language": "java",
		"outputs":  []string{"4", "9", "15"},
	}, h.authed(nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	select {
	case m := <-msgs:
		assert.JSONEq(t, `{"event":"leaderboard.updated","data":{"questionId":3,"entries":[{"applicantId":7,"score":67}]}}`, m.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no leaderboard notification published")
	}

	w = h.do(http.MethodGet, "/api/v1/questions/3/leaderboard?limit=5", nil, h.authed(nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"questionId":3,"entries":[{"applicantId":7,"score":67}]}`, w.Body.String())
}

func TestAPI_BackendErrors(t *testing.T) {
	tests := map[string]struct {
		arrange    func(srv *backendtest.Server)
		wantStatus int
	}{
		"unreachable backend should be unavailable": {
			arrange:    func(srv *backendtest.Server) { srv.Close() },
			wantStatus: http.StatusServiceUnavailable,
		},
		"backend failure should be a bad gateway": {
			arrange: func(srv *backendtest.Server) {
				srv.JSON(http.MethodGet, "/videos/recommended/:id", http.StatusInternalServerError, gin.H{"message": "boom"})
			},
			wantStatus: http.StatusBadGateway,
		},
		"rejected token should be unauthorized": {
			arrange: func(srv *backendtest.Server) {
				srv.JSON(http.MethodGet, "/videos/recommended/:id", http.StatusUnauthorized, gin.H{"message": "expired"})
			},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h := makeHarness(t)
			tt.arrange(h.srv)

			w := h.do(http.MethodGet, "/api/v1/videos", nil, h.authed(nil))
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestAPI_Jobs(t *testing.T) {
	h := makeHarness(t)
	h.srv.JSON(http.MethodGet, "/applicantprofile/:id/profileid", http.StatusOK, 0)
	h.srv.JSON(http.MethodGet, "/job/promote/:id/yes", http.StatusOK, []gin.H{{"id": 9, "jobTitle": "Intern"}})
	h.srv.Text(http.MethodPost, "/savedjob/applicants/savejob/:applicant/:job", http.StatusOK, "saved")

	w := h.do(http.MethodGet, "/api/v1/jobs", nil, h.authed(nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[map[string]any](t, w)["promoted"].(bool))

	w = h.do(http.MethodGet, "/api/v1/jobs?page=-1", nil, h.authed(nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, "/api/v1/jobs/9/save", nil, h.authed(nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"jobId":9,"removeFromPage":true}`, w.Body.String())
}

func TestAPI_PasswordReset_IsAnonymous(t *testing.T) {
	h := makeHarness(t)
	h.srv.Text(http.MethodPost, "/applicant/forgotpasswordsendotp", http.StatusOK, "OTP sent successfully")

	w := h.do(http.MethodPost, "/api/v1/password-reset/otp", gin.H{"email": "known@example.com"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "OTP sent successfully", decode[map[string]any](t, w)["message"])

	r, ok := h.srv.Last("/applicant/forgotpasswordsendotp")
	require.True(t, ok)
	assert.Empty(t, r.Authorization)

	w = h.do(http.MethodPost, "/api/v1/password-reset", gin.H{
		"email":             "known@example.com",
		"password":          "abc",
		"confirmedPassword": "abd",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Passwords do not match. Please make sure the passwords match.", decode[map[string]any](t, w)["message"])
}

type harness struct {
	srv    *backendtest.Server
	eb     *event.Bus
	rc     redis.UniversalClient
	engine *gin.Engine
}

func makeHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	srv := backendtest.New(t)
	bc := backend.NewClient(backend.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	eb := event.NewBus(event.Config{})
	t.Cleanup(eb.Stop)

	cipher, err := account.NewCipher("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	a := api.New(api.Config{
		EventBus:     eb,
		Catalog:      catalog.NewService(catalog.Config{Backend: bc}),
		Execution:    execution.NewService(execution.Config{Backend: bc}),
		Submission:   submission.NewService(submission.Config{Backend: bc, EventBus: eb}),
		Jobs:         jobs.NewService(jobs.Config{Backend: bc, EventBus: eb}),
		Videos:       videos.NewService(videos.Config{Backend: bc, EventBus: eb, Redis: rc, Prefix: "test"}),
		Account:      account.NewService(account.Config{Backend: bc, Cipher: cipher}),
		Leaderboard:  leaderboard.NewService(leaderboard.Config{EventBus: eb, Redis: rc, Prefix: "test"}),
		Redis:        rc,
		PubsubPrefix: "test",
	})

	e := gin.New()
	a.Register(e)

	return &harness{srv: srv, eb: eb, rc: rc, engine: e}
}

func (h *harness) authed(extra http.Header) http.Header {
	hd := http.Header{
		"Authorization":       {"Bearer " + backendtest.Token},
		api.HeaderApplicantID: {"7"},
	}
	for k, v := range extra {
		hd[http.CanonicalHeaderKey(k)] = v
	}
	return hd
}

func (h *harness) do(method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

func (h *harness) subscribe(t *testing.T, channel string) <-chan *redis.Message {
	t.Helper()

	ctx := context.Background()
	sub := h.rc.Subscribe(ctx, channel)
	t.Cleanup(func() { _ = sub.Close() })

	_, err := sub.Receive(ctx)
	require.NoError(t, err)
	return sub.Channel()
}

func ptr(s string) *string { return &s }

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
