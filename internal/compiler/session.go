// Package compiler holds the state of the coding assessment screen: the open question, the code being
// edited, the latest run outputs and the latest score.
package compiler

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/victornm/portal/internal/catalog"
	"github.com/victornm/portal/internal/domain"
	"github.com/victornm/portal/internal/errors"
	"github.com/victornm/portal/internal/execution"
	"github.com/victornm/portal/internal/scoring"
	"github.com/victornm/portal/internal/submission"
	"github.com/victornm/portal/internal/telemetry"
)

type Catalog interface {
	GetQuestion(ctx context.Context, req catalog.GetQuestionRequest) (*domain.Question, error)
}

type Executor interface {
	Execute(ctx context.Context, req execution.ExecuteRequest) domain.ExecutionResult
}

type Recorder interface {
	Submit(ctx context.Context, req submission.SubmitRequest) error
}

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

type Config struct {
	ApplicantID domain.ID
	Catalog     Catalog
	Executor    Executor
	Recorder    Recorder
}

// Session is the compiler screen of one applicant. It is safe for concurrent use.
//
// Every run gets a generation number; a run whose number is no longer current when it completes (a
// later Run, SetLanguage or Open happened meanwhile) is discarded, so outputs always belong to the
// latest request for the open question.
type Session struct {
	applicantID domain.ID
	catalog     Catalog
	executor    Executor
	recorder    Recorder

	mu  sync.Mutex
	gen uint64
	ws  *workspace
}

func NewSession(c Config) *Session {
	return &Session{
		applicantID: c.ApplicantID,
		catalog:     c.Catalog,
		executor:    c.Executor,
		recorder:    c.Recorder,
		ws:          &workspace{status: StatusIdle, language: domain.DefaultLanguage},
	}
}

// workspace is the state of one question. It is never reused across questions.
type workspace struct {
	questionID domain.ID
	question   *domain.Question
	status     Status
	err        error

	language domain.Language
	code     string
	result   *domain.ExecutionResult
	report   *domain.ScoreReport
	running  bool
}

func newWorkspace(questionID domain.ID) *workspace {
	return &workspace{
		questionID: questionID,
		status:     StatusLoading,
		language:   domain.DefaultLanguage,
		code:       domain.DefaultLanguage.StarterCode(),
	}
}

// Open switches to a question. The previous question's test cases, outputs and score are dropped
// before the fetch starts. A failed fetch leaves the workspace in StatusFailed; Reload retries it.
func (s *Session) Open(ctx context.Context, questionID domain.ID) error {
	if questionID.IsZero() {
		return errors.InvalidArgument("question id is required")
	}

	s.mu.Lock()
	s.gen++
	ws := newWorkspace(questionID)
	s.ws = ws
	s.mu.Unlock()

	return s.load(ctx, ws)
}

// Reload fetches the open question again, keeping the code being edited.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	if s.ws.questionID.IsZero() {
		s.mu.Unlock()
		return errors.InvalidArgument("no question is open")
	}
	s.gen++
	ws := &workspace{
		questionID: s.ws.questionID,
		status:     StatusLoading,
		language:   s.ws.language,
		code:       s.ws.code,
	}
	s.ws = ws
	s.mu.Unlock()

	return s.load(ctx, ws)
}

func (s *Session) load(ctx context.Context, ws *workspace) error {
	q, err := s.catalog.GetQuestion(ctx, catalog.GetQuestionRequest{QuestionID: ws.questionID})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ws != ws {
		zap.L().Debug("compiler: question fetch superseded", zap.String("question_id", ws.questionID.String()))
		return err
	}

	if err != nil {
		ws.status, ws.err = StatusFailed, err
		return err
	}

	ws.question, ws.status = q, StatusReady
	return nil
}

// SetLanguage switches the editor language, loading its starter code. Outputs of the previous language
// are cleared and a run still in flight will be discarded.
func (s *Session) SetLanguage(lang domain.Language) error {
	if !lang.Valid() {
		return errors.InvalidArgument("unsupported language %q", lang)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.ws.language = lang
	s.ws.code = lang.StarterCode()
	s.ws.result = nil
	s.ws.report = nil
	s.ws.running = false
	return nil
}

func (s *Session) SetCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ws.code = code
}

// Run executes the current code against every test case of the open question. The returned bool
// reports whether the result was applied; it is false when the run was superseded while in flight.
func (s *Session) Run(ctx context.Context) (domain.ExecutionResult, bool, error) {
	s.mu.Lock()
	ws := s.ws
	if ws.status != StatusReady {
		s.mu.Unlock()
		return domain.ExecutionResult{}, false, errors.InvalidArgument("no question is loaded")
	}
	s.gen++
	gen := s.gen
	ws.running = true
	req := execution.ExecuteRequest{
		Language:  ws.language,
		Code:      ws.code,
		TestCases: ws.question.TestCases,
	}
	s.mu.Unlock()

	res := s.executor.Execute(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ws != ws || s.gen != gen {
		telemetry.ObserveStaleRun()
		zap.L().Debug("compiler: stale run discarded",
			zap.String("question_id", ws.questionID.String()),
			zap.Uint64("generation", gen),
		)
		return res, false, nil
	}

	ws.result = &res
	ws.report = nil
	ws.running = false
	return res, true, nil
}

// Submit scores the latest outputs and records the solution. The report is kept even when recording
// fails; the recording error is returned alongside it.
func (s *Session) Submit(ctx context.Context) (*domain.ScoreReport, error) {
	s.mu.Lock()
	ws := s.ws
	if ws.status != StatusReady {
		s.mu.Unlock()
		return nil, errors.InvalidArgument("no question is loaded")
	}

	var outputs []string
	if ws.result != nil {
		outputs = ws.result.Outputs
	}
	report := scoring.Score(ws.question.TestCases, outputs)
	ws.report = &report

	req := submission.SubmitRequest{
		ApplicantID: s.applicantID,
		QuestionID:  ws.questionID,
		Code:        ws.code,
		Language:    ws.language,
		Score:       report.Percentage,
	}
	s.mu.Unlock()

	telemetry.ObserveScore(report.Percentage)

	if err := s.recorder.Submit(ctx, req); err != nil {
		return &report, fmt.Errorf("record submission: %w", err)
	}
	return &report, nil
}

// View is a snapshot of the session.
type View struct {
	QuestionID domain.ID
	Question   *domain.Question
	Status     Status
	Err        error
	Language   domain.Language
	Code       string
	Result     *domain.ExecutionResult
	Report     *domain.ScoreReport
	Running    bool
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws := s.ws
	v := View{
		QuestionID: ws.questionID,
		Question:   ws.question,
		Status:     ws.status,
		Err:        ws.err,
		Language:   ws.language,
		Code:       ws.code,
		Running:    ws.running,
	}
	if ws.result != nil {
		r := *ws.result
		r.Outputs = append([]string(nil), ws.result.Outputs...)
		v.Result = &r
	}
	if ws.report != nil {
		r := *ws.report
		r.Cases = append([]domain.CaseResult(nil), ws.report.Cases...)
		v.Report = &r
	}
	return v
}
