package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/victornm/portal/internal/backend"
	"github.com/victornm/portal/internal/domain"
	"github.com/victornm/portal/internal/errors"
)

type Config struct {
	Backend *backend.Client
}

// Service fetches coding questions from the backend. It keeps nothing between calls: every
// navigation re-fetches.
type Service struct {
	backend *backend.Client
}

func NewService(c Config) *Service {
	return &Service{
		backend: c.Backend,
	}
}

type ListQuestionsRequest struct {
	ApplicantID domain.ID
}

// ListQuestions returns the questions available to an applicant.
func (s *Service) ListQuestions(ctx context.Context, req ListQuestionsRequest) ([]domain.QuestionSummary, error) {
	if req.ApplicantID.IsZero() {
		return nil, errors.InvalidArgument("applicant id is required")
	}

	var qs []domain.QuestionSummary
	err := s.backend.Do(ctx, backend.Request{
		Operation: "list_questions",
		Method:    http.MethodGet,
		Path:      "/codingQuestions/getAllQuestions/" + url.PathEscape(req.ApplicantID.String()),
	}, &qs)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	if qs == nil {
		qs = []domain.QuestionSummary{}
	}
	return qs, nil
}

type GetQuestionRequest struct {
	QuestionID domain.ID
}

// GetQuestion returns the full detail of a question. The first visible test case becomes the sample;
// a question without one has an empty sample, which is not an error.
func (s *Service) GetQuestion(ctx context.Context, req GetQuestionRequest) (*domain.Question, error) {
	if req.QuestionID.IsZero() {
		return nil, errors.InvalidArgument("question id is required")
	}

	var raw struct {
		domain.Question
		TestCases []*domain.TestCase `json:"testCases"`
	}
	err := s.backend.Do(ctx, backend.Request{
		Operation: "get_question",
		Method:    http.MethodGet,
		Path:      "/codingQuestions/getQuestion/" + url.PathEscape(req.QuestionID.String()),
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("get question %s: %w", req.QuestionID, err)
	}

	q := raw.Question
	q.TestCases = make([]domain.TestCase, 0, len(raw.TestCases))
	for _, tc := range raw.TestCases {
		if tc != nil {
			q.TestCases = append(q.TestCases, *tc)
		}
	}

	for i := range q.TestCases {
		if q.TestCases[i].Visible() {
			sample := q.TestCases[i]
			q.Sample = &sample
			break
		}
	}

	return &q, nil
}
