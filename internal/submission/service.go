package submission

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/victornm/portal/internal/backend"
	"github.com/victornm/portal/internal/domain"
	"github.com/victornm/portal/internal/errors"
	"github.com/victornm/portal/internal/event"
)

type Config struct {
	Backend  *backend.Client
	EventBus *event.Bus
}

// Service records solutions on the backend.
type Service struct {
	backend *backend.Client
	eb      *event.Bus
}

func NewService(c Config) *Service {
	return &Service{
		backend: c.Backend,
		eb:      c.EventBus,
	}
}

type SubmitRequest struct {
	ApplicantID domain.ID
	QuestionID  domain.ID
	Code        string
	Language    domain.Language
	Score       int
}

// Submit records a scored solution. It is sent once: a failure is returned as a CodeSubmission
// error wrapping the cause, and the caller decides whether to try again.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) error {
	if req.ApplicantID.IsZero() || req.QuestionID.IsZero() {
		return errors.InvalidArgument("applicant id and question id are required")
	}
	if !req.Language.Valid() {
		return errors.InvalidArgument("unsupported language %q", req.Language)
	}

	sub := domain.Submission{
		ApplicantID: req.ApplicantID,
		QuestionID:  req.QuestionID,
		Code:        req.Code,
		Language:    req.Language,
		Score:       req.Score,
	}

	err := s.backend.Do(ctx, backend.Request{
		Operation: "submit",
		Method:    http.MethodPost,
		Path:      "/codingQuestions/submit",
		Body:      sub,
	}, nil)
	if err != nil {
		return errors.New(errors.CodeSubmission,
			errors.WithMessagef("Failed to submit code: %s", errors.Message(err)),
			errors.WithCause(err))
	}

	zap.L().Info("submission: recorded",
		zap.String("applicant_id", req.ApplicantID.String()),
		zap.String("question_id", req.QuestionID.String()),
		zap.Int("score", req.Score),
	)

	if s.eb != nil {
		s.eb.Publish(ctx, domain.EventSubmissionRecorded{Submission: sub})
	}
	return nil
}
