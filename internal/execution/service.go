package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/victornm/portal/internal/backend"
	"github.com/victornm/portal/internal/domain"
	"github.com/victornm/portal/internal/errors"
)

const unknownError = "Unknown error"

type Config struct {
	Backend *backend.Client
}

// Service runs code against a question's test cases on the backend.
type Service struct {
	backend *backend.Client
}

func NewService(c Config) *Service {
	return &Service{
		backend: c.Backend,
	}
}

type ExecuteRequest struct {
	Language  domain.Language
	Code      string
	TestCases []domain.TestCase
}

// Execute sends the code and the complete, ordered test cases of the active question to the backend.
// It never returns an error: any failure becomes a result holding the single entry "Error: <message>",
// so there is always something to render. The result may hold fewer outputs than test cases.
func (s *Service) Execute(ctx context.Context, req ExecuteRequest) domain.ExecutionResult {
	if !req.Language.Valid() {
		return Failure(errors.InvalidArgument("unsupported language %q", req.Language))
	}
	if len(req.TestCases) == 0 {
		return Failure(errors.InvalidArgument("no test cases to run"))
	}

	var raw json.RawMessage
	err := s.backend.Do(ctx, backend.Request{
		Operation: "execute",
		Method:    http.MethodPost,
		Path:      "/codingQuestions/execute",
		Body: domain.ExecutionRequest{
			Language:  req.Language,
			Code:      req.Code,
			TestCases: req.TestCases,
		},
	}, &raw)
	if err != nil {
		return Failure(err)
	}

	res := Decode(raw)
	zap.L().Debug("execution: done",
		zap.String("language", string(req.Language)),
		zap.String("kind", string(res.Kind)),
		zap.Int("outputs", len(res.Outputs)),
		zap.Int("test_cases", len(req.TestCases)),
	)
	return res
}

// Failure renders err as the one-entry result shown in place of outputs.
func Failure(err error) domain.ExecutionResult {
	msg := errors.Message(err)
	if strings.TrimSpace(msg) == "" {
		msg = unknownError
	}

	return domain.ExecutionResult{
		Kind:    domain.ResultError,
		Outputs: []string{"Error: " + msg},
	}
}

// Decode turns the backend's answer into a sequence. An array maps element by element (null becomes
// "", other non-strings their JSON text); any other value is wrapped as a single entry.
func Decode(raw json.RawMessage) domain.ExecutionResult {
	raw = bytes.TrimSpace(raw)

	var items []json.RawMessage
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &items); err == nil {
			outs := make([]string, 0, len(items))
			for _, it := range items {
				outs = append(outs, text(it))
			}
			return domain.ExecutionResult{Kind: domain.ResultList, Outputs: outs}
		}
	}

	return domain.ExecutionResult{Kind: domain.ResultScalar, Outputs: []string{text(raw)}}
}

func text(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}

	// Numbers, objects and plain-text bodies are shown as they came.
	return string(raw)
}
