package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/victornm/portal/internal/catalog"
	"github.com/victornm/portal/internal/domain"
	"github.com/victornm/portal/internal/errors"
	"github.com/victornm/portal/internal/execution"
	"github.com/victornm/portal/internal/leaderboard"
	"github.com/victornm/portal/internal/scoring"
	"github.com/victornm/portal/internal/submission"
	"github.com/victornm/portal/internal/telemetry"
)

type (
	Question struct {
		ID           domain.ID  `json:"id"`
		Name         string     `json:"questionName"`
		Description  string     `json:"description"`
		Complexity   string     `json:"complexity"`
		Constraints  string     `json:"constraints"`
		SampleInput  string     `json:"sampleInput"`
		SampleOutput string     `json:"sampleOutput"`
		TestCases    []TestCase `json:"testCases"`
	}

	// TestCase is a test case as shown to the applicant. Hidden cases carry their position only.
	TestCase struct {
		Index          int               `json:"index"`
		Visibility     domain.Visibility `json:"visibility"`
		SampleInput    *string           `json:"sampleInput,omitempty"`
		ExpectedOutput *string           `json:"expectedOutput,omitempty"`
	}

	RunCodeRequest struct {
		Language domain.Language `json:"language" binding:"required,language"`
		Code     string          `json:"code"`
	}

	// RunCodeResponse lists outputs by test case position. Outputs of hidden cases are null; their
	// outcome is only in Report.
	RunCodeResponse struct {
		Kind    domain.ResultKind  `json:"kind"`
		Outputs []*string          `json:"outputs"`
		Report  domain.ScoreReport `json:"report"`
	}

	SubmitCodeRequest struct {
		Language domain.Language `json:"language" binding:"required,language"`
		Code     string          `json:"code"`
		Outputs  []string        `json:"outputs"`
	}

	GetLeaderboardRequest struct {
		Limit int `form:"limit" binding:"min=0,max=100"`
	}

	SubmitCodeResponse struct {
		Report          domain.ScoreReport `json:"report"`
		SubmissionError *errors.Error      `json:"submissionError,omitempty"`
	}
)

func (a *API) ListQuestions(c *gin.Context) {
	qs, err := a.cs.ListQuestions(c.Request.Context(), catalog.ListQuestionsRequest{
		ApplicantID: applicantID(c),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, qs)
}

func (a *API) GetQuestion(c *gin.Context) {
	q, err := a.cs.GetQuestion(c.Request.Context(), catalog.GetQuestionRequest{
		QuestionID: domain.ID(c.Param("id")),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toQuestion(q))
}

func toQuestion(q *domain.Question) Question {
	resp := Question{
		ID:           q.ID,
		Name:         q.Name,
		Description:  q.Description,
		Complexity:   q.Complexity,
		Constraints:  q.Constraints,
		SampleInput:  q.SampleInput(),
		SampleOutput: q.SampleOutput(),
		TestCases:    make([]TestCase, 0, len(q.TestCases)),
	}

	for i, tc := range q.TestCases {
		tc := tc
		v := TestCase{Index: i, Visibility: tc.Visibility}
		if tc.Visible() {
			v.SampleInput, v.ExpectedOutput = &tc.SampleInput, &tc.ExpectedOutput
		}
		resp.TestCases = append(resp.TestCases, v)
	}

	return resp
}

// RunCode executes code against every test case of the question and returns the outputs with a
// preview score. Nothing is recorded.
func (a *API) RunCode(c *gin.Context) {
	var req RunCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, bindError(err))
		return
	}

	ctx := c.Request.Context()
	q, err := a.cs.GetQuestion(ctx, catalog.GetQuestionRequest{QuestionID: domain.ID(c.Param("id"))})
	if err != nil {
		abort(c, err)
		return
	}

	res := a.es.Execute(ctx, execution.ExecuteRequest{
		Language:  req.Language,
		Code:      req.Code,
		TestCases: q.TestCases,
	})

	c.JSON(http.StatusOK, RunCodeResponse{
		Kind:    res.Kind,
		Outputs: visibleOutputs(q.TestCases, res),
		Report:  scoring.Score(q.TestCases, res.Outputs),
	})
}

// visibleOutputs blanks the outputs at hidden test case positions. An execution error is a single
// entry that belongs to no test case and is kept.
func visibleOutputs(testCases []domain.TestCase, res domain.ExecutionResult) []*string {
	outputs := make([]*string, 0, len(res.Outputs))
	for i := range res.Outputs {
		o := res.Outputs[i]
		if !res.Failed() && i < len(testCases) && !testCases[i].Visible() {
			outputs = append(outputs, nil)
			continue
		}
		outputs = append(outputs, &o)
	}
	return outputs
}

// SubmitCode scores the outputs of the applicant's last run against the question's test cases and
// records the solution. A recording failure does not discard the score: it is returned next to it.
func (a *API) SubmitCode(c *gin.Context) {
	var req SubmitCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, bindError(err))
		return
	}

	ctx := c.Request.Context()
	questionID := domain.ID(c.Param("id"))
	q, err := a.cs.GetQuestion(ctx, catalog.GetQuestionRequest{QuestionID: questionID})
	if err != nil {
		abort(c, err)
		return
	}

	report := scoring.Score(q.TestCases, req.Outputs)
	telemetry.ObserveScore(report.Percentage)

	resp := SubmitCodeResponse{Report: report}
	err = a.ss.Submit(ctx, submission.SubmitRequest{
		ApplicantID: applicantID(c),
		QuestionID:  questionID,
		Code:        req.Code,
		Language:    req.Language,
		Score:       report.Percentage,
	})
	if err != nil {
		zap.L().Warn("api: submission not recorded",
			zap.String("question_id", questionID.String()),
			zap.Error(err),
		)
		resp.SubmissionError = errors.Convert(err)
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) GetLeaderboard(c *gin.Context) {
	var req GetLeaderboardRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		abort(c, bindError(err))
		return
	}

	l, err := a.lb.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{
		QuestionID: domain.ID(c.Param("id")),
		Limit:      req.Limit,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, l)
}
