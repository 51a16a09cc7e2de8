package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an opaque identifier issued by the backend. The backend mostly uses numbers, so an ID made only
// of digits is written back as a JSON number.
type ID string

func (id ID) String() string { return string(id) }

func (id ID) IsZero() bool { return id == "" }

func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseUint(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("id: %w", err)
		}
		*id = ID(n.String())
	}
	return nil
}

// Visibility tells whether a test case's expected output may be shown to the applicant.
type Visibility string

const (
	VisibilityVisible Visibility = "visible"
	VisibilityHidden  Visibility = "hidden"
)

// TestCase is one input/expected output pair of a coding question.
type TestCase struct {
	SampleInput    string     `json:"sampleInput"`
	ExpectedOutput string     `json:"expectedOutput"`
	Visibility     Visibility `json:"visibility"`
}

func (tc TestCase) Visible() bool {
	return tc.Visibility == VisibilityVisible
}

// QuestionSummary is an entry of the question list.
type QuestionSummary struct {
	ID     ID     `json:"id"`
	Name   string `json:"questionName"`
	Number int    `json:"questionNumber"`
}

// Question is the full detail of a coding question. Test cases are kept in backend order, which is
// also the order of the outputs returned by an execution.
type Question struct {
	ID          ID         `json:"id"`
	Name        string     `json:"questionName"`
	Description string     `json:"description"`
	Complexity  string     `json:"complexity"`
	Constraints string     `json:"constraints"`
	TestCases   []TestCase `json:"testCases"`

	// Sample is the first visible test case, shown as a worked example. Nil when every case is hidden.
	Sample *TestCase `json:"-"`
}

// SampleInput returns the sample input, or "" when the question has no visible test case.
func (q *Question) SampleInput() string {
	if q == nil || q.Sample == nil {
		return ""
	}
	return q.Sample.SampleInput
}

// SampleOutput returns the sample expected output, or "" when the question has no visible test case.
func (q *Question) SampleOutput() string {
	if q == nil || q.Sample == nil {
		return ""
	}
	return q.Sample.ExpectedOutput
}

// Language is a language supported by the code runner.
type Language string

const (
	LanguageJava   Language = "java"
	LanguagePython Language = "python"

	DefaultLanguage = LanguageJava
)

var starterCode = map[Language]string{
	LanguageJava: `import java.util.*;

public class Main {
    public static void main(String[] args) {
        Scanner sc = new Scanner(System.in);
        // your code here
    }
}`,
	LanguagePython: `# Python starter code
# your code here`,
}

// Languages lists the supported languages in display order.
func Languages() []Language {
	return []Language{LanguageJava, LanguagePython}
}

func (l Language) Valid() bool {
	_, ok := starterCode[l]
	return ok
}

// StarterCode returns the template loaded into the editor when the language is selected.
func (l Language) StarterCode() string {
	return starterCode[l]
}

// ExecutionRequest is sent to the backend code runner.
type ExecutionRequest struct {
	Language  Language   `json:"language"`
	Code      string     `json:"code"`
	TestCases []TestCase `json:"testCases"`
}

// ResultKind tells which shape the backend answered with.
type ResultKind string

const (
	// ResultList is an array of outputs, positionally aligned with the submitted test cases.
	ResultList ResultKind = "list"
	// ResultScalar is a single value, wrapped as a one element sequence.
	ResultScalar ResultKind = "scalar"
	// ResultError is a failed execution, rendered as a single "Error: ..." entry.
	ResultError ResultKind = "error"
)

// ExecutionResult is the normalized answer of one execution. Its length may differ from the number of
// submitted test cases.
type ExecutionResult struct {
	Kind    ResultKind `json:"kind"`
	Outputs []string   `json:"outputs"`
}

// Failed reports whether the execution could not be performed.
func (r ExecutionResult) Failed() bool {
	return r.Kind == ResultError
}

// Output returns the output at index i, or "" when the backend returned fewer entries.
func (r ExecutionResult) Output(i int) string {
	if i < 0 || i >= len(r.Outputs) {
		return ""
	}
	return r.Outputs[i]
}

// CaseResult is the outcome of one test case. Expected and Actual are only set for visible cases.
type CaseResult struct {
	Index      int        `json:"index"`
	Visibility Visibility `json:"visibility"`
	Passed     bool       `json:"passed"`
	Expected   *string    `json:"expected,omitempty"`
	Actual     *string    `json:"actual,omitempty"`
}

// ScoreReport summarizes one scoring of outputs against test cases.
type ScoreReport struct {
	PassCount  int          `json:"passCount"`
	Total      int          `json:"total"`
	Percentage int          `json:"percentage"`
	Cases      []CaseResult `json:"cases"`
}

// Submission is the record of a solution sent to the backend.
type Submission struct {
	ApplicantID ID       `json:"applicantId"`
	QuestionID  ID       `json:"questionId"`
	Code        string   `json:"code"`
	Language    Language `json:"language"`
	Score       int      `json:"score"`
}
