package cli

import (
	"strings"

	"github.com/victornm/portal/internal/compiler"
	"github.com/victornm/portal/internal/domain"
)

const hiddenMark = "(hidden)"

func (r *REPL) printQuestion(v compiler.View) {
	q := v.Question
	if q == nil {
		return
	}

	r.printf("%s\n", q.Name)
	if q.Complexity != "" {
		r.printf("Complexity: %s\n", q.Complexity)
	}
	if q.Description != "" {
		r.printf("\n%s\n", q.Description)
	}
	if q.Constraints != "" {
		r.printf("\nConstraints:\n%s\n", q.Constraints)
	}
	if q.Sample != nil {
		r.printf("\nSample input:\n%s\nSample output:\n%s\n", q.SampleInput(), q.SampleOutput())
	}
	r.printf("\n%d test case(s)\n", len(q.TestCases))
}

// printResult lists the outputs next to their test cases. Hidden cases show neither input nor expected
// output, and an execution error is a single line whatever the number of cases.
func (r *REPL) printResult(q *domain.Question, res domain.ExecutionResult) {
	if res.Failed() {
		r.printf("%s\n", res.Output(0))
		return
	}

	if q == nil {
		for i, o := range res.Outputs {
			r.printf("Output %d: %s\n", i+1, o)
		}
		return
	}

	for i, tc := range q.TestCases {
		r.printf("Test case %d\n", i+1)
		if !tc.Visible() {
			r.printf("  %s\n", hiddenMark)
			continue
		}
		r.printf("  input:    %s\n", indent(tc.SampleInput))
		r.printf("  expected: %s\n", indent(tc.ExpectedOutput))
		r.printf("  output:   %s\n", indent(res.Output(i)))
	}
}

func (r *REPL) printReport(rep domain.ScoreReport) {
	for _, c := range rep.Cases {
		mark := "FAIL"
		if c.Passed {
			mark = "PASS"
		}
		r.printf("  [%s] test case %d\n", mark, c.Index+1)
	}
	r.printf("Score: %d%% (%d/%d passed)\n", rep.Percentage, rep.PassCount, rep.Total)
}

func indent(s string) string {
	return strings.ReplaceAll(s, "\n", "\n            ")
}
