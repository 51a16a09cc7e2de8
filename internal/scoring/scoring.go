// Package scoring compares execution outputs with the expected outputs of a question's test cases.
package scoring

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/victornm/portal/internal/domain"
)

// Normalize canonicalizes an output for comparison: CRLF line endings become LF, then surrounding
// whitespace is trimmed. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
}

// Score compares outputs against testCases position by position. A missing output counts as "".
// Hidden test cases report only whether they passed.
func Score(testCases []domain.TestCase, outputs []string) domain.ScoreReport {
	r := domain.ScoreReport{
		Total: len(testCases),
		Cases: make([]domain.CaseResult, 0, len(testCases)),
	}

	for i, tc := range testCases {
		expected := Normalize(tc.ExpectedOutput)
		var actual string
		if i < len(outputs) {
			actual = Normalize(outputs[i])
		}

		cr := domain.CaseResult{
			Index:      i,
			Visibility: tc.Visibility,
			Passed:     expected == actual,
		}
		if tc.Visible() {
			cr.Expected, cr.Actual = &expected, &actual
		}
		if cr.Passed {
			r.PassCount++
		}

		r.Cases = append(r.Cases, cr)
	}

	r.Percentage = Percentage(r.PassCount, r.Total)
	return r
}

// Percentage returns round(100 * pass / total), rounding halves up. A total of zero scores 0.
func Percentage(pass, total int) int {
	if total <= 0 {
		return 0
	}

	return int(decimal.NewFromInt(int64(pass)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(total)), 8).
		Round(0).
		IntPart())
}
