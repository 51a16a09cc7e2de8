package account

import (
	"regexp"
	"strings"
)

var (
	upper      = regexp.MustCompile(`[A-Z]`)
	lower      = regexp.MustCompile(`[a-z]`)
	digit      = regexp.MustCompile(`\d`)
	special    = regexp.MustCompile(`[@$!%*?&]`)
	allowed    = regexp.MustCompile(`^[A-Za-z\d@$!%*?&]+$`)
	anySpecial = regexp.MustCompile(`[\W_]`)
	space      = regexp.MustCompile(`\s`)
)

const newPasswordPolicy = "New password must be at least 6 characters long, contain one uppercase letter, " +
	"one lowercase letter, one number, and one special character."

// validNewPassword is the policy of the change password form: at least 6 characters out of letters,
// digits and @$!%*?&, with at least one uppercase letter, one digit and one of the specials.
func validNewPassword(p string) bool {
	return len(p) >= 6 &&
		allowed.MatchString(p) &&
		upper.MatchString(p) &&
		digit.MatchString(p) &&
		special.MatchString(p)
}

// resetPasswordProblem returns the first rule of the reset form that p breaks, or "".
func resetPasswordProblem(p string) string {
	switch {
	case strings.TrimSpace(p) == "":
		return "Password should not be empty."
	case len(p) < 6:
		return "Password must be at least 6 characters long."
	case !upper.MatchString(p):
		return "Password must contain at least one uppercase letter."
	case !lower.MatchString(p):
		return "Password must contain at least one lowercase letter."
	case !digit.MatchString(p):
		return "Password must contain at least one number."
	case !anySpecial.MatchString(p):
		return "Password must contain at least one special character."
	case space.MatchString(p):
		return "Password must not contain spaces."
	}
	return ""
}
