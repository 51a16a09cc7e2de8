package auth

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/victornm/portal/internal/errors"
)

// Credentials supplies the bearer token attached to backend calls. Acquiring and refreshing the
// token is the caller's business; implementations only hand out what they were given.
type Credentials interface {
	Token(ctx context.Context) (string, error)
}

// CredentialsFunc adapts a function to Credentials.
type CredentialsFunc func(ctx context.Context) (string, error)

func (f CredentialsFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// Static returns credentials that always hand out token, as long as it is present and not expired.
func Static(token string) Credentials {
	return CredentialsFunc(func(context.Context) (string, error) {
		return check(token, time.Now())
	})
}

type tokenKey struct{}

// WithToken returns a context carrying the bearer token of the current request.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// FromRequest returns credentials that read the token stored by WithToken on each call's context.
func FromRequest() Credentials {
	return CredentialsFunc(func(ctx context.Context) (string, error) {
		token, _ := ctx.Value(tokenKey{}).(string)
		return check(token, time.Now())
	})
}

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// check rejects empty tokens and JWTs whose exp claim is in the past. The signature is not verified
// here; the backend does that. Opaque, non-JWT tokens are passed through.
func check(token string, now time.Time) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("No authentication token found. Please log in."))
	}

	if strings.Count(token, ".") != 2 {
		return token, nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("invalid authentication token"),
			errors.WithCause(err))
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return "", errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("invalid authentication token"),
			errors.WithCause(err))
	}
	if exp != nil && !now.Before(exp.Time) {
		return "", errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("session expired at %s, please log in again", exp.Time.UTC().Format(time.RFC3339)))
	}

	return token, nil
}
