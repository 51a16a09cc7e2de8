package backend

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/victornm/portal/internal/auth"
	"github.com/victornm/portal/internal/errors"
	"github.com/victornm/portal/internal/telemetry"
)

const (
	defaultTimeout = 30 * time.Second

	// Bodies larger than this are rejected; no backend answer of this API comes close.
	maxBodySize = 4 << 20

	// Plain-text error bodies longer than this are not shown to users.
	maxTextMessage = 200
)

type Config struct {
	BaseURL     string
	Timeout     time.Duration
	Credentials auth.Credentials
	HTTPClient  *http.Client
}

// Client is a JSON-over-HTTP client for the job portal backend.
type Client struct {
	baseURL string
	creds   auth.Credentials
	hc      *http.Client
}

func NewClient(c Config) *Client {
	hc := c.HTTPClient
	if hc == nil {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	creds := c.Credentials
	if creds == nil {
		creds = auth.FromRequest()
	}

	return &Client{
		baseURL: strings.TrimRight(c.BaseURL, "/"),
		creds:   creds,
		hc:      hc,
	}
}

// Request describes one backend call.
type Request struct {
	// Operation names the call in logs and metrics.
	Operation string
	Method    string
	Path      string
	Query     url.Values
	Body      any
	// Anonymous calls are sent without a bearer token (the password reset flow).
	Anonymous bool
}

// Do sends req and decodes a successful response into out. out may be nil to discard the body,
// *json.RawMessage to keep it raw, or *string to accept both plain-text and JSON string bodies.
//
// Errors are *errors.Error: CodeUnauthenticated when no usable token is available or the backend
// rejects it, CodeUnavailable when the backend cannot be reached, CodeBackend (or CodeNotFound) for
// other non-2xx answers, with the message taken from the body's "message" field when present.
func (c *Client) Do(ctx context.Context, req Request, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = codeName(err)
			zap.L().Warn("backend: request failed",
				zap.String("operation", req.Operation),
				zap.String("path", req.Path),
				zap.Error(err),
			)
		}
		telemetry.ObserveBackend(req.Operation, outcome, time.Since(start))
	}()

	hreq, err := c.newRequest(ctx, req)
	if err != nil {
		return err
	}

	resp, err := c.hc.Do(hreq)
	if err != nil {
		return transportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return transportError(ctx, fmt.Errorf("read response body: %w", err))
	}
	if len(body) > maxBodySize {
		return errors.New(errors.CodeBackend,
			errors.WithMessagef("response from %s is too large", req.Operation),
			errors.WithCause(fmt.Errorf("body exceeds %d bytes", maxBodySize)))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, body)
	}

	if err := decode(body, out); err != nil {
		return errors.New(errors.CodeBackend,
			errors.WithMessagef("unexpected response from %s", req.Operation),
			errors.WithCause(err))
	}

	zap.L().Debug("backend: request done",
		zap.String("operation", req.Operation),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, errors.Internal(fmt.Errorf("marshal %s body: %w", req.Operation, err))
		}
		body = bytes.NewReader(b)
	}

	hreq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("build %s request: %w", req.Operation, err))
	}

	hreq.Header.Set("Accept", "application/json, text/plain")
	if body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	hreq.Header.Set(RequestIDHeader, requestID(ctx))

	if !req.Anonymous {
		token, err := c.creds.Token(ctx)
		if err != nil {
			return nil, err
		}
		hreq.Header.Set("Authorization", "Bearer "+token)
	}

	return hreq, nil
}

func decode(body []byte, out any) error {
	switch v := out.(type) {
	case nil:
		return nil
	case *json.RawMessage:
		*v = append((*v)[:0], bytes.TrimSpace(body)...)
		return nil
	case *string:
		trimmed := bytes.TrimSpace(body)
		if len(trimmed) > 0 && trimmed[0] == '"' {
			return json.Unmarshal(trimmed, v)
		}
		*v = string(trimmed)
		return nil
	default:
		return json.Unmarshal(body, out)
	}
}

func transportError(ctx context.Context, err error) error {
	msg := err.Error()
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		msg = "request timed out"
	}

	var uerr *url.Error
	if stderrors.As(err, &uerr) && uerr.Timeout() {
		msg = "request timed out"
	}

	return errors.New(errors.CodeUnavailable, errors.WithMessage(msg), errors.WithCause(err))
}

func statusError(status int, body []byte) error {
	msg := bodyMessage(body)
	if msg == "" {
		msg = fmt.Sprintf("Request failed with status code %d", status)
	}

	code := errors.CodeBackend
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		code = errors.CodeUnauthenticated
	case http.StatusNotFound:
		code = errors.CodeNotFound
	}

	return errors.New(code,
		errors.WithMessage(msg),
		errors.WithCause(fmt.Errorf("backend status %d", status)))
}

// bodyMessage extracts a user-facing message from a failure body: the "message" field of a JSON
// object, a JSON string, or a short plain-text body.
func bodyMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	switch trimmed[0] {
	case '{':
		var m struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(trimmed, &m); err == nil {
			return m.Message
		}
		return ""
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
		return ""
	case '<', '[':
		return ""
	}

	if len(trimmed) > maxTextMessage {
		return ""
	}
	return string(trimmed)
}

func codeName(err error) string {
	return strings.ToLower(errors.Convert(err).GRPCStatus().Code().String())
}

const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// WithRequestID returns a context whose backend calls carry id in the X-Request-ID header.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
