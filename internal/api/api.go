package api

import (
	"context"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/victornm/portal/internal/account"
	"github.com/victornm/portal/internal/auth"
	"github.com/victornm/portal/internal/backend"
	"github.com/victornm/portal/internal/catalog"
	"github.com/victornm/portal/internal/domain"
	"github.com/victornm/portal/internal/errors"
	"github.com/victornm/portal/internal/event"
	"github.com/victornm/portal/internal/execution"
	"github.com/victornm/portal/internal/jobs"
	"github.com/victornm/portal/internal/leaderboard"
	"github.com/victornm/portal/internal/submission"
	"github.com/victornm/portal/internal/videos"
)

const (
	HeaderApplicantID = "X-Applicant-ID"

	keyApplicantID = "applicant_id"
)

type Config struct {
	EventBus     *event.Bus
	Catalog      *catalog.Service
	Execution    *execution.Service
	Submission   *submission.Service
	Jobs         *jobs.Service
	Videos       *videos.Service
	Account      *account.Service
	Leaderboard  *leaderboard.Service
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// API is the applicant gateway: a thin HTTP layer over the portal services. It keeps no state between
// requests; the caller's bearer token is forwarded to the backend.
type API struct {
	cs  *catalog.Service
	es  *execution.Service
	ss  *submission.Service
	js  *jobs.Service
	vs  *videos.Service
	acc *account.Service
	lb  *leaderboard.Service

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		cs:     c.Catalog,
		es:     c.Execution,
		ss:     c.Submission,
		js:     c.Jobs,
		vs:     c.Videos,
		acc:    c.Account,
		lb:     c.Leaderboard,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	registerValidations()

	// Register event handlers
	if c.EventBus != nil && c.Redis != nil {
		c.EventBus.Subscribe(domain.EventNameSubmissionRecorded, a.notify)
		c.EventBus.Subscribe(domain.EventNameJobSaved, a.notify)
		c.EventBus.Subscribe(domain.EventNameVideoWatched, a.notify)
		c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, a.notifyLeaderboard)
	}

	return a
}

// Register mounts the gateway routes on r.
func (a *API) Register(r gin.IRouter) {
	v1 := r.Group("/api/v1", requestID)

	reset := v1.Group("/password-reset")
	reset.POST("/otp", a.SendOTP)
	reset.POST("/verify", a.VerifyOTP)
	reset.POST("", a.ResetPassword)

	authed := v1.Group("", bearer, applicant)
	authed.GET("/questions", a.ListQuestions)
	authed.GET("/questions/:id", a.GetQuestion)
	authed.POST("/questions/:id/run", a.RunCode)
	authed.POST("/questions/:id/submit", a.SubmitCode)
	authed.GET("/questions/:id/leaderboard", a.GetLeaderboard)

	authed.GET("/jobs", a.BrowseJobs)
	authed.POST("/jobs/:id/save", a.SaveJob)

	authed.GET("/videos", a.RecommendedVideos)
	authed.POST("/videos/:id/watched", a.MarkWatched)

	authed.POST("/account/password", a.ChangePassword)
}

func requestID(c *gin.Context) {
	id := c.GetHeader(backend.RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}

	c.Header(backend.RequestIDHeader, id)
	c.Request = c.Request.WithContext(backend.WithRequestID(c.Request.Context(), id))
	c.Next()
}

func bearer(c *gin.Context) {
	token, ok := auth.ParseBearer(c.GetHeader("Authorization"))
	if !ok {
		abort(c, errors.New(errors.CodeUnauthenticated,
			errors.WithMessage("No authentication token found. Please log in.")))
		return
	}

	c.Request = c.Request.WithContext(auth.WithToken(c.Request.Context(), token))
	c.Next()
}

func applicant(c *gin.Context) {
	id := c.GetHeader(HeaderApplicantID)
	if id == "" {
		abort(c, errors.InvalidArgument("%s header is required", HeaderApplicantID))
		return
	}

	c.Set(keyApplicantID, domain.ID(id))
	c.Next()
}

func applicantID(c *gin.Context) domain.ID {
	id, _ := c.Get(keyApplicantID)
	v, _ := id.(domain.ID)
	return v
}

// abort renders err as {code, message} with the status of its code. Internal errors are logged and
// their cause is not exposed.
func abort(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		zap.L().Error("api: internal error",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.Writer.Header().Get(backend.RequestIDHeader)),
			zap.Error(err),
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
}

func bindError(err error) error {
	return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid request: %v", err), errors.WithCause(err))
}

var registerOnce sync.Once

// registerValidations adds the "language" rule to gin's validator.
func registerValidations() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		_ = v.RegisterValidation("language", func(fl validator.FieldLevel) bool {
			return domain.Language(fl.Field().String()).Valid()
		})
	})
}
