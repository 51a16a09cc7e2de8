package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/portal/internal/account"
	"github.com/victornm/portal/internal/api"
	"github.com/victornm/portal/internal/backend"
	"github.com/victornm/portal/internal/catalog"
	"github.com/victornm/portal/internal/event"
	"github.com/victornm/portal/internal/execution"
	"github.com/victornm/portal/internal/jobs"
	"github.com/victornm/portal/internal/leaderboard"
	"github.com/victornm/portal/internal/submission"
	"github.com/victornm/portal/internal/telemetry"
	"github.com/victornm/portal/internal/videos"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	Log telemetry.LogConfig

	Backend struct {
		BaseURL string
		Timeout time.Duration
	}

	Redis struct {
		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}

		// Store keeps watch markers and leaderboards.
		Store struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Events event.Config

	Jobs struct {
		PageSize int
	}

	Videos struct {
		WatchTTL time.Duration
	}

	Leaderboard struct {
		Limit int
	}

	Account struct {
		// PasswordKey is the 32 byte AES key shared with the backend.
		PasswordKey string
	}
}

// DefaultConfig holds the values used when the config file leaves them out.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.Log.Level = "info"
	c.Log.Format = "json"
	c.Backend.Timeout = 30 * time.Second
	c.Redis.Pubsub.Prefix = "portal"
	c.Redis.Store.Prefix = "portal"
	c.Jobs.PageSize = 16
	c.Videos.WatchTTL = 30 * 24 * time.Hour
	c.Leaderboard.Limit = 10
	return c
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		backend *backend.Client

		redis struct {
			pubsub redis.UniversalClient
			store  redis.UniversalClient
		}
	}

	service struct {
		catalog     *catalog.Service
		execution   *execution.Service
		submission  *submission.Service
		jobs        *jobs.Service
		videos      *videos.Service
		account     *account.Service
		leaderboard *leaderboard.Service
	}

	http *http.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus(c.Events)

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if s.c.Backend.BaseURL == "" {
		return fmt.Errorf("backend: base url is required")
	}

	// Every call carries the token of the request being served.
	s.infra.backend = backend.NewClient(backend.Config{
		BaseURL: s.c.Backend.BaseURL,
		Timeout: s.c.Backend.Timeout,
	})

	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(addrs []string, pass string) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.pubsub, err = connect(s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	s.infra.redis.store, err = connect(s.c.Redis.Store.Addrs, s.c.Redis.Store.Pass)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}

	return nil
}

func (s *Server) initService() error {
	cipher, err := account.NewCipher(s.c.Account.PasswordKey)
	if err != nil {
		return fmt.Errorf("account: %w", err)
	}

	s.service.catalog = catalog.NewService(catalog.Config{
		Backend: s.infra.backend,
	})

	s.service.execution = execution.NewService(execution.Config{
		Backend: s.infra.backend,
	})

	s.service.submission = submission.NewService(submission.Config{
		Backend:  s.infra.backend,
		EventBus: s.eb,
	})

	s.service.jobs = jobs.NewService(jobs.Config{
		Backend:  s.infra.backend,
		EventBus: s.eb,
		PageSize: s.c.Jobs.PageSize,
	})

	s.service.videos = videos.NewService(videos.Config{
		Backend:  s.infra.backend,
		EventBus: s.eb,
		Redis:    s.infra.redis.store,
		Prefix:   s.c.Redis.Store.Prefix,
		WatchTTL: s.c.Videos.WatchTTL,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.store,
		Prefix:   s.c.Redis.Store.Prefix,
		Limit:    s.c.Leaderboard.Limit,
	})

	s.service.account = account.NewService(account.Config{
		Backend: s.infra.backend,
		Cipher:  cipher,
	})

	return nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.GET("/healthz", s.healthz)
	e.Use(gin.Recovery())

	api.New(api.Config{
		EventBus:     s.eb,
		Catalog:      s.service.catalog,
		Execution:    s.service.execution,
		Submission:   s.service.submission,
		Jobs:         s.service.jobs,
		Videos:       s.service.videos,
		Account:      s.service.account,
		Leaderboard:  s.service.leaderboard,
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	}).Register(e)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

// healthz reports whether both redis instances answer.
func (s *Server) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return s.infra.redis.pubsub.Ping(ctx).Err() })
	eg.Go(func() error { return s.infra.redis.store.Ping(ctx).Err() })

	if err := eg.Wait(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start() {
	var eg errgroup.Group
	eg.Go(func() error {
		zap.L().Info(fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		zap.L().Error("server: shutdown with error", zap.Error(err))
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		zap.L().Error("server: shutdown HTTP failed", zap.Error(err))
	}

	s.eb.Stop()

	for _, r := range []redis.UniversalClient{s.infra.redis.pubsub, s.infra.redis.store} {
		if err := r.Close(); err != nil {
			zap.L().Warn("server: close redis failed", zap.Error(err))
		}
	}

	zap.L().Info("server: shutdown completed")
}
