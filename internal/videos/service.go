package videos

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/victornm/portal/internal/backend"
	"github.com/victornm/portal/internal/domain"
	"github.com/victornm/portal/internal/errors"
	"github.com/victornm/portal/internal/event"
)

const (
	// PerPage is the number of videos shown on one carousel page.
	PerPage = 3

	defaultWatchTTL = 30 * 24 * time.Hour
	defaultPrefix   = "portal"
)

type Config struct {
	Backend  *backend.Client
	EventBus *event.Bus
	// Redis remembers which videos were already tracked. Without it every call is sent.
	Redis    redis.UniversalClient
	Prefix   string
	WatchTTL time.Duration
}

type Service struct {
	backend  *backend.Client
	eb       *event.Bus
	redis    redis.UniversalClient
	prefix   string
	watchTTL time.Duration
}

func NewService(c Config) *Service {
	s := &Service{
		backend:  c.Backend,
		eb:       c.EventBus,
		redis:    c.Redis,
		prefix:   c.Prefix,
		watchTTL: c.WatchTTL,
	}
	if s.prefix == "" {
		s.prefix = defaultPrefix
	}
	if s.watchTTL <= 0 {
		s.watchTTL = defaultWatchTTL
	}
	return s
}

type RecommendedRequest struct {
	ApplicantID domain.ID
}

// Recommended returns the videos recommended to an applicant and how many carousel pages they fill.
func (s *Service) Recommended(ctx context.Context, req RecommendedRequest) (*domain.VideoCarousel, error) {
	if req.ApplicantID.IsZero() {
		return nil, errors.InvalidArgument("applicant id is required")
	}

	var vs []domain.Video
	err := s.backend.Do(ctx, backend.Request{
		Operation: "recommended_videos",
		Method:    http.MethodGet,
		Path:      "/videos/recommended/" + url.PathEscape(req.ApplicantID.String()),
	}, &vs)
	if err != nil {
		return nil, fmt.Errorf("recommended videos: %w", err)
	}

	if vs == nil {
		vs = []domain.Video{}
	}
	return &domain.VideoCarousel{
		Videos: vs,
		Pages:  (len(vs) + PerPage - 1) / PerPage,
	}, nil
}

type MarkWatchedRequest struct {
	ApplicantID domain.ID
	VideoID     domain.ID
}

// MarkWatched tracks that an applicant finished a video. A video is tracked once per applicant; the
// returned bool is false when it had already been tracked. If the backend call fails the mark is
// released so a later call can try again.
func (s *Service) MarkWatched(ctx context.Context, req MarkWatchedRequest) (bool, error) {
	if req.ApplicantID.IsZero() || req.VideoID.IsZero() {
		return false, errors.InvalidArgument("applicant id and video id are required")
	}

	key := s.watchKey(req)
	if s.redis != nil {
		ok, err := s.redis.SetNX(ctx, key, time.Now().Unix(), s.watchTTL).Result()
		if err != nil {
			return false, errors.Internal(fmt.Errorf("mark video watched: %w", err))
		}
		if !ok {
			return false, nil
		}
	}

	err := s.backend.Do(ctx, backend.Request{
		Operation: "track_watch",
		Method:    http.MethodPost,
		Path:      "/api/video-watch/track",
		Body: struct {
			ApplicantID domain.ID `json:"applicantId"`
			VideoID     domain.ID `json:"videoId"`
		}{req.ApplicantID, req.VideoID},
	}, nil)
	if err != nil {
		if s.redis != nil {
			if derr := s.redis.Del(context.WithoutCancel(ctx), key).Err(); derr != nil {
				zap.L().Warn("videos: release watch mark failed", zap.String("key", key), zap.Error(derr))
			}
		}
		return false, fmt.Errorf("track watch: %w", err)
	}

	if s.eb != nil {
		s.eb.Publish(ctx, domain.EventVideoWatched{ApplicantID: req.ApplicantID, VideoID: req.VideoID})
	}
	return true, nil
}

func (s *Service) watchKey(req MarkWatchedRequest) string {
	return fmt.Sprintf("%s:watched:%s:%s", s.prefix, req.ApplicantID, req.VideoID)
}
