package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/portal/internal/domain"
	"github.com/victornm/portal/internal/errors"
	"github.com/victornm/portal/internal/event"
)

const (
	publishInterval = 200 * time.Millisecond

	defaultLimit = 10
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
	// Limit is the number of entries returned when a request does not ask for a size.
	Limit int
}

type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
	limit  int
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
		limit:  c.Limit,
	}
	if s.prefix == "" {
		s.prefix = "portal"
	}
	if s.limit <= 0 {
		s.limit = defaultLimit
	}

	s.eb.Subscribe(domain.EventNameSubmissionRecorded, func(ctx context.Context, e event.Event) error {
		return s.Record(ctx, e.(domain.EventSubmissionRecorded).Submission)
	})

	return s
}

type GetLeaderboardRequest struct {
	QuestionID domain.ID
	Limit      int
}

// GetLeaderboard returns the best scores recorded for a question, highest first.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	if req.QuestionID.IsZero() {
		return nil, errors.InvalidArgument("question id is required")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.limit
	}

	res, err := s.redis.ZRevRangeWithScores(ctx, s.leaderboardKey(req.QuestionID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("no submissions yet for question %s", req.QuestionID))
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		entries = append(entries, domain.LeaderboardEntry{
			ApplicantID: domain.ID(z.Member.(string)),
			Score:       int(z.Score),
		})
	}

	return &domain.Leaderboard{
		QuestionID: req.QuestionID,
		Entries:    entries,
	}, nil
}

// Record keeps the applicant's best score for the question. A lower score never replaces a higher one.
func (s *Service) Record(ctx context.Context, sub domain.Submission) error {
	if err := s.redis.ZAddGT(ctx, s.leaderboardKey(sub.QuestionID), redis.Z{
		Score:  float64(sub.Score),
		Member: sub.ApplicantID.String(),
	}).Err(); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublish(ctx, sub.QuestionID)
}

// schedulePublish publishes at most one leaderboard.updated per question and interval: submissions
// tend to arrive in bursts at the end of an assessment.
func (s *Service) schedulePublish(ctx context.Context, questionID domain.ID) error {
	ok, err := s.redis.SetNX(ctx, s.publishKey(questionID), time.Now().UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{QuestionID: questionID})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: question=%s: %w", questionID, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{Leaderboard: *l})
	return nil
}

func (s *Service) leaderboardKey(questionID domain.ID) string {
	return fmt.Sprintf("%s:question:%s:leaderboard", s.prefix, questionID)
}

func (s *Service) publishKey(questionID domain.ID) string {
	return fmt.Sprintf("%s:question:%s:published", s.prefix, questionID)
}
