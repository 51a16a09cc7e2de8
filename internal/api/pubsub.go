package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/portal/internal/domain"
	"github.com/victornm/portal/internal/event"
)

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	SubmissionRecorded struct {
		QuestionID domain.ID       `json:"questionId"`
		Language   domain.Language `json:"language"`
		Score      int             `json:"score"`
	}

	JobSaved struct {
		JobID domain.ID `json:"jobId"`
	}

	VideoWatched struct {
		VideoID domain.ID `json:"videoId"`
	}
)

type applicantEvent interface {
	event.Event
	Applicant() domain.ID
}

// notify forwards a portal event to the applicant's notification channel and to the shared feed.
func (a *API) notify(ctx context.Context, e event.Event) error {
	ae, ok := e.(applicantEvent)
	if !ok {
		return fmt.Errorf("pubsub: unexpected event %T", e)
	}

	var data any
	switch e := e.(type) {
	case domain.EventSubmissionRecorded:
		// The code itself stays out of notifications.
		data = SubmissionRecorded{
			QuestionID: e.Submission.QuestionID,
			Language:   e.Submission.Language,
			Score:      e.Submission.Score,
		}
	case domain.EventJobSaved:
		data = JobSaved{JobID: e.JobID}
	case domain.EventVideoWatched:
		data = VideoWatched{VideoID: e.VideoID}
	default:
		return fmt.Errorf("pubsub: unexpected event %T", e)
	}

	b, err := json.Marshal(Notification{Event: e.Name(), Data: data})
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", e.Name(), err)
	}

	var eg errgroup.Group
	for _, ch := range []string{a.applicantChannel(ae.Applicant()), a.feedChannel()} {
		ch := ch
		eg.Go(func() error {
			return a.redis.Publish(ctx, ch, b).Err()
		})
	}

	return eg.Wait()
}

// notifyLeaderboard forwards a leaderboard change to the question's channel.
func (a *API) notifyLeaderboard(ctx context.Context, e event.Event) error {
	lu, ok := e.(domain.EventLeaderboardUpdated)
	if !ok {
		return fmt.Errorf("pubsub: unexpected event %T", e)
	}

	b, err := json.Marshal(Notification{Event: e.Name(), Data: lu.Leaderboard})
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", e.Name(), err)
	}

	return a.redis.Publish(ctx, a.questionChannel(lu.Leaderboard.QuestionID), b).Err()
}

func (a *API) applicantChannel(id domain.ID) string {
	return fmt.Sprintf("%s:applicant:%s", a.prefix, id)
}

func (a *API) feedChannel() string {
	return a.prefix + ":feed"
}

func (a *API) questionChannel(id domain.ID) string {
	return fmt.Sprintf("%s:question:%s:leaderboard", a.prefix, id)
}
