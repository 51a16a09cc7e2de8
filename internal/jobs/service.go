// Package jobs serves the applicant's job browser: recommended jobs page by page, or the promoted jobs
// for applicants who have no profile yet.
package jobs

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/portal/internal/backend"
	"github.com/victornm/portal/internal/domain"
	"github.com/victornm/portal/internal/errors"
	"github.com/victornm/portal/internal/event"
)

const defaultPageSize = 16

type Config struct {
	Backend  *backend.Client
	EventBus *event.Bus
	PageSize int
}

type Service struct {
	backend  *backend.Client
	eb       *event.Bus
	pageSize int
}

func NewService(c Config) *Service {
	size := c.PageSize
	if size <= 0 {
		size = defaultPageSize
	}

	return &Service{
		backend:  c.Backend,
		eb:       c.EventBus,
		pageSize: size,
	}
}

type BrowseRequest struct {
	ApplicantID domain.ID
	// Page is zero based.
	Page int
}

// Browse returns one page of jobs. An applicant whose profile id is 0 has not filled a profile and
// gets the promoted jobs on a single page instead of recommendations.
func (s *Service) Browse(ctx context.Context, req BrowseRequest) (*domain.JobPage, error) {
	if req.ApplicantID.IsZero() {
		return nil, errors.InvalidArgument("applicant id is required")
	}
	if req.Page < 0 {
		return nil, errors.InvalidArgument("page must not be negative")
	}

	profileID, err := s.profileID(ctx, req.ApplicantID)
	if err != nil {
		return nil, err
	}

	if profileID == 0 {
		return s.promoted(ctx, req)
	}

	var (
		jobs  []domain.Job
		count int
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return s.backend.Do(egCtx, backend.Request{
			Operation: "recommended_jobs",
			Method:    http.MethodGet,
			Path:      "/recommendedjob/findrecommendedjob/" + url.PathEscape(req.ApplicantID.String()),
			Query: url.Values{
				"page": {strconv.Itoa(req.Page)},
				"size": {strconv.Itoa(s.pageSize)},
			},
		}, &jobs)
	})
	eg.Go(func() error {
		return s.backend.Do(egCtx, backend.Request{
			Operation: "count_jobs",
			Method:    http.MethodGet,
			Path:      "/recommendedjob/countRecommendedJobsForApplicant/" + url.PathEscape(req.ApplicantID.String()),
		}, &count)
	})
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("browse jobs: %w", err)
	}

	total := (count + s.pageSize - 1) / s.pageSize
	if req.Page > 0 && req.Page >= total {
		return nil, errors.InvalidArgument("page %d is out of range, there are %d pages", req.Page+1, total)
	}

	if jobs == nil {
		jobs = []domain.Job{}
	}
	return &domain.JobPage{
		Jobs:       jobs,
		Page:       req.Page,
		TotalPages: total,
		Links:      PageWindow(req.Page, total),
	}, nil
}

func (s *Service) promoted(ctx context.Context, req BrowseRequest) (*domain.JobPage, error) {
	if req.Page != 0 {
		return nil, errors.InvalidArgument("promoted jobs have a single page")
	}

	var jobs []domain.Job
	err := s.backend.Do(ctx, backend.Request{
		Operation: "promoted_jobs",
		Method:    http.MethodGet,
		Path:      "/job/promote/" + url.PathEscape(req.ApplicantID.String()) + "/yes",
	}, &jobs)
	if err != nil {
		return nil, fmt.Errorf("promoted jobs: %w", err)
	}

	if jobs == nil {
		jobs = []domain.Job{}
	}
	return &domain.JobPage{
		Jobs:       jobs,
		TotalPages: 1,
		Promoted:   true,
		Links:      PageWindow(0, 1),
	}, nil
}

func (s *Service) profileID(ctx context.Context, applicantID domain.ID) (int64, error) {
	var id int64
	err := s.backend.Do(ctx, backend.Request{
		Operation: "profile_id",
		Method:    http.MethodGet,
		Path:      "/applicantprofile/" + url.PathEscape(applicantID.String()) + "/profileid",
	}, &id)
	if err != nil {
		return 0, fmt.Errorf("look up profile: %w", err)
	}
	return id, nil
}

// HasPrevious and HasNext tell whether the pager can move from page (zero based).
func HasPrevious(page int) bool { return page > 0 }

func HasNext(page, total int) bool { return page+1 < total }

// PageWindow returns the links of the pagination bar for the zero based page out of total: the first
// two pages, the last two, and the pages around the current one. Runs of omitted pages become a single
// gap link.
func PageWindow(page, total int) []domain.PageLink {
	links := make([]domain.PageLink, 0, 8)
	current := page + 1
	prev := 0

	for n := 1; n <= total; n++ {
		if n > 2 && n < total-1 && (n < current-1 || n > current+1) {
			continue
		}
		if prev != 0 && n != prev+1 {
			links = append(links, domain.PageLink{Gap: true})
		}
		links = append(links, domain.PageLink{Number: n, Current: n == current})
		prev = n
	}

	return links
}

type SaveJobRequest struct {
	ApplicantID domain.ID
	JobID       domain.ID
}

// SaveJob adds a job to the applicant's saved jobs.
func (s *Service) SaveJob(ctx context.Context, req SaveJobRequest) error {
	if req.ApplicantID.IsZero() || req.JobID.IsZero() {
		return errors.InvalidArgument("applicant id and job id are required")
	}

	err := s.backend.Do(ctx, backend.Request{
		Operation: "save_job",
		Method:    http.MethodPost,
		Path: "/savedjob/applicants/savejob/" + url.PathEscape(req.ApplicantID.String()) +
			"/" + url.PathEscape(req.JobID.String()),
	}, nil)
	if err != nil {
		return fmt.Errorf("save job %s: %w", req.JobID, err)
	}

	zap.L().Info("jobs: job saved",
		zap.String("applicant_id", req.ApplicantID.String()),
		zap.String("job_id", req.JobID.String()),
	)
	if s.eb != nil {
		s.eb.Publish(ctx, domain.EventJobSaved{ApplicantID: req.ApplicantID, JobID: req.JobID})
	}
	return nil
}
