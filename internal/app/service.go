// Package app is the reviewer-facing HTTP surface over the review partitions.
package app

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"userdeck/internal/config"
	"userdeck/internal/export"
	"userdeck/internal/review"
	"userdeck/internal/search"
	"userdeck/internal/store"
	"userdeck/internal/summary"
)

type reviewer interface {
	Search(term string) review.View
	Get(id string) (review.Submission, error)
	RequestTransition(id string, target review.Status) (review.Submission, bool)
	Subscribe(buffer int) (<-chan review.Event, func())
}

type dataStore interface {
	Ping(ctx context.Context) error
	InsertSubmissions(ctx context.Context, items []store.NewSubmission) ([]string, error)
}

type summarizer interface {
	Summarize(ctx context.Context, item review.Submission) (summary.Output, error)
}

type sheetExporter interface {
	ReviewSheet(ctx context.Context, item review.Submission) (*export.Result, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type searcher interface {
	Search(ctx context.Context, q search.Query) search.Response
}

// Deps are the collaborators of Service. Summaries, Exporter, Search and Cache may be nil.
type Deps struct {
	Store     dataStore
	Reviews   reviewer
	Summaries summarizer
	Exporter  sheetExporter
	Search    searcher
	Cache     pinger
}

type Service struct {
	cfg       config.Config
	store     dataStore
	reviews   reviewer
	summaries summarizer
	exporter  sheetExporter
	search    searcher
	cache     pinger
	logger    *zap.Logger
}

func New(cfg config.Config, deps Deps, logger *zap.Logger) *Service {
	return &Service{
		cfg:       cfg,
		store:     deps.Store,
		reviews:   deps.Reviews,
		summaries: deps.Summaries,
		exporter:  deps.Exporter,
		search:    deps.Search,
		cache:     deps.Cache,
		logger:    logger,
	}
}

// ViewResponse is the partitioned listing sent to reviewers.
type ViewResponse struct {
	review.View
	Counts map[string]int `json:"counts"`
	Query  string         `json:"query"`
}

// TransitionResponse carries the moved submission and the partitions after the move.
type TransitionResponse struct {
	Submission review.Submission `json:"submission"`
	View       ViewResponse      `json:"view"`
}

var (
	errSubmissionNotFound = domainError(http.StatusNotFound, "NOT_FOUND", "Submission not found", nil)
	errSummaryFailed      = domainError(http.StatusBadGateway, "SUMMARY_FAILED", "Failed to generate user summary. Please try again.", nil)
	errExportUnavailable  = domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not available on this server", nil)
	errSeedDisabled       = domainError(http.StatusForbidden, "FORBIDDEN", "Seeding is disabled in this environment", nil)
)

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// PingCache reports whether a summary cache is configured and, if so, whether it answers.
func (s *Service) PingCache(ctx context.Context) (bool, error) {
	if s.cache == nil {
		return false, nil
	}
	return true, s.cache.Ping(ctx)
}

func (s *Service) View(query string) ViewResponse {
	view := s.reviews.Search(query)
	return ViewResponse{View: view, Counts: view.Counts(), Query: strings.TrimSpace(query)}
}

func (s *Service) Submission(id string) (review.Submission, error) {
	item, err := s.reviews.Get(id)
	if err != nil {
		return review.Submission{}, errSubmissionNotFound
	}
	return item, nil
}

// Transition applies a reviewer action. The remote write happens in the background; the
// response reflects the optimistic state.
func (s *Service) Transition(id string, target review.Status) (TransitionResponse, error) {
	item, ok := s.reviews.RequestTransition(id, target)
	if !ok {
		return TransitionResponse{}, errSubmissionNotFound
	}
	return TransitionResponse{Submission: item, View: s.View("")}, nil
}

func (s *Service) Summarize(ctx context.Context, id string) (summary.Output, error) {
	item, err := s.Submission(id)
	if err != nil {
		return summary.Output{}, err
	}
	if s.summaries == nil {
		return summary.Output{}, errSummaryFailed
	}
	out, err := s.summaries.Summarize(ctx, item)
	if err != nil {
		return summary.Output{}, errSummaryFailed.because(err)
	}
	return out, nil
}

func (s *Service) ReviewSheet(ctx context.Context, id string) (*export.Result, error) {
	item, err := s.Submission(id)
	if err != nil {
		return nil, err
	}
	if s.exporter == nil {
		return nil, errExportUnavailable
	}
	result, err := s.exporter.ReviewSheet(ctx, item)
	if errors.Is(err, export.ErrPDFDependencyMissing) {
		return nil, errExportUnavailable.because(err)
	}
	return result, err
}

func (s *Service) SearchIndex(ctx context.Context, text, status string) (search.Response, error) {
	if status != "" {
		parsed, err := review.ParseStatus(status)
		if err != nil {
			return search.Response{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "Unknown status filter", map[string]any{"status": status})
		}
		status = parsed.String()
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(ctx, search.Query{Text: strings.TrimSpace(text), Status: status}), nil
}

// Seed inserts the sample submissions. The live subscription delivers them to the
// partitions like any other change.
func (s *Service) Seed(ctx context.Context) ([]string, error) {
	if !s.cfg.AllowSeed || s.cfg.IsProduction() {
		return nil, errSeedDisabled
	}
	ids, err := s.store.InsertSubmissions(ctx, sampleSubmissions())
	if err != nil {
		return nil, err
	}
	s.logger.Info("seeded sample submissions", zap.Int("count", len(ids)))
	return ids, nil
}

// Subscribe exposes the partition change feed to the stream handler.
func (s *Service) Subscribe(buffer int) (<-chan review.Event, func()) {
	return s.reviews.Subscribe(buffer)
}
