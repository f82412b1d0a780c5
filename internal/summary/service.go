package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"userdeck/internal/media"
	"userdeck/internal/metrics"
	"userdeck/internal/review"
)

type imageResolver interface {
	Resolve(ctx context.Context, ref string) (media.DataURL, error)
}

type summaryCache interface {
	Get(ctx context.Context, id string) (Output, bool, error)
	Set(ctx context.Context, id string, out Output) error
}

type Service struct {
	generator Generator
	images    imageResolver
	cache     summaryCache
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewService wires the summary flow. cache may be nil; generator may be nil when no model
// is configured, in which case every request fails with ErrSummaryUnavailable.
func NewService(generator Generator, images imageResolver, cache summaryCache, logger *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{generator: generator, images: images, cache: cache, logger: logger, metrics: m}
}

// Summarize returns a summary for item, from the cache when present.
func (s *Service) Summarize(ctx context.Context, item review.Submission) (Output, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, item.ID)
		if err != nil {
			s.logger.Warn("summary cache lookup failed", zap.String("id", item.ID), zap.Error(err))
		}
		if ok {
			s.metrics.Summaries.WithLabelValues("cached").Inc()
			cached.Cached = true
			return cached, nil
		}
	}

	out, err := s.generate(ctx, item)
	if err != nil {
		s.metrics.Summaries.WithLabelValues("failed").Inc()
		s.logger.Error("summary generation failed", zap.String("id", item.ID), zap.Error(err))
		return Output{}, ErrSummaryUnavailable
	}
	s.metrics.Summaries.WithLabelValues("generated").Inc()

	if s.cache != nil {
		if err := s.cache.Set(ctx, item.ID, out); err != nil {
			s.logger.Warn("summary cache store failed", zap.String("id", item.ID), zap.Error(err))
		}
	}
	return out, nil
}

func (s *Service) generate(ctx context.Context, item review.Submission) (Output, error) {
	if s.generator == nil {
		return Output{}, errors.New("no summary model configured")
	}
	ref := item.Image
	if strings.TrimSpace(ref) == "" {
		ref = item.Selfie
	}
	image, err := s.images.Resolve(ctx, ref)
	if err != nil {
		return Output{}, fmt.Errorf("resolve image: %w", err)
	}
	out, err := s.generator.Generate(ctx, Input{
		Name:     item.Name,
		ID:       item.ID,
		Database: item.SourceDB,
		Image:    image,
	})
	if err != nil {
		return Output{}, err
	}
	if strings.TrimSpace(out.Summary) == "" {
		return Output{}, errors.New("model returned an empty summary")
	}
	return out, nil
}

// Cached returns the stored summary for id without generating one.
func (s *Service) Cached(ctx context.Context, id string) (Output, bool) {
	if s.cache == nil {
		return Output{}, false
	}
	out, ok, err := s.cache.Get(ctx, id)
	if err != nil {
		s.logger.Warn("summary cache lookup failed", zap.String("id", id), zap.Error(err))
		return Output{}, false
	}
	return out, ok
}
