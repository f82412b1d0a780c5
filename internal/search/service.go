package search

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"userdeck/internal/review"
)

type index interface {
	Healthy() bool
	Search(q Query) ([]Result, int, error)
	IndexRecords(records []Record) error
	DeleteRecords(ids []string) error
}

type fallback interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
}

// Service is the facade that tries Meilisearch first and falls back to PostgreSQL.
type Service struct {
	index    index
	fallback fallback
	logger   *zap.Logger

	// queueMu guards the latest unindexed snapshot and whether a worker is running.
	queueMu sync.Mutex
	queued  []Record
	hasNext bool
	running bool
	pending sync.WaitGroup

	// indexed is only touched by the single running worker.
	indexed map[string]struct{}
}

// NewService creates a search service. idx may be nil if Meilisearch is not configured.
func NewService(idx index, fb fallback, logger *zap.Logger) *Service {
	return &Service{index: idx, fallback: fb, logger: logger, indexed: map[string]struct{}{}}
}

// Search tries Meilisearch if healthy, otherwise falls back to PostgreSQL.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.index != nil && s.index.Healthy() {
		results, total, err := s.index.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: "meilisearch"}
		}
		s.logger.Warn("meilisearch error, falling back to postgres", zap.Error(err))
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.logger.Error("postgres search failed", zap.Error(err))
		return Response{Results: []Result{}, Total: 0, Query: q.Text, Backend: "postgres"}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: "postgres"}
}

// ObserveSnapshot queues a reclassified snapshot for the index and returns immediately.
// Snapshots are applied in arrival order by one worker; a snapshot superseded before the
// worker reaches it is skipped, so the newest snapshot is always indexed last. Records
// missing from an applied snapshot are removed from the index.
func (s *Service) ObserveSnapshot(items []review.Submission) {
	if s.index == nil || !s.index.Healthy() {
		return
	}
	records := make([]Record, 0, len(items))
	for _, item := range items {
		records = append(records, recordFor(item))
	}

	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	s.queued = records
	s.hasNext = true
	if s.running {
		return
	}
	s.running = true
	s.pending.Add(1)
	go s.drainQueue()
}

func (s *Service) drainQueue() {
	defer s.pending.Done()
	for {
		s.queueMu.Lock()
		if !s.hasNext {
			s.running = false
			s.queueMu.Unlock()
			return
		}
		records := s.queued
		s.queued, s.hasNext = nil, false
		s.queueMu.Unlock()

		s.apply(records)
	}
}

func (s *Service) apply(records []Record) {
	next := make(map[string]struct{}, len(records))
	for _, record := range records {
		next[record.ID] = struct{}{}
	}
	var removed []string
	for id := range s.indexed {
		if _, ok := next[id]; !ok {
			removed = append(removed, id)
		}
	}

	if err := s.index.IndexRecords(records); err != nil {
		s.logger.Warn("index snapshot", zap.Int("records", len(records)), zap.Error(err))
		return
	}
	if err := s.index.DeleteRecords(removed); err != nil {
		s.logger.Warn("remove stale index records", zap.Int("records", len(removed)), zap.Error(err))
		return
	}
	s.indexed = next
}

// Wait blocks until queued index updates finish.
func (s *Service) Wait() {
	s.pending.Wait()
}

func recordFor(item review.Submission) Record {
	return Record{
		ID:        item.ID,
		Name:      item.Name,
		Reference: item.Reference,
		Status:    item.Status.String(),
		SourceDB:  item.SourceDB,
		IDType:    item.IDType,
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
