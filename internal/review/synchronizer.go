// Package review keeps the pending/approved/rejected partitions of the submission
// collection in memory, applies reviewer transitions optimistically and reconciles with
// every remote snapshot.
package review

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"userdeck/internal/metrics"
	"userdeck/internal/store"
)

var ErrNotFound = errors.New("submission not in any partition")

type recordPatcher interface {
	PatchReview(ctx context.Context, id, status string) error
}

// SnapshotObserver receives every reclassified snapshot after the partitions are replaced.
type SnapshotObserver func(records []Submission)

// Synchronizer owns the three partitions. One mutex serialises every event (snapshot,
// transition, read), so each event observes the partitions as a whole.
type Synchronizer struct {
	store   recordPatcher
	logger  *zap.Logger
	metrics *metrics.Metrics
	hub     *hub

	mu            sync.Mutex
	parts         partitions
	lastPending   int
	seenSnapshot  bool
	observers     []SnapshotObserver
	pendingWrites sync.WaitGroup
}

func NewSynchronizer(patcher recordPatcher, logger *zap.Logger, m *metrics.Metrics) *Synchronizer {
	s := &Synchronizer{
		store:   patcher,
		logger:  logger,
		metrics: m,
		hub:     newHub(),
	}
	for i := range s.parts {
		s.parts[i] = []Submission{}
	}
	return s
}

// AddObserver registers fn to be called with each snapshot, outside the lock.
func (s *Synchronizer) AddObserver(fn SnapshotObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// OnRemoteSnapshot replaces all partitions with the classification of records. It is a
// full resync: whatever arrives last wins, including over unconfirmed local transitions.
func (s *Synchronizer) OnRemoteSnapshot(records []store.Submission) {
	next := classify(records)

	s.mu.Lock()
	pending := len(next[StatusPending])
	arrivals := 0
	if s.seenSnapshot {
		arrivals = ArrivalCount(s.lastPending, pending)
	}
	s.lastPending = pending
	s.seenSnapshot = true
	s.parts = next
	s.recordSizesLocked()
	observers := append([]SnapshotObserver(nil), s.observers...)
	var all []Submission
	if len(observers) > 0 {
		all = make([]Submission, 0, len(records))
		for _, status := range allStatuses {
			all = append(all, next[status]...)
		}
	}
	s.mu.Unlock()

	s.metrics.SnapshotsApplied.Inc()
	s.hub.publish(Event{Kind: EventSnapshot})
	if arrivals > 0 {
		s.metrics.Arrivals.Add(float64(arrivals))
		event := Event{Kind: EventArrivals, Count: arrivals}
		s.logger.Info(event.Message(), zap.Int("pending", pending))
		s.hub.publish(event)
	}
	for _, observe := range observers {
		observe(all)
	}
}

// RequestTransition moves id to the head of target's partition immediately and issues
// one remote patch in the background. An unknown id is a no-op and returns false.
//
// A failed patch is logged and left alone: the local move is not rolled back, and the
// next snapshot is what corrects it.
func (s *Synchronizer) RequestTransition(id string, target Status) (Submission, bool) {
	s.mu.Lock()
	item, source, ok := s.parts.move(id, target)
	if ok {
		s.recordSizesLocked()
	}
	s.mu.Unlock()
	if !ok {
		return Submission{}, false
	}

	s.metrics.Transitions.WithLabelValues(target.String()).Inc()
	s.hub.publish(Event{Kind: EventTransition, ID: id, Status: target.String()})

	token := uuid.NewString()
	s.logger.Info("review transition requested",
		zap.String("id", id),
		zap.String("from", source.String()),
		zap.String("to", target.String()),
		zap.String("write_token", token),
	)

	s.pendingWrites.Add(1)
	go s.patch(id, target, token)
	return item, true
}

func (s *Synchronizer) patch(id string, target Status, token string) {
	defer s.pendingWrites.Done()

	// detached: the write outlives the request that triggered it
	if err := s.store.PatchReview(context.Background(), id, target.String()); err != nil {
		s.metrics.WriteFailures.Inc()
		s.logger.Error("remote status patch failed, local state left for next snapshot",
			zap.String("id", id),
			zap.String("to", target.String()),
			zap.String("write_token", token),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("remote status patch applied",
		zap.String("id", id),
		zap.String("write_token", token),
	)
}

// Search filters every partition by reference without touching stored state.
func (s *Synchronizer) Search(term string) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parts.view(term)
}

// View returns all three partitions unfiltered.
func (s *Synchronizer) View() View {
	return s.Search("")
}

func (s *Synchronizer) Get(id string) (Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, index, ok := s.parts.find(id)
	if !ok {
		return Submission{}, ErrNotFound
	}
	return s.parts[status][index], nil
}

// Subscribe returns a channel of change events and a function that ends the subscription.
func (s *Synchronizer) Subscribe(buffer int) (<-chan Event, func()) {
	return s.hub.subscribe(buffer)
}

// Drain waits for in-flight remote patches.
func (s *Synchronizer) Drain() {
	s.pendingWrites.Wait()
}

func (s *Synchronizer) recordSizesLocked() {
	for _, status := range allStatuses {
		s.metrics.PartitionSize.WithLabelValues(status.String()).Set(float64(len(s.parts[status])))
	}
}
