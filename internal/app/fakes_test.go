package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"userdeck/internal/config"
	"userdeck/internal/export"
	"userdeck/internal/review"
	"userdeck/internal/search"
	"userdeck/internal/store"
	"userdeck/internal/summary"
)

type fakeStore struct {
	pingFn   func(context.Context) error
	insertFn func(context.Context, []store.NewSubmission) ([]string, error)
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) InsertSubmissions(ctx context.Context, items []store.NewSubmission) ([]string, error) {
	if f.insertFn != nil {
		return f.insertFn(ctx, items)
	}
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = "usr_seed"
	}
	return ids, nil
}

type fakeReviewer struct {
	mu          sync.Mutex
	view        review.View
	searchTerms []string
	transitions []string
	events      chan review.Event
}

func (f *fakeReviewer) Search(term string) review.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchTerms = append(f.searchTerms, term)
	return f.view
}

func (f *fakeReviewer) Get(id string) (review.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, list := range [][]review.Submission{f.view.Pending, f.view.Approved, f.view.Rejected} {
		for _, item := range list {
			if item.ID == id {
				return item, nil
			}
		}
	}
	return review.Submission{}, review.ErrNotFound
}

func (f *fakeReviewer) RequestTransition(id string, target review.Status) (review.Submission, bool) {
	item, err := f.Get(id)
	if err != nil {
		return review.Submission{}, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, id+"->"+target.String())
	item.Status = target
	item.Optimistic = true
	return item, true
}

func (f *fakeReviewer) Subscribe(int) (<-chan review.Event, func()) {
	if f.events == nil {
		f.events = make(chan review.Event, 4)
	}
	return f.events, func() {}
}

type fakeCache struct {
	err error
}

func (f *fakeCache) Ping(context.Context) error { return f.err }

type fakeSummarizer struct {
	summarizeFn func(context.Context, review.Submission) (summary.Output, error)
}

func (f *fakeSummarizer) Summarize(ctx context.Context, item review.Submission) (summary.Output, error) {
	return f.summarizeFn(ctx, item)
}

type fakeExporter struct {
	reviewSheetFn func(context.Context, review.Submission) (*export.Result, error)
}

func (f *fakeExporter) ReviewSheet(ctx context.Context, item review.Submission) (*export.Result, error) {
	return f.reviewSheetFn(ctx, item)
}

type fakeSearcher struct {
	queries []search.Query
}

func (f *fakeSearcher) Search(_ context.Context, q search.Query) search.Response {
	f.queries = append(f.queries, q)
	return search.Response{Results: []search.Result{{ID: "usr_1"}}, Total: 1, Query: q.Text, Backend: "postgres"}
}

func sampleView() review.View {
	return review.View{
		Pending: []review.Submission{
			{ID: "usr_1", Name: "Alice Johnson", Reference: "KYC-X1234567", Status: review.StatusPending},
			{ID: "usr_2", Name: "Bob Williams", Status: review.StatusPending},
		},
		Approved: []review.Submission{{ID: "usr_3", Name: "Charlie Brown", Status: review.StatusApproved}},
		Rejected: []review.Submission{},
	}
}

func newTestServer(cfg config.Config, deps Deps) *HTTPServer {
	if deps.Store == nil {
		deps.Store = &fakeStore{}
	}
	if deps.Reviews == nil {
		deps.Reviews = &fakeReviewer{view: sampleView()}
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}
	logger := zap.NewNop()
	return NewHTTPServer(New(cfg, deps, logger), cfg.CORSOrigin, logger, nil)
}
