package summary

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"userdeck/internal/media"
	"userdeck/internal/metrics"
	"userdeck/internal/review"
)

type fakeGenerator struct {
	mu     sync.Mutex
	inputs []Input
	out    Output
	err    error
}

func (f *fakeGenerator) Generate(_ context.Context, in Input) (Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	return f.out, f.err
}

type fakeResolver struct {
	refs []string
	err  error
}

func (f *fakeResolver) Resolve(_ context.Context, ref string) (media.DataURL, error) {
	f.refs = append(f.refs, ref)
	if f.err != nil {
		return media.DataURL{}, f.err
	}
	return media.DataURL{MIMEType: "image/png", Data: []byte("png")}, nil
}

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	cache, err := NewRedisCache("redis://"+server.Addr(), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, server
}

func testSubmission() review.Submission {
	return review.Submission{
		ID:       "usr_1",
		Name:     "Alice Johnson",
		SourceDB: "Production DB",
		Image:    "https://picsum.photos/seed/alice/200",
		Selfie:   "https://picsum.photos/seed/alice-selfie/200",
	}
}

func TestSummarizeGeneratesAndCaches(t *testing.T) {
	cache, _ := newTestCache(t)
	generator := &fakeGenerator{out: Output{Summary: "Adult user from Production DB.", GeneratedAt: time.Now().UTC()}}
	images := &fakeResolver{}
	m := metrics.New(prometheus.NewRegistry())
	svc := NewService(generator, images, cache, zaptest.NewLogger(t), m)

	first, err := svc.Summarize(context.Background(), testSubmission())
	require.NoError(t, err)
	assert.Equal(t, "Adult user from Production DB.", first.Summary)
	assert.False(t, first.Cached)

	require.Len(t, generator.inputs, 1)
	in := generator.inputs[0]
	assert.Equal(t, "Alice Johnson", in.Name)
	assert.Equal(t, "usr_1", in.ID)
	assert.Equal(t, "Production DB", in.Database)
	assert.Equal(t, "image/png", in.Image.MIMEType)
	assert.Equal(t, []string{"https://picsum.photos/seed/alice/200"}, images.refs)

	second, err := svc.Summarize(context.Background(), testSubmission())
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Len(t, generator.inputs, 1, "cache hit must skip the generator")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Summaries.WithLabelValues("generated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Summaries.WithLabelValues("cached")))
}

func TestSummarizeFallsBackToSelfie(t *testing.T) {
	images := &fakeResolver{}
	svc := NewService(&fakeGenerator{out: Output{Summary: "ok"}}, images, nil, zaptest.NewLogger(t), metrics.New(prometheus.NewRegistry()))

	item := testSubmission()
	item.Image = ""
	_, err := svc.Summarize(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, []string{item.Selfie}, images.refs)
}

func TestSummarizeFailuresAreOpaque(t *testing.T) {
	cases := []struct {
		name      string
		generator Generator
		images    *fakeResolver
	}{
		{name: "image", generator: &fakeGenerator{out: Output{Summary: "x"}}, images: &fakeResolver{err: media.ErrUnsupportedImage}},
		{name: "model", generator: &fakeGenerator{err: errors.New("quota exceeded")}, images: &fakeResolver{}},
		{name: "empty", generator: &fakeGenerator{out: Output{Summary: "  "}}, images: &fakeResolver{}},
		{name: "unconfigured", generator: nil, images: &fakeResolver{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := metrics.New(prometheus.NewRegistry())
			svc := NewService(tc.generator, tc.images, nil, zaptest.NewLogger(t), m)

			_, err := svc.Summarize(context.Background(), testSubmission())
			assert.ErrorIs(t, err, ErrSummaryUnavailable)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.Summaries.WithLabelValues("failed")))
		})
	}
}

func TestSummarizeFailureIsNotCached(t *testing.T) {
	cache, server := newTestCache(t)
	svc := NewService(&fakeGenerator{err: errors.New("boom")}, &fakeResolver{}, cache, zaptest.NewLogger(t), metrics.New(prometheus.NewRegistry()))

	_, err := svc.Summarize(context.Background(), testSubmission())
	require.Error(t, err)
	assert.False(t, server.Exists("summary:usr_1"))
}

func TestSummarizeSurvivesCacheOutage(t *testing.T) {
	cache, server := newTestCache(t)
	server.Close()
	svc := NewService(&fakeGenerator{out: Output{Summary: "still works"}}, &fakeResolver{}, cache, zaptest.NewLogger(t), metrics.New(prometheus.NewRegistry()))

	out, err := svc.Summarize(context.Background(), testSubmission())
	require.NoError(t, err)
	assert.Equal(t, "still works", out.Summary)
}

func TestCachedLookup(t *testing.T) {
	cache, _ := newTestCache(t)
	svc := NewService(nil, &fakeResolver{}, cache, zaptest.NewLogger(t), metrics.New(prometheus.NewRegistry()))

	_, ok := svc.Cached(context.Background(), "usr_1")
	assert.False(t, ok)

	require.NoError(t, cache.Set(context.Background(), "usr_1", Output{Summary: "stored"}))
	out, ok := svc.Cached(context.Background(), "usr_1")
	require.True(t, ok)
	assert.Equal(t, "stored", out.Summary)
}

func TestRenderPrompt(t *testing.T) {
	prompt, err := renderPrompt(Input{Name: "Bob Williams", ID: "usr_2", Database: "Staging DB"})
	require.NoError(t, err)
	assert.Contains(t, prompt, "helping an admin review user profiles")
	assert.Contains(t, prompt, "Name: Bob Williams")
	assert.Contains(t, prompt, "ID: usr_2")
	assert.Contains(t, prompt, "Database: Staging DB")
}
