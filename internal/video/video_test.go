package video

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/lumenforge/aria/internal/logutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	name    string
	results []Candidate
	err     error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeRanker struct {
	preferred []string
}

func (f *fakeRanker) TopSources(ctx context.Context, days int) ([]string, error) {
	return f.preferred, nil
}

type fakeUsageLogger struct {
	mu     sync.Mutex
	logged []ClipRef
}

func (f *fakeUsageLogger) LogClipUsage(ctx context.Context, sourceName, clipID, releaseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logged = append(f.logged, ClipRef{SourceName: sourceName, ClipID: clipID})
	return nil
}

func TestSynthesizeQuery_CombinesKeywordsAndDescriptors(t *testing.T) {
	q := synthesizeQuery([]string{"dreamy"}, AudioFeatures{Tempo: 130, Energy: 0.8})
	assert.Contains(t, q, "dreamy")
	assert.Contains(t, q, "fast")
	assert.Contains(t, q, "intense")
}

func TestSynthesizeQuery_NothingDerivableFallsBackToAbstract(t *testing.T) {
	q := synthesizeQuery(nil, AudioFeatures{})
	assert.Equal(t, "abstract", q)
}

func TestSelect_ReturnsClipsFromPreferredAndOtherSources(t *testing.T) {
	preferredSource := &fakeSource{name: "pexels", results: []Candidate{{ClipID: "p1"}, {ClipID: "p2"}}}
	otherSource := &fakeSource{name: "pixabay", results: []Candidate{{ClipID: "o1"}}}
	ranker := &fakeRanker{preferred: []string{"pexels"}}
	usage := &fakeUsageLogger{}

	selector := New([]Source{preferredSource, otherSource}, ranker, usage, logutil.NewTestLogger(t))
	refs, err := selector.Select(context.Background(), AudioFeatures{}, []string{"dreamy"}, "release-1", 2)
	require.NoError(t, err)
	assert.Len(t, refs, 2)
	assert.Len(t, usage.logged, 2)
}

func TestSelect_PrefersPreferredSourceClipsOverOthers(t *testing.T) {
	preferredSource := &fakeSource{name: "pexels", results: []Candidate{{ClipID: "p1"}}}
	otherSource := &fakeSource{name: "pixabay", results: []Candidate{{ClipID: "o1"}, {ClipID: "o2"}}}
	ranker := &fakeRanker{preferred: []string{"pexels"}}
	usage := &fakeUsageLogger{}

	selector := New([]Source{preferredSource, otherSource}, ranker, usage, logutil.NewTestLogger(t))
	refs, err := selector.Select(context.Background(), AudioFeatures{}, nil, "release-1", 1)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "pexels", refs[0].SourceName)
}

func TestSelect_FallsBackToGenericQueriesWhenNoCandidates(t *testing.T) {
	empty := &fakeSource{name: "pexels"}
	ranker := &fakeRanker{}
	usage := &fakeUsageLogger{}

	calls := 0
	src := &countingSource{fakeSource: empty, onSearch: func(query string) []Candidate {
		calls++
		if query == fallbackQueries[1] {
			return []Candidate{{ClipID: "fallback-clip"}}
		}
		return nil
	}}

	selector := New([]Source{src}, ranker, usage, logutil.NewTestLogger(t))
	refs, err := selector.Select(context.Background(), AudioFeatures{}, nil, "release-1", 1)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "fallback-clip", refs[0].ClipID)
}

type countingSource struct {
	*fakeSource
	onSearch func(query string) []Candidate
}

func (c *countingSource) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	return c.onSearch(query), nil
}

func TestSelect_AllSourcesAndFallbacksExhaustedReturnsError(t *testing.T) {
	empty := &fakeSource{name: "pexels"}
	ranker := &fakeRanker{}
	usage := &fakeUsageLogger{}

	selector := New([]Source{empty}, ranker, usage, logutil.NewTestLogger(t))
	_, err := selector.Select(context.Background(), AudioFeatures{}, nil, "release-1", 1)
	assert.Error(t, err)
}

func TestSelect_OneSourceErrorDoesNotFailWholeSelection(t *testing.T) {
	broken := &fakeSource{name: "broken", err: fmt.Errorf("boom")}
	working := &fakeSource{name: "working", results: []Candidate{{ClipID: "c1"}}}
	ranker := &fakeRanker{}
	usage := &fakeUsageLogger{}

	selector := New([]Source{broken, working}, ranker, usage, logutil.NewTestLogger(t))
	refs, err := selector.Select(context.Background(), AudioFeatures{}, nil, "release-1", 1)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "working", refs[0].SourceName)
}

func TestSelect_NoSourcesRegisteredErrors(t *testing.T) {
	selector := New(nil, &fakeRanker{}, &fakeUsageLogger{}, logutil.NewTestLogger(t))
	_, err := selector.Select(context.Background(), AudioFeatures{}, nil, "release-1", 1)
	assert.Error(t, err)
}
