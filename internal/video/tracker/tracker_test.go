package tracker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lumenforge/aria/internal/domain"
	"github.com/lumenforge/aria/internal/logutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source_stats.json")
	tr, err := New(path, logutil.NewTestLogger(t))
	require.NoError(t, err)
	return tr
}

func TestLogPerformance_ZeroScoreClipExcludedFromAggregation(t *testing.T) {
	tr := newTestTracker(t)
	require.NoError(t, tr.LogPerformance(context.Background(), "pexels", "clip1", domain.MetricRecord{}))

	sources, err := tr.TopSources(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestLogPerformance_NonZeroScoreRanksSourceAboveZeroScoreSource(t *testing.T) {
	tr := newTestTracker(t)
	require.NoError(t, tr.LogPerformance(context.Background(), "strong", "clip1", domain.MetricRecord{
		Likes: 100, RetentionPct: 80, WatchTimeSec: 50, Timestamp: time.Now(),
	}))
	require.NoError(t, tr.LogPerformance(context.Background(), "weak", "clip2", domain.MetricRecord{}))

	sources, err := tr.TopSources(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "strong", sources[0])
}

func TestLogPerformance_RankingStableAcrossIdenticalRepeatedLogs(t *testing.T) {
	tr := newTestTracker(t)
	record := domain.MetricRecord{Likes: 10, RetentionPct: 50, WatchTimeSec: 30, Timestamp: time.Now()}

	require.NoError(t, tr.LogPerformance(context.Background(), "a", "clip1", record))
	first, err := tr.TopSources(context.Background(), 0)
	require.NoError(t, err)

	require.NoError(t, tr.LogPerformance(context.Background(), "a", "clip1", record))
	second, err := tr.TopSources(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestLogClipUsage_TracksUsageCountAndReleaseIDs(t *testing.T) {
	tr := newTestTracker(t)
	require.NoError(t, tr.LogClipUsage(context.Background(), "pexels", "clip1", "release-a"))
	require.NoError(t, tr.LogClipUsage(context.Background(), "pexels", "clip1", "release-a"))
	require.NoError(t, tr.LogClipUsage(context.Background(), "pexels", "clip1", "release-b"))

	clip := tr.stats.Sources["pexels"].Clips["clip1"]
	assert.Equal(t, 3, clip.UsageCount)
	assert.ElementsMatch(t, []string{"release-a", "release-b"}, clip.ReleaseIDs)
	assert.GreaterOrEqual(t, clip.UsageCount, len(clip.ReleaseIDs))
}

func TestNew_SurvivesRestartByReloadingSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "source_stats.json")
	first, err := New(path, logutil.NewTestLogger(t))
	require.NoError(t, err)
	require.NoError(t, first.LogPerformance(context.Background(), "a", "clip1", domain.MetricRecord{
		Likes: 10, RetentionPct: 50, WatchTimeSec: 30, Timestamp: time.Now(),
	}))

	second, err := New(path, logutil.NewTestLogger(t))
	require.NoError(t, err)
	sources, err := second.TopSources(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, sources)
}

func TestTopSources_DaysWindowExcludesOlderMetrics(t *testing.T) {
	tr := newTestTracker(t)
	require.NoError(t, tr.LogPerformance(context.Background(), "old-source", "clip1", domain.MetricRecord{
		Likes: 100, RetentionPct: 90, WatchTimeSec: 60, Timestamp: time.Now().Add(-60 * 24 * time.Hour),
	}))

	sources, err := tr.TopSources(context.Background(), 30)
	require.NoError(t, err)
	assert.Empty(t, sources)

	sources, err = tr.TopSources(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"old-source"}, sources)
}
