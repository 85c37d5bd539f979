// Package tracker implements StockSuccessTracker: source ranking derived
// from clip performance metrics, persisted as a single renameio-atomic
// JSON snapshot.
package tracker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lumenforge/aria/internal/atomicfile"
	"github.com/lumenforge/aria/internal/domain"
	"github.com/lumenforge/aria/internal/logutil"
)

// clipScore weights: likes 0.2, retention_pct 0.5, watch_time_avg_sec 0.3.
const (
	weightLikes        = 0.2
	weightRetention    = 0.5
	weightWatchTimeSec = 0.3
)

// Tracker is the StockSuccessTracker: it ranks registered stock-video
// sources by recent clip performance and records clip usage. Single
// writer per persisted snapshot; readers observe a consistent prior
// version while a write is in flight.
type Tracker struct {
	path   string
	logger logutil.LoggerInterface

	mu    sync.Mutex
	stats *domain.SourceStats
}

// New loads (or initializes) the snapshot at path.
func New(path string, logger logutil.LoggerInterface) (*Tracker, error) {
	if logger == nil {
		logger = logutil.NewLogger(logutil.InfoLevel, nil, "[video-tracker] ")
	}
	stats := domain.NewSourceStats()
	if err := atomicfile.ReadJSON(path, stats); err != nil {
		stats = domain.NewSourceStats()
	}
	return &Tracker{path: path, logger: logger, stats: stats}, nil
}

// LogClipUsage records that clipID from sourceName was selected for
// releaseID, then synchronously recalculates aggregated scores and
// persists the snapshot.
func (t *Tracker) LogClipUsage(ctx context.Context, sourceName, clipID, releaseID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.stats.Sources[sourceName]
	if !ok {
		entry = &domain.SourceEntry{Clips: make(map[string]*domain.ClipStats)}
		t.stats.Sources[sourceName] = entry
	}
	clip, ok := entry.Clips[clipID]
	if !ok {
		clip = &domain.ClipStats{}
		entry.Clips[clipID] = clip
	}
	clip.UsageCount++
	if !containsString(clip.ReleaseIDs, releaseID) {
		clip.ReleaseIDs = append(clip.ReleaseIDs, releaseID)
	}

	t.recalculate()
	return t.persist(ctx)
}

// LogPerformance records a performance observation for clipID from
// sourceName and recalculates aggregated scores.
func (t *Tracker) LogPerformance(ctx context.Context, sourceName, clipID string, record domain.MetricRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.stats.Sources[sourceName]
	if !ok {
		entry = &domain.SourceEntry{Clips: make(map[string]*domain.ClipStats)}
		t.stats.Sources[sourceName] = entry
	}
	clip, ok := entry.Clips[clipID]
	if !ok {
		clip = &domain.ClipStats{}
		entry.Clips[clipID] = clip
	}
	clip.Metrics = append(clip.Metrics, record)

	t.recalculate()
	return t.persist(ctx)
}

// recalculate recomputes every source's aggregated score from the full
// stored metric list, never incrementally -- this is what makes
// repeated identical log calls idempotent on ranking (IV-5).
func (t *Tracker) recalculate() {
	for _, entry := range t.stats.Sources {
		var nonZero []float64
		for _, clip := range entry.Clips {
			score := clipScore(clip.Metrics, 0)
			if score > 0 {
				nonZero = append(nonZero, score)
			}
		}
		entry.AggregatedScore = mean(nonZero)
	}
}

func clipScore(metrics []domain.MetricRecord, sinceDays int) float64 {
	var scores []float64
	cutoff := time.Time{}
	if sinceDays > 0 {
		cutoff = time.Now().Add(-time.Duration(sinceDays) * 24 * time.Hour)
	}
	for _, m := range metrics {
		if sinceDays > 0 && m.Timestamp.Before(cutoff) {
			continue
		}
		scores = append(scores, weightLikes*float64(m.Likes)+weightRetention*m.RetentionPct+weightWatchTimeSec*m.WatchTimeSec)
	}
	return mean(scores)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// TopSources returns registered source names sorted by aggregated score
// descending over the last days (0 means all-time), excluding
// zero-score sources.
func (t *Tracker) TopSources(ctx context.Context, days int) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	type scored struct {
		name  string
		score float64
	}
	var ranked []scored
	for name, entry := range t.stats.Sources {
		score := entry.AggregatedScore
		if days > 0 {
			var nonZero []float64
			for _, clip := range entry.Clips {
				cs := clipScore(clip.Metrics, days)
				if cs > 0 {
					nonZero = append(nonZero, cs)
				}
			}
			score = mean(nonZero)
		}
		if score > 0 {
			ranked = append(ranked, scored{name: name, score: score})
		}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	names := make([]string, len(ranked))
	for i, r := range ranked {
		names[i] = r.name
	}
	return names, nil
}

func (t *Tracker) persist(ctx context.Context) error {
	if err := atomicfile.WriteJSON(t.path, t.stats); err != nil {
		t.logger.ErrorContext(ctx, "failed to persist source stats snapshot: err=%v", err)
		return err
	}
	return nil
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
