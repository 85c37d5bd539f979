// Package video selects stock-video clips for a release: it synthesizes
// a search query from persona keywords and audio features, searches
// registered sources in preferred-first order, and logs clip usage back
// to the StockSuccessTracker.
package video

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lumenforge/aria/internal/logutil"
)

// AudioFeatures is the generated track's measured properties that drive
// query synthesis.
type AudioFeatures struct {
	Tempo    float64
	Energy   float64
	Duration time.Duration
}

// Candidate is one result from a single source search call.
type Candidate struct {
	ClipID string
	URL    string
}

// ClipRef is a selected clip, attributed to the source it came from.
type ClipRef struct {
	SourceName string
	ClipID     string
	URL        string
}

// Source is one registered stock-video provider.
type Source interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Candidate, error)
}

// SourceRanker supplies the current preferred-source ordering; backed
// by tracker.Tracker.TopSources in production.
type SourceRanker interface {
	TopSources(ctx context.Context, days int) ([]string, error)
}

// UsageLogger records a clip selection; backed by tracker.Tracker.LogClipUsage.
type UsageLogger interface {
	LogClipUsage(ctx context.Context, sourceName, clipID, releaseID string) error
}

// DefaultRecencyDays is the window Select asks the ranker for top
// sources over, per spec's default 30-day window.
const DefaultRecencyDays = 30

// fallbackQueries is tried, in order, across the same source ordering,
// when every source returns zero candidates for the synthesized query.
var fallbackQueries = []string{
	"abstract background",
	"nature landscape",
	"city lights",
	"slow motion texture",
}

// Selector implements query synthesis, preferred-source-first search,
// the generic-fallback-query ladder, and shuffle-then-take-N selection.
type Selector struct {
	sources []Source
	ranker  SourceRanker
	usage   UsageLogger
	logger  logutil.LoggerInterface
	rand    *rand.Rand
}

// New constructs a Selector over the given registered sources.
func New(sources []Source, ranker SourceRanker, usage UsageLogger, logger logutil.LoggerInterface) *Selector {
	if logger == nil {
		logger = logutil.NewLogger(logutil.InfoLevel, nil, "[video] ")
	}
	return &Selector{
		sources: sources,
		ranker:  ranker,
		usage:   usage,
		logger:  logger,
		rand:    rand.New(rand.NewSource(1)),
	}
}

type sourcedCandidate struct {
	source Source
	clip   Candidate
}

// Select returns up to n ClipRef descriptors for releaseID, logging
// each selection's usage to the tracker.
func (s *Selector) Select(ctx context.Context, features AudioFeatures, keywords []string, releaseID string, n int) ([]ClipRef, error) {
	if len(s.sources) == 0 {
		return nil, fmt.Errorf("video: no sources registered")
	}

	order, preferredN, err := s.sourceOrder(ctx)
	if err != nil {
		return nil, err
	}

	query := synthesizeQuery(keywords, features)
	candidates, err := s.searchAll(ctx, order, query, n)
	if err != nil {
		return nil, err
	}

	if len(candidates) == 0 {
		for _, fallback := range fallbackQueries {
			s.logger.WarnContext(ctx, "no candidates for synthesized query, trying fallback: query=%s", fallback)
			candidates, err = s.searchAll(ctx, order, fallback, n)
			if err != nil {
				return nil, err
			}
			if len(candidates) > 0 {
				break
			}
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("video: no candidates found for release %s after exhausting fallback queries", releaseID)
	}

	preferredSet := make(map[string]bool, preferredN)
	for i := 0; i < preferredN && i < len(order); i++ {
		preferredSet[order[i]] = true
	}

	var preferredPool, otherPool []sourcedCandidate
	for _, c := range candidates {
		if preferredSet[c.source.Name()] {
			preferredPool = append(preferredPool, c)
		} else {
			otherPool = append(otherPool, c)
		}
	}
	s.rand.Shuffle(len(preferredPool), func(i, j int) { preferredPool[i], preferredPool[j] = preferredPool[j], preferredPool[i] })
	s.rand.Shuffle(len(otherPool), func(i, j int) { otherPool[i], otherPool[j] = otherPool[j], otherPool[i] })

	selected := append(preferredPool, otherPool...)
	if len(selected) > n {
		selected = selected[:n]
	}

	refs := make([]ClipRef, 0, len(selected))
	for _, c := range selected {
		ref := ClipRef{SourceName: c.source.Name(), ClipID: c.clip.ClipID, URL: c.clip.URL}
		refs = append(refs, ref)
		if err := s.usage.LogClipUsage(ctx, ref.SourceName, ref.ClipID, releaseID); err != nil {
			s.logger.ErrorContext(ctx, "failed to log clip usage: source=%s clip_id=%s err=%v", ref.SourceName, ref.ClipID, err)
		}
	}
	return refs, nil
}

// sourceOrder returns preferred sources (per the ranker) first, then
// every remaining registered source in randomized order, plus the
// count of leading entries that are preferred.
func (s *Selector) sourceOrder(ctx context.Context) ([]string, int, error) {
	preferred, err := s.ranker.TopSources(ctx, DefaultRecencyDays)
	if err != nil {
		return nil, 0, fmt.Errorf("video: ranking sources: %w", err)
	}

	preferredSet := make(map[string]bool, len(preferred))
	for _, name := range preferred {
		preferredSet[name] = true
	}

	var remaining []string
	for _, src := range s.sources {
		if !preferredSet[src.Name()] {
			remaining = append(remaining, src.Name())
		}
	}
	s.rand.Shuffle(len(remaining), func(i, j int) { remaining[i], remaining[j] = remaining[j], remaining[i] })

	order := make([]string, 0, len(preferred)+len(remaining))
	for _, name := range preferred {
		if s.hasSource(name) {
			order = append(order, name)
		}
	}
	preferredN := len(order)
	order = append(order, remaining...)
	return order, preferredN, nil
}

func (s *Selector) hasSource(name string) bool {
	for _, src := range s.sources {
		if src.Name() == name {
			return true
		}
	}
	return false
}

// searchAll fans out query to every source in order concurrently via
// errgroup, collecting results into a mutex-protected slice. A single
// source's search error is logged and treated as zero candidates from
// that source, not a fatal error for the whole selection.
func (s *Selector) searchAll(ctx context.Context, order []string, query string, limit int) ([]sourcedCandidate, error) {
	bySourceName := make(map[string]Source, len(s.sources))
	for _, src := range s.sources {
		bySourceName[src.Name()] = src
	}

	var mu sync.Mutex
	var collected []sourcedCandidate

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range order {
		src, ok := bySourceName[name]
		if !ok {
			continue
		}
		src := src
		g.Go(func() error {
			clips, err := src.Search(gctx, query, limit)
			if err != nil {
				s.logger.WarnContext(gctx, "source search failed: source=%s err=%v", src.Name(), err)
				return nil
			}
			mu.Lock()
			for _, c := range clips {
				collected = append(collected, sourcedCandidate{source: src, clip: c})
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return collected, nil
}

// synthesizeQuery combines persona keywords with tempo/energy-derived
// descriptors. Falls back to "abstract" when nothing is derivable.
func synthesizeQuery(keywords []string, features AudioFeatures) string {
	var terms []string
	terms = append(terms, keywords...)

	switch {
	case features.Tempo >= 120:
		terms = append(terms, "fast")
	case features.Tempo > 0 && features.Tempo <= 70:
		terms = append(terms, "calm")
	}
	switch {
	case features.Energy >= 0.7:
		terms = append(terms, "intense")
	case features.Energy > 0 && features.Energy <= 0.3:
		terms = append(terms, "gentle")
	}

	if len(terms) == 0 {
		return "abstract"
	}
	return strings.Join(terms, " ")
}
