// Package evolution converts per-release performance metrics into
// bounded, logged mutations of a persona's stylistic parameters.
package evolution

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/lumenforge/aria/internal/domain"
	"github.com/lumenforge/aria/internal/evolution/progressionlog"
	"github.com/lumenforge/aria/internal/logutil"
)

const decayLambda = 0.05

// DefaultMaxPromptHistory bounds persona.PromptHistory growth: entries
// past this count are archived, never deleted, so the log length never
// shrinks.
const DefaultMaxPromptHistory = 500

// successKeywords is the fixed small set reinforce draws from.
var successKeywords = []string{"anthemic", "cinematic", "uplifting", "driving", "lush", "radiant"}

// experimentalKeyword is appended by both the no-metrics path and
// diversify's single-keyword fallback.
const experimentalKeyword = "experimental"

// MetricsSource supplies per-release PerformanceMetric rows on demand.
type MetricsSource interface {
	MetricsFor(ctx context.Context, releaseID string) ([]domain.PerformanceMetric, error)
}

// ScoredRelease is one release's time-decayed performance score.
type ScoredRelease struct {
	ReleaseID string
	Score     float64
	Included  int
}

// Score implements the release-scoring formula: for each metric of age d
// days, weight w = exp(-lambda*d); likes/saves contribute value*0.3,
// views/streams contribute value*0.7, other types are skipped. The
// release score is the weighted mean over contributing metrics.
// Releases with no contributing metrics score 0 with included=0.
func Score(metrics []domain.PerformanceMetric, now time.Time) (score float64, included int) {
	var weightedSum, weightSum float64
	for _, m := range metrics {
		var contribution float64
		switch m.MetricType {
		case "likes", "saves":
			contribution = float64(m.MetricValue) * 0.3
		case "views", "streams":
			contribution = float64(m.MetricValue) * 0.7
		default:
			continue
		}
		days := now.Sub(m.RecordedAt).Hours() / 24
		weight := math.Exp(-decayLambda * days)
		weightedSum += contribution * weight
		weightSum += weight
		included++
	}
	if weightSum == 0 {
		return 0, 0
	}
	return weightedSum / weightSum, included
}

// Mutation describes the rule application's chosen action for a single
// Evolve call.
type Mutation struct {
	Action          string // "reinforce", "diversify", or "none"
	KeywordsAdded   []string
	KeywordsRemoved []string
}

// Engine applies the rule engine and writes progression entries. A
// per-persona mutex registry serializes concurrent Evolve calls against
// the same persona while leaving different personas independent.
type Engine struct {
	log              *progressionlog.Writer
	logger           logutil.LoggerInterface
	maxPromptHistory int
	rand             *rand.Rand

	mu         sync.Mutex
	personaMus map[string]*sync.Mutex
}

// Options configures an Engine beyond its required collaborators.
type Options struct {
	MaxPromptHistory int
}

// NewEngine constructs an Engine writing progression entries to log.
func NewEngine(log *progressionlog.Writer, logger logutil.LoggerInterface, opts Options) *Engine {
	if logger == nil {
		logger = logutil.NewLogger(logutil.InfoLevel, nil, "[evolution] ")
	}
	maxHistory := opts.MaxPromptHistory
	if maxHistory <= 0 {
		maxHistory = DefaultMaxPromptHistory
	}
	return &Engine{
		log:              log,
		logger:           logger,
		maxPromptHistory: maxHistory,
		rand:             rand.New(rand.NewSource(1)),
		personaMus:       make(map[string]*sync.Mutex),
	}
}

func (e *Engine) lockFor(personaID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	mu, ok := e.personaMus[personaID]
	if !ok {
		mu = &sync.Mutex{}
		e.personaMus[personaID] = mu
	}
	return mu
}

// Evolve applies the rule engine to persona given already-scored
// releases, mutating persona.StyleKeywords/EvolutionLog/PromptHistory in
// place and recording a durable ProgressionEntry. Evolution for a single
// persona serializes; different personas evolve independently.
func (e *Engine) Evolve(ctx context.Context, persona *domain.Persona, scored []ScoredRelease) (Mutation, error) {
	mu := e.lockFor(persona.ID)
	mu.Lock()
	defer mu.Unlock()

	scorable := make([]ScoredRelease, 0, len(scored))
	for _, s := range scored {
		if s.Included > 0 {
			scorable = append(scorable, s)
		}
	}

	if len(scorable) == 0 {
		return e.applyNoMetrics(ctx, persona)
	}

	sort.Slice(scorable, func(i, j int) bool { return scorable[i].Score > scorable[j].Score })
	average := averageScore(scorable)
	best := scorable[0]
	worst := scorable[len(scorable)-1]

	var mutation Mutation
	switch {
	case best.Score > 1.2*average && best.Score > 0:
		mutation = e.applyReinforce(persona)
	case worst.Score < 0.8*average && len(scorable) > 1:
		mutation = e.applyDiversify(persona)
	default:
		mutation = Mutation{Action: "none"}
	}

	summary := performanceSummary(scorable)
	description := descriptionFor(mutation)
	e.recordEntry(ctx, persona, description, summary)
	if mutation.Action != "none" {
		e.appendPromptHistory(persona, domain.PromptHistoryEntry{
			Timestamp:     time.Now(),
			ReleaseID:     best.ReleaseID,
			Score:         best.Score,
			Action:        mutation.Action,
			KeywordsAdded: mutation.KeywordsAdded,
		})
	}
	return mutation, nil
}

func (e *Engine) applyNoMetrics(ctx context.Context, persona *domain.Persona) (Mutation, error) {
	mutation := Mutation{Action: "none"}
	if !contains(persona.StyleKeywords, experimentalKeyword) {
		persona.StyleKeywords = append(persona.StyleKeywords, experimentalKeyword)
		mutation.KeywordsAdded = []string{experimentalKeyword}
	}
	e.recordEntry(ctx, persona, "Added 'experimental' due to lack of performance data.", "")
	return mutation, nil
}

func (e *Engine) applyReinforce(persona *domain.Persona) Mutation {
	keyword := successKeywords[e.rand.Intn(len(successKeywords))]
	mutation := Mutation{Action: "reinforce"}
	if !contains(persona.StyleKeywords, keyword) {
		persona.StyleKeywords = append(persona.StyleKeywords, keyword)
		mutation.KeywordsAdded = []string{keyword}
	}
	return mutation
}

func (e *Engine) applyDiversify(persona *domain.Persona) Mutation {
	mutation := Mutation{Action: "diversify"}
	if len(persona.StyleKeywords) > 1 {
		idx := e.rand.Intn(len(persona.StyleKeywords))
		removed := persona.StyleKeywords[idx]
		persona.StyleKeywords = append(persona.StyleKeywords[:idx], persona.StyleKeywords[idx+1:]...)
		mutation.KeywordsRemoved = []string{removed}
		return mutation
	}
	if !contains(persona.StyleKeywords, experimentalKeyword) {
		persona.StyleKeywords = append(persona.StyleKeywords, experimentalKeyword)
		mutation.KeywordsAdded = []string{experimentalKeyword}
	}
	return mutation
}

// recordEntry appends an EvolutionEntry to persona's internal log and
// writes the durable ProgressionEntry, including a post-mutation
// persona snapshot.
func (e *Engine) recordEntry(ctx context.Context, persona *domain.Persona, description, performanceSummary string) {
	now := time.Now()
	snapshot := persona.Clone()
	persona.EvolutionLog = append(persona.EvolutionLog, domain.EvolutionEntry{
		Timestamp:          now,
		Description:        description,
		PerformanceSummary: performanceSummary,
		PersonaSnapshot:    snapshot,
	})
	e.archiveOldPromptHistory(persona)

	entry := domain.ProgressionEntry{
		PersonaID:          persona.ID,
		EventTimestamp:     now,
		Description:        description,
		PerformanceSummary: performanceSummary,
		PersonaSnapshot:    snapshot,
	}
	if e.log != nil {
		if err := e.log.Append(entry); err != nil {
			e.logger.ErrorContext(ctx, "failed to append progression entry: persona_id=%s err=%v", persona.ID, err)
		}
	}
}

func (e *Engine) appendPromptHistory(persona *domain.Persona, entry domain.PromptHistoryEntry) {
	persona.PromptHistory = append(persona.PromptHistory, entry)
	e.archiveOldPromptHistory(persona)
}

// archiveOldPromptHistory marks entries beyond maxPromptHistory as
// archived (oldest first), never removing them -- the slice length
// never decreases, satisfying append-only semantics while bounding
// unarchived growth.
func (e *Engine) archiveOldPromptHistory(persona *domain.Persona) {
	active := 0
	for _, entry := range persona.PromptHistory {
		if !entry.Archived {
			active++
		}
	}
	excess := active - e.maxPromptHistory
	if excess <= 0 {
		return
	}
	for i := range persona.PromptHistory {
		if excess <= 0 {
			break
		}
		if !persona.PromptHistory[i].Archived {
			persona.PromptHistory[i].Archived = true
			excess--
		}
	}
}

func averageScore(scored []ScoredRelease) float64 {
	var sum float64
	for _, s := range scored {
		sum += s.Score
	}
	return sum / float64(len(scored))
}

func performanceSummary(scored []ScoredRelease) string {
	summary := ""
	for i, s := range scored {
		if i > 0 {
			summary += "; "
		}
		summary += fmt.Sprintf("%s: %.2f", s.ReleaseID, s.Score)
	}
	return summary
}

func descriptionFor(m Mutation) string {
	switch m.Action {
	case "reinforce":
		return "Reinforced best-performing style via keyword addition."
	case "diversify":
		return "Diversified style in response to underperforming release."
	default:
		return "No mutation applied; performance within expected range."
	}
}

func contains(keywords []string, target string) bool {
	for _, k := range keywords {
		if k == target {
			return true
		}
	}
	return false
}
