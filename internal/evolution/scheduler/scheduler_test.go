package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lumenforge/aria/internal/domain"
	"github.com/lumenforge/aria/internal/evolution"
	"github.com/lumenforge/aria/internal/evolution/progressionlog"
	"github.com/lumenforge/aria/internal/logutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	personas []*domain.Persona
}

func (f *fakeSource) ListForEvolution(ctx context.Context) ([]*domain.Persona, error) {
	return f.personas, nil
}

type fakeScorer struct {
	scoresByPersona map[string][]evolution.ScoredRelease
	errByPersona    map[string]error
}

func (f *fakeScorer) ScoreReleases(ctx context.Context, personaID string) ([]evolution.ScoredRelease, error) {
	if err := f.errByPersona[personaID]; err != nil {
		return nil, err
	}
	return f.scoresByPersona[personaID], nil
}

type fakeWriter struct {
	mu    sync.Mutex
	saved []string
}

func (f *fakeWriter) SavePersona(ctx context.Context, persona *domain.Persona) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, persona.ID)
	return nil
}

func newTestScheduler(t *testing.T, source PersonaSource, scorer ReleaseScorer, writer PersonaWriter) *Scheduler {
	t.Helper()
	logWriter, err := progressionlog.NewWriter(filepath.Join(t.TempDir(), "sweep.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = logWriter.Close() })
	engine := evolution.NewEngine(logWriter, logutil.NewTestLogger(t), evolution.Options{})
	return New(engine, source, scorer, writer, logutil.NewTestLogger(t))
}

func TestRunSweep_EvolvesAndSavesEveryPersona(t *testing.T) {
	personas := []*domain.Persona{
		{ID: "p1", StyleKeywords: []string{"dreamy"}},
		{ID: "p2", StyleKeywords: []string{"dreamy"}},
	}
	source := &fakeSource{personas: personas}
	scorer := &fakeScorer{scoresByPersona: map[string][]evolution.ScoredRelease{
		"p1": {{ReleaseID: "r1", Included: 0}},
		"p2": {{ReleaseID: "r2", Included: 0}},
	}}
	writer := &fakeWriter{}
	s := newTestScheduler(t, source, scorer, writer)

	err := s.RunSweep(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p2"}, writer.saved)
	assert.Contains(t, personas[0].StyleKeywords, "experimental")
	assert.Contains(t, personas[1].StyleKeywords, "experimental")
}

func TestRunSweep_OnePersonaFailureDoesNotAbortOthers(t *testing.T) {
	personas := []*domain.Persona{
		{ID: "broken"},
		{ID: "fine"},
	}
	source := &fakeSource{personas: personas}
	scorer := &fakeScorer{scoresByPersona: map[string][]evolution.ScoredRelease{
		"fine": {{ReleaseID: "r", Included: 0}},
	}, errByPersona: map[string]error{
		"broken": errors.New("scoring failed"),
	}}
	writer := &fakeWriter{}
	s := newTestScheduler(t, source, scorer, writer)

	err := s.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Contains(t, writer.saved, "fine")
	assert.NotContains(t, writer.saved, "broken")
}

func TestAddSweep_RegistersCronEntry(t *testing.T) {
	s := newTestScheduler(t, &fakeSource{}, &fakeScorer{}, &fakeWriter{})
	id, err := s.AddSweep(context.Background(), "@every 1h")
	require.NoError(t, err)
	assert.NotZero(t, id)
}

func TestStop_ReturnsPromptlyWhenNoSweepRunning(t *testing.T) {
	s := newTestScheduler(t, &fakeSource{}, &fakeScorer{}, &fakeWriter{})
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
