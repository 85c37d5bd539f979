// Package scheduler runs the Persona Evolution Engine on a cron
// schedule over accumulated metrics, one job per persona-evolution
// sweep.
package scheduler

import (
	"context"
	"fmt"

	"github.com/lumenforge/aria/internal/domain"
	"github.com/lumenforge/aria/internal/evolution"
	"github.com/lumenforge/aria/internal/logutil"
	"github.com/robfig/cron/v3"
)

// PersonaSource supplies the personas due for an evolution sweep.
type PersonaSource interface {
	ListForEvolution(ctx context.Context) ([]*domain.Persona, error)
}

// ReleaseScorer scores every release belonging to personaID against
// evolution.MetricsSource, ready for evolution.Engine.Evolve.
type ReleaseScorer interface {
	ScoreReleases(ctx context.Context, personaID string) ([]evolution.ScoredRelease, error)
}

// PersonaWriter persists a persona after mutation; its composition root
// decides whether that is a database row, a file, or something else.
type PersonaWriter interface {
	SavePersona(ctx context.Context, persona *domain.Persona) error
}

// Scheduler wraps robfig/cron/v3 to run one evolution sweep per
// registered cron expression.
type Scheduler struct {
	cron    *cron.Cron
	engine  *evolution.Engine
	source  PersonaSource
	scorer  ReleaseScorer
	writer  PersonaWriter
	logger  logutil.LoggerInterface
}

// New constructs a Scheduler. Call AddSweep to register a cron
// expression, then Start to begin running it.
func New(engine *evolution.Engine, source PersonaSource, scorer ReleaseScorer, writer PersonaWriter, logger logutil.LoggerInterface) *Scheduler {
	if logger == nil {
		logger = logutil.NewLogger(logutil.InfoLevel, nil, "[evolution-scheduler] ")
	}
	return &Scheduler{
		cron:   cron.New(),
		engine: engine,
		source: source,
		scorer: scorer,
		writer: writer,
		logger: logger,
	}
}

// AddSweep registers spec (a standard five-field cron expression) to
// trigger RunSweep. It returns the cron.EntryID for later inspection.
func (s *Scheduler) AddSweep(ctx context.Context, spec string) (cron.EntryID, error) {
	return s.cron.AddFunc(spec, func() {
		if err := s.RunSweep(context.Background()); err != nil {
			s.logger.ErrorContext(ctx, "evolution sweep failed: err=%v", err)
		}
	})
}

// Start begins running registered sweeps in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop cancels the scheduler's clock and waits for any running sweep to
// finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunSweep evolves every persona due for evolution, context-bound per
// run. A single persona's failure is logged and does not abort the
// sweep for the rest.
func (s *Scheduler) RunSweep(ctx context.Context) error {
	personas, err := s.source.ListForEvolution(ctx)
	if err != nil {
		return fmt.Errorf("listing personas for evolution: %w", err)
	}

	for _, persona := range personas {
		scored, err := s.scorer.ScoreReleases(ctx, persona.ID)
		if err != nil {
			s.logger.ErrorContext(ctx, "scoring releases failed: persona_id=%s err=%v", persona.ID, err)
			continue
		}
		if _, err := s.engine.Evolve(ctx, persona, scored); err != nil {
			s.logger.ErrorContext(ctx, "evolve failed: persona_id=%s err=%v", persona.ID, err)
			continue
		}
		if err := s.writer.SavePersona(ctx, persona); err != nil {
			s.logger.ErrorContext(ctx, "saving evolved persona failed: persona_id=%s err=%v", persona.ID, err)
		}
	}
	return nil
}
