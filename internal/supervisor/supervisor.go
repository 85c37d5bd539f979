// Package supervisor drives one production cycle end to end: select a
// persona, generate a track, pick companion video, dispatch for human
// approval, poll until a terminal decision, and finalize the release.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lumenforge/aria/internal/auditlog"
	"github.com/lumenforge/aria/internal/domain"
	"github.com/lumenforge/aria/internal/logutil"
	"github.com/lumenforge/aria/internal/releasestore"
	"github.com/lumenforge/aria/internal/supervisor/runstore"
	"golang.org/x/sync/errgroup"
)

// ErrNoEligiblePersona is returned by a PersonaSelector when no persona
// qualifies for production this cycle.
var ErrNoEligiblePersona = errors.New("supervisor: no eligible persona available")

// ErrApprovalTimeout reports that approval polling exceeded T_max. It is
// a Timeout-category error: the run converts to rejected, never a
// process failure.
type ErrApprovalTimeout struct {
	RunID string
}

func (e *ErrApprovalTimeout) Error() string {
	return fmt.Sprintf("run %s: timeout waiting for approval", e.RunID)
}

// Category implements the CategorizedError shape.
func (e *ErrApprovalTimeout) Category() string { return "Timeout" }

// PersonaRepository supplies the roster of personas eligible for
// production this cycle.
type PersonaRepository interface {
	ListEligible(ctx context.Context) ([]*domain.Persona, error)
}

// LastProducedLookup reports when a persona was last produced, feeding
// the default "least-recently-produced" selection policy.
type LastProducedLookup interface {
	LastProducedAt(ctx context.Context, personaID string) (time.Time, error)
}

// PersonaSelector picks the next persona to produce for. Selection
// policy is pluggable; DefaultPersonaSelector implements the default.
type PersonaSelector interface {
	SelectPersona(ctx context.Context) (*domain.Persona, error)
}

// DefaultPersonaSelector implements "least-recently-produced eligible
// persona".
type DefaultPersonaSelector struct {
	repo   PersonaRepository
	lookup LastProducedLookup
}

// NewDefaultPersonaSelector wraps repo and lookup.
func NewDefaultPersonaSelector(repo PersonaRepository, lookup LastProducedLookup) *DefaultPersonaSelector {
	return &DefaultPersonaSelector{repo: repo, lookup: lookup}
}

// SelectPersona returns the eligible persona with the oldest last-produced
// timestamp.
func (d *DefaultPersonaSelector) SelectPersona(ctx context.Context) (*domain.Persona, error) {
	candidates, err := d.repo.ListEligible(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing eligible personas: %w", err)
	}
	if len(candidates) == 0 {
		return nil, ErrNoEligiblePersona
	}

	var best *domain.Persona
	var bestTime time.Time
	for _, persona := range candidates {
		producedAt, err := d.lookup.LastProducedAt(ctx, persona.ID)
		if err != nil {
			return nil, fmt.Errorf("looking up last produced time for persona %s: %w", persona.ID, err)
		}
		if best == nil || producedAt.Before(bestTime) {
			best = persona
			bestTime = producedAt
		}
	}
	return best, nil
}

var _ PersonaSelector = (*DefaultPersonaSelector)(nil)

// GenerationParams is the output of adapt_parameters: the prompt and
// descriptors needed to generate a track and its companion video.
type GenerationParams struct {
	SunoPrompt    string
	VideoKeywords []string
	Tempo         float64
	Energy        float64
}

// ParameterAdapter turns a persona into GenerationParams via the LLM
// Orchestrator.
type ParameterAdapter interface {
	AdaptParameters(ctx context.Context, persona *domain.Persona) (GenerationParams, error)
}

// GeneratedTrack is the output of generate_track.
type GeneratedTrack struct {
	TrackID   string
	TrackURL  string
	ModelUsed string
	Duration  time.Duration
}

// TrackGenerator drives the browser-driven Generation Loop for one run.
type TrackGenerator interface {
	GenerateTrack(ctx context.Context, params GenerationParams) (GeneratedTrack, error)
}

// AudioFeatures describes a generated track for video query synthesis.
type AudioFeatures struct {
	Tempo    float64
	Energy   float64
	Duration time.Duration
}

// VideoSelector picks companion video clip references.
type VideoSelector interface {
	SelectVideo(ctx context.Context, features AudioFeatures, keywords []string, personaID string) ([]string, error)
}

// ApprovalChannel dispatches an approval request. The channel must later
// cause the human approver's decision to be written into the run's
// status file as approved or rejected.
type ApprovalChannel interface {
	Dispatch(ctx context.Context, runID, summary string, previewRefs []string) (bool, error)
}

// ReleaseFinalizer promotes an approved run to a released artifact. Both
// methods are idempotent by run_id.
type ReleaseFinalizer interface {
	SaveApprovedContent(ctx context.Context, runID string) error
	TriggerRelease(ctx context.Context, runID string) error
}

// Config bounds one run's approval-polling budget.
type Config struct {
	TMax  time.Duration
	TPoll time.Duration
}

func (c Config) validate() error {
	if c.TMax <= 0 {
		return fmt.Errorf("supervisor: TMax must be positive, got %s", c.TMax)
	}
	if c.TPoll <= 0 {
		return fmt.Errorf("supervisor: TPoll must be positive, got %s", c.TPoll)
	}
	if c.TPoll > c.TMax/10 {
		return fmt.Errorf("supervisor: TPoll (%s) must be <= TMax/10 (%s)", c.TPoll, c.TMax/10)
	}
	return nil
}

// Supervisor executes one production cycle's eight step contracts in
// strict sequence.
type Supervisor struct {
	personas  PersonaSelector
	params    ParameterAdapter
	tracks    TrackGenerator
	videos    VideoSelector
	approvals ApprovalChannel
	finalizer ReleaseFinalizer
	runs      *runstore.Store
	releases  releasestore.Store
	cfg       Config
	logger    logutil.LoggerInterface
	audit     auditlog.StructuredLogger
}

// New constructs a Supervisor. cfg is validated here (T_poll <= T_max/10),
// never at point of use. audit receives one AuditEvent per terminal
// outcome of Run (success, rejection, or failure); a nil audit defaults
// to auditlog.NewNoopLogger(), matching the teacher's "logging must never
// be mandatory to wire up" convention.
func New(
	personas PersonaSelector,
	params ParameterAdapter,
	tracks TrackGenerator,
	videos VideoSelector,
	approvals ApprovalChannel,
	finalizer ReleaseFinalizer,
	runs *runstore.Store,
	releases releasestore.Store,
	cfg Config,
	logger logutil.LoggerInterface,
	audit auditlog.StructuredLogger,
) (*Supervisor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logutil.NewLogger(logutil.InfoLevel, nil, "[supervisor] ")
	}
	if audit == nil {
		audit = auditlog.NewNoopLogger()
	}
	return &Supervisor{
		personas:  personas,
		params:    params,
		tracks:    tracks,
		videos:    videos,
		approvals: approvals,
		finalizer: finalizer,
		runs:      runs,
		releases:  releases,
		cfg:       cfg,
		logger:    logger,
		audit:     audit,
	}, nil
}

// Run executes one production cycle and returns the terminal Release
// record (including non-success terminal states such as rejected or
// failed), or an error if a step contract itself could not be
// completed (as opposed to completing with a negative business
// outcome).
func (s *Supervisor) Run(ctx context.Context) (domain.Release, error) {
	runID := uuid.NewString()
	s.audit.Log(auditlog.AuditEvent{
		Level:     "INFO",
		Operation: "supervisor.Run",
		Message:   "starting production cycle",
		Inputs:    map[string]interface{}{"run_id": runID},
	})

	persona, err := s.personas.SelectPersona(ctx)
	if err != nil {
		return domain.Release{}, fmt.Errorf("select_persona: %w", err)
	}

	params, err := s.params.AdaptParameters(ctx, persona)
	if err != nil {
		return domain.Release{}, fmt.Errorf("adapt_parameters: %w", err)
	}

	track, err := s.tracks.GenerateTrack(ctx, params)
	if err != nil {
		return s.recordTerminalFailure(ctx, runID, persona.ID, domain.RunFailedGeneration, fmt.Sprintf("generate_track: %v", err))
	}

	features := AudioFeatures{Tempo: params.Tempo, Energy: params.Energy, Duration: track.Duration}
	videoRefs, err := s.videos.SelectVideo(ctx, features, params.VideoKeywords, persona.ID)
	if err != nil {
		return s.recordTerminalFailure(ctx, runID, persona.ID, domain.RunFailedGeneration, fmt.Sprintf("select_video: %v", err))
	}

	runStatus := &domain.RunStatus{
		RunID:            runID,
		PersonaID:        persona.ID,
		TrackRef:         track.TrackID,
		VideoRef:         videoRefs,
		Status:           domain.RunAwaitingInitialStatus,
		ApprovalDeadline: time.Now().Add(s.cfg.TMax),
	}
	if err := s.runs.Create(ctx, runStatus); err != nil {
		return domain.Release{}, fmt.Errorf("create_initial_run_status: %w", err)
	}

	meta := domain.SongMeta{Title: persona.DisplayName, Style: params.SunoPrompt, Keywords: params.VideoKeywords}
	if err := s.releases.InitiateReleaseWithID(ctx, runID, meta, track.TrackURL); err != nil {
		return s.recordTerminalFailure(ctx, runID, persona.ID, domain.RunFailedDispatch, fmt.Sprintf("create_initial_run_status: %v", err))
	}
	if err := s.releases.AdvanceTo(ctx, runID, domain.StatusPreviewReady, "track and video ready", nil); err != nil {
		return domain.Release{}, fmt.Errorf("create_initial_run_status: %w", err)
	}
	if err := s.releases.AdvanceTo(ctx, runID, domain.StatusPendingApproval, "", nil); err != nil {
		return domain.Release{}, fmt.Errorf("dispatch_approval: %w", err)
	}

	summary := fmt.Sprintf("Release candidate for persona %s (track %s)", persona.ID, track.TrackID)
	dispatched, err := s.approvals.Dispatch(ctx, runID, summary, videoRefs)
	if err != nil {
		return s.recordTerminalFailure(ctx, runID, persona.ID, domain.RunFailedDispatch, fmt.Sprintf("dispatch_approval: %v", err))
	}
	if !dispatched {
		return s.recordTerminalFailure(ctx, runID, persona.ID, domain.RunFailedDispatch, "dispatch_approval: approval channel declined dispatch")
	}
	if err := s.runs.UpdateStatus(ctx, runID, domain.RunPollingApproval, ""); err != nil {
		return domain.Release{}, fmt.Errorf("dispatch_approval: %w", err)
	}

	decision, err := s.pollApproval(ctx, runID)
	if err != nil {
		var timeout *ErrApprovalTimeout
		if errors.As(err, &timeout) {
			return s.rejectRelease(ctx, runID, "Timeout waiting for approval")
		}
		return domain.Release{}, fmt.Errorf("poll_approval: %w", err)
	}
	if decision.Status == domain.RunRejected {
		return s.rejectRelease(ctx, runID, decision.Message)
	}

	if err := s.releases.AdvanceTo(ctx, runID, domain.StatusApproved, "", nil); err != nil {
		return domain.Release{}, fmt.Errorf("approved: %w", err)
	}
	if err := s.runs.UpdateStatus(ctx, runID, domain.RunSaving, ""); err != nil {
		return domain.Release{}, fmt.Errorf("saving: %w", err)
	}
	if err := s.finalizer.SaveApprovedContent(ctx, runID); err != nil {
		return s.recordTerminalFailure(ctx, runID, persona.ID, domain.RunFailedDispatch, fmt.Sprintf("save_approved_content: %v", err))
	}
	if err := s.releases.AdvanceTo(ctx, runID, domain.StatusPendingUpload, "", nil); err != nil {
		return domain.Release{}, fmt.Errorf("pending_upload: %w", err)
	}
	if err := s.runs.UpdateStatus(ctx, runID, domain.RunReleasing, ""); err != nil {
		return domain.Release{}, fmt.Errorf("releasing: %w", err)
	}
	if err := s.finalizer.TriggerRelease(ctx, runID); err != nil {
		return s.recordTerminalFailure(ctx, runID, persona.ID, domain.RunFailedDispatch, fmt.Sprintf("trigger_release: %v", err))
	}
	if err := s.releases.AdvanceTo(ctx, runID, domain.StatusUploaded, "", nil); err != nil {
		return domain.Release{}, fmt.Errorf("uploaded: %w", err)
	}
	if err := s.runs.UpdateStatus(ctx, runID, domain.RunDone, ""); err != nil {
		return domain.Release{}, fmt.Errorf("done: %w", err)
	}

	release, err := s.releases.GetStatus(ctx, runID)
	if err != nil {
		return domain.Release{}, fmt.Errorf("done: %w", err)
	}
	s.audit.Log(auditlog.AuditEvent{
		Level:     "INFO",
		Operation: "supervisor.Run",
		Message:   "production cycle completed",
		Outputs:   map[string]interface{}{"run_id": runID, "status": string(release.Status)},
	})
	return *release, nil
}

// pollApproval ticks every T_poll, bounded by T_max, until the run
// reaches a terminal approval decision. The ticking goroutine runs
// inside an errgroup bound to the poll context, so cancelling the
// parent ctx (e.g. the caller aborting the whole Run) immediately
// unblocks it the same way an in-flight Orchestrator or browser call
// would be cancelled.
func (s *Supervisor) pollApproval(ctx context.Context, runID string) (*domain.RunStatus, error) {
	pollCtx, cancel := context.WithTimeout(ctx, s.cfg.TMax)
	defer cancel()

	g, gctx := errgroup.WithContext(pollCtx)
	result := make(chan *domain.RunStatus, 1)

	g.Go(func() error {
		ticker := time.NewTicker(s.cfg.TPoll)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				status, err := s.runs.Get(gctx, runID)
				if err != nil {
					return err
				}
				if status.Status == domain.RunApproved || status.Status == domain.RunRejected {
					result <- status
					return nil
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			_ = s.runs.UpdateStatus(ctx, runID, domain.RunTimedOut, "Timeout waiting for approval")
			return nil, &ErrApprovalTimeout{RunID: runID}
		}
		return nil, err
	}
	return <-result, nil
}

// rejectRelease advances the release to rejected and returns its
// terminal record. Rejection (including timeout) is a business outcome,
// not a step failure, so it returns a nil error.
func (s *Supervisor) rejectRelease(ctx context.Context, runID, notes string) (domain.Release, error) {
	if err := s.releases.AdvanceTo(ctx, runID, domain.StatusRejected, notes, nil); err != nil {
		return domain.Release{}, fmt.Errorf("reject: %w", err)
	}
	release, err := s.releases.GetStatus(ctx, runID)
	if err != nil {
		return domain.Release{}, fmt.Errorf("reject: %w", err)
	}
	s.audit.Log(auditlog.AuditEvent{
		Level:     "INFO",
		Operation: "supervisor.Run",
		Message:   "release rejected",
		Outputs:   map[string]interface{}{"run_id": runID, "notes": notes},
	})
	return *release, nil
}

// recordTerminalFailure persists state to the run-status store (creating
// it directly in its terminal state if a step failed before
// create_initial_run_status ran) and, if a release record already
// exists, advances it to failed. It returns the best-known Release and a
// non-nil error, since a step contract failure is always propagated.
func (s *Supervisor) recordTerminalFailure(ctx context.Context, runID, personaID string, state domain.RunState, message string) (domain.Release, error) {
	s.audit.Log(auditlog.AuditEvent{
		Level:     "ERROR",
		Operation: "supervisor.Run",
		Message:   "production cycle failed",
		Inputs:    map[string]interface{}{"run_id": runID, "persona_id": personaID, "state": string(state)},
		Error:     &auditlog.ErrorDetails{Message: message},
	})
	if _, err := s.runs.Get(ctx, runID); err != nil {
		_ = s.runs.Create(ctx, &domain.RunStatus{RunID: runID, PersonaID: personaID, Status: state, Message: message})
	} else {
		_ = s.runs.UpdateStatus(ctx, runID, state, message)
	}

	release, err := s.releases.GetStatus(ctx, runID)
	if err != nil {
		return domain.Release{}, errors.New(message)
	}
	_ = s.releases.AdvanceTo(ctx, runID, domain.StatusFailed, message, nil)
	release.Status = domain.StatusFailed
	release.Error = message
	return *release, errors.New(message)
}
