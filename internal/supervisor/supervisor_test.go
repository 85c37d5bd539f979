package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lumenforge/aria/internal/domain"
	"github.com/lumenforge/aria/internal/logutil"
	"github.com/lumenforge/aria/internal/releasestore"
	"github.com/lumenforge/aria/internal/supervisor/runstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePersonaSelector struct {
	persona *domain.Persona
	err     error
}

func (f *fakePersonaSelector) SelectPersona(ctx context.Context) (*domain.Persona, error) {
	return f.persona, f.err
}

type fakeParameterAdapter struct {
	params GenerationParams
	err    error
}

func (f *fakeParameterAdapter) AdaptParameters(ctx context.Context, persona *domain.Persona) (GenerationParams, error) {
	return f.params, f.err
}

type fakeTrackGenerator struct {
	track GeneratedTrack
	err   error
}

func (f *fakeTrackGenerator) GenerateTrack(ctx context.Context, params GenerationParams) (GeneratedTrack, error) {
	return f.track, f.err
}

type fakeVideoSelector struct {
	refs []string
	err  error
}

func (f *fakeVideoSelector) SelectVideo(ctx context.Context, features AudioFeatures, keywords []string, personaID string) ([]string, error) {
	return f.refs, f.err
}

// delayedApprovalChannel dispatches successfully and then, after delay,
// writes the approval decision into the run-status store itself --
// standing in for an external messaging bridge.
type delayedApprovalChannel struct {
	runs        *runstore.Store
	delay       time.Duration
	decision    domain.RunState
	dispatchErr error
}

func (f *delayedApprovalChannel) Dispatch(ctx context.Context, runID, summary string, previewRefs []string) (bool, error) {
	if f.dispatchErr != nil {
		return false, f.dispatchErr
	}
	go func() {
		time.Sleep(f.delay)
		_ = f.runs.UpdateStatus(context.Background(), runID, f.decision, "")
	}()
	return true, nil
}

// neverDecidesChannel dispatches successfully but never writes a
// decision, exercising the T_max timeout path.
type neverDecidesChannel struct{}

func (neverDecidesChannel) Dispatch(ctx context.Context, runID, summary string, previewRefs []string) (bool, error) {
	return true, nil
}

type fakeFinalizer struct {
	saveErr    error
	releaseErr error
}

func (f *fakeFinalizer) SaveApprovedContent(ctx context.Context, runID string) error { return f.saveErr }
func (f *fakeFinalizer) TriggerRelease(ctx context.Context, runID string) error      { return f.releaseErr }

func newHarness(t *testing.T) (*runstore.Store, releasestore.Store) {
	t.Helper()
	logger := logutil.NewTestLogger(t)
	runs, err := runstore.New(t.TempDir(), logger)
	require.NoError(t, err)
	releases, err := releasestore.NewFileStore(t.TempDir(), logger)
	require.NoError(t, err)
	return runs, releases
}

func testPersona() *domain.Persona {
	return &domain.Persona{ID: "persona-1", DisplayName: "Echo Drift"}
}

func TestRun_HappyPathReachesUploaded(t *testing.T) {
	runs, releases := newHarness(t)
	sup, err := New(
		&fakePersonaSelector{persona: testPersona()},
		&fakeParameterAdapter{params: GenerationParams{SunoPrompt: "ambient synth", VideoKeywords: []string{"calm"}}},
		&fakeTrackGenerator{track: GeneratedTrack{TrackID: "track-1", TrackURL: "https://example.com/t1", Duration: 3 * time.Minute}},
		&fakeVideoSelector{refs: []string{"clip-1"}},
		&delayedApprovalChannel{runs: runs, delay: 20 * time.Millisecond, decision: domain.RunApproved},
		&fakeFinalizer{},
		runs, releases,
		Config{TMax: time.Second, TPoll: 10 * time.Millisecond},
		logutil.NewTestLogger(t),
		nil,
	)
	require.NoError(t, err)

	release, err := sup.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUploaded, release.Status)
}

func TestRun_TrackGenerationFailureRecordsFailedGeneration(t *testing.T) {
	runs, releases := newHarness(t)
	sup, err := New(
		&fakePersonaSelector{persona: testPersona()},
		&fakeParameterAdapter{},
		&fakeTrackGenerator{err: errors.New("vendor unreachable")},
		&fakeVideoSelector{},
		neverDecidesChannel{},
		&fakeFinalizer{},
		runs, releases,
		Config{TMax: time.Second, TPoll: 10 * time.Millisecond},
		logutil.NewTestLogger(t),
		nil,
	)
	require.NoError(t, err)

	_, err = sup.Run(context.Background())
	require.Error(t, err)

	ids, err := runs.ListIDs(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 1)
	status, err := runs.Get(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailedGeneration, status.Status)
}

func TestRun_RejectedByApprover(t *testing.T) {
	runs, releases := newHarness(t)
	sup, err := New(
		&fakePersonaSelector{persona: testPersona()},
		&fakeParameterAdapter{},
		&fakeTrackGenerator{track: GeneratedTrack{TrackID: "track-2", TrackURL: "https://example.com/t2"}},
		&fakeVideoSelector{refs: []string{"clip-2"}},
		&delayedApprovalChannel{runs: runs, delay: 10 * time.Millisecond, decision: domain.RunRejected},
		&fakeFinalizer{},
		runs, releases,
		Config{TMax: time.Second, TPoll: 10 * time.Millisecond},
		logutil.NewTestLogger(t),
		nil,
	)
	require.NoError(t, err)

	release, err := sup.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, release.Status)
}

func TestRun_ApprovalTimeoutConvertsToRejectedNotFailure(t *testing.T) {
	runs, releases := newHarness(t)
	sup, err := New(
		&fakePersonaSelector{persona: testPersona()},
		&fakeParameterAdapter{},
		&fakeTrackGenerator{track: GeneratedTrack{TrackID: "track-3", TrackURL: "https://example.com/t3"}},
		&fakeVideoSelector{refs: []string{"clip-3"}},
		neverDecidesChannel{},
		&fakeFinalizer{},
		runs, releases,
		Config{TMax: 60 * time.Millisecond, TPoll: 5 * time.Millisecond},
		logutil.NewTestLogger(t),
		nil,
	)
	require.NoError(t, err)

	release, err := sup.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, release.Status)

	ids, err := runs.ListIDs(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 1)
	status, err := runs.Get(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, domain.RunTimedOut, status.Status)
}

func TestNew_RejectsTPollExceedingTenthOfTMax(t *testing.T) {
	runs, releases := newHarness(t)
	_, err := New(
		&fakePersonaSelector{}, &fakeParameterAdapter{}, &fakeTrackGenerator{}, &fakeVideoSelector{},
		neverDecidesChannel{}, &fakeFinalizer{}, runs, releases,
		Config{TMax: time.Second, TPoll: time.Second},
		logutil.NewTestLogger(t),
		nil,
	)
	require.Error(t, err)
}

func TestDefaultPersonaSelector_PicksLeastRecentlyProduced(t *testing.T) {
	repo := fakeRepo{personas: []*domain.Persona{{ID: "a"}, {ID: "b"}}}
	lookup := fakeLookup{times: map[string]time.Time{
		"a": time.Now().Add(-time.Hour),
		"b": time.Now().Add(-48 * time.Hour),
	}}
	selector := NewDefaultPersonaSelector(repo, lookup)

	persona, err := selector.SelectPersona(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", persona.ID)
}

func TestDefaultPersonaSelector_NoEligibleReturnsSentinel(t *testing.T) {
	selector := NewDefaultPersonaSelector(fakeRepo{}, fakeLookup{})
	_, err := selector.SelectPersona(context.Background())
	assert.True(t, errors.Is(err, ErrNoEligiblePersona))
}

type fakeRepo struct{ personas []*domain.Persona }

func (f fakeRepo) ListEligible(ctx context.Context) ([]*domain.Persona, error) { return f.personas, nil }

type fakeLookup struct{ times map[string]time.Time }

func (f fakeLookup) LastProducedAt(ctx context.Context, personaID string) (time.Time, error) {
	return f.times[personaID], nil
}
