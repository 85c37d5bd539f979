// Package releasestore persists domain.Release records keyed by
// release_id, enforcing the allowed status-transition graph before any
// mutation reaches disk.
package releasestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/lumenforge/aria/internal/atomicfile"
	"github.com/lumenforge/aria/internal/domain"
	"github.com/lumenforge/aria/internal/logutil"
)

// TransitionError reports an illegal Release status transition. It
// implements the CategorizedError shape (error + Category) used across
// the pipeline's component-level error taxonomy.
type TransitionError struct {
	ReleaseID string
	From      domain.ReleaseStatus
	To        domain.ReleaseStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("release %s: illegal transition %s -> %s", e.ReleaseID, e.From, e.To)
}

// Category classifies this error for callers branching without a type
// assertion against the concrete type.
func (e *TransitionError) Category() string { return "State" }

// NotFoundError reports that release_id has no stored record.
type NotFoundError struct {
	ReleaseID string
}

func (e *NotFoundError) Error() string    { return fmt.Sprintf("release %s not found", e.ReleaseID) }
func (e *NotFoundError) Category() string { return "State" }

// allowedTransitions is the transition graph from the Release State
// Store spec: pending_preview -> preview_ready -> pending_approval ->
// {approved, rejected}; approved -> pending_upload -> {uploaded,
// failed}; any non-terminal status can also transition directly to
// failed. Uploaded, rejected, and failed are terminal sinks.
var allowedTransitions = map[domain.ReleaseStatus][]domain.ReleaseStatus{
	domain.StatusPendingPreview:  {domain.StatusPreviewReady, domain.StatusFailed},
	domain.StatusPreviewReady:    {domain.StatusPendingApproval, domain.StatusFailed},
	domain.StatusPendingApproval: {domain.StatusApproved, domain.StatusRejected, domain.StatusFailed},
	domain.StatusApproved:        {domain.StatusPendingUpload, domain.StatusFailed},
	domain.StatusPendingUpload:   {domain.StatusUploaded, domain.StatusFailed},
}

func isAllowed(from, to domain.ReleaseStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Store persists Release records, one JSON document per release_id.
type Store interface {
	InitiateRelease(ctx context.Context, meta domain.SongMeta, sourceFile string) (string, error)
	// InitiateReleaseWithID is InitiateRelease with a caller-supplied
	// release_id, letting a collaborator (such as the supervisor) correlate
	// a release 1:1 with its own run_id instead of a freshly generated one.
	InitiateReleaseWithID(ctx context.Context, releaseID string, meta domain.SongMeta, sourceFile string) error
	AdvanceTo(ctx context.Context, releaseID string, newStatus domain.ReleaseStatus, notes string, details map[string]interface{}) error
	GetStatus(ctx context.Context, releaseID string) (*domain.Release, error)
	ListIDs(ctx context.Context) ([]string, error)
}

// FileStore is the renameio-backed Store implementation: one JSON file
// per release_id under dir, with writes to a given release_id serialized
// through a per-ID mutex. Cross-release writes run unsynchronized.
type FileStore struct {
	dir        string
	logger     logutil.LoggerInterface
	locksMu    sync.Mutex
	releaseMus map[string]*sync.Mutex
}

// NewFileStore creates a FileStore rooted at dir, creating dir if needed.
func NewFileStore(dir string, logger logutil.LoggerInterface) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating release store directory %s: %w", dir, err)
	}
	if logger == nil {
		logger = logutil.NewLogger(logutil.InfoLevel, nil, "[releasestore] ")
	}
	return &FileStore{dir: dir, logger: logger, releaseMus: make(map[string]*sync.Mutex)}, nil
}

func (s *FileStore) pathFor(releaseID string) string {
	return filepath.Join(s.dir, releaseID+".json")
}

func (s *FileStore) lockFor(releaseID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.releaseMus[releaseID]
	if !ok {
		mu = &sync.Mutex{}
		s.releaseMus[releaseID] = mu
	}
	return mu
}

// InitiateRelease creates a new Release in StatusPendingPreview and
// persists it, returning the generated release_id.
func (s *FileStore) InitiateRelease(ctx context.Context, meta domain.SongMeta, sourceFile string) (string, error) {
	releaseID := uuid.NewString()
	if err := s.InitiateReleaseWithID(ctx, releaseID, meta, sourceFile); err != nil {
		return "", err
	}
	return releaseID, nil
}

// InitiateReleaseWithID is InitiateRelease with a caller-supplied
// release_id.
func (s *FileStore) InitiateReleaseWithID(ctx context.Context, releaseID string, meta domain.SongMeta, sourceFile string) error {
	release := &domain.Release{
		ReleaseID:        releaseID,
		Status:           domain.StatusPendingPreview,
		SongMeta:         meta,
		OriginalSongPath: sourceFile,
		History:          []domain.HistoryEntry{},
	}

	mu := s.lockFor(releaseID)
	mu.Lock()
	defer mu.Unlock()

	if err := atomicfile.WriteJSON(s.pathFor(releaseID), release); err != nil {
		return fmt.Errorf("initiating release %s: %w", releaseID, err)
	}
	s.logger.InfoContext(ctx, "release initiated: release_id=%s status=%s", releaseID, release.Status)
	return nil
}

// AdvanceTo validates newStatus against the allowed-transition table and,
// only if legal, appends a history entry and persists the updated
// record. Illegal transitions return a *TransitionError and never touch
// the stored record (read-validate-write, not read-write-validate).
func (s *FileStore) AdvanceTo(ctx context.Context, releaseID string, newStatus domain.ReleaseStatus, notes string, details map[string]interface{}) error {
	mu := s.lockFor(releaseID)
	mu.Lock()
	defer mu.Unlock()

	var release domain.Release
	if err := atomicfile.ReadJSON(s.pathFor(releaseID), &release); err != nil {
		return &NotFoundError{ReleaseID: releaseID}
	}

	if !isAllowed(release.Status, newStatus) {
		s.logger.WarnContext(ctx, "illegal release transition rejected: release_id=%s from=%s to=%s", releaseID, release.Status, newStatus)
		return &TransitionError{ReleaseID: releaseID, From: release.Status, To: newStatus}
	}

	release.History = append(release.History, domain.HistoryEntry{
		FromStatus: release.Status,
		ToStatus:   newStatus,
		Notes:      notes,
		Details:    details,
	})
	release.Status = newStatus
	if newStatus == domain.StatusFailed && notes != "" {
		release.Error = notes
	}

	if err := atomicfile.WriteJSON(s.pathFor(releaseID), &release); err != nil {
		return fmt.Errorf("advancing release %s to %s: %w", releaseID, newStatus, err)
	}
	s.logger.InfoContext(ctx, "release advanced: release_id=%s status=%s", releaseID, newStatus)
	return nil
}

// GetStatus returns the current stored Release for releaseID.
func (s *FileStore) GetStatus(ctx context.Context, releaseID string) (*domain.Release, error) {
	var release domain.Release
	if err := atomicfile.ReadJSON(s.pathFor(releaseID), &release); err != nil {
		return nil, &NotFoundError{ReleaseID: releaseID}
	}
	return &release, nil
}

// ListIDs returns every release_id with a stored record, in no
// particular order.
func (s *FileStore) ListIDs(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing release store directory %s: %w", s.dir, err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		ids = append(ids, entry.Name()[:len(entry.Name())-len(".json")])
	}
	return ids, nil
}

var _ Store = (*FileStore)(nil)
