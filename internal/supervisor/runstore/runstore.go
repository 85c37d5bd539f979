// Package runstore persists supervisor.RunStatus records, one JSON
// document per run_id, and is the cross-process coordination point for
// which supervisor owns a given run.
package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lumenforge/aria/internal/atomicfile"
	"github.com/lumenforge/aria/internal/domain"
	"github.com/lumenforge/aria/internal/logutil"
)

// ErrAlreadyExists is returned by Create when run_id already has a
// status file, meaning another supervisor has already claimed this run.
var ErrAlreadyExists = errors.New("runstore: run_id already exists")

// ErrNotFound is returned when run_id has no stored record.
var ErrNotFound = errors.New("runstore: run not found")

// Store is the on-disk, restart-resumable index of in-flight and
// completed runs.
type Store struct {
	dir    string
	logger logutil.LoggerInterface
	mu     sync.RWMutex
}

// New creates a Store rooted at dir, creating dir if needed.
func New(dir string, logger logutil.LoggerInterface) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run status directory %s: %w", dir, err)
	}
	if logger == nil {
		logger = logutil.NewLogger(logutil.InfoLevel, nil, "[runstore] ")
	}
	return &Store{dir: dir, logger: logger}, nil
}

func (s *Store) pathFor(runID string) string {
	return filepath.Join(s.dir, runID+".json")
}

// Create claims run_id by writing its initial status with O_EXCL: a
// second Create for the same run_id (from this process or another)
// fails with ErrAlreadyExists rather than clobbering the first writer.
func (s *Store) Create(ctx context.Context, status *domain.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if status.CreatedAt.IsZero() {
		status.CreatedAt = now
	}
	status.LastUpdated = now

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run status %s: %w", status.RunID, err)
	}

	file, err := os.OpenFile(s.pathFor(status.RunID), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, status.RunID)
		}
		return fmt.Errorf("creating run status file for %s: %w", status.RunID, err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("writing run status file for %s: %w", status.RunID, err)
	}
	s.logger.InfoContext(ctx, "run status created: run_id=%s status=%s", status.RunID, status.Status)
	return nil
}

// Get reads the current status for run_id.
func (s *Store) Get(ctx context.Context, runID string) (*domain.RunStatus, error) {
	var status domain.RunStatus
	if err := atomicfile.ReadJSON(s.pathFor(runID), &status); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}
	return &status, nil
}

// UpdateStatus overwrites run_id's stored status and message, bumping
// LastUpdated. Writer-wins: the last caller to reach this method for a
// given run_id determines the stored state, matching the supervisor's
// single-writer-per-run-id concurrency model.
func (s *Store) UpdateStatus(ctx context.Context, runID string, newStatus domain.RunState, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, err := s.Get(ctx, runID)
	if err != nil {
		return err
	}

	status.Status = newStatus
	status.Message = message
	status.LastUpdated = time.Now()

	if err := atomicfile.WriteJSON(s.pathFor(runID), status); err != nil {
		return fmt.Errorf("updating run status file for %s: %w", runID, err)
	}
	s.logger.InfoContext(ctx, "run status updated: run_id=%s status=%s", runID, newStatus)
	return nil
}

// ListIDs returns every run_id with a stored record.
func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing run status directory %s: %w", s.dir, err)
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
