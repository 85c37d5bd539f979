// Package progressionlog persists domain.ProgressionEntry records as an
// append-only JSON-Lines file per persona, the simplest faithful
// implementation of "append-only, either in DB or a JSON-Lines file".
package progressionlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/lumenforge/aria/internal/domain"
)

// Writer appends ProgressionEntry records for one persona to a single
// JSON-Lines file, opened O_APPEND|O_CREATE so every Append is one
// Write syscall -- atomic on POSIX for writes under PIPE_BUF.
type Writer struct {
	mu   sync.Mutex
	file *os.File
}

// NewWriter opens (creating if absent) the progression log file at path.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating progression log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening progression log %s: %w", path, err)
	}
	return &Writer{file: file}, nil
}

// Append writes entry as one JSON line, assigning an ID if absent.
func (w *Writer) Append(entry domain.ProgressionEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling progression entry: %w", err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(data); err != nil {
		return fmt.Errorf("appending progression entry: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// ReadAll reads every ProgressionEntry from path in append order. Used
// by tests and any tooling that needs the full history rather than the
// append-only write path.
func ReadAll(path string) ([]domain.ProgressionEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening progression log %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	var entries []domain.ProgressionEntry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry domain.ProgressionEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("parsing progression log line: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading progression log %s: %w", path, err)
	}
	return entries, nil
}
