package auditlog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/lumenforge/aria/internal/logutil"
)

// FileLogger writes each AuditEvent as one JSON line to a file, appending
// under a mutex so concurrent callers never interleave partial writes.
type FileLogger struct {
	mu     sync.Mutex
	file   *os.File
	logger logutil.LoggerInterface
}

// NewFileLogger opens (creating if necessary) path for appending and
// returns a FileLogger that writes to it. logger receives an error entry for
// any event that fails to marshal or write; Log itself never returns an error,
// matching the StructuredLogger contract.
func NewFileLogger(path string, logger logutil.LoggerInterface) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening audit log %s: %w", path, err)
	}
	return &FileLogger{file: f, logger: logger}, nil
}

// Log implements StructuredLogger.
func (l *FileLogger) Log(event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	line, err := json.Marshal(event)
	if err != nil {
		l.logger.Error("audit log: failed to marshal event for operation %s: %v", event.Operation, err)
		return
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(line); err != nil {
		l.logger.Error("audit log: failed to write event for operation %s: %v", event.Operation, err)
	}
}

// Close implements StructuredLogger. It is safe to call more than once.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

var _ StructuredLogger = (*FileLogger)(nil)
