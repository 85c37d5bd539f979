package auditlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/lumenforge/aria/internal/logutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLogger_WritesOneJSONLinePerEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := NewFileLogger(path, logutil.NewTestLogger(t))
	require.NoError(t, err)

	logger.Log(AuditEvent{Operation: "GenerateTrack", Level: "INFO", Message: "started"})
	logger.Log(AuditEvent{Operation: "GenerateTrack", Level: "INFO", Message: "finished"})
	require.NoError(t, logger.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 2)

	var first AuditEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "started", first.Message)
	assert.False(t, first.Timestamp.IsZero())
}

func TestFileLogger_AppendsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger1, err := NewFileLogger(path, logutil.NewTestLogger(t))
	require.NoError(t, err)
	logger1.Log(AuditEvent{Operation: "op1", Message: "first"})
	require.NoError(t, logger1.Close())

	logger2, err := NewFileLogger(path, logutil.NewTestLogger(t))
	require.NoError(t, err)
	logger2.Log(AuditEvent{Operation: "op2", Message: "second"})
	require.NoError(t, logger2.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first")
	assert.Contains(t, string(data), "second")
}

func TestFileLogger_CloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := NewFileLogger(path, logutil.NewTestLogger(t))
	require.NoError(t, err)
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())
}

func TestNewFileLogger_InvalidPathErrors(t *testing.T) {
	_, err := NewFileLogger(filepath.Join(t.TempDir(), "nonexistent-dir", "audit.jsonl"), logutil.NewTestLogger(t))
	require.Error(t, err)
}

func TestNoopLogger_DiscardsEvents(t *testing.T) {
	logger := NewNoopLogger()
	logger.Log(AuditEvent{Operation: "anything"})
	assert.NoError(t, logger.Close())
}
