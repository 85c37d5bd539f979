package progressionlog

import (
	"path/filepath"
	"testing"

	"github.com/lumenforge/aria/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend_ThenReadAllReturnsInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona-1.jsonl")
	writer, err := NewWriter(path)
	require.NoError(t, err)

	require.NoError(t, writer.Append(domain.ProgressionEntry{PersonaID: "persona-1", Description: "first"}))
	require.NoError(t, writer.Append(domain.ProgressionEntry{PersonaID: "persona-1", Description: "second"}))
	require.NoError(t, writer.Close())

	entries, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Description)
	assert.Equal(t, "second", entries[1].Description)
	assert.NotEmpty(t, entries[0].ID)
}

func TestAppend_AcrossWriterInstancesIsCumulative(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona-1.jsonl")
	first, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, first.Append(domain.ProgressionEntry{Description: "first"}))
	require.NoError(t, first.Close())

	second, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, second.Append(domain.ProgressionEntry{Description: "second"}))
	require.NoError(t, second.Close())

	entries, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestReadAll_MissingFileReturnsEmptyNotError(t *testing.T) {
	entries, err := ReadAll(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
