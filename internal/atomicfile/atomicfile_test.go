package atomicfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestWriteJSON_ThenReadJSON_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	want := sample{Name: "clip", Count: 3}

	require.NoError(t, WriteJSON(path, want))

	var got sample
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, want, got)
}

func TestWriteJSON_OverwritesPreviousContentEntirely(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, WriteJSON(path, sample{Name: "first", Count: 1}))
	require.NoError(t, WriteJSON(path, sample{Name: "second", Count: 2}))

	var got sample
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, sample{Name: "second", Count: 2}, got)
}

func TestWriteJSON_LeavesNoTempFilesBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	require.NoError(t, WriteJSON(path, sample{Name: "clip"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "doc.json", entries[0].Name())
}

func TestReadJSON_MissingFileErrors(t *testing.T) {
	var got sample
	err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &got)
	assert.Error(t, err)
}
