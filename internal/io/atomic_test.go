package io

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func TestWriteJSONAtomic_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	require.NoError(t, WriteJSONAtomic(path, payload{Name: "options_flow", Value: 1.05}))

	var got payload
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, "options_flow", got.Name)
	assert.Equal(t, 1.05, got.Value)

	// No temp file left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWriteJSONAtomic_OverwritesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, WriteJSONAtomic(path, payload{Value: 1}))
	require.NoError(t, WriteJSONAtomic(path, payload{Value: 2}))

	var got payload
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, 2.0, got.Value)
}

func TestAppendJSONLine_AppendsOneLinePerCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")

	require.NoError(t, AppendJSONLine(path, payload{Value: 1}))
	require.NoError(t, AppendJSONLine(path, payload{Value: 2}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)
}

func TestReadJSON_MissingFile(t *testing.T) {
	var got payload
	err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &got)
	assert.Error(t, err)
}
