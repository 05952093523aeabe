package keys

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSkipsBlankLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "api_keys.txt")
	require.NoError(t, os.WriteFile(path, []byte("alpha\n\n  \nbeta  \r\ngamma"), 0o644))

	store, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, 3, store.Len())

	key, idx, err := store.Current()
	require.NoError(t, err)
	assert.Equal(t, "alpha", key)
	assert.Equal(t, 0, idx)

	require.NoError(t, store.Advance())
	key, _, err = store.Current()
	require.NoError(t, err)
	assert.Equal(t, "beta", key)
}

func TestLoadRejectsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api_keys.txt")
	require.NoError(t, os.WriteFile(path, []byte("\n\n"), 0o644))

	_, err := Load(path, "")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"), "")
	assert.Error(t, err)
}

func TestAdvanceExhausts(t *testing.T) {
	store := New([]string{"a", "b"}, "")

	require.NoError(t, store.Advance())
	assert.Equal(t, 1, store.Remaining())

	err := store.Advance()
	assert.True(t, errors.Is(err, ErrKeysExhausted))
	assert.Equal(t, 0, store.Remaining())

	_, _, err = store.Current()
	assert.ErrorIs(t, err, ErrKeysExhausted)

	// advancing past the end stays exhausted
	assert.ErrorIs(t, store.Advance(), ErrKeysExhausted)
	assert.Equal(t, 0, store.Remaining())
}

func TestRecordCorruptAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt_api.txt")
	store := New([]string{"a", "b"}, path)

	require.NoError(t, store.RecordCorrupt("a"))
	require.NoError(t, store.RecordCorrupt("b"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(data))
}

func TestRecordCorruptDisabled(t *testing.T) {
	store := New([]string{"a"}, "")
	assert.NoError(t, store.RecordCorrupt("a"))
}
