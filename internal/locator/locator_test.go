package locator

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAt(t *testing.T, dir, name string, mod time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
	return path
}

func TestFindLatest(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	writeAt(t, dir, "prof_0.log", base)
	newest := writeAt(t, dir, "prof_1.log", base.Add(10*time.Minute))
	writeAt(t, dir, "prof_2.log", base.Add(5*time.Minute))
	// Non-matching file must be ignored even though it is newer.
	writeAt(t, dir, "other.txt", base.Add(time.Hour))

	got, err := FindLatest(filepath.Join(dir, "prof_*.log"))
	require.NoError(t, err)
	assert.Equal(t, newest, got)
}

func TestFindLatestSingleMatch(t *testing.T) {
	dir := t.TempDir()
	only := writeAt(t, dir, "prof_0.log", time.Now())

	got, err := FindLatest(filepath.Join(dir, "prof_*.log"))
	require.NoError(t, err)
	assert.Equal(t, only, got)
}

func TestFindLatestNoMatches(t *testing.T) {
	dir := t.TempDir()

	_, err := FindLatest(filepath.Join(dir, "prof_*.log"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoLogFound))
	assert.Contains(t, err.Error(), "prof_*.log")
}

func TestFindLatestBadPattern(t *testing.T) {
	_, err := FindLatest("[")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoLogFound))
}
