package verify

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suranap/legion/internal/locator"
	"github.com/suranap/legion/pkg/prof"
)

const namedInstanceLog = `Prof Proc Desc 1 1
Prof Mem Desc 10 2 1048576
Prof Op Desc 1 0 Task main.rg:10
Prof Task Info 1 1 100 110 120 200
Prof Fill Info 600 1 10 128 1 2 3 9
Prof Fill Inst Info 600 900
Prof Inst Timeline 900 111 10 1 128 5 6 300
Prof Instance Name 900 my_test_instance
`

const unnamedInstanceLog = `Prof Inst Timeline 900 111 10 1 128 5 6 300
Prof Inst Timeline 901 112 10 1 256 5 6 300
`

const otherNamesLog = `Prof Inst Timeline 900 111 10 1 128 5 6 300
Prof Instance Name 900 zebra
Prof Inst Timeline 901 112 10 1 256 5 6 300
Prof Instance Name 901 aardvark
`

func writeLog(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunSuccess(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "prof_0.log", namedInstanceLog)

	var diag bytes.Buffer
	err := Run(filepath.Join(dir, "prof_*.log"), Options{
		ExpectedName: "my_test_instance",
		Diag:         &diag,
	})
	require.NoError(t, err)
	assert.Empty(t, diag.String())
}

func TestRunPicksLatestLog(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)

	// The older log has the name, the newer one does not: the pipeline must
	// verify against the newest file only.
	old := writeLog(t, dir, "prof_0.log", namedInstanceLog)
	require.NoError(t, os.Chtimes(old, base, base))
	fresh := writeLog(t, dir, "prof_1.log", unnamedInstanceLog)
	later := base.Add(30 * time.Minute)
	require.NoError(t, os.Chtimes(fresh, later, later))

	err := Run(filepath.Join(dir, "prof_*.log"), Options{
		ExpectedName: "my_test_instance",
		Diag:         &bytes.Buffer{},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNameNotFound))
}

func TestRunNameNotFoundListsNames(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "prof_0.log", otherNamesLog)

	var diag bytes.Buffer
	err := Run(filepath.Join(dir, "prof_*.log"), Options{
		ExpectedName: "my_test_instance",
		Diag:         &diag,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNameNotFound))
	assert.Equal(t, "Found instance names: aardvark, zebra\n", diag.String())
}

func TestRunNoNamedInstances(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "prof_0.log", unnamedInstanceLog)

	var diag bytes.Buffer
	err := Run(filepath.Join(dir, "prof_*.log"), Options{
		ExpectedName: "my_test_instance",
		Diag:         &diag,
	})
	require.Error(t, err)
	assert.Equal(t, "No named instances found in the log.\n", diag.String())
}

func TestRunNoLogFound(t *testing.T) {
	dir := t.TempDir()

	err := Run(filepath.Join(dir, "prof_*.log"), Options{ExpectedName: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, locator.ErrNoLogFound))
}

func TestRunCorruptLog(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "prof_0.log", "complete garbage, not a log\n")

	err := Run(filepath.Join(dir, "prof_*.log"), Options{ExpectedName: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, prof.ErrUnknownFormat))
}

func TestRunMalformedLog(t *testing.T) {
	dir := t.TempDir()
	// Valid header, truncated record line.
	writeLog(t, dir, "prof_0.log", "Prof Task Info 1 1 0 0\n")

	err := Run(filepath.Join(dir, "prof_*.log"), Options{ExpectedName: "x"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNameNotFound))
}

func TestRunIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "prof_0.log", otherNamesLog)
	pattern := filepath.Join(dir, "prof_*.log")

	var first, second bytes.Buffer
	err1 := Run(pattern, Options{ExpectedName: "nope", Diag: &first})
	err2 := Run(pattern, Options{ExpectedName: "nope", Diag: &second})

	require.Error(t, err1)
	require.Error(t, err2)
	assert.Equal(t, first.String(), second.String())
}

func TestInstanceNameShortCircuit(t *testing.T) {
	s := prof.NewState(0)
	cbs := s.Callbacks()
	require.NoError(t, cbs.InstanceNameInfo(prof.InstanceNameInfo{InstUID: 1, Name: "target"}))
	require.NoError(t, cbs.InstanceNameInfo(prof.InstanceNameInfo{InstUID: 2, Name: "target"}))
	s.LinkInstances()

	// Duplicate names are fine: first match wins, diag stays quiet.
	var diag bytes.Buffer
	assert.True(t, InstanceName(s, "target", &diag))
	assert.Empty(t, diag.String())
}
