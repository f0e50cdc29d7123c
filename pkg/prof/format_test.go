package prof

import (
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFileTypeBinary(t *testing.T) {
	path := writeLog(t, "prof_0.log", binPreamble+"trailing bytes never read")

	ft, v, err := DetectFileType(path)
	require.NoError(t, err)
	assert.Equal(t, FileTypeBinary, ft)
	assert.Equal(t, Version{Major: 1, Minor: 0}, v)
}

func TestDetectFileTypeASCII(t *testing.T) {
	path := writeLog(t, "prof_0.log", sampleASCIILog)

	ft, v, err := DetectFileType(path)
	require.NoError(t, err)
	assert.Equal(t, FileTypeASCII, ft)
	assert.Equal(t, Version{}, v)
}

func TestDetectFileTypeGzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(binPreamble))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	path := filepath.Join(t.TempDir(), "prof_0.log.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	ft, v, err := DetectFileType(path)
	require.NoError(t, err)
	assert.Equal(t, FileTypeBinary, ft)
	assert.Equal(t, 1, v.Major)
}

func TestDetectFileTypeUnknown(t *testing.T) {
	path := writeLog(t, "prof_0.log", "some random text file\n")

	_, _, err := DetectFileType(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestDetectFileTypeMissing(t *testing.T) {
	_, _, err := DetectFileType(filepath.Join(t.TempDir(), "nope.log"))
	require.Error(t, err)
}

func TestDetectFileTypeEmpty(t *testing.T) {
	path := writeLog(t, "prof_0.log", "")

	_, _, err := DetectFileType(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestNewDeserializerRegistry(t *testing.T) {
	s := NewState(0)

	d, err := NewDeserializer(FileTypeBinary, s)
	require.NoError(t, err)
	assert.IsType(t, &BinaryDeserializer{}, d)

	d, err = NewDeserializer(FileTypeASCII, s)
	require.NoError(t, err)
	assert.IsType(t, &ASCIIDeserializer{}, d)

	_, err = NewDeserializer(FileTypeUnknown, s)
	require.Error(t, err)
}
