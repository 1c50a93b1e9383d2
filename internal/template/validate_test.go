package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMissingFile(t *testing.T) {
	report := Validate(filepath.Join(t.TempDir(), "nope.pdf"), DefaultFontBounds())

	assert.False(t, report.Valid)
	assert.NotEmpty(t, report.Errors)
	assert.Empty(t, report.FieldsFound)
}

func TestValidateGarbageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.pdf")
	require.NoError(t, os.WriteFile(path, []byte("this is not a pdf"), 0o644))

	report := Validate(path, DefaultFontBounds())

	assert.False(t, report.Valid)
	assert.NotEmpty(t, report.Errors)
	assert.Equal(t, int64(17), report.FileSizeBytes)
}

func TestValidateEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pdf")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	report := Validate(path, DefaultFontBounds())

	assert.False(t, report.Valid)
	assert.NotEmpty(t, report.Errors)
}
