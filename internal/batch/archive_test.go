package batch

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateArchiveSuccessesOnly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "John_Doe.pdf"), []byte("one"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Jane_Roe.pdf"), []byte("two"), 0o644))

	results := []GenerationResult{
		{Success: true, Filename: "John_Doe.pdf"},
		{Success: false, Error: "failed"},
		{Success: true, Filename: "Jane_Roe.pdf"},
	}

	archivePath := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, CreateArchive(dir, results, archivePath))

	zr, err := zip.OpenReader(archivePath)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"John_Doe.pdf", "Jane_Roe.pdf"}, names)
}

func TestCreateArchiveMissingOutputFails(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "out.zip")
	results := []GenerationResult{{Success: true, Filename: "gone.pdf"}}

	err := CreateArchive(t.TempDir(), results, archivePath)
	require.Error(t, err)
	assert.NoFileExists(t, archivePath)
}

func TestCreateArchiveEmptyResults(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, CreateArchive(t.TempDir(), nil, archivePath))
	assert.FileExists(t, archivePath)
}
