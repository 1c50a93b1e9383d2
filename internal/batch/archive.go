package batch

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CreateArchive packs the successful outputs of a run into a ZIP at
// archivePath. Entries are stored flat under their output filenames.
// Written atomically via a sibling temp file.
func CreateArchive(outputDir string, results []GenerationResult, archivePath string) error {
	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return err
	}

	tmp := archivePath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(f)
	for _, res := range results {
		if !res.Success {
			continue
		}
		if err := addArchiveEntry(zw, filepath.Join(outputDir, res.Filename), res.Filename); err != nil {
			zw.Close()
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("failed to archive %s: %w", res.Filename, err)
		}
	}

	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, archivePath)
}

func addArchiveEntry(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}
