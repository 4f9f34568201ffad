package backup

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// writeArchive compresses the staging tree rooted at srcDir into a
// tar.gz file at outPath and returns the archive size in bytes.
func writeArchive(srcDir, outPath string) (int64, error) {
	out, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("create archive %s: %w", outPath, err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == srcDir {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if d.IsDir() {
			header.Name += "/"
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		_, err = io.Copy(tw, file)
		return err
	})
	if walkErr != nil {
		return 0, fmt.Errorf("archive staging tree: %w", walkErr)
	}

	if err := tw.Close(); err != nil {
		return 0, fmt.Errorf("finalize tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, fmt.Errorf("finalize gzip: %w", err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("close archive: %w", err)
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return 0, fmt.Errorf("stat archive: %w", err)
	}
	return info.Size(), nil
}
