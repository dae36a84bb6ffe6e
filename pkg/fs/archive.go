package fs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// WriteFileAtomic writes data to a temp file in path's directory and renames
// it into place, so a concurrent reader never observes a partial write.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// WriteArchiveAtomic runs write against a temp file inside outputDir and
// atomically renames the result into finalPath, so a reader of finalPath
// never sees a half-written archive. When gzipOutput is true the bytes
// write writes are gzip-compressed first.
func WriteArchiveAtomic(outputDir, finalPath string, gzipOutput bool, write func(io.Writer) error) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(outputDir, ".archive-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	var dst io.Writer = tmp
	var gz *gzip.Writer
	if gzipOutput {
		gz = gzip.NewWriter(tmp)
		dst = gz
	}

	if err := write(dst); err != nil {
		tmp.Close()
		return fmt.Errorf("write archive: %w", err)
	}

	if gz != nil {
		if err := gz.Close(); err != nil {
			tmp.Close()
			return fmt.Errorf("close gzip writer: %w", err)
		}
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp archive: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("publish archive: %w", err)
	}
	return nil
}
