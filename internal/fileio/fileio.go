// Package fileio reads the file to hide and writes recovered files back.
package fileio

import (
	"io"
	"os"
	"path/filepath"

	"github.com/naseridev/deepscene/internal/format"
	"github.com/naseridev/deepscene/internal/stegerr"
)

// FileData is a file loaded for embedding
type FileData struct {
	Name string // base name, stored in the payload
	Data []byte
}

// ReadFile loads path after checking it is a regular, non-empty file within limits
func ReadFile(path string) (*FileData, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, stegerr.Validation("file does not exist: %s", path)
		}
		return nil, stegerr.IO(err, "cannot access %s", path)
	}

	if !info.Mode().IsRegular() {
		return nil, stegerr.Validation("path is not a regular file: %s", path)
	}

	if info.Size() == 0 {
		return nil, stegerr.Validation("file is empty: %s", path)
	}

	if info.Size() > format.MAX_FILE_SIZE {
		return nil, stegerr.Validation("file too large: %d bytes (max %d MB)",
			info.Size(), format.MAX_FILE_SIZE/(1024*1024))
	}

	name := filepath.Base(path)
	if len(name) > format.MAX_FILENAME_LENGTH {
		return nil, stegerr.Validation("file name too long (max %d bytes)", format.MAX_FILENAME_LENGTH)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, stegerr.IO(err, "failed to read %s", path)
	}

	// The file may have changed between stat and read.
	if len(data) == 0 {
		return nil, stegerr.Validation("file is empty: %s", path)
	}
	if len(data) > format.MAX_FILE_SIZE {
		return nil, stegerr.Validation("file too large: %d bytes (max %d MB)",
			len(data), format.MAX_FILE_SIZE/(1024*1024))
	}

	return &FileData{Name: name, Data: data}, nil
}

// ValidateOutputPath checks that path can be created or replaced
func ValidateOutputPath(path string) error {
	if path == "" {
		return stegerr.Validation("output path cannot be empty")
	}

	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return stegerr.Validation("output directory does not exist: %s", dir)
		}
		return stegerr.IO(err, "cannot access %s", dir)
	}
	if !info.IsDir() {
		return stegerr.Validation("output parent is not a directory: %s", dir)
	}

	info, err = os.Stat(path)
	switch {
	case err == nil:
		if !info.Mode().IsRegular() {
			return stegerr.Validation("output path exists and is not a regular file: %s", path)
		}
	case !os.IsNotExist(err):
		return stegerr.IO(err, "cannot access %s", path)
	}

	return nil
}

// WriteFile validates path and writes data atomically
func WriteFile(path string, data []byte) error {
	if err := ValidateOutputPath(path); err != nil {
		return err
	}
	return WriteAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteAtomic streams write into a temp file beside path and renames it into
// place, so a failed write never leaves a partial file behind.
func WriteAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return stegerr.IO(err, "failed to create %s", path)
	}
	tmpName := tmp.Name()

	ok := false
	defer func() {
		if !ok {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := write(tmp); err != nil {
		return stegerr.IO(err, "failed to write %s", path)
	}
	if err := tmp.Sync(); err != nil {
		return stegerr.IO(err, "failed to sync %s", path)
	}
	if err := tmp.Close(); err != nil {
		return stegerr.IO(err, "failed to close %s", path)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return stegerr.IO(err, "failed to set permissions on %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return stegerr.IO(err, "failed to move %s into place", path)
	}

	ok = true
	return nil
}
