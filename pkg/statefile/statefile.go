// Package statefile reads and writes the JSON state files kept under a data
// root. Writes are atomic: data goes to a temporary sibling, is synced, and
// then renamed over the target, so readers only ever see a complete file.
package statefile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	pserrors "pinscraper/pkg/errors"
)

// Read decodes the JSON file at path into v. A missing file is not an
// error: found is false and v is untouched. Content that does not decode
// yields a *errors.CorruptStateError.
func Read(path string, v interface{}) (found bool, err error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &pserrors.CorruptStateError{Path: path, Err: err}
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(v); err != nil {
		return true, &pserrors.CorruptStateError{Path: path, Err: err}
	}
	return true, nil
}

// Write encodes v as indented JSON and atomically replaces path
func Write(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync state file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Exists reports whether a state file is present at path
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Backup copies path to path+".bak". Nothing is done when path is absent.
func Backup(path string) error {
	src, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open state file for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(path + ".bak")
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy state file to backup: %w", err)
	}
	return dst.Sync()
}
