package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// StagingDirName is the per-run staging area inside a data root
const StagingDirName = ".staging"

// Manager handles the local file tree of a data root: one directory per
// Local category plus the staging area.
type Manager struct {
	root string
}

// NewManager creates a manager rooted at dir, creating it if needed
func NewManager(root string) (*Manager, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data root: %w", err)
	}
	return &Manager{root: root}, nil
}

// Root returns the data root
func (m *Manager) Root() string {
	return m.root
}

// CategoryDir returns the final local directory of category
func (m *Manager) CategoryDir(category string) string {
	return filepath.Join(m.root, category)
}

// StagingDir returns the staging directory of category
func (m *Manager) StagingDir(category string) string {
	return filepath.Join(m.root, StagingDirName, category)
}

// List returns the file names directly under dir, sorted. A missing
// directory yields no names.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ListCategory returns the files of the local tree of category
func (m *Manager) ListCategory(category string) ([]string, error) {
	return List(m.CategoryDir(category))
}

// RemoveCategory deletes the local tree of category
func (m *Manager) RemoveCategory(category string) error {
	if err := os.RemoveAll(m.CategoryDir(category)); err != nil {
		return fmt.Errorf("failed to remove %s: %w", category, err)
	}
	return nil
}

// RemoveStaging deletes the staging directory of each category, or the
// whole staging area when no category is given.
func (m *Manager) RemoveStaging(categories ...string) error {
	if len(categories) == 0 {
		return os.RemoveAll(filepath.Join(m.root, StagingDirName))
	}
	for _, c := range categories {
		if err := os.RemoveAll(m.StagingDir(c)); err != nil {
			return fmt.Errorf("failed to remove staging for %s: %w", c, err)
		}
	}
	return nil
}

// HasStaging reports whether a staging area exists
func (m *Manager) HasStaging() bool {
	_, err := os.Stat(filepath.Join(m.root, StagingDirName))
	return err == nil
}

// Move renames src into the local tree of category under name
func (m *Manager) Move(src, category, name string) error {
	dir := m.CategoryDir(category)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create category directory: %w", err)
	}
	if err := os.Rename(src, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("failed to move %s: %w", name, err)
	}
	return nil
}

// SaveFile writes r to path via a temporary file and an atomic rename
func SaveFile(r io.Reader, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := path + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to save data: %w", err)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
