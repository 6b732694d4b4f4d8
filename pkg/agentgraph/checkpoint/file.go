package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileStore writes one document per checkpoint at
// <dir>/<workflow>/<name>.<ext>. Writes go to a temporary file that is
// renamed into place, so a crash never leaves a half-written checkpoint.
type FileStore struct {
	dir    string
	format Format
	mu     sync.RWMutex
	closed bool
}

// NewFileStore creates a store rooted at dir. The directory is created on
// first save.
func NewFileStore(dir string, format Format) *FileStore {
	if format == "" {
		format = FormatJSON
	}
	return &FileStore{dir: dir, format: format}
}

// Format implements Formatter.
func (s *FileStore) Format() Format {
	return s.format
}

// Path returns the file path used for (workflow, name).
func (s *FileStore) Path(workflow, name string) string {
	return filepath.Join(s.dir, workflow, name+s.format.Ext())
}

// Save implements Store.
func (s *FileStore) Save(_ context.Context, workflow, name string, data []byte) (string, error) {
	if err := validateAddress(workflow, name); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrStoreClosed
	}

	dir := filepath.Join(s.dir, workflow)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create checkpoint dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close checkpoint: %w", err)
	}

	path := s.Path(workflow, name)
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("rename checkpoint: %w", err)
	}
	return path, nil
}

// Load implements Store.
func (s *FileStore) Load(_ context.Context, workflow, name string) ([]byte, error) {
	if err := validateAddress(workflow, name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	data, err := os.ReadFile(s.Path(workflow, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	return data, nil
}

// List implements Store.
func (s *FileStore) List(_ context.Context, workflow string) ([]Info, error) {
	if err := ValidateName(workflow); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	entries, err := os.ReadDir(filepath.Join(s.dir, workflow))
	if errors.Is(err, fs.ErrNotExist) {
		return []Info{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	ext := s.format.Ext()
	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Workflow:  workflow,
			Name:      strings.TrimSuffix(e.Name(), ext),
			Size:      fi.Size(),
			UpdatedAt: fi.ModTime().UTC(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Delete implements Store.
func (s *FileStore) Delete(_ context.Context, workflow, name string) error {
	if err := validateAddress(workflow, name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	err := os.Remove(s.Path(workflow, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
