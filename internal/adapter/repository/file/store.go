// Package file stores each key as a JSON document in a directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/iho/coinwallet/internal/domain"
)

var validKey = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// Store implements usecase.KeyValueStore on the local filesystem.
type Store struct {
	mu  sync.RWMutex
	dir string
}

// NewStore creates dir if needed and returns a Store rooted there.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid store key %q", key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	return s.PutAll(ctx, map[string][]byte{key: value})
}

// PutAll stages every value in a temp file before renaming any of them into
// place. If a rename fails, documents already replaced are restored from
// their previous contents.
func (s *Store) PutAll(ctx context.Context, values map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]string, len(values))
	cleanup := func() {
		for tmp := range staged {
			_ = os.Remove(tmp)
		}
	}

	previous := make(map[string][]byte, len(values))
	for key, value := range values {
		p, err := s.path(key)
		if err != nil {
			cleanup()
			return err
		}
		old, err := os.ReadFile(p)
		switch {
		case err == nil:
			previous[p] = old
		case errors.Is(err, fs.ErrNotExist):
			previous[p] = nil
		default:
			cleanup()
			return fmt.Errorf("failed to read previous %s: %w", key, err)
		}
		tmp, err := writeTemp(s.dir, key, value)
		if err != nil {
			cleanup()
			return fmt.Errorf("failed to stage %s: %w", key, err)
		}
		staged[tmp] = p
	}

	if err := ctx.Err(); err != nil {
		cleanup()
		return err
	}

	committed := make([]string, 0, len(staged))
	for tmp, p := range staged {
		if err := os.Rename(tmp, p); err != nil {
			cleanup()
			if rbErr := s.restore(committed, previous); rbErr != nil {
				return errors.Join(fmt.Errorf("failed to commit %s: %w", filepath.Base(p), err), rbErr)
			}
			return fmt.Errorf("failed to commit %s: %w", filepath.Base(p), err)
		}
		delete(staged, tmp)
		committed = append(committed, p)
	}
	return nil
}

// restore puts back the previous contents of paths, removing the ones that
// did not exist before.
func (s *Store) restore(paths []string, previous map[string][]byte) error {
	var errs []error
	for _, p := range paths {
		old := previous[p]
		if old == nil {
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		key := strings.TrimSuffix(filepath.Base(p), ".json")
		tmp, err := writeTemp(s.dir, key, old)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Rename(tmp, p); err != nil {
			_ = os.Remove(tmp)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to roll back: %w", errors.Join(errs...))
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

func writeTemp(dir, key string, value []byte) (string, error) {
	f, err := os.CreateTemp(dir, "."+key+"-*.tmp")
	if err != nil {
		return "", err
	}
	name := f.Name()

	if _, err := f.Write(value); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}
