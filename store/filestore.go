package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore persists each table as a single JSON file under a directory,
// using the read-whole-table, mutate, write-whole-table pattern. A per-table
// mutex enforces the single-writer discipline that pattern requires.
//
// Suitable for small deployments and tests. Swap in [RedisStore] when
// concurrent writers or shared state across processes are needed.
type FileStore struct {
	dir string

	mu     sync.Mutex
	tables map[string]*sync.Mutex
}

// NewFileStore creates the directory if needed and returns a [FileStore].
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("file store directory must be set")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &FileStore{
		dir:    dir,
		tables: make(map[string]*sync.Mutex),
	}, nil
}

func (s *FileStore) tableLock(table string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.tables[table]
	if !ok {
		lock = &sync.Mutex{}
		s.tables[table] = lock
	}
	return lock
}

func (s *FileStore) path(table string) string {
	// Table names are fixed constants, but keep path traversal impossible.
	return filepath.Join(s.dir, strings.ReplaceAll(table, string(os.PathSeparator), "_")+".json")
}

func (s *FileStore) load(table string) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path(table))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(data) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	records := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: corrupt table %s: %v", ErrUnavailable, table, err)
	}
	return records, nil
}

func (s *FileStore) flush(table string, records map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Write-then-rename keeps a crashed write from truncating the table.
	path := s.path(table)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get implements [Store].
func (s *FileStore) Get(ctx context.Context, table, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lock := s.tableLock(table)
	lock.Lock()
	defer lock.Unlock()

	records, err := s.load(table)
	if err != nil {
		return nil, err
	}
	value, ok := records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

// Put implements [Store].
func (s *FileStore) Put(ctx context.Context, table, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !json.Valid(value) {
		return errors.New("file store values must be valid JSON")
	}

	lock := s.tableLock(table)
	lock.Lock()
	defer lock.Unlock()

	records, err := s.load(table)
	if err != nil {
		return err
	}
	records[key] = append([]byte(nil), value...)
	return s.flush(table, records)
}

// Delete implements [Store].
func (s *FileStore) Delete(ctx context.Context, table, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := s.tableLock(table)
	lock.Lock()
	defer lock.Unlock()

	records, err := s.load(table)
	if err != nil {
		return err
	}
	if _, ok := records[key]; !ok {
		return nil
	}
	delete(records, key)
	return s.flush(table, records)
}

// Scan implements [Store].
func (s *FileStore) Scan(ctx context.Context, table string, fn func(key string, value []byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := s.tableLock(table)
	lock.Lock()
	records, err := s.load(table)
	lock.Unlock()
	if err != nil {
		return err
	}

	for key, value := range records {
		if err := fn(key, append([]byte(nil), value...)); err != nil {
			return err
		}
	}
	return nil
}
