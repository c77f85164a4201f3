// Package metastore implements a small synchronous string key/value store with
// a capacity limit, persisted as a JSONL file.
//
// Values are whole strings, usually JSON documents; callers own serialization.
// There is no atomicity across keys.
//
// The file is a log: every Set appends the new value and every Remove appends
// a tombstone. Once stale rows outnumber live ones the file is compacted.
package metastore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/inshira2021/producerhub/internal/jsonldb"
)

// DefaultCapacity mirrors the few megabytes a browser grants its local store.
const DefaultCapacity = 5 * 1024 * 1024

// ErrCapacityExceeded is returned by Set when the write would make the total
// stored volume exceed the capacity.
var ErrCapacityExceeded = errors.New("metadata store capacity exceeded")

// compactMinStale is the number of stale rows tolerated before compacting.
const compactMinStale = 64

type entry struct {
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

func (e *entry) Clone() *entry {
	c := *e
	return &c
}

// Store is a string key/value store. It is safe for concurrent use.
type Store struct {
	capacity int64

	mu    sync.Mutex
	table *jsonldb.Table[*entry]
	byKey map[string]string
	usage int64
	// written is the file state after the store's own last write.
	written fileStamp
}

type fileStamp struct {
	size    int64
	modTime time.Time
}

func stat(path string) fileStamp {
	fi, err := os.Stat(path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{size: fi.Size(), modTime: fi.ModTime()}
}

// Open loads the store from path. capacity <= 0 means unlimited.
func Open(path string, capacity int64) (*Store, error) {
	table, err := jsonldb.NewTable[*entry](path)
	if err != nil {
		return nil, err
	}
	s := &Store{capacity: capacity, table: table, written: stat(path)}
	s.index()
	return s, nil
}

// index rebuilds the key map from the table. Later rows win over earlier ones
// and a tombstone drops the key.
func (s *Store) index() {
	s.byKey = make(map[string]string, s.table.Len())
	for e := range s.table.All() {
		if e.Deleted {
			delete(s.byKey, e.Key)
			continue
		}
		s.byKey[e.Key] = e.Value
	}
	s.usage = 0
	for k, v := range s.byKey {
		s.usage += int64(len(k) + len(v))
	}
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byKey[key]
	return v, ok
}

// Set stores value under key, replacing any previous value.
//
// On error the previous value is left untouched.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	usage := s.usage + int64(len(key)+len(value))
	if old, ok := s.byKey[key]; ok {
		usage -= int64(len(key) + len(old))
	}
	if s.capacity > 0 && usage > s.capacity {
		return fmt.Errorf("setting %q needs %d of %d bytes: %w", key, usage, s.capacity, ErrCapacityExceeded)
	}
	if err := s.append(&entry{Key: key, Value: value}); err != nil {
		return err
	}
	s.byKey[key] = value
	s.usage = usage
	s.maybeCompact()
	return nil
}

// Remove deletes key. Removing an absent key succeeds.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.byKey[key]
	if !ok {
		return nil
	}
	if err := s.append(&entry{Key: key, Deleted: true}); err != nil {
		return err
	}
	delete(s.byKey, key)
	s.usage -= int64(len(key) + len(old))
	s.maybeCompact()
	return nil
}

// Keys returns all keys, sorted.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.byKey))
}

// Usage returns the number of bytes currently stored, keys included.
func (s *Store) Usage() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// Capacity returns the configured capacity in bytes; <= 0 means unlimited.
func (s *Store) Capacity() int64 {
	return s.capacity
}

// Reload re-reads the backing file.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reload()
}

func (s *Store) reload() error {
	if err := s.table.Reload(); err != nil {
		return err
	}
	s.written = stat(s.table.Path())
	s.index()
	return nil
}

// reloadIfChanged reloads the backing file unless it is exactly as the store
// last wrote it.
func (s *Store) reloadIfChanged() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stat(s.table.Path()) == s.written {
		return false, nil
	}
	return true, s.reload()
}

// Watch reloads the store whenever the backing file is changed by another
// process. It blocks until ctx is done.
//
// The directory is watched rather than the file since compaction replaces the
// file with a rename. Events caused by the store's own writes are ignored.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	path := filepath.Clean(s.table.Path())
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			reloaded, err := s.reloadIfChanged()
			if err != nil {
				slog.WarnContext(ctx, "Failed to reload metadata", "path", path, "err", err)
				continue
			}
			if !reloaded {
				continue
			}
			slog.DebugContext(ctx, "Reloaded metadata", "path", path, "keys", len(s.Keys()))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "Error watching metadata", "err", err)
		}
	}
}

func (s *Store) append(e *entry) error {
	if err := s.table.Append(e); err != nil {
		return fmt.Errorf("failed to persist metadata: %w", err)
	}
	s.written = stat(s.table.Path())
	return nil
}

// maybeCompact rewrites the file with only the live rows once stale rows
// outnumber them. The log is already durable, so a failure is only logged.
func (s *Store) maybeCompact() {
	stale := s.table.Len() - len(s.byKey)
	if stale <= compactMinStale || stale <= len(s.byKey) {
		return
	}
	rows := make([]*entry, 0, len(s.byKey))
	for _, k := range slices.Sorted(maps.Keys(s.byKey)) {
		rows = append(rows, &entry{Key: k, Value: s.byKey[k]})
	}
	if err := s.table.Replace(rows); err != nil {
		slog.Warn("Failed to compact metadata", "path", s.table.Path(), "err", err)
		return
	}
	s.written = stat(s.table.Path())
}
