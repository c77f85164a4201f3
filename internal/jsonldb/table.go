package jsonldb

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"
)

// Cloner is implemented by types that can clone themselves.
type Cloner[T any] interface {
	Clone() T
}

// Table handles storage and in-memory caching for a single table in JSONL format.
type Table[T Cloner[T]] struct {
	path string
	mu   sync.RWMutex

	rows []T
}

// NewTable creates a new Table and loads all data from the file.
func NewTable[T Cloner[T]](path string) (*Table[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: data directory
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	table := &Table[T]{
		path: path,
	}
	if err := table.Reload(); err != nil {
		return nil, err
	}
	return table, nil
}

// Path returns the backing file path.
func (t *Table[T]) Path() string {
	return t.path
}

// Len returns the number of rows.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Reload discards the in-memory rows and reads the file again.
//
// A missing file loads as an empty table. On error the previous rows are kept.
func (t *Table[T]) Reload() error {
	rows, err := readRows[T](t.path)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.rows = rows
	t.mu.Unlock()
	return nil
}

func readRows[T any](path string) ([]T, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the data directory
	if err != nil {
		if os.IsNotExist(err) {
			return []T{}, nil
		}
		return nil, fmt.Errorf("failed to open table file %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	rows := []T{}
	scanner := bufio.NewScanner(f)
	// Rows hold whole collections encoded as strings, they can be large.
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row T
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("failed to unmarshal row in %s: %w", path, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read table file %s: %w", path, err)
	}
	return rows, nil
}

// All returns an iterator over clones of all rows.
func (t *Table[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		t.mu.RLock()
		defer t.mu.RUnlock()
		for _, row := range t.rows {
			if !yield(row.Clone()) {
				return
			}
		}
	}
}

// Append adds a new row to the table and persists it.
func (t *Table[T]) Append(row T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}
	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G302,G304: data file
	if err != nil {
		return fmt.Errorf("failed to open table file for append: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	t.rows = append(t.rows, row)
	return nil
}

// Replace replaces all rows with the provided slice and persists it.
//
// The file is written to a sibling temp file and renamed over the original,
// so a failed write leaves the previous content in place.
func (t *Table[T]) Replace(rows []T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.CreateTemp(filepath.Dir(t.path), filepath.Base(t.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create table file: %w", err)
	}
	tmp := f.Name()
	writer := bufio.NewWriter(f)
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return errors.Join(fmt.Errorf("failed to marshal row: %w", err), f.Close(), os.Remove(tmp))
		}
		if _, err := writer.Write(data); err != nil {
			return errors.Join(fmt.Errorf("failed to write row: %w", err), f.Close(), os.Remove(tmp))
		}
		if err := writer.WriteByte('\n'); err != nil {
			return errors.Join(fmt.Errorf("failed to write newline: %w", err), f.Close(), os.Remove(tmp))
		}
	}
	if err := writer.Flush(); err != nil {
		return errors.Join(fmt.Errorf("failed to flush writer: %w", err), f.Close(), os.Remove(tmp))
	}
	if err := f.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to close table file: %w", err), os.Remove(tmp))
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return errors.Join(fmt.Errorf("failed to rename table file: %w", err), os.Remove(tmp))
	}
	t.rows = rows
	return nil
}
