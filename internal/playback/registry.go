// Package playback turns stored video payloads into playable handles.
//
// A handle is a file on local disk, named after the SHA-256 of its file name
// and content, that a player can read and seek through until it is released.
// Handles are reference counted: acquiring the same bytes under the same name
// twice shares one file, and the file is deleted when the last reference is
// released. The same bytes under another name get their own handle, so the
// name and the content type derived from it always match what was stored.
package playback

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// ErrNotFound is returned for refs that are not currently acquired.
var ErrNotFound = errors.New("handle not found")

const tmpDirName = "tmp"

// Handle is an acquired, playable video.
type Handle struct {
	Ref      Ref    `json:"ref"`
	URL      string `json:"url"`
	FileName string `json:"fileName"`
	Size     int64  `json:"size"`
}

type entry struct {
	handle Handle
	refs   int
}

// Registry manages handle files under a directory.
//
// Files use a 256-way fan-out: <dir>/<hash[:2]>/<hash[2:]>. Partial writes
// live in <dir>/tmp.
type Registry struct {
	dir string

	mu      sync.Mutex
	handles map[Ref]*entry
}

// NewRegistry returns a Registry rooted at dir. Files left by a previous run
// are removed.
func NewRegistry(dir string) (*Registry, error) {
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("failed to clean handle directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, tmpDirName), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create handle directory: %w", err)
	}
	return &Registry{dir: dir, handles: map[Ref]*entry{}}, nil
}

// Acquire writes data to a handle file and returns the handle. The caller
// must Release it.
func (r *Registry) Acquire(data []byte, fileName string) (*Handle, error) {
	w, err := r.newWriter(fileName)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, errors.Join(err, w.abort())
	}
	return w.close()
}

// Open returns the handle and a reader over its content.
func (r *Registry) Open(ref Ref) (*Handle, *os.File, error) {
	if err := ref.Validate(); err != nil {
		return nil, nil, err
	}
	r.mu.Lock()
	e, ok := r.handles[ref]
	r.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	f, err := os.Open(r.pathForRef(ref))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open handle: %w", err)
	}
	h := e.handle
	return &h, f, nil
}

// Release drops one reference to the handle. The file is deleted with the
// last reference. Releasing an unknown ref is a no-op.
func (r *Registry) Release(ref Ref) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.handles[ref]
	if !ok {
		return nil
	}
	if e.refs--; e.refs > 0 {
		return nil
	}
	delete(r.handles, ref)
	if err := os.Remove(r.pathForRef(ref)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete handle: %w", err)
	}
	return nil
}

// Refs returns the currently acquired refs, sorted.
func (r *Registry) Refs() []Ref {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Ref, 0, len(r.handles))
	for ref := range r.handles {
		out = append(out, ref)
	}
	slices.Sort(out)
	return out
}

// Close releases every handle and removes the directory.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.handles)
	clear(r.handles)
	if n != 0 {
		slog.Info("Released playback handles", "count", n)
	}
	return os.RemoveAll(r.dir)
}

func (r *Registry) pathForRef(ref Ref) string {
	h := string(ref)[len(refPrefix):]
	return filepath.Join(r.dir, h[:2], h[2:])
}

// writer streams data to a temp file, hashing as it goes. The hash covers the
// file name, a NUL byte, then the content; size counts the content only.
type writer struct {
	reg      *Registry
	fileName string
	tmpPath  string
	file     io.WriteCloser // nil after close or abort
	hasher   hash.Hash
	size     int64
}

func (r *Registry) newWriter(fileName string) (*writer, error) {
	f, err := os.CreateTemp(filepath.Join(r.dir, tmpDirName), "*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	hasher := sha256.New()
	hasher.Write([]byte(fileName))
	hasher.Write([]byte{0})
	return &writer{reg: r, fileName: fileName, tmpPath: f.Name(), file: f, hasher: hasher}, nil
}

func (w *writer) Write(p []byte) (int, error) {
	if w.file == nil {
		return 0, fs.ErrClosed
	}
	n, err := w.file.Write(p)
	if n > 0 {
		w.size += int64(n)
		w.hasher.Write(p[:n])
	}
	return n, err
}

func (w *writer) abort() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return errors.Join(err, os.Remove(w.tmpPath))
}

// close moves the temp file to its content-addressed path and registers one
// reference. An identical name and content already acquired reuses the
// existing file.
func (w *writer) close() (*Handle, error) {
	if w.file == nil {
		return nil, fs.ErrClosed
	}
	err := w.file.Close()
	w.file = nil
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to close temp file: %w", err), os.Remove(w.tmpPath))
	}
	ref := Ref(fmt.Sprintf("%s%s-%d", refPrefix, base32Enc.EncodeToString(w.hasher.Sum(nil)), w.size))

	r := w.reg
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.handles[ref]; ok {
		e.refs++
		h := e.handle
		return &h, os.Remove(w.tmpPath)
	}
	target := r.pathForRef(ref)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create handle subdirectory: %w", err), os.Remove(w.tmpPath))
	}
	if err := os.Rename(w.tmpPath, target); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to rename handle to final location: %w", err), os.Remove(w.tmpPath))
	}
	e := &entry{handle: Handle{Ref: ref, URL: ref.URL(), FileName: w.fileName, Size: w.size}, refs: 1}
	r.handles[ref] = e
	h := e.handle
	return &h, nil
}
