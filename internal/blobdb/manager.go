// Package blobdb stores large binary payloads (trailer videos) in a local,
// transactional, schema-versioned database.
//
// # Lifecycle
//
// A [Manager] is configured with a database name and an integer schema
// version. Every operation opens its own connection, runs one transaction and
// closes the connection again. Opening walks an explicit state machine:
//
//	Closed -> Opening -> (schema check) -> [Upgrading ->] Ready
//	any    -> Failed
//
// The stored schema version is SQLite's user_version. Requesting a newer
// version runs the upgrade steps in one transaction; requesting an older one
// fails with [ErrVersion]. An upgrade is refused with [ErrUpgradeBlocked] while
// another connection to the same file is open at an older version.
//
// # Quota
//
// When Config.QuotaBytes is set, the database is capped with max_page_count and
// writes that do not fit fail with [ErrCapacityExceeded]. The failed
// transaction is rolled back so an existing record is never half overwritten.
package blobdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	// DefaultName is the database name used when Config.Name is empty.
	DefaultName = "ProducerHubDB"
	// DefaultVersion is the current schema version.
	DefaultVersion = 1
	// StoreName is the table holding video records.
	StoreName = "trailers"
)

var (
	// ErrCapacityExceeded is returned when a write does not fit in the quota.
	ErrCapacityExceeded = errors.New("blob store capacity exceeded")
	// ErrUpgradeBlocked is returned when a schema upgrade cannot start because
	// another connection holds the database open at an older version. Retry
	// once that connection is closed.
	ErrUpgradeBlocked = errors.New("schema upgrade blocked by an open connection")
	// ErrVersion is returned when the requested version is older than the
	// stored one.
	ErrVersion = errors.New("requested schema version is older than the stored version")
)

// Config configures a Manager.
type Config struct {
	// Dir is the directory holding the database file.
	Dir string
	// Name is the database name; the file is <Dir>/<Name>.sqlite.
	Name string
	// Version is the requested schema version, >= 1.
	Version int
	// QuotaBytes caps the database size. 0 means no limit.
	QuotaBytes int64
	// OnStateChange is called on every state transition, if set.
	OnStateChange func(from, to State)
}

// State is the lifecycle state of a Manager.
type State int

// Lifecycle states.
const (
	StateClosed State = iota
	StateOpening
	StateUpgrading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateUpgrading:
		return "upgrading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Manager opens connections to one blob database.
type Manager struct {
	cfg  Config
	path string

	mu    sync.Mutex
	state State
}

// New returns a Manager. It does not touch the disk; the database is created
// by the first operation.
func New(cfg Config) (*Manager, error) {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Version == 0 {
		cfg.Version = DefaultVersion
	}
	if cfg.Version < 0 {
		return nil, fmt.Errorf("invalid schema version %d", cfg.Version)
	}
	if cfg.QuotaBytes < 0 {
		return nil, fmt.Errorf("invalid quota %d", cfg.QuotaBytes)
	}
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, err
	}
	return &Manager{cfg: cfg, path: filepath.Join(dir, cfg.Name+".sqlite")}, nil
}

// Path returns the database file path.
func (m *Manager) Path() string {
	return m.path
}

// Version returns the requested schema version.
func (m *Manager) Version() int {
	return m.cfg.Version
}

// State returns the most recent lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(to State) {
	m.mu.Lock()
	from := m.state
	m.state = to
	m.mu.Unlock()
	if from != to && m.cfg.OnStateChange != nil {
		m.cfg.OnStateChange(from, to)
	}
}

// fail moves to Failed and returns err unchanged.
func (m *Manager) fail(ctx context.Context, err error) error {
	m.setState(StateFailed)
	slog.WarnContext(ctx, "Blob store open failed", "db", m.cfg.Name, "version", m.cfg.Version, "err", err)
	return err
}

// Open opens a connection, upgrading the schema when needed. The caller must
// Close it.
func (m *Manager) Open(ctx context.Context) (*Conn, error) {
	m.setState(StateOpening)
	if err := ctx.Err(); err != nil {
		return nil, m.fail(ctx, err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil { //nolint:gosec // G301: data directory
		return nil, m.fail(ctx, fmt.Errorf("failed to create blob directory: %w", err))
	}
	db, err := gorm.Open(sqlite.Open(m.path+"?_busy_timeout=5000"), &gorm.Config{
		Logger:                 newLogger(),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, m.fail(ctx, fmt.Errorf("failed to open %s: %w", m.cfg.Name, err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, m.fail(ctx, err)
	}
	// Pragmas are per connection; keep exactly one.
	sqlDB.SetMaxOpenConns(1)
	c := &Conn{mgr: m, db: db.WithContext(ctx), version: m.cfg.Version}
	if err := m.checkSchema(ctx, c); err != nil {
		return nil, m.fail(ctx, errors.Join(err, sqlDB.Close()))
	}
	if err := c.applyQuota(m.cfg.QuotaBytes); err != nil {
		c.unregister()
		return nil, m.fail(ctx, errors.Join(err, sqlDB.Close()))
	}
	m.setState(StateReady)
	return c, nil
}

// checkSchema compares the stored and requested versions, upgrades when
// needed and registers the connection.
func (m *Manager) checkSchema(ctx context.Context, c *Conn) error {
	stored, err := c.userVersion()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	want := m.cfg.Version
	if want < stored {
		return fmt.Errorf("%s: requested %d, stored %d: %w", m.cfg.Name, want, stored, ErrVersion)
	}

	registry.Lock()
	defer registry.Unlock()
	if want == stored {
		registry.add(m.path, c)
		return nil
	}
	m.setState(StateUpgrading)
	if registry.hasOlder(m.path, want) {
		return fmt.Errorf("%s: upgrade %d -> %d: %w", m.cfg.Name, stored, want, ErrUpgradeBlocked)
	}
	if err := upgrade(c.db, stored, want); err != nil {
		if isBusy(err) {
			return fmt.Errorf("%s: upgrade %d -> %d: %w", m.cfg.Name, stored, want, errors.Join(ErrUpgradeBlocked, err))
		}
		return fmt.Errorf("%s: upgrade %d -> %d failed: %w", m.cfg.Name, stored, want, err)
	}
	slog.InfoContext(ctx, "Upgraded blob store schema", "db", m.cfg.Name, "from", stored, "to", want)
	registry.add(m.path, c)
	return nil
}

// do runs fn on a fresh connection and closes it.
func (m *Manager) do(ctx context.Context, fn func(*Conn) error) error {
	c, err := m.Open(ctx)
	if err != nil {
		return err
	}
	return errors.Join(fn(c), c.Close())
}

// isFull reports whether err is SQLite running out of pages.
func isFull(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrFull
}

// isBusy reports whether err is SQLite lock contention with another process.
func isBusy(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked)
}

// connRegistry tracks open connections per database file, process wide.
type connRegistry struct {
	sync.Mutex
	conns map[string]map[*Conn]struct{}
}

var registry = connRegistry{conns: map[string]map[*Conn]struct{}{}}

// add must be called with the lock held.
func (r *connRegistry) add(path string, c *Conn) {
	if r.conns[path] == nil {
		r.conns[path] = map[*Conn]struct{}{}
	}
	r.conns[path][c] = struct{}{}
}

// hasOlder must be called with the lock held.
func (r *connRegistry) hasOlder(path string, version int) bool {
	for c := range r.conns[path] {
		if c.version < version {
			return true
		}
	}
	return false
}

func (r *connRegistry) remove(path string, c *Conn) {
	r.Lock()
	defer r.Unlock()
	delete(r.conns[path], c)
	if len(r.conns[path]) == 0 {
		delete(r.conns, path)
	}
}
