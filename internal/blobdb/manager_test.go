package blobdb

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
)

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	if cfg.Dir == "" {
		cfg.Dir = t.TempDir()
	}
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m
}

func TestManager_Videos(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		m := newTestManager(t, Config{})
		data := []byte("not really an mp4")
		if err := m.SaveVideo(t.Context(), 7, data, "clip.mp4"); err != nil {
			t.Fatalf("SaveVideo() error = %v", err)
		}
		v, err := m.GetVideo(t.Context(), 7)
		if err != nil {
			t.Fatalf("GetVideo() error = %v", err)
		}
		if v == nil {
			t.Fatal("GetVideo() = nil")
		}
		if !bytes.Equal(v.Blob, data) || v.FileName != "clip.mp4" || v.ID != 7 {
			t.Errorf("GetVideo() = %+v", v)
		}
		if v.Timestamp.IsZero() {
			t.Error("Timestamp not set")
		}
	})

	t.Run("AbsentIsNil", func(t *testing.T) {
		m := newTestManager(t, Config{})
		v, err := m.GetVideo(t.Context(), 12345)
		if err != nil || v != nil {
			t.Errorf("GetVideo(never saved) = %v, %v", v, err)
		}
	})

	t.Run("DeleteIdempotent", func(t *testing.T) {
		m := newTestManager(t, Config{})
		if err := m.DeleteVideo(t.Context(), 1); err != nil {
			t.Fatalf("DeleteVideo(missing) error = %v", err)
		}
		if err := m.SaveVideo(t.Context(), 1, []byte("x"), "a.mp4"); err != nil {
			t.Fatal(err)
		}
		for range 2 {
			if err := m.DeleteVideo(t.Context(), 1); err != nil {
				t.Fatalf("DeleteVideo() error = %v", err)
			}
		}
		if v, err := m.GetVideo(t.Context(), 1); err != nil || v != nil {
			t.Errorf("GetVideo(deleted) = %v, %v", v, err)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		m := newTestManager(t, Config{})
		if err := m.SaveVideo(t.Context(), 3, []byte("first"), "one.mp4"); err != nil {
			t.Fatal(err)
		}
		if err := m.SaveVideo(t.Context(), 3, []byte("second"), "two.mp4"); err != nil {
			t.Fatal(err)
		}
		v, err := m.GetVideo(t.Context(), 3)
		if err != nil {
			t.Fatal(err)
		}
		if string(v.Blob) != "second" || v.FileName != "two.mp4" {
			t.Errorf("GetVideo() after overwrite = %q %q", v.Blob, v.FileName)
		}
		ids, err := m.ListIDs(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(ids, []int64{3}) {
			t.Errorf("ListIDs() = %v", ids)
		}
	})

	t.Run("EmptyPayloadIsNil", func(t *testing.T) {
		m := newTestManager(t, Config{})
		if err := m.SaveVideo(t.Context(), 4, nil, "empty.mp4"); err != nil {
			t.Fatal(err)
		}
		if v, err := m.GetVideo(t.Context(), 4); err != nil || v != nil {
			t.Errorf("GetVideo(empty) = %v, %v", v, err)
		}
	})

	t.Run("LargeVideoScenario", func(t *testing.T) {
		m := newTestManager(t, Config{})
		data := bytes.Repeat([]byte{0xAB}, 5*1024*1024)
		if err := m.SaveVideo(t.Context(), 1001, data, "trailer.mp4"); err != nil {
			t.Fatal(err)
		}
		if err := m.SaveVideo(t.Context(), 5, []byte("small"), "s.mp4"); err != nil {
			t.Fatal(err)
		}
		v, err := m.GetVideo(t.Context(), 1001)
		if err != nil {
			t.Fatal(err)
		}
		if v == nil || len(v.Blob) != len(data) || v.FileName != "trailer.mp4" {
			t.Fatalf("GetVideo(1001) returned wrong record")
		}
		ids, err := m.ListIDs(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(ids, []int64{5, 1001}) {
			t.Errorf("ListIDs() = %v, want [5 1001]", ids)
		}
		size, err := m.Size(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if size < int64(len(data)) {
			t.Errorf("Size() = %d, want >= %d", size, len(data))
		}
		if err := m.DeleteVideo(t.Context(), 1001); err != nil {
			t.Fatal(err)
		}
		if v, err := m.GetVideo(t.Context(), 1001); err != nil || v != nil {
			t.Errorf("GetVideo(1001) after delete = %v, %v", v, err)
		}
		ids, err = m.ListIDs(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if slices.Contains(ids, 1001) {
			t.Errorf("ListIDs() still contains 1001: %v", ids)
		}
	})
}

func TestManager_Quota(t *testing.T) {
	t.Run("PayloadLargerThanQuota", func(t *testing.T) {
		m := newTestManager(t, Config{QuotaBytes: 1024})
		err := m.SaveVideo(t.Context(), 1, make([]byte, 2048), "big.mp4")
		if !errors.Is(err, ErrCapacityExceeded) {
			t.Errorf("SaveVideo() error = %v, want ErrCapacityExceeded", err)
		}
	})

	t.Run("DatabaseFull", func(t *testing.T) {
		m := newTestManager(t, Config{QuotaBytes: 512 * 1024})
		first := bytes.Repeat([]byte{1}, 300_000)
		if err := m.SaveVideo(t.Context(), 1, first, "first.mp4"); err != nil {
			t.Fatalf("SaveVideo(first) error = %v", err)
		}
		err := m.SaveVideo(t.Context(), 2, bytes.Repeat([]byte{2}, 300_000), "second.mp4")
		if !errors.Is(err, ErrCapacityExceeded) {
			t.Fatalf("SaveVideo(second) error = %v, want ErrCapacityExceeded", err)
		}
		v, err := m.GetVideo(t.Context(), 1)
		if err != nil {
			t.Fatal(err)
		}
		if v == nil || !bytes.Equal(v.Blob, first) || v.FileName != "first.mp4" {
			t.Error("prior record modified by failed save")
		}
		if v, err := m.GetVideo(t.Context(), 2); err != nil || v != nil {
			t.Errorf("GetVideo(2) = %v, %v, want nothing stored", v, err)
		}
	})

	t.Run("OverwriteFull", func(t *testing.T) {
		m := newTestManager(t, Config{QuotaBytes: 512 * 1024})
		first := bytes.Repeat([]byte{1}, 300_000)
		if err := m.SaveVideo(t.Context(), 1, first, "first.mp4"); err != nil {
			t.Fatalf("SaveVideo(first) error = %v", err)
		}
		err := m.SaveVideo(t.Context(), 1, bytes.Repeat([]byte{2}, 400_000), "second.mp4")
		if !errors.Is(err, ErrCapacityExceeded) {
			t.Fatalf("SaveVideo(overwrite) error = %v, want ErrCapacityExceeded", err)
		}
		v, err := m.GetVideo(t.Context(), 1)
		if err != nil {
			t.Fatal(err)
		}
		if v == nil || !bytes.Equal(v.Blob, first) || v.FileName != "first.mp4" {
			t.Error("record modified by failed overwrite")
		}
		ids, err := m.ListIDs(t.Context())
		if err != nil || !slices.Equal(ids, []int64{1}) {
			t.Errorf("ListIDs() = %v, %v", ids, err)
		}
	})
}

type transitions struct {
	mu  sync.Mutex
	got []string
}

func (tr *transitions) hook(from, to State) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.got = append(tr.got, from.String()+">"+to.String())
}

func (tr *transitions) take() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := tr.got
	tr.got = nil
	return out
}

func TestManager_Lifecycle(t *testing.T) {
	t.Run("FreshUpgradeThenReopen", func(t *testing.T) {
		tr := &transitions{}
		m := newTestManager(t, Config{OnStateChange: tr.hook})
		if m.State() != StateClosed {
			t.Errorf("initial State() = %v", m.State())
		}
		c, err := m.Open(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if m.State() != StateReady {
			t.Errorf("State() = %v, want ready", m.State())
		}
		if err := c.Close(); err != nil {
			t.Fatal(err)
		}
		want := []string{"closed>opening", "opening>upgrading", "upgrading>ready", "ready>closed"}
		if got := tr.take(); !slices.Equal(got, want) {
			t.Errorf("transitions = %v, want %v", got, want)
		}

		c, err = m.Open(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if v, err := c.userVersion(); err != nil || v != 1 {
			t.Errorf("user_version = %d, %v", v, err)
		}
		if err := c.Close(); err != nil {
			t.Fatal(err)
		}
		want = []string{"closed>opening", "opening>ready", "ready>closed"}
		if got := tr.take(); !slices.Equal(got, want) {
			t.Errorf("reopen transitions = %v, want %v", got, want)
		}
	})

	t.Run("BlockedUpgrade", func(t *testing.T) {
		dir := t.TempDir()
		v1 := newTestManager(t, Config{Dir: dir})
		if err := v1.SaveVideo(t.Context(), 9, []byte("keep"), "k.mp4"); err != nil {
			t.Fatal(err)
		}
		held, err := v1.Open(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		v2 := newTestManager(t, Config{Dir: dir, Version: 2})
		if _, err := v2.GetVideo(t.Context(), 9); !errors.Is(err, ErrUpgradeBlocked) {
			t.Fatalf("GetVideo() during held connection error = %v, want ErrUpgradeBlocked", err)
		}
		if v2.State() != StateFailed {
			t.Errorf("State() = %v, want failed", v2.State())
		}
		if err := held.Close(); err != nil {
			t.Fatal(err)
		}
		v, err := v2.GetVideo(t.Context(), 9)
		if err != nil {
			t.Fatalf("GetVideo() after release error = %v", err)
		}
		if v == nil || string(v.Blob) != "keep" {
			t.Errorf("data lost across upgrade: %+v", v)
		}
		if v2.State() != StateClosed {
			t.Errorf("State() = %v, want closed", v2.State())
		}
	})

	t.Run("DowngradeRefused", func(t *testing.T) {
		dir := t.TempDir()
		v2 := newTestManager(t, Config{Dir: dir, Version: 2})
		if _, err := v2.ListIDs(t.Context()); err != nil {
			t.Fatal(err)
		}
		v1 := newTestManager(t, Config{Dir: dir, Version: 1})
		if _, err := v1.ListIDs(t.Context()); !errors.Is(err, ErrVersion) {
			t.Errorf("ListIDs() at older version error = %v, want ErrVersion", err)
		}
		if v1.State() != StateFailed {
			t.Errorf("State() = %v, want failed", v1.State())
		}
	})

	t.Run("CanceledContext", func(t *testing.T) {
		m := newTestManager(t, Config{})
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		if err := m.SaveVideo(ctx, 1, []byte("x"), "x.mp4"); err == nil {
			t.Error("SaveVideo() with canceled context succeeded")
		}
		if m.State() != StateFailed {
			t.Errorf("State() = %v, want failed", m.State())
		}
	})
}

func TestNew(t *testing.T) {
	if _, err := New(Config{Dir: t.TempDir(), Version: -1}); err == nil {
		t.Error("New() accepted a negative version")
	}
	if _, err := New(Config{Dir: t.TempDir(), QuotaBytes: -1}); err == nil {
		t.Error("New() accepted a negative quota")
	}
	m, err := New(Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if m.Version() != DefaultVersion {
		t.Errorf("Version() = %d", m.Version())
	}
	if got := m.Path(); !strings.HasSuffix(got, "ProducerHubDB.sqlite") {
		t.Errorf("Path() = %q", got)
	}
}
