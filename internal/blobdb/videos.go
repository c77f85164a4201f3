package blobdb

import (
	"context"
	"log/slog"
)

// SaveVideo stores blob under id, replacing any previous video.
func (m *Manager) SaveVideo(ctx context.Context, id int64, blob []byte, fileName string) error {
	err := m.do(ctx, func(c *Conn) error {
		return c.Put(id, blob, fileName)
	})
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "Saved video", "id", id, "bytes", len(blob))
	return nil
}

// GetVideo returns the video stored under id, or nil when there is none.
func (m *Manager) GetVideo(ctx context.Context, id int64) (*Video, error) {
	var v *Video
	err := m.do(ctx, func(c *Conn) error {
		var err error
		v, err = c.Get(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// DeleteVideo removes the video stored under id. It succeeds when there is
// none.
func (m *Manager) DeleteVideo(ctx context.Context, id int64) error {
	return m.do(ctx, func(c *Conn) error {
		return c.Delete(id)
	})
}

// ListIDs returns the IDs of all stored videos in ascending order.
func (m *Manager) ListIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := m.do(ctx, func(c *Conn) error {
		var err error
		ids, err = c.IDs()
		return err
	})
	return ids, err
}

// Size returns the bytes used by stored videos, including database overhead.
func (m *Manager) Size(ctx context.Context) (int64, error) {
	var n int64
	err := m.do(ctx, func(c *Conn) error {
		var err error
		n, err = c.Size()
		return err
	})
	return n, err
}
