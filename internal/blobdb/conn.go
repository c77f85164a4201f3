package blobdb

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Video is a stored video payload.
type Video struct {
	ID        int64
	Blob      []byte
	FileName  string
	Timestamp time.Time
}

// Conn is an open connection at a given schema version.
type Conn struct {
	mgr     *Manager
	db      *gorm.DB
	version int

	closeOnce sync.Once
	closeErr  error
}

// Close closes the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.unregister()
		sqlDB, err := c.db.DB()
		if err != nil {
			c.closeErr = err
		} else {
			c.closeErr = sqlDB.Close()
		}
		c.mgr.setState(StateClosed)
	})
	return c.closeErr
}

func (c *Conn) unregister() {
	registry.remove(c.mgr.path, c)
}

func (c *Conn) userVersion() (int, error) {
	var v int
	if err := c.db.Raw("PRAGMA user_version").Scan(&v).Error; err != nil {
		return 0, err
	}
	return v, nil
}

func (c *Conn) pragmaInt(name string) (int64, error) {
	var v int64
	if err := c.db.Raw("PRAGMA " + name).Scan(&v).Error; err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return v, nil
}

// applyQuota caps the database file at quota bytes. SQLite never lowers the
// cap below the current page count.
func (c *Conn) applyQuota(quota int64) error {
	if quota <= 0 {
		return nil
	}
	pageSize, err := c.pragmaInt("page_size")
	if err != nil {
		return err
	}
	return c.db.Exec(fmt.Sprintf("PRAGMA max_page_count = %d", max(quota/pageSize, 1))).Error
}

// Put upserts a record in its own transaction.
func (c *Conn) Put(id int64, blob []byte, fileName string) error {
	if q := c.mgr.cfg.QuotaBytes; q > 0 && int64(len(blob)) > q {
		return fmt.Errorf("video %d is %d bytes, quota is %d: %w", id, len(blob), q, ErrCapacityExceeded)
	}
	rec := record{ID: id, VideoBlob: blob, VideoFileName: fileName, Timestamp: time.Now().UnixMilli()}
	err := c.db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	})
	if err != nil {
		if isFull(err) {
			return fmt.Errorf("saving video %d: %w", id, errors.Join(ErrCapacityExceeded, err))
		}
		return fmt.Errorf("saving video %d: %w", id, err)
	}
	return nil
}

// Get returns the record for id, or nil when there is none.
func (c *Conn) Get(id int64) (*Video, error) {
	var rec record
	err := c.db.Transaction(func(tx *gorm.DB) error {
		return tx.Take(&rec, id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading video %d: %w", id, err)
	}
	if len(rec.VideoBlob) == 0 {
		return nil, nil
	}
	return &Video{
		ID:        rec.ID,
		Blob:      rec.VideoBlob,
		FileName:  rec.VideoFileName,
		Timestamp: time.UnixMilli(rec.Timestamp),
	}, nil
}

// Delete removes the record for id. Deleting a missing record succeeds.
func (c *Conn) Delete(id int64) error {
	err := c.db.Transaction(func(tx *gorm.DB) error {
		return tx.Delete(&record{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("deleting video %d: %w", id, err)
	}
	return nil
}

// IDs returns all record IDs in ascending order.
func (c *Conn) IDs() ([]int64, error) {
	ids := []int64{}
	err := c.db.Transaction(func(tx *gorm.DB) error {
		return tx.Model(&record{}).Order("id").Pluck("id", &ids).Error
	})
	if err != nil {
		return nil, fmt.Errorf("listing videos: %w", err)
	}
	return ids, nil
}

// Size returns the number of bytes used by the database pages.
func (c *Conn) Size() (int64, error) {
	count, err := c.pragmaInt("page_count")
	if err != nil {
		return 0, err
	}
	free, err := c.pragmaInt("freelist_count")
	if err != nil {
		return 0, err
	}
	size, err := c.pragmaInt("page_size")
	if err != nil {
		return 0, err
	}
	return (count - free) * size, nil
}
