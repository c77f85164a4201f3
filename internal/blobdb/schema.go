// Schema versions and their upgrade steps.

package blobdb

import (
	"fmt"

	"gorm.io/gorm"
)

// record is one row of the trailers store, keyed by the trailer ID.
type record struct {
	ID            int64  `gorm:"column:id;primaryKey;autoIncrement:false"`
	VideoBlob     []byte `gorm:"column:video_blob"`
	VideoFileName string `gorm:"column:video_file_name;not null;default:''"`
	Timestamp     int64  `gorm:"column:timestamp;not null"` // unix milliseconds
}

func (record) TableName() string {
	return StoreName
}

// upgradeSteps maps a schema version to the step that brings the database to
// it. Versions without an entry change nothing but the version number.
var upgradeSteps = map[int]func(tx *gorm.DB) error{
	1: createTrailersStore,
}

// createTrailersStore creates the trailers store unless it already exists.
func createTrailersStore(tx *gorm.DB) error {
	if tx.Migrator().HasTable(&record{}) {
		return nil
	}
	return tx.Migrator().CreateTable(&record{})
}

// upgrade runs every step in (from, to] and records the new version, all in
// one transaction.
func upgrade(db *gorm.DB, from, to int) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for v := from + 1; v <= to; v++ {
			step, ok := upgradeSteps[v]
			if !ok {
				continue
			}
			if err := step(tx); err != nil {
				return fmt.Errorf("step %d: %w", v, err)
			}
		}
		// PRAGMA does not take bound parameters.
		return tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", to)).Error
	})
}
