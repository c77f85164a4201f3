package blobdb

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm/logger"
)

// slogWriter forwards gorm's log lines to slog at debug level.
type slogWriter struct{}

func (slogWriter) Printf(format string, args ...any) {
	slog.Debug("blobdb", "msg", fmt.Sprintf(format, args...))
}

func newLogger() logger.Interface {
	return logger.New(slogWriter{}, logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}
