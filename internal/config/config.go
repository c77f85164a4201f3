// Package config manages the configuration stored in <data-dir>/config.json.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"github.com/inshira2021/producerhub/internal/blobdb"
	"github.com/inshira2021/producerhub/internal/metastore"
	"github.com/inshira2021/producerhub/internal/quota"
)

// FileName is the configuration file name within the data directory.
const FileName = "config.json"

// Config stores all configuration.
// Loaded from config.json, created with defaults if missing.
type Config struct {
	// MetadataCapacityBytes caps the metadata store. 0 means unlimited.
	MetadataCapacityBytes int64 `json:"metadata_capacity_bytes" jsonschema:"description=Maximum size of the metadata store in bytes (0=unlimited)"`

	// BlobDBName names the blob database file.
	BlobDBName string `json:"blob_db_name" jsonschema:"description=Blob database name; the file is <data-dir>/<name>.sqlite"`

	// BlobDBVersion is the requested blob schema version.
	BlobDBVersion int `json:"blob_db_version" jsonschema:"description=Requested blob store schema version,minimum=1"`

	// BlobQuotaBytes caps the blob store. 0 takes the quota from the filesystem.
	BlobQuotaBytes int64 `json:"blob_quota_bytes" jsonschema:"description=Maximum size of the blob store in bytes (0=size of the filesystem)"`

	// WarnPercent is the usage percentage that triggers a warning.
	WarnPercent float64 `json:"warn_percent" jsonschema:"description=Usage percentage that triggers a storage warning (0=never),minimum=0,maximum=100"`

	// CascadeDelete removes trailers, videos and other collections with their movie.
	CascadeDelete bool `json:"cascade_delete" jsonschema:"description=Delete a movie's trailers and videos and collections along with it"`

	// RateLimits defines rate limiting configuration.
	RateLimits RateLimits `json:"rate_limits"`

	// MaxRequestBodyBytes limits the size of any single HTTP request body.
	MaxRequestBodyBytes int64 `json:"max_request_body_bytes" jsonschema:"description=Maximum HTTP request body size in bytes"`
}

// RateLimits defines rate limiting configuration (requests per minute).
type RateLimits struct {
	// WritePerMin limits write operations per client IP.
	// 0 means unlimited.
	WritePerMin int `json:"write_per_min" jsonschema:"description=Write requests per minute per client IP (0=unlimited)"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		MetadataCapacityBytes: metastore.DefaultCapacity,
		BlobDBName:            blobdb.DefaultName,
		BlobDBVersion:         blobdb.DefaultVersion,
		BlobQuotaBytes:        0,
		WarnPercent:           quota.DefaultWarnPercent,
		CascadeDelete:         true,
		RateLimits:            RateLimits{WritePerMin: 120},
		MaxRequestBodyBytes:   512 * 1024 * 1024, // 512 MiB
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.MetadataCapacityBytes < 0 {
		return errors.New("metadata_capacity_bytes must be non-negative")
	}
	if c.BlobDBName == "" {
		return errors.New("blob_db_name is required")
	}
	if filepath.Base(c.BlobDBName) != c.BlobDBName {
		return errors.New("blob_db_name must not contain a path separator")
	}
	if c.BlobDBVersion < 1 {
		return errors.New("blob_db_version must be at least 1")
	}
	if c.BlobQuotaBytes < 0 {
		return errors.New("blob_quota_bytes must be non-negative")
	}
	if c.WarnPercent < 0 || c.WarnPercent > 100 {
		return errors.New("warn_percent must be between 0 and 100")
	}
	if c.RateLimits.WritePerMin < 0 {
		return errors.New("rate_limits: write_per_min must be non-negative")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return errors.New("max_request_body_bytes must be positive")
	}
	return nil
}

// Load loads configuration from dataDir/config.json.
// Creates the file with defaults if it doesn't exist.
func Load(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, FileName)
	cfg := Default()
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is constructed from dataDir, not user input
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
		}
		if err := cfg.Save(dataDir); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", FileName, err)
	}
	return &cfg, nil
}

// Save saves configuration to dataDir/config.json.
func (c *Config) Save(dataDir string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(filepath.Join(dataDir, FileName), data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", FileName, err)
	}
	return nil
}

// Schema returns the JSON schema of config.json.
func Schema() ([]byte, error) {
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	s := r.Reflect(&Config{})
	s.Title = "producerhub configuration"
	return json.MarshalIndent(s, "", "  ")
}
