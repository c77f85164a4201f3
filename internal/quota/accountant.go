// Package quota estimates storage usage against the available quota.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/shirou/gopsutil/v4/disk"
)

// DefaultWarnPercent is the usage percentage at which callers should warn.
const DefaultWarnPercent = 80

// MetadataUsage reports the bytes used by the metadata store.
type MetadataUsage interface {
	Usage() int64
}

// BlobUsage reports the bytes used by the blob store.
type BlobUsage interface {
	Size(ctx context.Context) (int64, error)
}

// Estimate is a point-in-time usage report. It may lag recent writes.
type Estimate struct {
	UsedBytes   int64   `json:"usedBytes"`
	QuotaBytes  int64   `json:"quotaBytes"`
	UsedMB      float64 `json:"usedMB"`
	QuotaMB     float64 `json:"quotaMB"`
	PercentUsed float64 `json:"percentUsed"`
}

// NearCapacity reports whether usage reached threshold percent.
func (e *Estimate) NearCapacity(threshold float64) bool {
	return e.PercentUsed >= threshold
}

// Accountant computes [Estimate] values.
type Accountant struct {
	meta       MetadataUsage
	blobs      BlobUsage
	quotaBytes int64
	dir        string

	diskUsage func(ctx context.Context, path string) (*disk.UsageStat, error)
}

// New returns an Accountant. Either source may be nil. When quotaBytes is 0
// the quota is the size of the filesystem holding dir.
func New(meta MetadataUsage, blobs BlobUsage, quotaBytes int64, dir string) *Accountant {
	return &Accountant{
		meta:       meta,
		blobs:      blobs,
		quotaBytes: quotaBytes,
		dir:        dir,
		diskUsage:  disk.UsageWithContext,
	}
}

// Estimate returns the current usage. It returns nil, without error, when
// usage or quota cannot be determined.
func (a *Accountant) Estimate(ctx context.Context) (*Estimate, error) {
	if a.meta == nil && a.blobs == nil {
		return nil, nil
	}
	var used int64
	if a.meta != nil {
		used += a.meta.Usage()
	}
	if a.blobs != nil {
		n, err := a.blobs.Size(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to measure blob store: %w", err)
		}
		used += n
	}
	quota := a.quotaBytes
	if quota <= 0 {
		quota = a.filesystemSize(ctx)
	}
	if quota <= 0 {
		return nil, nil
	}
	return &Estimate{
		UsedBytes:   used,
		QuotaBytes:  quota,
		UsedMB:      round(toMB(used), 2),
		QuotaMB:     round(toMB(quota), 2),
		PercentUsed: round(float64(used)*100/float64(quota), 1),
	}, nil
}

func (a *Accountant) filesystemSize(ctx context.Context) int64 {
	if a.dir == "" {
		return 0
	}
	st, err := a.diskUsage(ctx, a.dir)
	if err != nil {
		slog.DebugContext(ctx, "Filesystem usage unavailable", "dir", a.dir, "err", err)
		return 0
	}
	if st.Total > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(st.Total)
}

func toMB(b int64) float64 {
	return float64(b) / (1024 * 1024)
}

func round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}
