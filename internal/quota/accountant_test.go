package quota

import (
	"context"
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v4/disk"
)

type fixedMeta int64

func (f fixedMeta) Usage() int64 {
	return int64(f)
}

type fixedBlobs struct {
	n   int64
	err error
}

func (f fixedBlobs) Size(context.Context) (int64, error) {
	return f.n, f.err
}

func TestAccountant_Estimate(t *testing.T) {
	t.Run("ConfiguredQuota", func(t *testing.T) {
		a := New(fixedMeta(1024*1024), fixedBlobs{n: 3 * 1024 * 1024}, 10*1024*1024, "")
		e, err := a.Estimate(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		want := Estimate{UsedBytes: 4 * 1024 * 1024, QuotaBytes: 10 * 1024 * 1024, UsedMB: 4, QuotaMB: 10, PercentUsed: 40}
		if *e != want {
			t.Errorf("Estimate() = %+v, want %+v", *e, want)
		}
		if e.NearCapacity(DefaultWarnPercent) {
			t.Error("NearCapacity(80) at 40%")
		}
	})

	t.Run("Rounding", func(t *testing.T) {
		a := New(fixedMeta(1), fixedBlobs{n: 1234567}, 3*1024*1024, "")
		e, err := a.Estimate(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if e.UsedMB != 1.18 || e.QuotaMB != 3 || e.PercentUsed != 39.2 {
			t.Errorf("Estimate() = %+v", *e)
		}
	})

	t.Run("EmptyIsZero", func(t *testing.T) {
		a := New(fixedMeta(0), fixedBlobs{}, 1024, "")
		e, err := a.Estimate(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if e.PercentUsed != 0 || e.UsedBytes != 0 {
			t.Errorf("Estimate() = %+v", *e)
		}
	})

	t.Run("NoSources", func(t *testing.T) {
		e, err := New(nil, nil, 1024, "").Estimate(t.Context())
		if err != nil || e != nil {
			t.Errorf("Estimate() = %v, %v, want nil", e, err)
		}
	})

	t.Run("FilesystemQuota", func(t *testing.T) {
		a := New(fixedMeta(512), nil, 0, "/data")
		a.diskUsage = func(_ context.Context, path string) (*disk.UsageStat, error) {
			if path != "/data" {
				t.Errorf("diskUsage(%q)", path)
			}
			return &disk.UsageStat{Total: 1024}, nil
		}
		e, err := a.Estimate(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if e.QuotaBytes != 1024 || e.PercentUsed != 50 {
			t.Errorf("Estimate() = %+v", *e)
		}
		if !e.NearCapacity(50) {
			t.Error("NearCapacity(50) at 50%")
		}
	})

	t.Run("QuotaUnknown", func(t *testing.T) {
		a := New(fixedMeta(512), nil, 0, "/data")
		a.diskUsage = func(context.Context, string) (*disk.UsageStat, error) {
			return nil, errors.New("not supported")
		}
		e, err := a.Estimate(t.Context())
		if err != nil || e != nil {
			t.Errorf("Estimate() = %v, %v, want nil", e, err)
		}
	})

	t.Run("BlobError", func(t *testing.T) {
		a := New(nil, fixedBlobs{err: errors.New("boom")}, 1024, "")
		if _, err := a.Estimate(t.Context()); err == nil {
			t.Error("Estimate() succeeded")
		}
	})

	t.Run("RealFilesystem", func(t *testing.T) {
		e, err := New(fixedMeta(1), nil, 0, t.TempDir()).Estimate(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if e != nil && e.QuotaBytes <= 0 {
			t.Errorf("Estimate() = %+v", *e)
		}
	})
}
