// Package producer implements the workflows that span the metadata store and
// the blob store: saving, playing and deleting trailers, deleting movies, and
// reconciling the two stores.
//
// The stores share no transaction. Writes are sequenced so that a failure
// leaves at worst an orphan blob, never metadata pointing at a blob that was
// never written. Orphans are found by [Service.Reconcile] and removed by
// [Service.Cleanup].
package producer

import (
	"context"
	"errors"
	"sync"

	"github.com/inshira2021/producerhub/internal/blobdb"
	"github.com/inshira2021/producerhub/internal/catalog"
	"github.com/inshira2021/producerhub/internal/metastore"
	"github.com/inshira2021/producerhub/internal/playback"
	"github.com/inshira2021/producerhub/internal/quota"
)

var (
	// ErrValidation is wrapped by input validation failures.
	ErrValidation = errors.New("validation failed")
	// ErrCapacityExceeded is matched by [IsCapacityExceeded].
	ErrCapacityExceeded = errors.New("storage capacity exceeded")
)

// IsCapacityExceeded reports whether err means a store ran out of space.
func IsCapacityExceeded(err error) bool {
	return errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, metastore.ErrCapacityExceeded) ||
		errors.Is(err, blobdb.ErrCapacityExceeded)
}

// BlobStore is the subset of [blobdb.Manager] used by the workflows.
type BlobStore interface {
	SaveVideo(ctx context.Context, id int64, blob []byte, fileName string) error
	GetVideo(ctx context.Context, id int64) (*blobdb.Video, error)
	DeleteVideo(ctx context.Context, id int64) error
	ListIDs(ctx context.Context) ([]int64, error)
}

// Options configures a Service.
type Options struct {
	// CascadeDelete removes a movie's trailers, videos and other collections
	// along with the movie.
	CascadeDelete bool
	// WarnPercent logs a warning after a save once usage reaches it. 0
	// disables the check.
	WarnPercent float64
}

// Service runs the cross-store workflows.
type Service struct {
	cat     *catalog.Catalog
	blobs   BlobStore
	handles *playback.Registry
	acct    *quota.Accountant
	opts    Options

	// storeMu serializes the window between a video write and its metadata
	// commit with Cleanup, which would otherwise see the video as an orphan.
	storeMu sync.Mutex
}

// New returns a Service. acct may be nil.
func New(cat *catalog.Catalog, blobs BlobStore, handles *playback.Registry, acct *quota.Accountant, opts Options) *Service {
	return &Service{cat: cat, blobs: blobs, handles: handles, acct: acct, opts: opts}
}

// Catalog returns the metadata catalog.
func (s *Service) Catalog() *catalog.Catalog {
	return s.cat
}

// Handles returns the playback handle registry.
func (s *Service) Handles() *playback.Registry {
	return s.handles
}

// Estimate returns the storage usage estimate, or nil when unknown.
func (s *Service) Estimate(ctx context.Context) (*quota.Estimate, error) {
	if s.acct == nil {
		return nil, nil
	}
	return s.acct.Estimate(ctx)
}

// ListVideoIDs returns the IDs of every stored video.
func (s *Service) ListVideoIDs(ctx context.Context) ([]int64, error) {
	return s.blobs.ListIDs(ctx)
}
