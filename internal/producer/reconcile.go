package producer

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/inshira2021/producerhub/internal/catalog"
)

// TrailerRef identifies a trailer within its movie.
type TrailerRef struct {
	MovieID   int64 `json:"movieId"`
	TrailerID int64 `json:"trailerId"`
}

// Report is the difference between the two stores at one point in time.
type Report struct {
	// OrphanBlobs are stored videos no trailer references.
	OrphanBlobs []int64 `json:"orphanBlobs"`
	// MissingBlobs are trailers naming a video file that is not stored.
	MissingBlobs []TrailerRef `json:"missingBlobs"`
	// OrphanCollections are child collection keys whose movie is gone.
	OrphanCollections []string `json:"orphanCollections"`
}

// Clean reports whether nothing is out of place.
func (r *Report) Clean() bool {
	return len(r.OrphanBlobs) == 0 && len(r.MissingBlobs) == 0 && len(r.OrphanCollections) == 0
}

// Reconcile compares stored videos against every trailer list.
func (s *Service) Reconcile(ctx context.Context) (*Report, error) {
	ids, err := s.blobs.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	stored := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		stored[id] = struct{}{}
	}
	movies := map[int64]struct{}{}
	for _, m := range s.cat.Movies() {
		movies[m.ID] = struct{}{}
	}

	r := &Report{OrphanBlobs: []int64{}, MissingBlobs: []TrailerRef{}, OrphanCollections: []string{}}
	referenced := map[int64]struct{}{}
	for _, key := range s.cat.ChildKeys() {
		prefix, movieID, _ := catalog.ParseChildKey(key)
		if _, ok := movies[movieID]; !ok {
			// Videos of trailers under a deleted movie are orphans too.
			r.OrphanCollections = append(r.OrphanCollections, key)
			continue
		}
		if prefix != catalog.TrailersPrefix {
			continue
		}
		for _, t := range s.cat.Trailers(movieID) {
			referenced[t.ID] = struct{}{}
			if _, ok := stored[t.ID]; !ok && t.VideoFileName != "" {
				r.MissingBlobs = append(r.MissingBlobs, TrailerRef{MovieID: movieID, TrailerID: t.ID})
			}
		}
	}
	for _, id := range ids {
		if _, ok := referenced[id]; !ok {
			r.OrphanBlobs = append(r.OrphanBlobs, id)
		}
	}
	slices.Sort(r.OrphanCollections)
	return r, nil
}

// CleanupResult reports what [Service.Cleanup] removed.
type CleanupResult struct {
	Report
	// Errs holds removal failures; the rest of the cleanup still ran.
	Errs error `json:"-"`
}

// Cleanup reconciles the stores and removes orphan videos and orphan child
// collections. Missing videos are reported only; their trailers are kept.
//
// Trailer saves wait for a running cleanup and the other way around, so a
// video whose metadata is being committed is never taken for an orphan.
func (s *Service) Cleanup(ctx context.Context) (*CleanupResult, error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	r, err := s.Reconcile(ctx)
	if err != nil {
		return nil, err
	}
	res := &CleanupResult{Report: Report{OrphanBlobs: []int64{}, MissingBlobs: r.MissingBlobs, OrphanCollections: []string{}}}
	var errs []error
	for _, id := range r.OrphanBlobs {
		if err := s.blobs.DeleteVideo(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		res.OrphanBlobs = append(res.OrphanBlobs, id)
	}
	dropped := map[int64]bool{}
	for _, key := range r.OrphanCollections {
		_, movieID, _ := catalog.ParseChildKey(key)
		if dropped[movieID] {
			res.OrphanCollections = append(res.OrphanCollections, key)
			continue
		}
		if err := s.cat.DropChildren(movieID); err != nil {
			errs = append(errs, err)
			continue
		}
		dropped[movieID] = true
		res.OrphanCollections = append(res.OrphanCollections, key)
	}
	res.Errs = errors.Join(errs...)
	slog.InfoContext(ctx, "Storage cleanup", "videos", len(res.OrphanBlobs), "collections", len(res.OrphanCollections), "err", res.Errs)
	return res, nil
}
