package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/inshira2021/producerhub/internal/catalog"
	"github.com/inshira2021/producerhub/internal/playback"
)

// TrailerInput is a trailer create or edit request.
type TrailerInput struct {
	// ID is 0 for a new trailer, or the ID of the trailer being edited.
	ID          int64
	MovieID     int64
	Title       string
	Description string
	Thumbnail   string // data URI
	// Video is the new video payload. Empty keeps the current video and file
	// name when editing.
	Video         []byte
	VideoFileName string
}

// SaveTrailer stores the video, when given, and then commits the trailer
// metadata. When the metadata commit fails the video stays behind as an
// orphan.
func (s *Service) SaveTrailer(ctx context.Context, in *TrailerInput) (*catalog.Trailer, error) {
	if _, err := s.cat.Movie(in.MovieID); err != nil {
		return nil, err
	}
	t := catalog.Trailer{
		ID:          in.ID,
		MovieID:     in.MovieID,
		Title:       in.Title,
		Description: in.Description,
		Thumbnail:   in.Thumbnail,
	}
	if in.ID != 0 {
		prev, err := s.cat.Trailer(in.MovieID, in.ID)
		if err != nil {
			return nil, err
		}
		t.VideoFileName = prev.VideoFileName
	} else {
		t.ID = s.cat.AllocateID()
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	if len(in.Video) > 0 && in.VideoFileName == "" {
		return nil, fmt.Errorf("%w: video file name is required", ErrValidation)
	}
	if err := s.commitTrailer(ctx, &t, in); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Saved trailer", "movie", t.MovieID, "trailer", t.ID, "video_bytes", len(in.Video))
	s.checkUsage(ctx)
	return &t, nil
}

// commitTrailer writes the video, if any, then the metadata.
func (s *Service) commitTrailer(ctx context.Context, t *catalog.Trailer, in *TrailerInput) error {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	if len(in.Video) > 0 {
		if err := s.blobs.SaveVideo(ctx, t.ID, in.Video, in.VideoFileName); err != nil {
			return fmt.Errorf("failed to save video for trailer %d: %w", t.ID, err)
		}
		t.VideoFileName = in.VideoFileName
	}
	if err := s.cat.PutTrailer(t); err != nil {
		if len(in.Video) > 0 {
			slog.WarnContext(ctx, "Trailer video stored without metadata", "trailer", t.ID, "err", err)
		}
		return err
	}
	return nil
}

// checkUsage logs a warning when usage is near the quota.
func (s *Service) checkUsage(ctx context.Context) {
	if s.acct == nil || s.opts.WarnPercent <= 0 {
		return
	}
	e, err := s.acct.Estimate(ctx)
	if err != nil || e == nil {
		return
	}
	if e.NearCapacity(s.opts.WarnPercent) {
		slog.WarnContext(ctx, "Storage nearly full", "used_mb", e.UsedMB, "quota_mb", e.QuotaMB, "percent", e.PercentUsed)
	}
}

// PlayableVideo is a stored video exposed through a playback handle.
type PlayableVideo struct {
	TrailerID int64           `json:"trailerId"`
	Handle    playback.Handle `json:"handle"`
	SavedAt   time.Time       `json:"savedAt"`
}

// GetVideo acquires a playback handle for the trailer's video. It returns nil
// when no video is stored. The caller releases the handle.
func (s *Service) GetVideo(ctx context.Context, trailerID int64) (*PlayableVideo, error) {
	v, err := s.blobs.GetVideo(ctx, trailerID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	h, err := s.handles.Acquire(v.Blob, v.FileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create playback handle for trailer %d: %w", trailerID, err)
	}
	return &PlayableVideo{TrailerID: trailerID, Handle: *h, SavedAt: v.Timestamp}, nil
}

// TrailerDeleteResult reports a trailer deletion.
type TrailerDeleteResult struct {
	Trailer catalog.Trailer
	// BlobDeleteErr is set when the metadata was removed but the video was not.
	BlobDeleteErr error
}

// DeleteTrailer removes the trailer metadata, then its video. A failure to
// remove the video is logged and reported in the result, not returned.
func (s *Service) DeleteTrailer(ctx context.Context, movieID, trailerID int64) (*TrailerDeleteResult, error) {
	t, err := s.cat.RemoveTrailer(movieID, trailerID)
	if err != nil {
		return nil, err
	}
	res := &TrailerDeleteResult{Trailer: *t}
	if err := s.blobs.DeleteVideo(ctx, trailerID); err != nil {
		slog.WarnContext(ctx, "Trailer video not deleted", "trailer", trailerID, "err", err)
		res.BlobDeleteErr = err
	}
	return res, nil
}

// MovieDeleteResult reports a movie deletion.
type MovieDeleteResult struct {
	Movie catalog.Movie
	// Cascaded is true when child collections and videos were removed.
	Cascaded bool
	// VideosDeleted lists the trailer IDs whose video delete succeeded.
	VideosDeleted []int64
	// Errs holds cascade failures. The movie itself is gone regardless.
	Errs error
}

// DeleteMovie removes the movie. With cascade enabled, the videos of its
// trailers and all of its child collections are removed afterwards.
func (s *Service) DeleteMovie(ctx context.Context, movieID int64) (*MovieDeleteResult, error) {
	m, err := s.cat.Movie(movieID)
	if err != nil {
		return nil, err
	}
	trailers := s.cat.Trailers(movieID)
	if err := s.cat.DeleteMovie(movieID); err != nil {
		return nil, err
	}
	res := &MovieDeleteResult{Movie: *m, Cascaded: s.opts.CascadeDelete, VideosDeleted: []int64{}}
	if !s.opts.CascadeDelete {
		slog.InfoContext(ctx, "Deleted movie", "movie", movieID, "cascade", false)
		return res, nil
	}
	var errs []error
	for _, t := range trailers {
		if err := s.blobs.DeleteVideo(ctx, t.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		res.VideosDeleted = append(res.VideosDeleted, t.ID)
	}
	if err := s.cat.DropChildren(movieID); err != nil {
		errs = append(errs, err)
	}
	res.Errs = errors.Join(errs...)
	if res.Errs != nil {
		slog.WarnContext(ctx, "Movie deleted with leftovers", "movie", movieID, "err", res.Errs)
	} else {
		slog.InfoContext(ctx, "Deleted movie", "movie", movieID, "cascade", true, "videos", len(res.VideosDeleted))
	}
	return res, nil
}
