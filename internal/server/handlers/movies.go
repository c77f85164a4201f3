// Handles movie CRUD requests.

package handlers

import (
	"context"
	"log/slog"

	"github.com/inshira2021/producerhub/internal/server/dto"
)

// MovieHandler handles movie requests.
type MovieHandler struct {
	Svc *Services
}

// ListMovies lists all movies, or those whose title or description matches
// the query.
func (h *MovieHandler) ListMovies(ctx context.Context, req *dto.ListMoviesRequest) (*dto.ListMoviesResponse, error) {
	cat := h.Svc.Producer.Catalog()
	movies := cat.Movies()
	if req.Query != "" {
		movies = cat.SearchMovies(req.Query)
	}
	resp := &dto.ListMoviesResponse{Movies: make([]dto.MovieResponse, len(movies))}
	for i := range movies {
		resp.Movies[i] = movieToDTO(&movies[i])
	}
	return resp, nil
}

// GetMovie returns the movie addressed by slug or ID.
func (h *MovieHandler) GetMovie(ctx context.Context, req *dto.MovieRefRequest) (*dto.MovieResponse, error) {
	m, err := h.Svc.resolveMovie(req.Ref)
	if err != nil {
		return nil, err
	}
	resp := movieToDTO(m)
	return &resp, nil
}

// CreateMovie creates a movie.
func (h *MovieHandler) CreateMovie(ctx context.Context, req *dto.CreateMovieRequest) (*dto.MovieResponse, error) {
	m, err := h.Svc.Producer.Catalog().CreateMovie(movieInputFromDTO(&req.MovieFields))
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Created movie", "movie", m.ID, "slug", m.Slug)
	resp := movieToDTO(m)
	return &resp, nil
}

// UpdateMovie replaces the editable fields of a movie.
func (h *MovieHandler) UpdateMovie(ctx context.Context, req *dto.UpdateMovieRequest) (*dto.MovieResponse, error) {
	m, err := h.Svc.resolveMovie(req.Ref)
	if err != nil {
		return nil, err
	}
	if m, err = h.Svc.Producer.Catalog().UpdateMovie(m.ID, movieInputFromDTO(&req.MovieFields)); err != nil {
		return nil, err
	}
	resp := movieToDTO(m)
	return &resp, nil
}

// DeleteMovie deletes a movie and, when cascading, its collections and
// videos. Cascade failures are reported as a warning; the movie is gone.
func (h *MovieHandler) DeleteMovie(ctx context.Context, req *dto.MovieRefRequest) (*dto.DeleteMovieResponse, error) {
	m, err := h.Svc.resolveMovie(req.Ref)
	if err != nil {
		return nil, err
	}
	res, err := h.Svc.Producer.DeleteMovie(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	resp := &dto.DeleteMovieResponse{
		ID:            formatID(res.Movie.ID),
		Cascaded:      res.Cascaded,
		VideosDeleted: formatIDs(res.VideosDeleted),
	}
	if res.Errs != nil {
		resp.Warning = "Movie deleted but some of its data could not be removed. Run a storage cleanup."
	}
	return resp, nil
}
