// Handles trailer metadata, uploads and video playback requests.

package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/inshira2021/producerhub/internal/producer"
	"github.com/inshira2021/producerhub/internal/server/dto"
)

// multipartMemory is how much of a multipart upload is buffered in memory;
// the rest spills to temporary files.
const multipartMemory = 32 << 20

// TrailerHandler handles trailer requests.
type TrailerHandler struct {
	Svc *Services
	Cfg *Config
}

// ListTrailers lists the trailers of a movie.
func (h *TrailerHandler) ListTrailers(ctx context.Context, req *dto.MovieRefRequest) (*dto.ListTrailersResponse, error) {
	m, err := h.Svc.resolveMovie(req.Ref)
	if err != nil {
		return nil, err
	}
	trailers := h.Svc.Producer.Catalog().Trailers(m.ID)
	resp := &dto.ListTrailersResponse{Trailers: make([]dto.TrailerResponse, len(trailers))}
	for i := range trailers {
		resp.Trailers[i] = trailerToDTO(&trailers[i])
	}
	return resp, nil
}

// GetTrailer returns the metadata of one trailer.
func (h *TrailerHandler) GetTrailer(ctx context.Context, req *dto.RecordRequest) (*dto.TrailerResponse, error) {
	m, err := h.Svc.resolveMovie(req.Ref)
	if err != nil {
		return nil, err
	}
	t, err := h.Svc.Producer.Catalog().Trailer(m.ID, req.RecordID())
	if err != nil {
		return nil, err
	}
	resp := trailerToDTO(t)
	return &resp, nil
}

// GetTrailerVideo acquires a playback handle for the trailer's video. The
// client streams it from StreamURL and releases it when done.
func (h *TrailerHandler) GetTrailerVideo(ctx context.Context, req *dto.RecordRequest) (*dto.VideoHandleResponse, error) {
	m, err := h.Svc.resolveMovie(req.Ref)
	if err != nil {
		return nil, err
	}
	t, err := h.Svc.Producer.Catalog().Trailer(m.ID, req.RecordID())
	if err != nil {
		return nil, err
	}
	v, err := h.Svc.Producer.GetVideo(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, dto.NotFound("video")
	}
	return videoToDTO(v), nil
}

// DeleteTrailer removes a trailer and its video.
func (h *TrailerHandler) DeleteTrailer(ctx context.Context, req *dto.RecordRequest) (*dto.DeleteTrailerResponse, error) {
	m, err := h.Svc.resolveMovie(req.Ref)
	if err != nil {
		return nil, err
	}
	res, err := h.Svc.Producer.DeleteTrailer(ctx, m.ID, req.RecordID())
	if err != nil {
		return nil, err
	}
	resp := &dto.DeleteTrailerResponse{ID: formatID(res.Trailer.ID)}
	if res.BlobDeleteErr != nil {
		resp.Warning = "Trailer deleted but its video could not be removed. Run a storage cleanup."
	}
	return resp, nil
}

// SaveTrailerHandler creates (POST) or edits (PUT, with an {id} path value) a
// trailer from a multipart/form-data request.
//
// Form fields are title, description and thumbnail. The optional video file
// part replaces the stored video; without it an edit keeps the current one.
// This is a raw http.HandlerFunc because it handles multipart forms.
func (h *TrailerHandler) SaveTrailerHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m, err := h.Svc.resolveMovie(r.PathValue("ref"))
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	in := &producer.TrailerInput{MovieID: m.ID}
	if s := r.PathValue("id"); s != "" {
		if in.ID, err = dto.ParseID("id", s); err != nil {
			writeErrorResponse(w, r, err)
			return
		}
	}

	if h.Cfg != nil && h.Cfg.MaxRequestBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.Cfg.MaxRequestBodyBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeErrorResponse(w, r, dto.PayloadTooLarge(maxErr.Limit))
			return
		}
		writeErrorResponse(w, r, dto.BadRequest("Invalid multipart form").Wrap(err))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			slog.WarnContext(ctx, "Failed to remove multipart files", "err", err)
		}
	}()
	in.Title = r.FormValue("title")
	in.Description = r.FormValue("description")
	in.Thumbnail = r.FormValue("thumbnail")

	switch file, header, err := r.FormFile("video"); {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		writeErrorResponse(w, r, dto.BadRequest("Invalid video part").Wrap(err))
		return
	default:
		in.Video, err = readPart(file)
		if err != nil {
			writeErrorResponse(w, r, dto.InternalWithError("Failed to read video", err))
			return
		}
		in.VideoFileName = header.Filename
	}

	t, err := h.Svc.Producer.SaveTrailer(ctx, in)
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	status := http.StatusOK
	if r.Method == http.MethodPost {
		status = http.StatusCreated
	}
	writeJSON(w, status, trailerToDTO(t))
}

func readPart(f multipart.File) ([]byte, error) {
	data, err := io.ReadAll(f)
	if err2 := f.Close(); err == nil {
		err = err2
	}
	return data, err
}
