// Handles the image, live session and crew collections of a movie.

package handlers

import (
	"context"
	"strings"

	"github.com/inshira2021/producerhub/internal/catalog"
	"github.com/inshira2021/producerhub/internal/server/dto"
)

// RecordHandler handles the per-movie collections other than trailers.
type RecordHandler struct {
	Svc *Services
}

// ListImages lists the images of a movie.
func (h *RecordHandler) ListImages(ctx context.Context, req *dto.MovieRefRequest) (*dto.ListImagesResponse, error) {
	m, err := h.Svc.resolveMovie(req.Ref)
	if err != nil {
		return nil, err
	}
	images := h.Svc.Producer.Catalog().Images(m.ID)
	resp := &dto.ListImagesResponse{Images: make([]dto.ImageResponse, len(images))}
	for i := range images {
		resp.Images[i] = imageToDTO(&images[i])
	}
	return resp, nil
}

// CreateImage adds an image to a movie.
func (h *RecordHandler) CreateImage(ctx context.Context, req *dto.CreateImageRequest) (*dto.ImageResponse, error) {
	if !strings.HasPrefix(req.Data, "data:") {
		return nil, dto.BadRequest("image data must be a data URI").WithDetail("field", "data")
	}
	cat := h.Svc.Producer.Catalog()
	m, err := h.Svc.resolveMovie(req.Ref)
	if err != nil {
		return nil, err
	}
	img := &catalog.Image{ID: cat.AllocateID(), MovieID: m.ID, Title: req.Title, Data: req.Data}
	if err := cat.PutImage(img); err != nil {
		return nil, err
	}
	resp := imageToDTO(img)
	return &resp, nil
}

// DeleteImage removes an image.
func (h *RecordHandler) DeleteImage(ctx context.Context, req *dto.RecordRequest) (*dto.OKResponse, error) {
	m, err := h.Svc.resolveMovie(req.Ref)
	if err != nil {
		return nil, err
	}
	if err := h.Svc.Producer.Catalog().RemoveImage(m.ID, req.RecordID()); err != nil {
		return nil, err
	}
	return &dto.OKResponse{OK: true}, nil
}

// ListLiveSessions lists the live sessions of a movie.
func (h *RecordHandler) ListLiveSessions(ctx context.Context, req *dto.MovieRefRequest) (*dto.ListLiveSessionsResponse, error) {
	m, err := h.Svc.resolveMovie(req.Ref)
	if err != nil {
		return nil, err
	}
	sessions := h.Svc.Producer.Catalog().LiveSessions(m.ID)
	resp := &dto.ListLiveSessionsResponse{Sessions: make([]dto.LiveSessionResponse, len(sessions))}
	for i := range sessions {
		resp.Sessions[i] = liveSessionToDTO(&sessions[i])
	}
	return resp, nil
}

// CreateLiveSession schedules a live session.
func (h *RecordHandler) CreateLiveSession(ctx context.Context, req *dto.CreateLiveSessionRequest) (*dto.LiveSessionResponse, error) {
	cat := h.Svc.Producer.Catalog()
	m, err := h.Svc.resolveMovie(req.Ref)
	if err != nil {
		return nil, err
	}
	l := &catalog.LiveSession{ID: cat.AllocateID(), MovieID: m.ID, Title: req.Title, StartsAt: req.StartsAt, URL: req.URL}
	if err := cat.PutLiveSession(l); err != nil {
		return nil, err
	}
	resp := liveSessionToDTO(l)
	return &resp, nil
}

// DeleteLiveSession removes a live session.
func (h *RecordHandler) DeleteLiveSession(ctx context.Context, req *dto.RecordRequest) (*dto.OKResponse, error) {
	m, err := h.Svc.resolveMovie(req.Ref)
	if err != nil {
		return nil, err
	}
	if err := h.Svc.Producer.Catalog().RemoveLiveSession(m.ID, req.RecordID()); err != nil {
		return nil, err
	}
	return &dto.OKResponse{OK: true}, nil
}

// ListCrew lists the crew of a movie.
func (h *RecordHandler) ListCrew(ctx context.Context, req *dto.MovieRefRequest) (*dto.ListCrewResponse, error) {
	m, err := h.Svc.resolveMovie(req.Ref)
	if err != nil {
		return nil, err
	}
	crew := h.Svc.Producer.Catalog().Crew(m.ID)
	resp := &dto.ListCrewResponse{Crew: make([]dto.CrewMemberResponse, len(crew))}
	for i := range crew {
		resp.Crew[i] = crewMemberToDTO(&crew[i])
	}
	return resp, nil
}

// CreateCrewMember credits a person on a movie.
func (h *RecordHandler) CreateCrewMember(ctx context.Context, req *dto.CreateCrewMemberRequest) (*dto.CrewMemberResponse, error) {
	cat := h.Svc.Producer.Catalog()
	m, err := h.Svc.resolveMovie(req.Ref)
	if err != nil {
		return nil, err
	}
	c := &catalog.CrewMember{ID: cat.AllocateID(), MovieID: m.ID, Name: req.Name, Role: req.Role}
	if err := cat.PutCrewMember(c); err != nil {
		return nil, err
	}
	resp := crewMemberToDTO(c)
	return &resp, nil
}

// DeleteCrewMember removes a crew member.
func (h *RecordHandler) DeleteCrewMember(ctx context.Context, req *dto.RecordRequest) (*dto.OKResponse, error) {
	m, err := h.Svc.resolveMovie(req.Ref)
	if err != nil {
		return nil, err
	}
	if err := h.Svc.Producer.Catalog().RemoveCrewMember(m.ID, req.RecordID()); err != nil {
		return nil, err
	}
	return &dto.OKResponse{OK: true}, nil
}
