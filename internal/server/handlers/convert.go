// Provides conversion functions between catalog records and API responses.

package handlers

import (
	"strconv"
	"time"

	"github.com/inshira2021/producerhub/internal/catalog"
	"github.com/inshira2021/producerhub/internal/producer"
	"github.com/inshira2021/producerhub/internal/quota"
	"github.com/inshira2021/producerhub/internal/server/dto"
)

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func formatIDs(ids []int64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = formatID(id)
	}
	return out
}

func movieToDTO(m *catalog.Movie) dto.MovieResponse {
	return dto.MovieResponse{
		ID:          formatID(m.ID),
		Slug:        m.Slug,
		Title:       m.Title,
		Description: m.Description,
		IMDbID:      m.IMDbID,
		MainImage:   m.MainImage,
		BannerImage: m.BannerImage,
	}
}

func movieInputFromDTO(f *dto.MovieFields) *catalog.MovieInput {
	return &catalog.MovieInput{
		Title:       f.Title,
		Description: f.Description,
		IMDbID:      f.IMDbID,
		MainImage:   f.MainImage,
		BannerImage: f.BannerImage,
	}
}

func trailerToDTO(t *catalog.Trailer) dto.TrailerResponse {
	return dto.TrailerResponse{
		ID:            formatID(t.ID),
		MovieID:       formatID(t.MovieID),
		Title:         t.Title,
		Description:   t.Description,
		Thumbnail:     t.Thumbnail,
		VideoFileName: t.VideoFileName,
	}
}

func imageToDTO(i *catalog.Image) dto.ImageResponse {
	return dto.ImageResponse{ID: formatID(i.ID), MovieID: formatID(i.MovieID), Title: i.Title, Data: i.Data}
}

func liveSessionToDTO(l *catalog.LiveSession) dto.LiveSessionResponse {
	return dto.LiveSessionResponse{
		ID:       formatID(l.ID),
		MovieID:  formatID(l.MovieID),
		Title:    l.Title,
		StartsAt: l.StartsAt,
		URL:      l.URL,
	}
}

func crewMemberToDTO(c *catalog.CrewMember) dto.CrewMemberResponse {
	return dto.CrewMemberResponse{ID: formatID(c.ID), MovieID: formatID(c.MovieID), Name: c.Name, Role: c.Role}
}

func videoToDTO(v *producer.PlayableVideo) *dto.VideoHandleResponse {
	return &dto.VideoHandleResponse{
		TrailerID: formatID(v.TrailerID),
		Ref:       string(v.Handle.Ref),
		URL:       v.Handle.URL,
		StreamURL: "/api/handles/" + string(v.Handle.Ref),
		FileName:  v.Handle.FileName,
		Size:      v.Handle.Size,
		SavedAt:   v.SavedAt.UTC().Format(time.RFC3339),
	}
}

func estimateToDTO(e *quota.Estimate, warnPercent float64) *dto.EstimateResponse {
	if e == nil {
		return &dto.EstimateResponse{}
	}
	return &dto.EstimateResponse{
		Known:        true,
		UsedBytes:    e.UsedBytes,
		QuotaBytes:   e.QuotaBytes,
		UsedMB:       e.UsedMB,
		QuotaMB:      e.QuotaMB,
		PercentUsed:  e.PercentUsed,
		NearCapacity: warnPercent > 0 && e.NearCapacity(warnPercent),
	}
}

func reportToDTO(r *producer.Report) *dto.ReconcileResponse {
	resp := &dto.ReconcileResponse{
		OrphanBlobs:       formatIDs(r.OrphanBlobs),
		MissingBlobs:      make([]dto.TrailerRefResponse, len(r.MissingBlobs)),
		OrphanCollections: r.OrphanCollections,
	}
	if resp.OrphanCollections == nil {
		resp.OrphanCollections = []string{}
	}
	for i, m := range r.MissingBlobs {
		resp.MissingBlobs[i] = dto.TrailerRefResponse{MovieID: formatID(m.MovieID), TrailerID: formatID(m.TrailerID)}
	}
	return resp
}
