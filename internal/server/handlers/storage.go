// Reports storage usage and reconciles the metadata and blob stores.

package handlers

import (
	"context"

	"github.com/inshira2021/producerhub/internal/server/dto"
)

// StorageHandler handles storage accounting and maintenance requests.
type StorageHandler struct {
	Svc *Services
	Cfg *Config
}

// Estimate reports used and available storage. Known is false when usage
// cannot be determined.
func (h *StorageHandler) Estimate(ctx context.Context, req *dto.StorageRequest) (*dto.EstimateResponse, error) {
	e, err := h.Svc.Producer.Estimate(ctx)
	if err != nil {
		return nil, err
	}
	var warn float64
	if h.Cfg != nil {
		warn = h.Cfg.WarnPercent
	}
	return estimateToDTO(e, warn), nil
}

// ListVideos lists the IDs of every stored video.
func (h *StorageHandler) ListVideos(ctx context.Context, req *dto.StorageRequest) (*dto.ListVideosResponse, error) {
	ids, err := h.Svc.Producer.ListVideoIDs(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.ListVideosResponse{IDs: formatIDs(ids)}, nil
}

// Reconcile reports the inconsistencies between the two stores.
func (h *StorageHandler) Reconcile(ctx context.Context, req *dto.StorageRequest) (*dto.ReconcileResponse, error) {
	r, err := h.Svc.Producer.Reconcile(ctx)
	if err != nil {
		return nil, err
	}
	return reportToDTO(r), nil
}

// Cleanup removes orphan videos and orphan collections, and reports what was
// removed.
func (h *StorageHandler) Cleanup(ctx context.Context, req *dto.StorageRequest) (*dto.ReconcileResponse, error) {
	res, err := h.Svc.Producer.Cleanup(ctx)
	if err != nil {
		return nil, err
	}
	resp := reportToDTO(&res.Report)
	if res.Errs != nil {
		resp.Warning = "Some orphans could not be removed."
	}
	return resp, nil
}
