// Serves and releases playback handles.

package handlers

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/inshira2021/producerhub/internal/playback"
	"github.com/inshira2021/producerhub/internal/server/dto"
)

func init() {
	// Register video MIME types not in the standard library.
	for _, pair := range [][2]string{
		{".m4v", "video/x-m4v"},
		{".mkv", "video/x-matroska"},
		{".mov", "video/quicktime"},
		{".mp4", "video/mp4"},
		{".webm", "video/webm"},
	} {
		if err := mime.AddExtensionType(pair[0], pair[1]); err != nil {
			panic(err)
		}
	}
}

// HandleHandler serves playback handles.
type HandleHandler struct {
	Svc *Services
}

// ServeHandle streams the content of an acquired handle with range support.
// This is a raw http.HandlerFunc for direct file serving.
func (h *HandleHandler) ServeHandle(w http.ResponseWriter, r *http.Request) {
	ref, err := playback.ParseURL(r.PathValue("ref"))
	if err != nil {
		writeErrorResponse(w, r, dto.BadRequest("invalid handle ref").Wrap(err))
		return
	}
	hdl, f, err := h.Svc.Producer.Handles().Open(ref)
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.WarnContext(r.Context(), "Failed to close handle", "ref", ref, "err", err)
		}
	}()
	ctype := mime.TypeByExtension(filepath.Ext(hdl.FileName))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	// Content addressed: the bytes behind a ref never change.
	w.Header().Set("Cache-Control", "private, max-age=31536000, immutable")
	w.Header().Set("ETag", `"`+string(ref)+`"`)
	http.ServeContent(w, r, hdl.FileName, time.Time{}, f)
}

// ReleaseHandle drops one reference to a handle. Releasing an unknown handle
// succeeds.
func (h *HandleHandler) ReleaseHandle(ctx context.Context, req *dto.HandleRequest) (*dto.OKResponse, error) {
	ref, err := playback.ParseURL(req.Ref)
	if err != nil {
		return nil, dto.BadRequest("invalid handle ref").Wrap(err)
	}
	if err := h.Svc.Producer.Handles().Release(ref); err != nil {
		return nil, err
	}
	return &dto.OKResponse{OK: true}, nil
}
