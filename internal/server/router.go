// Package server implements the HTTP server and routing logic.
package server

import (
	"net/http"

	"github.com/inshira2021/producerhub/internal/server/dto"
	"github.com/inshira2021/producerhub/internal/server/handlers"
	"github.com/inshira2021/producerhub/internal/server/ratelimit"
)

// NewRouter creates and configures the HTTP router.
//
// Every endpoint lives under /api. Write requests are rate limited per
// client IP by limits; a nil limits disables rate limiting.
func NewRouter(svc *handlers.Services, cfg *handlers.Config, limits *ratelimit.Config) http.Handler {
	mux := &http.ServeMux{}
	hh := handlers.NewHealthHandler(cfg.Version)
	mh := &handlers.MovieHandler{Svc: svc}
	th := &handlers.TrailerHandler{Svc: svc, Cfg: cfg}
	rh := &handlers.RecordHandler{Svc: svc}
	ph := &handlers.HandleHandler{Svc: svc}
	sh := &handlers.StorageHandler{Svc: svc, Cfg: cfg}

	// Health check
	mux.Handle("GET /api/health", Wrap(hh.Health, cfg))

	// Movies
	mux.Handle("GET /api/movies", Wrap(mh.ListMovies, cfg))
	mux.Handle("POST /api/movies", Wrap(mh.CreateMovie, cfg))
	mux.Handle("GET /api/movies/{ref}", Wrap(mh.GetMovie, cfg))
	mux.Handle("PUT /api/movies/{ref}", Wrap(mh.UpdateMovie, cfg))
	mux.Handle("DELETE /api/movies/{ref}", Wrap(mh.DeleteMovie, cfg))

	// Trailers
	mux.Handle("GET /api/movies/{ref}/trailers", Wrap(th.ListTrailers, cfg))
	mux.HandleFunc("POST /api/movies/{ref}/trailers", th.SaveTrailerHandler)
	mux.Handle("GET /api/movies/{ref}/trailers/{id}", Wrap(th.GetTrailer, cfg))
	mux.HandleFunc("PUT /api/movies/{ref}/trailers/{id}", th.SaveTrailerHandler)
	mux.Handle("DELETE /api/movies/{ref}/trailers/{id}", Wrap(th.DeleteTrailer, cfg))
	mux.Handle("GET /api/movies/{ref}/trailers/{id}/video", Wrap(th.GetTrailerVideo, cfg))

	// Other per-movie collections
	mux.Handle("GET /api/movies/{ref}/images", Wrap(rh.ListImages, cfg))
	mux.Handle("POST /api/movies/{ref}/images", Wrap(rh.CreateImage, cfg))
	mux.Handle("DELETE /api/movies/{ref}/images/{id}", Wrap(rh.DeleteImage, cfg))
	mux.Handle("GET /api/movies/{ref}/live", Wrap(rh.ListLiveSessions, cfg))
	mux.Handle("POST /api/movies/{ref}/live", Wrap(rh.CreateLiveSession, cfg))
	mux.Handle("DELETE /api/movies/{ref}/live/{id}", Wrap(rh.DeleteLiveSession, cfg))
	mux.Handle("GET /api/movies/{ref}/crew", Wrap(rh.ListCrew, cfg))
	mux.Handle("POST /api/movies/{ref}/crew", Wrap(rh.CreateCrewMember, cfg))
	mux.Handle("DELETE /api/movies/{ref}/crew/{id}", Wrap(rh.DeleteCrewMember, cfg))

	// Playback handles
	mux.HandleFunc("GET /api/handles/{ref}", ph.ServeHandle)
	mux.Handle("DELETE /api/handles/{ref}", Wrap(ph.ReleaseHandle, cfg))

	// Storage
	mux.Handle("GET /api/storage/estimate", Wrap(sh.Estimate, cfg))
	mux.Handle("GET /api/storage/videos", Wrap(sh.ListVideos, cfg))
	mux.Handle("GET /api/storage/reconcile", Wrap(sh.Reconcile, cfg))
	mux.Handle("POST /api/storage/cleanup", Wrap(sh.Cleanup, cfg))

	// Unknown API paths get a JSON 404 rather than the mux's text one.
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, dto.NotFound("endpoint"))
	})

	var h http.Handler = mux
	if limits != nil {
		h = ratelimit.Middleware(limits)(h)
	}
	return RequestContext(cfg.Geo, h)
}
