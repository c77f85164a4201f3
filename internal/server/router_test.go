package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/inshira2021/producerhub/internal/blobdb"
	"github.com/inshira2021/producerhub/internal/catalog"
	"github.com/inshira2021/producerhub/internal/metastore"
	"github.com/inshira2021/producerhub/internal/playback"
	"github.com/inshira2021/producerhub/internal/producer"
	"github.com/inshira2021/producerhub/internal/quota"
	"github.com/inshira2021/producerhub/internal/server/dto"
	"github.com/inshira2021/producerhub/internal/server/handlers"
	"github.com/inshira2021/producerhub/internal/server/ratelimit"
)

type testServer struct {
	t   *testing.T
	srv *httptest.Server
}

type serverOptions struct {
	blobQuota   int64
	maxBody     int64
	writePerMin int
}

func newTestServer(t *testing.T, o serverOptions) *testServer {
	t.Helper()
	dir := t.TempDir()
	meta, err := metastore.Open(filepath.Join(dir, "metadata.jsonl"), metastore.DefaultCapacity)
	if err != nil {
		t.Fatal(err)
	}
	mgr, err := blobdb.New(blobdb.Config{Dir: dir, QuotaBytes: o.blobQuota})
	if err != nil {
		t.Fatal(err)
	}
	reg, err := playback.NewRegistry(filepath.Join(dir, "handles"))
	if err != nil {
		t.Fatal(err)
	}
	acct := quota.New(meta, mgr, o.blobQuota, dir)
	svc := producer.New(catalog.New(meta), mgr, reg, acct, producer.Options{CascadeDelete: true, WarnPercent: 80})
	cfg := &handlers.Config{Version: "test", MaxRequestBodyBytes: o.maxBody, WarnPercent: 80}
	var limits *ratelimit.Config
	if o.writePerMin > 0 {
		limits = ratelimit.NewConfig(o.writePerMin)
	}
	ts := &testServer{t: t, srv: httptest.NewServer(NewRouter(&handlers.Services{Producer: svc}, cfg, limits))}
	t.Cleanup(func() {
		ts.srv.Close()
		if limits != nil {
			limits.Close()
		}
		if err := reg.Close(); err != nil {
			t.Error(err)
		}
	})
	return ts
}

// do sends a request and decodes a JSON response into out when out is not nil.
func (ts *testServer) do(method, path, contentType string, body io.Reader, out any) *http.Response {
	ts.t.Helper()
	req, err := http.NewRequestWithContext(ts.t.Context(), method, ts.srv.URL+path, body)
	if err != nil {
		ts.t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		ts.t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		ts.t.Fatal(err)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			ts.t.Fatalf("%s %s: %v: %s", method, path, err, data)
		}
	}
	return resp
}

func (ts *testServer) json(method, path string, in, out any) *http.Response {
	ts.t.Helper()
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			ts.t.Fatal(err)
		}
		body = bytes.NewReader(b)
	}
	return ts.do(method, path, "application/json", body, out)
}

func (ts *testServer) createMovie(title string) dto.MovieResponse {
	ts.t.Helper()
	var m dto.MovieResponse
	if resp := ts.json(http.MethodPost, "/api/movies", map[string]string{"title": title, "description": "d"}, &m); resp.StatusCode != http.StatusOK {
		ts.t.Fatalf("create movie: status %d", resp.StatusCode)
	}
	return m
}

func trailerForm(t *testing.T, title string, video []byte, fileName string) (string, io.Reader) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{"title": title, "description": "first look", "thumbnail": "data:image/png;base64,AA=="} {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if video != nil {
		fw, err := mw.CreateFormFile("video", fileName)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(video); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return mw.FormDataContentType(), &buf
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, serverOptions{})
	var h dto.HealthResponse
	resp := ts.json(http.MethodGet, "/api/health", nil, &h)
	if resp.StatusCode != http.StatusOK || h.Status != "ok" || h.Version != "test" {
		t.Errorf("health = %d %+v", resp.StatusCode, h)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID missing")
	}
}

func TestMovies(t *testing.T) {
	ts := newTestServer(t, serverOptions{})
	m := ts.createMovie("Night Train")
	if m.Slug != "night-train" {
		t.Errorf("slug = %q", m.Slug)
	}

	var bySlug, byID dto.MovieResponse
	ts.json(http.MethodGet, "/api/movies/night-train", nil, &bySlug)
	ts.json(http.MethodGet, "/api/movies/"+m.ID, nil, &byID)
	if bySlug != byID || bySlug != m {
		t.Errorf("by slug %+v, by id %+v, created %+v", bySlug, byID, m)
	}

	ts.createMovie("Day Bus")
	var list dto.ListMoviesResponse
	ts.json(http.MethodGet, "/api/movies?q=train", nil, &list)
	if len(list.Movies) != 1 || list.Movies[0].ID != m.ID {
		t.Errorf("search = %+v", list.Movies)
	}

	var updated dto.MovieResponse
	ts.json(http.MethodPut, "/api/movies/"+m.ID, map[string]string{"title": "Night Train", "description": "new"}, &updated)
	if updated.Description != "new" || updated.ID != m.ID {
		t.Errorf("update = %+v", updated)
	}

	list = dto.ListMoviesResponse{}
	ts.json(http.MethodGet, "/api/movies?q=NEW", nil, &list)
	if len(list.Movies) != 1 || list.Movies[0].ID != m.ID {
		t.Errorf("search by description = %+v", list.Movies)
	}

	t.Run("MissingTitle", func(t *testing.T) {
		var e dto.ErrorResponse
		resp := ts.json(http.MethodPost, "/api/movies", map[string]string{"description": "d"}, &e)
		if resp.StatusCode != http.StatusBadRequest || e.Error.Code != dto.ErrorCodeMissingField {
			t.Errorf("got %d %+v", resp.StatusCode, e)
		}
	})
	t.Run("UnknownField", func(t *testing.T) {
		var e dto.ErrorResponse
		resp := ts.json(http.MethodPost, "/api/movies", map[string]string{"title": "x", "budget": "1"}, &e)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("got %d %+v", resp.StatusCode, e)
		}
	})
	t.Run("NotFound", func(t *testing.T) {
		var e dto.ErrorResponse
		resp := ts.json(http.MethodGet, "/api/movies/no-such-movie", nil, &e)
		if resp.StatusCode != http.StatusNotFound || e.Error.Message != "movie not found" {
			t.Errorf("got %d %+v", resp.StatusCode, e)
		}
	})
}

func TestTrailerVideoLifecycle(t *testing.T) {
	ts := newTestServer(t, serverOptions{})
	m := ts.createMovie("Night Train")
	video := bytes.Repeat([]byte("frame"), 1000)

	ctype, body := trailerForm(t, "Teaser", video, "teaser.mp4")
	var tr dto.TrailerResponse
	if resp := ts.do(http.MethodPost, "/api/movies/night-train/trailers", ctype, body, &tr); resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload: status %d", resp.StatusCode)
	}
	if tr.VideoFileName != "teaser.mp4" || tr.MovieID != m.ID {
		t.Fatalf("trailer = %+v", tr)
	}

	var ids dto.ListVideosResponse
	ts.json(http.MethodGet, "/api/storage/videos", nil, &ids)
	if len(ids.IDs) != 1 || ids.IDs[0] != tr.ID {
		t.Errorf("videos = %v, want [%s]", ids.IDs, tr.ID)
	}

	var v dto.VideoHandleResponse
	if resp := ts.json(http.MethodGet, "/api/movies/night-train/trailers/"+tr.ID+"/video", nil, &v); resp.StatusCode != http.StatusOK {
		t.Fatalf("video: status %d", resp.StatusCode)
	}
	if v.Size != int64(len(video)) || v.FileName != "teaser.mp4" || !strings.HasPrefix(v.URL, "blob:sha256:") {
		t.Errorf("handle = %+v", v)
	}
	if _, err := time.Parse(time.RFC3339, v.SavedAt); err != nil {
		t.Errorf("savedAt = %q: %v", v.SavedAt, err)
	}

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, ts.srv.URL+v.StreamURL, http.NoBody)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Range", "bytes=5-9")
	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent || string(got) != "frame" {
		t.Errorf("range = %d %q", resp.StatusCode, got)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("Content-Type = %q", ct)
	}

	var ok dto.OKResponse
	ts.json(http.MethodDelete, v.StreamURL, nil, &ok)
	if !ok.OK {
		t.Error("release failed")
	}
	if resp := ts.do(http.MethodGet, v.StreamURL, "", http.NoBody, nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("released handle: status %d", resp.StatusCode)
	}

	// Editing without a video keeps the stored one.
	ctype, body = trailerForm(t, "Teaser 2", nil, "")
	var edited dto.TrailerResponse
	ts.do(http.MethodPut, "/api/movies/night-train/trailers/"+tr.ID, ctype, body, &edited)
	if edited.ID != tr.ID || edited.Title != "Teaser 2" || edited.VideoFileName != "teaser.mp4" {
		t.Errorf("edit = %+v", edited)
	}

	var del dto.DeleteTrailerResponse
	ts.json(http.MethodDelete, "/api/movies/night-train/trailers/"+tr.ID, nil, &del)
	if del.ID != tr.ID || del.Warning != "" {
		t.Errorf("delete = %+v", del)
	}
	ts.json(http.MethodGet, "/api/storage/videos", nil, &ids)
	if len(ids.IDs) != 0 {
		t.Errorf("videos after delete = %v", ids.IDs)
	}
	var e dto.ErrorResponse
	if resp := ts.json(http.MethodGet, "/api/movies/night-train/trailers/"+tr.ID+"/video", nil, &e); resp.StatusCode != http.StatusNotFound {
		t.Errorf("video after delete: status %d", resp.StatusCode)
	}
}

func TestTrailerWithoutVideo(t *testing.T) {
	ts := newTestServer(t, serverOptions{})
	ts.createMovie("Night Train")
	ctype, body := trailerForm(t, "Teaser", nil, "")
	var tr dto.TrailerResponse
	ts.do(http.MethodPost, "/api/movies/night-train/trailers", ctype, body, &tr)
	var e dto.ErrorResponse
	resp := ts.json(http.MethodGet, "/api/movies/night-train/trailers/"+tr.ID+"/video", nil, &e)
	if resp.StatusCode != http.StatusNotFound || e.Error.Message != "video not found" {
		t.Errorf("got %d %+v", resp.StatusCode, e)
	}
}

func TestCapacityExceeded(t *testing.T) {
	ts := newTestServer(t, serverOptions{blobQuota: 512 << 10})
	ts.createMovie("Night Train")
	ctype, body := trailerForm(t, "Teaser", make([]byte, 600<<10), "big.mp4")
	var e dto.ErrorResponse
	resp := ts.do(http.MethodPost, "/api/movies/night-train/trailers", ctype, body, &e)
	if resp.StatusCode != http.StatusInsufficientStorage || e.Error.Code != dto.ErrorCodeCapacityExceeded {
		t.Fatalf("got %d %+v", resp.StatusCode, e)
	}
	if !strings.Contains(e.Error.Message, "smaller video file") {
		t.Errorf("message = %q", e.Error.Message)
	}
	var list dto.ListTrailersResponse
	ts.json(http.MethodGet, "/api/movies/night-train/trailers", nil, &list)
	if len(list.Trailers) != 0 {
		t.Errorf("trailer saved despite failed video: %+v", list.Trailers)
	}

	var est dto.EstimateResponse
	ts.json(http.MethodGet, "/api/storage/estimate", nil, &est)
	if !est.Known || est.QuotaBytes != 512<<10 {
		t.Errorf("estimate = %+v", est)
	}
}

func TestPayloadTooLarge(t *testing.T) {
	ts := newTestServer(t, serverOptions{maxBody: 1024})
	ts.createMovie("Night Train")
	ctype, body := trailerForm(t, "Teaser", make([]byte, 4096), "big.mp4")
	var e dto.ErrorResponse
	resp := ts.do(http.MethodPost, "/api/movies/night-train/trailers", ctype, body, &e)
	if resp.StatusCode != http.StatusRequestEntityTooLarge || e.Error.Code != dto.ErrorCodePayloadTooLarge {
		t.Errorf("got %d %+v", resp.StatusCode, e)
	}
}

func TestCollections(t *testing.T) {
	ts := newTestServer(t, serverOptions{})
	ts.createMovie("Night Train")

	var img dto.ImageResponse
	ts.json(http.MethodPost, "/api/movies/night-train/images", map[string]string{"title": "poster", "data": "data:image/png;base64,AA=="}, &img)
	var crew dto.CrewMemberResponse
	ts.json(http.MethodPost, "/api/movies/night-train/crew", map[string]string{"name": "Ada", "role": "director"}, &crew)
	var live dto.LiveSessionResponse
	ts.json(http.MethodPost, "/api/movies/night-train/live", map[string]any{"title": "Premiere", "startsAt": 1700000000}, &live)

	var images dto.ListImagesResponse
	ts.json(http.MethodGet, "/api/movies/night-train/images", nil, &images)
	if len(images.Images) != 1 || images.Images[0] != img {
		t.Errorf("images = %+v", images.Images)
	}
	var crewList dto.ListCrewResponse
	ts.json(http.MethodGet, "/api/movies/night-train/crew", nil, &crewList)
	if len(crewList.Crew) != 1 || crewList.Crew[0].Name != "Ada" {
		t.Errorf("crew = %+v", crewList.Crew)
	}
	var sessions dto.ListLiveSessionsResponse
	ts.json(http.MethodGet, "/api/movies/night-train/live", nil, &sessions)
	if len(sessions.Sessions) != 1 || sessions.Sessions[0].StartsAt != 1700000000 {
		t.Errorf("sessions = %+v", sessions.Sessions)
	}

	var ok dto.OKResponse
	ts.json(http.MethodDelete, "/api/movies/night-train/images/"+img.ID, nil, &ok)
	ts.json(http.MethodGet, "/api/movies/night-train/images", nil, &images)
	if !ok.OK || len(images.Images) != 0 {
		t.Errorf("images after delete = %+v", images.Images)
	}

	var e dto.ErrorResponse
	if resp := ts.json(http.MethodPost, "/api/movies/night-train/images", map[string]string{"data": "not a uri"}, &e); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad image data: status %d", resp.StatusCode)
	}
	if resp := ts.json(http.MethodDelete, "/api/movies/night-train/crew/abc", nil, &e); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad id: status %d", resp.StatusCode)
	}
	if resp := ts.json(http.MethodDelete, "/api/movies/night-train/crew/42", nil, &e); resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing crew member: status %d", resp.StatusCode)
	}
}

func TestDeleteMovieCascades(t *testing.T) {
	ts := newTestServer(t, serverOptions{})
	ts.createMovie("Night Train")
	ctype, body := trailerForm(t, "Teaser", []byte("video"), "teaser.mp4")
	var tr dto.TrailerResponse
	ts.do(http.MethodPost, "/api/movies/night-train/trailers", ctype, body, &tr)

	var del dto.DeleteMovieResponse
	ts.json(http.MethodDelete, "/api/movies/night-train", nil, &del)
	if !del.Cascaded || len(del.VideosDeleted) != 1 || del.VideosDeleted[0] != tr.ID {
		t.Errorf("delete = %+v", del)
	}
	var rep dto.ReconcileResponse
	ts.json(http.MethodGet, "/api/storage/reconcile", nil, &rep)
	if len(rep.OrphanBlobs) != 0 || len(rep.MissingBlobs) != 0 || len(rep.OrphanCollections) != 0 {
		t.Errorf("reconcile = %+v", rep)
	}
	var cleaned dto.ReconcileResponse
	if resp := ts.json(http.MethodPost, "/api/storage/cleanup", nil, &cleaned); resp.StatusCode != http.StatusOK {
		t.Errorf("cleanup: status %d", resp.StatusCode)
	}
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, serverOptions{writePerMin: 6})
	ts.createMovie("Night Train")
	var e dto.ErrorResponse
	resp := ts.json(http.MethodPost, "/api/movies", map[string]string{"title": "Day Bus"}, &e)
	if resp.StatusCode != http.StatusTooManyRequests || e.Error.Code != dto.ErrorCodeRateLimitExceeded {
		t.Errorf("got %d %+v", resp.StatusCode, e)
	}
	// Reads use a separate tier.
	if resp := ts.json(http.MethodGet, "/api/movies", nil, nil); resp.StatusCode != http.StatusOK {
		t.Errorf("read: status %d", resp.StatusCode)
	}
}

func TestUnknownEndpoint(t *testing.T) {
	ts := newTestServer(t, serverOptions{})
	var e dto.ErrorResponse
	if resp := ts.json(http.MethodGet, "/api/nope", nil, &e); resp.StatusCode != http.StatusNotFound || e.Error.Code != dto.ErrorCodeNotFound {
		t.Errorf("got %d %+v", resp.StatusCode, e)
	}
}
