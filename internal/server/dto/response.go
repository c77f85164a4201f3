package dto

// HealthResponse reports server health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// MovieResponse is a movie.
type MovieResponse struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	IMDbID      string `json:"imdbId,omitempty"`
	MainImage   string `json:"mainImage,omitempty"`
	BannerImage string `json:"bannerImage,omitempty"`
}

// ListMoviesResponse lists movies.
type ListMoviesResponse struct {
	Movies []MovieResponse `json:"movies"`
}

// DeleteMovieResponse reports a movie deletion.
type DeleteMovieResponse struct {
	ID            string   `json:"id"`
	Cascaded      bool     `json:"cascaded"`
	VideosDeleted []string `json:"videosDeleted"`
	Warning       string   `json:"warning,omitempty"`
}

// TrailerResponse is the metadata of a trailer.
type TrailerResponse struct {
	ID            string `json:"id"`
	MovieID       string `json:"movieId"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Thumbnail     string `json:"thumbnail"`
	VideoFileName string `json:"videoFileName"`
}

// ListTrailersResponse lists a movie's trailers.
type ListTrailersResponse struct {
	Trailers []TrailerResponse `json:"trailers"`
}

// DeleteTrailerResponse reports a trailer deletion.
type DeleteTrailerResponse struct {
	ID string `json:"id"`
	// Warning is set when the metadata is gone but the video was not removed.
	Warning string `json:"warning,omitempty"`
}

// ImageResponse is an image attached to a movie.
type ImageResponse struct {
	ID      string `json:"id"`
	MovieID string `json:"movieId"`
	Title   string `json:"title"`
	Data    string `json:"data"`
}

// ListImagesResponse lists a movie's images.
type ListImagesResponse struct {
	Images []ImageResponse `json:"images"`
}

// LiveSessionResponse is a scheduled live session.
type LiveSessionResponse struct {
	ID       string `json:"id"`
	MovieID  string `json:"movieId"`
	Title    string `json:"title"`
	StartsAt int64  `json:"startsAt"`
	URL      string `json:"url"`
}

// ListLiveSessionsResponse lists a movie's live sessions.
type ListLiveSessionsResponse struct {
	Sessions []LiveSessionResponse `json:"sessions"`
}

// CrewMemberResponse is a credited person.
type CrewMemberResponse struct {
	ID      string `json:"id"`
	MovieID string `json:"movieId"`
	Name    string `json:"name"`
	Role    string `json:"role"`
}

// ListCrewResponse lists a movie's crew.
type ListCrewResponse struct {
	Crew []CrewMemberResponse `json:"crew"`
}

// VideoHandleResponse is a playable video handle.
type VideoHandleResponse struct {
	TrailerID string `json:"trailerId"`
	Ref       string `json:"ref"`
	URL       string `json:"url"`
	// StreamURL is the HTTP path serving the handle content.
	StreamURL string `json:"streamUrl"`
	FileName  string `json:"fileName"`
	Size      int64  `json:"size"`
	SavedAt   string `json:"savedAt"` // RFC3339
}

// OKResponse acknowledges a request without payload.
type OKResponse struct {
	OK bool `json:"ok"`
}

// EstimateResponse reports storage usage. Estimate fields are omitted when
// usage cannot be determined.
type EstimateResponse struct {
	Known        bool    `json:"known"`
	UsedBytes    int64   `json:"usedBytes,omitempty"`
	QuotaBytes   int64   `json:"quotaBytes,omitempty"`
	UsedMB       float64 `json:"usedMB,omitempty"`
	QuotaMB      float64 `json:"quotaMB,omitempty"`
	PercentUsed  float64 `json:"percentUsed,omitempty"`
	NearCapacity bool    `json:"nearCapacity,omitempty"`
}

// ListVideosResponse lists the IDs of stored videos.
type ListVideosResponse struct {
	IDs []string `json:"ids"`
}

// TrailerRefResponse identifies a trailer within its movie.
type TrailerRefResponse struct {
	MovieID   string `json:"movieId"`
	TrailerID string `json:"trailerId"`
}

// ReconcileResponse reports inconsistencies between the stores.
type ReconcileResponse struct {
	OrphanBlobs       []string             `json:"orphanBlobs"`
	MissingBlobs      []TrailerRefResponse `json:"missingBlobs"`
	OrphanCollections []string             `json:"orphanCollections"`
	Warning           string               `json:"warning,omitempty"`
}
