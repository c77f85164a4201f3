package dto

import (
	"strconv"
	"strings"
)

// Validatable is implemented by request types that can validate their fields.
// The Wrap function in handler_wrapper.go uses this interface as a type
// constraint to ensure all request types provide validation.
type Validatable interface {
	Validate() error
}

// ParseID parses a decimal record ID.
func ParseID(field, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, BadRequest("invalid " + field).WithDetail("field", field)
	}
	return id, nil
}

// --- Health ---

// HealthRequest is a request to check server health.
type HealthRequest struct{}

// Validate is a no-op for HealthRequest.
func (r *HealthRequest) Validate() error {
	return nil
}

// --- Movies ---

// ListMoviesRequest lists movies, optionally filtered by a search query.
type ListMoviesRequest struct {
	Query string `query:"q"`
}

// Validate is a no-op for ListMoviesRequest.
func (r *ListMoviesRequest) Validate() error {
	return nil
}

// MovieRefRequest addresses one movie by slug or ID.
type MovieRefRequest struct {
	Ref string `path:"ref"`
}

// Validate validates the movie reference.
func (r *MovieRefRequest) Validate() error {
	if r.Ref == "" {
		return MissingField("ref")
	}
	return nil
}

// MovieFields holds the editable fields of a movie.
type MovieFields struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	IMDbID      string `json:"imdbId,omitempty"`
	MainImage   string `json:"mainImage,omitempty"`
	BannerImage string `json:"bannerImage,omitempty"`
}

func (f *MovieFields) validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return MissingField("title")
	}
	return nil
}

// CreateMovieRequest creates a movie.
type CreateMovieRequest struct {
	MovieFields
}

// Validate validates the create movie request fields.
func (r *CreateMovieRequest) Validate() error {
	return r.validate()
}

// UpdateMovieRequest replaces the editable fields of a movie.
type UpdateMovieRequest struct {
	Ref string `path:"ref" json:"-"`
	MovieFields
}

// Validate validates the update movie request fields.
func (r *UpdateMovieRequest) Validate() error {
	if r.Ref == "" {
		return MissingField("ref")
	}
	return r.validate()
}

// --- Per-movie records ---

// RecordRequest addresses one record of a movie's collection.
type RecordRequest struct {
	Ref string `path:"ref"`
	ID  string `path:"id"`
}

// Validate validates the record address.
func (r *RecordRequest) Validate() error {
	if r.Ref == "" {
		return MissingField("ref")
	}
	_, err := ParseID("id", r.ID)
	return err
}

// RecordID returns the parsed record ID. Call after Validate.
func (r *RecordRequest) RecordID() int64 {
	id, _ := strconv.ParseInt(r.ID, 10, 64)
	return id
}

// CreateImageRequest adds an image to a movie.
type CreateImageRequest struct {
	Ref   string `path:"ref" json:"-"`
	Title string `json:"title"`
	Data  string `json:"data"`
}

// Validate validates the create image request fields.
func (r *CreateImageRequest) Validate() error {
	if r.Ref == "" {
		return MissingField("ref")
	}
	if r.Data == "" {
		return MissingField("data")
	}
	return nil
}

// CreateLiveSessionRequest schedules a live session for a movie.
type CreateLiveSessionRequest struct {
	Ref      string `path:"ref" json:"-"`
	Title    string `json:"title"`
	StartsAt int64  `json:"startsAt"`
	URL      string `json:"url"`
}

// Validate validates the create live session request fields.
func (r *CreateLiveSessionRequest) Validate() error {
	if r.Ref == "" {
		return MissingField("ref")
	}
	if strings.TrimSpace(r.Title) == "" {
		return MissingField("title")
	}
	return nil
}

// CreateCrewMemberRequest credits a person on a movie.
type CreateCrewMemberRequest struct {
	Ref  string `path:"ref" json:"-"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Validate validates the create crew member request fields.
func (r *CreateCrewMemberRequest) Validate() error {
	if r.Ref == "" {
		return MissingField("ref")
	}
	if strings.TrimSpace(r.Name) == "" {
		return MissingField("name")
	}
	return nil
}

// --- Playback handles ---

// HandleRequest addresses a playback handle.
type HandleRequest struct {
	Ref string `path:"ref"`
}

// Validate validates the handle reference.
func (r *HandleRequest) Validate() error {
	if r.Ref == "" {
		return MissingField("ref")
	}
	return nil
}

// --- Storage ---

// StorageRequest is a request without parameters on the storage endpoints.
type StorageRequest struct{}

// Validate is a no-op for StorageRequest.
func (r *StorageRequest) Validate() error {
	return nil
}
