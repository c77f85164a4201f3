// Defines the records stored in the metadata store.

package catalog

import (
	"fmt"
	"strings"
)

// Movie is a production entry. It is addressable by Slug or ID.
type Movie struct {
	ID          int64  `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	IMDbID      string `json:"imdbId,omitempty"`
	MainImage   string `json:"mainImage,omitempty"`   // data URI
	BannerImage string `json:"bannerImage,omitempty"` // data URI
}

// MovieInput holds the editable fields of a Movie.
type MovieInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	IMDbID      string `json:"imdbId,omitempty"`
	MainImage   string `json:"mainImage,omitempty"`
	BannerImage string `json:"bannerImage,omitempty"`
}

// Validate checks that the required fields are set.
func (in *MovieInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if Slugify(in.Title) == "" {
		return fmt.Errorf("%w: title must contain at least one letter or digit", ErrInvalid)
	}
	return nil
}

// Trailer is the metadata half of a trailer. The video lives in the blob
// store under the same ID.
//
// VideoFileName is a display hint only: it may be set while no blob exists.
type Trailer struct {
	ID            int64  `json:"id"`
	MovieID       int64  `json:"movieId"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Thumbnail     string `json:"thumbnail"` // data URI
	VideoFileName string `json:"videoFileName"`
}

// RecordID implements Record.
func (t Trailer) RecordID() int64 { return t.ID }

// Validate checks that the required fields are set.
func (t *Trailer) Validate() error {
	switch {
	case t.MovieID == 0:
		return fmt.Errorf("%w: movie id is required", ErrInvalid)
	case strings.TrimSpace(t.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalid)
	case strings.TrimSpace(t.Description) == "":
		return fmt.Errorf("%w: description is required", ErrInvalid)
	case t.Thumbnail == "":
		return fmt.Errorf("%w: thumbnail is required", ErrInvalid)
	}
	return nil
}

// Image is a still attached to a movie, embedded as a data URI.
type Image struct {
	ID      int64  `json:"id"`
	MovieID int64  `json:"movieId"`
	Title   string `json:"title"`
	Data    string `json:"data"`
}

// RecordID implements Record.
func (i Image) RecordID() int64 { return i.ID }

// LiveSession is a scheduled live stream for a movie.
type LiveSession struct {
	ID       int64  `json:"id"`
	MovieID  int64  `json:"movieId"`
	Title    string `json:"title"`
	StartsAt int64  `json:"startsAt"` // unix seconds
	URL      string `json:"url"`
}

// RecordID implements Record.
func (l LiveSession) RecordID() int64 { return l.ID }

// CrewMember is a person credited on a movie.
type CrewMember struct {
	ID      int64  `json:"id"`
	MovieID int64  `json:"movieId"`
	Name    string `json:"name"`
	Role    string `json:"role"`
}

// RecordID implements Record.
func (c CrewMember) RecordID() int64 { return c.ID }
