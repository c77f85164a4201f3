// Package catalog maps movies and their per-movie collections onto a string
// key/value store.
//
// The movie collection lives under [MoviesKey]. Children of a movie are
// partitioned under keys derived from the movie ID (see [ChildKey]), so loading
// them requires knowing the parent first. A movie is addressable by slug or by
// numeric ID; [Catalog.ResolveMovie] treats both as the same record.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/maruel/ksid"
)

var (
	// ErrInvalid is wrapped by validation failures.
	ErrInvalid = errors.New("invalid record")
	// ErrMovieNotFound is returned when a movie reference resolves to nothing.
	ErrMovieNotFound = errors.New("movie not found")
	// ErrTrailerNotFound is returned when a trailer ID is not in its movie's collection.
	ErrTrailerNotFound = errors.New("trailer not found")
	// ErrRecordNotFound is returned for missing images, live sessions and crew members.
	ErrRecordNotFound = errors.New("record not found")
)

// KV is the metadata store the catalog persists to.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
	Keys() []string
}

// Catalog reads and writes movie metadata.
//
// Every mutation is a read-modify-write of one whole collection; there is no
// locking across calls.
type Catalog struct {
	kv    KV
	newID func() int64
}

// New returns a Catalog over kv.
func New(kv KV) *Catalog {
	return &Catalog{kv: kv, newID: NewID}
}

// NewID returns a new creation-time derived, unique record ID.
func NewID() int64 {
	return int64(ksid.NewID()) //nolint:gosec // G115: ksid IDs are positive 63-bit values
}

// AllocateID returns a fresh record ID, for callers that need the ID before
// the record is stored.
func (c *Catalog) AllocateID() int64 {
	return c.newID()
}

// Movies returns all movies in insertion order.
func (c *Catalog) Movies() []Movie {
	return load[Movie](c.kv, MoviesKey)
}

// SearchMovies returns the movies whose title or description contains query,
// case-insensitively. An empty query returns all movies.
func (c *Catalog) SearchMovies(query string) []Movie {
	movies := c.Movies()
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return movies
	}
	return slices.DeleteFunc(movies, func(m Movie) bool {
		return !strings.Contains(strings.ToLower(m.Title), q) && !strings.Contains(strings.ToLower(m.Description), q)
	})
}

// ResolveMovie finds a movie by slug first, then by numeric ID.
func (c *Catalog) ResolveMovie(ref string) (*Movie, error) {
	movies := c.Movies()
	for i := range movies {
		if movies[i].Slug == ref {
			return &movies[i], nil
		}
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if m := findMovie(movies, id); m != nil {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", ref, ErrMovieNotFound)
}

// Movie returns the movie with the given ID.
func (c *Catalog) Movie(id int64) (*Movie, error) {
	if m := findMovie(c.Movies(), id); m != nil {
		return m, nil
	}
	return nil, fmt.Errorf("%d: %w", id, ErrMovieNotFound)
}

// CreateMovie adds a new movie.
func (c *Catalog) CreateMovie(in *MovieInput) (*Movie, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	m := Movie{ID: c.newID()}
	m.apply(in)
	movies := append(c.Movies(), m)
	if err := save(c.kv, MoviesKey, movies); err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMovie replaces the editable fields of a movie. The slug follows the title.
func (c *Catalog) UpdateMovie(id int64, in *MovieInput) (*Movie, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	movies := c.Movies()
	i := slices.IndexFunc(movies, func(m Movie) bool { return m.ID == id })
	if i < 0 {
		return nil, fmt.Errorf("%d: %w", id, ErrMovieNotFound)
	}
	movies[i].apply(in)
	if err := save(c.kv, MoviesKey, movies); err != nil {
		return nil, err
	}
	m := movies[i]
	return &m, nil
}

// DeleteMovie removes the movie record only. Child collections are left in
// place; see [Catalog.DropChildren].
func (c *Catalog) DeleteMovie(id int64) error {
	movies := c.Movies()
	n := len(movies)
	movies = slices.DeleteFunc(movies, func(m Movie) bool { return m.ID == id })
	if len(movies) == n {
		return fmt.Errorf("%d: %w", id, ErrMovieNotFound)
	}
	return save(c.kv, MoviesKey, movies)
}

// DropChildren removes every per-movie collection of movieID.
func (c *Catalog) DropChildren(movieID int64) error {
	var errs []error
	for _, p := range childPrefixes {
		if err := c.kv.Remove(ChildKey(p, movieID)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ChildKeys returns every per-movie collection key present in the store.
func (c *Catalog) ChildKeys() []string {
	var keys []string
	for _, k := range c.kv.Keys() {
		if _, _, ok := ParseChildKey(k); ok {
			keys = append(keys, k)
		}
	}
	return keys
}

func (m *Movie) apply(in *MovieInput) {
	m.Title = in.Title
	m.Slug = Slugify(in.Title)
	m.Description = in.Description
	m.IMDbID = in.IMDbID
	m.MainImage = in.MainImage
	m.BannerImage = in.BannerImage
}

func findMovie(movies []Movie, id int64) *Movie {
	for i := range movies {
		if movies[i].ID == id {
			return &movies[i]
		}
	}
	return nil
}

// load decodes the JSON array stored under key. A missing key is an empty
// collection. So is a corrupted one: the failure is logged and the caller
// keeps working with what remains readable.
func load[T any](kv KV, key string) []T {
	raw, ok := kv.Get(key)
	if !ok || raw == "" {
		return []T{}
	}
	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		slog.Warn("Corrupted collection, treating as empty", "key", key, "err", err)
		return []T{}
	}
	if items == nil {
		return []T{}
	}
	return items
}

func save[T any](kv KV, key string, items []T) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := kv.Set(key, string(data)); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}
