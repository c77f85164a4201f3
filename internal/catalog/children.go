// Per-movie child collections: trailers, images, live sessions and crew.

package catalog

import (
	"fmt"
	"slices"
)

// Record is implemented by child collection items.
type Record interface {
	RecordID() int64
}

// Trailers returns the trailers of a movie.
func (c *Catalog) Trailers(movieID int64) []Trailer {
	return load[Trailer](c.kv, TrailersKey(movieID))
}

// Trailer returns one trailer of a movie.
func (c *Catalog) Trailer(movieID, id int64) (*Trailer, error) {
	for _, t := range c.Trailers(movieID) {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%d: %w", id, ErrTrailerNotFound)
}

// PutTrailer inserts t, or replaces the trailer with the same ID in place.
// A zero ID is assigned a new one.
func (c *Catalog) PutTrailer(t *Trailer) error {
	if t.ID == 0 {
		t.ID = c.newID()
	}
	if err := t.Validate(); err != nil {
		return err
	}
	return put(c.kv, TrailersKey(t.MovieID), *t)
}

// RemoveTrailer deletes one trailer's metadata and returns it.
func (c *Catalog) RemoveTrailer(movieID, id int64) (*Trailer, error) {
	return remove[Trailer](c.kv, TrailersKey(movieID), id, ErrTrailerNotFound)
}

// Images returns the images of a movie.
func (c *Catalog) Images(movieID int64) []Image {
	return load[Image](c.kv, ChildKey(ImagesPrefix, movieID))
}

// PutImage inserts or replaces an image.
func (c *Catalog) PutImage(img *Image) error {
	if img.ID == 0 {
		img.ID = c.newID()
	}
	if img.Data == "" {
		return fmt.Errorf("%w: image data is required", ErrInvalid)
	}
	return put(c.kv, ChildKey(ImagesPrefix, img.MovieID), *img)
}

// RemoveImage deletes an image.
func (c *Catalog) RemoveImage(movieID, id int64) error {
	_, err := remove[Image](c.kv, ChildKey(ImagesPrefix, movieID), id, ErrRecordNotFound)
	return err
}

// LiveSessions returns the live sessions of a movie.
func (c *Catalog) LiveSessions(movieID int64) []LiveSession {
	return load[LiveSession](c.kv, ChildKey(LivePrefix, movieID))
}

// PutLiveSession inserts or replaces a live session.
func (c *Catalog) PutLiveSession(l *LiveSession) error {
	if l.ID == 0 {
		l.ID = c.newID()
	}
	if l.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	return put(c.kv, ChildKey(LivePrefix, l.MovieID), *l)
}

// RemoveLiveSession deletes a live session.
func (c *Catalog) RemoveLiveSession(movieID, id int64) error {
	_, err := remove[LiveSession](c.kv, ChildKey(LivePrefix, movieID), id, ErrRecordNotFound)
	return err
}

// Crew returns the crew of a movie.
func (c *Catalog) Crew(movieID int64) []CrewMember {
	return load[CrewMember](c.kv, ChildKey(CrewPrefix, movieID))
}

// PutCrewMember inserts or replaces a crew member.
func (c *Catalog) PutCrewMember(m *CrewMember) error {
	if m.ID == 0 {
		m.ID = c.newID()
	}
	if m.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	return put(c.kv, ChildKey(CrewPrefix, m.MovieID), *m)
}

// RemoveCrewMember deletes a crew member.
func (c *Catalog) RemoveCrewMember(movieID, id int64) error {
	_, err := remove[CrewMember](c.kv, ChildKey(CrewPrefix, movieID), id, ErrRecordNotFound)
	return err
}

func put[T Record](kv KV, key string, item T) error {
	items := load[T](kv, key)
	if i := slices.IndexFunc(items, func(v T) bool { return v.RecordID() == item.RecordID() }); i >= 0 {
		items[i] = item
	} else {
		items = append(items, item)
	}
	return save(kv, key, items)
}

func remove[T Record](kv KV, key string, id int64, notFound error) (*T, error) {
	items := load[T](kv, key)
	i := slices.IndexFunc(items, func(v T) bool { return v.RecordID() == id })
	if i < 0 {
		return nil, fmt.Errorf("%d: %w", id, notFound)
	}
	removed := items[i]
	items = slices.Delete(items, i, i+1)
	if err := save(kv, key, items); err != nil {
		return nil, err
	}
	return &removed, nil
}
