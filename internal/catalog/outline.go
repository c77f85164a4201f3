// Renders a human readable outline of the catalog.

package catalog

import (
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Outline is a summary of the catalog without embedded image data.
type Outline struct {
	Movies []MovieOutline `yaml:"movies"`
}

// MovieOutline summarizes one movie and its collections.
type MovieOutline struct {
	ID       int64            `yaml:"id"`
	Slug     string           `yaml:"slug"`
	Title    string           `yaml:"title"`
	IMDbID   string           `yaml:"imdb_id,omitempty"`
	Trailers []TrailerOutline `yaml:"trailers,omitempty"`
	Images   int              `yaml:"images,omitempty"`
	Live     []LiveOutline    `yaml:"live,omitempty"`
	Crew     []CrewOutline    `yaml:"crew,omitempty"`
}

// TrailerOutline summarizes a trailer.
type TrailerOutline struct {
	ID    int64  `yaml:"id"`
	Title string `yaml:"title"`
	Video string `yaml:"video,omitempty"`
}

// LiveOutline summarizes a live session.
type LiveOutline struct {
	Title    string `yaml:"title"`
	StartsAt string `yaml:"starts_at,omitempty"` // RFC3339, UTC
	URL      string `yaml:"url,omitempty"`
}

// CrewOutline summarizes a crew member.
type CrewOutline struct {
	Name string `yaml:"name"`
	Role string `yaml:"role,omitempty"`
}

// Outline returns a summary of every movie in the catalog.
func (c *Catalog) Outline() *Outline {
	o := &Outline{Movies: []MovieOutline{}}
	for _, m := range c.Movies() {
		mo := MovieOutline{
			ID:     m.ID,
			Slug:   m.Slug,
			Title:  m.Title,
			IMDbID: m.IMDbID,
			Images: len(c.Images(m.ID)),
		}
		for _, t := range c.Trailers(m.ID) {
			mo.Trailers = append(mo.Trailers, TrailerOutline{ID: t.ID, Title: t.Title, Video: t.VideoFileName})
		}
		for _, l := range c.LiveSessions(m.ID) {
			lo := LiveOutline{Title: l.Title, URL: l.URL}
			if l.StartsAt != 0 {
				lo.StartsAt = time.Unix(l.StartsAt, 0).UTC().Format(time.RFC3339)
			}
			mo.Live = append(mo.Live, lo)
		}
		for _, cm := range c.Crew(m.ID) {
			mo.Crew = append(mo.Crew, CrewOutline{Name: cm.Name, Role: cm.Role})
		}
		o.Movies = append(o.Movies, mo)
	}
	return o
}

// WriteYAML encodes the outline as YAML.
func (o *Outline) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(o); err != nil {
		return err
	}
	return enc.Close()
}
