package catalog

import (
	"strconv"
	"strings"
)

// MoviesKey holds the whole movie collection.
const MoviesKey = "movies"

// Per-movie child collection prefixes. The full key is prefix + "_" + movie ID.
const (
	TrailersPrefix = "trailers"
	ImagesPrefix   = "images"
	LivePrefix     = "live"
	CrewPrefix     = "crew"
)

var childPrefixes = []string{TrailersPrefix, ImagesPrefix, LivePrefix, CrewPrefix}

// ChildKey returns the metadata key of a per-movie collection.
func ChildKey(prefix string, movieID int64) string {
	return prefix + "_" + strconv.FormatInt(movieID, 10)
}

// TrailersKey returns the key of a movie's trailer collection.
func TrailersKey(movieID int64) string { return ChildKey(TrailersPrefix, movieID) }

// ParseChildKey splits a per-movie key into its prefix and movie ID.
func ParseChildKey(key string) (prefix string, movieID int64, ok bool) {
	prefix, id, found := strings.Cut(key, "_")
	if !found {
		return "", 0, false
	}
	movieID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return "", 0, false
	}
	for _, p := range childPrefixes {
		if p == prefix {
			return prefix, movieID, true
		}
	}
	return "", 0, false
}

// Slugify derives a URL slug from a title: lowercase, every run of characters
// outside [a-z0-9] becomes one hyphen, and leading/trailing hyphens are dropped.
func Slugify(title string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}
