// Defines rate limit tiers and routing rules.

package ratelimit

import (
	"net/http"
	"strings"
	"time"
)

// Tier is a named rate limit applied per client IP.
type Tier struct {
	Name    string
	Limiter *Limiter
}

// Config holds the limiters of each tier. A nil tier is not limited.
type Config struct {
	Write *Tier
	Read  *Tier
}

// NewConfig returns the API tiers. Writes allow writePerMin requests per
// minute per client with a burst of a sixth of that; writePerMin <= 0
// disables write limiting. Reads allow 6,000 per minute.
func NewConfig(writePerMin int) *Config {
	c := &Config{
		Read: &Tier{Name: "read", Limiter: NewLimiter(6000, time.Minute, 1000)},
	}
	if writePerMin > 0 {
		c.Write = &Tier{Name: "write", Limiter: NewLimiter(writePerMin, time.Minute, max(writePerMin/6, 1))}
	}
	return c
}

// Match returns the tier for a request, or nil for paths that are not rate
// limited.
func (c *Config) Match(method, path string) *Tier {
	if !strings.HasPrefix(path, "/api/") || path == "/api/health" {
		return nil
	}
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return c.Write
	case http.MethodGet, http.MethodHead:
		return c.Read
	}
	return nil
}

// Close stops all limiter cleanup goroutines.
func (c *Config) Close() {
	for _, t := range []*Tier{c.Write, c.Read} {
		if t != nil {
			t.Limiter.Close()
		}
	}
}
