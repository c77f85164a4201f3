// Defines shared service dependencies for handlers.

// Package handlers implements the HTTP handlers of the producer API.
package handlers

import (
	"github.com/inshira2021/producerhub/internal/catalog"
	"github.com/inshira2021/producerhub/internal/producer"
	"github.com/inshira2021/producerhub/internal/server/ipgeo"
)

// Services holds all service dependencies for handlers.
type Services struct {
	Producer *producer.Service
}

// Config holds configuration values needed by handlers.
type Config struct {
	Version             string
	MaxRequestBodyBytes int64
	// WarnPercent is the usage at which estimates are flagged as near capacity.
	WarnPercent float64
	// Geo tags access logs with the client country. May be nil.
	Geo *ipgeo.Checker
}

// resolveMovie returns the movie addressed by slug or ID.
func (s *Services) resolveMovie(ref string) (*catalog.Movie, error) {
	return s.Producer.Catalog().ResolveMovie(ref)
}
