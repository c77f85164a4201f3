// Defines request context keys and helper functions for metadata access.

// Package reqctx provides request context utilities for passing request metadata.
package reqctx

import (
	"context"
	"net/http"
	"strings"

	"github.com/maruel/ksid"
)

// GetClientIP extracts the client IP from an HTTP request,
// checking X-Forwarded-For and X-Real-IP headers for proxied requests.
func GetClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs: "client, proxy1, proxy2".
	// The leftmost IP is the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	addr := r.RemoteAddr
	// [::1]:8080
	if strings.HasPrefix(addr, "[") {
		if host, _, found := strings.Cut(addr, "]:"); found {
			return host[1:]
		}
		return strings.Trim(addr, "[]")
	}
	if host, _, found := strings.Cut(addr, ":"); found {
		return host
	}
	return addr
}

type contextKey string

const (
	keyClientIP  contextKey = "clientIP"
	keyUserAgent contextKey = "userAgent"
	keyRequestID contextKey = "requestID"
	keyCountry   contextKey = "countryCode"
)

// WithClientIP adds the client IP to the context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, keyClientIP, ip)
}

// ClientIP extracts the client IP from the context.
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(keyClientIP).(string); ok {
		return v
	}
	return ""
}

// WithUserAgent adds the User-Agent to the context.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, keyUserAgent, ua)
}

// UserAgent extracts the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if v, ok := ctx.Value(keyUserAgent).(string); ok {
		return v
	}
	return ""
}

// WithRequestID adds the request ID to the context.
func WithRequestID(ctx context.Context, id ksid.ID) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

// RequestID extracts the request ID from the context. It is zero when unset.
func RequestID(ctx context.Context) ksid.ID {
	if v, ok := ctx.Value(keyRequestID).(ksid.ID); ok {
		return v
	}
	return 0
}

// WithCountryCode adds the client country to the context.
func WithCountryCode(ctx context.Context, cc string) context.Context {
	return context.WithValue(ctx, keyCountry, cc)
}

// CountryCode extracts the client country from the context.
func CountryCode(ctx context.Context) string {
	if v, ok := ctx.Value(keyCountry).(string); ok {
		return v
	}
	return ""
}

// FromRequest returns r's context with the client IP, User-Agent and a new
// request ID attached.
func FromRequest(r *http.Request) context.Context {
	ctx := WithClientIP(r.Context(), GetClientIP(r))
	ctx = WithUserAgent(ctx, r.Header.Get("User-Agent"))
	return WithRequestID(ctx, ksid.NewID())
}
