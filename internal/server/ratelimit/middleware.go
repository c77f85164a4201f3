// Provides HTTP middleware and response writers for rate limiting.

package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/inshira2021/producerhub/internal/server/dto"
	"github.com/inshira2021/producerhub/internal/server/reqctx"
)

// WriteHeaders writes rate limit headers to the response.
// Headers are written on all responses (both success and 429).
func WriteHeaders(w http.ResponseWriter, result Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if !result.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
	}
}

// responseWriter injects rate limit headers before any response is written.
type responseWriter struct {
	http.ResponseWriter
	result      Result
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.wroteHeader {
		WriteHeaders(rw.ResponseWriter, rw.result)
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		WriteHeaders(rw.ResponseWriter, rw.result)
		rw.wroteHeader = true
	}
	return rw.ResponseWriter.Write(b)
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// BuildKey creates a rate limit bucket key from a client IP and tier name.
func BuildKey(clientIP, tierName string) string {
	return "ip:" + clientIP + ":" + tierName
}

// Middleware enforces the tier matching each request, keyed by client IP.
// Rejected requests get a 429 JSON error.
func Middleware(c *Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tier := c.Match(r.Method, r.URL.Path)
			if tier == nil {
				next.ServeHTTP(w, r)
				return
			}
			ip := reqctx.ClientIP(r.Context())
			if ip == "" {
				ip = reqctx.GetClientIP(r)
			}
			result := tier.Limiter.Allow(BuildKey(ip, tier.Name))
			rw := &responseWriter{ResponseWriter: w, result: result}
			if !result.Allowed {
				slog.WarnContext(r.Context(), "Rate limited", "ip", ip, "tier", tier.Name, "path", r.URL.Path)
				writeError(rw, dto.RateLimitExceeded(int(result.RetryAfter.Seconds())))
				return
			}
			next.ServeHTTP(rw, r)
		})
	}
}

func writeError(w http.ResponseWriter, apiErr *dto.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode())
	resp := dto.ErrorResponse{
		Error:   dto.ErrorDetails{Code: apiErr.Code(), Message: apiErr.Message()},
		Details: apiErr.Details(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode error response", "err", err)
	}
}
