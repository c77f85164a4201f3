// Provides request scoped middleware: request metadata and access logging.

package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/inshira2021/producerhub/internal/server/ipgeo"
	"github.com/inshira2021/producerhub/internal/server/reqctx"
)

// statusWriter records the status code and body size of a response.
type statusWriter struct {
	http.ResponseWriter
	status int
	size   int64
}

func (sw *statusWriter) WriteHeader(statusCode int) {
	if sw.status == 0 {
		sw.status = statusCode
	}
	sw.ResponseWriter.WriteHeader(statusCode)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if sw.status == 0 {
		sw.status = http.StatusOK
	}
	n, err := sw.ResponseWriter.Write(b)
	sw.size += int64(n)
	return n, err
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// RequestContext attaches the client IP, User-Agent and a request ID to the
// request context and logs each request once it completes. geo may be nil.
func RequestContext(geo *ipgeo.Checker, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := reqctx.FromRequest(r)
		ctx = reqctx.WithCountryCode(ctx, geo.CountryCode(reqctx.ClientIP(ctx)))
		sw := &statusWriter{ResponseWriter: w}
		w.Header().Set("X-Request-ID", reqctx.RequestID(ctx).String())
		next.ServeHTTP(sw, r.WithContext(ctx))
		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		level := slog.LevelDebug
		if sw.status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		slog.Log(ctx, level, "http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"size", sw.size,
			"dur", time.Since(start).Round(time.Millisecond),
			"ip", reqctx.ClientIP(ctx),
			"cc", reqctx.CountryCode(ctx),
			"rid", reqctx.RequestID(ctx))
	})
}
