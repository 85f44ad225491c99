// Package middleware holds the HTTP middleware shared by every route.
//
// WHAT IS MIDDLEWARE?
// A middleware takes the next handler and returns a new handler that does
// some work around it. Logging, CORS and security headers apply to every
// route, so they are written once here instead of inside each handler.
//
// Each one has the usual shape:
//
//	func MyMiddleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // before: inspect or modify the request
//	        next.ServeHTTP(w, r)
//	        // after: the response has been written
//	    })
//	}
//
// ORDER MATTERS:
// chi runs r.Use() middleware in the order registered, outermost first.
// The server registers RequestID before Logger so every log line carries
// the ID, and Recoverer after Logger so a panic is still logged as a 500.
//
// Session gating lives in internal/auth because it needs the session store.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// responseWriter records the status code and byte count, which
// http.ResponseWriter does not expose once written.
//
// Embedding http.ResponseWriter gives us every method for free; we only
// redefine the two we need to observe.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

// WriteHeader remembers the code before passing it on.
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logger logs one line per request: method, path, status, duration,
// bytes, and the chi request ID. 5xx responses log at error level and 4xx
// at warn so failures stand out.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Handlers write to the wrapper; the wrapper writes to the client.
			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK, // if WriteHeader is never called
			}

			next.ServeHTTP(wrapped, r)

			// A 401 from an expired cookie is routine, a 503 is not.
			level := slog.LevelInfo
			switch {
			case wrapped.statusCode >= 500:
				level = slog.LevelError
			case wrapped.statusCode >= 400:
				level = slog.LevelWarn
			}

			logger.LogAttrs(r.Context(), level, "request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", wrapped.written),
				slog.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}
