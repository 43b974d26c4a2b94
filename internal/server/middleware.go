package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5/middleware"
)

// RequestID tags each request with an id, available through [middleware.GetReqID].
func RequestID(next http.Handler) http.Handler {
	return middleware.RequestID(next)
}

// Recoverer turns a panicking handler into a 500. The panic is reported through the
// request's log entry, so it must run below [RequestLogger].
func Recoverer(next http.Handler) http.Handler {
	return middleware.Recoverer(next)
}

// RequestLogger logs one line per request at debug level and panics at error level.
func RequestLogger(logger *log.Logger) Middleware {
	return middleware.RequestLogger(&logFormatter{logger: logger})
}

type logFormatter struct {
	logger *log.Logger
}

func (f *logFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &logEntry{logger: f.logger.With(
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
	)}
}

type logEntry struct {
	logger *log.Logger
}

func (e *logEntry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra any) {
	e.logger.Debug("request", "status", status, "bytes", bytes, "duration", elapsed)
}

func (e *logEntry) Panic(v any, stack []byte) {
	e.logger.Error("handler panicked", "panic", v, "stack", string(stack))
}

// SameOrigin rejects state-changing requests sent from another origin.
func SameOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}

		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = r.Header.Get("Referer")
		}
		if origin != "" {
			u, err := url.Parse(origin)
			if err != nil || u.Host != r.Host {
				http.Error(w, "cross-origin request rejected", http.StatusForbidden)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
