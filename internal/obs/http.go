package obs

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

// statusWriter remembers what the handler sent.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusWriter) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// RequestContextMiddleware puts a request id into the context and echoes it
// in the response. An incoming id is kept.
func RequestContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if requestID == "" {
			requestID = newRequestID()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := WithCorrelation(r.Context(), Correlation{RequestID: requestID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccessLogMiddleware emits one http_access event per request.
//
// Page views log at debug, form posts at info, and 4xx/5xx at warn. Redirects
// include their Location, which is where a journey goes after login or logout.
func AccessLogMiddleware(pkg string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		status := sw.code()
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"dur_ms", float64(time.Since(start).Microseconds()) / 1000.0,
			"resp_bytes", sw.bytes,
		}
		if loc := w.Header().Get("Location"); loc != "" && status >= 300 && status < 400 {
			attrs = append(attrs, "location", loc)
		}

		level := slog.LevelDebug
		switch {
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		case r.Method == http.MethodPost:
			level = slog.LevelInfo
		}
		From(r.Context()).With("pkg", pkg).Log(r.Context(), level, "http_access", attrs...)
	})
}
