package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fleetpeer-io/fleetpeer/pkg/log"
)

const requestIDHeader = "X-Request-ID"

// statusWriter captures the final status code and response size.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// loggingMiddleware puts a request-scoped logger into the context and logs
// every request once it is served.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		logger := log.WithName("api").WithValues("requestID", id, "method", r.Method, "path", r.URL.Path)
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r.WithContext(log.IntoContext(r.Context(), logger)))

		logger.Debug("Request served", "status", sw.status, "bytes", sw.bytes, "duration", time.Since(start))
	})
}
