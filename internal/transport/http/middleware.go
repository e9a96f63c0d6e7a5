package http

import (
	"log"
	"net/http"
	"time"
)

// RequestLogger logs one line per request with status and latency.
// Webhook traffic dominates this service, so the remote address is
// included to tell providers apart when debugging redeliveries.
func RequestLogger(next http.Handler, logger *log.Logger) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.Printf(
			"request method=%s path=%s status=%d remote=%s duration=%s",
			r.Method,
			r.URL.Path,
			rec.status,
			r.RemoteAddr,
			time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
