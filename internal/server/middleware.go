package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/xtxerr/metricsd/internal/logging"
)

// statusRecorder captures the response status for access logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestLog attaches a request ID to the context and logs one line
// per completed request.
func (r *Router) withRequestLog(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		requestID := uuid.NewString()
		ctx := logging.ContextWithRequestID(req.Context(), requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next(rec, req.WithContext(ctx))

		r.log.Info("request",
			"request_id", requestID,
			"method", req.Method,
			"path", req.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	}
}
