package gateway

import (
	"net/http"
	"time"

	"github.com/whiteheaddmark/Observatory-Databases/router"
)

// accessLog logs one line per finished request
func (s *Service) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, req)

		s.logger.Info("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", rec.Header().Get(router.RequestIDHeader),
		)
	})
}
