package server

import (
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

// instrument tags the request with an id and a request-scoped logger, then
// records its outcome under route.
func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		logger := s.deps.Logger.With().Str("request_id", id).Logger()
		r = r.WithContext(logger.WithContext(r.Context()))

		m := httpsnoop.CaptureMetrics(next, w, r)

		s.deps.Metrics.ObserveRequest(route, strconv.Itoa(m.Code), m.Duration)

		event := logger.Debug()
		if m.Code >= http.StatusInternalServerError {
			event = logger.Warn()
		}
		event.
			Str("method", r.Method).
			Str("route", route).
			Int("status", m.Code).
			Int64("bytes", m.Written).
			Dur("elapsed", m.Duration).
			Msg("request")
	})
}
