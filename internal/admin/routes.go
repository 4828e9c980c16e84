package admin

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/gogogo1024/filegate/protocol"
)

var (
	errBadRequest = errors.New("bad request")
	errTooLarge   = errors.New("request entity too large")
)

// Routes registers the admin API on mux.
func (s *Service) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/files/{name}", s.withJSON(s.StatFile))
	mux.HandleFunc("PUT /api/files/{name}", s.withJSON(s.PutFile))
	mux.HandleFunc("DELETE /api/files/{name}", s.withJSON(s.DeleteFile))
	mux.HandleFunc("GET /api/audit-logs", s.withJSON(s.GetAuditLogs))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func (s *Service) withJSON(handler func(http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := handler(w, r); err != nil {
			code := statusOf(err)
			if code >= http.StatusInternalServerError {
				s.log.Error("admin request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
			}
			_ = respondJSON(w, code, err.Error(), nil)
		}
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, protocol.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, protocol.ErrFileOpenFailed), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}
