package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// NewRouter wires all endpoints. metricsHandler may be nil when
// metrics are not exposed.
func NewRouter(h *Handlers, metricsHandler http.Handler, baseLogger *zerolog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger(baseLogger))

	r.HandleFunc("/api/session", h.CreateSession).Methods(http.MethodPost)
	r.HandleFunc("/api/chat", h.Chat).Methods(http.MethodPost)
	r.HandleFunc("/api/identity/begin", h.BeginIdentity).Methods(http.MethodPost)
	r.HandleFunc("/api/identity/confirm", h.ConfirmIdentity).Methods(http.MethodPost)
	r.HandleFunc("/api/referral/generate", h.GenerateReferral).Methods(http.MethodPost)
	r.HandleFunc("/api/referral", h.GetReferral).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}

	return r
}

func requestLogger(baseLogger *zerolog.Logger) mux.MiddlewareFunc {
	log := baseLogger.With().Str("component", "http").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("Request")
			next.ServeHTTP(w, r)
		})
	}
}
