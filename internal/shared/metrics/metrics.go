package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/nayudayo/terminal-sub000/internal/core/domain"
	"github.com/nayudayo/terminal-sub000/internal/core/ports"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	transitions *prometheus.CounterVec
}

// New registers the collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "protocol_stage_transitions_total",
			Help: "Committed stage transitions by from/to stage and trigger.",
		}, []string{"from", "to", "trigger"}),
	}
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// Attach subscribes the metrics and logging sinks to the transition
// topic, so every committed transition is both counted and queryable
// in the logs.
func (m *Metrics) Attach(bus ports.EventBus, baseLogger *zerolog.Logger) {
	log := baseLogger.With().Str("component", "transition_log").Logger()

	bus.Subscribe(domain.TopicTransition, func(ctx context.Context, event ports.Event) error {
		t, ok := event.Data.(domain.TransitionEvent)
		if !ok {
			return nil
		}
		m.transitions.WithLabelValues(t.From.String(), t.To.String(), t.Trigger).Inc()
		log.Info().
			Str("user_id", t.UserID).
			Str("from", t.From.String()).
			Str("to", t.To.String()).
			Str("trigger", t.Trigger).
			Time("at", t.At).
			Msg("Stage transition")
		return nil
	})
}
