package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tenantbot"

type Metrics struct {
	// Energy metrics
	EnergyConsumed     *prometheus.CounterVec
	EnergyInsufficient *prometheus.CounterVec
	StorageRetries     prometheus.Counter

	// Pipeline metrics
	MessagesProcessed *prometheus.CounterVec
	MessagesGated     prometheus.Counter
	Redactions        *prometheus.CounterVec
	CommandsHandled   *prometheus.CounterVec

	// Session metrics
	SessionsConnected prometheus.Gauge
	AuthTransitions   *prometheus.CounterVec
	Recoveries        *prometheus.CounterVec
	FloodWaits        *prometheus.CounterVec

	// Profile metrics
	ProfileReverts *prometheus.CounterVec

	// Control surface metrics
	HTTPRequests *prometheus.CounterVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EnergyConsumed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "energy_consumed_total",
			Help:      "Energy units debited, by reason",
		}, []string{"reason"}),
		EnergyInsufficient: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "energy_insufficient_total",
			Help:      "Consumptions rejected for lack of energy, by reason",
		}, []string{"reason"}),
		StorageRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_retries_total",
			Help:      "Energy mutations retried after storage contention",
		}),
		MessagesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_processed_total",
			Help:      "Outgoing messages seen by the pipeline, by content type",
		}, []string{"content_type"}),
		MessagesGated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_gated_total",
			Help:      "Outgoing messages replaced by a low-energy notice",
		}),
		Redactions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redactions_total",
			Help:      "Matched phrases rewritten in outgoing text, by stage",
		}, []string{"stage"}),
		CommandsHandled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_handled_total",
			Help:      "Inbound commands answered, by command",
		}, []string{"command"}),
		SessionsConnected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_running",
			Help:      "Sessions with listener and monitor running",
		}),
		AuthTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_transitions_total",
			Help:      "Authentication state changes, by target state",
		}, []string{"state"}),
		Recoveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_recoveries_total",
			Help:      "Startup recovery outcomes",
		}, []string{"result"}),
		FloodWaits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flood_waits_total",
			Help:      "Platform rate-limit waits, by operation",
		}, []string{"op"}),
		ProfileReverts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_reverts_total",
			Help:      "Profile reconciliations, by trigger",
		}, []string{"trigger"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Control surface requests, by method, route and status",
		}, []string{"method", "route", "status"}),
	}
}
