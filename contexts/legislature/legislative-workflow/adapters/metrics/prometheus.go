package metrics

import (
	"assembly/contexts/legislature/legislative-workflow/domain/entities"
	"assembly/contexts/legislature/legislative-workflow/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus records workflow activity on the given registry.
type Prometheus struct {
	transitions   *prometheus.CounterVec
	votes         *prometheus.CounterVec
	sessionActive prometheus.Gauge
	sessionsOpen  prometheus.Counter
	sessionsClose *prometheus.CounterVec
	rejections    *prometheus.CounterVec
}

func NewPrometheus(registry prometheus.Registerer) *Prometheus {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)
	return &Prometheus{
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assembly",
			Subsystem: "workflow",
			Name:      "bill_transitions_total",
			Help:      "bill status transitions by source and target status",
		}, []string{"from", "to"}),
		votes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assembly",
			Subsystem: "workflow",
			Name:      "votes_cast_total",
			Help:      "ballots cast, including replacements",
		}, []string{"value", "replaced"}),
		sessionActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "assembly",
			Subsystem: "workflow",
			Name:      "plenary_session_active",
			Help:      "1 while a plenary vote is open",
		}),
		sessionsOpen: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "assembly",
			Subsystem: "workflow",
			Name:      "plenary_sessions_opened_total",
			Help:      "plenary sessions opened",
		}),
		sessionsClose: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assembly",
			Subsystem: "workflow",
			Name:      "plenary_sessions_closed_total",
			Help:      "plenary sessions closed by outcome",
		}, []string{"outcome"}),
		rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assembly",
			Subsystem: "workflow",
			Name:      "operations_rejected_total",
			Help:      "rejected workflow operations by reason",
		}, []string{"operation", "reason"}),
	}
}

func (p *Prometheus) BillTransitioned(from entities.BillStatus, to entities.BillStatus) {
	source := string(from)
	if source == "" {
		source = "none"
	}
	p.transitions.WithLabelValues(source, string(to)).Inc()
}

func (p *Prometheus) VoteCast(value entities.VoteValue, replaced bool) {
	label := "false"
	if replaced {
		label = "true"
	}
	p.votes.WithLabelValues(string(value), label).Inc()
}

func (p *Prometheus) SessionOpened(_ string) {
	p.sessionsOpen.Inc()
	p.sessionActive.Set(1)
}

func (p *Prometheus) SessionClosed(outcome entities.VoteOutcome) {
	p.sessionsClose.WithLabelValues(string(outcome)).Inc()
	p.sessionActive.Set(0)
}

// SessionRestored sets the active-session gauge from stored state when a
// process starts while a vote is already open.
func (p *Prometheus) SessionRestored(active bool) {
	if active {
		p.sessionActive.Set(1)
		return
	}
	p.sessionActive.Set(0)
}

func (p *Prometheus) OperationRejected(operation string, reason string) {
	p.rejections.WithLabelValues(operation, reason).Inc()
}

var _ ports.Metrics = (*Prometheus)(nil)
