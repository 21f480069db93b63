// Package metrics exposes Prometheus counters for workflow engine operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngineMetrics implements engine.Metrics over a Prometheus registry
type EngineMetrics struct {
	approvals     *prometheus.CounterVec
	returns       *prometheus.CounterVec
	comments      prometheus.Counter
	conflicts     prometheus.Counter
	auditFailures prometheus.Counter
}

// New registers engine metrics on the given registerer
func New(reg prometheus.Registerer) *EngineMetrics {
	factory := promauto.With(reg)

	return &EngineMetrics{
		approvals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procurement",
			Name:      "approvals_total",
			Help:      "Approve transitions recorded, by step acted on.",
		}, []string{"step"}),
		returns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procurement",
			Name:      "returns_total",
			Help:      "Return transitions recorded, by step acted on.",
		}, []string{"step"}),
		comments: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "procurement",
			Name:      "comments_total",
			Help:      "Plain comments added to requests.",
		}),
		conflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "procurement",
			Name:      "write_conflicts_total",
			Help:      "Mutations lost to a concurrent writer.",
		}),
		auditFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "procurement",
			Name:      "audit_failures_total",
			Help:      "Audit emissions that failed after a committed mutation.",
		}),
	}
}

// ApprovalGranted counts an approve transition
func (m *EngineMetrics) ApprovalGranted(step string) {
	m.approvals.WithLabelValues(step).Inc()
}

// ApprovalReturned counts a return transition
func (m *EngineMetrics) ApprovalReturned(step string) {
	m.returns.WithLabelValues(step).Inc()
}

// CommentAdded counts a plain comment
func (m *EngineMetrics) CommentAdded() {
	m.comments.Inc()
}

// ConflictDetected counts a lost conditional write
func (m *EngineMetrics) ConflictDetected() {
	m.conflicts.Inc()
}

// AuditFailure counts a degraded audit emission
func (m *EngineMetrics) AuditFailure() {
	m.auditFailures.Inc()
}
