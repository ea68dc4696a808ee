package voting

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type serviceMetrics struct {
	votesAccepted *prometheus.CounterVec
	votesRefused  *prometheus.CounterVec
}

// newServiceMetrics registers the vote counters. A nil registry disables metrics.
func newServiceMetrics(registry prometheus.Registerer) *serviceMetrics {
	if registry == nil {
		return &serviceMetrics{}
	}
	factory := promauto.With(registry)
	return &serviceMetrics{
		votesAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "workflow_votes_accepted_total",
			Help: "Total number of votes recorded in the ledger",
		}, []string{"subject_type", "decision"}),
		votesRefused: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "workflow_votes_refused_total",
			Help: "Total number of vote submissions refused by policy",
		}, []string{"reason"}),
	}
}

func (m *serviceMetrics) accepted(subjectType SubjectType, decision Decision) {
	if m == nil || m.votesAccepted == nil {
		return
	}
	m.votesAccepted.WithLabelValues(subjectType.String(), decision.String()).Inc()
}

func (m *serviceMetrics) refused(reason string) {
	if m == nil || m.votesRefused == nil {
		return
	}
	m.votesRefused.WithLabelValues(reason).Inc()
}
