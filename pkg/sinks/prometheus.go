package sinks

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/atlassian/gossipmember"
)

const namespace = "gossipmember"

// Prometheus is a Sink which counts events and tracks the table size of
// every observer it sees.
type Prometheus struct {
	added   *prometheus.CounterVec
	removed *prometheus.CounterVec
	members *prometheus.GaugeVec
}

// NewPrometheus creates the metrics and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		added: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "members_added_total",
				Help:      "Total number of nodes added to the membership table.",
			},
			[]string{"observer"},
		),
		removed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "members_removed_total",
				Help:      "Total number of nodes removed from the membership table after failing.",
			},
			[]string{"observer"},
		),
		members: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "members",
				Help:      "Current number of nodes in the membership table, excluding self.",
			},
			[]string{"observer"},
		),
	}
	for _, c := range []prometheus.Collector{p.added, p.removed, p.members} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) MemberAdded(observer, added gossipmember.Address) {
	o := observer.String()
	p.added.WithLabelValues(o).Inc()
	p.members.WithLabelValues(o).Inc()
}

func (p *Prometheus) MemberRemoved(observer, removed gossipmember.Address) {
	o := observer.String()
	p.removed.WithLabelValues(o).Inc()
	p.members.WithLabelValues(o).Dec()
}

// ObserverStopped drops the table size series of observer.  Counters are kept.
func (p *Prometheus) ObserverStopped(observer gossipmember.Address) {
	p.members.DeleteLabelValues(observer.String())
}
