package eventbus

import "github.com/prometheus/client_golang/prometheus"

// PrometheusBus counts narrow outcomes, alerts, and up/down transitions; it
// never exposes derived key material as a metric label.
type PrometheusBus struct {
	narrows   *prometheus.CounterVec
	alerts    *prometheus.CounterVec
	upDowns   *prometheus.CounterVec
}

func NewPrometheusBus(reg prometheus.Registerer) *PrometheusBus {
	b := &PrometheusBus{
		narrows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ike",
			Subsystem: "child_sa",
			Name:      "narrow_total",
			Help:      "Traffic selector narrowing outcomes by success/failure.",
		}, []string{"ok"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ike",
			Subsystem: "child_sa",
			Name:      "alerts_total",
			Help:      "CHILD_SA task alerts by kind.",
		}, []string{"kind"}),
		upDowns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ike",
			Subsystem: "child_sa",
			Name:      "up_down_total",
			Help:      "CHILD_SA install/teardown transitions.",
		}, []string{"up"}),
	}
	reg.MustRegister(b.narrows, b.alerts, b.upDowns)
	return b
}

func (b *PrometheusBus) Narrow(r NarrowResult) {
	ok := "false"
	if r.Ok {
		ok = "true"
	}
	b.narrows.WithLabelValues(ok).Inc()
}

func (b *PrometheusBus) Alert(kind AlertKind, _ string, _ error) {
	b.alerts.WithLabelValues(kind.String()).Inc()
}

func (b *PrometheusBus) ChildKeys(ChildKeys) {}

func (b *PrometheusBus) ChildUpDown(u UpDown) {
	up := "false"
	if u.Up {
		up = "true"
	}
	b.upDowns.WithLabelValues(up).Inc()
}
