package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Repository and provider Prometheus metrics. Defined in a standalone package
// so storage backends and providers can share them without import cycles.

var (
	RepoSaves = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "repo_saves_total",
		Help: "Successful repository saves by collection",
	}, []string{"collection"})

	RepoConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "repo_save_conflicts_total",
		Help: "Saves rejected by the timestamp conflict check, by collection",
	}, []string{"collection"})

	LoginFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "membership_login_failures_total",
		Help: "Failed password validations",
	})

	Lockouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "membership_lockouts_total",
		Help: "Accounts locked out by the failure counter",
	})
)

// Register registers all metrics on the given registry (or default if nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{RepoSaves, RepoConflicts, LoginFailures, Lockouts} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
