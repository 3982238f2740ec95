// Package metrics exposes the coordination substrate's Prometheus gauges
// and counters — lease lifecycle outcomes, renewal health, and orchestrator
// start/stop activity, mirroring the teacher's low-cardinality (no
// resource_id labels) metric naming conventions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LeaseAcquireTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vms_lease_acquire_total",
		Help: "Total lease acquire attempts by kind and outcome",
	}, []string{"kind", "outcome"}) // outcome: granted, denied

	LeaseRenewTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vms_lease_renew_total",
		Help: "Total lease renew attempts by kind and outcome",
	}, []string{"kind", "outcome"}) // outcome: renewed, failed

	LeaseReleaseTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vms_lease_release_total",
		Help: "Total lease release calls by kind",
	}, []string{"kind"})

	RenewalLossTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vms_renewal_loss_total",
		Help: "Total renewal engine losses (N consecutive renew failures) by kind",
	}, []string{"kind"})

	ActiveRenewals = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vms_active_renewals",
		Help: "Current number of resources with an active renewal task",
	}, []string{"kind"})

	OrchestratorStartTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vms_orchestrator_start_total",
		Help: "Total orchestrator start attempts by kind and outcome",
	}, []string{"kind", "outcome"}) // outcome: accepted, refused, worker_failed

	OrchestratorStopTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vms_orchestrator_stop_total",
		Help: "Total orchestrator stop attempts by kind and outcome",
	}, []string{"kind", "outcome"})

	BootstrapOrphansDemotedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vms_bootstrap_orphans_demoted_total",
		Help: "Total records demoted to error during bootstrap reconciliation, by kind",
	}, []string{"kind"})
)
