package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	itemsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sync_items_claimed_total",
		Help: "Queue items claimed by this instance",
	})
	itemsSynced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sync_items_synced_total",
		Help: "Queue items applied successfully",
	})
	failedAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sync_failed_attempts_total",
		Help: "Handler invocations that failed (item may still be retried)",
	})
	itemsFailedTerminal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sync_items_failed_total",
		Help: "Queue items that reached terminal FAILED",
	})
	orphansRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sync_orphans_recovered_total",
		Help: "PROCESSING items reset to PENDING by the recovery sweep",
	})
)
