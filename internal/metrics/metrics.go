/*

Prometheus collectors for the vault daemon, exposed on the web server's
/metrics endpoint.

*/

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NAV is the vault's total managed value in base units of the current
	// underlying.
	NAV = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "limavault",
		Name:      "nav_base_units",
		Help:      "Total managed value in base units of the current underlying.",
	})

	// ShareSupply is the outstanding share supply in base units.
	ShareSupply = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "limavault",
		Name:      "share_supply_base_units",
		Help:      "Outstanding vault share supply in base units.",
	})

	// Creates counts successful create operations.
	Creates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "limavault",
		Name:      "creates_total",
		Help:      "Successful share mints against deposits.",
	})

	// Redeems counts successful redeem and forceRedeem operations.
	Redeems = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "limavault",
		Name:      "redeems_total",
		Help:      "Successful share redemptions.",
	})

	// Rebalances counts completed rebalance executions.
	Rebalances = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "limavault",
		Name:      "rebalances_total",
		Help:      "Completed rebalance executions.",
	})

	// OperationErrors counts failed vault operations by operation label.
	OperationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "limavault",
		Name:      "operation_errors_total",
		Help:      "Failed vault operations by operation.",
	}, []string{"operation"})
)
