// Package metrics registers the prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CheckIns counts successful check-ins, including toggles.
	CheckIns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pointtrack_checkins_total",
		Help: "Number of successful student check-ins.",
	})

	// CheckOuts counts successful check-outs, manual ones included.
	CheckOuts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pointtrack_checkouts_total",
		Help: "Number of successful student check-outs.",
	})

	// PointsAwarded accumulates points credited through checkouts.
	PointsAwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pointtrack_points_awarded_total",
		Help: "Total points credited to student ledgers by checkouts.",
	})
)
