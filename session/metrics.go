package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// recomputeTotal counts derived-node evaluations across all sessions
	recomputeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "healthlens_recompute_total",
		Help: "Derived node recomputations by node name",
	}, []string{"node"})

	// selectionRejected counts setter calls refused by validation
	selectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "healthlens_selection_rejected_total",
		Help: "Selection updates rejected as not among the available options",
	}, []string{"field"})

	// selectionResets counts values cleared by reconciliation
	selectionResets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "healthlens_selection_reset_total",
		Help: "Selection values reset to unset after the options changed",
	}, []string{"field"})
)
