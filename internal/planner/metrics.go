package planner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	subtasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sovereignd_planner_subtasks_total",
			Help: "Subtasks reaching a terminal state, by status.",
		},
		[]string{"status"},
	)

	goalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sovereignd_planner_goals_total",
			Help: "Goals reaching a terminal state, by status.",
		},
		[]string{"status"},
	)

	storeConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sovereignd_planner_store_conflicts_total",
			Help: "Result writes lost to a concurrent winner.",
		},
	)
)
