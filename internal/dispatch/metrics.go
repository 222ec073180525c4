package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_commands_total",
			Help: "Total number of executed sync commands by outcome.",
		},
		[]string{"resource", "command", "result"},
	)
	commandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_command_duration_seconds",
			Help:    "Duration of sync command execution in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource", "command"},
	)
	commandsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_commands_skipped_total",
			Help: "Total number of sync commands skipped before execution.",
		},
		[]string{"resource", "command", "reason"},
	)
	commandsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sync_commands_in_flight",
			Help: "Number of sync commands currently executing.",
		},
		[]string{"resource"},
	)
)
