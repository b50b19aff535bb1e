package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clerk_commits_total",
			Help: "Commit attempts by outcome (committed, duplicate_rejected, invalid, store_unavailable)",
		},
		[]string{"outcome"},
	)

	CommitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clerk_commit_duration_seconds",
			Help:    "Duration of the atomic insert-or-reject",
			Buckets: prometheus.DefBuckets,
		},
	)

	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clerk_turns_total",
			Help: "Conversation turns handled, by classified intent and resulting phase",
		},
		[]string{"intent", "phase"},
	)

	AgentCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clerk_agent_calls_total",
			Help: "Downstream agent invocations by agent and status",
		},
		[]string{"agent", "status"},
	)
)
