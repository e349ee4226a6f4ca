// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PromptsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_prompts_processed_total",
			Help: "Total number of prompts processed, by outcome",
		},
		[]string{"outcome"},
	)

	AgentDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_agent_dispatches_total",
			Help: "Total number of parse dispatches per agent",
		},
		[]string{"agent"},
	)

	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_executions_total",
			Help: "Total number of intent executions, by agent and status",
		},
		[]string{"agent", "status"},
	)

	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "orchestrator_execution_duration_seconds",
			Help: "Duration of intent execution in seconds",
		},
		[]string{"agent"},
	)

	DialogueTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogue_state_transitions_total",
			Help: "Total number of dialogue state transitions",
		},
		[]string{"from", "to"},
	)
)
