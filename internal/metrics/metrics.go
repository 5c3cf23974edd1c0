// Package metrics instruments the dispatcher, session, and JWKS
// subsystems with Prometheus collectors, in the style of the pack's
// promauto-based metrics packages (gsoultan-Hermod's pkg/engine/metrics.go,
// r3e-network-service_layer's infrastructure/metrics).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StepExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_step_executions_total",
		Help: "Total number of executeStep calls, by plugin, step, and outcome.",
	}, []string{"plugin", "step", "outcome"})

	StepLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "authcore_step_duration_seconds",
		Help:    "Time taken to run a step, including its hook pipeline.",
		Buckets: prometheus.DefBuckets,
	}, []string{"plugin", "step"})

	SessionsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_sessions_issued_total",
		Help: "Total number of sessions created, by mode.",
	}, []string{"mode"})

	SessionsVerified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_sessions_verified_total",
		Help: "Total number of checkSession/verifySession calls, by outcome.",
	}, []string{"outcome"})

	SessionsDestroyed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_sessions_destroyed_total",
		Help: "Total number of sessions destroyed.",
	}, []string{"reason"})

	KeyRotations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_jwks_key_rotations_total",
		Help: "Total number of JWKS key rotations, by reason.",
	}, []string{"reason"})

	ActiveKeys = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "authcore_jwks_active_keys",
		Help: "Current number of active (primary + grace) signing keys.",
	})

	JWTsSigned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_jwt_signed_total",
		Help: "Total number of JWTs signed.",
	})

	JWTVerifyFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_jwt_verify_failures_total",
		Help: "Total number of JWT verification failures, by reason.",
	}, []string{"reason"})

	CleanupTaskRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_cleanup_task_runs_total",
		Help: "Total number of cleanup task runs, by task name and outcome.",
	}, []string{"task", "outcome"})

	CleanupTaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "authcore_cleanup_task_duration_seconds",
		Help:    "Time taken by a single cleanup task run.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})
)
