package metrics

import (
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "bruce_acceptor"
)

var (
	Debug bool

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"scope",
	})

	connectionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "connection_state",
		Help:      "Connection state per platform (bool per state)",
	}, []string{
		"platform",
		"state",
	})

	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "commands_total",
		Help:      "Count of executed commands per platform and outcome",
	}, []string{
		"platform",
		"outcome",
	})

	commandDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "command_duration_ms",
		Help:      "Duration of the last command per platform (ms)",
	}, []string{
		"platform",
	})

	testRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "test_runs_total",
		Help:      "Count of test runs per platform and outcome",
	}, []string{
		"platform",
		"outcome",
	})

	testSuccessRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "test_success_rate",
		Help:      "Step success ratio of the last test run per platform",
	}, []string{
		"platform",
	})
)

var knownStates = []string{"disconnected", "connecting", "connected", "degraded"}

func RecordError(scope string) {
	debug("metric inc",
		"m", "errors_total",
		"scope", scope)
	errorsTotal.WithLabelValues(scope).Inc()
}

func RecordConnectionState(platform string, state string) {
	debug("metric set",
		"m", "connection_state",
		"platform", platform,
		"state", state)
	for _, s := range knownStates {
		connectionState.WithLabelValues(platform, s).Set(boolToFloat64(s == state))
	}
}

func RecordCommand(platform string, success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	debug("metric inc",
		"m", "commands_total",
		"platform", platform,
		"outcome", outcome)
	commandsTotal.WithLabelValues(platform, outcome).Inc()
	commandDuration.WithLabelValues(platform).Set(float64(duration.Milliseconds()))
}

func RecordTestRun(platform string, success bool, successRate float64) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	debug("metric inc",
		"m", "test_runs_total",
		"platform", platform,
		"outcome", outcome)
	testRunsTotal.WithLabelValues(platform, outcome).Inc()
	testSuccessRate.WithLabelValues(platform).Set(successRate)
}

func boolToFloat64(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func debug(msg string, ctx ...interface{}) {
	if !Debug {
		return
	}
	log.Debug(msg, ctx...)
}
