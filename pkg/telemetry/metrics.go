package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	Namespace = "topology"

	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Registry holds every metric of this module. It is served by the API under /metrics.
var Registry = prometheus.NewRegistry()

var (
	HealthProbes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "health_probes_total",
		Help:      "Number of server health probes, partitioned by server role and result.",
	}, []string{"role", "result"})

	AdminCommands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "admin_commands_total",
		Help:      "Number of administrative commands, partitioned by command name and result.",
	}, []string{"command", "result"})

	HealthWaitSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "health_wait_seconds",
		Help:      "Time spent waiting for a replica set or router group to become healthy.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"group"})

	ApiRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Number of HTTP requests, partitioned by status code, method, and path.",
	}, []string{"code", "method", "path"})
)

func init() {
	Registry.MustRegister(
		HealthProbes,
		AdminCommands,
		HealthWaitSeconds,
		ApiRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Result maps an error to the result label.
func Result(err error) string {
	if err != nil {
		return ResultFailed
	}
	return ResultOK
}

// BoolResult maps a probe outcome to the result label.
func BoolResult(ok bool) string {
	if ok {
		return ResultOK
	}
	return ResultFailed
}
