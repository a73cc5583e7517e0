package metrics

import (
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ObjectsUploaded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bucket_session",
		Name:      "objects_uploaded_total",
		Help:      "Total objects uploaded during sessions.",
	})
	ObjectsDownloaded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bucket_session",
		Name:      "objects_downloaded_total",
		Help:      "Total objects downloaded during sessions.",
	})
	ObjectsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bucket_session",
		Name:      "objects_deleted_total",
		Help:      "Total objects deleted during sessions.",
	})
	PayloadsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bucket_session",
		Name:      "payloads_skipped_total",
		Help:      "Total payloads skipped because the source file was absent.",
	})
	PhaseFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bucket_session",
		Name:      "phase_failures_total",
		Help:      "Total phase failures, labeled by phase.",
	}, []string{"phase"})
)

// Init registers collectors; call once from main.
func Init() {
	prometheus.MustRegister(ObjectsUploaded, ObjectsDownloaded, ObjectsDeleted, PayloadsSkipped, PhaseFailures)
}

// Serve starts a /metrics server on the given addr (e.g., ":9090"). Non-blocking when run in goroutine.
func Serve(addr string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, nil)
}

// AddrFromEnv returns listen address from METRICS_ADDR or default ":9090".
func AddrFromEnv() string {
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		return v
	}
	return ":9090"
}
