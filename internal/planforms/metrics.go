package planforms

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	submissionsAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "planforms",
		Name:      "submissions_accepted_total",
		Help:      "Submissions stored successfully",
	})
	submissionsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "planforms",
		Name:      "submissions_rejected_total",
		Help:      "Submissions rejected by validation",
	})
	webhookFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "planforms",
		Name:      "webhook_failures_total",
		Help:      "Webhook deliveries that failed",
	})
)

func registerMetrics() error {
	for _, c := range []prometheus.Collector{submissionsAccepted, submissionsRejected, webhookFailures} {
		if err := prometheus.Register(c); err != nil {
			return err
		}
	}
	return nil
}
