package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	ExecuteCounter   = prometheus.NewCounter(prometheus.CounterOpts{Name: "ddl_executed_total", Help: "Statements executed through the safety gate"})
	BlockedCounter   = prometheus.NewCounter(prometheus.CounterOpts{Name: "ddl_blocked_total", Help: "Statements blocked by the safety gate"})
	DryRunCounter    = prometheus.NewCounter(prometheus.CounterOpts{Name: "ddl_dry_run_total", Help: "Statements simulated with dry_run"})
	MigrationsRun    = prometheus.NewCounter(prometheus.CounterOpts{Name: "migrations_applied_total", Help: "Migration files executed"})
	JobsChecked      = prometheus.NewCounter(prometheus.CounterOpts{Name: "cron_jobs_checked_total", Help: "Jobs evaluated by the health checker"})
	JobsUnhealthy    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "cron_jobs_unhealthy", Help: "Jobs currently failed or missed"})
	AlertsSent       = prometheus.NewCounter(prometheus.CounterOpts{Name: "alerts_sent_total", Help: "Alerts dispatched to a webhook"})
	AlertsFailed     = prometheus.NewCounter(prometheus.CounterOpts{Name: "alerts_failed_total", Help: "Alert sends that failed or were unconfigured"})
	RateLimitRejects = prometheus.NewCounter(prometheus.CounterOpts{Name: "execute_rate_limit_rejects_total", Help: "Execute requests rejected by the limiter"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			ExecuteCounter,
			BlockedCounter,
			DryRunCounter,
			MigrationsRun,
			JobsChecked,
			JobsUnhealthy,
			AlertsSent,
			AlertsFailed,
			RateLimitRejects,
		)
	})
	return promhttp.Handler()
}
