package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry so separate instances never collide.
type Collector struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	rateLimited     prometheus.Counter
	evaluations     *prometheus.CounterVec
	rankingFailures prometheus.Counter
	jobRuns         *prometheus.CounterVec
}

func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "epts_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "epts_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "epts_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "epts_evaluations_saved_total",
			Help: "Evaluations persisted, by operation.",
		}, []string{"operation"}),
		rankingFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "epts_ranking_failures_total",
			Help: "Rank recomputations that failed and were skipped.",
		}),
		jobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "epts_job_runs_total",
			Help: "Background job runs by job type and status.",
		}, []string{"job", "status"}),
	}
}

func (c *Collector) ObserveRequest(method, route string, status int, duration time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.duration.WithLabelValues(method, route).Observe(duration.Seconds())
	if status == http.StatusTooManyRequests {
		c.rateLimited.Inc()
	}
}

func (c *Collector) EvaluationSaved(operation string) {
	c.evaluations.WithLabelValues(operation).Inc()
}

func (c *Collector) RankingFailed() {
	c.rankingFailures.Inc()
}

func (c *Collector) JobRun(job, status string) {
	c.jobRuns.WithLabelValues(job, status).Inc()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
