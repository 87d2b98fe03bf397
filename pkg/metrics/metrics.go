package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Luna metrics
	LunaSessionsStarted prometheus.Counter
	LunaSessionsEnded   *prometheus.CounterVec
	LunaTurns           prometheus.Counter
	LunaMinutesCharged  prometheus.Counter

	// Batch and integration metrics
	HoroscopesGenerated *prometheus.CounterVec
	TelegramMessages    *prometheus.CounterVec
	WebhookEvents       *prometheus.CounterVec
	JobRuns             *prometheus.CounterVec
	LoginAttempts       *prometheus.CounterVec

	// Infrastructure metrics
	DBConnections prometheus.Gauge
	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec
}

// New creates a Metrics instance registered on the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered on reg
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path", "status"},
		),
		HTTPResponseSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 5000, 10000, 50000, 100000},
			},
			[]string{"method", "path"},
		),

		LunaSessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "luna_sessions_started_total",
			Help: "Total number of Luna sessions opened",
		}),
		LunaSessionsEnded: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "luna_sessions_ended_total",
				Help: "Total number of Luna sessions closed or paused",
			},
			[]string{"reason"}, // user_ended, time_expired
		),
		LunaTurns: f.NewCounter(prometheus.CounterOpts{
			Name: "luna_turns_total",
			Help: "Total number of answered Luna turns",
		}),
		LunaMinutesCharged: f.NewCounter(prometheus.CounterOpts{
			Name: "luna_minutes_charged_total",
			Help: "Total Luna minutes debited at session end",
		}),

		HoroscopesGenerated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "horoscopes_generated_total",
				Help: "Daily horoscope outcomes",
			},
			[]string{"result"}, // ok, skipped, failed
		),
		TelegramMessages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telegram_messages_total",
				Help: "Telegram messages sent by the bot",
			},
			[]string{"result"}, // sent, failed
		),
		WebhookEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stripe_webhook_events_total",
				Help: "Stripe webhook events by type and outcome",
			},
			[]string{"type", "outcome"}, // applied, duplicate, ignored, rejected
		),
		JobRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scheduler_job_runs_total",
				Help: "Batch job runs by job type and status",
			},
			[]string{"job", "status"},
		),
		LoginAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "login_attempts_total",
				Help: "Total number of login attempts",
			},
			[]string{"status"}, // success, failed
		),

		DBConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "db_connections_in_use",
			Help: "Number of database connections in use",
		}),
		CacheHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMisses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),
	}
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			path := c.Path() // route pattern keeps label cardinality bounded

			err := next(c)

			status := strconv.Itoa(c.Response().Status)
			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, status).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, status).Observe(time.Since(start).Seconds())
			m.HTTPResponseSize.WithLabelValues(req.Method, path).Observe(float64(c.Response().Size))

			return err
		}
	}
}

// RecordSessionStarted increments the opened sessions counter
func (m *Metrics) RecordSessionStarted() {
	if m == nil {
		return
	}
	m.LunaSessionsStarted.Inc()
}

// RecordSessionEnded records a closed or paused session and the minutes billed
func (m *Metrics) RecordSessionEnded(reason string, minutes int) {
	if m == nil {
		return
	}
	m.LunaSessionsEnded.WithLabelValues(reason).Inc()
	if minutes > 0 {
		m.LunaMinutesCharged.Add(float64(minutes))
	}
}

// RecordTurn increments the answered turns counter
func (m *Metrics) RecordTurn() {
	if m == nil {
		return
	}
	m.LunaTurns.Inc()
}

// RecordHoroscope records one generation outcome
func (m *Metrics) RecordHoroscope(result string) {
	if m == nil {
		return
	}
	m.HoroscopesGenerated.WithLabelValues(result).Inc()
}

// RecordTelegramMessage records one bot send
func (m *Metrics) RecordTelegramMessage(success bool) {
	if m == nil {
		return
	}
	result := "failed"
	if success {
		result = "sent"
	}
	m.TelegramMessages.WithLabelValues(result).Inc()
}

// RecordWebhookEvent records one webhook delivery
func (m *Metrics) RecordWebhookEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// RecordJobRun records a finished batch job
func (m *Metrics) RecordJobRun(job, status string) {
	if m == nil {
		return
	}
	m.JobRuns.WithLabelValues(job, status).Inc()
}

// RecordLoginAttempt increments login attempts counter
func (m *Metrics) RecordLoginAttempt(success bool) {
	if m == nil {
		return
	}
	status := "failed"
	if success {
		status = "success"
	}
	m.LoginAttempts.WithLabelValues(status).Inc()
}

// RecordCache records a cache lookup
func (m *Metrics) RecordCache(cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.WithLabelValues(cache).Inc()
		return
	}
	m.CacheMisses.WithLabelValues(cache).Inc()
}

// UpdateDBConnections updates the in-use database connections gauge
func (m *Metrics) UpdateDBConnections(count int) {
	if m == nil {
		return
	}
	m.DBConnections.Set(float64(count))
}
