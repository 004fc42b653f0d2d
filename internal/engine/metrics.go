package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: сколько времени заняла обработка одного checkContent
	CheckDuration *prometheus.HistogramVec

	// Traffic: все сабмиты по исходу классификации
	SubmissionsTotal *prometheus.CounterVec

	// Enforcement: вычисленные меры (включая режим с выключенным рубильником)
	ActionsTotal *prometheus.CounterVec

	// Availability: сколько раз статус отдан как fail-open из-за хранилища
	FailOpenTotal prometheus.Counter

	// Errors: незасчитанные нарушения (леджер недоступен)
	LedgerErrorsTotal prometheus.Counter

	// Saturation: заполненность буфера аудита (backpressure)
	AuditBufferFill prometheus.Gauge

	// Состояние предохранителя перед хранилищем банов
	// (0 — closed, 1 — half-open, 2 — open, как нумерует gobreaker)
	BanBreakerState prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern — если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		CheckDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "modguard_check_duration_seconds",
			Help:    "Histogram of checkContent latencies.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"flagged"}),

		SubmissionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "modguard_submissions_total",
			Help: "Total number of processed submissions.",
		}, []string{"category", "severity"}), // category="" для чистых текстов

		ActionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "modguard_actions_total",
			Help: "Escalation actions computed, by action and enforcement state.",
		}, []string{"action", "enforced"}),

		FailOpenTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "modguard_status_fail_open_total",
			Help: "Status checks answered allowed=true due to storage failure.",
		}),

		LedgerErrorsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "modguard_ledger_errors_total",
			Help: "Infractions not counted towards escalation due to write failures.",
		}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "modguard_audit_buffer_utilization",
			Help: "Current number of entries in the audit buffer.",
		}),

		BanBreakerState: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "modguard_ban_store_breaker_state",
			Help: "Circuit breaker state for ban storage reads (0 closed, 1 half-open, 2 open).",
		}),
	}
}
