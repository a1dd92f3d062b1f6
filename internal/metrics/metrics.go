// Package metrics содержит Prometheus-метрики прохода начислений и рассылки уведомлений.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics набор счётчиков сервиса. Нулевой указатель допустим: все методы становятся no-op.
type Metrics struct {
	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	runFailures   *prometheus.CounterVec
	dispositions  *prometheus.CounterVec
	creditErrors  *prometheus.CounterVec
	credited      prometheus.Counter
	notifications *prometheus.CounterVec
}

// New создаёт метрики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roicredit",
			Name:      "runs_total",
			Help:      "Number of finished credit passes, failed ones included.",
		}, []string{"trigger"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "roicredit",
			Name:      "run_duration_seconds",
			Help:      "Duration of credit passes.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"trigger"}),
		runFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roicredit",
			Name:      "run_failures_total",
			Help:      "Number of credit passes aborted with an error.",
		}, []string{"trigger"}),
		dispositions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roicredit",
			Name:      "dispositions_total",
			Help:      "Investments by computed disposition.",
		}, []string{"disposition"}),
		creditErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roicredit",
			Name:      "credit_errors_total",
			Help:      "Investments that could not be credited.",
		}, []string{"reason"}),
		credited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roicredit",
			Name:      "credited_amount_total",
			Help:      "Total amount credited to user balances, bonuses included.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roicredit",
			Name:      "notifications_total",
			Help:      "Notification events by outcome.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.runs,
		m.runDuration,
		m.runFailures,
		m.dispositions,
		m.creditErrors,
		m.credited,
		m.notifications,
	)

	return m
}

// ObserveRun учитывает завершённый проход: число запусков, длительность и неудачу, если err != nil.
func (m *Metrics) ObserveRun(trigger string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(trigger).Inc()
	m.runDuration.WithLabelValues(trigger).Observe(d.Seconds())
	if err != nil {
		m.runFailures.WithLabelValues(trigger).Inc()
	}
}

// IncDisposition учитывает решение по одной инвестиции.
func (m *Metrics) IncDisposition(kind string) {
	if m == nil {
		return
	}
	m.dispositions.WithLabelValues(kind).Inc()
}

// IncCreditError учитывает инвестицию, начисление по которой не удалось.
func (m *Metrics) IncCreditError(reason string) {
	if m == nil {
		return
	}
	m.creditErrors.WithLabelValues(reason).Inc()
}

// AddCredited добавляет зачисленную сумму. Неположительные значения игнорируются.
func (m *Metrics) AddCredited(amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.credited.Add(amount)
}

// IncNotification учитывает исход отправки письма: sent, failed или dropped.
func (m *Metrics) IncNotification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}
