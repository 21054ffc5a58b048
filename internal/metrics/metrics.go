package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/oshokin/temperature-monitor/internal/domain/alert"
)

const metricPrefix = "temperature_monitor_"

// Delivery results used as label values.
const (
	resultDelivered = "delivered"
	resultFailed    = "failed"
)

// Metrics holds the monitor's collectors.
type Metrics struct {
	ticksTotal      *prometheus.CounterVec
	tickDuration    prometheus.Histogram
	lastTemperature prometheus.Gauge
	lastReadingTime prometheus.Gauge
	alertActive     prometheus.Gauge
	alertsTotal     *prometheus.CounterVec
	registerer      prometheus.Registerer
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ticks_total",
				Help: "Total poll ticks by outcome",
			},
			[]string{"status"},
		),
		tickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "tick_duration_seconds",
				Help:    "Poll tick duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		lastTemperature: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "temperature_celsius",
				Help: "Most recently stored temperature",
			},
		),
		lastReadingTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "last_reading_timestamp_seconds",
				Help: "Unix time of the most recently stored reading",
			},
		),
		alertActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "alert_active",
				Help: "1 while the high temperature alert is active",
			},
		),
		alertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_total",
				Help: "Total alert transitions by kind and delivery result",
			},
			[]string{"kind", "result"},
		),
		registerer: reg,
	}

	reg.MustRegister(
		m.ticksTotal,
		m.tickDuration,
		m.lastTemperature,
		m.lastReadingTime,
		m.alertActive,
		m.alertsTotal,
	)

	return m
}

// RegisterRetainedReadings exposes the retained row count, evaluated on scrape.
func (m *Metrics) RegisterRetainedReadings(count func() float64) {
	m.registerer.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "retained_readings",
			Help: "Readings currently held by the store",
		},
		count,
	))
}

// ObserveTick records one tick outcome and its duration.
func (m *Metrics) ObserveTick(status string, duration time.Duration) {
	m.ticksTotal.WithLabelValues(status).Inc()
	m.tickDuration.Observe(duration.Seconds())
}

// ObserveReading records a stored reading.
func (m *Metrics) ObserveReading(value float64, capturedAt time.Time) {
	m.lastTemperature.Set(value)
	m.lastReadingTime.Set(float64(capturedAt.Unix()))
}

// ObserveAlert records a transition and whether its notification went out.
func (m *Metrics) ObserveAlert(kind alert.Kind, delivered bool) {
	result := resultFailed
	if delivered {
		result = resultDelivered
	}

	m.alertsTotal.WithLabelValues(kind.String(), result).Inc()
}

// SetAlertActive mirrors the engine state.
func (m *Metrics) SetAlertActive(active bool) {
	if active {
		m.alertActive.Set(1)

		return
	}

	m.alertActive.Set(0)
}
