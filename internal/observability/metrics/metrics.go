package metrics

import "github.com/prometheus/client_golang/prometheus"

// TurnMetrics exposes counters/histograms for the conversation flow and
// the calendar backend.
type TurnMetrics struct {
	turnsTotal     *prometheus.CounterVec
	fallbackTotal  prometheus.Counter
	calendarErrors *prometheus.CounterVec
	bookingsTotal  *prometheus.CounterVec
	turnLatency    *prometheus.HistogramVec
}

func NewTurnMetrics(reg prometheus.Registerer) *TurnMetrics {
	m := &TurnMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "figaro",
			Subsystem: "flow",
			Name:      "turns_total",
			Help:      "Total conversation turns handled",
		}, []string{"step", "outcome"}),
		fallbackTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "figaro",
			Subsystem: "flow",
			Name:      "fallback_total",
			Help:      "Total turns that fell through to the fallback handler",
		}),
		calendarErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "figaro",
			Subsystem: "calendar",
			Name:      "errors_total",
			Help:      "Total failed Google Calendar calls",
		}, []string{"op"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "figaro",
			Subsystem: "booking",
			Name:      "operations_total",
			Help:      "Total booking operations by kind and result",
		}, []string{"op", "result"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "figaro",
			Subsystem: "flow",
			Name:      "turn_latency_seconds",
			Help:      "Latency of a full conversation turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.fallbackTotal, m.calendarErrors, m.bookingsTotal, m.turnLatency)
	return m
}

func (m *TurnMetrics) ObserveTurn(step, outcome string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(step, outcome).Inc()
}

func (m *TurnMetrics) ObserveFallback() {
	if m == nil {
		return
	}
	m.fallbackTotal.Inc()
}

func (m *TurnMetrics) ObserveCalendarError(op string) {
	if m == nil {
		return
	}
	m.calendarErrors.WithLabelValues(op).Inc()
}

func (m *TurnMetrics) ObserveBooking(op, result string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(op, result).Inc()
}

func (m *TurnMetrics) ObserveTurnLatency(step string, seconds float64) {
	if m == nil {
		return
	}
	m.turnLatency.WithLabelValues(step).Observe(seconds)
}
