package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	ReservationsTotal   *prometheus.CounterVec   // result=created|no_capacity|already_reserved|error
	TransitionsTotal    *prometheus.CounterVec   // event=drop_off|pickup|cancel|expire, result
	PickupFailuresTotal *prometheus.CounterVec   // reason
	ReclaimedTotal      *prometheus.CounterVec   // from=ACTIVE|DELIVERED
	SweepsTotal         prometheus.Counter
	OpLatencyMS         *prometheus.HistogramVec // op
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReservationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "locker_reservations_total",
				Help: "Reserve attempts by result",
			},
			[]string{"result"},
		),
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "locker_transitions_total",
				Help: "Reservation lifecycle transitions by event and result",
			},
			[]string{"event", "result"},
		),
		PickupFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "locker_pickup_failures_total",
				Help: "Rejected pickup attempts by reason",
			},
			[]string{"reason"},
		),
		ReclaimedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "locker_reclaimed_total",
				Help: "Reservations expired by the reclaimer, by status before expiry",
			},
			[]string{"from"},
		),
		SweepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "locker_reclaim_sweeps_total",
			Help: "Completed reclaim sweeps",
		}),
		OpLatencyMS: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "locker_op_latency_ms",
				Help:    "Latency of reservation operations (ms)",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1ms .. ~2048ms
			},
			[]string{"op"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.ReservationsTotal,
			m.TransitionsTotal,
			m.PickupFailuresTotal,
			m.ReclaimedTotal,
			m.SweepsTotal,
			m.OpLatencyMS,
		)
	}

	return m
}

func (m *Metrics) ObserveLatency(op string, start time.Time) {
	if m == nil {
		return
	}
	m.OpLatencyMS.WithLabelValues(op).Observe(float64(time.Since(start).Milliseconds()))
}

func (m *Metrics) IncReservation(result string) {
	if m == nil {
		return
	}
	m.ReservationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncTransition(event, result string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(event, result).Inc()
}

func (m *Metrics) IncPickupFailure(reason string) {
	if m == nil {
		return
	}
	m.PickupFailuresTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncReclaimed(from string) {
	if m == nil {
		return
	}
	m.ReclaimedTotal.WithLabelValues(from).Inc()
}

func (m *Metrics) IncSweep() {
	if m == nil {
		return
	}
	m.SweepsTotal.Inc()
}
