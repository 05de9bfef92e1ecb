package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry. All methods are safe on a nil receiver
// so services can run without metrics.
type Collector struct {
	reg *prometheus.Registry

	ShiftsCreated     prometheus.Counter
	ShiftConflicts    *prometheus.CounterVec // resource: bus|driver
	ShiftTransitions  *prometheus.CounterVec // to: active|completed|cancelled
	Bookings          *prometheus.CounterVec // result: booked|cancelled|rejected
	GPSLogs           prometheus.Counter
	GPSPurged         prometheus.Counter
	ETAUpdates        prometheus.Counter
	BroadcastErrors   prometheus.Counter
	ActiveSimulations prometheus.Gauge
	BroadcastDuration prometheus.Histogram
	NotificationsSent prometheus.Counter
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ShiftsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ebus_shifts_created_total",
			Help: "Total shifts created.",
		}),
		ShiftConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ebus_shift_conflicts_total",
			Help: "Shift creations rejected because of an overlapping shift.",
		}, []string{"resource"}),
		ShiftTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ebus_shift_transitions_total",
			Help: "Shift status transitions by target status.",
		}, []string{"to"}),
		Bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ebus_bookings_total",
			Help: "Seat booking outcomes.",
		}, []string{"result"}),
		GPSLogs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ebus_gps_logs_total",
			Help: "GPS samples recorded.",
		}),
		GPSPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ebus_gps_logs_purged_total",
			Help: "GPS samples removed by retention.",
		}),
		ETAUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ebus_eta_updates_total",
			Help: "Stop ETA values pushed.",
		}),
		BroadcastErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ebus_broadcast_errors_total",
			Help: "Realtime broadcast writes that failed.",
		}),
		ActiveSimulations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ebus_active_simulations",
			Help: "Number of running position simulations.",
		}),
		BroadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ebus_broadcast_duration_seconds",
			Help:    "Duration of a realtime broadcast write.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ebus_notifications_sent_total",
			Help: "Push notifications handed to the push provider.",
		}),
	}

	reg.MustRegister(
		c.ShiftsCreated, c.ShiftConflicts, c.ShiftTransitions,
		c.Bookings, c.GPSLogs, c.GPSPurged, c.ETAUpdates,
		c.BroadcastErrors, c.ActiveSimulations, c.BroadcastDuration,
		c.NotificationsSent,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

func (c *Collector) ShiftCreated() {
	if c != nil {
		c.ShiftsCreated.Inc()
	}
}

func (c *Collector) ShiftConflict(resource string) {
	if c != nil {
		c.ShiftConflicts.WithLabelValues(resource).Inc()
	}
}

func (c *Collector) ShiftTransition(to string) {
	if c != nil {
		c.ShiftTransitions.WithLabelValues(to).Inc()
	}
}

func (c *Collector) Booking(result string) {
	if c != nil {
		c.Bookings.WithLabelValues(result).Inc()
	}
}

func (c *Collector) GPSLogged() {
	if c != nil {
		c.GPSLogs.Inc()
	}
}

func (c *Collector) GPSPurgedAdd(n int64) {
	if c != nil && n > 0 {
		c.GPSPurged.Add(float64(n))
	}
}

func (c *Collector) ETAUpdated() {
	if c != nil {
		c.ETAUpdates.Inc()
	}
}

func (c *Collector) BroadcastFailed() {
	if c != nil {
		c.BroadcastErrors.Inc()
	}
}

func (c *Collector) BroadcastObserve(seconds float64) {
	if c != nil {
		c.BroadcastDuration.Observe(seconds)
	}
}

func (c *Collector) SimulationsRunning(n int) {
	if c != nil {
		c.ActiveSimulations.Set(float64(n))
	}
}

func (c *Collector) NotificationSent() {
	if c != nil {
		c.NotificationsSent.Inc()
	}
}
