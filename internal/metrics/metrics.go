package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	frames        *prometheus.CounterVec
	appends       *prometheus.CounterVec
	appendLatency prometheus.Histogram
	alerts        *prometheus.CounterVec
	listFailures  prometheus.Counter
	storeUp       prometheus.Gauge
	stationPpm    *prometheus.GaugeVec
	mqttMessages  *prometheus.CounterVec
	serialReopens prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ethylene_frames_total",
			Help: "Sensor lines processed, by pipeline outcome.",
		}, []string{"outcome"}),
		appends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ethylene_store_appends_total",
			Help: "Reading store appends, by result.",
		}, []string{"result"}),
		appendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ethylene_store_append_seconds",
			Help:    "Latency of reading store appends.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ethylene_alert_decisions_total",
			Help: "Cooldown gate decisions for high readings, by decision.",
		}, []string{"decision"}),
		listFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ethylene_store_list_failures_total",
			Help: "Failed reads of recent readings from the store.",
		}),
		storeUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ethylene_store_up",
			Help: "1 when the last store read succeeded, 0 otherwise.",
		}),
		stationPpm: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ethylene_station_ppm",
			Help: "Current ethylene concentration per station.",
		}, []string{"station_id"}),
		mqttMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ethylene_mqtt_messages_total",
			Help: "Reading messages received over MQTT, by result.",
		}, []string{"result"}),
		serialReopens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ethylene_serial_reopens_total",
			Help: "Times the serial device was reopened after a failure.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.frames, m.appends, m.appendLatency, m.alerts, m.listFailures,
		m.storeUp, m.stationPpm, m.mqttMessages, m.serialReopens,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// InitFrames creates the frame series for outcomes at zero so they are
// exported before the first line arrives.
func (m *Metrics) InitFrames(outcomes ...string) {
	for _, o := range outcomes {
		m.frames.WithLabelValues(o)
	}
}

func (m *Metrics) IncFrame(outcome string) {
	m.frames.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveAppend(seconds float64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.appends.WithLabelValues(result).Inc()
	m.appendLatency.Observe(seconds)
}

func (m *Metrics) IncAlert(decision string) {
	m.alerts.WithLabelValues(decision).Inc()
}

// SetStoreUp records the outcome of the last store read.
func (m *Metrics) SetStoreUp(ok bool) {
	if ok {
		m.storeUp.Set(1)
		return
	}
	m.listFailures.Inc()
	m.storeUp.Set(0)
}

func (m *Metrics) SetStationPpm(stationID string, ppm float64) {
	m.stationPpm.WithLabelValues(stationID).Set(ppm)
}

func (m *Metrics) IncMQTTMessage(result string) {
	m.mqttMessages.WithLabelValues(result).Inc()
}

func (m *Metrics) IncSerialReopen() {
	m.serialReopens.Inc()
}
