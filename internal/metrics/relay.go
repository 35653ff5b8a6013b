package metrics

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
)

// Results recorded on SenderMessages.
const (
	ResultAccepted  = "accepted"
	ResultMalformed = "malformed"
)

// RelayMetrics holds Prometheus metrics for the registry and its streams.
// A nil *RelayMetrics is valid and records nothing.
type RelayMetrics struct {
	Listeners        prometheus.Gauge
	Senders          prometheus.Gauge
	Average          prometheus.Gauge
	Broadcasts       prometheus.Counter
	DroppedListeners prometheus.Counter
	SenderMessages   *prometheus.CounterVec
	StreamsAccepted  *prometheus.CounterVec
}

// NewRelayMetrics creates and registers relay metrics on the given registry.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		Listeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "listeners",
			Help:      "Number of registered listener streams.",
		}),
		Senders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "senders",
			Help:      "Number of senders currently contributing a value.",
		}),
		Average: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "average",
			Help:      "Most recently broadcast average.",
		}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Total number of broadcasts issued.",
		}),
		DroppedListeners: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_listeners_total",
			Help:      "Listeners deregistered because a broadcast could not be delivered.",
		}),
		SenderMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sender_messages_total",
			Help:      "Total number of sender messages, by result.",
		}, []string{"result"}),
		StreamsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_accepted_total",
			Help:      "Total number of accepted websocket streams, by role.",
		}, []string{"role"}),
	}

	reg.MustRegister(
		m.Listeners,
		m.Senders,
		m.Average,
		m.Broadcasts,
		m.DroppedListeners,
		m.SenderMessages,
		m.StreamsAccepted,
	)
	return m
}

func (m *RelayMetrics) SetPopulation(listeners, senders int) {
	if m == nil {
		return
	}
	m.Listeners.Set(float64(listeners))
	m.Senders.Set(float64(senders))
}

// ObserveBroadcast counts a broadcast and records its average. Averages
// beyond float64 precision are rounded to the nearest representable value.
func (m *RelayMetrics) ObserveBroadcast(average *big.Int) {
	if m == nil {
		return
	}
	m.Broadcasts.Inc()
	f, _ := new(big.Float).SetInt(average).Float64()
	m.Average.Set(f)
}

func (m *RelayMetrics) ListenerDropped() {
	if m == nil {
		return
	}
	m.DroppedListeners.Inc()
}

func (m *RelayMetrics) SenderMessage(result string) {
	if m == nil {
		return
	}
	m.SenderMessages.WithLabelValues(result).Inc()
}

func (m *RelayMetrics) StreamAccepted(role string) {
	if m == nil {
		return
	}
	m.StreamsAccepted.WithLabelValues(role).Inc()
}
