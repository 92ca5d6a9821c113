package boot

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "usbboot"

type Metrics struct {
	FramesReceived        *prometheus.CounterVec
	FramesSent            *prometheus.CounterVec
	TransferErrors        *prometheus.CounterVec
	BytesServed           *prometheus.CounterVec
	ActiveTransactions    prometheus.Gauge
	TransactionsCompleted *prometheus.CounterVec
}

// NewMetrics creates the scanner metrics and registers them with reg, if any.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_received_total",
			Help:      "Inbound frames by classification.",
		}, []string{"kind"}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_sent_total",
			Help:      "Outbound frames confirmed by the transport.",
		}, []string{"kind"}),
		TransferErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transfer_errors_total",
			Help:      "Failed transport operations.",
		}, []string{"op"}),
		BytesServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "bytes_served_total",
			Help:      "Boot file bytes sent in TFTP data blocks.",
		}, []string{"file"}),
		ActiveTransactions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_transactions",
			Help:      "Ports with a boot in progress.",
		}),
		TransactionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transactions_completed_total",
			Help:      "Removed transactions by reason.",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.FramesReceived,
			m.FramesSent,
			m.TransferErrors,
			m.BytesServed,
			m.ActiveTransactions,
			m.TransactionsCompleted,
		)
	}
	return m
}
