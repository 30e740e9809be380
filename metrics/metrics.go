// Package metrics exposes Prometheus collectors for publishers.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	KindDimension     = "kind"
	ExchangeDimension = "exchange"
	StatusDimension   = "status"
	ResultDimension   = "result"

	StatusSuccess = "success"
	StatusError   = "error"
)

// Collector records publish and connect outcomes. A nil *Collector is valid
// and records nothing.
type Collector struct {
	MessagesPublished *prometheus.CounterVec
	PublishDuration   *prometheus.HistogramVec
	ConnectAttempts   *prometheus.CounterVec
	Connected         prometheus.Gauge
}

// NewCollector creates unregistered collectors under namespace.
func NewCollector(namespace string) *Collector {
	return &Collector{
		MessagesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_published_total",
				Help:      "Total number of messages handed to the broker client",
			},
			[]string{KindDimension, ExchangeDimension, StatusDimension}, // kind: "consumer", "fanout"
		),
		PublishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "publish_duration_seconds",
				Help:      "Time taken to connect if needed and publish one message",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{KindDimension},
		),
		ConnectAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connect_attempts_total",
				Help:      "Total number of broker connection attempts",
			},
			[]string{ResultDimension},
		),
		Connected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connected",
				Help:      "1 while the publisher holds an open broker connection",
			},
		),
	}
}

// Register registers all collectors with reg. Collectors that are already
// registered are not an error.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, collector := range []prometheus.Collector{
		c.MessagesPublished,
		c.PublishDuration,
		c.ConnectAttempts,
		c.Connected,
	} {
		if err := reg.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

// ObservePublish records the outcome of one send.
func (c *Collector) ObservePublish(kind, exchange string, err error, elapsed time.Duration) {
	if c == nil {
		return
	}

	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	c.MessagesPublished.WithLabelValues(kind, exchange, status).Inc()
	c.PublishDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// OnConnected records a successful connection attempt.
func (c *Collector) OnConnected() {
	if c == nil {
		return
	}
	c.ConnectAttempts.WithLabelValues(StatusSuccess).Inc()
	c.Connected.Set(1)
}

// OnConnectFailed records a failed connection attempt.
func (c *Collector) OnConnectFailed(error) {
	if c == nil {
		return
	}
	c.ConnectAttempts.WithLabelValues(StatusError).Inc()
}

// OnClosed records that the connection was released.
func (c *Collector) OnClosed() {
	if c == nil {
		return
	}
	c.Connected.Set(0)
}
