// Copyright 2024 Mmate Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package messagebroker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/xrtools/messagebroker/contracts"
	"github.com/xrtools/messagebroker/internal/rabbitmq"
	"github.com/xrtools/messagebroker/metrics"
)

const (
	// DefaultFanoutExchange is the broker's predeclared fanout exchange.
	DefaultFanoutExchange = "amq.fanout"

	// defaultExchange is the nameless direct exchange routing by queue name.
	defaultExchange = ""

	kindConsumer = "consumer"
	kindFanout   = "fanout"
)

// Dialer opens broker connections. Replace it with WithDialer to publish
// through something other than amqp091-go.
type Dialer = rabbitmq.Dialer

// Publisher sends envelopes to a RabbitMQ broker. It connects on the first
// send and then reuses that connection and its single channel until Close.
// A Publisher is safe for concurrent use; sends are serialized.
type Publisher struct {
	params    ConnectionParams
	conn      *rabbitmq.ConnectionManager
	publisher *rabbitmq.Publisher

	logger         *slog.Logger
	debugLogger    DebugLogger
	debug          bool
	fanoutExchange string
	metrics        *metrics.Collector
}

// New validates params and creates a Publisher. No connection is made until
// the first send.
func New(params Params, options ...Option) (*Publisher, error) {
	cp, err := NormalizeParams(params)
	if err != nil {
		return nil, err
	}

	cfg := &publisherConfig{
		logger:         slog.Default(),
		fanoutExchange: DefaultFanoutExchange,
	}
	for _, opt := range options {
		opt(cfg)
	}
	if cfg.debugLogger == nil {
		cfg.debugLogger = NewSlogDebugLogger(cfg.logger)
	}

	connOpts := []rabbitmq.ConnectionOption{
		rabbitmq.WithLogger(cfg.logger),
		rabbitmq.WithDialer(cfg.dialer),
		rabbitmq.WithConnectionName(cfg.connectionName),
	}
	if cfg.heartbeat > 0 {
		connOpts = append(connOpts, rabbitmq.WithHeartbeat(cfg.heartbeat))
	}
	if cp.TLS != nil {
		connOpts = append(connOpts, rabbitmq.WithTLS(cp.TLS, cp.Host))
	}
	if cfg.metrics != nil {
		connOpts = append(connOpts, rabbitmq.WithStateListener(cfg.metrics))
	}

	conn := rabbitmq.NewConnectionManager(cp.URI(), connOpts...)

	return &Publisher{
		params:         cp,
		conn:           conn,
		publisher:      rabbitmq.NewPublisher(conn),
		logger:         cfg.logger,
		debugLogger:    cfg.debugLogger,
		debug:          cfg.debug,
		fanoutExchange: cfg.fanoutExchange,
		metrics:        cfg.metrics,
	}, nil
}

// NewFromURL creates a Publisher from a broker URL.
func NewFromURL(url string, options ...Option) (*Publisher, error) {
	return New(Params{URL: url}, options...)
}

// SendToConsumer publishes method and data to the queue named consumer
// through the default exchange.
func (p *Publisher) SendToConsumer(ctx context.Context, consumer, method string, data any, opts ...SendOption) error {
	const op = "Publisher.SendToConsumer"

	so := p.sendOptions(opts)
	if consumer == "" {
		return p.fail(op, so, &Error{Kind: ErrPrecondition, Op: op, Err: ErrMissingConsumer})
	}

	return p.send(ctx, op, kindConsumer, defaultExchange, consumer, method, data, so)
}

// SendToAll publishes method and data to the fanout exchange so every bound
// queue receives a copy. The exchange defaults to amq.fanout.
func (p *Publisher) SendToAll(ctx context.Context, method string, data any, opts ...SendOption) error {
	const op = "Publisher.SendToAll"

	so := p.sendOptions(opts)
	exchange := p.fanoutExchange
	if so.exchange != "" {
		exchange = so.exchange
	}

	return p.send(ctx, op, kindFanout, exchange, "", method, data, so)
}

func (p *Publisher) send(ctx context.Context, op, kind, exchange, routingKey, method string, data any, so sendOptions) error {
	body, err := p.buildEnvelope(method, data)
	if err != nil {
		return p.fail(op, so, &Error{Kind: ErrPrecondition, Op: op, Err: err})
	}

	start := time.Now()
	err = p.publisher.Publish(ctx, exchange, routingKey, p.publisher.NewPublishing(method, body))
	p.metrics.ObservePublish(kind, exchange, err, time.Since(start))
	if err != nil {
		return p.fail(op, so, &Error{Kind: classify(err), Op: op, Err: err})
	}

	p.logger.Debug("message published",
		"exchange", exchange,
		"routingKey", routingKey,
		"method", method,
		"size", len(body))

	return nil
}

func (p *Publisher) buildEnvelope(method string, data any) ([]byte, error) {
	envelope, err := contracts.NewEnvelope(method, data)
	if err != nil {
		return nil, err
	}
	return envelope.Marshal()
}

func classify(err error) error {
	switch {
	case errors.Is(err, rabbitmq.ErrConnectionClosed):
		return ErrClosed
	case rabbitmq.IsConnectFailure(err):
		return ErrConnectFailure
	default:
		return ErrPublishFailure
	}
}

// fail reports err through the debug logger when debug output was requested.
func (p *Publisher) fail(op string, so sendOptions, err *Error) error {
	if so.debug {
		msg := err.Kind.Error()
		if err.Err != nil {
			msg = err.Err.Error()
		}
		p.debugLogger.Log(msg, op)
	}
	return err
}

func (p *Publisher) sendOptions(opts []SendOption) sendOptions {
	so := sendOptions{debug: p.debug}
	for _, opt := range opts {
		opt(&so)
	}
	return so
}

// Params returns the normalized connection parameters.
func (p *Publisher) Params() ConnectionParams {
	return p.params
}

// Connect establishes the broker connection if it is not open yet. Sends
// connect implicitly, so calling it is only needed to fail fast.
func (p *Publisher) Connect() error {
	if err := p.conn.Connect(); err != nil {
		return &Error{Kind: classify(err), Op: "Publisher.Connect", Err: err}
	}
	return nil
}

// Connected reports whether a broker connection has been established.
func (p *Publisher) Connected() bool {
	return p.conn.IsConnected()
}

// Healthy reports whether the publisher holds an open broker connection.
// It turns false when the broker drops the connection.
func (p *Publisher) Healthy() bool {
	return p.conn.Healthy()
}

// Close releases the connection. Sends after Close fail with ErrClosed.
func (p *Publisher) Close() error {
	wasConnected := p.conn.IsConnected()
	if err := p.conn.Close(); err != nil {
		return &Error{Kind: ErrConnectFailure, Op: "Publisher.Close", Err: err}
	}
	if wasConnected {
		p.metrics.OnClosed()
	}
	return nil
}

// publisherConfig holds publisher configuration
type publisherConfig struct {
	logger         *slog.Logger
	debugLogger    DebugLogger
	debug          bool
	fanoutExchange string
	dialer         Dialer
	heartbeat      time.Duration
	connectionName string
	metrics        *metrics.Collector
}

// Option configures a Publisher
type Option func(*publisherConfig)

// WithLogger sets the logger for the publisher and its connection
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *publisherConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithDebugLogger sets the sink for debug diagnostics. The default writes
// to the publisher's logger.
func WithDebugLogger(logger DebugLogger) Option {
	return func(cfg *publisherConfig) {
		cfg.debugLogger = logger
	}
}

// WithDebugLogging enables debug diagnostics for every send.
func WithDebugLogging(enabled bool) Option {
	return func(cfg *publisherConfig) {
		cfg.debug = enabled
	}
}

// WithFanoutExchange changes the exchange used by SendToAll.
func WithFanoutExchange(name string) Option {
	return func(cfg *publisherConfig) {
		if name != "" {
			cfg.fanoutExchange = name
		}
	}
}

// WithDialer replaces the transport used to connect to the broker.
func WithDialer(dialer Dialer) Option {
	return func(cfg *publisherConfig) {
		cfg.dialer = dialer
	}
}

// WithHeartbeat sets the heartbeat interval negotiated with the broker.
func WithHeartbeat(heartbeat time.Duration) Option {
	return func(cfg *publisherConfig) {
		cfg.heartbeat = heartbeat
	}
}

// WithConnectionName sets the connection name reported to the broker.
func WithConnectionName(name string) Option {
	return func(cfg *publisherConfig) {
		cfg.connectionName = name
	}
}

// WithMetrics records publish and connect outcomes in collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(cfg *publisherConfig) {
		cfg.metrics = collector
	}
}

// sendOptions holds per-send settings
type sendOptions struct {
	debug    bool
	exchange string
}

// SendOption configures a single send
type SendOption func(*sendOptions)

// SendWithDebug reports a failure of this send through the debug logger.
func SendWithDebug() SendOption {
	return func(o *sendOptions) {
		o.debug = true
	}
}

// SendWithExchange overrides the fanout exchange. It has no effect on
// SendToConsumer.
func SendWithExchange(name string) SendOption {
	return func(o *sendOptions) {
		o.exchange = name
	}
}
