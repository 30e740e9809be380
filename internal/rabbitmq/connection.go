package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultHeartbeat = 10 * time.Second
	defaultLocale    = "en_US"
)

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Connection is the subset of *amqp.Connection the manager depends on.
type Connection interface {
	Channel() (Channel, error)
	IsClosed() bool
	Close() error
}

// Dialer opens broker connections.
type Dialer interface {
	Dial(uri string, config amqp.Config) (Connection, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(uri string, config amqp.Config) (Connection, error)

// Dial calls f(uri, config).
func (f DialerFunc) Dial(uri string, config amqp.Config) (Connection, error) {
	return f(uri, config)
}

// AMQPDialer dials real brokers through amqp091-go.
var AMQPDialer Dialer = DialerFunc(func(uri string, config amqp.Config) (Connection, error) {
	conn, err := amqp.DialConfig(uri, config)
	if err != nil {
		return nil, err
	}
	return amqpConnection{conn}, nil
})

type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) Channel() (Channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// State is the lifecycle state of a ConnectionManager.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConnectionStateListener receives connection state change notifications.
// Listeners are called synchronously while the manager lock is held and
// must not call back into the manager.
type ConnectionStateListener interface {
	OnConnected()
	OnConnectFailed(err error)
}

// ConnectionManager owns one lazily established connection and the single
// channel opened on it. Once connected it is never re-dialed; a failed
// attempt leaves it disconnected so the next call dials from scratch.
type ConnectionManager struct {
	url        string
	dialer     Dialer
	tlsOptions *TLSOptions
	serverName string
	heartbeat  time.Duration
	connName   string
	logger     *slog.Logger

	mu       sync.Mutex
	state    State
	conn     Connection
	channel  Channel
	attempts int

	stateListeners []ConnectionStateListener
}

// ConnectionOption configures the ConnectionManager
type ConnectionOption func(*ConnectionManager)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ConnectionOption {
	return func(cm *ConnectionManager) {
		if logger != nil {
			cm.logger = logger
		}
	}
}

// WithDialer replaces the transport used to open connections.
func WithDialer(dialer Dialer) ConnectionOption {
	return func(cm *ConnectionManager) {
		if dialer != nil {
			cm.dialer = dialer
		}
	}
}

// WithTLS makes the manager dial over TLS, verifying the broker as serverName.
func WithTLS(options *TLSOptions, serverName string) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.tlsOptions = options
		cm.serverName = serverName
	}
}

// WithHeartbeat sets the heartbeat interval negotiated with the broker.
func WithHeartbeat(heartbeat time.Duration) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.heartbeat = heartbeat
	}
}

// WithConnectionName sets the client-provided connection name shown in the
// broker management UI.
func WithConnectionName(name string) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.connName = name
	}
}

// WithStateListener registers a listener at construction time.
func WithStateListener(listener ConnectionStateListener) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.AddStateListener(listener)
	}
}

// NewConnectionManager creates a manager for url. Nothing is dialed until
// the first call to Connect or WithChannel.
func NewConnectionManager(url string, options ...ConnectionOption) *ConnectionManager {
	cm := &ConnectionManager{
		url:       url,
		dialer:    AMQPDialer,
		heartbeat: defaultHeartbeat,
		logger:    slog.Default(),
	}

	for _, opt := range options {
		opt(cm)
	}

	return cm
}

// Connect establishes the connection and channel if not already done.
func (cm *ConnectionManager) Connect() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	return cm.ensureConnected()
}

// WithChannel runs fn with the cached channel, connecting first if needed.
// Calls are serialized so the channel is never used concurrently.
func (cm *ConnectionManager) WithChannel(fn func(Channel) error) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if err := cm.ensureConnected(); err != nil {
		return err
	}
	return fn(cm.channel)
}

// ensureConnected must be called with cm.mu held.
func (cm *ConnectionManager) ensureConnected() error {
	switch cm.state {
	case StateConnected:
		return nil
	case StateClosed:
		return ErrConnectionClosed
	}

	cm.attempts++

	config, err := cm.dialConfig()
	if err != nil {
		return cm.connectFailed(&ConnectionError{
			Op:        "tls",
			URL:       SanitizeURL(cm.url),
			Err:       err,
			Timestamp: time.Now(),
			Attempts:  cm.attempts,
		})
	}

	conn, err := cm.dialer.Dial(cm.url, config)
	if err != nil {
		return cm.connectFailed(&ConnectionError{
			Op:        "dial",
			URL:       SanitizeURL(cm.url),
			Err:       err,
			Timestamp: time.Now(),
			Attempts:  cm.attempts,
		})
	}

	ch, err := conn.Channel()
	if err != nil {
		// The half-open connection is dropped; the next attempt dials again.
		_ = conn.Close()
		return cm.connectFailed(&ChannelError{
			Op:        "open",
			Err:       fmt.Errorf("%w: %w", ErrChannelCreationFailed, err),
			Timestamp: time.Now(),
		})
	}

	cm.conn = conn
	cm.channel = ch
	cm.state = StateConnected

	cm.logger.Info("connected to RabbitMQ",
		"url", SanitizeURL(cm.url),
		"attempts", cm.attempts)

	for _, listener := range cm.stateListeners {
		listener.OnConnected()
	}

	return nil
}

func (cm *ConnectionManager) connectFailed(err error) error {
	cm.logger.Debug("failed to connect to RabbitMQ",
		"url", SanitizeURL(cm.url),
		"error", err)

	for _, listener := range cm.stateListeners {
		listener.OnConnectFailed(err)
	}
	return err
}

func (cm *ConnectionManager) dialConfig() (amqp.Config, error) {
	config := amqp.Config{
		Heartbeat:  cm.heartbeat,
		Locale:     defaultLocale,
		Properties: amqp.NewConnectionProperties(),
	}
	if cm.connName != "" {
		config.Properties.SetClientConnectionName(cm.connName)
	}

	if cm.tlsOptions != nil {
		tlsConfig, err := cm.tlsOptions.ClientConfig(cm.serverName)
		if err != nil {
			return amqp.Config{}, err
		}
		config.TLSClientConfig = tlsConfig
	}

	return config, nil
}

// State returns the current lifecycle state.
func (cm *ConnectionManager) State() State {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.state
}

// IsConnected returns the connection status
func (cm *ConnectionManager) IsConnected() bool {
	return cm.State() == StateConnected
}

// Healthy reports whether the manager is connected and the broker has not
// dropped the connection since.
func (cm *ConnectionManager) Healthy() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.state == StateConnected && cm.conn != nil && !cm.conn.IsClosed()
}

// Attempts returns how many times a connection has been attempted.
func (cm *ConnectionManager) Attempts() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.attempts
}

// Close closes the channel and the connection. The manager cannot be
// reused afterwards.
func (cm *ConnectionManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.state == StateClosed {
		return nil
	}

	wasConnected := cm.state == StateConnected
	cm.state = StateClosed

	if !wasConnected {
		return nil
	}

	var err error
	if cm.channel != nil {
		err = cm.channel.Close()
		cm.channel = nil
	}
	if cm.conn != nil {
		if closeErr := cm.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		cm.conn = nil
	}

	cm.logger.Info("connection to RabbitMQ closed", "url", SanitizeURL(cm.url))

	return err
}

// AddStateListener adds a connection state listener
func (cm *ConnectionManager) AddStateListener(listener ConnectionStateListener) {
	if listener == nil {
		return
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.stateListeners = append(cm.stateListeners, listener)
}
