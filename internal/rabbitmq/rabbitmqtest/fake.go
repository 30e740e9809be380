// Package rabbitmqtest provides in-memory fakes of the rabbitmq transport
// seam for tests.
package rabbitmqtest

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xrtools/messagebroker/internal/rabbitmq"
)

// Published records one PublishWithContext call.
type Published struct {
	Exchange   string
	RoutingKey string
	Mandatory  bool
	Immediate  bool
	Msg        amqp.Publishing
}

// Channel is a fake rabbitmq.Channel.
type Channel struct {
	mu         sync.Mutex
	published  []Published
	closed     bool
	PublishErr error
}

func (c *Channel) PublishWithContext(_ context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.PublishErr != nil {
		return c.PublishErr
	}
	c.published = append(c.published, Published{
		Exchange:   exchange,
		RoutingKey: key,
		Mandatory:  mandatory,
		Immediate:  immediate,
		Msg:        msg,
	})
	return nil
}

func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Published returns a copy of all recorded publishes.
func (c *Channel) Published() []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Published, len(c.published))
	copy(out, c.published)
	return out
}

// Closed reports whether Close was called.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Connection is a fake rabbitmq.Connection handing out one Channel.
type Connection struct {
	mu         sync.Mutex
	channel    *Channel
	channels   int
	closed     bool
	ChannelErr error
}

func (c *Connection) Channel() (rabbitmq.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ChannelErr != nil {
		return nil, c.ChannelErr
	}
	c.channels++
	return c.channel, nil
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// IsClosed reports whether the connection was closed, by Close or by
// the broker.
func (c *Connection) IsClosed() bool {
	return c.Closed()
}

// Channels returns how many channels were opened.
func (c *Connection) Channels() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channels
}

// Closed reports whether Close was called.
func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Dialer is a fake rabbitmq.Dialer. Set Err to make the next dials fail.
type Dialer struct {
	mu      sync.Mutex
	calls   int
	uris    []string
	configs []amqp.Config

	Err  error
	Conn *Connection
}

// NewDialer returns a dialer that always hands out the same connection
// and channel.
func NewDialer() *Dialer {
	return &Dialer{Conn: &Connection{channel: &Channel{}}}
}

func (d *Dialer) Dial(uri string, config amqp.Config) (rabbitmq.Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls++
	d.uris = append(d.uris, uri)
	d.configs = append(d.configs, config)
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Conn, nil
}

// SetErr changes the error returned by subsequent dials.
func (d *Dialer) SetErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Err = err
}

// Calls returns the number of Dial invocations.
func (d *Dialer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// LastURI returns the URI of the most recent dial.
func (d *Dialer) LastURI() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.uris) == 0 {
		return ""
	}
	return d.uris[len(d.uris)-1]
}

// LastConfig returns the config of the most recent dial.
func (d *Dialer) LastConfig() amqp.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.configs) == 0 {
		return amqp.Config{}
	}
	return d.configs[len(d.configs)-1]
}

// Channel returns the channel handed out by the dialer's connection.
func (d *Dialer) Channel() *Channel {
	return d.Conn.channel
}
