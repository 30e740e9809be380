package rabbitmq

import (
	"context"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	contentTypeJSON = "application/json"
	contentEncoding = "utf-8"
)

// Publisher handles message publishing to RabbitMQ over the manager's
// single channel. It does not wait for broker confirmations.
type Publisher struct {
	cm  *ConnectionManager
	now func() time.Time
}

// NewPublisher creates a new publisher
func NewPublisher(cm *ConnectionManager) *Publisher {
	return &Publisher{
		cm:  cm,
		now: time.Now,
	}
}

// NewPublishing wraps a JSON body. The message type is set to method so
// consumers can route without decoding the body.
func (p *Publisher) NewPublishing(method string, body []byte) amqp.Publishing {
	return amqp.Publishing{
		ContentType:     contentTypeJSON,
		ContentEncoding: contentEncoding,
		MessageId:       uuid.NewString(),
		Timestamp:       p.now(),
		Type:            method,
		Body:            body,
	}
}

// Publish connects if needed and publishes msg to exchange with routingKey.
// Connection failures are returned as *ConnectionError or *ChannelError,
// publish failures as *PublishError.
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	return p.cm.WithChannel(func(ch Channel) error {
		if err := ch.PublishWithContext(
			ctx,
			exchange,
			routingKey,
			false, // mandatory
			false, // immediate
			msg,
		); err != nil {
			return &PublishError{
				Exchange:   exchange,
				RoutingKey: routingKey,
				Err:        err,
				Timestamp:  p.now(),
			}
		}
		return nil
	})
}

// Close closes the underlying connection manager.
func (p *Publisher) Close() error {
	return p.cm.Close()
}
