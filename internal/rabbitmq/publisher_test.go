package rabbitmq_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xrtools/messagebroker/internal/rabbitmq"
	"github.com/xrtools/messagebroker/internal/rabbitmq/rabbitmqtest"
)

func TestPublisher(t *testing.T) {
	t.Run("NewPublishing sets JSON properties", func(t *testing.T) {
		publisher := rabbitmq.NewPublisher(rabbitmq.NewConnectionManager(testURL))

		msg := publisher.NewPublishing("create", []byte(`{"method":"create","data":1}`))

		assert.Equal(t, "application/json", msg.ContentType)
		assert.Equal(t, "utf-8", msg.ContentEncoding)
		assert.Equal(t, "create", msg.Type)
		assert.False(t, msg.Timestamp.IsZero())
		_, err := uuid.Parse(msg.MessageId)
		assert.NoError(t, err)
	})

	t.Run("Publish connects lazily and publishes", func(t *testing.T) {
		dialer := rabbitmqtest.NewDialer()
		publisher := rabbitmq.NewPublisher(rabbitmq.NewConnectionManager(testURL, rabbitmq.WithDialer(dialer)))

		msg := publisher.NewPublishing("create", []byte(`{}`))
		require.NoError(t, publisher.Publish(context.Background(), "", "orders", msg))
		require.NoError(t, publisher.Publish(context.Background(), "amq.fanout", "", msg))

		published := dialer.Channel().Published()
		require.Len(t, published, 2)
		assert.Equal(t, "", published[0].Exchange)
		assert.Equal(t, "orders", published[0].RoutingKey)
		assert.False(t, published[0].Mandatory)
		assert.False(t, published[0].Immediate)
		assert.Equal(t, "amq.fanout", published[1].Exchange)
		assert.Equal(t, 1, dialer.Calls())
	})

	t.Run("Publish returns connection errors without publishing", func(t *testing.T) {
		dialer := rabbitmqtest.NewDialer()
		dialer.SetErr(errors.New("refused"))
		publisher := rabbitmq.NewPublisher(rabbitmq.NewConnectionManager(testURL, rabbitmq.WithDialer(dialer)))

		err := publisher.Publish(context.Background(), "", "orders", publisher.NewPublishing("m", nil))

		assert.True(t, rabbitmq.IsConnectFailure(err))
		assert.Empty(t, dialer.Channel().Published())
	})

	t.Run("Publish wraps channel errors", func(t *testing.T) {
		dialer := rabbitmqtest.NewDialer()
		dialer.Channel().PublishErr = errors.New("channel closed")
		publisher := rabbitmq.NewPublisher(rabbitmq.NewConnectionManager(testURL, rabbitmq.WithDialer(dialer)))

		err := publisher.Publish(context.Background(), "", "orders", publisher.NewPublishing("m", nil))

		var pubErr *rabbitmq.PublishError
		require.ErrorAs(t, err, &pubErr)
		assert.Equal(t, "orders", pubErr.RoutingKey)
		assert.False(t, rabbitmq.IsConnectFailure(err))
		assert.Contains(t, err.Error(), "channel closed")
	})

	t.Run("Close closes the connection", func(t *testing.T) {
		dialer := rabbitmqtest.NewDialer()
		publisher := rabbitmq.NewPublisher(rabbitmq.NewConnectionManager(testURL, rabbitmq.WithDialer(dialer)))

		require.NoError(t, publisher.Publish(context.Background(), "", "q", publisher.NewPublishing("m", nil)))
		require.NoError(t, publisher.Close())
		assert.True(t, dialer.Conn.Closed())
	})
}
