package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
	closed   bool
}

func (c *recordingChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.exchange, c.key, c.msg = exchange, key, msg

	return c.err
}

func (c *recordingChannel) Close() error {
	c.closed = true

	return nil
}

func TestPublisher_PublishJSON(t *testing.T) {
	ch := &recordingChannel{}
	//nolint:exhaustruct
	p := &Publisher{ch: ch, exchange: "payment.exchange"}

	err := p.PublishJSON(context.Background(), "transaction.settled", map[string]any{"transaction_id": 7})
	require.NoError(t, err)

	assert.Equal(t, "payment.exchange", ch.exchange)
	assert.Equal(t, "transaction.settled", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)

	var body map[string]int
	require.NoError(t, json.Unmarshal(ch.msg.Body, &body))
	assert.Equal(t, 7, body["transaction_id"])

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestPublisher_PublishJSON_Errors(t *testing.T) {
	ch := &recordingChannel{err: amqp.ErrClosed}
	//nolint:exhaustruct
	p := &Publisher{ch: ch, exchange: "payment.exchange"}

	err := p.PublishJSON(context.Background(), "transaction.opened", struct{}{})
	assert.True(t, errors.Is(err, amqp.ErrClosed))

	err = p.PublishJSON(context.Background(), "transaction.opened", make(chan int))
	assert.Error(t, err)
}
