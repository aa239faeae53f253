package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedPublish struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	published []recordedPublish
	err       error
}

func (f *fakeChannel) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, recordedPublish{exchange: exchange, key: key, msg: msg})
	return nil
}

func TestPublishMessage(t *testing.T) {
	ch := &fakeChannel{}

	type event struct {
		TransformationID int64  `json:"transformation_id"`
		Status           string `json:"status"`
	}

	err := PublishMessage(ch, "mirage.events", KeyTransformationFinalized, event{TransformationID: 7, Status: "succeeded"})
	require.NoError(t, err)
	require.Len(t, ch.published, 1)

	got := ch.published[0]
	assert.Equal(t, "mirage.events", got.exchange)
	assert.Equal(t, KeyTransformationFinalized, got.key)
	assert.Equal(t, "application/json", got.msg.ContentType)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)

	var decoded event
	require.NoError(t, json.Unmarshal(got.msg.Body, &decoded))
	assert.Equal(t, event{TransformationID: 7, Status: "succeeded"}, decoded)
}

func TestPublishMessage_MarshalError(t *testing.T) {
	ch := &fakeChannel{}
	badMsg := struct {
		Ch chan int `json:"ch"`
	}{Ch: make(chan int)}

	err := PublishMessage(ch, "", "key", badMsg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rabbitmq.PublishMessage")
	assert.Empty(t, ch.published)
}

func TestPublishMessage_ChannelError(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}

	err := PublishMessage(ch, "mirage.events", KeyCreditsPurchased, map[string]int{"credits": 15})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
}

func TestPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := &Publisher{ch: ch, exchange: "mirage.events"}

	require.NoError(t, p.Publish(context.Background(), KeyCreditsPurchased, map[string]int{"credits": 15}))
	require.Len(t, ch.published, 1)
	assert.Equal(t, KeyCreditsPurchased, ch.published[0].key)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, KeyCreditsPurchased, nil), context.Canceled)
	assert.Len(t, ch.published, 1)
}

func TestEventQueues(t *testing.T) {
	queues := EventQueues()
	require.NotEmpty(t, queues)

	seen := map[string]bool{}
	for _, q := range queues {
		assert.Falsef(t, seen[q.QueueName], "duplicate queue name: %s", q.QueueName)
		seen[q.QueueName] = true
	}
}

func TestNopPublisher(t *testing.T) {
	var p NopPublisher
	assert.NoError(t, p.Publish(context.Background(), KeyCreditsPurchased, nil))
	assert.NoError(t, p.Close())
}
