package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-court-reservation/internal/domain/reservation"
)

type fakeChannel struct {
	declared  []string
	published []amqp.Publishing
	keys      []string
	failNext  error
	closed    bool
}

func (c *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	c.declared = append(c.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if c.failNext != nil {
		err := c.failNext
		c.failNext = nil
		return err
	}
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func newTestPublisher(channels ...*fakeChannel) (*Publisher, *int) {
	dials := 0
	p := NewPublisher("amqp://test", "reservation_events")
	p.dial = func(url string) (channel, func() error, error) {
		if dials >= len(channels) {
			return nil, nil, errors.New("dial failed")
		}
		ch := channels[dials]
		dials++
		return ch, func() error { return nil }, nil
	}
	return p, &dials
}

func testEvent() reservation.Event {
	return reservation.Event{
		Type:          reservation.EventConfirmed,
		ReservationID: "res-1",
		TenantID:      "tenant-1",
		ResourceID:    "court-1",
		Status:        reservation.StatusConfirmed,
		StartsAt:      time.Date(2024, time.January, 10, 18, 0, 0, 0, time.UTC),
		EndsAt:        time.Date(2024, time.January, 10, 19, 30, 0, 0, time.UTC),
		OccurredAt:    time.Date(2024, time.January, 9, 12, 0, 0, 0, time.UTC),
	}
}

func TestPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p, dials := newTestPublisher(ch)
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, testEvent()))
	require.NoError(t, p.Publish(ctx, testEvent()))

	assert.Equal(t, 1, *dials, "接続は使い回される")
	assert.Equal(t, []string{"reservation_events"}, ch.declared)
	require.Len(t, ch.published, 2)
	assert.Equal(t, []string{"reservation_events", "reservation_events"}, ch.keys)

	msg := ch.published[0]
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, reservation.EventConfirmed, msg.Type)
	assert.Equal(t, "res-1:reservation.confirmed", msg.MessageId)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &body))
	assert.Equal(t, "reservation.confirmed", body["type"])
	assert.Equal(t, "res-1", body["reservation_id"])
}

func TestPublisher_ReconnectsAfterFailure(t *testing.T) {
	first := &fakeChannel{failNext: errors.New("channel closed")}
	second := &fakeChannel{}
	p, dials := newTestPublisher(first, second)
	ctx := context.Background()

	err := p.Publish(ctx, testEvent())
	assert.Error(t, err)
	assert.True(t, first.closed)

	require.NoError(t, p.Publish(ctx, testEvent()))
	assert.Equal(t, 2, *dials)
	assert.Len(t, second.published, 1)
}

func TestPublisher_DialFailure(t *testing.T) {
	p, _ := newTestPublisher()
	err := p.Publish(context.Background(), testEvent())
	assert.Error(t, err)
}

func TestPublisher_Closed(t *testing.T) {
	ch := &fakeChannel{}
	p, _ := newTestPublisher(ch)
	require.NoError(t, p.Publish(context.Background(), testEvent()))
	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
	assert.ErrorIs(t, p.Publish(context.Background(), testEvent()), ErrClosed)
}
