package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/purchase-sync/internal/entity"
)

type fakeChannel struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
	closed        bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func fixtures() (entity.Notification, entity.Purchase) {
	price := 499.0
	currency := "NOK"
	p := entity.Purchase{
		ID:            uuid.New(),
		UserID:        "u1",
		ItemName:      "Jacket",
		Merchant:      "Zara",
		PurchaseDate:  time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC),
		Price:         &price,
		Currency:      &currency,
		NeedsReview:   true,
		EmailMetadata: entity.EmailMetadata{MessageID: "m1"},
	}
	n := entity.Notification{
		ID:         uuid.New(),
		UserID:     "u1",
		PurchaseID: p.ID,
		Title:      "New purchase detected",
		Body:       "Jacket from Zara",
		CreatedAt:  time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC),
	}
	return n, p
}

func TestPublishPurchaseDetected(t *testing.T) {
	ch := &fakeChannel{}
	pub := &AMQPPublisher{ch: ch, exchange: "purchases", logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	n, p := fixtures()

	require.NoError(t, pub.PublishPurchaseDetected(context.Background(), n, p))
	assert.Equal(t, "purchases", ch.exchange)
	assert.Equal(t, RoutingKeyPurchaseDetected, ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, n.ID.String(), ch.msg.MessageId)

	var ev PurchaseDetectedEvent
	require.NoError(t, json.Unmarshal(ch.msg.Body, &ev))
	assert.Equal(t, p.ID.String(), ev.PurchaseID)
	assert.Equal(t, "2024-05-20", ev.PurchaseDate)
	assert.Equal(t, "m1", ev.EmailID)
	assert.True(t, ev.NeedsReview)

	pub.Close()
	assert.True(t, ch.closed)
}

func TestPublishErrorIsWrapped(t *testing.T) {
	boom := errors.New("channel closed")
	pub := &AMQPPublisher{ch: &fakeChannel{err: boom}, exchange: "purchases", logger: slog.Default()}
	n, p := fixtures()

	err := pub.PublishPurchaseDetected(context.Background(), n, p)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), RoutingKeyPurchaseDetected)
}
