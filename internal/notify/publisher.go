// Package notify publishes purchase-detected events to RabbitMQ.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/joseph-ayodele/purchase-sync/internal/entity"
)

const RoutingKeyPurchaseDetected = "purchase.detected"

// PurchaseDetectedEvent is the message body published for each new purchase.
type PurchaseDetectedEvent struct {
	NotificationID string    `json:"notification_id"`
	UserID         string    `json:"user_id"`
	PurchaseID     string    `json:"purchase_id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	ItemName       string    `json:"item_name"`
	Merchant       string    `json:"merchant"`
	PurchaseDate   string    `json:"purchase_date"`
	Price          *float64  `json:"price,omitempty"`
	Currency       *string   `json:"currency,omitempty"`
	NeedsReview    bool      `json:"needs_review"`
	EmailID        string    `json:"email_id"`
	CreatedAt      time.Time `json:"created_at"`
}

func NewPurchaseDetectedEvent(n entity.Notification, p entity.Purchase) PurchaseDetectedEvent {
	return PurchaseDetectedEvent{
		NotificationID: n.ID.String(),
		UserID:         n.UserID,
		PurchaseID:     p.ID.String(),
		Title:          n.Title,
		Body:           n.Body,
		ItemName:       p.ItemName,
		Merchant:       p.Merchant,
		PurchaseDate:   p.PurchaseDate.Format(time.DateOnly),
		Price:          p.Price,
		Currency:       p.Currency,
		NeedsReview:    p.NeedsReview,
		EmailID:        p.EmailMetadata.MessageID,
		CreatedAt:      n.CreatedAt,
	}
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	exchange string
	logger   *slog.Logger
}

// Dial connects to url and declares a durable topic exchange.
func Dial(url, exchange string, logger *slog.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	logger.Info("notify.amqp.connected", "exchange", exchange)
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange, logger: logger}, nil
}

func (p *AMQPPublisher) PublishPurchaseDetected(ctx context.Context, n entity.Notification, purchase entity.Purchase) error {
	body, err := json.Marshal(NewPurchaseDetectedEvent(n, purchase))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx, p.exchange, RoutingKeyPurchaseDetected, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    n.ID.String(),
		Timestamp:    n.CreatedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", RoutingKeyPurchaseDetected, err)
	}
	p.logger.Debug("notify.amqp.published", "purchase_id", purchase.ID, "user_id", n.UserID)
	return nil
}

func (p *AMQPPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
