package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kisanmarket/kisan-golang/internal/models"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

const TypeOrderSettled = "order.settled"

// OrderSettled is published once per order, when it leaves pending.
type OrderSettled struct {
	EventID       string             `json:"event_id"`
	Type          string             `json:"type"`
	OrderID       string             `json:"order_id"`
	Status        models.OrderStatus `json:"status"`
	TotalAmount   decimal.Decimal    `json:"total_amount"`
	Currency      string             `json:"currency"`
	CustomerEmail string             `json:"customer_email"`
	UserID        *string            `json:"user_id,omitempty"`
	SessionID     string             `json:"payment_session_id,omitempty"`
	ItemCount     int                `json:"item_count"`
	OccurredAt    time.Time          `json:"occurred_at"`
}

func NewOrderSettled(order *models.Order) OrderSettled {
	e := OrderSettled{
		EventID:       uuid.NewString(),
		Type:          TypeOrderSettled,
		OrderID:       order.ID,
		Status:        order.Status,
		TotalAmount:   order.TotalAmount,
		Currency:      order.Currency,
		CustomerEmail: order.CustomerEmail,
		UserID:        order.UserID,
		ItemCount:     len(order.Items),
		OccurredAt:    time.Now().UTC(),
	}
	if order.PaymentSessionID != nil {
		e.SessionID = *order.PaymentSessionID
	}
	return e
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes settlement events keyed by order id, so every event
// for one order lands on the same partition.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		// One event per settlement; do not hold it back waiting for a batch.
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 2 * time.Second,
	}}
}

// OrderSettled implements checkout.SettlementListener.
func (p *KafkaPublisher) OrderSettled(ctx context.Context, order *models.Order) error {
	data, err := json.Marshal(NewOrderSettled(order))
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", TypeOrderSettled, err)
	}
	msg := kafka.Message{
		Key:   []byte(order.ID),
		Value: data,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(TypeOrderSettled)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", TypeOrderSettled, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) OrderSettled(context.Context, *models.Order) error { return nil }
func (NopPublisher) Close() error                                      { return nil }
