// Package events publishes order lifecycle events and consumes them back as
// an audit log.
package events

import (
	"fmt"
	"time"

	"harvestlink/internal/models"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Routing keys.
const (
	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"
	OrderRated         = "order.rated"
)

// Publisher sends an encoded event under a routing key. *rabbitmq.Client
// satisfies it.
type Publisher interface {
	Publish(routingKey string, body []byte) error
}

// OrderEvent is the message body for every order routing key.
type OrderEvent struct {
	Type           string             `json:"type"`
	OrderID        string             `json:"orderId"`
	FarmerID       string             `json:"farmerId"`
	CustomerID     string             `json:"customerId"`
	Status         models.OrderStatus `json:"status"`
	PreviousStatus models.OrderStatus `json:"previousStatus,omitempty"`
	TotalAmount    float64            `json:"totalAmount"`
	Rating         *int               `json:"rating,omitempty"`
	OccurredAt     time.Time          `json:"occurredAt"`
}

// NewOrderEvent builds an event of the given type from an order snapshot.
func NewOrderEvent(eventType string, order *models.Order) OrderEvent {
	return OrderEvent{
		Type:        eventType,
		OrderID:     order.ID,
		FarmerID:    order.FarmerID,
		CustomerID:  order.CustomerID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		Rating:      order.Rating,
		OccurredAt:  time.Now().UTC(),
	}
}

// Emitter publishes events on a best-effort basis: failures are logged and
// never fail the request that produced the event.
type Emitter struct {
	publisher Publisher
}

// NewEmitter wraps publisher; a nil publisher turns Emit into a no-op.
func NewEmitter(publisher Publisher) *Emitter {
	return &Emitter{publisher: publisher}
}

// Emit encodes and publishes event under its type as routing key.
func (e *Emitter) Emit(event OrderEvent) {
	if e == nil || e.publisher == nil {
		log.Debug().Str("type", event.Type).Str("order_id", event.OrderID).Msg("event publishing disabled, skipping")
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("type", event.Type).Msg("failed to encode order event")
		return
	}
	if err := e.publisher.Publish(event.Type, body); err != nil {
		log.Warn().Err(err).Str("type", event.Type).Str("order_id", event.OrderID).Msg("failed to publish order event")
	}
}

// AuditHandler returns a consumer callback that logs each order event.
// Undecodable bodies are rejected so they are not redelivered.
func AuditHandler(logger zerolog.Logger) func(msg amqp.Delivery) error {
	return func(msg amqp.Delivery) error {
		var event OrderEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			return fmt.Errorf("failed to decode event %s: %w", msg.RoutingKey, err)
		}
		logger.Info().
			Str("type", event.Type).
			Str("order_id", event.OrderID).
			Str("farmer_id", event.FarmerID).
			Str("customer_id", event.CustomerID).
			Str("status", string(event.Status)).
			Str("previous_status", string(event.PreviousStatus)).
			Float64("total", event.TotalAmount).
			Time("occurred_at", event.OccurredAt).
			Msg("order event")
		return nil
	}
}
