// Package events publishes order lifecycle notifications for downstream
// consumers such as a warehouse or mailer.
package events

import (
	"context"
	"time"

	"github.com/jafarshop/storefront/internal/domain"
)

const (
	OrderPlaced        = "order.placed"
	OrderStatusChanged = "order.status_changed"
)

// OrderEvent is the message body sent for every order event
type OrderEvent struct {
	Type       string             `json:"type"`
	OrderID    string             `json:"order_id"`
	UserID     string             `json:"user_id"`
	Status     domain.OrderStatus `json:"status"`
	From       domain.OrderStatus `json:"from,omitempty"`
	Total      string             `json:"total"`
	Currency   string             `json:"currency"`
	ItemCount  int                `json:"item_count"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// Publisher sends order events. Publishing is best effort: the order is
// already stored when an event is sent.
type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
}

// NewOrderPlaced describes a freshly stored order
func NewOrderPlaced(order *domain.Order) OrderEvent {
	return newEvent(OrderPlaced, order, "")
}

// NewStatusChanged describes a status move from → order.Status
func NewStatusChanged(order *domain.Order, from domain.OrderStatus) OrderEvent {
	return newEvent(OrderStatusChanged, order, from)
}

func newEvent(eventType string, order *domain.Order, from domain.OrderStatus) OrderEvent {
	count := 0
	for _, item := range order.Items {
		count += item.Quantity
	}
	return OrderEvent{
		Type:       eventType,
		OrderID:    order.ID.String(),
		UserID:     order.UserID,
		Status:     order.Status,
		From:       from,
		Total:      order.Total.StringFixed(2),
		Currency:   order.Currency,
		ItemCount:  count,
		OccurredAt: time.Now().UTC(),
	}
}

type nopPublisher struct{}

// Nop drops every event
func Nop() Publisher {
	return nopPublisher{}
}

func (nopPublisher) Publish(context.Context, OrderEvent) error {
	return nil
}
