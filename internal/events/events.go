// Package events carries catalog write notifications from the catalog service
// to named subscribers.
package events

import (
	"context"
	"time"

	"myshop/internal/metrics"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Type identifies what happened to a product.
type Type string

const (
	ProductCreated       Type = "product.created"
	ProductUpdated       Type = "product.updated"
	ProductDeleted       Type = "product.deleted"
	ProductImageUploaded Type = "product.image_uploaded"
	ProductLowStock      Type = "product.low_stock"
)

// Event is a snapshot of the product taken right after the write.
type Event struct {
	Type       Type            `json:"type"`
	ProductID  string          `json:"product_id"`
	Name       string          `json:"name"`
	SKU        string          `json:"sku,omitempty"`
	Price      decimal.Decimal `json:"price"`
	Stock      int             `json:"stock"`
	OwnerID    string          `json:"owner_id"`
	ActorID    string          `json:"actor_id,omitempty"`
	ImageID    string          `json:"image_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Handler consumes one event. Returned errors are logged by the dispatcher.
type Handler func(ctx context.Context, e Event) error

type subscription struct {
	name    string
	handler Handler
}

// Dispatcher fans events out to subscribers synchronously, in registration order.
type Dispatcher struct {
	subs    []subscription
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewDispatcher creates a dispatcher without subscribers.
func NewDispatcher(log zerolog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{log: log, metrics: m}
}

// Subscribe registers handler under name.
func (d *Dispatcher) Subscribe(name string, handler Handler) {
	d.subs = append(d.subs, subscription{name: name, handler: handler})
}

// Subscribers lists the registered names.
func (d *Dispatcher) Subscribers() []string {
	names := make([]string, 0, len(d.subs))
	for _, s := range d.subs {
		names = append(names, s.name)
	}
	return names
}

// Publish delivers e to every subscriber. Subscriber failures and panics never
// reach the caller.
func (d *Dispatcher) Publish(ctx context.Context, e Event) {
	if d == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	d.metrics.EventPublished(string(e.Type))
	for _, s := range d.subs {
		d.deliver(ctx, s, e)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, s subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().
				Str("subscriber", s.name).
				Str("event", string(e.Type)).
				Interface("panic", r).
				Msg("event subscriber panicked")
		}
	}()
	if err := s.handler(ctx, e); err != nil {
		d.log.Error().
			Err(err).
			Str("subscriber", s.name).
			Str("event", string(e.Type)).
			Str("product_id", e.ProductID).
			Msg("event subscriber failed")
	}
}
