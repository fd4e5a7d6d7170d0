package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

// LogSubscriber writes an audit line per event.
func LogSubscriber(log zerolog.Logger) Handler {
	return func(_ context.Context, e Event) error {
		log.Info().
			Str("event", string(e.Type)).
			Str("product_id", e.ProductID).
			Str("name", e.Name).
			Str("sku", e.SKU).
			Str("actor_id", e.ActorID).
			Msg("catalog event")
		return nil
	}
}

// LowStockSubscriber warns about low-stock events.
func LowStockSubscriber(log zerolog.Logger, threshold int) Handler {
	return func(_ context.Context, e Event) error {
		if e.Type != ProductLowStock {
			return nil
		}
		log.Warn().
			Str("product_id", e.ProductID).
			Str("name", e.Name).
			Int("stock", e.Stock).
			Int("threshold", threshold).
			Msg("product stock is low")
		return nil
	}
}

// Publisher sends a message body to an exchange. *rabbitmq.Client satisfies it.
type Publisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// AMQPSubscriber forwards every event as JSON, routed by its type.
func AMQPSubscriber(pub Publisher, exchange string) Handler {
	return func(_ context.Context, e Event) error {
		body, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal %s event: %w", e.Type, err)
		}
		if err := pub.Publish(exchange, string(e.Type), body); err != nil {
			return fmt.Errorf("publish %s event: %w", e.Type, err)
		}
		return nil
	}
}
