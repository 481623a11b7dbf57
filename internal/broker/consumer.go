package broker

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/streadway/amqp"
)

const (
	orderPlacedExchange = "order.placed"
	orderPlacedQueue    = "pharmacart_cart_order_placed"
)

// OrderPlacedEvent is emitted by the order-processing service once an
// order is submitted. The cart reacts by clearing the user's lines.
type OrderPlacedEvent struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
}

type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *log.Logger
}

func NewConsumer(amqpURL string, logger *log.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	return &Consumer{conn: conn, channel: channel, logger: logger}, nil
}

// StartOrderPlacedConsumer binds a queue to the order-placed exchange
// and invokes handler for each event.
func (c *Consumer) StartOrderPlacedConsumer(handler func(event OrderPlacedEvent)) error {
	if err := c.channel.ExchangeDeclare(orderPlacedExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	q, err := c.channel.QueueDeclare(orderPlacedQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := c.channel.QueueBind(q.Name, "", orderPlacedExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	msgs, err := c.channel.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	go func() {
		for d := range msgs {
			var event OrderPlacedEvent
			if err := json.Unmarshal(d.Body, &event); err != nil {
				c.logger.Printf("decode order placed event: %v", err)
				continue
			}
			handler(event)
		}
	}()
	return nil
}

func (c *Consumer) Close() {
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Printf("close amqp channel: %v", err)
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Printf("close amqp connection: %v", err)
		}
	}
}
