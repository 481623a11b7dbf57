package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	cartsvc "pharmacart/internal/service/cart"
	"github.com/streadway/amqp"
)

const notificationExchange = "cart.notifications"

// Publisher fans cart mutation outcomes out to the notification
// exchange, where the UI delivery channels (web push, email workers)
// consume them. Implements the cart service's Notifier.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *log.Logger
}

func NewPublisher(amqpURL string, logger *log.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := channel.ExchangeDeclare(notificationExchange, "fanout", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, channel: channel, logger: logger}, nil
}

// Notify publishes the outcome. Delivery failures are logged, never
// surfaced to the cart caller: a lost toast must not fail a mutation.
func (p *Publisher) Notify(_ context.Context, n cartsvc.Notification) {
	body, err := json.Marshal(n)
	if err != nil {
		p.logger.Printf("encode notification: %v", err)
		return
	}
	err = p.channel.Publish(notificationExchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		p.logger.Printf("publish notification: %v", err)
	}
}

func (p *Publisher) Close() {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Printf("close amqp channel: %v", err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.logger.Printf("close amqp connection: %v", err)
		}
	}
}
