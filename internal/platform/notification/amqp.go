package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is the subset of *amqp.Channel the sink needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publishes each notification to a topic exchange with routing key
// "notification.<kind>".
type AMQPSink struct {
	publisher Publisher
	exchange  string
	closer    func() error
}

// NewAMQPSink opens a channel on conn and declares exchange as a durable
// topic exchange.
func NewAMQPSink(conn *amqp.Connection, exchange string) (*AMQPSink, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPSink{publisher: ch, exchange: exchange, closer: ch.Close}, nil
}

// NewAMQPSinkWithPublisher wraps an existing publisher.
func NewAMQPSinkWithPublisher(p Publisher, exchange string) *AMQPSink {
	return &AMQPSink{publisher: p, exchange: exchange}
}

func (s *AMQPSink) Name() string { return "amqp" }

func RoutingKey(kind Kind) string {
	return "notification." + string(kind)
}

func (s *AMQPSink) Deliver(ctx context.Context, n *Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    n.ID,
		Timestamp:    n.CreatedAt,
		DeliveryMode: amqp.Persistent,
		Body:         body,
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.publisher.PublishWithContext(ctx, s.exchange, RoutingKey(n.Kind), false, false, msg); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func (s *AMQPSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
