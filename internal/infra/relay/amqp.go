package relay

import (
	"context"
	"fmt"
	"strings"

	"cafe/internal/event"

	amqp "github.com/rabbitmq/amqp091-go"
)

const exchangeType = "topic"

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPSink はルーティングキー order.<kind> で topic exchange に送る
type AMQPSink struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
}

// DialAMQP は接続してexchangeを宣言する
func DialAMQP(url, exchange string) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("could not connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("could not open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, exchangeType, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("could not declare exchange: %w", err)
	}
	return &AMQPSink{conn: conn, ch: ch, exchange: exchange}, nil
}

func routingKey(kind event.Kind) string {
	return "order." + strings.ToLower(string(kind))
}

func (s *AMQPSink) Send(ctx context.Context, key string, kind event.Kind, payload []byte) error {
	return s.ch.PublishWithContext(ctx, s.exchange, routingKey(kind), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    key,
		Type:         string(kind),
		Body:         payload,
	})
}

func (s *AMQPSink) Close() error {
	err := s.ch.Close()
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
