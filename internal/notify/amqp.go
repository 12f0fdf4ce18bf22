package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/streadway/amqp"
)

const DefaultQueue = "price_alerts"

// AMQPConfig holds RabbitMQ connection details.
type AMQPConfig struct {
	URL   string
	Queue string
}

// AMQPNotifier publishes alerts as persistent JSON messages to a durable
// queue. The chat front-end consumes the queue and sends the messages.
type AMQPNotifier struct {
	conn   *amqp.Connection
	queue  string
	logger *slog.Logger

	// amqp.Channel must not be used for concurrent publishes
	mu      sync.Mutex
	channel *amqp.Channel
}

// NewAMQPNotifier connects to RabbitMQ, opens a channel and declares the
// queue.
func NewAMQPNotifier(cfg AMQPConfig, logger *slog.Logger) (*AMQPNotifier, error) {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("notify: connecting to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("notify: opening channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		cfg.Queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("notify: declaring queue %s: %w", cfg.Queue, err)
	}

	logger.Info("rabbitmq notifier ready", slog.String("queue", cfg.Queue))

	return &AMQPNotifier{
		conn:    conn,
		channel: ch,
		queue:   cfg.Queue,
		logger:  logger,
	}, nil
}

// Notify publishes msg to the queue through the default exchange.
func (n *AMQPNotifier) Notify(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pub, err := publishing(msg, time.Now())
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.channel == nil {
		return errors.New("notify: channel is closed")
	}

	err = n.channel.Publish(
		"",      // default exchange
		n.queue, // routing key: the queue name
		false,   // mandatory
		false,   // immediate
		pub,
	)
	if err != nil {
		return fmt.Errorf("notify: publishing %s for user %d: %w", msg.Kind, msg.UserID, err)
	}
	return nil
}

// Close closes the channel and the connection.
func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	var errs []error
	if n.channel != nil {
		if err := n.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing channel: %w", err))
		}
		n.channel = nil
	}
	if n.conn != nil {
		if err := n.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing connection: %w", err))
		}
		n.conn = nil
	}
	return errors.Join(errs...)
}

// publishing encodes msg as a persistent JSON message. The rendered text
// travels along so the consumer does not need to format prices itself.
func publishing(msg Message, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(struct {
		Message
		Text string `json:"text"`
	}{msg, msg.Text()})
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("notify: encoding message: %w", err)
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    now,
		Type:         string(msg.Kind),
		Body:         body,
	}, nil
}
