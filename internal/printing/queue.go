package printing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Queue is a RabbitMQ connection carrying print job IDs. Publishes use
// publisher confirms so a returned nil really means the broker has the
// message; the job row in the DB is the source of truth either way.
type Queue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	name string

	acks <-chan amqp.Confirmation
	mu   sync.Mutex // serializes Publish while waiting for confirms
}

func DialQueue(url, name string) (*Queue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	return &Queue{conn: conn, ch: ch, name: name, acks: acks}, nil
}

func (q *Queue) Close() {
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil {
		_ = q.conn.Close()
	}
}

func (q *Queue) Ping() error {
	if q.conn == nil || q.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

// PublishJobID enqueues a job ID and waits for the broker ack.
func (q *Queue) PublishJobID(ctx context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.ch.PublishWithContext(
		ctx,
		"",     // default exchange
		q.name, // routing key = queue
		false,  // mandatory
		false,  // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "text/plain",
			Timestamp:    time.Now(),
			Body:         []byte(id.String()),
		},
	); err != nil {
		return err
	}

	select {
	case conf := <-q.acks:
		if conf.Ack {
			return nil
		}
		return errors.New("publish NACK from broker")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a prefetch-1 delivery stream. One worker drains it so
// tickets for the same kitchen print in order.
func (q *Queue) Consume() (<-chan amqp.Delivery, error) {
	if err := q.ch.Qos(1, 0, false); err != nil {
		return nil, err
	}
	return q.ch.Consume(q.name, "", false, false, false, false, nil)
}
