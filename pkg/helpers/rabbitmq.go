package helpers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitPublisher wraps an AMQP channel and the queues it publishes to.
// The first declared queue is the default for PublishJSON.
type RabbitPublisher struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	Queue  string
	queues map[string]struct{}
}

func NewRabbitPublisher(url string, queues ...string) (*RabbitPublisher, error) {
	if len(queues) == 0 {
		return nil, errors.New("rabbitmq: at least one queue is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p := &RabbitPublisher{conn: conn, ch: ch, Queue: queues[0], queues: map[string]struct{}{}}
	for _, q := range queues {
		// Declare durable queue
		_, err = ch.QueueDeclare(
			q,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,
		)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.queues[q] = struct{}{}
	}
	return p, nil
}

func (p *RabbitPublisher) Close() {
	if p == nil {
		return
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// PublishJSON publishes a JSON-encoded message to the default queue.
func (p *RabbitPublisher) PublishJSON(ctx context.Context, body any) error {
	return p.PublishJSONTo(ctx, p.Queue, body)
}

// PublishJSONTo publishes a JSON-encoded message to one of the declared queues.
func (p *RabbitPublisher) PublishJSONTo(ctx context.Context, queue string, body any) error {
	if _, ok := p.queues[queue]; !ok {
		return errors.New("rabbitmq: queue " + queue + " was not declared")
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx,
		"",    // default exchange
		queue, // routing key = queue
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         b,
		},
	)
}
