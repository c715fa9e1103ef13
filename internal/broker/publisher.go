package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edge-hybrid/location-tracker/internal/tracking"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

const (
	Exchange            = "workout_topic"
	CompletedRoutingKey = "workout.completed"

	reconnectDelay = 3 * time.Second
)

var ErrClosed = errors.New("publisher closed")

// Publisher sends finished workout summaries to a topic exchange. It keeps
// redialing in the background when the broker drops the connection.
type Publisher struct {
	logger *slog.Logger
	url    string

	mu        sync.RWMutex
	conn      *amqp091.Connection
	ch        *amqp091.Channel
	connClose chan *amqp091.Error
	isClosed  atomic.Bool
}

func NewPublisher(url string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{logger: logger, url: url}
	if err := p.connect(); err != nil {
		return nil, fmt.Errorf("connect broker: %w", err)
	}
	go p.reconnect()
	return p, nil
}

// PublishSummary implements tracking.SummarySink.
func (p *Publisher) PublishSummary(ctx context.Context, summary tracking.Summary) error {
	if p.isClosed.Load() {
		return ErrClosed
	}
	msg, err := newPublishing(summary, time.Now())
	if err != nil {
		return err
	}

	p.mu.RLock()
	ch := p.ch
	p.mu.RUnlock()

	if err := ch.PublishWithContext(ctx, Exchange, CompletedRoutingKey, false, false, msg); err != nil {
		return fmt.Errorf("publish summary %s: %w", summary.SessionID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if !p.isClosed.CompareAndSwap(false, true) {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	defer p.logger.Info("rabbit closed")
	return p.conn.Close()
}

func newPublishing(summary tracking.Summary, at time.Time) (amqp091.Publishing, error) {
	body, err := json.Marshal(summary)
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("encode summary: %w", err)
	}
	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    at,
		Type:         CompletedRoutingKey,
		Body:         body,
	}, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp091.Dial(p.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return errors.Join(conn.Close(), err)
	}
	err = ch.ExchangeDeclare(
		Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return errors.Join(conn.Close(), err)
	}

	connClose := make(chan *amqp091.Error, 1)
	conn.NotifyClose(connClose)

	p.mu.Lock()
	p.conn, p.ch, p.connClose = conn, ch, connClose
	p.mu.Unlock()
	return nil
}

func (p *Publisher) reconnect() {
	for {
		p.mu.RLock()
		connClose := p.connClose
		p.mu.RUnlock()

		<-connClose
		if p.isClosed.Load() {
			return
		}
		p.logger.Warn("rabbitMQ not working")
		for {
			if p.isClosed.Load() {
				return
			}
			p.logger.Info("trying to connect to rabbitmq")
			if err := p.connect(); err != nil {
				time.Sleep(reconnectDelay)
				continue
			}
			p.logger.Info("connected to rabbitmq")
			break
		}
	}
}
