package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// ChannelPool keeps a fixed number of AMQP channel slots on one connection.
// Each channel declares the durable queue it publishes to. A slot whose
// channel was closed by the broker stays in the pool empty and is reopened
// by the next GetChannel, so the pool never shrinks.
type ChannelPool struct {
	conn      *amqp.Connection
	channels  chan *amqp.Channel
	open      func() (*amqp.Channel, error)
	mu        sync.Mutex
	closed    bool
	queueName string
	logger    *zap.Logger
}

// NewChannelPool dials url and opens size channels
func NewChannelPool(url, queueName string, size int, logger *zap.Logger) (*ChannelPool, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	pool := newChannelPool(queueName, size, nil, logger)
	pool.conn = conn
	pool.open = pool.createChannel

	for i := 0; i < cap(pool.channels); i++ {
		<-pool.channels
		ch, err := pool.createChannel()
		if err != nil {
			pool.channels <- nil
			pool.Close()
			return nil, fmt.Errorf("failed to create channel %d: %w", i, err)
		}
		pool.channels <- ch
	}

	logger.Info("Created RabbitMQ channel pool", zap.Int("size", cap(pool.channels)), zap.String("queue", queueName))
	return pool, nil
}

// newChannelPool builds a pool of size empty slots filled lazily by open
func newChannelPool(queueName string, size int, open func() (*amqp.Channel, error), logger *zap.Logger) *ChannelPool {
	if size < 1 {
		size = 1
	}
	pool := &ChannelPool{
		channels:  make(chan *amqp.Channel, size),
		open:      open,
		queueName: queueName,
		logger:    logger,
	}
	for i := 0; i < size; i++ {
		pool.channels <- nil
	}
	return pool
}

func (p *ChannelPool) createChannel() (*amqp.Channel, error) {
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, err
	}

	_, err = ch.QueueDeclare(
		p.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	return ch, nil
}

// GetChannel waits for a free slot until ctx is done. An empty or closed
// slot is reopened; if that fails the slot goes back empty.
func (p *ChannelPool) GetChannel(ctx context.Context) (*amqp.Channel, error) {
	select {
	case ch, ok := <-p.channels:
		if !ok {
			return nil, errors.New("channel pool is closed")
		}
		if ch != nil && !ch.IsClosed() {
			return ch, nil
		}
		fresh, err := p.open()
		if err != nil {
			p.ReturnChannel(nil)
			return nil, fmt.Errorf("failed to reopen channel: %w", err)
		}
		return fresh, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ReturnChannel gives the slot taken by GetChannel back. A nil or closed ch
// returns the slot empty.
func (p *ChannelPool) ReturnChannel(ch *amqp.Channel) {
	if ch != nil && ch.IsClosed() {
		ch = nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		if ch != nil {
			ch.Close()
		}
		return
	}
	select {
	case p.channels <- ch:
	default:
		if ch != nil {
			ch.Close()
		}
	}
}

// Close closes every pooled channel and the connection
func (p *ChannelPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	close(p.channels)
	for ch := range p.channels {
		if ch != nil {
			ch.Close()
		}
	}
	p.logger.Info("Closed RabbitMQ channel pool")
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// RabbitPublisher publishes order events as persistent JSON messages on the
// pool's queue
type RabbitPublisher struct {
	pool *ChannelPool
}

func NewRabbitPublisher(pool *ChannelPool) *RabbitPublisher {
	return &RabbitPublisher{pool: pool}
}

func (p *RabbitPublisher) Publish(ctx context.Context, event OrderEvent) error {
	msg, err := newMessage(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	ch, err := p.pool.GetChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to get channel from pool: %w", err)
	}
	defer p.pool.ReturnChannel(ch)

	if err := ch.PublishWithContext(ctx,
		"",               // exchange
		p.pool.queueName, // routing key
		false,            // mandatory
		false,            // immediate
		msg,
	); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

func newMessage(event OrderEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Type:         event.Type,
		MessageId:    event.OrderID + ":" + event.Type + ":" + string(event.Status),
		Timestamp:    event.OccurredAt,
		Body:         body,
	}, nil
}
