package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrRelayUnavailable is returned by Publish while the broker connection is down
var ErrRelayUnavailable = errors.New("broadcast relay not connected")

type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type amqpConnection interface {
	Channel() (amqpChannel, error)
	Close() error
}

type amqpDialer func(url string) (amqpConnection, error)

type realAMQPConnection struct {
	conn *amqp.Connection
}

func (c realAMQPConnection) Channel() (amqpChannel, error) {
	return c.conn.Channel()
}

func (c realAMQPConnection) Close() error {
	return c.conn.Close()
}

func dialAMQP(url string) (amqpConnection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return realAMQPConnection{conn: conn}, nil
}

// AMQPRelay fans messages out through a RabbitMQ fanout exchange. Each
// instance binds its own exclusive auto-delete queue, so every instance sees
// every message. A lost connection is re-established with exponential backoff.
type AMQPRelay struct {
	url      string
	exchange string
	logger   *zap.Logger
	dial     amqpDialer
	backoff  func() backoff.BackOff

	mu      sync.Mutex
	conn    amqpConnection
	ch      amqpChannel
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewAMQPRelay creates a relay on the given fanout exchange
func NewAMQPRelay(url, exchange string, logger *zap.Logger) *AMQPRelay {
	return &AMQPRelay{
		url:      url,
		exchange: exchange,
		logger:   logger.With(zap.String("relay", "amqp"), zap.String("exchange", exchange)),
		dial:     dialAMQP,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
	}
}

// Start connects, binds this instance's queue, and consumes in the background
func (r *AMQPRelay) Start(ctx context.Context, deliver DeliverFunc) error {
	deliveries, err := r.connect()
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.stopped = make(chan struct{})
	r.mu.Unlock()

	go r.consume(deliveries, deliver)

	r.logger.Info("amqp relay started")
	return nil
}

func (r *AMQPRelay) connect() (<-chan amqp.Delivery, error) {
	conn, err := r.dial(r.url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	deliveries, err := r.bind(ch)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	r.mu.Lock()
	r.conn, r.ch = conn, ch
	r.mu.Unlock()

	return deliveries, nil
}

func (r *AMQPRelay) bind(ch amqpChannel) (<-chan amqp.Delivery, error) {
	if err := ch.ExchangeDeclare(r.exchange, "fanout", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", r.exchange, err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", r.exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue %s: %w", q.Name, err)
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", q.Name, err)
	}
	return deliveries, nil
}

func (r *AMQPRelay) consume(deliveries <-chan amqp.Delivery, deliver DeliverFunc) {
	defer close(r.stopped)

	for {
		for d := range deliveries {
			deliver(d.Body)
		}

		r.dropConnection()
		if r.isStopping() {
			return
		}
		r.logger.Warn("amqp delivery channel closed, reconnecting")

		var err error
		deliveries, err = r.reconnect()
		if err != nil {
			// only returned when stopping
			return
		}
		if r.isStopping() {
			r.dropConnection()
			return
		}
		r.logger.Info("amqp relay reconnected")
	}
}

func (r *AMQPRelay) reconnect() (<-chan amqp.Delivery, error) {
	var deliveries <-chan amqp.Delivery
	operation := func() error {
		if r.isStopping() {
			return backoff.Permanent(ErrRelayClosed)
		}
		d, err := r.connect()
		if err != nil {
			r.logger.Warn("amqp reconnect failed", zap.Error(err))
			return err
		}
		deliveries = d
		return nil
	}

	b := backoff.WithContext(r.backoff(), r.ctx)
	if err := backoff.Retry(operation, b); err != nil {
		return nil, err
	}
	return deliveries, nil
}

func (r *AMQPRelay) isStopping() bool {
	return r.ctx.Err() != nil
}

func (r *AMQPRelay) dropConnection() {
	r.mu.Lock()
	conn, ch := r.conn, r.ch
	r.conn, r.ch = nil, nil
	r.mu.Unlock()

	if ch != nil {
		_ = ch.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

// Publish sends the payload to the fanout exchange
func (r *AMQPRelay) Publish(ctx context.Context, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRelayClosed
	}
	if r.ch == nil {
		return ErrRelayUnavailable
	}
	return r.ch.PublishWithContext(ctx, r.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
}

// Close stops consuming and closes the broker connection
func (r *AMQPRelay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	cancel, stopped := r.cancel, r.stopped
	r.mu.Unlock()

	if cancel == nil {
		r.dropConnection()
		return nil
	}
	cancel()
	r.dropConnection()
	<-stopped
	return nil
}

var _ Relay = (*AMQPRelay)(nil)
