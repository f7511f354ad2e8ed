package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Conference/internal/core"
	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"
)

type AMQPConfig struct {
	URL      string
	Exchange string
	Attempts int
	WaitTime time.Duration
}

// AMQP maps channels to routing keys of one topic exchange. Every
// subscription gets its own exclusive queue, so each subscriber sees every
// message.
type AMQP struct {
	cfg AMQPConfig

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewAMQP(cfg AMQPConfig) (*AMQP, error) {
	b := &AMQP{cfg: cfg}
	if err := b.AttemptConnect(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *AMQP) AttemptConnect() error {
	var err error
	for i := max(b.cfg.Attempts, 1); i > 0; i-- {
		if err = b.connect(); err == nil {
			return nil
		}
		log.Warn().Str("module", "adapters.bus").Int("attempts_left", i-1).Err(err).Msg("rabbitmq is trying to connect")
		time.Sleep(b.cfg.WaitTime)
	}
	return fmt.Errorf("bus - AMQP - AttemptConnect - b.connect: %w", err)
}

func (b *AMQP) connect() error {
	conn, err := amqp.Dial(b.cfg.URL)
	if err != nil {
		return fmt.Errorf("amqp.Dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("conn.Channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		b.cfg.Exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		conn.Close()
		return fmt.Errorf("ch.ExchangeDeclare: %w", err)
	}

	b.mu.Lock()
	b.conn, b.channel = conn, ch
	b.mu.Unlock()
	return nil
}

func (b *AMQP) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.channel.Publish(
		b.cfg.Exchange,
		channel,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        payload,
		},
	)
	if err != nil {
		return fmt.Errorf("bus - AMQP - Publish - b.channel.Publish: %w", err)
	}
	return nil
}

func (b *AMQP) Subscribe(ctx context.Context, channel string) (core.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("bus - AMQP - Subscribe - conn.Channel: %w", err)
	}
	queue, err := ch.QueueDeclare(
		"",
		false,
		true,
		true,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("bus - AMQP - Subscribe - ch.QueueDeclare: %w", err)
	}
	if err := ch.QueueBind(queue.Name, channel, b.cfg.Exchange, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("bus - AMQP - Subscribe - ch.QueueBind: %w", err)
	}
	deliveries, err := ch.Consume(
		queue.Name,
		"",
		true,
		true,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("bus - AMQP - Subscribe - ch.Consume: %w", err)
	}

	s := &amqpSub{
		channel: channel,
		amqpCh:  ch,
		ch:      make(chan []byte, subscriptionBuffer),
		done:    make(chan struct{}),
	}
	go s.consume(deliveries)
	log.Info().Str("module", "adapters.bus").Str("channel", channel).Str("queue", queue.Name).Msg("amqp subscribed")
	return s, nil
}

func (b *AMQP) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.channel != nil {
		_ = b.channel.Close()
	}
	if b.conn == nil {
		return nil
	}
	if err := b.conn.Close(); err != nil {
		return fmt.Errorf("bus - AMQP - Close - b.conn.Close: %w", err)
	}
	return nil
}

type amqpSub struct {
	channel string
	amqpCh  *amqp.Channel
	ch      chan []byte
	done    chan struct{}
	once    sync.Once
}

func (s *amqpSub) Channel() string  { return s.channel }
func (s *amqpSub) C() <-chan []byte { return s.ch }

func (s *amqpSub) consume(deliveries <-chan amqp.Delivery) {
	defer close(s.ch)
	for {
		select {
		case <-s.done:
			return
		case d, opened := <-deliveries:
			if !opened {
				return
			}
			select {
			case s.ch <- d.Body:
			case <-s.done:
				return
			}
		}
	}
}

func (s *amqpSub) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.amqpCh.Close()
	})
	return err
}
