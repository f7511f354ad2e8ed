package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Conference/internal/core"
	"github.com/gomodule/redigo/redis"
	"github.com/rs/zerolog/log"
)

type RedisConfig struct {
	URL      string
	Attempts int
	WaitTime time.Duration
}

// Redis publishes with pooled connections; each subscription owns a
// dedicated connection.
type Redis struct {
	cfg  RedisConfig
	pool *redis.Pool
}

func NewRedis(cfg RedisConfig) (*Redis, error) {
	b := &Redis{
		cfg: cfg,
		pool: &redis.Pool{
			MaxIdle:     8,
			IdleTimeout: 240 * time.Second,
			DialContext: func(ctx context.Context) (redis.Conn, error) {
				return redis.DialURLContext(ctx, cfg.URL)
			},
			TestOnBorrow: func(c redis.Conn, t time.Time) error {
				if time.Since(t) < time.Minute {
					return nil
				}
				_, err := c.Do("PING")
				return err
			},
		},
	}
	if err := b.AttemptConnect(); err != nil {
		_ = b.pool.Close()
		return nil, err
	}
	return b, nil
}

// AttemptConnect pings the server until it answers or attempts run out.
func (b *Redis) AttemptConnect() error {
	var err error
	for i := max(b.cfg.Attempts, 1); i > 0; i-- {
		if err = b.ping(); err == nil {
			return nil
		}
		log.Warn().Str("module", "adapters.bus").Int("attempts_left", i-1).Err(err).Msg("redis is trying to connect")
		time.Sleep(b.cfg.WaitTime)
	}
	return fmt.Errorf("bus - Redis - AttemptConnect - ping: %w", err)
}

func (b *Redis) ping() error {
	c := b.pool.Get()
	defer c.Close()
	_, err := c.Do("PING")
	return err
}

func (b *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	c, err := b.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("bus - Redis - Publish - pool.GetContext: %w", err)
	}
	defer c.Close()
	if _, err := redis.DoContext(c, ctx, "PUBLISH", channel, payload); err != nil {
		return fmt.Errorf("bus - Redis - Publish - PUBLISH %s: %w", channel, err)
	}
	return nil
}

func (b *Redis) Subscribe(ctx context.Context, channel string) (core.Subscription, error) {
	c, err := redis.DialURLContext(ctx, b.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("bus - Redis - Subscribe - DialURL: %w", err)
	}
	psc := redis.PubSubConn{Conn: c}
	if err := psc.Subscribe(channel); err != nil {
		c.Close()
		return nil, fmt.Errorf("bus - Redis - Subscribe - SUBSCRIBE %s: %w", channel, err)
	}
	switch v := psc.Receive().(type) {
	case redis.Subscription:
	case error:
		c.Close()
		return nil, fmt.Errorf("bus - Redis - Subscribe - confirm %s: %w", channel, v)
	default:
		c.Close()
		return nil, fmt.Errorf("bus - Redis - Subscribe - confirm %s: unexpected %T", channel, v)
	}

	s := &redisSub{
		channel: channel,
		psc:     psc,
		ch:      make(chan []byte, subscriptionBuffer),
		done:    make(chan struct{}),
	}
	go s.receive()
	log.Info().Str("module", "adapters.bus").Str("channel", channel).Msg("redis subscribed")
	return s, nil
}

func (b *Redis) Close() error {
	return b.pool.Close()
}

type redisSub struct {
	channel string
	psc     redis.PubSubConn
	ch      chan []byte
	done    chan struct{}
	once    sync.Once
}

func (s *redisSub) Channel() string  { return s.channel }
func (s *redisSub) C() <-chan []byte { return s.ch }

func (s *redisSub) receive() {
	defer close(s.ch)
	for {
		switch v := s.psc.Receive().(type) {
		case redis.Message:
			select {
			case s.ch <- v.Data:
			case <-s.done:
				return
			}
		case redis.Subscription:
			if v.Count == 0 {
				return
			}
		case error:
			select {
			case <-s.done:
			default:
				if !errors.Is(v, context.Canceled) {
					log.Error().Str("module", "adapters.bus").Str("channel", s.channel).Err(v).Msg("redis subscription lost")
				}
			}
			return
		}
	}
}

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		_ = s.psc.Unsubscribe()
		err = s.psc.Close()
	})
	return err
}
