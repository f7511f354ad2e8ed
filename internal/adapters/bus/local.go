// Package bus implements core.Bus in process, over Redis pub/sub and over an
// AMQP topic exchange.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Conference/internal/core"
)

const subscriptionBuffer = 256

var ErrClosed = errors.New("bus closed")

// Local fans payloads out to in-process subscribers. Publish waits for room
// in every subscriber's buffer; it gives up only when ctx ends or the bus is
// closed. A subscription closed meanwhile is skipped.
type Local struct {
	mu     sync.RWMutex
	subs   map[string]map[*localSub]struct{}
	closed bool

	done      chan struct{}
	closeOnce sync.Once
}

func NewLocal() *Local {
	return &Local{
		subs: make(map[string]map[*localSub]struct{}),
		done: make(chan struct{}),
	}
}

type localSub struct {
	bus     *Local
	channel string
	ch      chan []byte
	done    chan struct{}
	once    sync.Once
}

func (s *localSub) Channel() string  { return s.channel }
func (s *localSub) C() <-chan []byte { return s.ch }

// Close wakes blocked publishers before taking the bus lock they hold.
func (s *localSub) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		if set, ok := s.bus.subs[s.channel]; ok {
			if _, ok := set[s]; ok {
				delete(set, s)
				close(s.ch)
			}
		}
	})
	return nil
}

func (b *Local) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for s := range b.subs[channel] {
		select {
		case s.ch <- payload:
		case <-s.done:
		case <-b.done:
			return ErrClosed
		case <-ctx.Done():
			return fmt.Errorf("bus - Local - Publish %s: %w", channel, ctx.Err())
		}
	}
	return nil
}

func (b *Local) Subscribe(_ context.Context, channel string) (core.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	s := &localSub{
		bus:     b,
		channel: channel,
		ch:      make(chan []byte, subscriptionBuffer),
		done:    make(chan struct{}),
	}
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[*localSub]struct{})
	}
	b.subs[channel][s] = struct{}{}
	return s, nil
}

// Close ends every subscription.
func (b *Local) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, set := range b.subs {
		for s := range set {
			close(s.ch)
		}
	}
	b.subs = make(map[string]map[*localSub]struct{})
	return nil
}
