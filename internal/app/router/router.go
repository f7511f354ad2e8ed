// Package router moves signaling messages between clients and session
// managers, in process or across a fleet through a pub/sub bus.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Conference/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

type Mode int

const (
	ModeSingleProcess Mode = iota
	ModeMultiProcess
)

func (m Mode) String() string {
	if m == ModeMultiProcess {
		return "multi"
	}
	return "single"
}

var ErrNoRemoteBus = errors.New("multi-process mode needs a remote bus")

var (
	dispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conference",
		Subsystem: "router",
		Name:      "dispatched_total",
		Help:      "Messages dispatched by kind and mode.",
	}, []string{"kind", "mode"})

	dropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "conference",
		Subsystem: "router",
		Name:      "dropped_total",
		Help:      "Messages of an unknown kind.",
	})

	inbound = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conference",
		Subsystem: "router",
		Name:      "inbound_total",
		Help:      "Responses received by channel.",
	}, []string{"channel"})
)

const responsesBuffer = 256

type Router struct {
	mode   Mode
	local  core.Bus
	remote core.Bus

	responses chan Message
	done      chan struct{}
	wg        sync.WaitGroup

	mu     sync.Mutex
	subs   []core.Subscription
	closed bool

	healthy atomic.Bool
}

// New builds a router. The mode is fixed for its lifetime; remote may be nil
// in single-process mode.
func New(mode Mode, local, remote core.Bus) (*Router, error) {
	if mode == ModeMultiProcess && remote == nil {
		return nil, ErrNoRemoteBus
	}
	return &Router{
		mode:      mode,
		local:     local,
		remote:    remote,
		responses: make(chan Message, responsesBuffer),
		done:      make(chan struct{}),
	}, nil
}

func (r *Router) Mode() Mode { return r.mode }

// Dispatch routes msg by its kind. Unknown kinds are dropped without error.
func (r *Router) Dispatch(ctx context.Context, msg Message) error {
	kind, ok := ParseKind(string(msg.Type))
	if !ok {
		dropped.Inc()
		log.Debug().Str("module", "app.router").Str("type", string(msg.Type)).Str("id", msg.ID).Msg("dropped message of unknown kind")
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("router - Dispatch - json.Marshal: %w", err)
	}

	bus := r.local
	if r.mode == ModeMultiProcess {
		bus = r.remote
	}
	if err := bus.Publish(ctx, kind.ToChannel(), payload); err != nil {
		return fmt.Errorf("router - Dispatch - Publish %s: %w", kind.ToChannel(), err)
	}
	dispatched.WithLabelValues(string(kind), r.mode.String()).Inc()
	return nil
}

// SubscribeInbound subscribes every from-* channel: on the remote bus
// whenever one is configured and on the local bus always. Everything received is
// re-emitted on Responses. On failure nothing stays subscribed.
func (r *Router) SubscribeInbound(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("router - SubscribeInbound: router closed")
	}
	if len(r.subs) > 0 {
		return nil
	}

	buses := []core.Bus{r.local}
	if r.remote != nil {
		buses = append([]core.Bus{r.remote}, r.local)
	}

	var subs []core.Subscription
	for _, bus := range buses {
		for _, k := range Kinds {
			sub, err := bus.Subscribe(ctx, k.FromChannel())
			if err != nil {
				for _, s := range subs {
					_ = s.Close()
				}
				r.healthy.Store(false)
				log.Error().Str("module", "app.router").Str("channel", k.FromChannel()).Err(err).Msg("subscribe failed")
				return fmt.Errorf("router - SubscribeInbound - Subscribe %s: %w", k.FromChannel(), err)
			}
			subs = append(subs, sub)
		}
	}

	r.subs = subs
	for _, sub := range subs {
		r.wg.Add(1)
		go r.pump(sub)
	}
	r.healthy.Store(true)
	log.Info().Str("module", "app.router").Stringer("mode", r.mode).Int("subscriptions", len(subs)).Msg("inbound subscribed")
	return nil
}

func (r *Router) pump(sub core.Subscription) {
	defer r.wg.Done()
	l := log.With().Str("module", "app.router").Str("channel", sub.Channel()).Logger()
	for payload := range sub.C() {
		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			l.Warn().Err(err).Msg("bad inbound payload")
			continue
		}
		inbound.WithLabelValues(sub.Channel()).Inc()
		select {
		case r.responses <- msg:
		case <-r.done:
			return
		}
	}
}

// Responses carries every inbound message, whatever channel it came from.
// It is closed by Close.
func (r *Router) Responses() <-chan Message { return r.responses }

func (r *Router) Healthy() bool { return r.healthy.Load() }

// Close releases every subscription together.
func (r *Router) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	subs := r.subs
	r.subs = nil
	close(r.done)
	r.mu.Unlock()

	var errs []error
	for _, s := range subs {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.wg.Wait()
	close(r.responses)
	r.healthy.Store(false)
	return errors.Join(errs...)
}
