// Package floor keeps every sink of a room connected to the right video
// sources as conference and content floors move.
package floor

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Conference/internal/core"
	"github.com/dkeye/Conference/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 200 * time.Millisecond
)

type Option func(*Engine)

func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

func WithBackoff(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.backoff = d
		}
	}
}

// Health is the outcome of the latest strategy run.
type Health struct {
	LastRun             time.Time
	LastErr             error
	ConsecutiveFailures int
	Runs                uint64
}

func (h Health) Healthy() bool { return h.LastErr == nil }

// state is replaced wholesale by floor events; runs read a copy of it.
type state struct {
	conference         *domain.MediaSession
	previousConference []*domain.MediaSession
	content            *domain.MediaSession
	previousContent    []*domain.MediaSession
}

type registration struct {
	kind core.EventKind
	id   core.ListenerID
}

// Engine runs the voice switching strategy of one room. Runs never overlap:
// events only kick a single worker, and kicks arriving during a run collapse
// into one follow-up run.
type Engine struct {
	room        core.RoomGraph
	events      core.Emitter
	maxAttempts int
	backoff     time.Duration

	mu        sync.Mutex
	st        state
	gen       uint64
	attached  bool
	listeners []registration
	kick      chan struct{}
	cancel    context.CancelFunc
	done      chan struct{}

	runMu sync.Mutex

	healthMu sync.RWMutex
	health   Health
}

func New(room core.RoomGraph, events core.Emitter, opts ...Option) *Engine {
	e := &Engine{
		room:        room,
		events:      events,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Attach registers the four floor listeners and starts the run worker.
func (e *Engine) Attach(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.attached {
		return
	}
	e.listeners = []registration{
		{core.KindConferenceFloorChanged, e.events.On(core.KindConferenceFloorChanged, e.handle)},
		{core.KindContentFloorChanged, e.events.On(core.KindContentFloorChanged, e.handle)},
		{core.KindMediaConnected, e.events.On(core.KindMediaConnected, e.handle)},
		{core.KindMediaDisconnected, e.events.On(core.KindMediaDisconnected, e.handle)},
	}

	ctx, cancel := context.WithCancel(ctx)
	e.kick = make(chan struct{}, 1)
	e.done = make(chan struct{})
	e.cancel = cancel
	e.attached = true
	go e.worker(ctx, e.kick, e.done)

	log.Info().Str("module", "app.floor").Str("room", string(e.room.ID())).Msg("attached")
}

// Detach unregisters every listener, drops floor state and waits for the
// worker to exit. Calling it again is a no-op. A floor event still being
// resolved when Detach runs is discarded.
func (e *Engine) Detach() {
	e.mu.Lock()
	if !e.attached {
		e.mu.Unlock()
		return
	}
	for _, l := range e.listeners {
		e.events.Off(l.kind, l.id)
	}
	e.listeners = nil
	e.st = state{}
	e.gen++
	e.attached = false
	e.kick = nil
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	cancel()
	<-done
	log.Info().Str("module", "app.floor").Str("room", string(e.room.ID())).Msg("detached")
}

func (e *Engine) Health() Health {
	e.healthMu.RLock()
	defer e.healthMu.RUnlock()
	return e.health
}

func (e *Engine) handle(ev core.Event) {
	switch ev := ev.(type) {
	case core.ConferenceFloorChanged:
		e.OnConferenceFloorChanged(ev)
	case core.ContentFloorChanged:
		e.OnContentFloorChanged(ev)
	case core.MediaConnected, core.MediaDisconnected:
		e.OnMediaConnectivityChanged(ev)
	}
}

func (e *Engine) OnConferenceFloorChanged(ev core.ConferenceFloorChanged) {
	if ev.RoomID != e.room.ID() {
		return
	}
	gen := e.generation()
	floor := e.resolve(ev.Floor)
	previous := filterByTransport(e.resolveAll(ev.PreviousFloor))

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		return
	}
	e.st.conference = floor
	e.st.previousConference = previous
	e.mu.Unlock()

	log.Info().Str("module", "app.floor").Str("room", string(ev.RoomID)).Int("previous", len(previous)).Msg("conference floor changed")
	e.trigger()
}

func (e *Engine) OnContentFloorChanged(ev core.ContentFloorChanged) {
	if ev.RoomID != e.room.ID() {
		return
	}
	gen := e.generation()
	floor := e.resolve(ev.Floor)
	previous := e.resolveAll(ev.PreviousFloor)

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		return
	}
	e.st.content = floor
	e.st.previousContent = previous
	e.mu.Unlock()

	log.Info().Str("module", "app.floor").Str("room", string(ev.RoomID)).Bool("content", floor != nil).Msg("content floor changed")
	e.trigger()
}

// OnMediaConnectivityChanged re-runs the strategy for any connect or
// disconnect, whatever unit it concerns.
func (e *Engine) OnMediaConnectivityChanged(core.Event) {
	e.trigger()
}

func (e *Engine) trigger() {
	e.mu.Lock()
	kick := e.kick
	e.mu.Unlock()
	if kick == nil {
		return
	}
	select {
	case kick <- struct{}{}:
	default:
	}
}

func (e *Engine) generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen
}

func (e *Engine) snapshot() state {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st
}

func (e *Engine) resolve(ref *core.FloorRef) *domain.MediaSession {
	if ref == nil {
		return nil
	}
	ms, ok := e.room.MediaSession(ref.MediaSessionID)
	if !ok {
		return nil
	}
	return ms
}

// resolveAll skips sessions that left the room.
func (e *Engine) resolveAll(refs []core.FloorRef) []*domain.MediaSession {
	out := make([]*domain.MediaSession, 0, len(refs))
	for _, r := range refs {
		if ms, ok := e.room.MediaSession(r.MediaSessionID); ok {
			out = append(out, ms)
		}
	}
	return out
}

func (e *Engine) worker(ctx context.Context, kick <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-kick:
			e.runWithRetry(ctx)
		}
	}
}

func (e *Engine) runWithRetry(ctx context.Context) {
	l := log.With().Str("module", "app.floor").Str("room", string(e.room.ID())).Logger()
	var err error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		start := time.Now()
		err = e.RunStrategy(ctx)
		runDuration.Observe(time.Since(start).Seconds())
		if err == nil {
			runsTotal.WithLabelValues("ok").Inc()
			break
		}
		runsTotal.WithLabelValues("error").Inc()
		l.Warn().Err(err).Int("attempt", attempt).Msg("strategy run failed")
		if attempt == e.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(e.backoff * time.Duration(attempt)):
		}
	}

	e.healthMu.Lock()
	e.health.LastRun = time.Now()
	e.health.LastErr = err
	e.health.Runs++
	if err != nil {
		e.health.ConsecutiveFailures++
	} else {
		e.health.ConsecutiveFailures = 0
	}
	e.healthMu.Unlock()

	if err != nil {
		l.Error().Err(err).Msg("strategy gave up, floors may be stale")
	}
}
