package core

import (
	"sync"

	"github.com/rs/zerolog/log"
)

type (
	Handler    func(Event)
	ListenerID uint64
)

// Emitter is the in-process event stream rooms and engines share.
// It is constructed once and handed to every component that needs it.
type Emitter interface {
	On(kind EventKind, h Handler) ListenerID
	Off(kind EventKind, id ListenerID)
	Emit(ev Event)
}

type listener struct {
	id ListenerID
	h  Handler
}

// LocalEmitter delivers events synchronously, in registration order.
type LocalEmitter struct {
	mu        sync.RWMutex
	next      ListenerID
	listeners map[EventKind][]listener
}

func NewEmitter() *LocalEmitter {
	return &LocalEmitter{listeners: make(map[EventKind][]listener)}
}

func (e *LocalEmitter) On(kind EventKind, h Handler) ListenerID {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	e.listeners[kind] = append(e.listeners[kind], listener{id: e.next, h: h})
	return e.next
}

func (e *LocalEmitter) Off(kind EventKind, id ListenerID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ls := e.listeners[kind]
	for i, l := range ls {
		if l.id == id {
			e.listeners[kind] = append(ls[:i:i], ls[i+1:]...)
			return
		}
	}
}

func (e *LocalEmitter) Emit(ev Event) {
	e.mu.RLock()
	ls := append([]listener(nil), e.listeners[ev.Kind()]...)
	e.mu.RUnlock()

	log.Debug().Str("module", "core.emitter").Stringer("event", ev.Kind()).Int("listeners", len(ls)).Msg("emit")
	for _, l := range ls {
		l.h(ev)
	}
}

func (e *LocalEmitter) ListenerCount(kind EventKind) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[kind])
}
