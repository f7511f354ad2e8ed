package mediaengine

import (
	"context"
	"sync"

	"github.com/dkeye/Conference/internal/domain"
	"github.com/rs/zerolog/log"
)

type relayKey struct {
	src  domain.ElementID
	kind domain.MediaKind
}

// RelayManager owns one relay per source element and kind. Sinks switched to
// a source whose track has not arrived yet wait in pending.
type RelayManager struct {
	mu      sync.RWMutex
	relays  map[relayKey]*Relay
	pending map[relayKey]map[domain.ElementID]*OutTrack
}

func NewRelayManager() *RelayManager {
	return &RelayManager{
		relays:  make(map[relayKey]*Relay),
		pending: make(map[relayKey]map[domain.ElementID]*OutTrack),
	}
}

// StartRelay creates the relay of src for kind and starts its loop.
func (m *RelayManager) StartRelay(ctx context.Context, src domain.ElementID, kind domain.MediaKind, track packetSource) {
	logger := log.With().
		Str("module", "adapters.mediaengine.relay").
		Str("element", string(src)).
		Str("kind", string(kind)).
		Logger()

	relayCtx, cancel := context.WithCancel(ctx)
	relay := NewRelay(track, cancel)
	key := relayKey{src, kind}

	m.mu.Lock()
	if old, ok := m.relays[key]; ok {
		logger.Info().Msg("replacing existing relay")
		old.markAllDelete()
		old.cancel()
	}
	for sink, ot := range m.pending[key] {
		relay.AddOutTrack(sink, ot)
	}
	delete(m.pending, key)
	m.relays[key] = relay
	m.mu.Unlock()

	logger.Info().Msg("starting relay loop")
	go relay.loop(relayCtx, &logger)
}

// AddSubscriber feeds the window of sink from src.
func (m *RelayManager) AddSubscriber(src domain.ElementID, kind domain.MediaKind, sink domain.ElementID, ot *OutTrack) {
	key := relayKey{src, kind}
	m.mu.Lock()
	defer m.mu.Unlock()
	if relay, ok := m.relays[key]; ok {
		relay.AddOutTrack(sink, ot)
		return
	}
	if m.pending[key] == nil {
		m.pending[key] = make(map[domain.ElementID]*OutTrack)
	}
	m.pending[key][sink] = ot
}

func (m *RelayManager) MarkSubscriberDelete(src domain.ElementID, kind domain.MediaKind, sink domain.ElementID) {
	key := relayKey{src, kind}
	m.mu.Lock()
	defer m.mu.Unlock()
	if relay, ok := m.relays[key]; ok {
		relay.markDelete(sink)
	}
	delete(m.pending[key], sink)
}

func (m *RelayManager) StopRelay(src domain.ElementID, kind domain.MediaKind) {
	key := relayKey{src, kind}
	m.mu.Lock()
	relay, ok := m.relays[key]
	delete(m.relays, key)
	delete(m.pending, key)
	m.mu.Unlock()
	if !ok {
		return
	}
	relay.markAllDelete()
	relay.cancel()
}

// Subscribers counts sinks attached to src, pending ones included.
func (m *RelayManager) Subscribers(src domain.ElementID, kind domain.MediaKind) int {
	key := relayKey{src, kind}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.pending[key])
	if relay, ok := m.relays[key]; ok {
		n += relay.sinks()
	}
	return n
}
