package mediaengine

import (
	"context"
	"maps"
	"sync"

	"github.com/dkeye/Conference/internal/domain"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
)

// packetSource is the read side of a remote track.
type packetSource interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// Relay copies the packets of one source element track into the windows of
// every sink switched to it.
type Relay struct {
	src packetSource

	mu        sync.RWMutex
	outTracks map[domain.ElementID]*OutTrack

	cancel context.CancelFunc
}

func NewRelay(src packetSource, cancel context.CancelFunc) *Relay {
	return &Relay{
		src:       src,
		outTracks: make(map[domain.ElementID]*OutTrack),
		cancel:    cancel,
	}
}

func (r *Relay) loop(ctx context.Context, logger *zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("relay ctx done, dropping all windows")
			r.markAllDelete()
			return
		default:
		}
		pkt, _, err := r.src.ReadRTP()
		if err != nil {
			logger.Debug().Err(err).Msg("relay read RTP stopped")
			r.markAllDelete()
			return
		}
		r.forward(pkt, logger)
	}
}

func (r *Relay) forward(pkt *rtp.Packet, logger *zerolog.Logger) {
	r.mu.RLock()
	snapshot := maps.Clone(r.outTracks)
	r.mu.RUnlock()

	var dirty []domain.ElementID
	for sink, ot := range snapshot {
		if ot.Dropped() {
			dirty = append(dirty, sink)
			continue
		}
		if err := ot.Track.WriteRTP(pkt); err != nil {
			logger.Error().Err(err).Str("sink", string(sink)).Msg("relay write RTP error, dropping window")
			ot.Drop()
			dirty = append(dirty, sink)
		}
	}
	if len(dirty) > 0 {
		r.cleanupDeleted(dirty)
	}
}

// cleanupDeleted only drops tracks still marked, a sink may have been
// switched back in the meantime.
func (r *Relay) cleanupDeleted(dirty []domain.ElementID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sink := range dirty {
		if ot, ok := r.outTracks[sink]; ok && ot.Dropped() {
			delete(r.outTracks, sink)
		}
	}
}

func (r *Relay) markAllDelete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ot := range r.outTracks {
		ot.Drop()
	}
}

func (r *Relay) AddOutTrack(sink domain.ElementID, ot *OutTrack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outTracks[sink] = ot
}

func (r *Relay) markDelete(sink domain.ElementID) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ot, ok := r.outTracks[sink]; ok {
		ot.Drop()
	}
}

func (r *Relay) sinks() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.outTracks)
}
