package mediaengine

import (
	"context"
	"sync"

	"github.com/dkeye/Conference/internal/domain"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// element is one transport endpoint backed by a PeerConnection. Local ICE
// candidates are held back until gathering is requested.
type element struct {
	id        domain.ElementID
	host      domain.HostID
	transport domain.TransportKind
	pc        *webrtc.PeerConnection
	ctx       context.Context
	cancel    context.CancelFunc

	mu        sync.Mutex
	windows   map[domain.MediaKind]*webrtc.TrackLocalStaticRTP
	incoming  map[domain.MediaKind]*webrtc.TrackRemote
	gathering bool
	pending   []webrtc.ICECandidateInit
}

func (e *element) window(kind domain.MediaKind) (*webrtc.TrackLocalStaticRTP, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, ok := e.windows[kind]
	return w, ok
}

// addWindow creates the single outgoing track of kind the sink is switched
// through. It is a no-op if the window exists.
func (e *element) addWindow(kind domain.MediaKind) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.windows[kind]; ok {
		return nil
	}
	track, err := webrtc.NewTrackLocalStaticRTP(capability(kind), string(kind), "conference-"+string(e.id))
	if err != nil {
		return err
	}
	sender, err := e.pc.AddTrack(track)
	if err != nil {
		return err
	}
	go drainRTCP(sender)
	e.windows[kind] = track
	return nil
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func (e *element) setIncoming(kind domain.MediaKind, track *webrtc.TrackRemote) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.incoming[kind] = track
}

// queueCandidate reports whether c may be delivered right away.
func (e *element) queueCandidate(c webrtc.ICECandidateInit) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gathering {
		return true
	}
	e.pending = append(e.pending, c)
	return false
}

// startGathering releases the held back candidates.
func (e *element) startGathering() []webrtc.ICECandidateInit {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gathering = true
	out := e.pending
	e.pending = nil
	return out
}

// requestKeyframe asks the sender of the incoming video for a fresh
// keyframe so a newly switched sink can start decoding.
func (e *element) requestKeyframe() {
	e.mu.Lock()
	track, ok := e.incoming[domain.MediaKindVideo]
	e.mu.Unlock()
	if !ok {
		return
	}
	err := e.pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())}})
	if err != nil {
		log.Debug().Str("module", "adapters.mediaengine").Str("element", string(e.id)).Err(err).Msg("pli failed")
	}
}

func (e *element) close() error {
	e.cancel()
	return e.pc.Close()
}
