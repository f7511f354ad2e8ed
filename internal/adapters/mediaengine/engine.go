// Package mediaengine is an in-process media engine built on pion. Elements
// are PeerConnections; switching a sink to a source points the sink's
// outgoing window track at the source's relay.
package mediaengine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Conference/internal/core"
	"github.com/dkeye/Conference/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownElement       = errors.New("unknown media element")
	ErrUnsupportedTransport = errors.New("unsupported transport")
	ErrNoWindow             = errors.New("sink element cannot receive this kind")
)

type Config struct {
	ICEServers []string
}

type Engine struct {
	ctx    context.Context
	api    *webrtc.API
	rtcCfg webrtc.Configuration
	relays *RelayManager

	mu       sync.RWMutex
	elements map[domain.ElementID]*element
	// sources maps a sink and kind to the element it is switched to.
	sources map[domain.ElementID]map[domain.MediaKind]domain.ElementID

	cbMu  sync.RWMutex
	onICE func(domain.ElementID, webrtc.ICECandidateInit)
}

// New builds an engine whose elements live at most as long as ctx.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	api, err := newAPI()
	if err != nil {
		return nil, fmt.Errorf("mediaengine - New - newAPI: %w", err)
	}
	rtcCfg := webrtc.Configuration{}
	if len(cfg.ICEServers) > 0 {
		rtcCfg.ICEServers = []webrtc.ICEServer{{URLs: cfg.ICEServers}}
	}
	return &Engine{
		ctx:      ctx,
		api:      api,
		rtcCfg:   rtcCfg,
		relays:   NewRelayManager(),
		elements: make(map[domain.ElementID]*element),
		sources:  make(map[domain.ElementID]map[domain.MediaKind]domain.ElementID),
	}, nil
}

func (e *Engine) OnIceCandidate(fn func(el domain.ElementID, candidate webrtc.ICECandidateInit)) {
	e.cbMu.Lock()
	defer e.cbMu.Unlock()
	e.onICE = fn
}

func (e *Engine) emitCandidate(id domain.ElementID, c webrtc.ICECandidateInit) {
	e.cbMu.RLock()
	fn := e.onICE
	e.cbMu.RUnlock()
	if fn != nil {
		fn(id, c)
	}
}

func (e *Engine) CreateElement(_ context.Context, host domain.HostID, transport domain.TransportKind) (domain.ElementID, error) {
	if transport != domain.TransportWebRTC && transport != domain.TransportRTP {
		return "", fmt.Errorf("create element %s: %w", transport, ErrUnsupportedTransport)
	}
	pc, err := e.api.NewPeerConnection(e.rtcCfg)
	if err != nil {
		return "", fmt.Errorf("mediaengine - CreateElement - NewPeerConnection: %w", err)
	}

	ctx, cancel := context.WithCancel(e.ctx)
	el := &element{
		id:        domain.ElementID(uuid.NewString()),
		host:      host,
		transport: transport,
		pc:        pc,
		ctx:       ctx,
		cancel:    cancel,
		windows:   make(map[domain.MediaKind]*webrtc.TrackLocalStaticRTP),
		incoming:  make(map[domain.MediaKind]*webrtc.TrackRemote),
	}
	e.wire(el)

	e.mu.Lock()
	e.elements[el.id] = el
	e.mu.Unlock()

	log.Info().Str("module", "adapters.mediaengine").Str("element", string(el.id)).
		Str("host", string(host)).Str("transport", string(transport)).Msg("element created")
	return el.id, nil
}

func (e *Engine) wire(el *element) {
	logger := log.With().Str("module", "adapters.mediaengine").Str("element", string(el.id)).Logger()

	el.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		if el.queueCandidate(init) {
			e.emitCandidate(el.id, init)
		}
	})

	el.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		logger.Info().Str("peer_connection_state", s.String()).Msg("peer state")
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			el.cancel()
		}
	})

	el.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		kind, ok := kindOf(track.Kind())
		if !ok {
			return
		}
		logger.Info().Str("kind", string(kind)).Str("track_id", track.ID()).Msg("incoming track")
		el.setIncoming(kind, track)
		e.relays.StartRelay(el.ctx, el.id, kind, track)
		if kind == domain.MediaKindVideo {
			el.requestKeyframe()
		}
	})
}

func (e *Engine) element(id domain.ElementID) (*element, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	el, ok := e.elements[id]
	if !ok {
		return nil, fmt.Errorf("element %s: %w", id, ErrUnknownElement)
	}
	return el, nil
}

// ProcessOffer applies the remote offer, opens a window track for every kind
// the remote side wants to receive and answers.
func (e *Engine) ProcessOffer(_ context.Context, id domain.ElementID, offer string, opts core.OfferOptions) (string, error) {
	el, err := e.element(id)
	if err != nil {
		return "", err
	}
	if err := el.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer}); err != nil {
		return "", fmt.Errorf("mediaengine - ProcessOffer - SetRemoteDescription: %w", err)
	}

	parsed, err := el.pc.RemoteDescription().Unmarshal()
	if err != nil {
		return "", fmt.Errorf("mediaengine - ProcessOffer - Unmarshal: %w", err)
	}
	for _, kind := range receivingKinds(parsed) {
		if err := el.addWindow(kind); err != nil {
			return "", fmt.Errorf("mediaengine - ProcessOffer - addWindow %s: %w", kind, err)
		}
	}

	answer, err := el.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("mediaengine - ProcessOffer - CreateAnswer: %w", err)
	}
	if err := el.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("mediaengine - ProcessOffer - SetLocalDescription: %w", err)
	}

	log.Info().Str("module", "adapters.mediaengine").Str("element", string(id)).Str("name", opts.Name).Msg("offer processed")
	return el.pc.LocalDescription().SDP, nil
}

// receivingKinds lists the kinds of enabled m-lines the offerer receives.
func receivingKinds(d *sdp.SessionDescription) []domain.MediaKind {
	var out []domain.MediaKind
	seen := make(map[domain.MediaKind]bool)
	for _, md := range d.MediaDescriptions {
		if md.MediaName.Port.Value == 0 {
			continue
		}
		var kind domain.MediaKind
		switch md.MediaName.Media {
		case "audio":
			kind = domain.MediaKindAudio
		case "video":
			kind = domain.MediaKindVideo
		default:
			continue
		}
		if _, sendOnly := md.Attribute("sendonly"); sendOnly {
			continue
		}
		if _, inactive := md.Attribute("inactive"); inactive {
			continue
		}
		if !seen[kind] {
			seen[kind] = true
			out = append(out, kind)
		}
	}
	return out
}

// GatherCandidates lets the element's local candidates flow to the
// callback, including those found before the call.
func (e *Engine) GatherCandidates(_ context.Context, id domain.ElementID) error {
	el, err := e.element(id)
	if err != nil {
		return err
	}
	if el.pc.ConnectionState() == webrtc.PeerConnectionStateClosed {
		return fmt.Errorf("gather candidates on %s: peer connection closed", id)
	}
	for _, c := range el.startGathering() {
		e.emitCandidate(id, c)
	}
	return nil
}

func (e *Engine) AddIceCandidate(_ context.Context, id domain.ElementID, candidate webrtc.ICECandidateInit) error {
	el, err := e.element(id)
	if err != nil {
		return err
	}
	if err := el.pc.AddICECandidate(candidate); err != nil {
		return fmt.Errorf("mediaengine - AddIceCandidate: %w", err)
	}
	return nil
}

// Connect switches the sink's window of kind to src. The previous source of
// that window, if any, stops feeding it.
func (e *Engine) Connect(_ context.Context, src, sink domain.ElementID, kind domain.MediaKind) error {
	kind = trackKind(kind)
	srcEl, err := e.element(src)
	if err != nil {
		return err
	}
	sinkEl, err := e.element(sink)
	if err != nil {
		return err
	}
	window, ok := sinkEl.window(kind)
	if !ok {
		return fmt.Errorf("connect %s -> %s (%s): %w", src, sink, kind, ErrNoWindow)
	}

	e.mu.Lock()
	if e.sources[sink] == nil {
		e.sources[sink] = make(map[domain.MediaKind]domain.ElementID)
	}
	old := e.sources[sink][kind]
	if old == src {
		e.mu.Unlock()
		return nil
	}
	if old != "" {
		e.relays.MarkSubscriberDelete(old, kind, sink)
	}
	e.relays.AddSubscriber(src, kind, sink, NewOutTrack(window))
	e.sources[sink][kind] = src
	e.mu.Unlock()

	if kind == domain.MediaKindVideo {
		srcEl.requestKeyframe()
	}
	log.Debug().Str("module", "adapters.mediaengine").Str("src", string(src)).Str("sink", string(sink)).
		Str("kind", string(kind)).Str("previous", string(old)).Msg("switched")
	return nil
}

// Release closes the element and detaches it from every relay. Releasing an
// unknown element is a no-op.
func (e *Engine) Release(_ context.Context, id domain.ElementID) error {
	e.mu.Lock()
	el, ok := e.elements[id]
	if !ok {
		e.mu.Unlock()
		return nil
	}
	delete(e.elements, id)
	for kind, src := range e.sources[id] {
		e.relays.MarkSubscriberDelete(src, kind, id)
	}
	delete(e.sources, id)
	for sink, kinds := range e.sources {
		for kind, src := range kinds {
			if src == id {
				delete(e.sources[sink], kind)
			}
		}
	}
	e.mu.Unlock()

	for _, kind := range []domain.MediaKind{domain.MediaKindAudio, domain.MediaKindVideo} {
		e.relays.StopRelay(id, kind)
	}
	if err := el.close(); err != nil {
		return fmt.Errorf("mediaengine - Release - close: %w", err)
	}
	log.Info().Str("module", "adapters.mediaengine").Str("element", string(id)).Msg("element released")
	return nil
}

// Close releases every element.
func (e *Engine) Close() error {
	e.mu.RLock()
	ids := make([]domain.ElementID, 0, len(e.elements))
	for id := range e.elements {
		ids = append(ids, id)
	}
	e.mu.RUnlock()

	var errs []error
	for _, id := range ids {
		if err := e.Release(context.Background(), id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ core.MediaController = (*Engine)(nil)
