package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/Conference/internal/app"
	"github.com/dkeye/Conference/internal/app/negotiation"
	"github.com/dkeye/Conference/internal/app/router"
	"github.com/dkeye/Conference/internal/core"
	"github.com/dkeye/Conference/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) start(ctx context.Context, msg router.Message) {
	leg, answer, err := o.startLeg(ctx, msg)
	if err != nil {
		log.Warn().Str("module", "app.orch").
			Str("conn", msg.ConnectionID).
			Str("room", string(msg.RoomID)).
			Str("type", string(msg.Type)).
			Err(err).Msg("start rejected")
		o.respond(ctx, msg, router.Message{
			ID:       router.ActionStartResponse,
			Role:     msg.Role,
			Response: router.ResponseRejected,
			Message:  err.Error(),
		})
		return
	}
	o.respond(ctx, msg, router.Message{
		ID:             router.ActionStartResponse,
		Role:           msg.Role,
		UserID:         leg.UserID,
		MediaSessionID: leg.Session.ID,
		SDPAnswer:      answer,
		Response:       router.ResponseAccepted,
	})
	for _, c := range leg.MarkAnswered() {
		o.sendCandidate(ctx, leg, c)
	}
}

func (o *Orchestrator) startLeg(ctx context.Context, msg router.Message) (*app.Leg, string, error) {
	room, user, err := o.join(ctx, msg)
	if err != nil {
		return nil, "", err
	}
	leg, answer, err := o.negotiate(ctx, room, user, msg)
	o.finishJoin(room)
	if err != nil {
		return nil, "", err
	}
	return leg, answer, nil
}

func (o *Orchestrator) negotiate(ctx context.Context, room core.RoomService, user *domain.User, msg router.Message) (*app.Leg, string, error) {
	host, err := o.Hosts.PickHost()
	if err != nil {
		return nil, "", err
	}
	el, err := o.Media.CreateElement(ctx, host.ID, domain.TransportWebRTC)
	if err != nil {
		return nil, "", fmt.Errorf("create element: %w", err)
	}
	neg := negotiation.New(o.Media, o.Hosts, negotiation.Config{
		Element:   el,
		Transport: domain.TransportWebRTC,
		Host:      host,
		Name:      user.Username,
	})
	if err := neg.SetOffer(msg.SDPOffer); err != nil {
		o.release(ctx, el)
		return nil, "", err
	}

	ms := domain.NewMediaSession(room.ID(), user.ID, user.Username, domain.TransportWebRTC)
	ms.AddMedia(el, neg.MediaTypes())
	leg := &app.Leg{
		Kind:         string(msg.Type),
		Role:         msg.Role,
		ConnectionID: msg.ConnectionID,
		RoomID:       room.ID(),
		UserID:       user.ID,
		Session:      ms,
		Negotiation:  neg,
	}
	// Bound before processing so candidates gathered meanwhile find their leg.
	o.Registry.Bind(leg)

	answer, err := neg.Process(ctx)
	if err != nil {
		o.releaseLeg(ctx, leg)
		return nil, "", err
	}
	if err := room.AddMediaSession(ms); err != nil {
		o.releaseLeg(ctx, leg)
		return nil, "", err
	}
	o.Events.Emit(core.MediaConnected{RoomID: room.ID(), MediaSessionID: ms.ID})

	if msg.Type == router.KindScreenshare && msg.Role == router.RolePresenter {
		if err := room.SetContentFloor(ms.ID); err != nil {
			log.Warn().Str("module", "app.orch").Str("sid", string(ms.ID)).Err(err).Msg("content floor")
		}
	}
	log.Info().Str("module", "app.orch").
		Str("room", string(room.ID())).
		Str("user", string(user.ID)).
		Str("sid", string(ms.ID)).
		Str("type", string(msg.Type)).
		Msg("media session started")
	return leg, answer, nil
}

func (o *Orchestrator) addCandidate(ctx context.Context, msg router.Message) {
	if msg.Candidate == nil {
		o.respondError(ctx, msg, ErrNoCandidate)
		return
	}
	leg, ok := o.legOf(msg)
	if !ok {
		o.respondError(ctx, msg, ErrLegNotFound)
		return
	}
	if err := leg.Negotiation.AddIceCandidate(ctx, *msg.Candidate); err != nil {
		log.Warn().Str("module", "app.orch").Str("sid", string(leg.Session.ID)).Err(err).Msg("add candidate")
		o.respondError(ctx, msg, err)
	}
}

// onLocalCandidate is the engine callback for gathered candidates.
func (o *Orchestrator) onLocalCandidate(el domain.ElementID, c webrtc.ICECandidateInit) {
	leg, ok := o.Registry.ByElement(el)
	if !ok {
		return
	}
	if leg.HoldCandidate(c) {
		return
	}
	o.mu.Lock()
	ctx := o.ctx
	o.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	o.sendCandidate(ctx, leg, c)
}

func (o *Orchestrator) sendCandidate(ctx context.Context, leg *app.Leg, c webrtc.ICECandidateInit) {
	req := router.Message{
		Type:         router.Kind(leg.Kind),
		ConnectionID: leg.ConnectionID,
		RoomID:       leg.RoomID,
		UserID:       leg.UserID,
	}
	o.respond(ctx, req, router.Message{
		ID:             router.ActionIceCandidate,
		MediaSessionID: leg.Session.ID,
		Candidate:      &c,
	})
}

func (o *Orchestrator) stop(ctx context.Context, msg router.Message) {
	leg, ok := o.legOf(msg)
	if !ok {
		log.Debug().Str("module", "app.orch").Str("conn", msg.ConnectionID).Msg("stop without media session")
		return
	}
	o.stopLeg(ctx, leg)
}

// closeConnection stops every leg the connection started for the kind.
func (o *Orchestrator) closeConnection(ctx context.Context, msg router.Message) {
	for _, leg := range o.Registry.ByConnection(msg.ConnectionID, string(msg.Type)) {
		o.stopLeg(ctx, leg)
	}
}

// stopLeg removes the leg from its room, frees its element and leaves the
// room when nobody else is in it.
func (o *Orchestrator) stopLeg(ctx context.Context, leg *app.Leg) {
	if _, ok := o.Registry.Get(leg.Session.ID); !ok {
		return
	}
	room, ok := o.Rooms.Get(leg.RoomID)
	if ok {
		if _, removed := room.RemoveMediaSession(leg.Session.ID); removed {
			o.Events.Emit(core.MediaDisconnected{RoomID: leg.RoomID, MediaSessionID: leg.Session.ID})
		}
	}
	o.releaseLeg(ctx, leg)
	if ok {
		o.mu.Lock()
		o.sweepLocked(room)
		o.mu.Unlock()
	}
	log.Info().Str("module", "app.orch").Str("room", string(leg.RoomID)).Str("sid", string(leg.Session.ID)).Msg("media session stopped")
}

// releaseLeg forgets the leg, frees the element and returns the host load.
func (o *Orchestrator) releaseLeg(ctx context.Context, leg *app.Leg) {
	if _, ok := o.Registry.Unbind(leg.Session.ID); !ok {
		return
	}
	o.release(ctx, leg.Element())
	neg := leg.Negotiation
	if h := neg.Host(); h != nil {
		if neg.HasVideo() {
			o.Hosts.DecrementHostStreams(h.ID, domain.MediaKindVideo)
		}
		if neg.HasAudio() {
			o.Hosts.DecrementHostStreams(h.ID, domain.MediaKindAudio)
		}
	}
}

func (o *Orchestrator) release(ctx context.Context, el domain.ElementID) {
	if err := o.Media.Release(ctx, el); err != nil {
		log.Warn().Str("module", "app.orch").Str("element", string(el)).Err(err).Msg("release element")
	}
}
