package orch

import (
	"context"

	"github.com/dkeye/Conference/internal/app/floor"
	"github.com/dkeye/Conference/internal/app/router"
	"github.com/dkeye/Conference/internal/core"
	"github.com/dkeye/Conference/internal/domain"
	"github.com/rs/zerolog/log"
)

// join makes sure the room exists with a floor engine attached and the
// requesting user is a member. The room is held open until finishJoin.
func (o *Orchestrator) join(ctx context.Context, msg router.Message) (core.RoomService, *domain.User, error) {
	if msg.RoomID == "" {
		return nil, nil, ErrNoRoom
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.engines == nil {
		o.engines = make(map[domain.RoomID]*floor.Engine)
		o.pending = make(map[domain.RoomID]int)
	}

	room, created := o.Rooms.GetOrCreate(msg.RoomID)
	if _, ok := o.engines[room.ID()]; created || !ok {
		o.attachEngineLocked(ctx, room)
	}

	user, ok := room.User(msg.UserID)
	if !ok {
		u, err := domain.NewUser(msg.UserID, msg.UserName)
		if err != nil {
			o.sweepLocked(room)
			return nil, nil, err
		}
		room.AddUser(u)
		user = u
	}
	o.pending[room.ID()]++
	return room, user, nil
}

func (o *Orchestrator) finishJoin(room core.RoomService) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := room.ID()
	if o.pending[id]--; o.pending[id] <= 0 {
		delete(o.pending, id)
	}
	o.sweepLocked(room)
}

func (o *Orchestrator) attachEngineLocked(ctx context.Context, room core.RoomService) {
	base := o.ctx
	if base == nil {
		base = context.WithoutCancel(ctx)
	}
	e := floor.New(room, o.Events, o.FloorOpts...)
	e.Attach(base)
	o.engines[room.ID()] = e
}

// sweepLocked drops users left without media sessions and stops the room
// once it has no members and no start in flight.
func (o *Orchestrator) sweepLocked(room core.RoomService) {
	id := room.ID()
	if o.pending[id] > 0 {
		return
	}
	for _, m := range room.Members() {
		if m.Type == domain.MemberUser && len(room.UserMediaSessions(m.UserID)) == 0 {
			room.RemoveUser(m.UserID)
		}
	}
	if room.MemberCount() == 0 {
		o.evictRoomLocked(id)
	}
}

func (o *Orchestrator) evictRoomLocked(id domain.RoomID) {
	if e, ok := o.engines[id]; ok {
		e.Detach()
		delete(o.engines, id)
	}
	delete(o.pending, id)
	o.Rooms.StopRoom(id)
	log.Info().Str("module", "app.orch").Str("room", string(id)).Msg("room stopped")
}

// floor hands the conference floor to the media session of the request.
func (o *Orchestrator) floor(ctx context.Context, msg router.Message) {
	leg, ok := o.legOf(msg)
	if !ok {
		o.respondError(ctx, msg, ErrLegNotFound)
		return
	}
	room, ok := o.Rooms.Get(leg.RoomID)
	if !ok {
		o.respondError(ctx, msg, ErrLegNotFound)
		return
	}
	if err := room.SetConferenceFloor(leg.Session.ID); err != nil {
		o.respondError(ctx, msg, err)
		return
	}
	log.Info().Str("module", "app.orch").Str("room", string(leg.RoomID)).Str("sid", string(leg.Session.ID)).Msg("conference floor")
}

// releaseFloor gives up the floor the request's media session holds: the
// content floor for screenshare, the conference floor otherwise.
func (o *Orchestrator) releaseFloor(ctx context.Context, msg router.Message) {
	leg, ok := o.legOf(msg)
	if !ok {
		o.respondError(ctx, msg, ErrLegNotFound)
		return
	}
	room, ok := o.Rooms.Get(leg.RoomID)
	if !ok {
		o.respondError(ctx, msg, ErrLegNotFound)
		return
	}
	var released bool
	if msg.Type == router.KindScreenshare {
		released = room.ReleaseContentFloor(leg.Session.ID)
	} else {
		released = room.ReleaseConferenceFloor(leg.Session.ID)
	}
	if !released {
		o.respondError(ctx, msg, ErrNotFloor)
		return
	}
	log.Info().Str("module", "app.orch").Str("room", string(leg.RoomID)).Str("sid", string(leg.Session.ID)).Msg("floor released")
}
