// Package orch is the session manager worker: it consumes signaling
// requests from the bus, drives negotiation and the media engine, keeps the
// room graph current and answers on the response channels.
package orch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Conference/internal/app"
	"github.com/dkeye/Conference/internal/app/floor"
	"github.com/dkeye/Conference/internal/app/negotiation"
	"github.com/dkeye/Conference/internal/app/router"
	"github.com/dkeye/Conference/internal/core"
	"github.com/dkeye/Conference/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoRoom      = errors.New("room id required")
	ErrLegNotFound = errors.New("media session not started")
	ErrNoCandidate = errors.New("candidate missing")
	ErrNotFloor    = errors.New("media session does not hold the floor")
)

// Hosts is the balancer surface the worker needs.
type Hosts interface {
	negotiation.HostLoad
	PickHost() (*domain.Host, error)
	DecrementHostStreams(id domain.HostID, kind domain.MediaKind)
}

type Orchestrator struct {
	Registry  *app.Registry
	Rooms     core.RoomManager
	Events    core.Emitter
	Media     core.MediaController
	Hosts     Hosts
	Bus       core.Bus
	FloorOpts []floor.Option

	mu      sync.Mutex
	engines map[domain.RoomID]*floor.Engine
	pending map[domain.RoomID]int
	subs    []core.Subscription
	ctx     context.Context
	wg      sync.WaitGroup
}

// Start subscribes the request channel of every kind and serves it until
// Stop. Locally gathered candidates are forwarded to their connections.
func (o *Orchestrator) Start(ctx context.Context, kinds ...router.Kind) error {
	o.mu.Lock()
	o.ctx = ctx
	o.mu.Unlock()
	o.Media.OnIceCandidate(o.onLocalCandidate)

	for _, k := range kinds {
		sub, err := o.Bus.Subscribe(ctx, k.ToChannel())
		if err != nil {
			o.closeSubs()
			return fmt.Errorf("subscribe %s: %w", k.ToChannel(), err)
		}
		o.mu.Lock()
		o.subs = append(o.subs, sub)
		o.mu.Unlock()
		o.wg.Add(1)
		go o.consume(ctx, sub)
		log.Info().Str("module", "app.orch").Str("channel", sub.Channel()).Msg("serving")
	}
	return nil
}

func (o *Orchestrator) consume(ctx context.Context, sub core.Subscription) {
	defer o.wg.Done()
	for payload := range sub.C() {
		var msg router.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			log.Warn().Str("module", "app.orch").Str("channel", sub.Channel()).Err(err).Msg("bad request")
			continue
		}
		o.Handle(ctx, msg)
	}
}

// Stop ends every subscription, waits for in-flight requests and tears
// down all rooms this worker still serves.
func (o *Orchestrator) Stop(ctx context.Context) {
	o.closeSubs()
	o.wg.Wait()
	for _, leg := range o.Registry.All() {
		o.stopLeg(ctx, leg)
	}
	o.mu.Lock()
	ids := make([]domain.RoomID, 0, len(o.engines))
	for id := range o.engines {
		ids = append(ids, id)
	}
	for _, id := range ids {
		o.evictRoomLocked(id)
	}
	o.mu.Unlock()
}

func (o *Orchestrator) closeSubs() {
	o.mu.Lock()
	subs := o.subs
	o.subs = nil
	o.mu.Unlock()
	for _, s := range subs {
		if err := s.Close(); err != nil {
			log.Warn().Str("module", "app.orch").Str("channel", s.Channel()).Err(err).Msg("close subscription")
		}
	}
}

// Handle serves one request.
func (o *Orchestrator) Handle(ctx context.Context, msg router.Message) {
	if _, ok := router.ParseKind(string(msg.Type)); !ok {
		log.Debug().Str("module", "app.orch").Str("type", string(msg.Type)).Msg("dropping request")
		return
	}
	switch msg.ID {
	case router.ActionStart:
		o.start(ctx, msg)
	case router.ActionOnIceCandidate:
		o.addCandidate(ctx, msg)
	case router.ActionStop:
		o.stop(ctx, msg)
	case router.ActionFloor:
		o.floor(ctx, msg)
	case router.ActionReleaseFloor:
		o.releaseFloor(ctx, msg)
	case router.ActionClose:
		o.closeConnection(ctx, msg)
	default:
		log.Debug().Str("module", "app.orch").Str("id", msg.ID).Msg("unknown action")
	}
}

// FloorHealth reports the health of every attached floor engine.
func (o *Orchestrator) FloorHealth() map[domain.RoomID]floor.Health {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[domain.RoomID]floor.Health, len(o.engines))
	for id, e := range o.engines {
		out[id] = e.Health()
	}
	return out
}

// respond answers req on the response channel of its kind.
func (o *Orchestrator) respond(ctx context.Context, req router.Message, res router.Message) {
	res.Type = req.Type
	res.ConnectionID = req.ConnectionID
	res.RoomID = req.RoomID
	if res.UserID == "" {
		res.UserID = req.UserID
	}
	payload, err := json.Marshal(res)
	if err != nil {
		log.Error().Str("module", "app.orch").Err(err).Msg("marshal response")
		return
	}
	if err := o.Bus.Publish(ctx, req.Type.FromChannel(), payload); err != nil {
		log.Warn().Str("module", "app.orch").Str("channel", req.Type.FromChannel()).Err(err).Msg("publish response")
	}
}

func (o *Orchestrator) respondError(ctx context.Context, req router.Message, err error) {
	o.respond(ctx, req, router.Message{ID: router.ActionError, Message: err.Error()})
}

// legOf finds the leg a request refers to: by media session id when given,
// else the latest leg the connection started for the kind.
func (o *Orchestrator) legOf(msg router.Message) (*app.Leg, bool) {
	if msg.MediaSessionID != "" {
		return o.Registry.Get(msg.MediaSessionID)
	}
	return o.Registry.Latest(msg.ConnectionID, string(msg.Type))
}
