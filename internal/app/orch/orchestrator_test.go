package orch_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Conference/internal/adapters/bus"
	"github.com/dkeye/Conference/internal/app"
	"github.com/dkeye/Conference/internal/app/balancer"
	"github.com/dkeye/Conference/internal/app/floor"
	"github.com/dkeye/Conference/internal/app/orch"
	"github.com/dkeye/Conference/internal/app/router"
	"github.com/dkeye/Conference/internal/core"
	"github.com/dkeye/Conference/internal/core/mocks"
	"github.com/dkeye/Conference/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func sdpOf(dir string) string {
	return strings.Join([]string{
		"v=0",
		"o=- 1 2 IN IP4 127.0.0.1",
		"s=-",
		"c=IN IP4 127.0.0.1",
		"t=0 0",
		"m=audio 9 UDP/TLS/RTP/SAVPF 111",
		"a=rtpmap:111 opus/48000/2",
		"a=" + dir,
		"m=video 9 UDP/TLS/RTP/SAVPF 96",
		"a=rtpmap:96 VP8/90000",
		"a=" + dir,
	}, "\r\n") + "\r\n"
}

type fixture struct {
	o      *orch.Orchestrator
	media  *mocks.MockMediaController
	bus    *bus.Local
	rooms  *app.RoomManagerImpl
	events *core.LocalEmitter
	host   *domain.Host
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	media := mocks.NewMockMediaController(ctrl)
	media.EXPECT().Connect(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	events := core.NewEmitter()
	rooms := app.NewRoomManager(events, media)
	host := domain.NewHost("h1", "10.0.0.1")
	f := &fixture{
		media:  media,
		bus:    bus.NewLocal(),
		rooms:  rooms,
		events: events,
		host:   host,
	}
	f.o = &orch.Orchestrator{
		Registry:  app.NewRegistry(),
		Rooms:     rooms,
		Events:    events,
		Media:     media,
		Hosts:     balancer.New(host),
		Bus:       f.bus,
		FloorOpts: []floor.Option{floor.WithBackoff(time.Millisecond)},
	}
	t.Cleanup(func() { f.o.Stop(context.Background()) })
	return f
}

func (f *fixture) expectStart(el domain.ElementID) {
	f.media.EXPECT().CreateElement(gomock.Any(), domain.HostID("h1"), domain.TransportWebRTC).Return(el, nil)
	f.media.EXPECT().ProcessOffer(gomock.Any(), el, gomock.Any(), gomock.Any()).Return(sdpOf("sendrecv"), nil)
	f.media.EXPECT().GatherCandidates(gomock.Any(), el).Return(nil)
}

func (f *fixture) responses(t *testing.T, kind router.Kind) core.Subscription {
	t.Helper()
	sub, err := f.bus.Subscribe(context.Background(), kind.FromChannel())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })
	return sub
}

func recv(t *testing.T, sub core.Subscription) router.Message {
	t.Helper()
	select {
	case p := <-sub.C():
		var m router.Message
		require.NoError(t, json.Unmarshal(p, &m))
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no response")
	}
	return router.Message{}
}

func startMsg(kind router.Kind, conn, user, role string) router.Message {
	return router.Message{
		Type:         kind,
		ID:           router.ActionStart,
		ConnectionID: conn,
		RoomID:       "r1",
		UserID:       domain.UserID(user),
		UserName:     user,
		Role:         role,
		SDPOffer:     sdpOf("sendrecv"),
	}
}

func TestStartAnswersAndCountsLoad(t *testing.T) {
	f := newFixture(t)
	f.expectStart("el-1")
	f.media.EXPECT().Release(gomock.Any(), domain.ElementID("el-1")).Return(nil)
	res := f.responses(t, router.KindVideo)

	f.o.Handle(context.Background(), startMsg(router.KindVideo, "c1", "alice", router.RoleShare))

	m := recv(t, res)
	assert.Equal(t, router.ActionStartResponse, m.ID)
	assert.Equal(t, router.ResponseAccepted, m.Response)
	assert.Equal(t, "c1", m.ConnectionID)
	assert.NotEmpty(t, m.SDPAnswer)
	require.NotEmpty(t, m.MediaSessionID)

	room, ok := f.rooms.Get("r1")
	require.True(t, ok)
	_, ok = room.MediaSession(m.MediaSessionID)
	assert.True(t, ok)
	assert.Equal(t, int64(1), f.host.Streams(domain.MediaKindVideo))
	assert.Equal(t, int64(1), f.host.Streams(domain.MediaKindAudio))
	assert.Contains(t, f.o.FloorHealth(), domain.RoomID("r1"))
}

func TestStopReleasesOpenLegs(t *testing.T) {
	f := newFixture(t)
	f.expectStart("el-1")
	f.media.EXPECT().Release(gomock.Any(), domain.ElementID("el-1")).Return(nil).Times(1)
	res := f.responses(t, router.KindVideo)

	f.o.Handle(context.Background(), startMsg(router.KindVideo, "c1", "alice", router.RoleShare))
	recv(t, res)
	require.Equal(t, 1, f.o.Registry.Len())

	f.o.Stop(context.Background())

	assert.Zero(t, f.o.Registry.Len())
	assert.Zero(t, f.host.TotalStreams())
	assert.Empty(t, f.o.FloorHealth())
	_, ok := f.rooms.Get("r1")
	assert.False(t, ok)
}

func TestStopReleasesAndStopsEmptyRoom(t *testing.T) {
	f := newFixture(t)
	f.expectStart("el-1")
	f.media.EXPECT().Release(gomock.Any(), domain.ElementID("el-1")).Return(nil).Times(1)
	res := f.responses(t, router.KindVideo)

	var disconnected []core.MediaDisconnected
	f.events.On(core.KindMediaDisconnected, func(ev core.Event) {
		disconnected = append(disconnected, ev.(core.MediaDisconnected))
	})

	ctx := context.Background()
	f.o.Handle(ctx, startMsg(router.KindVideo, "c1", "alice", router.RoleShare))
	sid := recv(t, res).MediaSessionID

	f.o.Handle(ctx, router.Message{Type: router.KindVideo, ID: router.ActionStop, ConnectionID: "c1", MediaSessionID: sid})

	require.Len(t, disconnected, 1)
	assert.Equal(t, sid, disconnected[0].MediaSessionID)
	assert.Zero(t, f.host.TotalStreams())
	assert.Zero(t, f.o.Registry.Len())
	_, ok := f.rooms.Get("r1")
	assert.False(t, ok)
	assert.Empty(t, f.o.FloorHealth())
}

func TestStartRejectedOnEngineFailure(t *testing.T) {
	f := newFixture(t)
	f.media.EXPECT().CreateElement(gomock.Any(), gomock.Any(), gomock.Any()).Return(domain.ElementID("el-1"), nil)
	f.media.EXPECT().ProcessOffer(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("boom"))
	f.media.EXPECT().Release(gomock.Any(), domain.ElementID("el-1")).Return(nil)
	res := f.responses(t, router.KindVideo)

	f.o.Handle(context.Background(), startMsg(router.KindVideo, "c1", "alice", router.RoleShare))

	m := recv(t, res)
	assert.Equal(t, router.ActionStartResponse, m.ID)
	assert.Equal(t, router.ResponseRejected, m.Response)
	assert.Contains(t, m.Message, "boom")
	assert.Zero(t, f.o.Registry.Len())
	_, ok := f.rooms.Get("r1")
	assert.False(t, ok)
}

func TestStartWithoutRoomIsRejected(t *testing.T) {
	f := newFixture(t)
	res := f.responses(t, router.KindAudio)

	msg := startMsg(router.KindAudio, "c1", "alice", "")
	msg.RoomID = ""
	f.o.Handle(context.Background(), msg)

	m := recv(t, res)
	assert.Equal(t, router.ResponseRejected, m.Response)
	assert.Equal(t, orch.ErrNoRoom.Error(), m.Message)
}

func TestScreensharePresenterTakesContentFloor(t *testing.T) {
	f := newFixture(t)
	f.expectStart("el-1")
	f.media.EXPECT().Release(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	res := f.responses(t, router.KindScreenshare)

	var mu sync.Mutex
	var content []core.ContentFloorChanged
	f.events.On(core.KindContentFloorChanged, func(ev core.Event) {
		mu.Lock()
		defer mu.Unlock()
		content = append(content, ev.(core.ContentFloorChanged))
	})

	f.o.Handle(context.Background(), startMsg(router.KindScreenshare, "c1", "alice", router.RolePresenter))
	sid := recv(t, res).MediaSessionID

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, content, 1)
	require.NotNil(t, content[0].Floor)
	assert.Equal(t, sid, content[0].Floor.MediaSessionID)
}

func TestFloorActionSetsConferenceFloor(t *testing.T) {
	f := newFixture(t)
	f.expectStart("el-1")
	f.media.EXPECT().Release(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	res := f.responses(t, router.KindAudio)

	var conference []core.ConferenceFloorChanged
	f.events.On(core.KindConferenceFloorChanged, func(ev core.Event) {
		conference = append(conference, ev.(core.ConferenceFloorChanged))
	})

	ctx := context.Background()
	f.o.Handle(ctx, startMsg(router.KindAudio, "c1", "alice", ""))
	sid := recv(t, res).MediaSessionID

	f.o.Handle(ctx, router.Message{Type: router.KindAudio, ID: router.ActionFloor, ConnectionID: "c1"})

	require.Len(t, conference, 1)
	require.NotNil(t, conference[0].Floor)
	assert.Equal(t, sid, conference[0].Floor.MediaSessionID)
}

func TestReleaseFloorByHolderOnly(t *testing.T) {
	f := newFixture(t)
	f.expectStart("el-1")
	f.expectStart("el-2")
	f.media.EXPECT().Release(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	res := f.responses(t, router.KindAudio)

	var conference []core.ConferenceFloorChanged
	f.events.On(core.KindConferenceFloorChanged, func(ev core.Event) {
		conference = append(conference, ev.(core.ConferenceFloorChanged))
	})

	ctx := context.Background()
	f.o.Handle(ctx, startMsg(router.KindAudio, "c1", "alice", ""))
	alice := recv(t, res).MediaSessionID
	f.o.Handle(ctx, startMsg(router.KindAudio, "c2", "bob", ""))
	recv(t, res)
	f.o.Handle(ctx, router.Message{Type: router.KindAudio, ID: router.ActionFloor, ConnectionID: "c1"})

	f.o.Handle(ctx, router.Message{Type: router.KindAudio, ID: router.ActionReleaseFloor, ConnectionID: "c2"})
	m := recv(t, res)
	assert.Equal(t, router.ActionError, m.ID)
	assert.Equal(t, orch.ErrNotFloor.Error(), m.Message)
	assert.Equal(t, "c2", m.ConnectionID)

	f.o.Handle(ctx, router.Message{Type: router.KindAudio, ID: router.ActionReleaseFloor, ConnectionID: "c1"})
	require.Len(t, conference, 2)
	assert.Nil(t, conference[1].Floor)
	assert.Equal(t, []core.FloorRef{{MediaSessionID: alice}}, conference[1].PreviousFloor)
}

func TestFloorWithoutSessionAnswersError(t *testing.T) {
	f := newFixture(t)
	res := f.responses(t, router.KindAudio)

	f.o.Handle(context.Background(), router.Message{Type: router.KindAudio, ID: router.ActionFloor, ConnectionID: "c1"})

	m := recv(t, res)
	assert.Equal(t, router.ActionError, m.ID)
	assert.Equal(t, orch.ErrLegNotFound.Error(), m.Message)
}

func TestClientCandidateReachesElement(t *testing.T) {
	f := newFixture(t)
	f.expectStart("el-1")
	f.media.EXPECT().Release(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	cand := webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 2122260223 10.0.0.2 50000 typ host"}
	f.media.EXPECT().AddIceCandidate(gomock.Any(), domain.ElementID("el-1"), cand).Return(nil)
	res := f.responses(t, router.KindVideo)

	ctx := context.Background()
	f.o.Handle(ctx, startMsg(router.KindVideo, "c1", "alice", router.RoleShare))
	recv(t, res)

	f.o.Handle(ctx, router.Message{Type: router.KindVideo, ID: router.ActionOnIceCandidate, ConnectionID: "c1", Candidate: &cand})
}

func TestCloseStopsEveryLegOfConnection(t *testing.T) {
	f := newFixture(t)
	f.expectStart("el-1")
	f.expectStart("el-2")
	f.media.EXPECT().Release(gomock.Any(), domain.ElementID("el-1")).Return(nil)
	f.media.EXPECT().Release(gomock.Any(), domain.ElementID("el-2")).Return(nil)
	res := f.responses(t, router.KindVideo)

	ctx := context.Background()
	f.o.Handle(ctx, startMsg(router.KindVideo, "c1", "alice", router.RoleShare))
	recv(t, res)
	f.o.Handle(ctx, startMsg(router.KindVideo, "c1", "alice", router.RoleViewer))
	recv(t, res)
	require.Equal(t, 2, f.o.Registry.Len())

	f.o.Handle(ctx, router.Message{Type: router.KindVideo, ID: router.ActionClose, ConnectionID: "c1"})

	assert.Zero(t, f.o.Registry.Len())
	_, ok := f.rooms.Get("r1")
	assert.False(t, ok)
}

func TestGatheredCandidatesFollowTheAnswer(t *testing.T) {
	f := newFixture(t)
	cand := webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 2122260223 10.0.0.1 40000 typ host"}

	var onCandidate func(domain.ElementID, webrtc.ICECandidateInit)
	f.media.EXPECT().OnIceCandidate(gomock.Any()).Do(func(fn func(domain.ElementID, webrtc.ICECandidateInit)) {
		onCandidate = fn
	})
	f.media.EXPECT().CreateElement(gomock.Any(), gomock.Any(), gomock.Any()).Return(domain.ElementID("el-1"), nil)
	f.media.EXPECT().ProcessOffer(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(sdpOf("sendrecv"), nil)
	f.media.EXPECT().GatherCandidates(gomock.Any(), domain.ElementID("el-1")).DoAndReturn(func(_ context.Context, el domain.ElementID) error {
		onCandidate(el, cand)
		return nil
	})
	f.media.EXPECT().Release(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	res := f.responses(t, router.KindVideo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, f.o.Start(ctx, router.KindVideo))

	payload, err := json.Marshal(startMsg(router.KindVideo, "c1", "alice", router.RoleShare))
	require.NoError(t, err)
	require.NoError(t, f.bus.Publish(ctx, router.KindVideo.ToChannel(), payload))

	first := recv(t, res)
	assert.Equal(t, router.ActionStartResponse, first.ID)
	second := recv(t, res)
	assert.Equal(t, router.ActionIceCandidate, second.ID)
	assert.Equal(t, first.MediaSessionID, second.MediaSessionID)
	require.NotNil(t, second.Candidate)
	assert.Equal(t, cand.Candidate, second.Candidate.Candidate)
}
