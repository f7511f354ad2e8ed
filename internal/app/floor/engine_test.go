package floor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Conference/internal/core"
	"github.com/dkeye/Conference/internal/core/mocks"
	"github.com/dkeye/Conference/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type countingEmitter struct {
	*core.LocalEmitter
	on, off int
}

func (c *countingEmitter) On(kind core.EventKind, h core.Handler) core.ListenerID {
	c.on++
	return c.LocalEmitter.On(kind, h)
}

func (c *countingEmitter) Off(kind core.EventKind, id core.ListenerID) {
	c.off++
	c.LocalEmitter.Off(kind, id)
}

var allKinds = []core.EventKind{
	core.KindConferenceFloorChanged,
	core.KindContentFloorChanged,
	core.KindMediaConnected,
	core.KindMediaDisconnected,
}

type fixture struct {
	room    core.RoomService
	emitter *core.LocalEmitter
}

func newFixture(t *testing.T, connector core.MediaConnector) *fixture {
	t.Helper()
	em := core.NewEmitter()
	return &fixture{
		room:    core.NewRoomService(&domain.Room{ID: "room-1", Name: "room-1"}, em, connector),
		emitter: em,
	}
}

func (f *fixture) session(t *testing.T, uid domain.UserID, transport domain.TransportKind, video domain.Direction) *domain.MediaSession {
	t.Helper()
	if _, ok := f.room.User(uid); !ok {
		u, err := domain.NewUser(uid, "")
		require.NoError(t, err)
		f.room.AddUser(u)
	}
	ms := domain.NewMediaSession(f.room.ID(), uid, string(uid), transport)
	ms.AddMedia(domain.ElementID("el-"+string(ms.ID)), domain.MediaTypes{Audio: domain.DirectionSendRecv, Video: video})
	require.NoError(t, f.room.AddMediaSession(ms))
	return ms
}

func video(ms *domain.MediaSession) *domain.MediaUnit { return ms.Medias[0] }

func TestAttachDetachRegistersFourListenersOnce(t *testing.T) {
	f := newFixture(t, nil)
	em := &countingEmitter{LocalEmitter: f.emitter}
	e := New(f.room, em)

	e.Attach(context.Background())
	e.Attach(context.Background())
	require.Equal(t, 4, em.on)
	for _, k := range allKinds {
		assert.Equal(t, 1, em.ListenerCount(k), k.String())
	}

	e.Detach()
	assert.NotPanics(t, e.Detach)

	assert.Equal(t, 4, em.off)
	for _, k := range allKinds {
		assert.Zero(t, em.ListenerCount(k), k.String())
	}
}

func TestDetachClearsFloorState(t *testing.T) {
	f := newFixture(t, nil)
	a := f.session(t, "u1", domain.TransportWebRTC, domain.DirectionSendRecv)
	e := New(f.room, f.emitter)
	e.Attach(context.Background())

	require.NoError(t, f.room.SetContentFloor(a.ID))
	require.Eventually(t, func() bool { return e.snapshot().content != nil }, time.Second, 5*time.Millisecond)

	e.Detach()
	assert.Equal(t, state{}, e.snapshot())
}

// detachingRoom detaches the engine the first time a floor reference is
// resolved, as a Detach racing an in-flight floor event would.
type detachingRoom struct {
	core.RoomGraph
	once   sync.Once
	detach func()
}

func (r *detachingRoom) MediaSession(id domain.MediaSessionID) (*domain.MediaSession, bool) {
	r.once.Do(r.detach)
	return r.RoomGraph.MediaSession(id)
}

func TestFloorEventRacingDetachIsDiscarded(t *testing.T) {
	f := newFixture(t, nil)
	a := f.session(t, "u1", domain.TransportWebRTC, domain.DirectionSendRecv)
	room := &detachingRoom{RoomGraph: f.room}
	e := New(room, f.emitter)
	room.detach = e.Detach
	e.Attach(context.Background())

	e.OnConferenceFloorChanged(core.ConferenceFloorChanged{
		RoomID: f.room.ID(),
		Floor:  &core.FloorRef{MediaSessionID: a.ID},
	})
	assert.Equal(t, state{}, e.snapshot())

	e.Attach(context.Background())
	defer e.Detach()
	assert.Equal(t, state{}, e.snapshot())

	e.OnContentFloorChanged(core.ContentFloorChanged{RoomID: f.room.ID(), Floor: &core.FloorRef{MediaSessionID: a.ID}})
	assert.Equal(t, a, e.snapshot().content)
}

func TestConferenceFloorChangedIgnoresOtherRooms(t *testing.T) {
	f := newFixture(t, nil)
	a := f.session(t, "u1", domain.TransportWebRTC, domain.DirectionSendRecv)
	e := New(f.room, f.emitter)

	e.OnConferenceFloorChanged(core.ConferenceFloorChanged{
		RoomID: "other",
		Floor:  &core.FloorRef{MediaSessionID: a.ID},
	})

	assert.Nil(t, e.snapshot().conference)
}

func TestConferenceFloorChangedFiltersPreviousByTransport(t *testing.T) {
	f := newFixture(t, nil)
	a := f.session(t, "u1", domain.TransportWebRTC, domain.DirectionSendRecv)
	b := f.session(t, "u2", domain.TransportRTP, domain.DirectionSendOnly)
	c := f.session(t, "u3", domain.TransportURI, domain.DirectionSendOnly)
	e := New(f.room, f.emitter)

	e.OnConferenceFloorChanged(core.ConferenceFloorChanged{
		RoomID:        f.room.ID(),
		Floor:         &core.FloorRef{MediaSessionID: a.ID},
		PreviousFloor: []core.FloorRef{{MediaSessionID: c.ID}, {MediaSessionID: "gone"}, {MediaSessionID: b.ID}},
	})

	st := e.snapshot()
	assert.Equal(t, a, st.conference)
	assert.Equal(t, []*domain.MediaSession{b}, st.previousConference)
}

func TestContentFloorChangedDefaultsPrevious(t *testing.T) {
	f := newFixture(t, nil)
	a := f.session(t, "u1", domain.TransportWebRTC, domain.DirectionSendRecv)
	e := New(f.room, f.emitter)

	e.OnContentFloorChanged(core.ContentFloorChanged{RoomID: f.room.ID(), Floor: &core.FloorRef{MediaSessionID: a.ID}})

	st := e.snapshot()
	assert.Equal(t, a, st.content)
	assert.NotNil(t, st.previousContent)
	assert.Empty(t, st.previousContent)
}

func TestEngineConvergesOnFloorEvents(t *testing.T) {
	f := newFixture(t, nil)
	a := f.session(t, "u1", domain.TransportWebRTC, domain.DirectionSendRecv)
	b := f.session(t, "u2", domain.TransportWebRTC, domain.DirectionSendRecv)
	viewer := f.session(t, "u3", domain.TransportWebRTC, domain.DirectionRecvOnly)

	e := New(f.room, f.emitter)
	e.Attach(context.Background())
	defer e.Detach()

	require.NoError(t, f.room.SetConferenceFloor(b.ID))

	require.Eventually(t, func() bool {
		return video(viewer).SubscribedTo() == video(b).ID &&
			video(a).SubscribedTo() == video(b).ID &&
			video(b).SubscribedTo() == video(a).ID
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return e.Health().Runs > 0 }, time.Second, 5*time.Millisecond)
	assert.True(t, e.Health().Healthy())
}

func TestEngineRetriesAndReportsHealth(t *testing.T) {
	ctrl := gomock.NewController(t)
	connector := mocks.NewMockMediaConnector(ctrl)
	boom := errors.New("engine down")
	connector.EXPECT().Connect(gomock.Any(), gomock.Any(), gomock.Any(), domain.MediaKindVideo).Return(boom).AnyTimes()

	f := newFixture(t, connector)
	f.session(t, "u1", domain.TransportWebRTC, domain.DirectionSendRecv)
	f.session(t, "u2", domain.TransportWebRTC, domain.DirectionSendRecv)

	e := New(f.room, f.emitter, WithMaxAttempts(2), WithBackoff(0))
	e.Attach(context.Background())
	defer e.Detach()

	f.emitter.Emit(core.MediaConnected{RoomID: f.room.ID()})

	require.Eventually(t, func() bool { return e.Health().Runs == 1 }, time.Second, 5*time.Millisecond)
	h := e.Health()
	assert.False(t, h.Healthy())
	assert.ErrorIs(t, h.LastErr, boom)
	assert.Equal(t, 1, h.ConsecutiveFailures)
}
