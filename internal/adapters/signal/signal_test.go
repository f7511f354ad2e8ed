package signal

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Conference/internal/app"
	"github.com/dkeye/Conference/internal/app/router"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	mu   sync.Mutex
	msgs []router.Message
}

func (d *recordingDispatcher) Dispatch(_ context.Context, msg router.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msgs = append(d.msgs, msg)
	return nil
}

func (d *recordingDispatcher) snapshot() []router.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]router.Message(nil), d.msgs...)
}

func serve(t *testing.T, ctl *SignalWSController) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set("client_token", "u1")
		ctl.HandleSignal(ctx, c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readMsg(t *testing.T, ws *websocket.Conn) router.Message {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m router.Message
	require.NoError(t, ws.ReadJSON(&m))
	return m
}

func TestDispatchStampsConnectionAndUser(t *testing.T) {
	d := &recordingDispatcher{}
	ctl := NewSignalWSController(d, app.SimplePolicy{MaxDropped: 8}, Options{})
	ws := serve(t, ctl)

	require.NoError(t, ws.WriteJSON(router.Message{Type: router.KindVideo, ID: router.ActionStart, UserID: "spoofed", RoomID: "r1"}))

	require.Eventually(t, func() bool { return len(d.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	got := d.snapshot()[0]
	assert.Equal(t, router.ActionStart, got.ID)
	assert.Equal(t, "u1", string(got.UserID))
	assert.NotEmpty(t, got.ConnectionID)
}

func TestResponsesReachTheirConnection(t *testing.T) {
	d := &recordingDispatcher{}
	ctl := NewSignalWSController(d, app.SimplePolicy{MaxDropped: 8}, Options{})
	ws := serve(t, ctl)

	require.NoError(t, ws.WriteJSON(map[string]string{"id": "whoami"}))
	var who struct {
		ID           string `json:"id"`
		ConnectionID string `json:"connectionId"`
	}
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, ws.ReadJSON(&who))
	require.Equal(t, "whoami", who.ID)

	responses := make(chan router.Message, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctl.ResponseLoop(ctx, responses)

	responses <- router.Message{Type: router.KindVideo, ID: router.ActionStartResponse, ConnectionID: "someone-else"}
	responses <- router.Message{Type: router.KindVideo, ID: router.ActionStartResponse, ConnectionID: who.ConnectionID, Response: router.ResponseAccepted}

	m := readMsg(t, ws)
	assert.Equal(t, who.ConnectionID, m.ConnectionID)
	assert.Equal(t, router.ResponseAccepted, m.Response)
}

func TestPingIsAnsweredLocally(t *testing.T) {
	d := &recordingDispatcher{}
	ctl := NewSignalWSController(d, nil, Options{})
	ws := serve(t, ctl)

	require.NoError(t, ws.WriteJSON(map[string]string{"id": "ping"}))
	assert.Equal(t, "pong", readMsg(t, ws).ID)
	assert.Empty(t, d.snapshot())
}

func TestRateLimitedRequestsAreRefused(t *testing.T) {
	d := &recordingDispatcher{}
	ctl := NewSignalWSController(d, nil, Options{RateLimit: 0.001, RateBurst: 1})
	ws := serve(t, ctl)

	msg := router.Message{Type: router.KindAudio, ID: router.ActionFloor}
	require.NoError(t, ws.WriteJSON(msg))
	require.NoError(t, ws.WriteJSON(msg))

	m := readMsg(t, ws)
	assert.Equal(t, router.ActionError, m.ID)
	assert.Equal(t, "rate_limited", m.Message)
	assert.Len(t, d.snapshot(), 1)
}

func TestDisconnectClosesEveryKind(t *testing.T) {
	d := &recordingDispatcher{}
	ctl := NewSignalWSController(d, nil, Options{})
	ws := serve(t, ctl)
	require.Eventually(t, func() bool { return ctl.Connections() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = ws.Close()

	require.Eventually(t, func() bool { return len(d.snapshot()) == len(router.Kinds) }, 2*time.Second, 10*time.Millisecond)
	for _, m := range d.snapshot() {
		assert.Equal(t, router.ActionClose, m.ID)
	}
	assert.Zero(t, ctl.Connections())
}

func TestUserRateLimiter(t *testing.T) {
	rl := NewUserRateLimiter(0.001, 2)
	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	rl.Forget("a")
	assert.True(t, rl.Allow("a"))

	unlimited := NewUserRateLimiter(0, 0)
	for loopIdx := 0; loopIdx < 100; loopIdx++ {
		require.True(t, unlimited.Allow("a"))
	}
}
