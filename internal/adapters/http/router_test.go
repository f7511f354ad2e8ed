package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dkeye/Conference/internal/app"
	"github.com/dkeye/Conference/internal/app/floor"
	"github.com/dkeye/Conference/internal/config"
	"github.com/dkeye/Conference/internal/core"
	"github.com/dkeye/Conference/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticHealth bool

func (h staticHealth) Healthy() bool { return bool(h) }

type staticFloors map[domain.RoomID]floor.Health

func (f staticFloors) FloorHealth() map[domain.RoomID]floor.Health { return f }

func testConfig() *config.Config {
	return &config.Config{Mode: "test", Secret: "secret"}
}

func TestHealthzReportsRouterAndFloors(t *testing.T) {
	r := SetupRouter(context.Background(), testConfig(), Deps{
		Router: staticHealth(true),
		Floors: staticFloors{"r1": {Runs: 3, LastErr: errors.New("connect failed"), ConsecutiveFailures: 1}},
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Router bool                   `json:"router"`
		Floors map[string]floorStatus `json:"floors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Router)
	require.Contains(t, body.Floors, "r1")
	assert.False(t, body.Floors["r1"].Healthy)
	assert.Equal(t, "connect failed", body.Floors["r1"].LastError)
}

func TestHealthzUnhealthyRouter(t *testing.T) {
	r := SetupRouter(context.Background(), testConfig(), Deps{Router: staticHealth(false)})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRoomsEndpoints(t *testing.T) {
	rooms := app.NewRoomManager(core.NewEmitter(), nil)
	room, _ := rooms.GetOrCreate("r1")
	u, err := domain.NewUser("u1", "alice")
	require.NoError(t, err)
	room.AddUser(u)

	r := SetupRouter(context.Background(), testConfig(), Deps{Rooms: rooms})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list []core.RoomInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].MemberCount)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/rooms/r1/members", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var members []core.MemberDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &members))
	require.Len(t, members, 1)
	assert.Equal(t, "alice", members[0].Username)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/rooms/nope/members", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClientTokenCookieIsIssued(t *testing.T) {
	r := SetupRouter(context.Background(), testConfig(), Deps{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == "ct" {
			found = c.Value != ""
		}
	}
	assert.True(t, found)
}
