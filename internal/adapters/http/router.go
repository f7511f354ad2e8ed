package http

import (
	"context"
	"net/http"

	"github.com/dkeye/Conference/internal/adapters/signal"
	"github.com/dkeye/Conference/internal/app/floor"
	"github.com/dkeye/Conference/internal/config"
	"github.com/dkeye/Conference/internal/core"
	"github.com/dkeye/Conference/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

type HealthChecker interface {
	Healthy() bool
}

type FloorHealthReporter interface {
	FloorHealth() map[domain.RoomID]floor.Health
}

// Deps are the parts of the server the HTTP surface exposes. Rooms and
// Floors are nil on processes that run no session manager.
type Deps struct {
	Signal *signal.SignalWSController
	Router HealthChecker
	Rooms  core.RoomManager
	Floors FloorHealthReporter
}

type floorStatus struct {
	Healthy             bool   `json:"healthy"`
	Runs                uint64 `json:"runs"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	LastError           string `json:"last_error,omitempty"`
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("ConferenceSessions", store))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", healthHandler(deps))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	if deps.Rooms != nil {
		api.GET("/rooms", func(c *gin.Context) {
			c.JSON(http.StatusOK, deps.Rooms.List())
		})
		api.GET("/rooms/:id/members", func(c *gin.Context) {
			room, ok := deps.Rooms.Get(domain.RoomID(c.Param("id")))
			if !ok {
				c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
				return
			}
			c.JSON(http.StatusOK, room.MembersSnapshot())
		})
	}

	if deps.Signal != nil {
		api.GET("/ws/signal", func(c *gin.Context) {
			session := sessions.Default(c)
			session.Set("client_token", c.GetString("client_token"))
			_ = session.Save()
			log.Info().Str("module", "adapters.http").Str("user", c.GetString("client_token")).Msg("ws signal endpoint hit")
			deps.Signal.HandleSignal(ctx, c)
		})
	}

	return r
}

func healthHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{}

		if deps.Router != nil {
			ok := deps.Router.Healthy()
			body["router"] = ok
			if !ok {
				status = http.StatusServiceUnavailable
			}
		}
		if deps.Signal != nil {
			body["connections"] = deps.Signal.Connections()
		}
		if deps.Floors != nil {
			floors := make(map[domain.RoomID]floorStatus)
			for id, h := range deps.Floors.FloorHealth() {
				fs := floorStatus{Healthy: h.Healthy(), Runs: h.Runs, ConsecutiveFailures: h.ConsecutiveFailures}
				if h.LastErr != nil {
					fs.LastError = h.LastErr.Error()
				}
				floors[id] = fs
			}
			body["floors"] = floors
		}
		c.JSON(status, body)
	}
}
