package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Conference/internal/adapters/bus"
	httpapi "github.com/dkeye/Conference/internal/adapters/http"
	"github.com/dkeye/Conference/internal/adapters/mediaengine"
	sig "github.com/dkeye/Conference/internal/adapters/signal"
	"github.com/dkeye/Conference/internal/app"
	"github.com/dkeye/Conference/internal/app/balancer"
	"github.com/dkeye/Conference/internal/app/floor"
	"github.com/dkeye/Conference/internal/app/orch"
	"github.com/dkeye/Conference/internal/app/router"
	"github.com/dkeye/Conference/internal/config"
	"github.com/dkeye/Conference/internal/core"
	"github.com/dkeye/Conference/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	local := bus.NewLocal()
	defer local.Close()

	mode := router.ModeSingleProcess
	var remote core.Bus
	if cfg.MultiProcess {
		mode = router.ModeMultiProcess
		remote, err = newRemoteBus(cfg.Bus)
		if err != nil {
			log.Fatal().Err(err).Str("driver", cfg.Bus.Driver).Msg("bus connect")
		}
		defer remote.Close()
	}

	rt, err := router.New(mode, local, remote)
	if err != nil {
		log.Fatal().Err(err).Msg("router")
	}
	if err := rt.SubscribeInbound(ctx); err != nil {
		if cfg.Router.StrictSubscribe {
			log.Fatal().Err(err).Msg("router subscribe")
		}
		log.Error().Err(err).Msg("router subscribe, serving without responses")
	}

	deps := httpapi.Deps{Router: rt}

	var (
		worker *orch.Orchestrator
		engine *mediaengine.Engine
	)
	if len(cfg.Workers) > 0 {
		engine, err = mediaengine.New(ctx, mediaengine.Config{ICEServers: cfg.Media.ICEServers})
		if err != nil {
			log.Fatal().Err(err).Msg("media engine")
		}

		hosts := make([]*domain.Host, 0, len(cfg.Media.Hosts))
		for _, h := range cfg.Media.Hosts {
			hosts = append(hosts, domain.NewHost(domain.HostID(h.ID), h.IP))
		}
		events := core.NewEmitter()
		rooms := app.NewRoomManager(events, engine)

		workerBus := core.Bus(local)
		if remote != nil {
			workerBus = remote
		}
		worker = &orch.Orchestrator{
			Registry: app.NewRegistry(),
			Rooms:    rooms,
			Events:   events,
			Media:    engine,
			Hosts:    balancer.New(hosts...),
			Bus:      workerBus,
			FloorOpts: []floor.Option{
				floor.WithMaxAttempts(cfg.Strategy.MaxAttempts),
				floor.WithBackoff(cfg.Strategy.Backoff),
			},
		}

		kinds := make([]router.Kind, 0, len(cfg.Workers))
		for _, w := range cfg.Workers {
			if k, ok := router.ParseKind(w); ok {
				kinds = append(kinds, k)
			}
		}
		if err := worker.Start(ctx, kinds...); err != nil {
			log.Fatal().Err(err).Msg("session manager")
		}
		deps.Rooms = rooms
		deps.Floors = worker
	}

	ctl := sig.NewSignalWSController(rt, app.SimplePolicy{MaxDropped: cfg.Signal.MaxDropped}, sig.Options{
		RateLimit:  cfg.Signal.RateLimit,
		RateBurst:  cfg.Signal.RateBurst,
		ReadLimit:  cfg.Signal.ReadLimit,
		PingPeriod: cfg.Signal.PingPeriod,
	})
	deps.Signal = ctl
	go ctl.ResponseLoop(ctx, rt.Responses())

	r := httpapi.SetupRouter(ctx, cfg, deps)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Stringer("mode", rt.Mode()).Msg("Conference server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if worker != nil {
		worker.Stop(shutdownCtx)
	}
	if engine != nil {
		if err := engine.Close(); err != nil {
			log.Error().Err(err).Msg("media engine close")
		}
	}
	if err := rt.Close(); err != nil {
		log.Error().Err(err).Msg("router close")
	}
	log.Info().Msg("Server exited gracefully")
}

func newRemoteBus(cfg config.BusConfig) (core.Bus, error) {
	switch cfg.Driver {
	case "amqp":
		return bus.NewAMQP(bus.AMQPConfig{
			URL:      cfg.AMQPURL,
			Exchange: cfg.Exchange,
			Attempts: cfg.Attempts,
			WaitTime: cfg.WaitTime,
		})
	default:
		return bus.NewRedis(bus.RedisConfig{
			URL:      cfg.RedisURL,
			Attempts: cfg.Attempts,
			WaitTime: cfg.WaitTime,
		})
	}
}
