// Package main provides the duel broker binary: it pairs players into
// two-player sessions over TCP and WebSocket and relays their messages.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/duelbroker/internal/config"
	"github.com/cory-johannsen/duelbroker/internal/frontend/tcp"
	"github.com/cory-johannsen/duelbroker/internal/frontend/ws"
	"github.com/cory-johannsen/duelbroker/internal/game/session"
	"github.com/cory-johannsen/duelbroker/internal/game/sim"
	"github.com/cory-johannsen/duelbroker/internal/gameserver"
	"github.com/cory-johannsen/duelbroker/internal/observability"
	"github.com/cory-johannsen/duelbroker/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	fakeLatency := flag.Duration("fake-latency", -1, "override latency.fake_delay; negative keeps the configured value")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *fakeLatency >= 0 {
		cfg.Latency.FakeDelay = *fakeLatency
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting duel broker",
		zap.Bool("tcp", cfg.TCP.Enabled),
		zap.Bool("websocket", cfg.WebSocket.Enabled),
		zap.String("admin_addr", cfg.Admin.Addr()),
		zap.Duration("tick_interval", cfg.Engine.TickInterval),
		zap.Duration("fake_latency", cfg.Latency.FakeDelay),
	)

	engineLogger := logger.Named("engine")
	broker := gameserver.NewBroker(func(hostID string) session.Engine {
		return sim.New(hostID, cfg.Engine.TickInterval, engineLogger)
	}, logger.Named("broker"))
	if cfg.Latency.FakeDelay > 0 {
		broker.SetFakeLatency(cfg.Latency.FakeDelay)
	}

	admin := gameserver.NewAdminServer(cfg.Admin.Addr(), logger.Named("admin"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Admin.StatsInterval > 0 {
		gameserver.NewStatsReporter(broker, cfg.Admin.StatsInterval, logger.Named("stats")).Start(ctx)
	}

	// Wire lifecycle. The broker is added last so it stops first and ends
	// sessions quietly before frontends drop their connections.
	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("admin", admin)

	if cfg.TCP.Enabled {
		acceptor := tcp.NewAcceptor(cfg.TCP, broker, logger.Named("tcp"))
		lifecycle.Add("tcp", &server.FuncService{
			StartFn: acceptor.ListenAndServe,
			StopFn:  acceptor.Stop,
		})
	}
	if cfg.WebSocket.Enabled {
		lifecycle.Add("websocket", ws.NewServer(cfg.WebSocket, broker, logger.Named("websocket")))
	}

	closed := make(chan struct{})
	lifecycle.Add("broker", &server.FuncService{
		StartFn: func() error {
			<-closed
			return nil
		},
		StopFn: func() {
			broker.Close()
			close(closed)
		},
	})

	lifecycle.OnReady(func() { admin.SetServing(true) })
	lifecycle.OnDrain(func() {
		admin.SetServing(false)
		cancel()
	})

	logger.Info("duel broker initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
