// Package app assembles the server: configuration, logging, the engine, the
// hub, and the HTTP surface, with a clean shutdown path.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	mineland "github.com/fed135/mine-land"
	"github.com/fed135/mine-land/internal/config"
	"github.com/fed135/mine-land/internal/game"
	"github.com/fed135/mine-land/internal/grid"
	servernet "github.com/fed135/mine-land/internal/net"
	"github.com/fed135/mine-land/internal/net/ws"
	"github.com/fed135/mine-land/internal/telemetry"
	"github.com/fed135/mine-land/logging"
	loggingsinks "github.com/fed135/mine-land/logging/sinks"
)

// Run boots the server and blocks until ctx is canceled or the listener
// fails. Every error it returns is fatal.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newProcessLogger(cfg)
	if cfg.GeneratedSecret {
		logger.Warn("SESSION_SECRET not set; sessions will not survive a restart")
	}

	counters := telemetry.NewCounters()

	router, err := newEventRouter(cfg, logger)
	if err != nil {
		return fmt.Errorf("construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			logger.Warnf("close logging router: %v", cerr)
		}
	}()

	gridCfg := grid.DefaultConfig()
	gridCfg.Seed = cfg.WorldSeed

	engine := game.NewEngine(game.Config{
		Grid:          gridCfg,
		SessionSecret: cfg.SessionSecret,
		AdminKey:      cfg.AdminKey,
		AutoBan:       cfg.SecurityAutoBan,
	}, game.Deps{
		Logger:    logger,
		Metrics:   counters,
		Publisher: router,
		Clock:     time.Now,
	})
	snap := engine.Snapshot()
	logger.WithFields(logrus.Fields{
		"width":  gridCfg.Width,
		"height": gridCfg.Height,
		"mines":  snap.TotalMines,
		"seed":   gridCfg.Seed,
	}).Info("world generated")

	hub := mineland.NewHub(engine, mineland.HubConfig{
		TickRate:  cfg.TickRate,
		Logger:    logger,
		Metrics:   counters,
		Publisher: router,
	})
	stop := make(chan struct{})
	go hub.Run(stop)
	defer close(stop)

	wsHandler := ws.NewHandler(hub, ws.HandlerConfig{
		Logger:  logger,
		Metrics: counters,
	})
	handler := servernet.NewHTTPHandler(hub, wsHandler, servernet.HTTPHandlerConfig{
		ClientDir:   cfg.ClientDir,
		AdminKey:    cfg.AdminKey,
		Logger:      logger,
		Metrics:     counters,
		RouterStats: router.Stats,
	})

	srv := &http.Server{Addr: cfg.Addr(), Handler: handler}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Infof("server listening on %s", srv.Addr)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}
}

func newProcessLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func newEventRouter(cfg config.Config, logger *logrus.Logger) (*logging.Router, error) {
	routerCfg := logging.DefaultConfig()
	routerCfg.EnabledSinks = cfg.LogSinks
	routerCfg.MinimumSeverity = logging.ParseSeverity(cfg.LogLevel)

	var sinks []logging.NamedSink
	if routerCfg.HasSink("console") {
		sinks = append(sinks, logging.NamedSink{
			Name: "console",
			Sink: loggingsinks.NewConsole(logger, routerCfg.Console),
		})
	}
	if routerCfg.HasSink("json") && cfg.LogJSONPath != "" {
		file, err := os.OpenFile(cfg.LogJSONPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open json log %s: %w", cfg.LogJSONPath, err)
		}
		sinks = append(sinks, logging.NamedSink{
			Name: "json",
			Sink: loggingsinks.NewJSON(file, routerCfg.JSON.FlushInterval),
		})
	}
	if routerCfg.HasSink("memory") {
		sinks = append(sinks, logging.NamedSink{Name: "memory", Sink: loggingsinks.NewMemory()})
	}

	return logging.NewRouter(nil, routerCfg, sinks)
}
