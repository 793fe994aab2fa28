package command

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/simvault-go/internal/config"
	"github.com/yndnr/simvault-go/internal/infra/confloader"
	"github.com/yndnr/simvault-go/internal/infra/shutdown"
	"github.com/yndnr/simvault-go/internal/storage"
	"github.com/yndnr/simvault-go/internal/telemetry/logger"
	"github.com/yndnr/simvault-go/internal/telemetry/metric"
)

const shutdownTimeout = 10 * time.Second

// ServeCommand returns the serve subcommand.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve engine metrics over HTTP until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (overrides metrics.addr)",
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg := Conf(c)
	log := Logger(c)

	addr := cfg.Metrics.Addr
	if flag := c.String("addr"); flag != "" {
		addr = flag
	}
	if addr == "" {
		addr = config.DefaultMetricsAddr
	}

	metrics := metric.New()
	engineCfg := cfg.Storage.EngineConfig()
	engineCfg.Logger = log
	engineCfg.Sink = metrics
	engine, err := storage.New(engineCfg)
	if err != nil {
		return err
	}
	metrics.Registry().MustRegister(metric.NewStatsCollector(engine))

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	handler := shutdown.NewHandler(shutdownTimeout)
	handler.OnShutdown(func(ctx context.Context) error {
		return server.Shutdown(ctx)
	})

	// Pick up log level changes from the config file without restarting.
	if path := c.String("config"); path != "" {
		watcher, err := confloader.NewWatcher(log)
		if err != nil {
			return err
		}
		if err := watcher.Watch(path); err != nil {
			return err
		}
		watcher.OnChange(func(changed string) {
			reloaded := config.Default()
			l := confloader.NewLoader(confloader.WithConfigFile(path))
			if err := l.Load(reloaded); err != nil {
				log.Warn("config reload failed", "error", err)
				return
			}
			logger.SetLevel(reloaded.Log.Level)
			log.Info("log level reloaded", "level", logger.GetLevel())
		})
		watcher.StartAsync()
		handler.OnShutdown(func(ctx context.Context) error {
			return watcher.Stop()
		})
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	waitCh := make(chan error, 1)
	go func() { waitCh <- handler.Wait() }()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case err := <-waitCh:
		return err
	}
}
