package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/audiosession/internal/config"
	"github.com/MrWong99/audiosession/internal/debugserver"
	"github.com/MrWong99/audiosession/internal/health"
	"github.com/MrWong99/audiosession/internal/journal"
	"github.com/MrWong99/audiosession/internal/monitor"
	"github.com/MrWong99/audiosession/internal/observe"
	"github.com/MrWong99/audiosession/internal/platform"
	"github.com/MrWong99/audiosession/internal/platform/simulated"
	"github.com/MrWong99/audiosession/internal/publish"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

// runServe monitors the session and serves the debug API until ctx is done.
// Config changes to the log level and the recording profile are applied
// live; MQTT publishing starts when a broker is configured.
func runServe(ctx context.Context, cfg *config.Config, level *slog.LevelVar, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	simulate := fs.Duration("simulate", 0, "drive the simulated platform through route changes at this interval")
	journalPath := fs.String("journal", "", "append every event to this JSON lines file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := platform.New(cfg)
	if err != nil {
		return err
	}

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
		Platform:       p.Name(),
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()
	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return err
	}

	m := monitor.New(p, append(monitor.ConfigOptions(cfg), monitor.WithMetrics(metrics))...)
	if err := m.Start(ctx); err != nil {
		return err
	}
	defer m.Stop()

	srv := debugserver.New(m,
		debugserver.WithMetrics(metrics),
		debugserver.WithHealth(health.New(health.PlatformCheck(m), health.MonitoringCheck(m))),
	)
	defer srv.Close()

	slog.Info("sessionctl serving",
		"platform", p.Name(),
		"listen_addr", cfg.Debug.ListenAddr,
		"mqtt", cfg.MQTT.Broker != "",
		"version", version,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(ctx, cfg.Debug.ListenAddr) })

	if path := os.Getenv(config.EnvConfigPath); path != "" {
		w, err := config.NewWatcher(path, func(_, _ *config.Config, diff config.ConfigDiff) {
			applyDiff(m, level, diff)
		})
		if err != nil {
			slog.Warn("config hot reload disabled", "path", path, "err", err)
		} else {
			defer w.Stop()
		}
	}

	if *journalPath != "" {
		j := journal.NewFileJournal(*journalPath)
		defer m.OnEvent(j.Handle)()
		slog.Info("recording events", "journal", j.Path())
	}

	if cfg.MQTT.Broker != "" {
		client, err := publish.Connect(cfg.MQTT)
		if err != nil {
			return err
		}
		defer client.Close()
		sink := publish.NewSink(client, cfg.MQTT)
		defer sink.Attach(m)()
		g.Go(func() error { return sink.Run(ctx) })
	}

	if *simulate > 0 {
		sim, ok := p.(*simulated.Platform)
		if !ok {
			slog.Warn("-simulate ignored: platform is not simulated", "platform", p.Name())
		} else {
			g.Go(func() error { return sim.Run(ctx, *simulate) })
		}
	}

	return g.Wait()
}

func applyDiff(m *monitor.Monitor, level *slog.LevelVar, diff config.ConfigDiff) {
	if diff.LogLevelChanged {
		level.Set(diff.NewLogLevel.SlogLevel())
		slog.Info("log level changed", "level", diff.NewLogLevel)
	}
	if diff.RecordingChanged {
		m.SetRecordingConfig(diff.NewRecording.CategoryConfig())
		slog.Info("recording profile changed", "category", diff.NewRecording.Category, "mode", diff.NewRecording.Mode)
	}
}
