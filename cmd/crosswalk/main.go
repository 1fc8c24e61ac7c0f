package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/crosswalk/internal/config"
	"github.com/JonMunkholm/crosswalk/internal/core"
	"github.com/JonMunkholm/crosswalk/internal/logging"
	"github.com/JonMunkholm/crosswalk/internal/metrics"
	"github.com/JonMunkholm/crosswalk/internal/sink/postgres"
	"github.com/JonMunkholm/crosswalk/internal/sink/xlsx"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"source", cfg.Source.SourceURL(),
		"csv", cfg.Output.CSVPath,
		"sink", cfg.Sink.Kind,
	)
	slog.Debug("configuration", "config", cfg.String())

	// Stop the run on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	info, err := run(ctx, cfg)

	if cfg.Metrics.TextfilePath != "" {
		recorder := metrics.New()
		recorder.Observe(info, err)
		if werr := recorder.WriteTextfile(cfg.Metrics.TextfilePath); werr != nil {
			slog.Warn("failed to write metrics", "error", werr)
		}
	}

	if err != nil {
		uerr := core.NewUserError(err)
		slog.Error(uerr.Error(),
			"code", uerr.User.Code,
			"action", uerr.User.Action,
			"error", uerr.Unwrap(),
		)
		stop()
		os.Exit(1)
	}
}

// run opens the configured sink and executes one crosswalk run.
func run(ctx context.Context, cfg *config.Config) (*core.RunInfo, error) {
	sink, closeSink, err := openSink(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer closeSink()

	pipeline := &core.Pipeline{
		Source:    core.NewFetcher(&http.Client{Timeout: cfg.Source.Timeout}, cfg.Source.UserAgent, cfg.Source.MaxBytes),
		Sink:      sink,
		SourceURL: cfg.Source.SourceURL(),
		CSVPath:   cfg.Output.CSVPath,
	}

	info, err := pipeline.Run(ctx)
	if err != nil {
		return info, err
	}

	slog.Info("formats delivered",
		"run_id", info.ID,
		"tables", info.TableCounts,
		"skipped", info.Stats.Skipped(),
	)
	return info, nil
}

// openSink returns the sink selected by SINK_KIND and a func releasing it.
func openSink(ctx context.Context, cfg *config.Config) (core.Sink, func(), error) {
	switch strings.ToLower(cfg.Sink.Kind) {
	case config.SinkPostgres:
		s, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("connected to database", "name", postgres.DatabaseName(cfg.Database.URL))
		return s, s.Close, nil

	case config.SinkXLSX:
		return xlsx.New(cfg.XLSX.Path), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown sink kind %q", cfg.Sink.Kind)
	}
}
