package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nistring/VitalRecoder-ANI/internal/events"
	"github.com/nistring/VitalRecoder-ANI/internal/processor"
	"github.com/nistring/VitalRecoder-ANI/internal/spi"
	"github.com/nistring/VitalRecoder-ANI/internal/store"
	"github.com/nistring/VitalRecoder-ANI/pkg/config"
	"github.com/nistring/VitalRecoder-ANI/pkg/kafka"
	"github.com/nistring/VitalRecoder-ANI/pkg/logger"
	"github.com/nistring/VitalRecoder-ANI/pkg/metrics"
	"github.com/nistring/VitalRecoder-ANI/pkg/postgres"
	"github.com/nistring/VitalRecoder-ANI/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	dataDir := flag.String("data", "", "override recordings directory")
	outputDir := flag.String("out", "", "override output directory")
	workers := flag.Int("workers", 0, "override worker count (0 = GOMAXPROCS)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.Pipeline.DataDir = *dataDir
	}
	if *outputDir != "" {
		cfg.Pipeline.OutputDir = *outputDir
	}
	if *workers > 0 {
		cfg.Pipeline.Workers = *workers
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting vital processor",
		"data_dir", cfg.Pipeline.DataDir,
		"output_dir", cfg.Pipeline.OutputDir,
		"spi_enabled", cfg.SPI.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := processor.Options{}
	healthChecks := map[string]metrics.HealthCheck{}

	if cfg.Metrics.Enabled {
		opts.Metrics = metrics.New()
	}

	if cfg.SPI.Enabled {
		filter, err := spi.Lookup(cfg.SPI.Filter)
		if err != nil {
			slog.Error("SPI capability enabled but filter unavailable", "error", err)
			os.Exit(1)
		}
		opts.SPIFilter = filter
		slog.Info("SPI filter resolved", "filter", filter.Name())
	}

	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		healthChecks["postgres"] = db.Ping

		results := store.New(db)
		if err := results.Init(ctx); err != nil {
			slog.Error("failed to initialise result store", "error", err)
			os.Exit(1)
		}
		opts.Results = results
	}

	if cfg.Redis.Enabled {
		cache, err := redis.NewClient(cfg.Redis)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer cache.Close()
		healthChecks["redis"] = cache.Ping
		opts.Cache = cache
	}

	var publisher *events.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.RecordingDone)
		defer producer.Close()

		publisher = events.NewPublisher(producer, 50, 5*time.Second)
		publisher.Start(ctx)
		opts.Events = publisher
	}

	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, healthChecks)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", "error", err)
			}
		}()
	}

	proc := processor.New(cfg, opts)
	runner := processor.NewRunner(proc, cfg.Pipeline)

	failed, err := runner.Run(ctx)
	if err != nil {
		slog.Error("batch did not complete", "error", err, "failed_files", failed)
		stop()
		if publisher != nil {
			publisher.Close()
		}
		os.Exit(1)
	}

	stop()
	if publisher != nil {
		publisher.Close()
	}

	if failed > 0 {
		slog.Warn("batch finished with failures", "failed_files", failed)
		os.Exit(1)
	}
	slog.Info("batch finished")
}
