package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"invoice-ocr-platform/internal/config"
	"invoice-ocr-platform/internal/infra/adapters/extraction"
	pg "invoice-ocr-platform/internal/infra/db/postgres"
	"invoice-ocr-platform/internal/infra/logging"
	"invoice-ocr-platform/internal/infra/sched"
	"invoice-ocr-platform/internal/infra/worker"
)

// Standalone worker process: claims jobs, runs the extraction pipeline and
// sweeps stuck PROCESSING rows. Scale horizontally by running more of these;
// the claim statement keeps replicas from stepping on each other.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	jobRepo := pg.NewJobRepo(pool, cfg.Worker.DefaultTenantConcurrency)
	pipeline := extraction.NewLocalPipeline(cfg.Worker.OutputDir)

	workers := worker.NewPool(cfg.Worker.Count, logger)
	workers.Start(ctx)
	defer workers.Stop()

	processor := worker.NewProcessor(jobRepo, pipeline, workers, cfg.Worker.PollInterval, logger)
	go processor.Run(ctx)

	janitor := sched.NewJanitor(jobRepo, cfg.Janitor.Interval, cfg.Janitor.ProcessingTimeout, logger)
	go func() { _ = janitor.Run(ctx) }()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()
}
