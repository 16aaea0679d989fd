package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"invoice-ocr-platform/internal/config"
	"invoice-ocr-platform/internal/infra/adapters/extraction"
	pg "invoice-ocr-platform/internal/infra/db/postgres"
	"invoice-ocr-platform/internal/infra/logging"
	"invoice-ocr-platform/internal/infra/payment"
	red "invoice-ocr-platform/internal/infra/redis"
	"invoice-ocr-platform/internal/infra/sched"
	"invoice-ocr-platform/internal/infra/web"
	"invoice-ocr-platform/internal/infra/worker"
	"invoice-ocr-platform/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	if err := pg.RunMigrations(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	txManager := pg.NewTxManager(pool)
	jobRepo := pg.NewJobRepo(pool, cfg.Worker.DefaultTenantConcurrency)
	billingRepo := pg.NewBillingRepo(pool)
	paymentRepo := pg.NewPaymentTxRepo(pool)
	tenantRepo := pg.NewTenantRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)

	// ---- Use cases ----
	billingUC := usecase.NewBillingUseCase(billingRepo, paymentRepo, subRepo, txManager, cfg.Billing.CreditConversionRate, logger)
	jobUC := usecase.NewJobUseCase(jobRepo, billingUC, txManager, cfg.Worker.MaxRetries, logger)

	// ---- Worker runtime ----
	pipeline := extraction.NewLocalPipeline(cfg.Worker.OutputDir)
	pool2 := worker.NewPool(cfg.Worker.Count, logger)
	pool2.Start(ctx)
	defer pool2.Stop()
	processor := worker.NewProcessor(jobRepo, pipeline, pool2, cfg.Worker.PollInterval, logger)
	go processor.Run(ctx)

	// ---- Background sweeps ----
	janitor := sched.NewJanitor(jobRepo, cfg.Janitor.Interval, cfg.Janitor.ProcessingTimeout, logger)
	go func() { _ = janitor.Run(ctx) }()

	gateway := payment.NewHTTPGateway(cfg.Payment.VerifyURL, cfg.Payment.APIKey)
	reconciler := sched.NewPaymentReconciler(billingUC, paymentRepo, gateway, cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, logger)
	go func() { _ = reconciler.Run(ctx) }()

	// ---- HTTP server ----
	srv := web.NewServer(cfg, jobUC, billingUC, tenantRepo, subRepo, rateLimiter, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}
