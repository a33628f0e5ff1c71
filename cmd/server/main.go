package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"testseries/internal/api"
	"testseries/internal/app/service"
	"testseries/internal/app/worker"
	"testseries/internal/common/security"
	"testseries/internal/domain/repository"
	"testseries/internal/platform/config"
	"testseries/internal/platform/database"
	"testseries/internal/platform/queue"
)

func main() {
	cfg := config.Load()
	log.Println("Configuration loaded.")

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	defer database.Close(db)

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(bootCtx, db); err != nil {
		log.Fatalf("ERROR: migrating schema: %v", err)
	}
	if err := database.Seed(bootCtx, db); err != nil {
		log.Fatalf("ERROR: seeding defaults: %v", err)
	}
	bootCancel()

	rdb, err := queue.ConnectRedis(cfg)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	defer queue.CloseRedis(rdb)

	// Repositories
	userRepo := repository.NewPgUserRepository(db)
	testRepo := repository.NewPgTestRepository(db)
	attemptRepo := repository.NewPgAttemptRepository(db)
	seriesRepo := repository.NewPgSeriesRepository(db)
	purchaseRepo := repository.NewPgPurchaseRepository(db)
	leaderboardRepo := repository.NewPgLeaderboardRepository(db)
	jobRepo := repository.NewPgMaintenanceJobRepository(db)
	settingsRepo := repository.NewPgSettingsRepository(db)

	// Security
	tokens := security.NewTokenIssuer(cfg.JWTKey, cfg.JWTExp, security.NewRedisRevocationStore(rdb))
	var federated security.Verifier
	fv, err := security.NewFederatedVerifier(cfg.FederatedPublicKey, cfg.FederatedIssuer, cfg.FederatedAudience)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	if fv != nil {
		federated = fv
	} else {
		log.Println("WARN: FEDERATED_PUBLIC_KEY not set, social login disabled")
	}

	// Services
	jobService := service.NewMaintenanceJobService(jobRepo, rdb, cfg.MaintenanceQueueName)
	accessService := service.NewAccessService(purchaseRepo)
	leaderboardService := service.NewLeaderboardService(leaderboardRepo, attemptRepo, seriesRepo, rdb, cfg.LeaderboardCacheTTL)
	attemptService := service.NewAttemptService(testRepo, attemptRepo, seriesRepo, accessService, leaderboardService)
	services := api.Services{
		Auth:        service.NewAuthService(userRepo, tokens, federated),
		Tests:       service.NewTestService(testRepo, jobService),
		Attempts:    attemptService,
		Series:      service.NewSeriesService(seriesRepo, testRepo, accessService),
		Purchases:   service.NewPurchaseService(purchaseRepo, seriesRepo, testRepo, cfg.PaymentCurrency),
		Webhooks:    service.NewPaymentWebhookService(purchaseRepo, seriesRepo, cfg.PaymentWebhookSecret),
		Leaderboard: leaderboardService,
		Jobs:        jobService,
		Settings:    service.NewSettingsService(settingsRepo),
	}
	if cfg.PaymentWebhookSecret == "" {
		log.Println("WARN: PAYMENT_WEBHOOK_SECRET not set, payment callbacks will be rejected")
	}

	// Maintenance worker
	maintenanceWorker := worker.NewMaintenanceWorker(rdb, jobRepo, attemptService, leaderboardService, worker.Options{
		QueueName:  cfg.MaintenanceQueueName,
		LockKey:    cfg.MaintenanceLockKey,
		LockTTL:    time.Duration(cfg.MaintenanceLockTTLSeconds) * time.Second,
		PopTimeout: cfg.MaintenancePopTimeout,
	})
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		maintenanceWorker.Start(workerCtx)
	}()
	log.Println("Maintenance worker started.")

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      api.NewRouter(services, tokens, userRepo, cfg.FrontendURL),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
		}
	}()

	<-stop

	log.Println("Shutting down server...")
	workerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: Server shutdown failed: %v", err)
	}
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Println("WARN: maintenance worker did not stop in time")
	}

	log.Println("Server and worker stopped gracefully.")
}
