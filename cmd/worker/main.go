// Command worker runs the maintenance job consumer without the HTTP API.
// Run several to spread rescore and leaderboard rebuild jobs; the Redis
// lock keeps them from running jobs concurrently.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"testseries/internal/app/service"
	"testseries/internal/app/worker"
	"testseries/internal/domain/repository"
	"testseries/internal/platform/config"
	"testseries/internal/platform/database"
	"testseries/internal/platform/queue"
)

func main() {
	log.Println("Maintenance worker service starting...")
	cfg := config.Load()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	defer database.Close(db)

	rdb, err := queue.ConnectRedis(cfg)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	defer queue.CloseRedis(rdb)

	testRepo := repository.NewPgTestRepository(db)
	attemptRepo := repository.NewPgAttemptRepository(db)
	seriesRepo := repository.NewPgSeriesRepository(db)
	purchaseRepo := repository.NewPgPurchaseRepository(db)
	jobRepo := repository.NewPgMaintenanceJobRepository(db)

	leaderboardService := service.NewLeaderboardService(repository.NewPgLeaderboardRepository(db), attemptRepo, seriesRepo, rdb, cfg.LeaderboardCacheTTL)
	attemptService := service.NewAttemptService(testRepo, attemptRepo, seriesRepo, service.NewAccessService(purchaseRepo), leaderboardService)

	w := worker.NewMaintenanceWorker(rdb, jobRepo, attemptService, leaderboardService, worker.Options{
		QueueName:  cfg.MaintenanceQueueName,
		LockKey:    cfg.MaintenanceLockKey,
		LockTTL:    time.Duration(cfg.MaintenanceLockTTLSeconds) * time.Second,
		PopTimeout: cfg.MaintenancePopTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Start(ctx)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Println("Shutdown signal received.")
	cancel()

	wg.Wait()
	log.Println("Worker exited cleanly.")
}
