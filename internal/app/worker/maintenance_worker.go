package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"testseries/internal/domain/model"
	"testseries/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Rescorer re-evaluates completed attempts of a test.
type Rescorer interface {
	RescoreTest(ctx context.Context, testID string) (int, error)
}

// LeaderboardRebuilder recomputes leaderboards from completed attempts.
type LeaderboardRebuilder interface {
	RebuildTest(ctx context.Context, testID string) error
	RebuildAll(ctx context.Context) error
}

type Options struct {
	QueueName string
	LockKey   string
	LockTTL   time.Duration
	// PopTimeout bounds each BRPOP so shutdown is noticed.
	PopTimeout time.Duration
}

type MaintenanceWorker struct {
	rdb         *redis.Client
	jobRepo     repository.MaintenanceJobRepository
	rescorer    Rescorer
	leaderboard LeaderboardRebuilder
	opts        Options
}

var releaseLock = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

func NewMaintenanceWorker(rdb *redis.Client, jobRepo repository.MaintenanceJobRepository, rescorer Rescorer, leaderboard LeaderboardRebuilder, opts Options) *MaintenanceWorker {
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = 5 * time.Second
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	return &MaintenanceWorker{
		rdb:         rdb,
		jobRepo:     jobRepo,
		rescorer:    rescorer,
		leaderboard: leaderboard,
		opts:        opts,
	}
}

// Start pops job ids until ctx is cancelled. Jobs run one at a time.
func (w *MaintenanceWorker) Start(ctx context.Context) {
	log.Println("Maintenance worker started, listening to queue:", w.opts.QueueName)
	for {
		select {
		case <-ctx.Done():
			log.Println("Maintenance worker stopping...")
			return
		default:
		}

		res, err := w.rdb.BRPop(ctx, w.opts.PopTimeout, w.opts.QueueName).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			log.Printf("ERROR: Failed to BRPop from Redis queue '%s': %v", w.opts.QueueName, err)
			sleep(ctx, 5*time.Second)
			continue
		}
		// res is [queueName, value]
		if len(res) < 2 || res[1] == "" {
			log.Println("WARN: BRPop returned empty job ID.")
			continue
		}
		if requeued := w.ProcessWithLock(ctx, res[1]); requeued {
			// Give the lock holder time before popping the same id again.
			sleep(ctx, time.Second)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// ProcessWithLock runs the job while holding the cross-replica lock. It
// reports whether the job went back on the queue because the lock was busy.
func (w *MaintenanceWorker) ProcessWithLock(ctx context.Context, jobID string) bool {
	lockValue := uuid.NewString()
	ok, err := w.rdb.SetNX(ctx, w.opts.LockKey, lockValue, w.opts.LockTTL).Result()
	if err != nil {
		log.Printf("ERROR: Failed to attempt lock acquisition for job %s: %v", jobID, err)
		w.requeue(ctx, jobID)
		return true
	}
	if !ok {
		log.Printf("INFO: Maintenance lock busy, re-queueing job %s", jobID)
		w.requeue(ctx, jobID)
		return true
	}

	defer func() {
		deleted, err := releaseLock.Run(context.WithoutCancel(ctx), w.rdb, []string{w.opts.LockKey}, lockValue).Int64()
		switch {
		case err != nil:
			log.Printf("ERROR: Failed to release lock %s (job %s): %v", w.opts.LockKey, jobID, err)
		case deleted == 0:
			log.Printf("WARN: Lock for job %s expired before release", jobID)
		}
	}()

	w.Process(ctx, jobID)
	return false
}

func (w *MaintenanceWorker) requeue(ctx context.Context, jobID string) {
	// RPUSH puts it at the consuming end so it is retried first.
	if err := w.rdb.RPush(context.WithoutCancel(ctx), w.opts.QueueName, jobID).Err(); err != nil {
		log.Printf("ERROR: Failed to re-queue job %s: %v", jobID, err)
	}
}

// Process runs one job and records its final status.
func (w *MaintenanceWorker) Process(ctx context.Context, jobID string) {
	job, err := w.jobRepo.GetJobByID(ctx, jobID)
	if err != nil {
		log.Printf("ERROR: Failed to fetch job %s from DB: %v", jobID, err)
		return
	}
	if job.Status == model.JobStatusCompleted {
		log.Printf("INFO: Job %s already completed, skipping", job.ID)
		return
	}

	if err := w.jobRepo.UpdateJobStatus(ctx, nil, job.ID, model.JobStatusProcessing, nil); err != nil {
		log.Printf("ERROR: Failed to update job %s status to Processing: %v", job.ID, err)
	}
	if err := w.jobRepo.IncrementJobAttempts(ctx, nil, job.ID); err != nil {
		log.Printf("ERROR: Failed to count attempt for job %s: %v", job.ID, err)
	}

	started := time.Now()
	if err := w.run(ctx, job); err != nil {
		errMsg := err.Error()
		log.Printf("ERROR: Job %s (%s) failed: %s", job.ID, job.JobType, errMsg)
		if uErr := w.jobRepo.UpdateJobStatus(context.WithoutCancel(ctx), nil, job.ID, model.JobStatusFailed, &errMsg); uErr != nil {
			log.Printf("ERROR: Failed to mark job %s failed: %v", job.ID, uErr)
		}
		return
	}

	if err := w.jobRepo.UpdateJobStatus(ctx, nil, job.ID, model.JobStatusCompleted, nil); err != nil {
		log.Printf("ERROR: Failed to update job %s status to Completed: %v", job.ID, err)
	}
	log.Printf("INFO: Job %s (%s) completed in %s", job.ID, job.JobType, time.Since(started).Round(time.Millisecond))
}

func (w *MaintenanceWorker) run(ctx context.Context, job *model.MaintenanceJob) error {
	switch job.JobType {
	case model.JobTypeAttemptRescore:
		var payload model.AttemptRescorePayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("decode rescore payload: %w", err)
		}
		if payload.TestID == "" {
			return errors.New("rescore payload has no test_id")
		}
		changed, err := w.rescorer.RescoreTest(ctx, payload.TestID)
		if err != nil {
			return err
		}
		log.Printf("INFO: Rescore of test %s changed %d attempts", payload.TestID, changed)
		return nil

	case model.JobTypeLeaderboardRebuild:
		var payload model.LeaderboardRebuildPayload
		if len(job.Payload) > 0 {
			if err := json.Unmarshal(job.Payload, &payload); err != nil {
				return fmt.Errorf("decode rebuild payload: %w", err)
			}
		}
		if payload.TestID != "" {
			return w.leaderboard.RebuildTest(ctx, payload.TestID)
		}
		return w.leaderboard.RebuildAll(ctx)
	}
	return fmt.Errorf("unknown job type %q", job.JobType)
}
