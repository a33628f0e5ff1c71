package service

import (
	"context"
	"encoding/json"
	"log"

	"testseries/internal/common"
	"testseries/internal/domain/model"
	"testseries/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type MaintenanceJobService struct {
	jobRepo   repository.MaintenanceJobRepository
	rdb       *redis.Client
	queueName string
}

func NewMaintenanceJobService(jobRepo repository.MaintenanceJobRepository, rdb *redis.Client, queueName string) *MaintenanceJobService {
	return &MaintenanceJobService{jobRepo: jobRepo, rdb: rdb, queueName: queueName}
}

// EnqueueLeaderboardRebuild schedules a rebuild of one test's leaderboards,
// or of every leaderboard when testID is empty.
func (s *MaintenanceJobService) EnqueueLeaderboardRebuild(ctx context.Context, testID string) (*model.MaintenanceJob, error) {
	return s.enqueue(ctx, model.JobTypeLeaderboardRebuild, model.LeaderboardRebuildPayload{TestID: testID})
}

func (s *MaintenanceJobService) EnqueueRescore(ctx context.Context, testID string) (*model.MaintenanceJob, error) {
	if testID == "" {
		return nil, common.Errorf("test id is required: %w", common.ErrBadRequest)
	}
	return s.enqueue(ctx, model.JobTypeAttemptRescore, model.AttemptRescorePayload{TestID: testID})
}

// enqueue creates a job record and pushes its ID to Redis.
func (s *MaintenanceJobService) enqueue(ctx context.Context, jobType string, payload interface{}) (*model.MaintenanceJob, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, common.Errorf("failed to marshal %s payload: %w", jobType, err)
	}

	job := &model.MaintenanceJob{
		ID:      uuid.NewString(),
		JobType: jobType,
		Payload: payloadBytes,
		Status:  model.JobStatusQueued,
	}
	if err := s.jobRepo.CreateJob(ctx, nil, job); err != nil {
		return nil, common.Errorf("failed to create maintenance job in DB: %w", err)
	}

	if err := s.rdb.LPush(ctx, s.queueName, job.ID).Err(); err != nil {
		// The row exists but no worker will ever see it.
		errMsg := "failed to push job to queue: " + err.Error()
		if uErr := s.jobRepo.UpdateJobStatus(ctx, nil, job.ID, model.JobStatusFailed, &errMsg); uErr != nil {
			log.Printf("ERROR: Failed to mark job %s failed: %v", job.ID, uErr)
		}
		return nil, common.Errorf("failed to push job ID to Redis queue: %w", err)
	}

	log.Printf("INFO: Maintenance job %s (%s) enqueued.", job.ID, jobType)
	return job, nil
}

func (s *MaintenanceJobService) GetJob(ctx context.Context, id string) (*model.MaintenanceJob, error) {
	return s.jobRepo.GetJobByID(ctx, id)
}
