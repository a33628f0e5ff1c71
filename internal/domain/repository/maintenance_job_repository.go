package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"testseries/internal/common"
	"testseries/internal/domain/model"
)

type MaintenanceJobRepository interface {
	CreateJob(ctx context.Context, tx *sql.Tx, job *model.MaintenanceJob) error
	GetJobByID(ctx context.Context, id string) (*model.MaintenanceJob, error)
	UpdateJobStatus(ctx context.Context, tx *sql.Tx, jobID string, status string, lastError *string) error
	IncrementJobAttempts(ctx context.Context, tx *sql.Tx, jobID string) error
}

type pgMaintenanceJobRepository struct {
	db *sql.DB
}

func NewPgMaintenanceJobRepository(db *sql.DB) MaintenanceJobRepository {
	return &pgMaintenanceJobRepository{db: db}
}

func (r *pgMaintenanceJobRepository) CreateJob(ctx context.Context, tx *sql.Tx, job *model.MaintenanceJob) error {
	err := pick(r.db, tx).QueryRowContext(ctx,
		`INSERT INTO maintenance_jobs (id, job_type, payload, status) VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		job.ID, job.JobType, []byte(job.Payload), job.Status).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("pgMaintenanceJobRepository.CreateJob: %w", err)
	}
	return nil
}

func (r *pgMaintenanceJobRepository) GetJobByID(ctx context.Context, id string) (*model.MaintenanceJob, error) {
	job := &model.MaintenanceJob{}
	var payload []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT id, job_type, payload, status, attempts, last_error, created_at, updated_at
		 FROM maintenance_jobs WHERE id = $1`, id,
	).Scan(&job.ID, &job.JobType, &payload, &job.Status, &job.Attempts, &job.LastError, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgMaintenanceJobRepository.GetJobByID: %w", err)
	}
	job.Payload = payload
	return job, nil
}

func (r *pgMaintenanceJobRepository) UpdateJobStatus(ctx context.Context, tx *sql.Tx, jobID string, status string, lastError *string) error {
	res, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE maintenance_jobs SET status = $1, last_error = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3`,
		status, lastError, jobID)
	if err != nil {
		return fmt.Errorf("pgMaintenanceJobRepository.UpdateJobStatus: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgMaintenanceJobRepository) IncrementJobAttempts(ctx context.Context, tx *sql.Tx, jobID string) error {
	_, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE maintenance_jobs SET attempts = attempts + 1, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("pgMaintenanceJobRepository.IncrementJobAttempts: %w", err)
	}
	return nil
}
