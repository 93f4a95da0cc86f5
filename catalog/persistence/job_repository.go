package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dfryer1193/storefront/catalog/domain"
	"github.com/dfryer1193/storefront/shared/db"
)

var _ domain.JobStore = (*SQLiteJobStore)(nil)

// interruptedMessage is recorded on jobs a previous process left unfinished.
const interruptedMessage = "interrupted by restart"

// SQLiteJobStore persists job records so they survive a restart.
type SQLiteJobStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewJobStore(sqlDB *sql.DB) *SQLiteJobStore {
	return &SQLiteJobStore{
		db:  sqlDB,
		now: time.Now,
	}
}

const insertJobQuery = `
	INSERT INTO jobs (id, status, stage, record, started_at, finished_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
`

func (s *SQLiteJobStore) Create(ctx context.Context, job *domain.Job) error {
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}
	if job.ID == "" {
		return fmt.Errorf("job id cannot be empty")
	}

	record, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}

	_, err = s.db.ExecContext(ctx, insertJobQuery,
		job.ID,
		string(job.Status),
		string(job.Stage),
		record,
		job.StartedAt.UTC(),
		finishedAt(job),
		s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert job %s: %w", job.ID, err)
	}

	return nil
}

const getJobQuery = `
	SELECT record FROM jobs WHERE id = ?
`

func (s *SQLiteJobStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	return s.get(ctx, db.GetExecutor(ctx, s.db), id)
}

func (s *SQLiteJobStore) get(ctx context.Context, executor db.Executor, id string) (*domain.Job, error) {
	var record []byte
	err := executor.QueryRowContext(ctx, getJobQuery, id).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}

	var job domain.Job
	if err := json.Unmarshal(record, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	if job.Totals == nil {
		job.Totals = map[string]domain.Progress{}
	}

	return &job, nil
}

const updateJobQuery = `
	UPDATE jobs
	SET status = ?, stage = ?, record = ?, finished_at = ?, updated_at = ?
	WHERE id = ?
`

// Update reads, mutates and rewrites the record in one transaction.
func (s *SQLiteJobStore) Update(ctx context.Context, id string, fn func(*domain.Job)) error {
	return db.RunInTransaction(ctx, s.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, s.db)

		job, err := s.get(txCtx, executor, id)
		if err != nil {
			return err
		}

		fn(job)
		return s.write(txCtx, executor, job)
	})
}

func (s *SQLiteJobStore) write(ctx context.Context, executor db.Executor, job *domain.Job) error {
	record, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}

	_, err = executor.ExecContext(ctx, updateJobQuery,
		string(job.Status),
		string(job.Stage),
		record,
		finishedAt(job),
		s.now().UTC(),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", job.ID, err)
	}

	return nil
}

const unfinishedJobsQuery = `
	SELECT id FROM jobs WHERE status IN (?, ?)
`

// RecoverInterrupted marks jobs that were pending or running when the
// previous process stopped as failed. It returns how many were marked.
func (s *SQLiteJobStore) RecoverInterrupted(ctx context.Context) (int, error) {
	var recovered int

	err := db.RunInTransaction(ctx, s.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, s.db)

		rows, err := executor.QueryContext(txCtx, unfinishedJobsQuery, string(domain.JobPending), string(domain.JobRunning))
		if err != nil {
			return fmt.Errorf("failed to query unfinished jobs: %w", err)
		}

		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan job id: %w", err)
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating unfinished jobs: %w", err)
		}

		for _, id := range ids {
			job, err := s.get(txCtx, executor, id)
			if err != nil {
				return err
			}
			job.Fail(interruptedMessage, s.now().UTC())
			if err := s.write(txCtx, executor, job); err != nil {
				return err
			}
			recovered++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return recovered, nil
}

func finishedAt(job *domain.Job) any {
	if job.FinishedAt == nil {
		return nil
	}
	return job.FinishedAt.UTC()
}
