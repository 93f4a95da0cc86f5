package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dfryer1193/storefront/catalog/domain"
	"github.com/dfryer1193/storefront/shared/db/sqlite/sqlitetest"
)

func newJob(id string, status domain.JobStatus) *domain.Job {
	return &domain.Job{
		ID:        id,
		Status:    status,
		Stage:     domain.StageInit,
		Totals:    map[string]domain.Progress{},
		StartedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestJobStore_CreateAndGet(t *testing.T) {
	store := NewJobStore(sqlitetest.OpenMemory(t).DB())
	ctx := context.Background()

	job := newJob("job_1", domain.JobPending)
	job.Source = "snapshot.json"
	job.ReplaceExisting = true

	if err := store.Create(ctx, job); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := store.Get(ctx, "job_1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != domain.JobPending || got.Source != "snapshot.json" || !got.ReplaceExisting {
		t.Errorf("Get() = %+v", got)
	}
	if !got.StartedAt.Equal(job.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, job.StartedAt)
	}
}

func TestJobStore_GetUnknown(t *testing.T) {
	store := NewJobStore(sqlitetest.OpenMemory(t).DB())

	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("Get() error = %v, want ErrJobNotFound", err)
	}
}

func TestJobStore_Update(t *testing.T) {
	store := NewJobStore(sqlitetest.OpenMemory(t).DB())
	ctx := context.Background()

	if err := store.Create(ctx, newJob("job_1", domain.JobPending)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err := store.Update(ctx, "job_1", func(j *domain.Job) {
		j.Status = domain.JobRunning
		j.Stage = domain.StageImporting
		j.Totals["products"] = domain.Progress{TotalDocs: 5, ProcessedDocs: 2}
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := store.Get(ctx, "job_1")
	if got.Status != domain.JobRunning || got.Totals["products"].ProcessedDocs != 2 {
		t.Errorf("Get() after Update = %+v", got)
	}

	if err := store.Update(ctx, "missing", func(*domain.Job) {}); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrJobNotFound", err)
	}
}

func TestJobStore_RecoverInterrupted(t *testing.T) {
	store := NewJobStore(sqlitetest.OpenMemory(t).DB())
	ctx := context.Background()

	done := newJob("job_done", domain.JobCompleted)
	finished := time.Now().UTC()
	done.FinishedAt = &finished
	done.Stage = domain.StageDone

	for _, j := range []*domain.Job{
		newJob("job_pending", domain.JobPending),
		newJob("job_running", domain.JobRunning),
		done,
	} {
		if err := store.Create(ctx, j); err != nil {
			t.Fatalf("Create(%s) error = %v", j.ID, err)
		}
	}

	n, err := store.RecoverInterrupted(ctx)
	if err != nil {
		t.Fatalf("RecoverInterrupted() error = %v", err)
	}
	if n != 2 {
		t.Errorf("RecoverInterrupted() = %d, want 2", n)
	}

	for _, id := range []string{"job_pending", "job_running"} {
		got, _ := store.Get(ctx, id)
		if got.Status != domain.JobError || got.Error != interruptedMessage || got.FinishedAt == nil {
			t.Errorf("%s after recovery = %+v", id, got)
		}
	}

	got, _ := store.Get(ctx, "job_done")
	if got.Status != domain.JobCompleted {
		t.Errorf("completed job was modified: %+v", got)
	}
}
