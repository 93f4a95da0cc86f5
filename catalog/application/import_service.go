package application

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dfryer1193/storefront/catalog/domain"
	"github.com/dfryer1193/storefront/shared/idgen"
	"github.com/rs/zerolog/log"
)

const DefaultBatchSize = 1000

// ImportService runs snapshot imports as tracked background jobs.
type ImportService struct {
	store     domain.DocumentStore
	jobs      domain.JobStore
	batchSize int
	newID     idgen.Generator
	now       func() time.Time

	// Service lifecycle context - cancelled when Close() is called
	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

func NewImportService(store domain.DocumentStore, jobs domain.JobStore, batchSize int) *ImportService {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}
	return &ImportService{
		store:     store,
		jobs:      jobs,
		batchSize: batchSize,
		newID:     idgen.JobID,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		wg:        &wg,
	}
}

// Close cancels running imports and waits for their workers to exit
func (s *ImportService) Close() error {
	s.cancel()
	s.wg.Wait()

	return nil
}

// Submit registers a job for the envelope at path and starts it in the
// background. path is a temporary file owned by the job and is removed when
// the job ends. If the file cannot be read the job is recorded as failed and
// its id is returned together with the error.
func (s *ImportService) Submit(ctx context.Context, path, source string, replaceExisting bool) (string, error) {
	job := &domain.Job{
		ID:              s.newID(),
		Status:          domain.JobPending,
		Stage:           domain.StageInit,
		Totals:          map[string]domain.Progress{},
		StartedAt:       s.now().UTC(),
		ReplaceExisting: replaceExisting,
		Source:          source,
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		s.removeTemp(path)
		return "", fmt.Errorf("failed to create import job: %w", err)
	}

	if err := checkReadable(path); err != nil {
		importErr := &domain.ImportError{Err: err}
		s.fail(ctx, job.ID, importErr)
		s.removeTemp(path)
		return job.ID, importErr
	}

	log.Info().Str("jobId", job.ID).Str("source", source).Bool("replaceExisting", replaceExisting).Msg("Import job submitted")

	s.wg.Go(func() {
		s.run(job.ID, path, replaceExisting)
	})

	return job.ID, nil
}

// Get returns a snapshot of the job record.
func (s *ImportService) Get(ctx context.Context, id string) (*domain.Job, error) {
	return s.jobs.Get(ctx, id)
}

// run executes one job on the service lifecycle context.
func (s *ImportService) run(id, path string, replaceExisting bool) {
	defer s.removeTemp(path)

	s.update(id, func(j *domain.Job) {
		j.Status = domain.JobRunning
		j.Stage = domain.StageParsing
	})

	env, err := readEnvelope(path)
	if err != nil {
		s.fail(s.ctx, id, &domain.ImportError{Err: err})
		return
	}

	names := slices.Sorted(maps.Keys(env.Collections))

	s.update(id, func(j *domain.Job) {
		j.Stage = domain.StageImporting
		for _, name := range names {
			j.Totals[name] = domain.Progress{TotalDocs: len(env.Collections[name])}
		}
	})

	var failed []string
	for _, name := range names {
		if err := s.ctx.Err(); err != nil {
			s.fail(context.Background(), id, &domain.ImportError{Err: fmt.Errorf("interrupted by shutdown: %w", err)})
			return
		}

		if err := s.importCollection(id, name, env.Collections[name], replaceExisting); err != nil {
			log.Error().Err(err).Str("jobId", id).Str("collection", name).Msg("Collection import failed")
			failed = append(failed, name)
		}
	}

	if len(failed) > 0 {
		s.fail(s.ctx, id, &domain.ImportError{
			Err: fmt.Errorf("collections failed: %s", strings.Join(failed, ", ")),
		})
		return
	}

	s.update(id, func(j *domain.Job) {
		finished := s.now().UTC()
		j.Status = domain.JobCompleted
		j.Stage = domain.StageDone
		j.FinishedAt = &finished
	})
	log.Info().Str("jobId", id).Int("collections", len(names)).Msg("Import job completed")
}

// importCollection wipes (in replace mode) and repopulates one collection.
// A failed wipe skips the inserts so the collection is never left half old
// and half new.
func (s *ImportService) importCollection(id, name string, docs []domain.Document, replaceExisting bool) error {
	if replaceExisting {
		deleted, err := s.store.DeleteAll(s.ctx, name)
		if err != nil {
			importErr := &domain.ImportError{Collection: name, Err: fmt.Errorf("wipe failed: %w", err)}
			s.update(id, func(j *domain.Job) {
				p := j.Totals[name]
				p.Error = importErr.Error()
				j.Totals[name] = p
			})
			return importErr
		}
		log.Debug().Str("jobId", id).Str("collection", name).Int64("deleted", deleted).Msg("Wiped collection")
	}

	var lastErr error
	for start := 0; start < len(docs); start += s.batchSize {
		batch := docs[start:min(start+s.batchSize, len(docs))]

		inserted, err := s.store.InsertMany(s.ctx, name, batch)
		if err != nil {
			lastErr = &domain.ImportError{Collection: name, Err: err}
			log.Warn().Err(err).Str("jobId", id).Str("collection", name).
				Int("batchStart", start).Int("inserted", inserted).Msg("Batch partially failed")
		}

		s.update(id, func(j *domain.Job) {
			p := j.Totals[name]
			p.ProcessedDocs += len(batch)
			p.FailedDocs += len(batch) - inserted
			if lastErr != nil {
				p.Error = lastErr.Error()
			}
			j.Totals[name] = p
		})
	}

	return lastErr
}

func (s *ImportService) update(id string, fn func(*domain.Job)) {
	if err := s.jobs.Update(context.Background(), id, fn); err != nil {
		log.Error().Err(err).Str("jobId", id).Msg("Failed to update job record")
	}
}

func (s *ImportService) fail(ctx context.Context, id string, err error) {
	log.Error().Err(err).Str("jobId", id).Msg("Import job failed")
	if uerr := s.jobs.Update(context.WithoutCancel(ctx), id, func(j *domain.Job) {
		j.Fail(err.Error(), s.now().UTC())
	}); uerr != nil {
		log.Error().Err(uerr).Str("jobId", id).Msg("Failed to record job failure")
	}
}

func (s *ImportService) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("path", path).Msg("Failed to remove snapshot temp file")
	}
}

func checkReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("snapshot file unreadable: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("snapshot file unreadable: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("snapshot file %s is not a regular file", path)
	}
	return nil
}

func readEnvelope(path string) (*domain.Envelope, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	return domain.DecodeEnvelope(f)
}
