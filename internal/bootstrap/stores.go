// Package bootstrap opens the stores selected by configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dfryer1193/storefront/catalog/domain"
	"github.com/dfryer1193/storefront/catalog/persistence"
	"github.com/dfryer1193/storefront/catalog/persistence/mongo"
	"github.com/dfryer1193/storefront/shared/config"
	"github.com/dfryer1193/storefront/shared/db/sqlite"
	"github.com/rs/zerolog/log"
)

// Stores bundles the document and job stores and closes whatever backs them.
type Stores struct {
	Documents domain.DocumentStore
	Jobs      domain.JobStore

	sqlite *sqlite.SQLiteDB
	mongo  *mongo.DocumentStore
}

// OpenDocuments opens only the document store, as offline tools need.
func OpenDocuments(ctx context.Context, cfg *config.Config) (*Stores, error) {
	s := &Stores{}
	if err := s.openDocuments(ctx, cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Open opens the document store and the job store. A persisted job store
// has jobs interrupted by a previous process marked as failed.
func Open(ctx context.Context, cfg *config.Config) (*Stores, error) {
	s, err := OpenDocuments(ctx, cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Import.JobStore {
	case config.JobStoreSQLite:
		if err := s.openSQLite(cfg.Database.SQLitePath); err != nil {
			s.Close(ctx)
			return nil, err
		}
		jobs := persistence.NewJobStore(s.sqlite.DB())
		n, err := jobs.RecoverInterrupted(ctx)
		if err != nil {
			s.Close(ctx)
			return nil, fmt.Errorf("failed to recover interrupted jobs: %w", err)
		}
		if n > 0 {
			log.Warn().Int("jobs", n).Msg("Marked jobs interrupted by restart as failed")
		}
		s.Jobs = jobs
	default:
		s.Jobs = persistence.NewMemoryJobStore(cfg.Import.JobRetention)
	}

	return s, nil
}

func (s *Stores) openDocuments(ctx context.Context, cfg *config.Config) error {
	switch cfg.Database.Driver {
	case config.DriverMongo:
		store, err := mongo.Connect(ctx, cfg.Database.MongoURI, cfg.Database.Name)
		if err != nil {
			return err
		}
		s.mongo = store
		s.Documents = store
	default:
		if err := s.openSQLite(cfg.Database.SQLitePath); err != nil {
			return err
		}
		s.Documents = persistence.NewDocumentStore(s.sqlite.DB(), cfg.Database.Name)
	}
	return nil
}

func (s *Stores) openSQLite(path string) error {
	if s.sqlite != nil {
		return nil
	}

	database := sqlite.NewSQLiteDB(sqlite.NewSQLiteConfig(path))
	if err := database.Connect(); err != nil {
		return fmt.Errorf("failed to connect to sqlite: %w", err)
	}
	s.sqlite = database
	return nil
}

// Close releases every open connection.
func (s *Stores) Close(ctx context.Context) error {
	var errs []error
	if s.mongo != nil {
		errs = append(errs, s.mongo.Close(ctx))
	}
	if s.sqlite != nil {
		errs = append(errs, s.sqlite.Close())
	}
	return errors.Join(errs...)
}
