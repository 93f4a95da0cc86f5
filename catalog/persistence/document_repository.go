package persistence

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dfryer1193/storefront/catalog/domain"
	"github.com/dfryer1193/storefront/shared/db"
	"github.com/dfryer1193/storefront/shared/idgen"
)

var _ domain.DocumentStore = (*SQLiteDocumentStore)(nil)

// SQLiteDocumentStore keeps documents as JSON bodies keyed by collection and
// the document's _id.
type SQLiteDocumentStore struct {
	db    *sql.DB
	name  string
	newID idgen.Generator
}

// NewDocumentStore creates a document store over an already migrated database.
func NewDocumentStore(sqlDB *sql.DB, name string) *SQLiteDocumentStore {
	return &SQLiteDocumentStore{
		db:    sqlDB,
		name:  name,
		newID: idgen.UUIDv7(),
	}
}

func (s *SQLiteDocumentStore) Name() string {
	return s.name
}

const listCollectionsQuery = `
	SELECT DISTINCT collection FROM documents ORDER BY collection
`

func (s *SQLiteDocumentStore) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, listCollectionsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan collection name: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collections: %w", err)
	}

	return names, nil
}

const findAllQuery = `
	SELECT body FROM documents WHERE collection = ? ORDER BY rowid
`

// FindAll returns every document of collection in insertion order.
func (s *SQLiteDocumentStore) FindAll(ctx context.Context, collection string) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, findAllQuery, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer rows.Close()

	docs := []domain.Document{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}

		doc, err := decodeDocument(body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode document in %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", collection, err)
	}

	return docs, nil
}

const deleteAllQuery = `
	DELETE FROM documents WHERE collection = ?
`

func (s *SQLiteDocumentStore) DeleteAll(ctx context.Context, collection string) (int64, error) {
	res, err := s.db.ExecContext(ctx, deleteAllQuery, collection)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents from %s: %w", collection, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted documents: %w", err)
	}

	return n, nil
}

const insertDocumentQuery = `
	INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)
`

// InsertMany inserts docs in one transaction. A document that fails (for
// example a duplicate _id) is skipped and the rest are still committed.
func (s *SQLiteDocumentStore) InsertMany(ctx context.Context, collection string, docs []domain.Document) (int, error) {
	var inserted int
	var failures []error

	err := db.RunInTransaction(ctx, s.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, s.db)
		for i, doc := range docs {
			body, err := json.Marshal(doc)
			if err != nil {
				failures = append(failures, fmt.Errorf("document %d: %w", i, err))
				continue
			}

			if _, err := executor.ExecContext(txCtx, insertDocumentQuery, collection, s.documentID(doc), body); err != nil {
				failures = append(failures, fmt.Errorf("document %d: %w", i, err))
				continue
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", collection, err)
	}

	if len(failures) > 0 {
		return inserted, fmt.Errorf("%d of %d documents not inserted into %s: %w",
			len(failures), len(docs), collection, errors.Join(failures...))
	}

	return inserted, nil
}

// documentID derives the row key from _id, generating one when absent.
func (s *SQLiteDocumentStore) documentID(doc domain.Document) string {
	switch v := doc["_id"].(type) {
	case nil:
		return s.newID()
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		// Extended JSON ids such as {"$oid": "..."} key on their encoding.
		raw, err := json.Marshal(v)
		if err != nil {
			return s.newID()
		}
		return string(raw)
	}
}

func decodeDocument(body []byte) (domain.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc domain.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
