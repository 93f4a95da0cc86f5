// Package mongo stores catalog documents in MongoDB.
package mongo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dfryer1193/storefront/catalog/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 10 * time.Second

var _ domain.DocumentStore = (*DocumentStore)(nil)

// DocumentStore implements domain.DocumentStore on one MongoDB database.
// Documents cross the boundary as relaxed Extended JSON so ObjectIds, dates
// and number types survive a round trip.
type DocumentStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri and pings the server.
func Connect(ctx context.Context, uri, database string) (*DocumentStore, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	log.Info().Str("database", database).Msg("Connected to MongoDB")
	return &DocumentStore{
		client: client,
		db:     client.Database(database),
	}, nil
}

func (s *DocumentStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *DocumentStore) Name() string {
	return s.db.Name()
}

func (s *DocumentStore) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	slices.Sort(names)
	return names, nil
}

func (s *DocumentStore) FindAll(ctx context.Context, collection string) ([]domain.Document, error) {
	cur, err := s.db.Collection(collection).Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	docs := []domain.Document{}
	for cur.Next(ctx) {
		doc, err := fromBSON(cur.Current)
		if err != nil {
			return nil, fmt.Errorf("failed to decode document in %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", collection, err)
	}

	return docs, nil
}

func (s *DocumentStore) DeleteAll(ctx context.Context, collection string) (int64, error) {
	res, err := s.db.Collection(collection).DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents from %s: %w", collection, err)
	}
	return res.DeletedCount, nil
}

// InsertMany performs an unordered bulk insert so one bad document does not
// stop the rest of the batch.
func (s *DocumentStore) InsertMany(ctx context.Context, collection string, docs []domain.Document) (int, error) {
	var failures []error
	batch := make([]any, 0, len(docs))
	for i, doc := range docs {
		d, err := toBSON(doc)
		if err != nil {
			failures = append(failures, fmt.Errorf("document %d: %w", i, err))
			continue
		}
		batch = append(batch, d)
	}

	inserted := 0
	if len(batch) > 0 {
		res, err := s.db.Collection(collection).InsertMany(ctx, batch, options.InsertMany().SetOrdered(false))
		var bulkErr mongo.BulkWriteException
		switch {
		case err == nil:
			inserted = len(res.InsertedIDs)
		case errors.As(err, &bulkErr):
			inserted = len(batch) - len(bulkErr.WriteErrors)
			failures = append(failures, err)
		default:
			return 0, fmt.Errorf("failed to insert into %s: %w", collection, err)
		}
	}

	if len(failures) > 0 {
		return inserted, fmt.Errorf("%d of %d documents not inserted into %s: %w",
			len(docs)-inserted, len(docs), collection, errors.Join(failures...))
	}
	return inserted, nil
}

// toBSON converts an opaque document to BSON through relaxed Extended JSON.
func toBSON(doc domain.Document) (bson.D, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	var d bson.D
	if err := bson.UnmarshalExtJSON(raw, false, &d); err != nil {
		return nil, err
	}
	return d, nil
}

func fromBSON(raw bson.Raw) (domain.Document, error) {
	ext, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(ext))
	dec.UseNumber()

	var doc domain.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
