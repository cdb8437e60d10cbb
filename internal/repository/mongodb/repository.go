package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ledgerCollection     = "historical_loss_records"
	batchesCollection    = "grain_batches"
	silosCollection      = "silos"
	varietiesCollection  = "grain_varieties"
	fumigationCollection = "fumigation_events"
)

// Store owns the MongoDB client shared by the ledger and inventory repositories.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewStore connects, pings and ensures indexes.
func NewStore(ctx context.Context, uri string, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	store := &Store{client: client, db: client.Database(dbName)}
	if err := store.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		ledgerCollection: {
			{Keys: bson.D{{Key: "report_id", Value: 1}}},
			{Keys: bson.D{{Key: "silo", Value: 1}, {Key: "report_date", Value: 1}}},
			{Keys: bson.D{{Key: "batch_id", Value: 1}}},
		},
		batchesCollection: {
			{Keys: bson.D{{Key: "silo_number", Value: 1}}},
		},
		fumigationCollection: {
			{Keys: bson.D{{Key: "silo", Value: 1}, {Key: "service_type", Value: 1}, {Key: "date", Value: -1}}},
		},
	}
	for name, specs := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, specs); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the MongoDB connection.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
