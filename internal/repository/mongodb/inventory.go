package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/grainloss/internal/domain/models"
)

type siloDoc struct {
	Number   int     `bson:"_id"`
	Capacity float64 `bson:"capacity"`
}

// InventoryRepository reads batches, silos, varieties and fumigation events
// written by the inventory and service-logging subsystems.
type InventoryRepository struct {
	batches    *mongo.Collection
	silos      *mongo.Collection
	varieties  *mongo.Collection
	fumigation *mongo.Collection
}

// NewInventoryRepository wires the Mongo inventory read model.
func NewInventoryRepository(store *Store) *InventoryRepository {
	return &InventoryRepository{
		batches:    store.db.Collection(batchesCollection),
		silos:      store.db.Collection(silosCollection),
		varieties:  store.db.Collection(varietiesCollection),
		fumigation: store.db.Collection(fumigationCollection),
	}
}

// ResidentBatches lists non-retired batches stored in the silo.
func (r *InventoryRepository) ResidentBatches(ctx context.Context, siloNumber int) ([]models.ResidentBatch, error) {
	return r.findResident(ctx, bson.M{"silo_number": siloNumber, "retired_at": bson.M{"$exists": false}})
}

// BatchesSeenIn lists every batch, retired or not, that is in the silo now or
// appears in its movement history.
func (r *InventoryRepository) BatchesSeenIn(ctx context.Context, siloNumber int) ([]models.ResidentBatch, error) {
	return r.findResident(ctx, bson.M{"$or": bson.A{
		bson.M{"silo_number": siloNumber},
		bson.M{"movements.from_silo": siloNumber},
		bson.M{"movements.to_silo": siloNumber},
	}})
}

// BatchMovements returns the embedded movement history of a batch.
func (r *InventoryRepository) BatchMovements(ctx context.Context, batchID string) ([]models.BatchMovement, error) {
	var batch models.GrainBatch
	err := r.batches.FindOne(ctx, bson.M{"_id": batchID},
		options.FindOne().SetProjection(bson.M{"movements": 1})).Decode(&batch)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load batch %s: %w", batchID, err)
	}
	return batch.Movements, nil
}

// ListSilos returns every known silo with its resident batches.
func (r *InventoryRepository) ListSilos(ctx context.Context) ([]models.Silo, error) {
	cursor, err := r.silos.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("query silos: %w", err)
	}
	var docs []siloDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode silos: %w", err)
	}

	cursor, err = r.batches.Find(ctx, bson.M{"retired_at": bson.M{"$exists": false}})
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	var batches []models.GrainBatch
	if err := cursor.All(ctx, &batches); err != nil {
		return nil, fmt.Errorf("decode batches: %w", err)
	}

	bySilo := make(map[int][]models.ResidentBatch)
	for _, b := range batches {
		bySilo[b.SiloNumber] = append(bySilo[b.SiloNumber], resident(b))
	}

	out := make([]models.Silo, 0, len(docs))
	seen := make(map[int]bool, len(docs))
	for _, d := range docs {
		seen[d.Number] = true
		out = append(out, models.Silo{Number: d.Number, Capacity: d.Capacity, Batches: bySilo[d.Number]})
	}
	for number, list := range bySilo {
		if !seen[number] {
			out = append(out, models.Silo{Number: number, Batches: list})
		}
	}
	return out, nil
}

// ListVarieties returns the grain variety catalog.
func (r *InventoryRepository) ListVarieties(ctx context.Context) ([]models.GrainVariety, error) {
	cursor, err := r.varieties.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("query varieties: %w", err)
	}
	var list []models.GrainVariety
	if err := cursor.All(ctx, &list); err != nil {
		return nil, fmt.Errorf("decode varieties: %w", err)
	}
	return list, nil
}

// LatestEvent returns the most recent event of a service type for a silo, or nil.
func (r *InventoryRepository) LatestEvent(ctx context.Context, silo, serviceType string) (*models.FumigationEvent, error) {
	var event models.FumigationEvent
	err := r.fumigation.FindOne(ctx,
		bson.M{"silo": models.NormalizeSiloLabel(silo), "service_type": serviceType},
		options.FindOne().SetSort(bson.D{{Key: "date", Value: -1}}),
	).Decode(&event)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest fumigation: %w", err)
	}
	return &event, nil
}

func (r *InventoryRepository) findResident(ctx context.Context, filter bson.M) ([]models.ResidentBatch, error) {
	cursor, err := r.batches.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("query resident batches: %w", err)
	}
	var batches []models.GrainBatch
	if err := cursor.All(ctx, &batches); err != nil {
		return nil, fmt.Errorf("decode batches: %w", err)
	}
	out := make([]models.ResidentBatch, 0, len(batches))
	for _, b := range batches {
		out = append(out, resident(b))
	}
	return out, nil
}

func resident(b models.GrainBatch) models.ResidentBatch {
	return models.ResidentBatch{
		BatchID:      b.ID,
		EntryDate:    b.EntryDate,
		GrainType:    b.GrainType,
		GrainSubtype: b.GrainSubtype,
		SiloNumber:   b.SiloNumber,
		RetiredAt:    b.RetiredAt,
	}
}
