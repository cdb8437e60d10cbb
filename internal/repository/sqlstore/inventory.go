package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mamadbah2/grainloss/internal/domain/models"
)

// ErrBatchNotFound is returned when a batch id is unknown.
var ErrBatchNotFound = errors.New("batch not found")

// InventoryRepository serves batches, silos, varieties and fumigation events.
type InventoryRepository struct {
	db *gorm.DB
}

// NewInventoryRepository wires the SQL inventory read model.
func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// SaveBatch inserts or updates a batch and its movement history.
func (r *InventoryRepository) SaveBatch(ctx context.Context, batch models.GrainBatch) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		movements := batch.Movements
		batch.Movements = nil
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&batch).Error; err != nil {
			return fmt.Errorf("upsert batch %s: %w", batch.ID, err)
		}
		if err := tx.Where("batch_id = ?", batch.ID).Delete(&models.BatchMovement{}).Error; err != nil {
			return fmt.Errorf("clear movements for %s: %w", batch.ID, err)
		}
		for i := range movements {
			movements[i].ID = 0
			movements[i].BatchID = batch.ID
		}
		if len(movements) > 0 {
			if err := tx.Create(&movements).Error; err != nil {
				return fmt.Errorf("insert movements for %s: %w", batch.ID, err)
			}
		}
		return r.ensureSilo(tx, batch.SiloNumber)
	})
}

// MoveBatch records a movement and updates the batch residency in one step.
func (r *InventoryRepository) MoveBatch(ctx context.Context, batchID string, toSilo int, quantity float64, at time.Time, notes string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var batch models.GrainBatch
		if err := tx.First(&batch, "id = ?", batchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
			}
			return fmt.Errorf("load batch %s: %w", batchID, err)
		}

		movement := models.BatchMovement{
			BatchID:  batchID,
			Date:     at,
			FromSilo: batch.SiloNumber,
			ToSilo:   toSilo,
			Quantity: quantity,
			Notes:    notes,
		}
		if err := tx.Create(&movement).Error; err != nil {
			return fmt.Errorf("insert movement: %w", err)
		}
		if err := tx.Model(&batch).Update("silo_number", toSilo).Error; err != nil {
			return fmt.Errorf("update residency: %w", err)
		}
		return r.ensureSilo(tx, toSilo)
	})
}

// RetireBatch marks a batch as emptied so it no longer counts as resident.
func (r *InventoryRepository) RetireBatch(ctx context.Context, batchID string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.GrainBatch{}).Where("id = ?", batchID).Update("retired_at", at)
	if res.Error != nil {
		return fmt.Errorf("retire batch %s: %w", batchID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}
	return nil
}

// SaveSilo records a silo and its capacity.
func (r *InventoryRepository) SaveSilo(ctx context.Context, number int, capacity float64) error {
	row := siloRow{Number: number, Capacity: capacity}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

// ResidentBatches lists non-retired batches stored in the silo.
func (r *InventoryRepository) ResidentBatches(ctx context.Context, siloNumber int) ([]models.ResidentBatch, error) {
	var batches []models.GrainBatch
	err := r.db.WithContext(ctx).
		Where("silo_number = ? AND retired_at IS NULL", siloNumber).
		Order("id ASC").
		Find(&batches).Error
	if err != nil {
		return nil, fmt.Errorf("query resident batches: %w", err)
	}
	return toResident(batches), nil
}

// BatchesSeenIn lists every batch, retired or not, that is in the silo now or
// was moved into or out of it at some point.
func (r *InventoryRepository) BatchesSeenIn(ctx context.Context, siloNumber int) ([]models.ResidentBatch, error) {
	moved := r.db.Model(&models.BatchMovement{}).
		Select("batch_id").
		Where("from_silo = ? OR to_silo = ?", siloNumber, siloNumber)

	var batches []models.GrainBatch
	err := r.db.WithContext(ctx).
		Where("silo_number = ? OR id IN (?)", siloNumber, moved).
		Order("id ASC").
		Find(&batches).Error
	if err != nil {
		return nil, fmt.Errorf("query batches seen in silo %d: %w", siloNumber, err)
	}
	return toResident(batches), nil
}

// BatchMovements returns a batch's movement history.
func (r *InventoryRepository) BatchMovements(ctx context.Context, batchID string) ([]models.BatchMovement, error) {
	var movements []models.BatchMovement
	if err := r.db.WithContext(ctx).Where("batch_id = ?", batchID).Order("date ASC").Find(&movements).Error; err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	return movements, nil
}

// ListSilos returns every known silo with its resident batches.
func (r *InventoryRepository) ListSilos(ctx context.Context) ([]models.Silo, error) {
	var rows []siloRow
	if err := r.db.WithContext(ctx).Order("number ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query silos: %w", err)
	}
	var batches []models.GrainBatch
	if err := r.db.WithContext(ctx).Where("retired_at IS NULL").Order("id ASC").Find(&batches).Error; err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}

	bySilo := make(map[int][]models.GrainBatch)
	for _, b := range batches {
		bySilo[b.SiloNumber] = append(bySilo[b.SiloNumber], b)
	}

	silos := make([]models.Silo, 0, len(rows))
	seen := make(map[int]bool, len(rows))
	for _, row := range rows {
		seen[row.Number] = true
		silos = append(silos, models.Silo{Number: row.Number, Capacity: row.Capacity, Batches: toResident(bySilo[row.Number])})
	}
	for number, list := range bySilo {
		if !seen[number] {
			silos = append(silos, models.Silo{Number: number, Batches: toResident(list)})
		}
	}
	return silos, nil
}

// SaveVariety inserts or updates a catalog variety.
func (r *InventoryRepository) SaveVariety(ctx context.Context, variety *models.GrainVariety) error {
	return r.db.WithContext(ctx).Save(variety).Error
}

// ListVarieties returns every catalog variety.
func (r *InventoryRepository) ListVarieties(ctx context.Context) ([]models.GrainVariety, error) {
	var list []models.GrainVariety
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("query varieties: %w", err)
	}
	return list, nil
}

// RecordFumigation stores a treatment event.
func (r *InventoryRepository) RecordFumigation(ctx context.Context, event *models.FumigationEvent) error {
	event.Silo = models.NormalizeSiloLabel(event.Silo)
	return r.db.WithContext(ctx).Create(event).Error
}

// LatestEvent returns the most recent event of a service type for a silo, or nil.
func (r *InventoryRepository) LatestEvent(ctx context.Context, silo, serviceType string) (*models.FumigationEvent, error) {
	var event models.FumigationEvent
	err := r.db.WithContext(ctx).
		Where("silo = ? AND service_type = ?", models.NormalizeSiloLabel(silo), serviceType).
		Order("date DESC").
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest fumigation: %w", err)
	}
	return &event, nil
}

func (r *InventoryRepository) ensureSilo(tx *gorm.DB, number int) error {
	if number <= 0 {
		return nil
	}
	row := siloRow{Number: number}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func toResident(batches []models.GrainBatch) []models.ResidentBatch {
	out := make([]models.ResidentBatch, 0, len(batches))
	for _, b := range batches {
		out = append(out, models.ResidentBatch{
			BatchID:      b.ID,
			EntryDate:    b.EntryDate,
			GrainType:    b.GrainType,
			GrainSubtype: b.GrainSubtype,
			SiloNumber:   b.SiloNumber,
			RetiredAt:    b.RetiredAt,
		})
	}
	return out
}
