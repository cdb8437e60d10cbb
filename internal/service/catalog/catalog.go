// Package catalog resolves grain costs and silo residency for the analytics engine.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/grainloss/internal/domain/models"
)

const defaultCacheTTL = 10 * time.Minute

// VarietySource lists grain varieties with their cost per kilogram.
type VarietySource interface {
	ListVarieties(ctx context.Context) ([]models.GrainVariety, error)
}

// InventorySource exposes silo residency and batch movements.
type InventorySource interface {
	ResidentBatches(ctx context.Context, siloNumber int) ([]models.ResidentBatch, error)
	BatchesSeenIn(ctx context.Context, siloNumber int) ([]models.ResidentBatch, error)
	BatchMovements(ctx context.Context, batchID string) ([]models.BatchMovement, error)
	ListSilos(ctx context.Context) ([]models.Silo, error)
}

// Lookup is the read-only catalog surface consumed by the engine.
type Lookup interface {
	ResolveCostPerKg(ctx context.Context, grainType string) (float64, bool)
	ResolveGrainType(ctx context.Context, raw string) string
	ResidentBatches(ctx context.Context, silo string) ([]models.ResidentBatch, error)
	ResidentBatchesAt(ctx context.Context, silo string, at time.Time) ([]models.ResidentBatch, []models.Warning, error)
	BatchMovements(ctx context.Context, batchID string) ([]models.BatchMovement, error)
	Silos(ctx context.Context) ([]models.Silo, error)
}

type varietyIndex struct {
	byVariety map[string]models.GrainVariety
	byType    map[string]models.GrainVariety
	loadedAt  time.Time
}

// Service implements Lookup on top of a variety source and an inventory source.
// The variety index is cached process-wide and refreshed after the TTL elapses.
type Service struct {
	varieties VarietySource
	inventory InventorySource
	ttl       time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu    sync.RWMutex
	index *varietyIndex
}

// NewService wires a catalog lookup. A non-positive ttl falls back to ten minutes.
func NewService(varieties VarietySource, inventory InventorySource, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Service{
		varieties: varieties,
		inventory: inventory,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
	}
}

// ResolveCostPerKg returns the cost for a grain type or variety label. The second
// return value is false when nothing matched, in which case the cost is 0.
func (s *Service) ResolveCostPerKg(ctx context.Context, grainType string) (float64, bool) {
	key := normalize(grainType)
	if key == "" {
		return 0, false
	}

	idx, err := s.loadIndex(ctx)
	if err != nil {
		s.logger.Error("variety lookup failed, defaulting cost to zero", zap.String("grain_type", grainType), zap.Error(err))
		return 0, false
	}

	if v, ok := idx.byVariety[key]; ok {
		return v.CostPerKg, true
	}
	if v, ok := idx.byType[key]; ok {
		return v.CostPerKg, true
	}
	return 0, false
}

// ResolveGrainType maps a raw extracted label onto the canonical catalog name.
// Unknown labels come back trimmed with whitespace collapsed.
func (s *Service) ResolveGrainType(ctx context.Context, raw string) string {
	key := normalize(raw)
	if key == "" {
		return ""
	}
	cleaned := strings.Join(strings.Fields(raw), " ")

	idx, err := s.loadIndex(ctx)
	if err != nil {
		s.logger.Debug("variety lookup failed, keeping raw grain label", zap.Error(err))
		return cleaned
	}
	if v, ok := idx.byVariety[key]; ok {
		return v.Variety
	}
	if v, ok := idx.byType[key]; ok {
		return v.GrainType
	}
	return cleaned
}

// Invalidate drops the cached variety index.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.index = nil
	s.mu.Unlock()
}

// ResidentBatches lists the batches currently stored in a silo.
func (s *Service) ResidentBatches(ctx context.Context, silo string) ([]models.ResidentBatch, error) {
	number, err := models.ParseSiloLabel(silo)
	if err != nil {
		return nil, err
	}
	batches, err := s.inventory.ResidentBatches(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("load resident batches for %s: %w", silo, err)
	}
	return batches, nil
}

// ResidentBatchesAt lists the batches stored in a silo at the given instant,
// including batches that have since moved out or been retired. The location at
// that instant is replayed from the movement history. Batches whose stay cannot
// be dated are kept and flagged.
func (s *Service) ResidentBatchesAt(ctx context.Context, silo string, at time.Time) ([]models.ResidentBatch, []models.Warning, error) {
	number, err := models.ParseSiloLabel(silo)
	if err != nil {
		return nil, nil, err
	}
	candidates, err := s.inventory.BatchesSeenIn(ctx, number)
	if err != nil {
		return nil, nil, fmt.Errorf("load batches seen in %s: %w", silo, err)
	}

	var (
		out      []models.ResidentBatch
		warnings []models.Warning
	)
	for _, batch := range candidates {
		if batch.RetiredAt != nil && !batch.RetiredAt.After(at) {
			continue
		}
		movements, err := s.BatchMovements(ctx, batch.BatchID)
		if err != nil {
			return nil, nil, err
		}

		location, dated := siloAt(batch, movements, at)
		if location != number {
			continue
		}
		if !dated {
			warnings = append(warnings, models.Warning{
				Code:    models.WarnMissingEntryDate,
				Silo:    models.FormatSiloLabel(number),
				BatchID: batch.BatchID,
				Message: "batch has no entry date or inbound movement; attributed without date check",
			})
		}
		out = append(out, batch)
	}
	return out, warnings, nil
}

// BatchMovements returns the batch movement history ordered by date.
func (s *Service) BatchMovements(ctx context.Context, batchID string) ([]models.BatchMovement, error) {
	movements, err := s.inventory.BatchMovements(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("load movements for batch %s: %w", batchID, err)
	}
	sort.SliceStable(movements, func(i, j int) bool { return movements[i].Date.Before(movements[j].Date) })
	return movements, nil
}

// Silos lists every silo known to inventory with its current residents.
func (s *Service) Silos(ctx context.Context) ([]models.Silo, error) {
	silos, err := s.inventory.ListSilos(ctx)
	if err != nil {
		return nil, fmt.Errorf("list silos: %w", err)
	}
	sort.Slice(silos, func(i, j int) bool { return silos[i].Number < silos[j].Number })
	return silos, nil
}

func (s *Service) loadIndex(ctx context.Context) (*varietyIndex, error) {
	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()
	if idx != nil && s.now().Sub(idx.loadedAt) < s.ttl {
		return idx, nil
	}
	if s.varieties == nil {
		return nil, fmt.Errorf("no variety source configured")
	}

	list, err := s.varieties.ListVarieties(ctx)
	if err != nil {
		return nil, fmt.Errorf("list varieties: %w", err)
	}

	fresh := &varietyIndex{
		byVariety: make(map[string]models.GrainVariety, len(list)),
		byType:    make(map[string]models.GrainVariety),
		loadedAt:  s.now(),
	}
	for _, v := range list {
		if !v.Active {
			continue
		}
		if key := normalize(v.Variety); key != "" {
			if _, dup := fresh.byVariety[key]; !dup {
				fresh.byVariety[key] = v
			}
		}
		if key := normalize(v.GrainType); key != "" {
			if _, dup := fresh.byType[key]; !dup {
				fresh.byType[key] = v
			}
		}
	}

	s.mu.Lock()
	s.index = fresh
	s.mu.Unlock()

	s.logger.Debug("variety index refreshed", zap.Int("entries", len(list)))
	return fresh, nil
}

// siloAt replays movements (sorted by date) up to at. A batch starts in the
// origin silo of its first movement, or its current silo when it never moved.
// Zero means it had not arrived yet. dated is false when neither an entry date
// nor a movement bounds the answer.
func siloAt(batch models.ResidentBatch, movements []models.BatchMovement, at time.Time) (silo int, dated bool) {
	silo = batch.SiloNumber
	if len(movements) > 0 {
		silo = movements[0].FromSilo
	}
	if batch.EntryDate != nil && !batch.EntryDate.IsZero() {
		if batch.EntryDate.After(at) {
			return 0, true
		}
		dated = true
	}
	for _, m := range movements {
		if m.Date.After(at) {
			break
		}
		silo = m.ToSilo
		dated = true
	}
	return silo, dated
}

func normalize(label string) string {
	return strings.ToLower(strings.Join(strings.Fields(label), " "))
}
