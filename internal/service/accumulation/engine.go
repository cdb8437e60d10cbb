// Package accumulation sums historical ledger rows over time for a requested scope.
package accumulation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/grainloss/internal/domain/models"
)

var (
	// ErrUnknownScope is returned for scope kinds the engine does not handle.
	ErrUnknownScope = errors.New("unknown accumulation scope")
	// ErrSiloRequired is returned when a residency scope has no silo.
	ErrSiloRequired = errors.New("silo required for this scope")
	// ErrPeriodRequired is returned when a period scope has no bounds.
	ErrPeriodRequired = errors.New("period scope needs a from or to date")
	// ErrGrainTypeRequired is returned when a grain type scope has no grain type.
	ErrGrainTypeRequired = errors.New("grain type required for this scope")
	// ErrBatchNotResident is returned when a batch scope names a batch not stored in the silo.
	ErrBatchNotResident = errors.New("batch is not resident in silo")
)

// LedgerReader is the read side of the historical ledger.
type LedgerReader interface {
	Query(ctx context.Context, filter models.LedgerFilter) ([]models.HistoricalLossRecord, error)
}

// ResidencyLookup resolves which batches a silo holds right now.
type ResidencyLookup interface {
	ResidentBatches(ctx context.Context, silo string) ([]models.ResidentBatch, error)
}

// Engine accumulates ledger rows per batch, per silo, per period, per grain type or globally.
type Engine struct {
	ledger    LedgerReader
	residency ResidencyLookup
	logger    *zap.Logger
}

// NewEngine wires an accumulation engine.
func NewEngine(ledger LedgerReader, residency ResidencyLookup, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{ledger: ledger, residency: residency, logger: logger}
}

// Accumulate sums the ledger rows selected by scope that the viewer may see.
func (e *Engine) Accumulate(ctx context.Context, viewer models.ViewerContext, scope models.Scope) (models.Accumulated, error) {
	if err := viewer.Validate(); err != nil {
		return models.Accumulated{}, err
	}
	scope.Silo = models.NormalizeSiloLabel(scope.Silo)

	switch scope.Kind {
	case models.ScopeBatch:
		return e.currentBatches(ctx, viewer, scope)
	case models.ScopeSilo:
		return e.siloResidency(ctx, viewer, scope)
	case models.ScopePeriod:
		if scope.From.IsZero() && scope.To.IsZero() {
			return models.Accumulated{}, ErrPeriodRequired
		}
		return e.unrestricted(ctx, viewer, scope, nil)
	case models.ScopeGrainType:
		grain := normalize(scope.GrainType)
		if grain == "" {
			return models.Accumulated{}, ErrGrainTypeRequired
		}
		return e.unrestricted(ctx, viewer, scope, func(row models.HistoricalLossRecord) bool {
			return normalize(row.GrainType) == grain
		})
	case models.ScopeGlobal:
		return e.unrestricted(ctx, viewer, scope, nil)
	default:
		return models.Accumulated{}, fmt.Errorf("%w: %q", ErrUnknownScope, scope.Kind)
	}
}

// currentBatches sums every row of the silo's resident batches dated on or
// after each batch's entry date, wherever the batch was stored at the time.
func (e *Engine) currentBatches(ctx context.Context, viewer models.ViewerContext, scope models.Scope) (models.Accumulated, error) {
	if scope.Silo == "" {
		return models.Accumulated{}, ErrSiloRequired
	}
	batches, err := e.residency.ResidentBatches(ctx, scope.Silo)
	if err != nil {
		return models.Accumulated{}, err
	}
	if scope.BatchID != "" {
		batches = filterBatch(batches, scope.BatchID)
		if len(batches) == 0 {
			return models.Accumulated{}, fmt.Errorf("%w: %s in %s", ErrBatchNotResident, scope.BatchID, scope.Silo)
		}
	}

	result := models.Accumulated{Scope: scope}
	if len(batches) == 0 {
		return result, nil
	}

	rows, err := e.ledger.Query(ctx, models.LedgerFilter{
		BatchIDs: batchIDs(batches),
		ClientID: viewer.ClientFilter(),
		From:     scope.From,
		To:       scope.To,
	})
	if err != nil {
		return models.Accumulated{}, fmt.Errorf("load batch rows: %w", err)
	}

	entries := make(map[string]models.ResidentBatch, len(batches))
	for _, b := range batches {
		entries[b.BatchID] = b
		if b.EntryDate == nil || b.EntryDate.IsZero() {
			result.Warnings = append(result.Warnings, models.Warning{
				Code:    models.WarnMissingEntryDate,
				Silo:    scope.Silo,
				BatchID: b.BatchID,
				Message: "batch has no entry date; accumulating every ledger row for it",
			})
		}
	}

	selected := rows[:0]
	for _, row := range rows {
		b := entries[*row.BatchID]
		if b.EntryDate != nil && !b.EntryDate.IsZero() && row.ReportDate.Before(*b.EntryDate) {
			continue
		}
		selected = append(selected, row)
	}

	sum(&result, selected)
	return result, nil
}

// siloResidency sums a silo's rows limited to the batches it holds now, so rows
// left behind by earlier occupants drop out.
func (e *Engine) siloResidency(ctx context.Context, viewer models.ViewerContext, scope models.Scope) (models.Accumulated, error) {
	if scope.Silo == "" {
		return models.Accumulated{}, ErrSiloRequired
	}
	batches, err := e.residency.ResidentBatches(ctx, scope.Silo)
	if err != nil {
		return models.Accumulated{}, err
	}

	result := models.Accumulated{Scope: scope}
	if len(batches) == 0 {
		e.logger.Debug("silo is empty, nothing to accumulate", zap.String("silo", scope.Silo))
		return result, nil
	}

	rows, err := e.ledger.Query(ctx, models.LedgerFilter{
		BatchIDs: batchIDs(batches),
		Silos:    []string{scope.Silo},
		ClientID: viewer.ClientFilter(),
		From:     scope.From,
		To:       scope.To,
	})
	if err != nil {
		return models.Accumulated{}, fmt.Errorf("load silo rows: %w", err)
	}

	sum(&result, rows)
	return result, nil
}

// unrestricted sums rows by date regardless of residency.
func (e *Engine) unrestricted(ctx context.Context, viewer models.ViewerContext, scope models.Scope, keep func(models.HistoricalLossRecord) bool) (models.Accumulated, error) {
	filter := models.LedgerFilter{
		ClientID: viewer.ClientFilter(),
		From:     scope.From,
		To:       scope.To,
	}
	if scope.Silo != "" {
		filter.Silos = []string{scope.Silo}
	}

	rows, err := e.ledger.Query(ctx, filter)
	if err != nil {
		return models.Accumulated{}, fmt.Errorf("load ledger rows: %w", err)
	}

	if keep != nil {
		selected := rows[:0]
		for _, row := range rows {
			if keep(row) {
				selected = append(selected, row)
			}
		}
		rows = selected
	}

	result := models.Accumulated{Scope: scope}
	sum(&result, rows)
	return result, nil
}

// sum adds rows into result, counting each (report, silo) pair once: a silo
// holding several batches stores one row per batch with the same figures.
func sum(result *models.Accumulated, rows []models.HistoricalLossRecord) {
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		key := row.SiloKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		result.Metrics = result.Metrics.Add(row.DerivedMetrics)
		result.LiveWeevilsSum += row.LiveWeevilsSum
		result.MiteSum += row.MiteSum
		result.Rows++
	}
}

func filterBatch(batches []models.ResidentBatch, id string) []models.ResidentBatch {
	for _, b := range batches {
		if b.BatchID == id {
			return []models.ResidentBatch{b}
		}
	}
	return nil
}

func batchIDs(batches []models.ResidentBatch) []string {
	ids := make([]string, 0, len(batches))
	for _, b := range batches {
		ids = append(ids, b.BatchID)
	}
	return ids
}

func normalize(label string) string {
	return strings.ToLower(strings.Join(strings.Fields(label), " "))
}
