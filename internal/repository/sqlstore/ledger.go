package sqlstore

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mamadbah2/grainloss/internal/domain/models"
	"github.com/mamadbah2/grainloss/internal/repository/ledger"
)

// LedgerRepository stores historical loss rows in a SQL table.
type LedgerRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewLedgerRepository wires the SQL ledger.
func NewLedgerRepository(db *gorm.DB, logger *zap.Logger) *LedgerRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerRepository{db: db, logger: logger, now: time.Now}
}

// ReplaceReport deletes and reinserts a report's rows inside one transaction.
func (r *LedgerRepository) ReplaceReport(ctx context.Context, reportID string, rows []models.HistoricalLossRecord) error {
	prepared, err := ledger.Prepare(reportID, rows, r.now().UTC())
	if err != nil {
		return err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("report_id = ?", reportID).Delete(&models.HistoricalLossRecord{}).Error; err != nil {
			return fmt.Errorf("delete previous rows: %w", err)
		}
		if len(prepared) == 0 {
			return nil
		}
		if err := tx.Create(&prepared).Error; err != nil {
			return fmt.Errorf("insert rows: %w", err)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("ledger replace rolled back", zap.String("report_id", reportID), zap.Error(err))
		return &ledger.WriteError{ReportID: reportID, Err: err}
	}

	r.logger.Debug("ledger rows replaced", zap.String("report_id", reportID), zap.Int("rows", len(prepared)))
	return nil
}

// Query returns rows matching every populated field of the filter.
func (r *LedgerRepository) Query(ctx context.Context, filter models.LedgerFilter) ([]models.HistoricalLossRecord, error) {
	q := r.db.WithContext(ctx).Model(&models.HistoricalLossRecord{})
	if filter.ReportID != "" {
		q = q.Where("report_id = ?", filter.ReportID)
	}
	if len(filter.BatchIDs) > 0 {
		q = q.Where("batch_id IN ?", filter.BatchIDs)
	}
	if len(filter.Silos) > 0 {
		q = q.Where("silo IN ?", filter.Silos)
	}
	if filter.ClientID != "" {
		q = q.Where("client_id = ?", filter.ClientID)
	}
	if !filter.From.IsZero() {
		q = q.Where("report_date >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		q = q.Where("report_date < ?", filter.To.UTC())
	}

	var rows []models.HistoricalLossRecord
	if err := q.Order("report_date ASC").Order("silo ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	return rows, nil
}

var _ ledger.Repository = (*LedgerRepository)(nil)
