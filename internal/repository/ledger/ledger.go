// Package ledger defines the Historical Ledger contract shared by storage backends.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mamadbah2/grainloss/internal/domain/models"
)

// ErrReportIDRequired is returned when a replace is attempted without a report id.
var ErrReportIDRequired = errors.New("report id required")

// Repository is the only mutation path into the ledger. ReplaceReport swaps every
// row of one report for the supplied rows as a single isolated unit.
type Repository interface {
	ReplaceReport(ctx context.Context, reportID string, rows []models.HistoricalLossRecord) error
	Query(ctx context.Context, filter models.LedgerFilter) ([]models.HistoricalLossRecord, error)
}

// WriteError marks a failed replace. The ledger still holds the previous rows for
// the report; callers should retry the whole replace.
type WriteError struct {
	ReportID string
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("replace ledger rows for report %s: %v", e.ReportID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Prepare stamps ids and timestamps on rows and pins them to reportID.
// createdAt is preserved when a row already carries one.
func Prepare(reportID string, rows []models.HistoricalLossRecord, now time.Time) ([]models.HistoricalLossRecord, error) {
	if reportID == "" {
		return nil, ErrReportIDRequired
	}
	out := make([]models.HistoricalLossRecord, len(rows))
	for i, row := range rows {
		if row.ReportID != "" && row.ReportID != reportID {
			return nil, fmt.Errorf("row %d belongs to report %s, not %s", i, row.ReportID, reportID)
		}
		row.ReportID = reportID
		row.ReportDate = row.ReportDate.UTC()
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		row.UpdatedAt = now
		out[i] = row
	}
	return out, nil
}
