package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mamadbah2/grainloss/internal/domain/models"
)

// Memory is an in-process ledger. Replaces hold the write lock for the whole
// swap so readers never see a half-replaced report.
type Memory struct {
	mu   sync.RWMutex
	rows map[string][]models.HistoricalLossRecord
	now  func() time.Time
}

// NewMemory returns an empty in-process ledger.
func NewMemory() *Memory {
	return &Memory{rows: make(map[string][]models.HistoricalLossRecord), now: time.Now}
}

// ReplaceReport swaps every row of the report.
func (m *Memory) ReplaceReport(_ context.Context, reportID string, rows []models.HistoricalLossRecord) error {
	prepared, err := Prepare(reportID, rows, m.now().UTC())
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(prepared) == 0 {
		delete(m.rows, reportID)
		return nil
	}
	m.rows[reportID] = prepared
	return nil
}

// Query returns copies of the matching rows ordered by date and silo.
func (m *Memory) Query(_ context.Context, filter models.LedgerFilter) ([]models.HistoricalLossRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.HistoricalLossRecord
	for _, rows := range m.rows {
		for _, row := range rows {
			if Matches(filter, row) {
				out = append(out, row)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ReportDate.Equal(out[j].ReportDate) {
			return out[i].ReportDate.Before(out[j].ReportDate)
		}
		if out[i].Silo != out[j].Silo {
			return out[i].Silo < out[j].Silo
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Matches reports whether a row satisfies every populated filter field.
func Matches(filter models.LedgerFilter, row models.HistoricalLossRecord) bool {
	if filter.ReportID != "" && row.ReportID != filter.ReportID {
		return false
	}
	if len(filter.BatchIDs) > 0 {
		if row.BatchID == nil || !contains(filter.BatchIDs, *row.BatchID) {
			return false
		}
	}
	if len(filter.Silos) > 0 && !contains(filter.Silos, row.Silo) {
		return false
	}
	if filter.ClientID != "" && row.ClientID != filter.ClientID {
		return false
	}
	if !filter.From.IsZero() && row.ReportDate.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && !row.ReportDate.Before(filter.To) {
		return false
	}
	return true
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

var _ Repository = (*Memory)(nil)
