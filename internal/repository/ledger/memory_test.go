package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/grainloss/internal/domain/models"
)

func TestMemoryReplaceAndFilter(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	d := time.Date(2025, time.August, 4, 0, 0, 0, 0, time.UTC)
	b := "b-1"

	require.NoError(t, m.ReplaceReport(ctx, "r-1", []models.HistoricalLossRecord{
		{Silo: "AP-01", BatchID: &b, ReportDate: d},
		{Silo: "AP-02", ReportDate: d},
	}))

	rows, err := m.Query(ctx, models.LedgerFilter{BatchIDs: []string{"b-1"}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "AP-01", rows[0].Silo)

	rows, err = m.Query(ctx, models.LedgerFilter{From: d.AddDate(0, 0, 1)})
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, m.ReplaceReport(ctx, "r-1", nil))
	rows, err = m.Query(ctx, models.LedgerFilter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMemoryReadersNeverSeePartialReplace(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	d := time.Date(2025, time.August, 4, 0, 0, 0, 0, time.UTC)

	three := []models.HistoricalLossRecord{{Silo: "AP-01", ReportDate: d}, {Silo: "AP-02", ReportDate: d}, {Silo: "AP-03", ReportDate: d}}
	five := append(append([]models.HistoricalLossRecord{}, three...), models.HistoricalLossRecord{Silo: "AP-04", ReportDate: d}, models.HistoricalLossRecord{Silo: "AP-05", ReportDate: d})
	require.NoError(t, m.ReplaceReport(ctx, "r-1", three))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if i%2 == 0 {
				_ = m.ReplaceReport(ctx, "r-1", five)
			} else {
				_ = m.ReplaceReport(ctx, "r-1", three)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			rows, err := m.Query(ctx, models.LedgerFilter{ReportID: "r-1"})
			assert.NoError(t, err)
			assert.Contains(t, []int{3, 5}, len(rows))
		}
	}()
	wg.Wait()
}
