package analytics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/grainloss/internal/domain/models"
	"github.com/mamadbah2/grainloss/internal/repository/ledger"
	"github.com/mamadbah2/grainloss/internal/service/accumulation"
	"github.com/mamadbah2/grainloss/internal/service/catalog"
)

type lookupStub struct {
	costs    map[string]float64
	resident map[string][]models.ResidentBatch
	silos    []models.Silo
}

func (l lookupStub) ResolveCostPerKg(_ context.Context, grainType string) (float64, bool) {
	c, ok := l.costs[strings.ToLower(grainType)]
	return c, ok
}

func (l lookupStub) ResolveGrainType(_ context.Context, raw string) string {
	return strings.TrimSpace(raw)
}

func (l lookupStub) ResidentBatches(_ context.Context, silo string) ([]models.ResidentBatch, error) {
	return l.resident[silo], nil
}

func (l lookupStub) ResidentBatchesAt(_ context.Context, silo string, _ time.Time) ([]models.ResidentBatch, []models.Warning, error) {
	return l.resident[silo], nil, nil
}

func (l lookupStub) BatchMovements(context.Context, string) ([]models.BatchMovement, error) {
	return nil, nil
}

func (l lookupStub) Silos(context.Context) ([]models.Silo, error) { return l.silos, nil }

type recommenderStub struct{ calls []string }

func (r *recommenderStub) Recommend(_ context.Context, _ models.ViewerContext, silo string) (models.FumigationRecommendation, error) {
	r.calls = append(r.calls, silo)
	return models.FumigationRecommendation{Silo: silo, State: models.StateNoActionNeeded}, nil
}

type failingLedger struct{ *ledger.Memory }

func (f failingLedger) ReplaceReport(_ context.Context, reportID string, _ []models.HistoricalLossRecord) error {
	return &ledger.WriteError{ReportID: reportID, Err: errors.New("disk full")}
}

var admin = models.ViewerContext{Role: models.RoleAdmin}

func sample(silo, grain string, live, mites int, tons float64) models.Sample {
	return models.Sample{
		Silo:         silo,
		GrainType:    grain,
		Pests:        models.PestCounts{Sitophilus: models.PestCount{Live: live}},
		Mites:        mites,
		ObservedTons: tons,
	}
}

func fixture(t *testing.T) (*Service, *ledger.Memory, lookupStub) {
	t.Helper()
	entry := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	lookup := lookupStub{
		costs: map[string]float64{"maiz": 2},
		resident: map[string][]models.ResidentBatch{
			"AP-01": {{BatchID: "b-1", EntryDate: &entry, GrainType: "Maiz"}},
		},
		silos: []models.Silo{
			{Number: 1, Batches: []models.ResidentBatch{{BatchID: "b-1", EntryDate: &entry}}},
			{Number: 2},
		},
	}
	mem := ledger.NewMemory()
	acc := accumulation.NewEngine(mem, lookup, nil)
	return NewService(lookup, mem, acc, &recommenderStub{}, nil), mem, lookup
}

func report() models.SamplingReport {
	return models.SamplingReport{
		ID:          "rep-1",
		ClientID:    "client-a",
		ServiceDate: time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC),
		Samples: []models.Sample{
			sample("AP-01", "Maiz", 8, 10, 400),
			sample("ap-1", "Maiz", 12, 30, 500),
			sample("AP-03", "Trigo", 4, 0, 100),
		},
	}
}

func TestComputeReportDerivedValues(t *testing.T) {
	svc, mem, _ := fixture(t)

	got := svc.ComputeReportDerivedValues(context.Background(), report())

	require.Len(t, got.Silos, 2)
	ap1 := got.Silos[0]
	assert.Equal(t, "AP-01", ap1.Silo)
	assert.InDelta(t, 10, ap1.AvgLiveWeevils, 1e-9)
	assert.InDelta(t, 20, ap1.AvgMites, 1e-9)
	assert.InDelta(t, 500, ap1.MaxTons, 1e-9)
	assert.InDelta(t, 2.45, ap1.Metrics.UricAcid, 1e-9)
	assert.InDelta(t, 466.2, ap1.Metrics.EconomicLoss, 1e-6)

	ap3 := got.Silos[1]
	assert.Zero(t, ap3.Metrics.EconomicLoss)
	require.Len(t, ap3.Warnings, 1)
	assert.Equal(t, models.WarnUnresolvedCost, ap3.Warnings[0].Code)

	rows, err := mem.Query(context.Background(), models.LedgerFilter{})
	require.NoError(t, err)
	assert.Empty(t, rows, "computing must not write the ledger")
}

func TestSaveReportRoundTripsAndIsIdempotent(t *testing.T) {
	svc, mem, _ := fixture(t)
	ctx := context.Background()

	first, err := svc.SaveReport(ctx, admin, report())
	require.NoError(t, err)
	second, err := svc.SaveReport(ctx, admin, report())
	require.NoError(t, err)
	assert.Equal(t, first.Silos[0].Metrics, second.Silos[0].Metrics)

	rows, err := mem.Query(ctx, models.LedgerFilter{ReportID: "rep-1"})
	require.NoError(t, err)
	require.Len(t, rows, 2, "saving twice must not duplicate rows")

	back, err := svc.ReportValues(ctx, admin, "rep-1")
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.Equal(t, first.Silos[0].Metrics, back[0].Metrics)
	assert.Equal(t, []string{"b-1"}, back[0].BatchIDs)
	assert.InDelta(t, 10, back[0].AvgLiveWeevils, 1e-9)
	assert.Empty(t, back[1].BatchIDs)

	var codes []models.WarningCode
	for _, w := range second.Warnings {
		codes = append(codes, w.Code)
	}
	assert.Contains(t, codes, models.WarnUnresolvedBatch)
	assert.Equal(t, 20, back[0].LiveTotal)
	assert.Equal(t, 40, back[0].MiteTotal)

	// 1/49 is not representable, so sums must come from the raw counts.
	sparse := models.SamplingReport{ID: "rep-2", ClientID: "client-a", ServiceDate: report().ServiceDate}
	for i := 0; i < 49; i++ {
		sparse.Samples = append(sparse.Samples, sample("AP-05", "Maiz", 0, 0, 10))
	}
	sparse.Samples[0].Pests.Sitophilus.Live = 1
	sparse.Samples[1].Mites = 1
	_, err = svc.SaveReport(ctx, admin, sparse)
	require.NoError(t, err)

	rows, err = mem.Query(ctx, models.LedgerFilter{ReportID: "rep-2"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1.0, rows[0].LiveWeevilsSum)
	assert.Equal(t, 1.0, rows[0].MiteSum)

	total, err := svc.GetAccumulated(ctx, admin, models.Scope{Kind: models.ScopeGlobal})
	require.NoError(t, err)
	assert.Equal(t, 25.0, total.LiveWeevilsSum)
	assert.Equal(t, 41.0, total.MiteSum)
}

func TestSaveReportRejectsMissingIdentity(t *testing.T) {
	svc, _, _ := fixture(t)

	r := report()
	r.ID = ""
	_, err := svc.SaveReport(context.Background(), admin, r)
	assert.ErrorIs(t, err, ledger.ErrReportIDRequired)

	r = report()
	r.ServiceDate = time.Time{}
	_, err = svc.SaveReport(context.Background(), admin, r)
	assert.ErrorIs(t, err, ErrServiceDateRequired)
}

func TestSaveReportSurfacesWriteError(t *testing.T) {
	_, mem, lookup := fixture(t)
	svc := NewService(lookup, failingLedger{mem}, accumulation.NewEngine(mem, lookup, nil), &recommenderStub{}, nil)

	_, err := svc.SaveReport(context.Background(), admin, report())

	var writeErr *ledger.WriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, "rep-1", writeErr.ReportID)
}

func TestDeleteReportClearsRows(t *testing.T) {
	svc, mem, _ := fixture(t)
	ctx := context.Background()
	_, err := svc.SaveReport(ctx, admin, report())
	require.NoError(t, err)

	require.NoError(t, svc.DeleteReport(ctx, admin, "rep-1"))

	rows, err := mem.Query(ctx, models.LedgerFilter{ReportID: "rep-1"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestClientViewerOnlySeesOwnRows(t *testing.T) {
	svc, _, _ := fixture(t)
	ctx := context.Background()
	_, err := svc.SaveReport(ctx, admin, report())
	require.NoError(t, err)

	other := models.ViewerContext{Role: models.RoleClient, ClientID: "client-b"}
	acc, err := svc.GetAccumulated(ctx, other, models.Scope{Kind: models.ScopeGlobal})
	require.NoError(t, err)
	assert.Zero(t, acc.Metrics.EconomicLoss)

	owner := models.ViewerContext{Role: models.RoleClient, ClientID: "client-a"}
	acc, err = svc.GetAccumulated(ctx, owner, models.Scope{Kind: models.ScopeGlobal})
	require.NoError(t, err)
	assert.InDelta(t, 466.2, acc.Metrics.EconomicLoss, 1e-6)
}

func TestSiloOverview(t *testing.T) {
	svc, _, _ := fixture(t)
	ctx := context.Background()
	_, err := svc.SaveReport(ctx, admin, report())
	require.NoError(t, err)

	overview, err := svc.SiloOverview(ctx, admin)
	require.NoError(t, err)
	require.Len(t, overview, 2)

	assert.Equal(t, "AP-01", overview[0].Silo)
	assert.False(t, overview[0].Empty)
	assert.InDelta(t, 466.2, overview[0].Accumulated.Metrics.EconomicLoss, 1e-6)
	assert.Equal(t, models.LevelTolerable, overview[0].UricAcidLevel)
	assert.Equal(t, models.LevelLow, overview[0].LossLevel)

	assert.Equal(t, "AP-02", overview[1].Silo)
	assert.True(t, overview[1].Empty)
	assert.Zero(t, overview[1].Accumulated.Metrics.EconomicLoss)
}

func TestQueriesRequireViewerRole(t *testing.T) {
	svc, _, _ := fixture(t)

	_, err := svc.SiloOverview(context.Background(), models.ViewerContext{})
	assert.ErrorIs(t, err, models.ErrViewerRoleRequired)

	_, err = svc.GetFumigationRecommendation(context.Background(), models.ViewerContext{}, "AP-01")
	assert.ErrorIs(t, err, models.ErrViewerRoleRequired)
}

func TestClassifyRisk(t *testing.T) {
	svc, _, _ := fixture(t)

	level, err := svc.ClassifyRisk(10, models.RiskUricAcid)
	require.NoError(t, err)
	assert.Equal(t, models.LevelModeratelyDangerous, level)
}

func TestClientWritesAreLimitedToOwnReports(t *testing.T) {
	svc, mem, _ := fixture(t)
	ctx := context.Background()
	owner := models.ViewerContext{Role: models.RoleClient, ClientID: "client-a"}
	other := models.ViewerContext{Role: models.RoleClient, ClientID: "client-b"}

	_, err := svc.SaveReport(ctx, owner, report())
	require.NoError(t, err)

	_, err = svc.SaveReport(ctx, other, report())
	assert.ErrorIs(t, err, ErrForbidden, "foreign client id in the report")

	hijack := report()
	hijack.ClientID = ""
	_, err = svc.SaveReport(ctx, other, hijack)
	assert.ErrorIs(t, err, ErrForbidden, "existing rows belong to client-a")

	assert.ErrorIs(t, svc.DeleteReport(ctx, other, "rep-1"), ErrForbidden)
	assert.ErrorIs(t, svc.DeleteReport(ctx, models.ViewerContext{}, "rep-1"), models.ErrViewerRoleRequired)

	rows, err := mem.Query(ctx, models.LedgerFilter{ReportID: "rep-1"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, "client-a", row.ClientID)
	}

	require.NoError(t, svc.DeleteReport(ctx, owner, "rep-1"))
}

// movingInventory holds one batch whose silo changes during a test.
type movingInventory struct {
	batch     models.ResidentBatch
	movements []models.BatchMovement
}

func (m *movingInventory) ResidentBatches(_ context.Context, silo int) ([]models.ResidentBatch, error) {
	if m.batch.SiloNumber == silo && m.batch.RetiredAt == nil {
		return []models.ResidentBatch{m.batch}, nil
	}
	return nil, nil
}

func (m *movingInventory) BatchesSeenIn(_ context.Context, silo int) ([]models.ResidentBatch, error) {
	if m.batch.SiloNumber == silo {
		return []models.ResidentBatch{m.batch}, nil
	}
	for _, mv := range m.movements {
		if mv.FromSilo == silo || mv.ToSilo == silo {
			return []models.ResidentBatch{m.batch}, nil
		}
	}
	return nil, nil
}

func (m *movingInventory) BatchMovements(context.Context, string) ([]models.BatchMovement, error) {
	return append([]models.BatchMovement(nil), m.movements...), nil
}

func (m *movingInventory) ListSilos(context.Context) ([]models.Silo, error) {
	return []models.Silo{{Number: m.batch.SiloNumber, Batches: []models.ResidentBatch{m.batch}}}, nil
}

func (m *movingInventory) ListVarieties(context.Context) ([]models.GrainVariety, error) {
	return []models.GrainVariety{{GrainType: "Maiz", Variety: "Maiz", Active: true, CostPerKg: 2}}, nil
}

func (m *movingInventory) move(to int, at time.Time) {
	m.movements = append(m.movements, models.BatchMovement{Date: at, FromSilo: m.batch.SiloNumber, ToSilo: to})
	m.batch.SiloNumber = to
}

func TestEditingReportAfterBatchMovedKeepsAttribution(t *testing.T) {
	ctx := context.Background()
	entry := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	inv := &movingInventory{batch: models.ResidentBatch{BatchID: "b-1", EntryDate: &entry, GrainType: "Maiz", SiloNumber: 1}}
	lookup := catalog.NewService(inv, inv, time.Minute, nil)
	mem := ledger.NewMemory()
	acc := accumulation.NewEngine(mem, lookup, nil)
	svc := NewService(lookup, mem, acc, &recommenderStub{}, nil)

	r := models.SamplingReport{
		ID:          "r-1",
		ClientID:    "client-a",
		ServiceDate: entry.AddDate(0, 0, 4),
		Samples:     []models.Sample{sample("AP-01", "Maiz", 10, 20, 500)},
	}
	_, err := svc.SaveReport(ctx, admin, r)
	require.NoError(t, err)

	before, err := svc.GetAccumulated(ctx, admin, models.Scope{Kind: models.ScopeBatch, Silo: "AP-01"})
	require.NoError(t, err)
	require.Equal(t, 1, before.Rows)

	inv.move(2, entry.AddDate(0, 0, 9))

	derived, err := svc.SaveReport(ctx, admin, r)
	require.NoError(t, err)
	require.Len(t, derived.Silos, 1)
	assert.Equal(t, []string{"b-1"}, derived.Silos[0].BatchIDs)
	for _, w := range derived.Warnings {
		assert.NotEqual(t, models.WarnUnresolvedBatch, w.Code)
	}

	after, err := svc.GetAccumulated(ctx, admin, models.Scope{Kind: models.ScopeBatch, Silo: "AP-02"})
	require.NoError(t, err)
	assert.Equal(t, 1, after.Rows)
	assert.InDelta(t, before.Metrics.EconomicLoss, after.Metrics.EconomicLoss, 1e-9)
	assert.InDelta(t, 466.2, after.Metrics.EconomicLoss, 1e-6)

	moved, err := svc.GetAccumulated(ctx, admin, models.Scope{Kind: models.ScopeSilo, Silo: "AP-02"})
	require.NoError(t, err)
	assert.Zero(t, moved.Rows, "rows stay with the silo they were sampled in")
}
