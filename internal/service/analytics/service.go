// Package analytics is the entry point the presentation layer calls: it runs
// reports through aggregation and damage calculation, writes the ledger and
// answers accumulation, risk and fumigation queries.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/mamadbah2/grainloss/internal/domain/models"
	"github.com/mamadbah2/grainloss/internal/repository/ledger"
	"github.com/mamadbah2/grainloss/internal/service/aggregation"
	"github.com/mamadbah2/grainloss/internal/service/catalog"
	"github.com/mamadbah2/grainloss/internal/service/damage"
	"github.com/mamadbah2/grainloss/internal/service/risk"
)

var (
	// ErrServiceDateRequired is returned when a report to be saved carries no date.
	ErrServiceDateRequired = errors.New("service date required")
	// ErrForbidden is returned when a client viewer writes another client's report.
	ErrForbidden = errors.New("report belongs to another client")
)

// Accumulator sums ledger rows for a scope.
type Accumulator interface {
	Accumulate(ctx context.Context, viewer models.ViewerContext, scope models.Scope) (models.Accumulated, error)
}

// Recommender evaluates the fumigation rules for a silo.
type Recommender interface {
	Recommend(ctx context.Context, viewer models.ViewerContext, silo string) (models.FumigationRecommendation, error)
}

// Service exposes the analytics operations.
type Service struct {
	catalog     catalog.Lookup
	ledger      ledger.Repository
	acc         Accumulator
	recommender Recommender
	logger      *zap.Logger
}

// NewService wires the analytics facade.
func NewService(lookup catalog.Lookup, repo ledger.Repository, acc Accumulator, recommender Recommender, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		catalog:     lookup,
		ledger:      repo,
		acc:         acc,
		recommender: recommender,
		logger:      logger,
	}
}

// ComputeReportDerivedValues aggregates a report per silo and computes the
// derived metrics without touching the ledger.
func (s *Service) ComputeReportDerivedValues(ctx context.Context, report models.SamplingReport) models.ReportDerivedValues {
	aggs, warnings := aggregation.Aggregate(report.Samples)

	out := models.ReportDerivedValues{
		ReportID:    report.ID,
		ServiceDate: report.ServiceDate,
		Silos:       make([]models.SiloResult, 0, len(aggs)),
	}
	bySilo := groupWarnings(warnings)

	for _, agg := range aggs {
		agg.GrainType = s.catalog.ResolveGrainType(ctx, agg.GrainType)

		result := models.SiloResult{SiloAggregate: agg, Warnings: bySilo[agg.Silo]}
		cost, ok := s.catalog.ResolveCostPerKg(ctx, agg.GrainType)
		if !ok && agg.GrainType != "" {
			result.Warnings = append(result.Warnings, models.Warning{
				Code:    models.WarnUnresolvedCost,
				Silo:    agg.Silo,
				Message: fmt.Sprintf("no catalog cost for %q; economic loss computed with cost 0", agg.GrainType),
			})
		}
		result.CostPerKg = cost
		result.Metrics = damage.Calculate(agg, cost)

		out.Silos = append(out.Silos, result)
	}

	out.Warnings = collect(out.Silos)
	return out
}

// SaveReport computes the report, attributes each silo to the batches resident
// at the service date and atomically replaces the report's ledger rows.
// A client viewer may only write reports of its own client.
func (s *Service) SaveReport(ctx context.Context, viewer models.ViewerContext, report models.SamplingReport) (models.ReportDerivedValues, error) {
	if report.ID == "" {
		return models.ReportDerivedValues{}, ledger.ErrReportIDRequired
	}
	if report.ServiceDate.IsZero() {
		return models.ReportDerivedValues{}, ErrServiceDateRequired
	}
	if viewer.Role == models.RoleClient && report.ClientID == "" {
		report.ClientID = viewer.ClientID
	}
	if err := s.authorizeWrite(ctx, viewer, report.ID, report.ClientID); err != nil {
		return models.ReportDerivedValues{}, err
	}

	derived := s.ComputeReportDerivedValues(ctx, report)

	var rows []models.HistoricalLossRecord
	for i := range derived.Silos {
		silo := &derived.Silos[i]

		batches, warnings, err := s.catalog.ResidentBatchesAt(ctx, silo.Silo, report.ServiceDate)
		switch {
		case errors.Is(err, models.ErrInvalidSiloLabel):
			batches = nil
		case err != nil:
			return models.ReportDerivedValues{}, fmt.Errorf("resolve residency for %s: %w", silo.Silo, err)
		}
		silo.Warnings = append(silo.Warnings, warnings...)

		base := ledgerRow(report, *silo)
		if len(batches) == 0 {
			silo.Warnings = append(silo.Warnings, models.Warning{
				Code:    models.WarnUnresolvedBatch,
				Silo:    silo.Silo,
				Message: "no batch resident at the service date; row kept without batch",
			})
			rows = append(rows, base)
			continue
		}
		for _, b := range batches {
			row := base
			id := b.BatchID
			row.BatchID = &id
			silo.BatchIDs = append(silo.BatchIDs, id)
			rows = append(rows, row)
		}
	}
	derived.Warnings = collect(derived.Silos)

	if err := s.ledger.ReplaceReport(ctx, report.ID, rows); err != nil {
		return models.ReportDerivedValues{}, err
	}

	s.logger.Info("report saved to ledger",
		zap.String("report_id", report.ID),
		zap.Int("silos", len(derived.Silos)),
		zap.Int("rows", len(rows)),
		zap.Int("warnings", len(derived.Warnings)))
	for _, w := range derived.Warnings {
		s.logger.Warn("report data quality", zap.String("report_id", report.ID), zap.String("code", string(w.Code)), zap.String("silo", w.Silo), zap.String("message", w.Message))
	}
	return derived, nil
}

// DeleteReport removes every ledger row of a report.
func (s *Service) DeleteReport(ctx context.Context, viewer models.ViewerContext, reportID string) error {
	if reportID == "" {
		return ledger.ErrReportIDRequired
	}
	if err := s.authorizeWrite(ctx, viewer, reportID, viewer.ClientFilter()); err != nil {
		return err
	}
	return s.ledger.ReplaceReport(ctx, reportID, nil)
}

// authorizeWrite lets staff and admins write any report. A client may only
// write its own client id and only over rows it already owns.
func (s *Service) authorizeWrite(ctx context.Context, viewer models.ViewerContext, reportID, clientID string) error {
	if err := viewer.Validate(); err != nil {
		return err
	}
	if viewer.Role != models.RoleClient {
		return nil
	}
	if clientID != viewer.ClientID {
		return fmt.Errorf("%w: %s", ErrForbidden, reportID)
	}

	existing, err := s.ledger.Query(ctx, models.LedgerFilter{ReportID: reportID})
	if err != nil {
		return fmt.Errorf("load report %s: %w", reportID, err)
	}
	for _, row := range existing {
		if row.ClientID != viewer.ClientID {
			return fmt.Errorf("%w: %s", ErrForbidden, reportID)
		}
	}
	return nil
}

// ReportValues reads a saved report's per-silo figures back from the ledger.
func (s *Service) ReportValues(ctx context.Context, viewer models.ViewerContext, reportID string) ([]models.SiloResult, error) {
	if err := viewer.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.ledger.Query(ctx, models.LedgerFilter{ReportID: reportID, ClientID: viewer.ClientFilter()})
	if err != nil {
		return nil, fmt.Errorf("load report %s: %w", reportID, err)
	}

	index := make(map[string]int)
	var out []models.SiloResult
	for _, row := range rows {
		i, ok := index[row.Silo]
		if !ok {
			i = len(out)
			index[row.Silo] = i
			out = append(out, siloResultFromRow(row))
		}
		if row.BatchID != nil {
			out[i].BatchIDs = append(out[i].BatchIDs, *row.BatchID)
		}
	}
	return out, nil
}

// GetAccumulated sums ledger rows for the scope.
func (s *Service) GetAccumulated(ctx context.Context, viewer models.ViewerContext, scope models.Scope) (models.Accumulated, error) {
	return s.acc.Accumulate(ctx, viewer, scope)
}

// ClassifyRisk grades a value on the requested scale.
func (s *Service) ClassifyRisk(value float64, kind models.RiskKind) (models.RiskLevel, error) {
	return risk.Classify(value, kind)
}

// GetFumigationRecommendation evaluates one silo.
func (s *Service) GetFumigationRecommendation(ctx context.Context, viewer models.ViewerContext, silo string) (models.FumigationRecommendation, error) {
	if err := viewer.Validate(); err != nil {
		return models.FumigationRecommendation{}, err
	}
	return s.recommender.Recommend(ctx, viewer, silo)
}

// SiloOverview reports accumulated figures, risk levels and the recommendation
// for every silo known to inventory.
func (s *Service) SiloOverview(ctx context.Context, viewer models.ViewerContext) ([]models.SiloOverview, error) {
	if err := viewer.Validate(); err != nil {
		return nil, err
	}
	silos, err := s.catalog.Silos(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.SiloOverview, 0, len(silos))
	for _, silo := range silos {
		label := silo.Label()
		item := models.SiloOverview{Silo: label, Empty: silo.Empty()}

		if !item.Empty {
			item.Accumulated, err = s.acc.Accumulate(ctx, viewer, models.Scope{Kind: models.ScopeSilo, Silo: label})
			if err != nil {
				return nil, err
			}
		}
		item.UricAcidLevel = risk.ClassifyUricAcid(item.Accumulated.Metrics.UricAcid)
		item.LossLevel = risk.ClassifyLoss(item.Accumulated.Metrics.EconomicLoss)

		item.Recommendation, err = s.recommender.Recommend(ctx, viewer, label)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func ledgerRow(report models.SamplingReport, silo models.SiloResult) models.HistoricalLossRecord {
	return models.HistoricalLossRecord{
		ReportID:       report.ID,
		ClientID:       report.ClientID,
		Silo:           silo.Silo,
		ReportDate:     report.ServiceDate.UTC(),
		GrainType:      silo.GrainType,
		LiveWeevilsSum: float64(silo.LiveTotal),
		MiteSum:        float64(silo.MiteTotal),
		TonsObserved:   silo.MaxTons,
		SampleCount:    silo.SampleCount,
		DerivedMetrics: silo.Metrics,
	}
}

func siloResultFromRow(row models.HistoricalLossRecord) models.SiloResult {
	agg := models.SiloAggregate{
		Silo:        row.Silo,
		LiveTotal:   int(math.Round(row.LiveWeevilsSum)),
		MiteTotal:   int(math.Round(row.MiteSum)),
		MaxTons:     row.TonsObserved,
		GrainType:   row.GrainType,
		SampleCount: row.SampleCount,
	}
	if row.SampleCount > 0 {
		agg.AvgLiveWeevils = row.LiveWeevilsSum / float64(row.SampleCount)
		agg.AvgMites = row.MiteSum / float64(row.SampleCount)
	}
	return models.SiloResult{SiloAggregate: agg, Metrics: row.DerivedMetrics}
}

func groupWarnings(warnings []models.Warning) map[string][]models.Warning {
	out := make(map[string][]models.Warning)
	for _, w := range warnings {
		out[w.Silo] = append(out[w.Silo], w)
	}
	return out
}

func collect(silos []models.SiloResult) []models.Warning {
	var out []models.Warning
	for _, s := range silos {
		out = append(out, s.Warnings...)
	}
	return out
}
