// Package fumigation decides whether a silo should be gasified.
package fumigation

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/grainloss/internal/domain/models"
)

// EventSource returns the latest treatment of a service type for a silo.
type EventSource interface {
	LatestEvent(ctx context.Context, silo, serviceType string) (*models.FumigationEvent, error)
}

// Accumulator provides residency-bounded totals for a silo.
type Accumulator interface {
	Accumulate(ctx context.Context, viewer models.ViewerContext, scope models.Scope) (models.Accumulated, error)
}

// ResidencyLookup resolves the batches a silo holds now.
type ResidencyLookup interface {
	ResidentBatches(ctx context.Context, silo string) ([]models.ResidentBatch, error)
}

// Policy holds the thresholds of the recommendation rules.
type Policy struct {
	ServiceType       string
	IntervalDays      int
	LossThreshold     float64
	UricAcidThreshold float64
}

// DefaultPolicy returns the standard 45 day / 5000 / 5 mg thresholds.
func DefaultPolicy(serviceType string) Policy {
	return Policy{
		ServiceType:       serviceType,
		IntervalDays:      45,
		LossThreshold:     5000,
		UricAcidThreshold: 5,
	}
}

// Evaluate applies the rules to already accumulated figures.
//
// A silo is recommended when its last gasification is older than the interval
// and it shows both loss and uric acid, or when it was never gasified and
// either figure exceeds its threshold.
func (p Policy) Evaluate(loss, uric float64, daysSince *int) (models.RecommendationState, []string) {
	if daysSince != nil {
		if *daysSince > p.IntervalDays && loss > 0 && uric > 0 {
			return models.StateRecommend, []string{
				fmt.Sprintf("last gasification %d days ago exceeds %d day interval", *daysSince, p.IntervalDays),
				fmt.Sprintf("accumulated loss %.2f and uric acid %.2f mg/100g are both present", loss, uric),
			}
		}
		if *daysSince <= p.IntervalDays {
			return models.StateNoActionNeeded, []string{fmt.Sprintf("gasified %d days ago, within %d day interval", *daysSince, p.IntervalDays)}
		}
		return models.StateNoActionNeeded, []string{"interval elapsed but loss or uric acid is zero"}
	}

	var reasons []string
	if loss > p.LossThreshold {
		reasons = append(reasons, fmt.Sprintf("never gasified and accumulated loss %.2f exceeds %.2f", loss, p.LossThreshold))
	}
	if uric > p.UricAcidThreshold {
		reasons = append(reasons, fmt.Sprintf("never gasified and accumulated uric acid %.2f exceeds %.2f mg/100g", uric, p.UricAcidThreshold))
	}
	if len(reasons) > 0 {
		return models.StateRecommend, reasons
	}
	return models.StateNoActionNeeded, []string{"never gasified, loss and uric acid below thresholds"}
}

// Recommender evaluates silos against the policy.
type Recommender struct {
	policy    Policy
	acc       Accumulator
	residency ResidencyLookup
	events    EventSource
	logger    *zap.Logger
	now       func() time.Time
}

// NewRecommender wires a recommender.
func NewRecommender(policy Policy, acc Accumulator, residency ResidencyLookup, events EventSource, logger *zap.Logger) *Recommender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recommender{
		policy:    policy,
		acc:       acc,
		residency: residency,
		events:    events,
		logger:    logger,
		now:       time.Now,
	}
}

// Recommend evaluates one silo. Empty silos are not evaluated.
func (r *Recommender) Recommend(ctx context.Context, viewer models.ViewerContext, silo string) (models.FumigationRecommendation, error) {
	label := models.NormalizeSiloLabel(silo)
	out := models.FumigationRecommendation{Silo: label}

	batches, err := r.residency.ResidentBatches(ctx, label)
	if err != nil {
		return out, err
	}
	if len(batches) == 0 {
		out.State = models.StateNotEvaluated
		out.Reasons = []string{"silo is empty"}
		return out, nil
	}

	acc, err := r.acc.Accumulate(ctx, viewer, models.Scope{Kind: models.ScopeSilo, Silo: label})
	if err != nil {
		return out, fmt.Errorf("accumulate %s: %w", label, err)
	}
	out.AccumulatedLoss = acc.Metrics.EconomicLoss
	out.AccumulatedUricAcid = acc.Metrics.UricAcid

	event, err := r.events.LatestEvent(ctx, label, r.policy.ServiceType)
	if err != nil {
		return out, fmt.Errorf("latest gasification for %s: %w", label, err)
	}
	if event != nil {
		days := daysBetween(event.Date, r.now())
		out.DaysSinceLastGasification = &days
	}

	out.State, out.Reasons = r.policy.Evaluate(out.AccumulatedLoss, out.AccumulatedUricAcid, out.DaysSinceLastGasification)
	out.Recommend = out.State == models.StateRecommend

	r.logger.Debug("fumigation evaluated",
		zap.String("silo", label),
		zap.String("state", string(out.State)),
		zap.Float64("loss", out.AccumulatedLoss),
		zap.Float64("uric_acid", out.AccumulatedUricAcid))
	return out, nil
}

func daysBetween(from, to time.Time) int {
	return int(math.Floor(to.Sub(from).Hours() / 24))
}
