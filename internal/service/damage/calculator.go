// Package damage turns per-silo pest statistics into quality, damage and loss figures.
package damage

import "github.com/mamadbah2/grainloss/internal/domain/models"

const (
	// weekDays projects a single reading over one week of storage.
	weekDays = 7

	adultWeevilRate = 0.000001
	miteRate        = 0.00000033

	// larvaeMultiplier accounts for immature weevils that never show in a sample.
	larvaeMultiplier = 6

	uricPerAdult = 0.1
)

// Calculate maps one silo aggregate and a cost per kilogram to the five derived
// metrics. It is pure: zero tonnage or zero insect counts yield zero output.
func Calculate(agg models.SiloAggregate, costPerKg float64) models.DerivedMetrics {
	tonsKg := agg.MaxTons * 1000
	weevils := agg.AvgLiveWeevils

	uric := ((weevils*uricPerAdult + weevils*larvaeMultiplier*uricPerAdult) * weekDays / 10) * (agg.MaxTons / 1000)
	adult := weevils * tonsKg * adultWeevilRate * weekDays
	totalWeevil := adult * larvaeMultiplier
	mite := agg.AvgMites * tonsKg * miteRate * weekDays
	totalPest := totalWeevil + mite

	return models.DerivedMetrics{
		UricAcid:            uric,
		AdultWeevilDamageKg: adult,
		TotalWeevilDamageKg: totalWeevil,
		MiteDamageKg:        mite,
		TotalPestDamageKg:   totalPest,
		EconomicLoss:        totalPest * costPerKg,
	}
}
