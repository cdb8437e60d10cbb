package damage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mamadbah2/grainloss/internal/domain/models"
)

func TestCalculateKnownValues(t *testing.T) {
	m := Calculate(models.SiloAggregate{AvgLiveWeevils: 10, AvgMites: 20, MaxTons: 500}, 2)

	assert.InDelta(t, 2.45, m.UricAcid, 1e-9)
	assert.InDelta(t, 35.0, m.AdultWeevilDamageKg, 1e-9)
	assert.InDelta(t, 210.0, m.TotalWeevilDamageKg, 1e-9)
	assert.InDelta(t, 23.1, m.MiteDamageKg, 1e-9)
	assert.InDelta(t, 233.1, m.TotalPestDamageKg, 1e-9)
	assert.InDelta(t, 466.2, m.EconomicLoss, 1e-9)
}

func TestCalculateZeroInsectsYieldsZero(t *testing.T) {
	for _, tons := range []float64{0, 1, 250, 12000} {
		m := Calculate(models.SiloAggregate{MaxTons: tons}, 3.5)
		assert.Equal(t, models.DerivedMetrics{}, m, "tons=%v", tons)
	}
}

func TestCalculateZeroTonsYieldsZero(t *testing.T) {
	m := Calculate(models.SiloAggregate{AvgLiveWeevils: 40, AvgMites: 90}, 3.5)
	assert.Equal(t, models.DerivedMetrics{}, m)
}

func TestCalculateTotalWeevilIsSixTimesAdult(t *testing.T) {
	for _, w := range []float64{0.5, 1, 3.333, 17, 250} {
		m := Calculate(models.SiloAggregate{AvgLiveWeevils: w, MaxTons: 731.4}, 1)
		assert.Equal(t, m.AdultWeevilDamageKg*6, m.TotalWeevilDamageKg)
	}
}

func TestCalculateMonotonic(t *testing.T) {
	low := Calculate(models.SiloAggregate{AvgLiveWeevils: 2, AvgMites: 2, MaxTons: 100}, 1)
	moreInsects := Calculate(models.SiloAggregate{AvgLiveWeevils: 4, AvgMites: 3, MaxTons: 100}, 1)
	moreTons := Calculate(models.SiloAggregate{AvgLiveWeevils: 2, AvgMites: 2, MaxTons: 300}, 1)

	assert.Greater(t, moreInsects.TotalPestDamageKg, low.TotalPestDamageKg)
	assert.Greater(t, moreTons.TotalPestDamageKg, low.TotalPestDamageKg)
	assert.Greater(t, moreTons.UricAcid, low.UricAcid)
}

func TestCalculateUnresolvedCostZeroesLossOnly(t *testing.T) {
	m := Calculate(models.SiloAggregate{AvgLiveWeevils: 5, MaxTons: 100}, 0)
	assert.Zero(t, m.EconomicLoss)
	assert.Greater(t, m.TotalPestDamageKg, 0.0)
}
