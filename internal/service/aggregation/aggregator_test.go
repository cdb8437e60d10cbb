package aggregation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/grainloss/internal/domain/models"
)

func sample(silo string, live, mites int, tons float64, grain string) models.Sample {
	return models.Sample{
		Silo:         silo,
		GrainType:    grain,
		Pests:        models.PestCounts{Sitophilus: models.PestCount{Live: live}},
		Mites:        mites,
		ObservedTons: tons,
	}
}

func TestAggregateUsesMaxTonsNotMean(t *testing.T) {
	aggs, warnings := Aggregate([]models.Sample{
		sample("AP-01", 2, 1, 10, "Maiz"),
		sample("AP-01", 4, 3, 40, "Maiz"),
	})

	require.Len(t, aggs, 1)
	assert.Empty(t, warnings)
	assert.Equal(t, 40.0, aggs[0].MaxTons)
	assert.Equal(t, 3.0, aggs[0].AvgLiveWeevils)
	assert.Equal(t, 2.0, aggs[0].AvgMites)
	assert.Equal(t, 2, aggs[0].SampleCount)
}

func TestAggregateSumsAllSpeciesBeforeAveraging(t *testing.T) {
	s := models.Sample{
		Silo: "AP-02",
		Pests: models.PestCounts{
			Sitophilus:   models.PestCount{Live: 1, Dead: 9},
			Rhyzopertha:  models.PestCount{Live: 2},
			Prostephanus: models.PestCount{Live: 3},
			Tribolium:    models.PestCount{Live: 4},
			Cryptolestes: models.PestCount{Live: 5},
		},
		GrainType: "Trigo",
	}
	aggs, _ := Aggregate([]models.Sample{s, {Silo: "AP-02", GrainType: "Trigo"}})

	require.Len(t, aggs, 1)
	assert.Equal(t, 7.5, aggs[0].AvgLiveWeevils)
}

func TestAggregateIgnoresBlankSiloAndKeepsOrder(t *testing.T) {
	aggs, _ := Aggregate([]models.Sample{
		sample("AP-03", 1, 0, 5, "Maiz"),
		sample("  ", 100, 100, 100, "Maiz"),
		sample("ap-1", 1, 0, 5, "Soya"),
		sample("AP-03", 3, 0, 7, "Maiz"),
	})

	require.Len(t, aggs, 2)
	assert.Equal(t, "AP-03", aggs[0].Silo)
	assert.Equal(t, "AP-01", aggs[1].Silo)
	assert.Equal(t, 7.0, aggs[0].MaxTons)
}

func TestAggregateFlagsGrainTypeProblems(t *testing.T) {
	aggs, warnings := Aggregate([]models.Sample{
		sample("AP-04", 1, 0, 5, ""),
		sample("AP-04", 1, 0, 5, "Maiz Amarillo"),
		sample("AP-04", 1, 0, 5, "Sorgo"),
		sample("AP-05", 1, 0, 5, ""),
	})

	require.Len(t, aggs, 2)
	assert.Equal(t, "Maiz Amarillo", aggs[0].GrainType)
	require.Len(t, warnings, 2)
	assert.Equal(t, models.WarnMixedGrainType, warnings[0].Code)
	assert.Equal(t, "AP-04", warnings[0].Silo)
	assert.Equal(t, models.WarnMissingGrainType, warnings[1].Code)
	assert.Equal(t, "AP-05", warnings[1].Silo)
}

func TestAggregateClampsNegativeValues(t *testing.T) {
	aggs, warnings := Aggregate([]models.Sample{
		sample("AP-06", -4, 2, -1, "Maiz"),
	})

	require.Len(t, aggs, 1)
	assert.Equal(t, 0.0, aggs[0].AvgLiveWeevils)
	assert.Equal(t, 0.0, aggs[0].MaxTons)
	require.Len(t, warnings, 1)
	assert.Equal(t, models.WarnInvalidSample, warnings[0].Code)
}

func TestAggregateClampsEachSpeciesSeparately(t *testing.T) {
	s := sample("AP-07", -5, -3, 100, "Maiz")
	s.Pests.Rhyzopertha.Live = 10

	aggs, warnings := Aggregate([]models.Sample{s, sample("AP-07", 2, 4, 50, "Maiz")})

	require.Len(t, aggs, 1)
	assert.Equal(t, 12, aggs[0].LiveTotal)
	assert.Equal(t, 4, aggs[0].MiteTotal)
	assert.Equal(t, 6.0, aggs[0].AvgLiveWeevils)
	assert.Equal(t, 2.0, aggs[0].AvgMites)
	require.Len(t, warnings, 1)
	assert.Equal(t, models.WarnInvalidSample, warnings[0].Code)
	assert.Contains(t, warnings[0].Message, "sample 1")
}
