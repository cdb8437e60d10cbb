package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/grainloss/internal/domain/models"
)

type analyticsStub struct {
	week     models.Accumulated
	overview []models.SiloOverview
	scopes   []models.Scope
}

func (a *analyticsStub) GetAccumulated(_ context.Context, _ models.ViewerContext, scope models.Scope) (models.Accumulated, error) {
	a.scopes = append(a.scopes, scope)
	return a.week, nil
}

func (a *analyticsStub) SiloOverview(context.Context, models.ViewerContext) ([]models.SiloOverview, error) {
	return a.overview, nil
}

func overviewFixture() []models.SiloOverview {
	busy := models.SiloOverview{
		Silo:          "AP-01",
		UricAcidLevel: models.LevelModeratelyDangerous,
		LossLevel:     models.LevelModerate,
		Recommendation: models.FumigationRecommendation{
			Silo:      "AP-01",
			State:     models.StateRecommend,
			Recommend: true,
			Reasons:   []string{"never gasified and accumulated loss 6000.00 exceeds 5000.00"},
		},
	}
	busy.Accumulated.Metrics.EconomicLoss = 6000
	busy.Accumulated.Metrics.UricAcid = 7.5

	return []models.SiloOverview{
		busy,
		{Silo: "AP-02", Empty: true},
		{Silo: "AP-03", Recommendation: models.FumigationRecommendation{State: models.StateNoActionNeeded}},
	}
}

func TestWeeklyDigest(t *testing.T) {
	stub := &analyticsStub{overview: overviewFixture()}
	stub.week.Rows = 3
	stub.week.Metrics.EconomicLoss = 1200
	stub.week.Metrics.UricAcid = 1.5
	svc := NewService(stub, nil)

	now := time.Date(2025, time.March, 14, 20, 0, 0, 0, time.UTC)
	digest, err := svc.WeeklyDigest(context.Background(), now)

	require.NoError(t, err)
	require.Len(t, stub.scopes, 1)
	assert.Equal(t, models.ScopePeriod, stub.scopes[0].Kind)
	assert.Equal(t, now.AddDate(0, 0, -7), stub.scopes[0].From)

	assert.Contains(t, digest, "2025-03-07 to 2025-03-14")
	assert.Contains(t, digest, "Week: $1200.00 loss (low)")
	assert.Contains(t, digest, "AP-01: $6000.00 loss (moderate), uric acid 7.50 (moderately_dangerous), fumigation recommended")
	assert.NotContains(t, digest, "AP-02")
}

func TestWeeklyDigestWithoutReports(t *testing.T) {
	svc := NewService(&analyticsStub{overview: []models.SiloOverview{{Silo: "AP-01", Empty: true}}}, nil)

	digest, err := svc.WeeklyDigest(context.Background(), time.Now())

	require.NoError(t, err)
	assert.Contains(t, digest, "No sampling reports this week.")
	assert.Contains(t, digest, "All silos are empty.")
}

func TestFumigationAlert(t *testing.T) {
	svc := NewService(&analyticsStub{overview: overviewFixture()}, nil)

	msg, send, err := svc.FumigationAlert(context.Background())

	require.NoError(t, err)
	assert.True(t, send)
	assert.Equal(t, "Fumigation recommended\nAP-01: never gasified and accumulated loss 6000.00 exceeds 5000.00", msg)

	quiet := NewService(&analyticsStub{overview: overviewFixture()[1:]}, nil)
	_, send, err = quiet.FumigationAlert(context.Background())
	require.NoError(t, err)
	assert.False(t, send)
}
