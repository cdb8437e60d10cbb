package reporting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/grainloss/internal/domain/models"
	"github.com/mamadbah2/grainloss/internal/service/risk"
)

const dateLayout = "2006-01-02"

// system jobs see every client's rows.
var systemViewer = models.ViewerContext{Role: models.RoleAdmin}

// Analytics is the subset of the analytics service the summaries need.
type Analytics interface {
	GetAccumulated(ctx context.Context, viewer models.ViewerContext, scope models.Scope) (models.Accumulated, error)
	SiloOverview(ctx context.Context, viewer models.ViewerContext) ([]models.SiloOverview, error)
}

// Service builds the text summaries sent over WhatsApp.
type Service struct {
	analytics Analytics
	logger    *zap.Logger
}

// NewService wires a new reporting service instance.
func NewService(analytics Analytics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{analytics: analytics, logger: logger}
}

// WeeklyDigest summarizes the loss recorded in the seven days ending at now
// and the accumulated state of every occupied silo.
func (s *Service) WeeklyDigest(ctx context.Context, now time.Time) (string, error) {
	end := now
	start := end.AddDate(0, 0, -7)

	week, err := s.analytics.GetAccumulated(ctx, systemViewer, models.Scope{Kind: models.ScopePeriod, From: start, To: end})
	if err != nil {
		return "", fmt.Errorf("accumulate week: %w", err)
	}
	overview, err := s.analytics.SiloOverview(ctx, systemViewer)
	if err != nil {
		return "", fmt.Errorf("load silo overview: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Pest loss digest (%s to %s)\n", start.Format(dateLayout), end.Format(dateLayout))
	if week.Rows == 0 {
		b.WriteString("No sampling reports this week.\n")
	} else {
		fmt.Fprintf(&b, "Week: %s loss (%s), uric acid %.2f, %.1f kg pest damage.\n",
			money(week.Metrics.EconomicLoss),
			risk.ClassifyLoss(week.Metrics.EconomicLoss),
			week.Metrics.UricAcid,
			week.Metrics.TotalPestDamageKg)
	}

	occupied := 0
	for _, silo := range overview {
		if silo.Empty {
			continue
		}
		occupied++
		fmt.Fprintf(&b, "%s: %s loss (%s), uric acid %.2f (%s)",
			silo.Silo,
			money(silo.Accumulated.Metrics.EconomicLoss),
			silo.LossLevel,
			silo.Accumulated.Metrics.UricAcid,
			silo.UricAcidLevel)
		if silo.Recommendation.Recommend {
			b.WriteString(", fumigation recommended")
		}
		b.WriteString("\n")
	}
	if occupied == 0 {
		b.WriteString("All silos are empty.\n")
	}

	s.logger.Debug("weekly digest built", zap.Int("week_rows", week.Rows), zap.Int("occupied_silos", occupied))
	return strings.TrimRight(b.String(), "\n"), nil
}

// FumigationAlert lists the silos that currently need gasification. The
// boolean is false when no silo does and nothing should be sent.
func (s *Service) FumigationAlert(ctx context.Context) (string, bool, error) {
	overview, err := s.analytics.SiloOverview(ctx, systemViewer)
	if err != nil {
		return "", false, fmt.Errorf("load silo overview: %w", err)
	}

	var lines []string
	for _, silo := range overview {
		rec := silo.Recommendation
		if !rec.Recommend {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", silo.Silo, strings.Join(rec.Reasons, "; ")))
	}
	if len(lines) == 0 {
		return "", false, nil
	}

	return "Fumigation recommended\n" + strings.Join(lines, "\n"), true, nil
}

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
