package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/grainloss/internal/domain/models"
	"github.com/mamadbah2/grainloss/internal/repository/ledger"
	"github.com/mamadbah2/grainloss/internal/service/accumulation"
	"github.com/mamadbah2/grainloss/internal/service/analytics"
	"github.com/mamadbah2/grainloss/internal/service/risk"
)

const (
	HeaderViewerRole = "X-Viewer-Role"
	HeaderClientID   = "X-Client-ID"

	dateLayout = "2006-01-02"
)

// AnalyticsService describes the operations the HTTP layer can perform.
type AnalyticsService interface {
	ComputeReportDerivedValues(ctx context.Context, report models.SamplingReport) models.ReportDerivedValues
	SaveReport(ctx context.Context, viewer models.ViewerContext, report models.SamplingReport) (models.ReportDerivedValues, error)
	DeleteReport(ctx context.Context, viewer models.ViewerContext, reportID string) error
	ReportValues(ctx context.Context, viewer models.ViewerContext, reportID string) ([]models.SiloResult, error)
	GetAccumulated(ctx context.Context, viewer models.ViewerContext, scope models.Scope) (models.Accumulated, error)
	ClassifyRisk(value float64, kind models.RiskKind) (models.RiskLevel, error)
	GetFumigationRecommendation(ctx context.Context, viewer models.ViewerContext, silo string) (models.FumigationRecommendation, error)
	SiloOverview(ctx context.Context, viewer models.ViewerContext) ([]models.SiloOverview, error)
}

// AnalyticsHandler adapts the analytics service to HTTP.
type AnalyticsHandler struct {
	svc    AnalyticsService
	loc    *time.Location
	logger *zap.Logger
}

// NewAnalyticsHandler constructs the HTTP handler adapter. Dates in query
// parameters are interpreted in loc.
func NewAnalyticsHandler(svc AnalyticsService, loc *time.Location, logger *zap.Logger) *AnalyticsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AnalyticsHandler{svc: svc, loc: loc, logger: logger}
}

// ComputeDerived returns per-silo values for a report without saving it.
func (h *AnalyticsHandler) ComputeDerived(c *gin.Context) {
	var report models.SamplingReport
	if err := c.ShouldBindJSON(&report); err != nil {
		h.logger.Warn("invalid report payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report payload"})
		return
	}

	c.JSON(http.StatusOK, h.svc.ComputeReportDerivedValues(c.Request.Context(), report))
}

// SaveReport computes a report and replaces its ledger rows.
func (h *AnalyticsHandler) SaveReport(c *gin.Context) {
	viewer, ok := h.viewer(c)
	if !ok {
		return
	}

	var report models.SamplingReport
	if err := c.ShouldBindJSON(&report); err != nil {
		h.logger.Warn("invalid report payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report payload"})
		return
	}

	id := c.Param("reportId")
	if report.ID != "" && report.ID != id {
		c.JSON(http.StatusBadRequest, gin.H{"error": "report id in body does not match path"})
		return
	}
	report.ID = id

	derived, err := h.svc.SaveReport(c.Request.Context(), viewer, report)
	if err != nil {
		h.fail(c, "save report", err)
		return
	}
	c.JSON(http.StatusOK, derived)
}

// GetReport returns a saved report's per-silo values read from the ledger.
func (h *AnalyticsHandler) GetReport(c *gin.Context) {
	viewer, ok := h.viewer(c)
	if !ok {
		return
	}

	values, err := h.svc.ReportValues(c.Request.Context(), viewer, c.Param("reportId"))
	if err != nil {
		h.fail(c, "load report", err)
		return
	}
	if len(values) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reportId": c.Param("reportId"), "silos": values})
}

// DeleteReport removes a report's ledger rows.
func (h *AnalyticsHandler) DeleteReport(c *gin.Context) {
	viewer, ok := h.viewer(c)
	if !ok {
		return
	}

	if err := h.svc.DeleteReport(c.Request.Context(), viewer, c.Param("reportId")); err != nil {
		h.fail(c, "delete report", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Accumulated sums ledger rows for the scope described by the query string.
func (h *AnalyticsHandler) Accumulated(c *gin.Context) {
	viewer, ok := h.viewer(c)
	if !ok {
		return
	}

	scope, err := h.scopeFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.svc.GetAccumulated(c.Request.Context(), viewer, scope)
	if err != nil {
		h.fail(c, "accumulate", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Risk classifies a single value.
func (h *AnalyticsHandler) Risk(c *gin.Context) {
	value, err := strconv.ParseFloat(c.Query("value"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value must be a number"})
		return
	}

	kind := models.RiskKind(c.Query("kind"))
	level, err := h.svc.ClassifyRisk(value, kind)
	if err != nil {
		h.fail(c, "classify risk", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "value": value, "level": level})
}

// Fumigation returns the recommendation for one silo.
func (h *AnalyticsHandler) Fumigation(c *gin.Context) {
	viewer, ok := h.viewer(c)
	if !ok {
		return
	}

	rec, err := h.svc.GetFumigationRecommendation(c.Request.Context(), viewer, c.Param("silo"))
	if err != nil {
		h.fail(c, "fumigation recommendation", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Overview returns every silo's accumulated figures and recommendation.
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	viewer, ok := h.viewer(c)
	if !ok {
		return
	}

	overview, err := h.svc.SiloOverview(c.Request.Context(), viewer)
	if err != nil {
		h.fail(c, "silo overview", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"silos": overview})
}

func (h *AnalyticsHandler) viewer(c *gin.Context) (models.ViewerContext, bool) {
	viewer := models.ViewerContext{
		Role:     models.ViewerRole(strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderViewerRole)))),
		ClientID: strings.TrimSpace(c.GetHeader(HeaderClientID)),
	}
	if err := viewer.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return viewer, false
	}
	return viewer, true
}

func (h *AnalyticsHandler) scopeFromQuery(c *gin.Context) (models.Scope, error) {
	if year := c.Query("year"); year != "" {
		y, err := strconv.Atoi(year)
		if err != nil {
			return models.Scope{}, errors.New("year must be an integer")
		}
		return models.YearScope(y, h.loc), nil
	}

	scope := models.Scope{
		Kind:      models.ScopeKind(c.DefaultQuery("scope", string(models.ScopeGlobal))),
		Silo:      c.Query("silo"),
		BatchID:   c.Query("batch"),
		GrainType: c.Query("grainType"),
	}

	var err error
	if scope.From, err = h.parseDate(c.Query("from")); err != nil {
		return models.Scope{}, errors.New("from must be YYYY-MM-DD")
	}
	if scope.To, err = h.parseDate(c.Query("to")); err != nil {
		return models.Scope{}, errors.New("to must be YYYY-MM-DD")
	}
	if !scope.To.IsZero() {
		// to is inclusive for callers.
		scope.To = scope.To.AddDate(0, 0, 1)
	}
	return scope, nil
}

func (h *AnalyticsHandler) parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(dateLayout, value, h.loc)
}

func (h *AnalyticsHandler) fail(c *gin.Context, op string, err error) {
	var writeErr *ledger.WriteError
	switch {
	case errors.As(err, &writeErr):
		h.logger.Error(op+" failed", zap.String("report_id", writeErr.ReportID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ledger write failed; retry the save"})
	case errors.Is(err, analytics.ErrForbidden):
		h.logger.Warn(op+" forbidden", zap.Error(err))
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, accumulation.ErrBatchNotResident):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrViewerRoleRequired),
		errors.Is(err, models.ErrInvalidSiloLabel),
		errors.Is(err, ledger.ErrReportIDRequired),
		errors.Is(err, analytics.ErrServiceDateRequired),
		errors.Is(err, accumulation.ErrUnknownScope),
		errors.Is(err, accumulation.ErrSiloRequired),
		errors.Is(err, accumulation.ErrPeriodRequired),
		errors.Is(err, accumulation.ErrGrainTypeRequired),
		errors.Is(err, risk.ErrUnknownKind):
		h.logger.Warn(op+" rejected", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
