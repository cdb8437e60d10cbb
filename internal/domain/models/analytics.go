package models

import (
	"errors"
	"time"
)

// ErrViewerRoleRequired is returned when a query is made without a viewer role.
var ErrViewerRoleRequired = errors.New("viewer role required")

// ViewerRole gates which ledger rows a caller may see.
type ViewerRole string

const (
	RoleAdmin  ViewerRole = "admin"
	RoleStaff  ViewerRole = "staff"
	RoleClient ViewerRole = "client"
)

// ViewerContext is passed explicitly into every query.
type ViewerContext struct {
	Role     ViewerRole `json:"role"`
	ClientID string     `json:"clientId"`
}

// Validate checks the viewer can be used for filtering.
func (v ViewerContext) Validate() error {
	switch v.Role {
	case RoleAdmin, RoleStaff:
		return nil
	case RoleClient:
		if v.ClientID == "" {
			return errors.New("client viewer requires a client id")
		}
		return nil
	case "":
		return ErrViewerRoleRequired
	default:
		return errors.New("unknown viewer role " + string(v.Role))
	}
}

// ClientFilter returns the client id rows must match, or "" when unrestricted.
func (v ViewerContext) ClientFilter() string {
	if v.Role == RoleClient {
		return v.ClientID
	}
	return ""
}

// ScopeKind enumerates accumulation scopes.
type ScopeKind string

const (
	ScopeBatch     ScopeKind = "batch"
	ScopeSilo      ScopeKind = "silo"
	ScopePeriod    ScopeKind = "period"
	ScopeGrainType ScopeKind = "grain_type"
	ScopeGlobal    ScopeKind = "global"
)

// Scope selects which ledger rows are accumulated.
type Scope struct {
	Kind      ScopeKind `json:"kind"`
	Silo      string    `json:"silo,omitempty"`
	BatchID   string    `json:"batchId,omitempty"`
	GrainType string    `json:"grainType,omitempty"`
	From      time.Time `json:"from,omitempty"`
	To        time.Time `json:"to,omitempty"`
}

// YearScope builds a calendar-year period scope.
func YearScope(year int, loc *time.Location) Scope {
	if loc == nil {
		loc = time.UTC
	}
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	return Scope{Kind: ScopePeriod, From: from, To: from.AddDate(1, 0, 0)}
}

// Accumulated is the summed tuple returned for every scope.
type Accumulated struct {
	Scope          Scope          `json:"scope"`
	Metrics        DerivedMetrics `json:"metrics"`
	LiveWeevilsSum float64        `json:"liveWeevilsSum"`
	MiteSum        float64        `json:"miteSum"`
	Rows           int            `json:"rows"`
	Warnings       []Warning      `json:"warnings,omitempty"`
}

// RiskKind selects the ordinal scale to classify against.
type RiskKind string

const (
	RiskUricAcid     RiskKind = "uric_acid"
	RiskEconomicLoss RiskKind = "economic_loss"
)

// RiskLevel is an ordered alert category.
type RiskLevel string

const (
	LevelTolerable           RiskLevel = "tolerable"
	LevelModeratelyDangerous RiskLevel = "moderately_dangerous"
	LevelLow                 RiskLevel = "low"
	LevelModerate            RiskLevel = "moderate"
	LevelHigh                RiskLevel = "high"
	LevelCritical            RiskLevel = "critical"
)

// SiloOverview combines accumulated figures, risk levels and the recommendation for one silo.
type SiloOverview struct {
	Silo           string                   `json:"silo"`
	Empty          bool                     `json:"empty"`
	Accumulated    Accumulated              `json:"accumulated"`
	UricAcidLevel  RiskLevel                `json:"uricAcidLevel"`
	LossLevel      RiskLevel                `json:"lossLevel"`
	Recommendation FumigationRecommendation `json:"recommendation"`
}
