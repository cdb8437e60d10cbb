package models

import "time"

// SampleLocation tells whether a sample was drawn above or below the grain mass.
type SampleLocation string

const (
	LocationAbove SampleLocation = "Arriba"
	LocationBelow SampleLocation = "Abajo"
)

// PestCount holds live and dead insects of one species.
type PestCount struct {
	Live int `bson:"live" json:"live"`
	Dead int `bson:"dead" json:"dead"`
}

// PestCounts groups the five tracked species.
type PestCounts struct {
	Sitophilus   PestCount `bson:"sitophilus" json:"sitophilus"`
	Rhyzopertha  PestCount `bson:"rhyzopertha" json:"rhyzopertha"`
	Prostephanus PestCount `bson:"prostephanus" json:"prostephanus"`
	Tribolium    PestCount `bson:"tribolium" json:"tribolium"`
	Cryptolestes PestCount `bson:"cryptolestes" json:"cryptolestes"`
}

// LiveTotal sums live insects across all species.
func (p PestCounts) LiveTotal() int {
	return p.Sitophilus.Live + p.Rhyzopertha.Live + p.Prostephanus.Live + p.Tribolium.Live + p.Cryptolestes.Live
}

// Sample is one pest-count reading taken inside a silo.
type Sample struct {
	Silo         string         `json:"silo"`
	Location     SampleLocation `json:"location"`
	ShipName     string         `json:"shipName"`
	GrainType    string         `json:"grainType"`
	StorageDate  *time.Time     `json:"storageDate,omitempty"`
	DaysStored   int            `json:"daysStored"`
	Pests        PestCounts     `json:"pests"`
	Mites        int            `json:"mites"` // piojillo
	ObservedTons float64        `json:"observedTons"`
}

// SamplingReport is one inspection event as delivered by the ingestion collaborator.
type SamplingReport struct {
	ID           string    `json:"id"`
	ReportNumber string    `json:"reportNumber"`
	ClientID     string    `json:"clientId"`
	ServiceDate  time.Time `json:"serviceDate"`
	Samples      []Sample  `json:"samples"`
}

// SiloAggregate is the per-silo reduction of one report's samples.
type SiloAggregate struct {
	Silo           string  `json:"silo"`
	AvgLiveWeevils float64 `json:"avgLiveWeevils"`
	AvgMites       float64 `json:"avgMites"`
	LiveTotal      int     `json:"liveTotal"`
	MiteTotal      int     `json:"miteTotal"`
	MaxTons        float64 `json:"maxTons"`
	GrainType      string  `json:"grainType"`
	SampleCount    int     `json:"sampleCount"`
}

// DerivedMetrics are the five damage/loss figures computed once per silo and report.
type DerivedMetrics struct {
	UricAcid            float64 `bson:"uric_acid" json:"uricAcid" gorm:"column:uric_acid"`
	AdultWeevilDamageKg float64 `bson:"adult_weevil_damage_kg" json:"adultWeevilDamageKg" gorm:"column:adult_weevil_damage_kg"`
	TotalWeevilDamageKg float64 `bson:"total_weevil_damage_kg" json:"totalWeevilDamageKg" gorm:"column:total_weevil_damage_kg"`
	MiteDamageKg        float64 `bson:"mite_damage_kg" json:"miteDamageKg" gorm:"column:mite_damage_kg"`
	TotalPestDamageKg   float64 `bson:"total_pest_damage_kg" json:"totalPestDamageKg" gorm:"column:total_pest_damage_kg"`
	EconomicLoss        float64 `bson:"economic_loss" json:"economicLoss" gorm:"column:economic_loss"`
}

// Add returns the element-wise sum of two metric sets.
func (m DerivedMetrics) Add(o DerivedMetrics) DerivedMetrics {
	return DerivedMetrics{
		UricAcid:            m.UricAcid + o.UricAcid,
		AdultWeevilDamageKg: m.AdultWeevilDamageKg + o.AdultWeevilDamageKg,
		TotalWeevilDamageKg: m.TotalWeevilDamageKg + o.TotalWeevilDamageKg,
		MiteDamageKg:        m.MiteDamageKg + o.MiteDamageKg,
		TotalPestDamageKg:   m.TotalPestDamageKg + o.TotalPestDamageKg,
		EconomicLoss:        m.EconomicLoss + o.EconomicLoss,
	}
}

// SiloResult is the materialized per-silo outcome of one report.
type SiloResult struct {
	SiloAggregate
	CostPerKg float64        `json:"costPerKg"`
	Metrics   DerivedMetrics `json:"metrics"`
	BatchIDs  []string       `json:"batchIds,omitempty"`
	Warnings  []Warning      `json:"warnings,omitempty"`
}

// ReportDerivedValues is the per-silo view of one report handed to the presentation layer.
type ReportDerivedValues struct {
	ReportID    string       `json:"reportId"`
	ServiceDate time.Time    `json:"serviceDate"`
	Silos       []SiloResult `json:"silos"`
	Warnings    []Warning    `json:"warnings,omitempty"`
}
