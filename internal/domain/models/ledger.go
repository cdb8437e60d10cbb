package models

import "time"

// HistoricalLossRecord is one ledger row per (report, silo, batch).
type HistoricalLossRecord struct {
	ID             string    `bson:"_id" json:"id" gorm:"primaryKey;size:64"`
	ReportID       string    `bson:"report_id" json:"reportId" gorm:"index;size:64;not null"`
	BatchID        *string   `bson:"batch_id,omitempty" json:"batchId,omitempty" gorm:"index;size:64"`
	ClientID       string    `bson:"client_id" json:"clientId" gorm:"index;size:64"`
	Silo           string    `bson:"silo" json:"silo" gorm:"index;size:16;not null"`
	ReportDate     time.Time `bson:"report_date" json:"reportDate" gorm:"index;not null"`
	GrainType      string    `bson:"grain_type" json:"grainType"`
	LiveWeevilsSum float64   `bson:"live_weevils_sum" json:"liveWeevilsSum"`
	MiteSum        float64   `bson:"mite_sum" json:"miteSum"`
	TonsObserved   float64   `bson:"tons_observed" json:"tonsObserved"`
	SampleCount    int       `bson:"sample_count" json:"sampleCount"`
	DerivedMetrics `bson:",inline" gorm:"embedded"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updatedAt"`
}

// TableName pins the ledger table name.
func (HistoricalLossRecord) TableName() string { return "historical_loss_records" }

// SiloKey identifies the (report, silo) pair a row materializes.
func (r HistoricalLossRecord) SiloKey() string { return r.ReportID + "|" + r.Silo }

// LedgerFilter narrows ledger queries. Empty slices and zero times mean "any".
type LedgerFilter struct {
	ReportID string
	BatchIDs []string
	Silos    []string
	ClientID string
	From     time.Time // inclusive
	To       time.Time // exclusive
}
