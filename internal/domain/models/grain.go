package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidSiloLabel indicates a silo label could not be parsed into a number.
var ErrInvalidSiloLabel = errors.New("invalid silo label")

const siloLabelPrefix = "AP-"

// QuantityUnit enumerates how a batch quantity is expressed.
type QuantityUnit string

const (
	UnitKilograms  QuantityUnit = "kg"
	UnitMetricTons QuantityUnit = "t"
)

// GrainBatch is one delivered lot of grain owned by the inventory subsystem.
type GrainBatch struct {
	ID           string          `bson:"_id" json:"id" gorm:"primaryKey;size:64"`
	Origin       string          `bson:"origin" json:"origin"` // ship name
	GrainType    string          `bson:"grain_type" json:"grainType"`
	GrainSubtype string          `bson:"grain_subtype" json:"grainSubtype"`
	Quantity     float64         `bson:"quantity" json:"quantity"`
	Unit         QuantityUnit    `bson:"unit" json:"unit" gorm:"size:8"`
	EntryDate    *time.Time      `bson:"entry_date,omitempty" json:"entryDate,omitempty"`
	SiloNumber   int             `bson:"silo_number" json:"siloNumber" gorm:"index"`
	Movements    []BatchMovement `bson:"movements,omitempty" json:"movements,omitempty" gorm:"foreignKey:BatchID"`
	RetiredAt    *time.Time      `bson:"retired_at,omitempty" json:"retiredAt,omitempty"`
}

// QuantityKg normalizes the batch quantity to kilograms.
func (b GrainBatch) QuantityKg() float64 {
	if b.Unit == UnitMetricTons {
		return b.Quantity * 1000
	}
	return b.Quantity
}

// BatchMovement records a transfer of grain between silos.
type BatchMovement struct {
	ID       uint      `bson:"-" json:"-" gorm:"primaryKey"`
	BatchID  string    `bson:"-" json:"-" gorm:"index;size:64"`
	Date     time.Time `bson:"date" json:"date"`
	FromSilo int       `bson:"from_silo" json:"fromSilo"`
	ToSilo   int       `bson:"to_silo" json:"toSilo"`
	Quantity float64   `bson:"quantity" json:"quantity"`
	Notes    string    `bson:"notes,omitempty" json:"notes,omitempty"`
}

// ResidentBatch is the residency view of a batch returned by the inventory lookup.
type ResidentBatch struct {
	BatchID      string     `json:"batchId"`
	EntryDate    *time.Time `json:"entryDate,omitempty"`
	GrainType    string     `json:"grainType"`
	GrainSubtype string     `json:"grainSubtype"`
	SiloNumber   int        `json:"siloNumber"` // current silo
	RetiredAt    *time.Time `json:"retiredAt,omitempty"`
}

// Silo is a physical grain container.
type Silo struct {
	Number   int             `json:"number"`
	Capacity float64         `json:"capacity"`
	Batches  []ResidentBatch `json:"batches"`
}

// Label renders the silo number in its AP-NN form.
func (s Silo) Label() string { return FormatSiloLabel(s.Number) }

// Empty reports whether no batch currently resides in the silo.
func (s Silo) Empty() bool { return len(s.Batches) == 0 }

// GrainVariety is a catalog entry carrying the cost used for loss valuation.
type GrainVariety struct {
	ID        uint    `bson:"-" json:"id" gorm:"primaryKey"`
	GrainType string  `bson:"grain_type" json:"grainType" gorm:"index"`
	Variety   string  `bson:"variety" json:"variety"`
	Active    bool    `bson:"active" json:"active"`
	CostPerKg float64 `bson:"cost_per_kg" json:"costPerKg"`
}

// FormatSiloLabel renders a silo number as AP-NN.
func FormatSiloLabel(number int) string {
	return fmt.Sprintf("%s%02d", siloLabelPrefix, number)
}

// ParseSiloLabel accepts "AP-07", "ap-7" or "7" and returns the silo number.
func ParseSiloLabel(label string) (int, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(label))
	trimmed = strings.TrimPrefix(trimmed, siloLabelPrefix)
	trimmed = strings.TrimSpace(trimmed)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSiloLabel, label)
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSiloLabel, label)
	}
	return n, nil
}

// NormalizeSiloLabel rewrites parseable labels to AP-NN and leaves others trimmed.
func NormalizeSiloLabel(label string) string {
	if n, err := ParseSiloLabel(label); err == nil {
		return FormatSiloLabel(n)
	}
	return strings.TrimSpace(label)
}
