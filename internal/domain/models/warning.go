package models

// WarningCode classifies non-fatal data-quality issues.
type WarningCode string

const (
	WarnMissingGrainType WarningCode = "missing_grain_type"
	WarnMixedGrainType   WarningCode = "mixed_grain_type"
	WarnUnresolvedCost   WarningCode = "unresolved_cost"
	WarnMissingEntryDate WarningCode = "missing_entry_date"
	WarnUnresolvedBatch  WarningCode = "unresolved_batch"
	WarnInvalidSample    WarningCode = "invalid_sample"
)

// Warning is attached to results for the UI; it never aborts computation.
type Warning struct {
	Code    WarningCode `json:"code"`
	Silo    string      `json:"silo,omitempty"`
	BatchID string      `json:"batchId,omitempty"`
	Message string      `json:"message"`
}
