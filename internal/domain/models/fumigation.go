package models

import "time"

// FumigationEvent is a pest-treatment service applied to a silo.
type FumigationEvent struct {
	ID          uint      `bson:"-" json:"id" gorm:"primaryKey"`
	Silo        string    `bson:"silo" json:"silo" gorm:"index;size:16"`
	ServiceType string    `bson:"service_type" json:"serviceType" gorm:"size:64"`
	GrainType   string    `bson:"grain_type" json:"grainType"`
	Date        time.Time `bson:"date" json:"date" gorm:"index"`
}

// RecommendationState is the outcome of the fumigation evaluation.
type RecommendationState string

const (
	StateRecommend      RecommendationState = "recommend"
	StateNoActionNeeded RecommendationState = "no_action_needed"
	StateNotEvaluated   RecommendationState = "not_evaluated"
)

// FumigationRecommendation is returned per silo.
type FumigationRecommendation struct {
	Silo                      string              `json:"silo"`
	State                     RecommendationState `json:"state"`
	Recommend                 bool                `json:"recommend"`
	Reasons                   []string            `json:"reasons"`
	DaysSinceLastGasification *int                `json:"daysSinceLastGasification,omitempty"`
	AccumulatedLoss           float64             `json:"accumulatedLoss"`
	AccumulatedUricAcid       float64             `json:"accumulatedUricAcid"`
}
