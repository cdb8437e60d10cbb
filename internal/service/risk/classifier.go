// Package risk maps numeric quality and loss figures onto ordinal alert levels.
// Every band is closed on its upper bound.
package risk

import (
	"errors"

	"github.com/mamadbah2/grainloss/internal/domain/models"
)

// ErrUnknownKind is returned by Classify for a scale it does not know.
var ErrUnknownKind = errors.New("unknown risk kind")

const (
	uricTolerableMax = 5.0
	uricModerateMax  = 10.0

	lossLowMax      = 5000.0
	lossModerateMax = 25000.0
	lossHighMax     = 50000.0
)

// ClassifyUricAcid grades a uric acid figure in mg/100g.
func ClassifyUricAcid(mgPer100g float64) models.RiskLevel {
	switch {
	case mgPer100g <= uricTolerableMax:
		return models.LevelTolerable
	case mgPer100g <= uricModerateMax:
		return models.LevelModeratelyDangerous
	default:
		return models.LevelCritical
	}
}

// ClassifyLoss grades an economic loss in currency units.
func ClassifyLoss(amount float64) models.RiskLevel {
	switch {
	case amount <= lossLowMax:
		return models.LevelLow
	case amount <= lossModerateMax:
		return models.LevelModerate
	case amount <= lossHighMax:
		return models.LevelHigh
	default:
		return models.LevelCritical
	}
}

// Classify dispatches on kind.
func Classify(value float64, kind models.RiskKind) (models.RiskLevel, error) {
	switch kind {
	case models.RiskUricAcid:
		return ClassifyUricAcid(value), nil
	case models.RiskEconomicLoss:
		return ClassifyLoss(value), nil
	default:
		return "", ErrUnknownKind
	}
}
