package services

import (
	"math"

	"recycle-pickup-system/models"
)

// Category multipliers for reward points. Anything not listed pays 1.0.
var categoryMultipliers = map[models.WasteCategory]float64{
	models.WasteElectronics: 1.5,
	models.WasteMetal:       1.3,
	models.WastePlastic:     1.2,
	models.WastePaper:       1.1,
}

const basePointsPerKg = 10

// CalculateReward maps (weight, category) to earned points:
// round(weightKg * 10 * multiplier). Pure, no persistence.
func CalculateReward(weightKg float64, category models.WasteCategory) int64 {
	multiplier, ok := categoryMultipliers[category]
	if !ok {
		multiplier = 1.0
	}
	return int64(math.Round(weightKg * basePointsPerKg * multiplier))
}
