package nutrition

import (
	"math"

	"photocal/internal/models"
)

// Totals sums the nutrients of a day's entries. Entries that were never
// analyzed count as zero.
func Totals(entries []models.FoodEntry) models.Nutrients {
	var total models.Nutrients
	for _, e := range entries {
		if e.Nutrients != nil {
			total = total.Add(*e.Nutrients)
		}
	}
	return total
}

// Percent is value relative to target, capped at 100. A non-positive
// target yields 0.
func Percent(value, target float64) float64 {
	if target <= 0 || value <= 0 {
		return 0
	}
	return math.Min(100, value/target*100)
}

// Progress is a day's intake relative to the targets, per nutrient.
type Progress struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
}

// ProgressOf computes percentages of totals against targets.
func ProgressOf(totals models.Nutrients, t Targets) Progress {
	return Progress{
		Calories: Percent(totals.Calories, float64(t.Calories)),
		Protein:  Percent(totals.Protein, float64(t.Protein)),
		Fat:      Percent(totals.Fat, float64(t.Fat)),
		Carbs:    Percent(totals.Carbs, float64(t.Carbs)),
	}
}
