// Package nutrition derives recommended daily targets from a user profile.
// Missing profile data never raises an error; it degrades to zero targets so
// callers can always render.
package nutrition

import (
	"math"

	"photocal/internal/models"
)

const (
	// ActivityFactor is the fixed "lightly active" multiplier.
	ActivityFactor = 1.375
	// MinCalories is the floor applied to goal-adjusted calories.
	MinCalories = 1200
)

// Split is a macro distribution in whole percents of daily calories.
type Split struct {
	Protein int
	Fat     int
	Carbs   int
}

type goalPlan struct {
	adjustment float64
	split      Split
}

var plans = map[models.Goal]goalPlan{
	models.GoalWeightLoss:  {adjustment: -500, split: Split{Protein: 30, Fat: 30, Carbs: 40}},
	models.GoalMaintenance: {adjustment: 0, split: Split{Protein: 25, Fat: 30, Carbs: 45}},
	models.GoalMuscleGain:  {adjustment: 300, split: Split{Protein: 30, Fat: 25, Carbs: 45}},
}

// SplitFor returns the macro distribution of a goal; unknown goals get the
// maintenance split.
func SplitFor(goal models.Goal) Split {
	return planFor(goal).split
}

func planFor(goal models.Goal) goalPlan {
	if p, ok := plans[goal]; ok {
		return p
	}
	return plans[models.GoalMaintenance]
}

// Targets are the recommended daily intake.
type Targets struct {
	BMR      float64 `json:"bmr"`
	TDEE     float64 `json:"tdee"`
	Calories int     `json:"calories"`
	Protein  int     `json:"protein_g"`
	Fat      int     `json:"fat_g"`
	Carbs    int     `json:"carbs_g"`
}

// BMR computes the Mifflin-St Jeor basal metabolic rate. It returns 0 when
// any input is absent.
func BMR(gender models.Gender, weightKg, heightCm, age float64) float64 {
	if weightKg <= 0 || heightCm <= 0 || age <= 0 {
		return 0
	}
	base := 10*weightKg + 6.25*heightCm - 5*age
	switch gender {
	case models.GenderMale:
		return base + 5
	case models.GenderFemale:
		return base - 161
	default:
		return 0
	}
}

// TDEE scales a BMR by the activity factor.
func TDEE(bmr float64) float64 {
	return bmr * ActivityFactor
}

// Calculate returns targets for the profile. A nil or incomplete profile
// yields zero targets.
func Calculate(p *models.UserProfile) Targets {
	if p == nil {
		return Targets{}
	}
	return CalculateFor(p.Gender, p.Weight, p.Height, p.Age, p.Goal)
}

// CalculateFor is Calculate over explicit attributes.
func CalculateFor(gender models.Gender, weightKg, heightCm, age float64, goal models.Goal) Targets {
	bmr := BMR(gender, weightKg, heightCm, age)
	if bmr <= 0 {
		return Targets{}
	}

	tdee := TDEE(bmr)
	plan := planFor(goal)

	calories := math.Round(tdee + plan.adjustment)
	if calories < MinCalories {
		calories = MinCalories
	}

	return Targets{
		BMR:      bmr,
		TDEE:     tdee,
		Calories: int(calories),
		Protein:  grams(calories, plan.split.Protein, 4),
		Fat:      grams(calories, plan.split.Fat, 9),
		Carbs:    grams(calories, plan.split.Carbs, 4),
	}
}

func grams(calories float64, percent int, kcalPerGram float64) int {
	return int(math.Round(calories * float64(percent) / 100 / kcalPerGram))
}
