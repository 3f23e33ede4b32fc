package nutrition

import (
	"math"
	"testing"

	"photocal/internal/models"
)

func TestBMR(t *testing.T) {
	tests := []struct {
		name   string
		gender models.Gender
		weight float64
		height float64
		age    float64
		want   float64
	}{
		{"male", models.GenderMale, 80, 180, 30, 10*80 + 6.25*180 - 5*30 + 5},
		{"female", models.GenderFemale, 60, 165, 25, 10*60 + 6.25*165 - 5*25 - 161},
		{"missing weight", models.GenderMale, 0, 180, 30, 0},
		{"missing height", models.GenderFemale, 60, 0, 25, 0},
		{"missing age", models.GenderFemale, 60, 165, 0, 0},
		{"unknown gender", models.Gender(""), 60, 165, 25, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BMR(tt.gender, tt.weight, tt.height, tt.age); got != tt.want {
				t.Errorf("BMR() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplitsSumToWhole(t *testing.T) {
	for _, goal := range []models.Goal{models.GoalWeightLoss, models.GoalMaintenance, models.GoalMuscleGain} {
		s := SplitFor(goal)
		if sum := s.Protein + s.Fat + s.Carbs; sum != 100 {
			t.Errorf("split for %s sums to %d%%, want 100%%", goal, sum)
		}
	}
}

func TestCalculateReferenceProfile(t *testing.T) {
	p := &models.UserProfile{
		Gender: models.GenderMale,
		Age:    30,
		Height: 180,
		Weight: 80,
		Goal:   models.GoalMaintenance,
	}

	got := Calculate(p)

	// 10*80 + 6.25*180 - 5*30 + 5
	if got.BMR != 1780 {
		t.Errorf("BMR = %v, want 1780", got.BMR)
	}
	if got.TDEE != 2447.5 {
		t.Errorf("TDEE = %v, want 2447.5", got.TDEE)
	}
	want := Targets{BMR: 1780, TDEE: 2447.5, Calories: 2448, Protein: 153, Fat: 82, Carbs: 275}
	if got != want {
		t.Errorf("Calculate() = %+v, want %+v", got, want)
	}
}

func TestCalculateGoals(t *testing.T) {
	tests := []struct {
		name string
		p    models.UserProfile
		want Targets
	}{
		{
			name: "weight loss female",
			p:    models.UserProfile{Gender: models.GenderFemale, Age: 25, Height: 165, Weight: 60, Goal: models.GoalWeightLoss},
			want: Targets{Calories: 1350, Protein: 101, Fat: 45, Carbs: 135},
		},
		{
			name: "muscle gain male",
			p:    models.UserProfile{Gender: models.GenderMale, Age: 30, Height: 180, Weight: 80, Goal: models.GoalMuscleGain},
			// 2447.5 + 300
			want: Targets{Calories: 2748, Protein: 206, Fat: 76, Carbs: 309},
		},
		{
			name: "calorie floor",
			p:    models.UserProfile{Gender: models.GenderFemale, Age: 80, Height: 150, Weight: 40, Goal: models.GoalWeightLoss},
			want: Targets{Calories: 1200, Protein: 90, Fat: 40, Carbs: 120},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(&tt.p)
			got.BMR, got.TDEE = 0, 0
			if got != tt.want {
				t.Errorf("Calculate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCalculateNeverBelowFloor(t *testing.T) {
	for _, goal := range []models.Goal{models.GoalWeightLoss, models.GoalMaintenance, models.GoalMuscleGain} {
		for _, g := range []models.Gender{models.GenderMale, models.GenderFemale} {
			for age := 16.0; age <= 120; age += 26 {
				for weight := 30.0; weight <= 300; weight += 45 {
					for height := 120.0; height <= 250; height += 26 {
						got := CalculateFor(g, weight, height, age, goal)
						if got.BMR > 0 && got.Calories < MinCalories {
							t.Fatalf("%s/%s w=%v h=%v a=%v: calories %d below floor", g, goal, weight, height, age, got.Calories)
						}
					}
				}
			}
		}
	}
}

func TestCalculateMissingProfile(t *testing.T) {
	if got := Calculate(nil); got != (Targets{}) {
		t.Errorf("Calculate(nil) = %+v, want zero targets", got)
	}
	partial := &models.UserProfile{Gender: models.GenderMale, Weight: 80}
	if got := Calculate(partial); got != (Targets{}) {
		t.Errorf("Calculate(partial) = %+v, want zero targets", got)
	}
}

func TestCalculateBMI(t *testing.T) {
	bmi := CalculateBMI(180, 80)
	if bmi == nil {
		t.Fatal("expected BMI")
	}
	if math.Abs(bmi.Value-24.7) > 1e-9 {
		t.Errorf("BMI = %v, want 24.7", bmi.Value)
	}
	if bmi.Category != "Нормальный вес" {
		t.Errorf("category = %q", bmi.Category)
	}
	if CalculateBMI(0, 80) != nil {
		t.Error("expected nil BMI without height")
	}
}

func TestTotalsAndProgress(t *testing.T) {
	entries := []models.FoodEntry{
		{Name: "Овсянка", Nutrients: &models.Nutrients{Calories: 300, Protein: 10, Fat: 5, Carbs: 50}},
		{Name: "Без анализа"},
		{Name: "Курица", Nutrients: &models.Nutrients{Calories: 400, Protein: 40, Fat: 10, Carbs: 0}},
	}

	totals := Totals(entries)
	want := models.Nutrients{Calories: 700, Protein: 50, Fat: 15, Carbs: 50}
	if totals != want {
		t.Fatalf("Totals() = %+v, want %+v", totals, want)
	}

	p := ProgressOf(totals, Targets{Calories: 1400, Protein: 25, Fat: 0, Carbs: 200})
	if p.Calories != 50 {
		t.Errorf("calories progress = %v, want 50", p.Calories)
	}
	if p.Protein != 100 {
		t.Errorf("protein progress = %v, want capped 100", p.Protein)
	}
	if p.Fat != 0 {
		t.Errorf("fat progress = %v, want 0 for zero target", p.Fat)
	}
	if p.Carbs != 25 {
		t.Errorf("carbs progress = %v, want 25", p.Carbs)
	}
}
