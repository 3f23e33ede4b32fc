package nutrition

import "math"

// BMI is a body mass index rounded to one decimal with its category.
type BMI struct {
	Value    float64 `json:"value"`
	Category string  `json:"category"`
}

// CalculateBMI expects height in centimeters and weight in kilograms. It
// returns nil when either is absent.
func CalculateBMI(heightCm, weightKg float64) *BMI {
	if heightCm <= 0 || weightKg <= 0 {
		return nil
	}

	h := heightCm / 100.0
	bmi := math.Round(weightKg/(h*h)*10) / 10
	return &BMI{Value: bmi, Category: BMICategory(bmi)}
}

func BMICategory(bmi float64) string {
	switch {
	case bmi < 18.5:
		return "Недостаточный вес"
	case bmi < 25.0:
		return "Нормальный вес"
	case bmi < 30.0:
		return "Избыточный вес"
	case bmi < 35.0:
		return "Ожирение I степени"
	case bmi < 40.0:
		return "Ожирение II степени"
	default:
		return "Ожирение III степени"
	}
}
