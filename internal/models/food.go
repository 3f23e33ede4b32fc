package models

import (
	"time"
)

type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

// MealTypes lists meal types in display order.
var MealTypes = []MealType{MealBreakfast, MealLunch, MealDinner, MealSnack}

func (m MealType) Label() string {
	switch m {
	case MealBreakfast:
		return "Завтрак"
	case MealLunch:
		return "Обед"
	case MealDinner:
		return "Ужин"
	case MealSnack:
		return "Перекус"
	default:
		return "Не указано"
	}
}

// ParseMealType accepts either the identifier or the user-facing label.
func ParseMealType(s string) (MealType, bool) {
	for _, m := range MealTypes {
		if s == string(m) || s == m.Label() {
			return m, true
		}
	}
	return "", false
}

type Nutrients struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
}

// Add returns the element-wise sum.
func (n Nutrients) Add(o Nutrients) Nutrients {
	return Nutrients{
		Calories: n.Calories + o.Calories,
		Protein:  n.Protein + o.Protein,
		Fat:      n.Fat + o.Fat,
		Carbs:    n.Carbs + o.Carbs,
	}
}

// FoodEntry is immutable once created; it can only be deleted.
type FoodEntry struct {
	ID          int64      `json:"id"`
	Timestamp   time.Time  `json:"timestamp"`
	MealType    MealType   `json:"mealType" validate:"required,oneof=breakfast lunch dinner snack"`
	Name        string     `json:"name" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=2000"`
	Photo       string     `json:"photo,omitempty"`
	Nutrients   *Nutrients `json:"nutrients"`
}

var entryMessages = map[string]string{
	"mealType":    "Пожалуйста, выберите тип",
	"name":        "Пожалуйста, введите название",
	"description": "Описание слишком длинное",
}

func (e FoodEntry) Validate() error {
	return validateStruct(e, entryMessages)
}

// NewEntryID derives an entry identifier from its creation time.
func NewEntryID(t time.Time) int64 {
	return t.UnixMilli()
}

// DateKey formats the calendar day an entry belongs to.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// AnalysisResult is the nutrient estimate returned for a food photo.
type AnalysisResult struct {
	Name        string  `json:"name"`
	Calories    float64 `json:"calories"`
	Protein     float64 `json:"protein"`
	Fat         float64 `json:"fat"`
	Carbs       float64 `json:"carbs"`
	Description string  `json:"description"`
	Raw         string  `json:"raw,omitempty"`
}

// Nutrients converts the estimate into entry nutrients.
func (a AnalysisResult) Nutrients() *Nutrients {
	return &Nutrients{
		Calories: a.Calories,
		Protein:  a.Protein,
		Fat:      a.Fat,
		Carbs:    a.Carbs,
	}
}
