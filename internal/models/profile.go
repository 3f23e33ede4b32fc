package models

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

type Goal string

const (
	GoalWeightLoss  Goal = "weight_loss"
	GoalMaintenance Goal = "maintenance"
	GoalMuscleGain  Goal = "muscle_gain"
)

// Genders and Goals list the choices in display order.
var (
	Genders = []Gender{GenderMale, GenderFemale}
	Goals   = []Goal{GoalWeightLoss, GoalMaintenance, GoalMuscleGain}
)

// ParseGender accepts either the identifier or the user-facing label.
func ParseGender(s string) (Gender, bool) {
	for _, g := range Genders {
		if s == string(g) || s == g.Label() {
			return g, true
		}
	}
	return "", false
}

// ParseGoal accepts either the identifier or the user-facing label.
func ParseGoal(s string) (Goal, bool) {
	for _, g := range Goals {
		if s == string(g) || s == g.Label() {
			return g, true
		}
	}
	return "", false
}

// Label returns the goal as shown to users.
func (g Goal) Label() string {
	switch g {
	case GoalWeightLoss:
		return "Похудение"
	case GoalMaintenance:
		return "Поддержание формы"
	case GoalMuscleGain:
		return "Набор массы"
	default:
		return "Не указана"
	}
}

// Label returns the gender as shown to users.
func (g Gender) Label() string {
	switch g {
	case GenderMale:
		return "Мужской"
	case GenderFemale:
		return "Женский"
	default:
		return "Не указан"
	}
}

// UserProfile is replaced wholesale by the profile form.
type UserProfile struct {
	Gender Gender  `json:"gender" validate:"required,oneof=male female"`
	Age    float64 `json:"age" validate:"required,gte=16,lte=120"`
	Height float64 `json:"height" validate:"required,gte=120,lte=250"`
	Weight float64 `json:"weight" validate:"required,gte=30,lte=300"`
	Goal   Goal    `json:"goal" validate:"required,oneof=weight_loss maintenance muscle_gain"`
}

// fieldMessages are the per-field validation messages of the profile form.
var fieldMessages = map[string]string{
	"gender": "Выберите пол",
	"age":    "Укажите возраст от 16 до 120 лет",
	"height": "Укажите рост от 120 до 250 см",
	"weight": "Укажите вес от 30 до 300 кг",
	"goal":   "Выберите цель",
}

// ValidationErrors maps a JSON field name to a human-readable message.
type ValidationErrors map[string]string

func (e ValidationErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e[f]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator instance. Field names in its errors
// are the JSON tag names.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks the clinical ranges of the profile.
func (p UserProfile) Validate() error {
	return validateStruct(p, fieldMessages)
}

func validateStruct(v interface{}, messages map[string]string) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make(ValidationErrors, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg, ok := messages[fe.Field()]
		if !ok {
			msg = fmt.Sprintf("failed on %q", fe.Tag())
		}
		out[fe.Field()] = msg
	}
	return out
}
