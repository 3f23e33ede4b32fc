package gauge

import "sort"

// Semantic color tokens.
const (
	Danger  = "danger"
	Warning = "warning"
	Info    = "info"
	Success = "success"
)

var primaryPalette = map[string]string{
	Danger:  "#dc2626",
	Warning: "#f59e0b",
	Info:    "#3b82f6",
	Success: "#00b96b",
}

var secondaryPalette = map[string]string{
	Danger:  "#fecaca",
	Warning: "#fde68a",
	Info:    "#bfdbfe",
	Success: "#d0f0e0",
}

const (
	defaultSecondary = "#E0E0E0"
	// fallbackColor is used when a threshold map has no bucket for the value.
	fallbackColor = "currentColor"
)

// ColorRule picks an arc color. Set at most one of Fixed or Thresholds; the
// zero value means the default palette.
type ColorRule struct {
	// Fixed is a literal CSS color or one of the semantic tokens.
	Fixed string
	// Thresholds maps a lower bound to a color or token. The bucket with the
	// greatest bound not above the value wins; the last bucket is open-ended.
	Thresholds map[float64]string
}

// Threshold builds a threshold rule.
func Threshold(m map[float64]string) ColorRule {
	return ColorRule{Thresholds: m}
}

// Fixed builds a fixed-color rule.
func Fixed(color string) ColorRule {
	return ColorRule{Fixed: color}
}

func (r ColorRule) isZero() bool {
	return r.Fixed == "" && len(r.Thresholds) == 0
}

// PrimaryColor resolves the primary arc color for value.
func PrimaryColor(value float64, r ColorRule) string {
	if r.isZero() {
		if lvl := DefaultLevel(value); lvl != Success {
			return primaryPalette[lvl]
		}
		return "#22c55e"
	}
	return resolve(value, r, primaryPalette)
}

// DefaultLevel names the bucket of the default primary scale value falls in.
func DefaultLevel(value float64) string {
	switch {
	case value <= 25:
		return Danger
	case value <= 50:
		return Warning
	case value <= 75:
		return Info
	default:
		return Success
	}
}

// SecondaryColor resolves the secondary arc color; remainder is 100 minus
// the gauge value.
func SecondaryColor(remainder float64, r ColorRule) string {
	if r.isZero() {
		return defaultSecondary
	}
	return resolve(remainder, r, secondaryPalette)
}

func resolve(value float64, r ColorRule, palette map[string]string) string {
	if r.Fixed != "" {
		return token(r.Fixed, palette)
	}
	if c, ok := pickThreshold(value, r.Thresholds); ok {
		return token(c, palette)
	}
	return fallbackColor
}

func token(c string, palette map[string]string) string {
	if mapped, ok := palette[c]; ok {
		return mapped
	}
	return c
}

func pickThreshold(value float64, thresholds map[float64]string) (string, bool) {
	keys := make([]float64, 0, len(thresholds))
	for k := range thresholds {
		keys = append(keys, k)
	}
	sort.Float64s(keys)

	var (
		picked string
		found  bool
	)
	for _, k := range keys {
		if value < k {
			break
		}
		picked, found = thresholds[k], true
	}
	return picked, found
}
