// Package gauge computes the geometry of a circular percentage gauge drawn
// as two complementary arcs: the primary arc for the value and the
// secondary arc for the remainder, separated by a gap.
package gauge

import (
	"math"
)

const (
	// ViewBox is the side of the square the gauge is drawn in.
	ViewBox = 100.0

	DefaultStrokeWidth = 10.0
	DefaultGapPercent  = 5.0

	percentToDegree = 360.0 / 100
)

// Spec configures a gauge. The zero value of the color rules selects the
// default palettes.
type Spec struct {
	StrokeWidth float64
	GapPercent  float64
	// Equal splits the gap symmetrically between both arcs instead of
	// putting it at the trailing edge of the primary arc.
	Equal     bool
	Primary   ColorRule
	Secondary ColorRule
}

// DefaultSpec returns the stroke and gap used across the app.
func DefaultSpec() Spec {
	return Spec{StrokeWidth: DefaultStrokeWidth, GapPercent: DefaultGapPercent}
}

// Arc is one stroked circle: a visible dash of Length followed by a blank
// of a full circumference, rotated by Rotation degrees.
type Arc struct {
	Length   float64
	Rotation float64
	Mirrored bool
	Opacity  float64
	Color    string
}

// Geometry is the full render state for one value.
type Geometry struct {
	Value         float64
	Radius        float64
	Circumference float64
	Primary       Arc
	Secondary     Arc
}

// Clamp limits a percentage to [0,100]; NaN becomes 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// Compute lays out both arcs for value (already clamped to [0,100]).
//
// Each arc carries a gap term: the whole gap on the secondary arc in the
// default mode, half a gap on each arc in Equal mode. Near 0% the secondary
// term is replaced by the value itself and near 100% the primary term by
// the remainder, so lengths shrink continuously to the full circle instead
// of going negative.
func Compute(value float64, s Spec) Geometry {
	if s.StrokeWidth <= 0 {
		s.StrokeWidth = DefaultStrokeWidth
	}
	if s.GapPercent < 0 {
		s.GapPercent = 0
	}

	radius := ViewBox/2 - s.StrokeWidth/2
	circumference := 2 * math.Pi * radius
	percentToLength := circumference / 100

	offset := 0.0
	if s.Equal {
		offset = 0.5
	}
	primaryGap := s.GapPercent * 2 * offset
	secondaryGap := s.GapPercent * 2 * (1 - offset)

	v := value
	primaryCut := math.Min(100-v, primaryGap)
	secondaryCut := math.Min(v, secondaryGap)

	g := Geometry{
		Value:         v,
		Radius:        radius,
		Circumference: circumference,
		Primary: Arc{
			Length:   math.Max((v-primaryCut)*percentToLength, 0),
			Rotation: -90 + primaryCut/2*percentToDegree,
			Opacity:  1,
			Color:    PrimaryColor(v, s.Primary),
		},
		Secondary: Arc{
			Length:   math.Max((100-v-secondaryCut)*percentToLength, 0),
			Rotation: 360 - 90 - secondaryCut/2*percentToDegree,
			Mirrored: true,
			Opacity:  1,
			Color:    SecondaryColor(100-v, s.Secondary),
		},
	}

	if s.Equal && v < primaryGap && v < secondaryGap {
		g.Primary.Opacity = 0
	}
	if (!s.Equal && v > 100-secondaryGap) ||
		(s.Equal && v > 100-primaryGap && v > 100-secondaryGap) {
		g.Secondary.Opacity = 0
	}

	return g
}
