package gauge

import (
	"math"
	"time"
)

// DefaultTransition is the time a gauge takes to move to a new value.
const DefaultTransition = 1200 * time.Millisecond

// Easing maps linear progress in [0,1] to eased progress.
type Easing func(t float64) float64

// EaseOutQuad decelerates towards the target.
func EaseOutQuad(t float64) float64 {
	return 1 - math.Pow(1-t, 2)
}

func Linear(t float64) float64 { return t }

// Interpolate returns the animated value after elapsed. Once elapsed reaches
// duration the exact target is returned.
func Interpolate(from, to float64, elapsed, duration time.Duration, ease Easing) float64 {
	if duration <= 0 || elapsed >= duration {
		return to
	}
	if elapsed <= 0 {
		return from
	}
	if ease == nil {
		ease = Linear
	}
	progress := float64(elapsed) / float64(duration)
	return from + (to-from)*ease(progress)
}

// Keyframes samples the transition every step. The first frame is from and
// the last frame is exactly to.
func Keyframes(from, to float64, duration, step time.Duration, ease Easing) []float64 {
	if duration <= 0 || step <= 0 {
		return []float64{to}
	}
	n := int(math.Ceil(float64(duration) / float64(step)))
	frames := make([]float64, 0, n+1)
	for i := 0; i < n; i++ {
		frames = append(frames, Interpolate(from, to, time.Duration(i)*step, duration, ease))
	}
	return append(frames, to)
}
