package gauge

import (
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
	"time"
)

// RenderOptions control the SVG document around the geometry.
type RenderOptions struct {
	// Size is the width and height attribute; empty means 100%.
	Size string
	// HideValue suppresses the centered value text.
	HideValue bool
	// Text replaces the rounded value in the center.
	Text string
	// AnimateFrom, when set, animates the arcs from that value.
	AnimateFrom *float64
	Transition  time.Duration
	// FrameStep is the keyframe interval of the animation.
	FrameStep time.Duration
}

// RenderSVG draws the gauge for value as a standalone SVG document.
func RenderSVG(value float64, s Spec, opts RenderOptions) string {
	value = Clamp(value)
	g := Compute(value, s)
	if s.StrokeWidth <= 0 {
		s.StrokeWidth = DefaultStrokeWidth
	}

	size := opts.Size
	if size == "" {
		size = "100%"
	}

	var frames []Geometry
	if opts.AnimateFrom != nil {
		transition := opts.Transition
		if transition <= 0 {
			transition = DefaultTransition
		}
		step := opts.FrameStep
		if step <= 0 {
			step = 100 * time.Millisecond
		}
		for _, v := range Keyframes(Clamp(*opts.AnimateFrom), value, transition, step, EaseOutQuad) {
			frames = append(frames, Compute(v, s))
		}
	}
	dur := opts.Transition
	if dur <= 0 {
		dur = DefaultTransition
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %s %s" width="%s" height="%s" fill="none">`,
		num(ViewBox), num(ViewBox), html.EscapeString(size), html.EscapeString(size))

	writeArc(&b, g, g.Secondary, s.StrokeWidth, frames, func(f Geometry) Arc { return f.Secondary }, dur)
	writeArc(&b, g, g.Primary, s.StrokeWidth, frames, func(f Geometry) Arc { return f.Primary }, dur)

	if !opts.HideValue {
		text := opts.Text
		if text == "" {
			text = strconv.Itoa(int(math.Round(value)))
		}
		fmt.Fprintf(&b, `<text x="50%%" y="50%%" text-anchor="middle" dominant-baseline="central" fill="%s" font-size="36" font-weight="600">%s</text>`,
			html.EscapeString(g.Primary.Color), html.EscapeString(text))
	}

	b.WriteString(`</svg>`)
	return b.String()
}

func writeArc(b *strings.Builder, g Geometry, a Arc, strokeWidth float64, frames []Geometry, pick func(Geometry) Arc, dur time.Duration) {
	center := num(ViewBox / 2)

	fmt.Fprintf(b, `<g transform="rotate(%s %s %s)" opacity="%s">`, num(a.Rotation), center, center, num(a.Opacity))
	if len(frames) > 0 {
		rotations := make([]string, len(frames))
		opacities := make([]string, len(frames))
		for i, f := range frames {
			fa := pick(f)
			rotations[i] = fmt.Sprintf("%s %s %s", num(fa.Rotation), center, center)
			opacities[i] = num(fa.Opacity)
		}
		fmt.Fprintf(b, `<animateTransform attributeName="transform" type="rotate" dur="%dms" fill="freeze" values="%s"/>`,
			dur.Milliseconds(), strings.Join(rotations, ";"))
		fmt.Fprintf(b, `<animate attributeName="opacity" dur="%dms" fill="freeze" values="%s"/>`,
			dur.Milliseconds(), strings.Join(opacities, ";"))
	}

	mirror := ""
	if a.Mirrored {
		mirror = fmt.Sprintf(` transform="translate(0 %s) scale(1 -1)"`, num(ViewBox))
	}
	fmt.Fprintf(b, `<circle cx="%s" cy="%s" r="%s" stroke="%s" stroke-width="%s" stroke-linecap="round" stroke-linejoin="round" stroke-dasharray="%s" stroke-dashoffset="0"%s>`,
		center, center, num(g.Radius), html.EscapeString(a.Color), num(strokeWidth), dasharray(a.Length, g.Circumference), mirror)
	if len(frames) > 0 {
		dashes := make([]string, len(frames))
		for i, f := range frames {
			dashes[i] = dasharray(pick(f).Length, f.Circumference)
		}
		fmt.Fprintf(b, `<animate attributeName="stroke-dasharray" dur="%dms" fill="freeze" values="%s"/>`,
			dur.Milliseconds(), strings.Join(dashes, ";"))
	}
	b.WriteString(`</circle></g>`)
}

// Dasharray formats an arc as an SVG stroke-dasharray value.
func (g Geometry) Dasharray(a Arc) string {
	return dasharray(a.Length, g.Circumference)
}

func dasharray(length, circumference float64) string {
	return num(length) + " " + num(circumference)
}

func num(f float64) string {
	return strconv.FormatFloat(math.Round(f*1000)/1000, 'f', -1, 64)
}
