package timeline

// Curve selects the interpolation shape used for keyframe easing.
type Curve string

const (
	CurveLinear    Curve = "linear"
	CurveEaseIn    Curve = "ease-in"
	CurveEaseOut   Curve = "ease-out"
	CurveEaseInOut Curve = "ease-in-out"
)

// Ease maps t in [0,1] through the named curve. The curves are quadratic,
// fixed at Ease(_, 0) == 0 and Ease(_, 1) == 1, and monotone on [0,1].
// Unknown curves fall back to linear.
func Ease(curve Curve, t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	switch curve {
	case CurveEaseIn:
		return t * t
	case CurveEaseOut:
		return t * (2 - t)
	case CurveEaseInOut:
		if t < 0.5 {
			return 2 * t * t
		}
		return 1 - 2*(1-t)*(1-t)
	default:
		return t
	}
}

// Envelope returns the intensity of an ease-in/plateau/ease-out effect at
// localMs milliseconds into an effect clip of durationMs. The value ramps
// linearly 0 to 1 over [0, easeInMs], holds at 1, and ramps back to 0 over
// the final easeOutMs. Outside [0, durationMs] the intensity is 0.
//
// When easeInMs+easeOutMs exceeds durationMs the two ramps are compressed
// proportionally so they still meet at exactly 1, keeping the curve
// continuous with no artificial plateau.
func Envelope(localMs, durationMs, easeInMs, easeOutMs int64) float64 {
	if durationMs <= 0 || localMs < 0 || localMs > durationMs {
		return 0
	}
	if easeInMs < 0 {
		easeInMs = 0
	}
	if easeOutMs < 0 {
		easeOutMs = 0
	}

	ei := float64(easeInMs)
	eo := float64(easeOutMs)
	d := float64(durationMs)
	t := float64(localMs)

	if ei+eo > d {
		scale := d / (ei + eo)
		ei *= scale
		eo *= scale
	}

	if ei > 0 && t < ei {
		return t / ei
	}
	if eo > 0 && t > d-eo {
		return (d - t) / eo
	}
	return 1
}

// lerp blends a toward b by u in [0,1].
func lerp(a, b, u float64) float64 {
	return a + (b-a)*u
}
