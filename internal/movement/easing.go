package movement

// EaseFunc maps animation progress t in [0,1] to an eased value in [0,1].
type EaseFunc func(t float64) float64

// Linear returns t unchanged.
func Linear(t float64) float64 {
	return clamp01(t)
}

// EaseInOut is the default smoothstep curve.
func EaseInOut(t float64) float64 {
	t = clamp01(t)
	return t * t * (3 - 2*t)
}

// CubicInOut accelerates harder at both ends than smoothstep.
func CubicInOut(t float64) float64 {
	t = clamp01(t)
	if t < 0.5 {
		return 4 * t * t * t
	}
	u := 2*t - 2
	return 0.5*u*u*u + 1
}

// ParseEase maps a config name to an easing curve, defaulting to EaseInOut.
func ParseEase(name string) EaseFunc {
	switch name {
	case "linear":
		return Linear
	case "cubic":
		return CubicInOut
	default:
		return EaseInOut
	}
}

func clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
