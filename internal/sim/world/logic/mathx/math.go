package mathx

import "math"

// Vec2 is a position or displacement in megameters.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (a Vec2) Add(b Vec2) Vec2 { return Vec2{a.X + b.X, a.Y + b.Y} }
func (a Vec2) Sub(b Vec2) Vec2 { return Vec2{a.X - b.X, a.Y - b.Y} }
func (a Vec2) Len() float64    { return math.Hypot(a.X, a.Y) }

func Dist(a, b Vec2) float64 { return a.Sub(b).Len() }

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 maps non-finite values to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return Clamp(v, 0, 1)
}

func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// StepToward moves x toward target by at most step without overshooting.
func StepToward(x, target, step float64) float64 {
	if !finite(x) || !finite(target) || !finite(step) {
		return x
	}
	step = math.Max(0, step)
	if x < target {
		return math.Min(target, x+step)
	}
	if x > target {
		return math.Max(target, x-step)
	}
	return x
}

func ApproxEqual(a, b, tol float64) bool {
	if !finite(a) || !finite(b) || !finite(tol) {
		return false
	}
	return math.Abs(a-b) <= math.Max(0, tol)
}
