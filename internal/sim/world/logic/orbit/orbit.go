// Package orbit predicts body positions on Keplerian orbits around their
// parents.
package orbit

import (
	"math"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/world/logic/mathx"
)

// Elements describes one body's orbit around its parent.
type Elements struct {
	RadiusMkm           float64
	PeriodDays          float64
	PhaseRadians        float64
	Eccentricity        float64
	ArgPeriapsisRadians float64
}

const maxEccentricity = 0.999999

// Offset is the body's position relative to its parent at time t days.
// Degenerate orbits (no radius or no period) sit at the phase angle.
func Offset(el Elements, t float64) mathx.Vec2 {
	a := math.Max(0, el.RadiusMkm)
	period := math.Max(0, el.PeriodDays)
	e := mathx.Clamp(el.Eccentricity, 0, maxEccentricity)
	if math.IsNaN(e) {
		e = 0
	}

	m := el.PhaseRadians
	if a > 1e-12 && period > 1e-12 {
		m = math.Mod(el.PhaseRadians+2*math.Pi*(t/period), 2*math.Pi)
	}

	if e <= 1e-9 {
		ang := m + el.ArgPeriapsisRadians
		return mathx.Vec2{X: a * math.Cos(ang), Y: a * math.Sin(ang)}
	}

	ea := SolveKepler(m, e)
	b := a * math.Sqrt(math.Max(0, 1-e*e))
	x := a * (math.Cos(ea) - e)
	y := b * math.Sin(ea)
	cw, sw := math.Cos(el.ArgPeriapsisRadians), math.Sin(el.ArgPeriapsisRadians)
	return mathx.Vec2{X: x*cw - y*sw, Y: x*sw + y*cw}
}

// SolveKepler returns the eccentric anomaly E with M = E - e sin E.
func SolveKepler(m, e float64) float64 {
	ea := m
	if e >= 0.8 {
		ea = math.Pi
	}
	for range 12 {
		f := ea - e*math.Sin(ea) - m
		fp := 1 - e*math.Cos(ea)
		if math.Abs(fp) < 1e-12 {
			break
		}
		ea -= f / fp
		if math.Abs(f) < 1e-10 {
			break
		}
	}
	return ea
}

// Node is one body as seen by Predict.
type Node struct {
	Parent   uint64
	Position mathx.Vec2
	Elements Elements
}

// Lookup returns the node for id, or false when it does not exist.
type Lookup func(id uint64) (Node, bool)

// Predict returns the absolute position of id at time t by walking up the
// parent chain. Bodies without a parent orbit the system origin. Bodies with
// no orbit radius are fixed at their stored position, and so is a body met
// twice on a cyclic chain.
func Predict(lookup Lookup, id uint64, t float64) (mathx.Vec2, bool) {
	n, ok := lookup(id)
	if !ok {
		return mathx.Vec2{}, false
	}
	return predict(lookup, id, n, t, map[uint64]bool{}), true
}

func predict(lookup Lookup, id uint64, n Node, t float64, seen map[uint64]bool) mathx.Vec2 {
	if seen[id] || n.Elements.RadiusMkm <= 1e-12 {
		return n.Position
	}
	seen[id] = true

	var center mathx.Vec2
	if n.Parent != 0 && n.Parent != id {
		if p, ok := lookup(n.Parent); ok {
			center = predict(lookup, n.Parent, p, t, seen)
		}
	}
	return center.Add(Offset(n.Elements, t))
}
