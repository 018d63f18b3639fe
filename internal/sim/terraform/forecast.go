// Package terraform forecasts when a body's climate reaches its terraforming
// targets under current installations and mineral stockpiles.
package terraform

import (
	"math"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/tuning"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/world"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/world/logic/mathx"
)

const (
	DefaultMaxDays = 200000
	hardCapDays    = 2000000

	mineralDuranium   = "Duranium"
	mineralNeutronium = "Neutronium"
)

// Stall and truncation reasons.
const (
	ReasonNoPoints        = "No terraforming points/day (build Terraforming Facilities)"
	ReasonInsufficient    = "Terraforming stalled: insufficient minerals"
	ReasonMissingMinerals = "Terraforming stalled: missing minerals (Duranium/Neutronium)"
	ReasonNoUsablePoints  = "Terraforming stalled: no usable points/day"
	ReasonExceededMaxDays = "Exceeded max_days"
)

type Options struct {
	// MaxDays bounds the simulation; <= 0 means DefaultMaxDays.
	MaxDays int `json:"max_days"`
	// IgnoreMineralCosts runs the forecast as if points cost nothing. Reported
	// costs and stockpiles are unchanged.
	IgnoreMineralCosts bool `json:"ignore_mineral_costs"`
}

// ColonyContribution is one colony's share at the start of the forecast.
type ColonyContribution struct {
	ColonyID            world.ID `json:"colony_id"`
	PointsPerDay        float64  `json:"points_per_day"`
	DuraniumAvailable   float64  `json:"duranium_available"`
	NeutroniumAvailable float64  `json:"neutronium_available"`
}

type Schedule struct {
	OK        bool `json:"ok"`
	HasTarget bool `json:"has_target"`
	Complete  bool `json:"complete"`

	Stalled         bool   `json:"stalled"`
	StallReason     string `json:"stall_reason,omitempty"`
	Truncated       bool   `json:"truncated"`
	TruncatedReason string `json:"truncated_reason,omitempty"`

	BodyID   world.ID `json:"body_id"`
	SystemID world.ID `json:"system_id"`

	StartTempK  float64 `json:"start_temp_k"`
	StartAtm    float64 `json:"start_atm"`
	StartO2Atm  float64 `json:"start_o2_atm"`
	TargetTempK float64 `json:"target_temp_k"`
	TargetAtm   float64 `json:"target_atm"`
	TargetO2Atm float64 `json:"target_o2_atm"`
	EndTempK    float64 `json:"end_temp_k"`
	EndAtm      float64 `json:"end_atm"`
	EndO2Atm    float64 `json:"end_o2_atm"`

	PointsPerDay   float64 `json:"points_per_day"`
	PointsApplied  float64 `json:"points_applied"`
	DaysSimulated  int     `json:"days_simulated"`
	DaysToComplete int     `json:"days_to_complete"`

	DuraniumPerPoint    float64 `json:"duranium_per_point"`
	NeutroniumPerPoint  float64 `json:"neutronium_per_point"`
	DuraniumAvailable   float64 `json:"duranium_available"`
	NeutroniumAvailable float64 `json:"neutronium_available"`
	DuraniumConsumed    float64 `json:"duranium_consumed"`
	NeutroniumConsumed  float64 `json:"neutronium_consumed"`

	Colonies []ColonyContribution `json:"colonies"`
}

type budget struct {
	pts      float64
	duranium float64
	neutron  float64
}

// axis is one climate quantity stepping toward its target.
type axis struct {
	value  float64
	target float64
	rate   float64
	tol    float64
}

// active is true when the axis has a target and a usable rate.
func (a axis) active() bool { return a.target > 0 && a.rate > 1e-12 }

func (a axis) atTarget() bool { return mathx.ApproxEqual(a.value, a.target, a.tol) }

// Forecast simulates terraforming on bodyID one day at a time. The world is
// only read.
func Forecast(st *world.State, cfg tuning.SimConfig, bodyID world.ID, opts Options) Schedule {
	out := Schedule{BodyID: bodyID, Colonies: []ColonyContribution{}}
	body := st.Bodies[bodyID]
	if body == nil {
		return out
	}
	out.SystemID = body.SystemID
	out.HasTarget = body.HasTerraformTarget()
	out.TargetTempK = body.TerraformTargetTempK
	out.TargetAtm = body.TerraformTargetAtm
	out.TargetO2Atm = body.TerraformTargetO2Atm

	if !out.HasTarget {
		out.OK = true
		out.StartTempK, out.StartAtm, out.StartO2Atm = body.SurfaceTempK, body.AtmosphereAtm, body.OxygenAtm
		out.EndTempK, out.EndAtm, out.EndO2Atm = out.StartTempK, out.StartAtm, out.StartO2Atm
		return out
	}

	tc := cfg.Terraform
	// An unset temperature counts as already at target; unset gases start empty.
	temp := axis{value: body.SurfaceTempK, target: out.TargetTempK, rate: math.Max(0, tc.TempKPerPointDay), tol: math.Max(0, tc.TempToleranceK)}
	if !(temp.value > 0) && temp.target > 0 {
		temp.value = temp.target
	}
	atm := axis{value: body.AtmosphereAtm, target: out.TargetAtm, rate: math.Max(0, tc.AtmPerPointDay), tol: math.Max(0, tc.AtmTolerance)}
	if !(atm.value > 0) && atm.target > 0 {
		atm.value = 0
	}
	o2 := axis{value: body.OxygenAtm, target: out.TargetO2Atm, rate: math.Max(0, tc.O2AtmPerPointDay), tol: math.Max(0, tc.O2ToleranceAtm)}
	if !(o2.value > 0) && o2.target > 0 {
		o2.value = 0
	}
	out.StartTempK, out.StartAtm, out.StartO2Atm = temp.value, atm.value, o2.value
	maxO2Frac := mathx.Clamp(tc.O2MaxFractionAtm, 0, 1)

	// Smaller bodies terraform faster.
	if tc.ScaleWithBodyMass {
		mass := math.Max(0, body.MassEarths)
		minMass := math.Max(1e-6, tc.MinMassEarths)
		if scaled := math.Pow(math.Max(minMass, mass), tc.MassScalingExponent); scaled > 1e-12 {
			temp.rate /= scaled
			atm.rate /= scaled
			o2.rate /= scaled
		}
	}

	out.DuraniumPerPoint = math.Max(0, tc.DuraniumPerPoint)
	out.NeutroniumPerPoint = math.Max(0, tc.NeutroniumPerPoint)
	costD, costN := out.DuraniumPerPoint, out.NeutroniumPerPoint
	if opts.IgnoreMineralCosts {
		costD, costN = 0, 0
	}

	var budgets []budget
	for _, id := range st.SortedColonyIDs() {
		c := st.Colonies[id]
		if c.BodyID != bodyID {
			continue
		}
		b := budget{
			pts:      st.TerraformingPointsPerDay(c),
			duranium: c.Mineral(mineralDuranium),
			neutron:  c.Mineral(mineralNeutronium),
		}
		out.PointsPerDay += b.pts
		out.Colonies = append(out.Colonies, ColonyContribution{
			ColonyID:            id,
			PointsPerDay:        b.pts,
			DuraniumAvailable:   b.duranium,
			NeutroniumAvailable: b.neutron,
		})
		if b.pts > 1e-9 {
			out.DuraniumAvailable += b.duranium
			out.NeutroniumAvailable += b.neutron
		}
		budgets = append(budgets, b)
	}

	// An axis without a rate can never move, so it counts as done.
	done := func() bool {
		if temp.target > 0 && temp.rate > 0 && !temp.atTarget() {
			return false
		}
		if atm.target > 0 && atm.rate > 0 && !atm.atTarget() {
			return false
		}
		if o2.target > 0 && o2.rate > 0 {
			if !o2.atTarget() {
				return false
			}
			if maxO2Frac > 0 && atm.value*maxO2Frac+o2.tol < o2.target {
				return false
			}
		}
		return true
	}

	if body.TerraformComplete || done() {
		out.OK = true
		out.Complete = true
		out.EndTempK = pick(temp.target, temp.value)
		out.EndAtm = pick(atm.target, atm.value)
		out.EndO2Atm = pick(o2.target, o2.value)
		return out
	}

	if out.PointsPerDay <= 1e-9 {
		out.OK = true
		out.Stalled = true
		out.StallReason = ReasonNoPoints
		out.EndTempK, out.EndAtm, out.EndO2Atm = temp.value, atm.value, o2.value
		return out
	}

	maxDays := opts.MaxDays
	if maxDays <= 0 {
		maxDays = DefaultMaxDays
	}
	hardCap := min(maxDays, hardCapDays)

	startD, startN := 0.0, 0.0
	for _, b := range budgets {
		startD += b.duranium
		startN += b.neutron
	}

	for day := 0; day < hardCap; day++ {
		total := spendDay(budgets, costD, costN)
		out.PointsApplied += total
		out.DaysSimulated = day + 1

		if total <= 1e-9 {
			out.Stalled = true
			switch {
			case (costD > 0 || costN > 0) && (startD > 1e-6 || startN > 1e-6):
				out.StallReason = ReasonInsufficient
			case costD > 0 || costN > 0:
				out.StallReason = ReasonMissingMinerals
			default:
				out.StallReason = ReasonNoUsablePoints
			}
			break
		}

		needT := temp.active() && !temp.atTarget()
		needA := atm.active() && !atm.atTarget()
		// Oxygen waits for enough atmosphere to hold its target.
		o2Limited := o2.target > 0 && maxO2Frac > 0 && atm.value*maxO2Frac+o2.tol < o2.target
		needO := o2.active() && !o2Limited && !o2.atTarget()

		ptsT, ptsA, ptsO := total, total, total
		if tc.SplitPointsBetweenAxes {
			ptsT, ptsA, ptsO = split(total, body, [3]bool{needT, needA, needO}, [3]axis{temp, atm, o2})
		}

		if needT && ptsT > 0 {
			temp.value = mathx.StepToward(temp.value, temp.target, ptsT*temp.rate)
		}
		if needA && ptsA > 0 {
			atm.value = math.Max(0, mathx.StepToward(atm.value, atm.target, ptsA*atm.rate))
		}
		o2.value = math.Min(o2.value, atm.value)
		if needO && ptsO > 0 {
			target := o2.target
			if maxO2Frac > 0 {
				target = math.Min(target, atm.value*maxO2Frac)
			}
			o2.value = mathx.Clamp(mathx.StepToward(o2.value, target, ptsO*o2.rate), 0, atm.value)
		}

		if done() {
			out.Complete = true
			out.DaysToComplete = day + 1
			break
		}
	}

	endD, endN := 0.0, 0.0
	for _, b := range budgets {
		endD += b.duranium
		endN += b.neutron
	}
	out.DuraniumConsumed = math.Max(0, startD-endD)
	out.NeutroniumConsumed = math.Max(0, startN-endN)
	out.EndTempK, out.EndAtm, out.EndO2Atm = temp.value, atm.value, o2.value

	out.OK = true
	if !out.Complete && !out.Stalled {
		out.Truncated = true
		out.TruncatedReason = ReasonExceededMaxDays
	}
	return out
}

// spendDay applies one day of points from every colony, limited by what its
// minerals can pay for, and returns the points actually applied.
func spendDay(budgets []budget, costD, costN float64) float64 {
	total := 0.0
	for i := range budgets {
		b := &budgets[i]
		if b.pts <= 1e-12 {
			continue
		}
		afford := 1.0
		if need := b.pts * costD; costD > 0 && need > 1e-12 {
			afford = math.Min(afford, mathx.Clamp01(b.duranium/need))
		}
		if need := b.pts * costN; costN > 0 && need > 1e-12 {
			afford = math.Min(afford, mathx.Clamp01(b.neutron/need))
		}
		pts := b.pts * afford
		if pts <= 1e-12 {
			continue
		}
		if costD > 0 {
			b.duranium = math.Max(0, b.duranium-pts*costD)
		}
		if costN > 0 {
			b.neutron = math.Max(0, b.neutron-pts*costN)
		}
		total += pts
	}
	return total
}

// split divides total between the axes still in need: manual body weights
// win when set, otherwise each axis gets its share of remaining work.
func split(total float64, body *world.Body, need [3]bool, axes [3]axis) (float64, float64, float64) {
	n := 0
	for _, v := range need {
		if v {
			n++
		}
	}
	switch n {
	case 0:
		return 0, 0, 0
	case 1:
		return onlyIf(need[0], total), onlyIf(need[1], total), onlyIf(need[2], total)
	}

	manual := [3]float64{body.TerraformWeightTemp, body.TerraformWeightAtm, body.TerraformWeightO2}
	var w [3]float64
	sum := 0.0
	for i := range w {
		if need[i] {
			w[i] = math.Max(0, manual[i])
			sum += w[i]
		}
	}
	if sum <= 1e-12 {
		sum = 0
		for i, a := range axes {
			if need[i] {
				w[i] = math.Abs(a.target-a.value) / math.Max(1e-12, a.rate)
				sum += w[i]
			}
		}
	}
	if sum <= 1e-12 {
		return 0, 0, 0
	}
	return total * mathx.Clamp01(w[0]/sum), total * mathx.Clamp01(w[1]/sum), total * mathx.Clamp01(w[2]/sum)
}

func onlyIf(ok bool, v float64) float64 {
	if ok {
		return v
	}
	return 0
}

// pick returns target when it is set, else current.
func pick(target, current float64) float64 {
	if target > 0 {
		return target
	}
	return current
}
