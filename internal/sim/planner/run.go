package planner

import (
	"fmt"
	"math"
	"strings"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/tuning"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/world"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/world/logic/mathx"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/world/logic/orbit"
)

// run is the simulated ship while a plan is built. The world is only read.
type run struct {
	st     *world.State
	cfg    tuning.SimConfig
	opts   Options
	ship   *world.Ship
	design *world.ShipDesign
	viewer world.ID

	maxOrders int
	mkmPerDay float64
	arriveEps float64
	dockRange float64
	fuelCap   float64
	fuelUse   float64
	usesFuel  bool

	pos  world.Vec2
	sys  world.ID
	fuel float64
	t    float64

	colonyFuel map[world.ID]float64
	colonyIDs  []world.ID
}

func newRun(st *world.State, cfg tuning.SimConfig, ship *world.Ship, opts Options) *run {
	r := &run{
		st:        st,
		cfg:       cfg,
		opts:      opts,
		ship:      ship,
		design:    st.Design(ship.DesignID),
		viewer:    opts.ViewerFactionID,
		maxOrders: opts.MaxOrders,
		pos:       ship.Position,
		sys:       ship.SystemID,
		t:         st.Date.Days(),
	}
	if r.viewer == world.InvalidID {
		r.viewer = ship.FactionID
	}
	if r.maxOrders <= 0 {
		r.maxOrders = DefaultMaxOrders
	}

	speed := ship.SpeedKmS
	if speed <= 1e-9 && r.design != nil {
		speed = r.design.SpeedKmS
	}
	secondsPerDay := math.Max(1, cfg.SecondsPerDay)
	if speed > 0 {
		r.mkmPerDay = speed * secondsPerDay / 1e6
	}
	r.arriveEps = math.Max(0, cfg.ArrivalEpsilonMkm)
	r.dockRange = math.Max(r.arriveEps, math.Max(0, cfg.DockingRangeMkm))

	if r.design != nil {
		r.fuelCap = math.Max(0, r.design.FuelCapacityTons)
		r.fuelUse = math.Max(0, r.design.FuelUsePerMkm)
	}
	r.usesFuel = r.fuelUse > 1e-12 && r.fuelCap > 1e-9
	r.fuel = ship.FuelTons
	if r.usesFuel {
		if r.fuel < 0 {
			r.fuel = r.fuelCap
		}
		r.fuel = mathx.Clamp(r.fuel, 0, r.fuelCap)
	} else {
		r.fuel = math.Max(0, r.fuel)
	}

	if opts.SimulateRefuel {
		r.colonyIDs = st.SortedColonyIDs()
		r.colonyFuel = make(map[world.ID]float64, len(r.colonyIDs))
		for _, id := range r.colonyIDs {
			r.colonyFuel[id] = st.Colonies[id].Mineral("Fuel")
		}
	}
	return r
}

// stepState accumulates one order's effects.
type stepState struct {
	PlannedOrderStep
	notes  []string
	stop   bool
	reason string
}

func (s *stepState) note(format string, args ...any) {
	s.notes = append(s.notes, fmt.Sprintf(format, args...))
}

// fail marks the step infeasible and ends the plan.
func (s *stepState) fail(reason, note string) {
	s.Feasible = false
	s.halt(reason, note)
}

// halt ends the plan after this step; the step itself still happens.
func (s *stepState) halt(reason, note string) {
	s.stop = true
	s.reason = reason
	if note != "" {
		s.notes = append(s.notes, note)
	}
}

func (r *run) step(o world.Order) stepState {
	s := stepState{PlannedOrderStep: PlannedOrderStep{Feasible: true, FuelBeforeTons: r.fuel}}
	if o != nil {
		s.Kind = o.Kind()
	}
	s.Label = world.OrderString(o)

	r.refuel(&s)
	r.apply(&s, o)

	s.FuelAfterTons = r.fuel
	s.SystemID = r.sys
	s.Position = r.pos
	s.DeltaDays = math.Max(0, s.DeltaDays)
	s.Note = strings.Join(s.notes, "; ")
	return s
}

// refuel tops up from the closest mutually friendly colony in docking range.
// Colony stocks are a local copy that drains as the plan draws on them.
func (r *run) refuel(s *stepState) {
	if !r.opts.SimulateRefuel || !r.usesFuel {
		return
	}
	need := math.Max(0, r.fuelCap-r.fuel)
	if need <= 1e-9 {
		return
	}
	best := world.InvalidID
	bestDist := math.Inf(1)
	for _, id := range r.colonyIDs {
		c := r.st.Colonies[id]
		if !r.st.AreMutualFriendly(r.ship.FactionID, c.FactionID) {
			continue
		}
		b := r.st.Bodies[c.BodyID]
		if b == nil || b.SystemID != r.sys {
			continue
		}
		p, ok := r.bodyPos(b.ID, r.t)
		if !ok {
			continue
		}
		d := mathx.Dist(p, r.pos)
		if d > r.dockRange+1e-9 {
			continue
		}
		if d < bestDist {
			best, bestDist = id, d
		}
	}
	if best == world.InvalidID {
		return
	}
	take := math.Min(need, r.colonyFuel[best])
	if take <= 1e-9 {
		return
	}
	r.colonyFuel[best] -= take
	r.fuel = mathx.Clamp(r.fuel+take, 0, r.fuelCap)
	s.RefuelTons += take
	s.note("refueled +%.1f t at %s", take, r.st.Colonies[best].Name)
}

func (r *run) bodyPos(id world.ID, t float64) (world.Vec2, bool) {
	b := r.st.Bodies[id]
	if b == nil {
		return world.Vec2{}, false
	}
	if !r.opts.PredictOrbits {
		return b.Position, true
	}
	return orbit.Predict(r.orbitNode, uint64(id), t)
}

func (r *run) orbitNode(id uint64) (orbit.Node, bool) {
	b := r.st.Bodies[world.ID(id)]
	if b == nil {
		return orbit.Node{}, false
	}
	return orbit.Node{
		Parent:   uint64(b.ParentBodyID),
		Position: b.Position,
		Elements: orbit.Elements{
			RadiusMkm:           b.OrbitRadiusMkm,
			PeriodDays:          b.OrbitPeriodDays,
			PhaseRadians:        b.OrbitPhaseRadians,
			Eccentricity:        b.OrbitEccentricity,
			ArgPeriapsisRadians: b.OrbitArgPeriapsisRadians,
		},
	}, true
}

// move covers cover megameters and lands on target. It reports false after
// marking the step infeasible.
func (r *run) move(s *stepState, target world.Vec2, cover, dt float64) bool {
	if cover > 1e-12 && r.mkmPerDay <= 0 {
		s.fail(ReasonNoEngines, "ship has no engines")
		return false
	}
	burn := 0.0
	if r.usesFuel {
		burn = cover * r.fuelUse
		if burn > r.fuel+1e-9 {
			s.fail(ReasonOutOfFuel, fmt.Sprintf("insufficient fuel (%.1f t) for burn (%.1f t)", r.fuel, burn))
			return false
		}
		burn = math.Min(burn, r.fuel)
		r.fuel -= burn
	}
	s.BurnTons += burn
	s.DistanceMkm += cover
	s.DeltaDays += dt
	r.t += dt
	r.pos = target
	return true
}

func (r *run) travelToPoint(s *stepState, target world.Vec2, threshold float64) bool {
	cover := math.Max(0, mathx.Dist(target, r.pos)-math.Max(0, threshold))
	dt := 0.0
	if r.mkmPerDay > 0 {
		dt = cover / r.mkmPerDay
	}
	return r.move(s, target, cover, dt)
}

func (r *run) travelToBody(s *stepState, bodyID world.ID, threshold float64) bool {
	b := r.st.Bodies[bodyID]
	if b == nil {
		s.fail(ReasonInvalidTarget, "target missing")
		return false
	}
	if b.SystemID != r.sys {
		s.fail(ReasonWrongSystem, "target body is in another system")
		return false
	}
	dt, cover, target := r.intercept(bodyID, threshold)
	return r.move(s, target, cover, dt)
}

// intercept solves arrival time against the body's position at arrival by
// fixed-point iteration.
func (r *run) intercept(bodyID world.ID, threshold float64) (dt, cover float64, target world.Vec2) {
	threshold = math.Max(0, threshold)
	target, _ = r.bodyPos(bodyID, r.t)
	cover = math.Max(0, mathx.Dist(target, r.pos)-threshold)
	if r.mkmPerDay <= 0 {
		return 0, cover, target
	}
	for range 8 {
		cover = math.Max(0, mathx.Dist(target, r.pos)-threshold)
		next := cover / r.mkmPerDay
		p, ok := r.bodyPos(bodyID, r.t+next)
		if !ok {
			break
		}
		moved := mathx.Dist(p, target)
		diff := math.Abs(next - dt)
		target, dt = p, next
		if diff < 1e-6 && moved < 1e-3 {
			break
		}
	}
	return dt, dt * r.mkmPerDay, target
}

func (r *run) travelToColony(s *stepState, colonyID world.ID, threshold float64) bool {
	c := r.st.Colonies[colonyID]
	if c == nil {
		s.fail(ReasonInvalidTarget, "target missing")
		return false
	}
	return r.travelToBody(s, c.BodyID, threshold)
}

func (r *run) travelToJump(s *stepState, jumpID world.ID) (*world.JumpPoint, bool) {
	jp := r.st.JumpPoints[jumpID]
	if jp == nil {
		s.fail(ReasonInvalidTarget, "target missing")
		return nil, false
	}
	if jp.SystemID != r.sys {
		s.fail(ReasonWrongSystem, "jump point is in another system")
		return nil, false
	}
	return jp, r.travelToPoint(s, jp.Position, r.dockRange)
}

func (r *run) travelToShip(s *stepState, shipID world.ID, threshold float64) bool {
	tgt := r.st.Ships[shipID]
	if tgt == nil {
		s.fail(ReasonInvalidTarget, "target missing")
		return false
	}
	if tgt.SystemID != r.sys {
		s.fail(ReasonWrongSystem, "target ship is in another system")
		return false
	}
	return r.travelToPoint(s, tgt.Position, threshold)
}

// wait holds position for days.
func (r *run) wait(s *stepState, days float64) {
	days = math.Max(0, days)
	s.DeltaDays += days
	r.t += days
}
