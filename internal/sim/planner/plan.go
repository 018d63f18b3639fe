// Package planner forecasts how a ship's order queue plays out: arrival
// times, fuel burn and refuels, without touching the world.
package planner

import (
	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/tuning"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/world"
)

const DefaultMaxOrders = 512

// Truncation reasons.
const (
	ReasonCombat        = "combat"
	ReasonInfiniteOrbit = "infinite orbit"
	ReasonInvalidTarget = "invalid target"
	ReasonNoEngines     = "no engines"
	ReasonOutOfFuel     = "out of fuel"
	ReasonMaxOrders     = "max_orders reached"
	ReasonTerminal      = "terminal"
	ReasonIndefinite    = "indefinite"
	ReasonWrongSystem   = "wrong system"
	ReasonUnsupported   = "unsupported order"
)

type Options struct {
	// PredictOrbits aims moving-body orders at the body's predicted position
	// on arrival rather than its cached position.
	PredictOrbits bool `json:"predict_orbits"`
	// SimulateRefuel tops up the tank at mutually friendly colonies within
	// docking range.
	SimulateRefuel bool `json:"simulate_refuel"`
	// MaxOrders caps simulated orders; <= 0 means DefaultMaxOrders.
	MaxOrders int `json:"max_orders"`
	// ViewerFactionID decides survey and discovery checks; 0 means the ship's
	// own faction.
	ViewerFactionID world.ID `json:"viewer_faction_id,omitempty"`
}

func DefaultOptions() Options {
	return Options{PredictOrbits: true, SimulateRefuel: true, MaxOrders: DefaultMaxOrders}
}

type PlannedOrderStep struct {
	Kind  string `json:"kind"`
	Label string `json:"label"`

	// ETADays is cumulative from the start of the plan; DeltaDays is this
	// step alone.
	ETADays   float64 `json:"eta_days"`
	DeltaDays float64 `json:"delta_days"`

	// FuelAfterTons = FuelBeforeTons - BurnTons + RefuelTons.
	FuelBeforeTons float64 `json:"fuel_before_tons"`
	FuelAfterTons  float64 `json:"fuel_after_tons"`
	BurnTons       float64 `json:"burn_tons"`
	RefuelTons     float64 `json:"refuel_tons"`
	DistanceMkm    float64 `json:"distance_mkm"`

	SystemID world.ID   `json:"system_id"`
	Position world.Vec2 `json:"position_mkm"`
	Feasible bool       `json:"feasible"`
	Note     string     `json:"note,omitempty"`
}

type OrderPlan struct {
	OK              bool    `json:"ok"`
	Truncated       bool    `json:"truncated"`
	TruncatedReason string  `json:"truncated_reason,omitempty"`
	StartFuelTons   float64 `json:"start_fuel_tons"`
	EndFuelTons     float64 `json:"end_fuel_tons"`
	TotalETADays    float64 `json:"total_eta_days"`

	Steps []PlannedOrderStep `json:"steps"`
}

// PlanShip plans the ship's own queued orders.
func PlanShip(st *world.State, cfg tuning.SimConfig, shipID world.ID, opts Options) OrderPlan {
	return Plan(st, cfg, shipID, st.ShipOrders[shipID], opts)
}

// Plan simulates queue for shipID. The queue may be hypothetical; steps line
// up 1:1 with it until planning stops.
func Plan(st *world.State, cfg tuning.SimConfig, shipID world.ID, queue world.Queue, opts Options) OrderPlan {
	ship := st.Ships[shipID]
	if ship == nil {
		return OrderPlan{Truncated: true, TruncatedReason: ReasonInvalidTarget, Steps: []PlannedOrderStep{}}
	}
	r := newRun(st, cfg, ship, opts)

	plan := OrderPlan{OK: true, StartFuelTons: r.fuel, Steps: make([]PlannedOrderStep, 0, min(len(queue), r.maxOrders))}
	eta := 0.0
	for i, o := range queue {
		if i >= r.maxOrders {
			break
		}
		s := r.step(o)
		eta += s.DeltaDays
		s.ETADays = eta
		plan.Steps = append(plan.Steps, s.PlannedOrderStep)
		if s.stop {
			plan.Truncated = true
			plan.TruncatedReason = s.reason
			break
		}
	}
	if !plan.Truncated && len(queue) > r.maxOrders {
		plan.Truncated = true
		plan.TruncatedReason = ReasonMaxOrders
	}
	plan.TotalETADays = eta
	plan.EndFuelTons = r.fuel
	return plan
}
