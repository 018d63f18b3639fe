package planner

import (
	"math"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/world"
)

func (r *run) apply(s *stepState, o world.Order) {
	switch o := o.(type) {
	case world.WaitDays:
		days := math.Max(0, float64(o.Days)-math.Max(0, o.ProgressDays))
		r.wait(s, days)
		s.note("waited %g d", days)

	case world.MoveToPoint:
		r.travelToPoint(s, o.Target, r.arriveEps)

	case world.MoveToBody:
		r.travelToBody(s, o.BodyID, r.dockRange)

	case world.OrbitBody:
		if !r.travelToBody(s, o.BodyID, r.dockRange) {
			return
		}
		r.hold(s, o.DurationDays, o.ProgressDays, "orbit held %g d")

	case world.ColonizeBody:
		if r.travelToBody(s, o.BodyID, r.dockRange) {
			r.refuel(s)
			s.halt(ReasonTerminal, "colonizing consumes the ship")
		}

	case world.ScrapShip:
		if r.travelToColony(s, o.ColonyID, r.dockRange) {
			r.refuel(s)
			s.halt(ReasonTerminal, "ship is scrapped")
		}

	case world.TravelViaJump:
		jp, ok := r.travelToJump(s, o.JumpID)
		if ok {
			r.transit(s, jp)
		}

	case world.SurveyJumpPoint:
		r.survey(s, o)

	case world.InvestigateAnomaly:
		r.investigate(s, o)

	case world.LoadMineral:
		r.dockAtColony(s, o.ColonyID)
	case world.UnloadMineral:
		r.dockAtColony(s, o.ColonyID)
	case world.LoadTroops:
		r.dockAtColony(s, o.ColonyID)
	case world.UnloadTroops:
		r.dockAtColony(s, o.ColonyID)
	case world.LoadColonists:
		r.dockAtColony(s, o.ColonyID)
	case world.UnloadColonists:
		r.dockAtColony(s, o.ColonyID)

	case world.MineBody:
		if r.travelToBody(s, o.BodyID, r.dockRange) {
			r.refuel(s)
			s.note("mining time not estimated")
		}

	case world.TransferCargoToShip:
		r.dockAtShip(s, o.TargetID)
	case world.TransferFuelToShip:
		r.dockAtShip(s, o.TargetID)
	case world.TransferTroopsToShip:
		r.dockAtShip(s, o.TargetID)
	case world.TransferColonistsToShip:
		r.dockAtShip(s, o.TargetID)

	case world.InvadeColony:
		if r.travelToColony(s, o.ColonyID, r.dockRange) {
			s.halt(ReasonCombat, "invasion outcome depends on combat")
		}

	case world.BombardColony:
		if !r.travelToColony(s, o.ColonyID, r.dockRange) {
			return
		}
		r.hold(s, o.DurationDays, o.ProgressDays, "bombarded %g d")

	case world.AttackShip:
		r.attack(s, o)

	case world.EscortShip:
		r.escort(s, o)

	case world.SalvageWreck:
		r.travelToWreck(s, o.WreckID, false)

	case world.SalvageWreckLoop:
		if r.travelToWreck(s, o.WreckID, o.RestrictToDiscovered) {
			s.halt(ReasonIndefinite, "salvage loop repeats until the wreck is empty")
		}

	default:
		s.halt(ReasonUnsupported, "unsupported order")
	}
}

// hold stays on station for duration days; a negative duration never ends.
func (r *run) hold(s *stepState, duration int, progress float64, format string) {
	if duration < 0 {
		s.halt(ReasonInfiniteOrbit, "holds indefinitely")
		return
	}
	days := math.Max(0, float64(duration)-math.Max(0, progress))
	if days > 0 {
		r.wait(s, days)
		s.note(format, days)
	}
}

func (r *run) dockAtColony(s *stepState, colonyID world.ID) {
	if r.travelToColony(s, colonyID, r.dockRange) {
		r.refuel(s)
	}
}

func (r *run) dockAtShip(s *stepState, shipID world.ID) {
	if r.travelToShip(s, shipID, r.dockRange) {
		r.refuel(s)
	}
}

func (r *run) transit(s *stepState, jp *world.JumpPoint) bool {
	dest := r.st.JumpPoints[jp.LinkedJumpID]
	if jp.LinkedJumpID == world.InvalidID || dest == nil {
		s.fail(ReasonInvalidTarget, "jump point has no linked destination")
		return false
	}
	r.sys = dest.SystemID
	r.pos = dest.Position
	return true
}

func (r *run) survey(s *stepState, o world.SurveyJumpPoint) {
	jp, ok := r.travelToJump(s, o.JumpID)
	if !ok {
		return
	}
	js := r.cfg.JumpSurvey
	if js.PointsRequired > 1e-9 && !r.st.IsJumpPointSurveyed(r.viewer, jp.ID) {
		progress := 0.0
		if f := r.st.Factions[r.viewer]; f != nil {
			progress = f.JumpSurveyProgress[jp.ID]
		}
		if math.IsNaN(progress) || progress < 0 {
			progress = 0
		}
		rate := r.surveyRate(jp.SystemID)
		if rate <= 1e-12 {
			s.halt(ReasonIndefinite, "survey rate is zero (no sensors)")
			return
		}
		days := math.Ceil(math.Max(0, js.PointsRequired-progress) / rate)
		if days > 0 {
			r.wait(s, days)
			s.note("surveying %g d", days)
		}
	}
	if o.TransitWhenDone {
		r.transit(s, jp)
	}
}

// surveyRate is survey points per day for this ship in system sys.
func (r *run) surveyRate(sys world.ID) float64 {
	if r.design == nil {
		return 0
	}
	js := r.cfg.JumpSurvey
	env := 1.0
	if ss := r.st.Systems[sys]; ss != nil && ss.SensorEnvironment > 0 {
		env = ss.SensorEnvironment
	}
	sensor := math.Max(0, r.design.SensorRangeMkm) * env
	roleMult := js.StrengthMultiplierOther
	if r.design.Role == world.RoleSurveyor {
		roleMult = js.StrengthMultiplierSurveyor
	}
	rate := sensor / math.Max(1e-9, js.ReferenceSensorRangeMkm) * math.Max(0, roleMult)
	if js.PointsPerDayCap > 0 {
		rate = math.Min(rate, js.PointsPerDayCap)
	}
	return math.Max(0, rate)
}

func (r *run) investigate(s *stepState, o world.InvestigateAnomaly) {
	an := r.st.Anomalies[o.AnomalyID]
	switch {
	case an == nil:
		s.fail(ReasonInvalidTarget, "target missing")
		return
	case an.Resolved:
		s.note("anomaly already resolved")
		return
	case r.design == nil || r.design.SensorRangeMkm <= 1e-6:
		s.fail(ReasonInvalidTarget, "cannot investigate without sensors")
		return
	case an.SystemID != r.sys:
		s.fail(ReasonWrongSystem, "anomaly is in another system")
		return
	}
	reach := math.Max(r.dockRange, r.design.SensorRangeMkm*0.5)
	if !r.travelToPoint(s, an.Position, reach) {
		return
	}
	dur := o.DurationDays
	if dur == 0 {
		dur = max(0, an.InvestigationDays)
	}
	days := math.Max(0, float64(dur)-math.Max(0, o.ProgressDays))
	r.wait(s, days)
	s.note("investigating %g d", days)
}

func (r *run) attack(s *stepState, o world.AttackShip) {
	tgt := r.st.Ships[o.TargetID]
	switch {
	case tgt != nil && tgt.SystemID == r.sys:
		weapon := 0.0
		if r.design != nil {
			weapon = math.Max(0, r.design.WeaponRangeMkm)
		}
		if !r.travelToPoint(s, tgt.Position, math.Max(r.dockRange, weapon)) {
			return
		}
	case o.HasLastKnown:
		if !r.travelToPoint(s, o.LastKnownPosition, r.arriveEps) {
			return
		}
		s.note("heading to last known position")
	case tgt == nil:
		s.fail(ReasonInvalidTarget, "target missing")
		return
	default:
		s.fail(ReasonWrongSystem, "target ship is in another system")
		return
	}
	s.halt(ReasonCombat, "attack outcome depends on combat")
}

func (r *run) escort(s *stepState, o world.EscortShip) {
	tgt := r.st.Ships[o.TargetID]
	if tgt == nil {
		s.fail(ReasonInvalidTarget, "target missing")
		return
	}
	if !r.st.AreMutualFriendly(r.ship.FactionID, tgt.FactionID) {
		st := r.st.DiplomaticStatus(r.ship.FactionID, tgt.FactionID)
		if st == world.Hostile || !o.AllowNeutral {
			s.fail(ReasonInvalidTarget, "escort target is not friendly")
			return
		}
	}
	if o.RestrictToDiscovered && !r.st.IsSystemDiscovered(r.viewer, tgt.SystemID) {
		s.fail(ReasonInvalidTarget, "escort target is in an undiscovered system")
		return
	}
	if tgt.SystemID != r.sys {
		s.halt(ReasonIndefinite, "cross-system escort is not previewed")
		return
	}
	if !r.travelToPoint(s, tgt.Position, math.Max(r.dockRange, o.FollowDistanceMkm)) {
		return
	}
	s.halt(ReasonIndefinite, "escort has no fixed completion")
}

func (r *run) travelToWreck(s *stepState, wreckID world.ID, restrict bool) bool {
	w := r.st.Wrecks[wreckID]
	if w == nil {
		s.fail(ReasonInvalidTarget, "target missing")
		return false
	}
	if restrict && !r.st.IsSystemDiscovered(r.viewer, w.SystemID) {
		s.fail(ReasonInvalidTarget, "wreck is in an undiscovered system")
		return false
	}
	if w.SystemID != r.sys {
		s.fail(ReasonWrongSystem, "wreck is in another system")
		return false
	}
	return r.travelToPoint(s, w.Position, r.dockRange)
}
