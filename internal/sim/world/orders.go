package world

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Order is one entry of a ship's order queue. The set of variants is closed;
// switch on the concrete type.
type Order interface {
	Kind() string
	isOrder()
}

type MoveToPoint struct {
	Target Vec2 `json:"target_mkm"`
}

type MoveToBody struct {
	BodyID ID `json:"body_id"`
}

type ColonizeBody struct {
	BodyID     ID     `json:"body_id"`
	ColonyName string `json:"colony_name,omitempty"`
}

// OrbitBody holds station at a body. DurationDays < 0 orbits forever.
type OrbitBody struct {
	BodyID       ID      `json:"body_id"`
	DurationDays int     `json:"duration_days"`
	ProgressDays float64 `json:"progress_days,omitempty"`
}

type TravelViaJump struct {
	JumpID ID `json:"jump_id"`
}

type SurveyJumpPoint struct {
	JumpID          ID   `json:"jump_id"`
	TransitWhenDone bool `json:"transit_when_done,omitempty"`
}

type AttackShip struct {
	TargetID          ID   `json:"target_ship_id"`
	HasLastKnown      bool `json:"has_last_known,omitempty"`
	LastKnownPosition Vec2 `json:"last_known_position_mkm"`
}

type EscortShip struct {
	TargetID             ID      `json:"target_ship_id"`
	FollowDistanceMkm    float64 `json:"follow_distance_mkm"`
	RestrictToDiscovered bool    `json:"restrict_to_discovered,omitempty"`
	AllowNeutral         bool    `json:"allow_neutral,omitempty"`
}

type WaitDays struct {
	Days         int     `json:"days"`
	ProgressDays float64 `json:"progress_days,omitempty"`
}

// LoadMineral with an empty Mineral loads any mineral; Tons <= 0 means as much
// as fits.
type LoadMineral struct {
	ColonyID ID      `json:"colony_id"`
	Mineral  string  `json:"mineral,omitempty"`
	Tons     float64 `json:"tons,omitempty"`
}

type UnloadMineral struct {
	ColonyID ID      `json:"colony_id"`
	Mineral  string  `json:"mineral,omitempty"`
	Tons     float64 `json:"tons,omitempty"`
}

type MineBody struct {
	BodyID       ID     `json:"body_id"`
	Mineral      string `json:"mineral,omitempty"`
	StopWhenFull bool   `json:"stop_when_cargo_full,omitempty"`
}

type LoadTroops struct {
	ColonyID ID      `json:"colony_id"`
	Strength float64 `json:"strength,omitempty"`
}

type UnloadTroops struct {
	ColonyID ID      `json:"colony_id"`
	Strength float64 `json:"strength,omitempty"`
}

type LoadColonists struct {
	ColonyID ID      `json:"colony_id"`
	Millions float64 `json:"millions,omitempty"`
}

type UnloadColonists struct {
	ColonyID ID      `json:"colony_id"`
	Millions float64 `json:"millions,omitempty"`
}

type InvadeColony struct {
	ColonyID ID `json:"colony_id"`
}

// BombardColony fires on a colony. DurationDays < 0 bombards forever.
type BombardColony struct {
	ColonyID     ID      `json:"colony_id"`
	DurationDays int     `json:"duration_days"`
	ProgressDays float64 `json:"progress_days,omitempty"`
}

type SalvageWreck struct {
	WreckID ID      `json:"wreck_id"`
	Mineral string  `json:"mineral,omitempty"`
	Tons    float64 `json:"tons,omitempty"`
}

// SalvageWreckLoop shuttles between a wreck and a drop-off colony until the
// wreck is empty. Mode is 0 while salvaging and 1 while delivering.
type SalvageWreckLoop struct {
	WreckID              ID   `json:"wreck_id"`
	DropoffColonyID      ID   `json:"dropoff_colony_id,omitempty"`
	RestrictToDiscovered bool `json:"restrict_to_discovered,omitempty"`
	Mode                 int  `json:"mode,omitempty"`
}

// InvestigateAnomaly with DurationDays 0 uses the anomaly's own duration.
type InvestigateAnomaly struct {
	AnomalyID    ID      `json:"anomaly_id"`
	DurationDays int     `json:"duration_days,omitempty"`
	ProgressDays float64 `json:"progress_days,omitempty"`
}

type TransferCargoToShip struct {
	TargetID ID      `json:"target_ship_id"`
	Mineral  string  `json:"mineral,omitempty"`
	Tons     float64 `json:"tons,omitempty"`
}

type TransferFuelToShip struct {
	TargetID ID      `json:"target_ship_id"`
	Tons     float64 `json:"tons,omitempty"`
}

type TransferTroopsToShip struct {
	TargetID ID      `json:"target_ship_id"`
	Strength float64 `json:"strength,omitempty"`
}

type TransferColonistsToShip struct {
	TargetID ID      `json:"target_ship_id"`
	Millions float64 `json:"millions,omitempty"`
}

type ScrapShip struct {
	ColonyID ID `json:"colony_id"`
}

func (MoveToPoint) Kind() string             { return "move_to_point" }
func (MoveToBody) Kind() string              { return "move_to_body" }
func (ColonizeBody) Kind() string            { return "colonize_body" }
func (OrbitBody) Kind() string               { return "orbit_body" }
func (TravelViaJump) Kind() string           { return "travel_via_jump" }
func (SurveyJumpPoint) Kind() string         { return "survey_jump_point" }
func (AttackShip) Kind() string              { return "attack_ship" }
func (EscortShip) Kind() string              { return "escort_ship" }
func (WaitDays) Kind() string                { return "wait_days" }
func (LoadMineral) Kind() string             { return "load_mineral" }
func (UnloadMineral) Kind() string           { return "unload_mineral" }
func (MineBody) Kind() string                { return "mine_body" }
func (LoadTroops) Kind() string              { return "load_troops" }
func (UnloadTroops) Kind() string            { return "unload_troops" }
func (LoadColonists) Kind() string           { return "load_colonists" }
func (UnloadColonists) Kind() string         { return "unload_colonists" }
func (InvadeColony) Kind() string            { return "invade_colony" }
func (BombardColony) Kind() string           { return "bombard_colony" }
func (SalvageWreck) Kind() string            { return "salvage_wreck" }
func (SalvageWreckLoop) Kind() string        { return "salvage_wreck_loop" }
func (InvestigateAnomaly) Kind() string      { return "investigate_anomaly" }
func (TransferCargoToShip) Kind() string     { return "transfer_cargo_to_ship" }
func (TransferFuelToShip) Kind() string      { return "transfer_fuel_to_ship" }
func (TransferTroopsToShip) Kind() string    { return "transfer_troops_to_ship" }
func (TransferColonistsToShip) Kind() string { return "transfer_colonists_to_ship" }
func (ScrapShip) Kind() string               { return "scrap_ship" }

func (MoveToPoint) isOrder()             {}
func (MoveToBody) isOrder()              {}
func (ColonizeBody) isOrder()            {}
func (OrbitBody) isOrder()               {}
func (TravelViaJump) isOrder()           {}
func (SurveyJumpPoint) isOrder()         {}
func (AttackShip) isOrder()              {}
func (EscortShip) isOrder()              {}
func (WaitDays) isOrder()                {}
func (LoadMineral) isOrder()             {}
func (UnloadMineral) isOrder()           {}
func (MineBody) isOrder()                {}
func (LoadTroops) isOrder()              {}
func (UnloadTroops) isOrder()            {}
func (LoadColonists) isOrder()           {}
func (UnloadColonists) isOrder()         {}
func (InvadeColony) isOrder()            {}
func (BombardColony) isOrder()           {}
func (SalvageWreck) isOrder()            {}
func (SalvageWreckLoop) isOrder()        {}
func (InvestigateAnomaly) isOrder()      {}
func (TransferCargoToShip) isOrder()     {}
func (TransferFuelToShip) isOrder()      {}
func (TransferTroopsToShip) isOrder()    {}
func (TransferColonistsToShip) isOrder() {}
func (ScrapShip) isOrder()               {}

// Queue is a ship's pending orders, front first. On the wire every order is
// an object tagged with "type".
type Queue []Order

func (q Queue) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, o := range q {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := MarshalOrder(o)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (q *Queue) UnmarshalJSON(b []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(b, &raws); err != nil {
		return err
	}
	out := make(Queue, 0, len(raws))
	for i, raw := range raws {
		o, err := UnmarshalOrder(raw)
		if err != nil {
			return fmt.Errorf("order %d: %w", i, err)
		}
		out = append(out, o)
	}
	*q = out
	return nil
}

// MarshalOrder encodes o as its fields plus a leading "type" member.
func MarshalOrder(o Order) ([]byte, error) {
	if o == nil {
		return nil, fmt.Errorf("nil order")
	}
	body, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	tag, _ := json.Marshal(o.Kind())
	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	buf.Write(tag)
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func UnmarshalOrder(raw []byte) (Order, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case "move_to_point":
		return decodeInto(raw, MoveToPoint{})
	case "move_to_body":
		return decodeInto(raw, MoveToBody{})
	case "colonize_body":
		return decodeInto(raw, ColonizeBody{})
	case "orbit_body":
		return decodeInto(raw, OrbitBody{DurationDays: -1})
	case "travel_via_jump":
		return decodeInto(raw, TravelViaJump{})
	case "survey_jump_point":
		return decodeInto(raw, SurveyJumpPoint{})
	case "attack_ship":
		return decodeInto(raw, AttackShip{})
	case "escort_ship":
		return decodeInto(raw, EscortShip{FollowDistanceMkm: 1.0})
	case "wait_days":
		return decodeInto(raw, WaitDays{})
	case "load_mineral":
		return decodeInto(raw, LoadMineral{})
	case "unload_mineral":
		return decodeInto(raw, UnloadMineral{})
	case "mine_body":
		return decodeInto(raw, MineBody{StopWhenFull: true})
	case "load_troops":
		return decodeInto(raw, LoadTroops{})
	case "unload_troops":
		return decodeInto(raw, UnloadTroops{})
	case "load_colonists":
		return decodeInto(raw, LoadColonists{})
	case "unload_colonists":
		return decodeInto(raw, UnloadColonists{})
	case "invade_colony":
		return decodeInto(raw, InvadeColony{})
	case "bombard_colony":
		return decodeInto(raw, BombardColony{DurationDays: -1})
	case "salvage_wreck":
		return decodeInto(raw, SalvageWreck{})
	case "salvage_wreck_loop":
		return decodeInto(raw, SalvageWreckLoop{})
	case "investigate_anomaly":
		return decodeInto(raw, InvestigateAnomaly{})
	case "transfer_cargo_to_ship":
		return decodeInto(raw, TransferCargoToShip{})
	case "transfer_fuel_to_ship":
		return decodeInto(raw, TransferFuelToShip{})
	case "transfer_troops_to_ship":
		return decodeInto(raw, TransferTroopsToShip{})
	case "transfer_colonists_to_ship":
		return decodeInto(raw, TransferColonistsToShip{})
	case "scrap_ship":
		return decodeInto(raw, ScrapShip{})
	default:
		return nil, fmt.Errorf("unknown order type %q", head.Type)
	}
}

// decodeInto overlays raw onto v, so fields absent from raw keep v's defaults.
func decodeInto[T Order](raw []byte, v T) (Order, error) {
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// OrderString renders o for logs and plan step labels.
func OrderString(o Order) string {
	switch o := o.(type) {
	case MoveToPoint:
		return fmt.Sprintf("Move to (%.1f, %.1f)", o.Target.X, o.Target.Y)
	case MoveToBody:
		return fmt.Sprintf("Move to body %d", o.BodyID)
	case ColonizeBody:
		return fmt.Sprintf("Colonize body %d", o.BodyID)
	case OrbitBody:
		if o.DurationDays < 0 {
			return fmt.Sprintf("Orbit body %d (indefinite)", o.BodyID)
		}
		return fmt.Sprintf("Orbit body %d for %d days", o.BodyID, o.DurationDays)
	case TravelViaJump:
		return fmt.Sprintf("Travel via jump point %d", o.JumpID)
	case SurveyJumpPoint:
		if o.TransitWhenDone {
			return fmt.Sprintf("Survey jump point %d then transit", o.JumpID)
		}
		return fmt.Sprintf("Survey jump point %d", o.JumpID)
	case AttackShip:
		return fmt.Sprintf("Attack ship %d", o.TargetID)
	case EscortShip:
		return fmt.Sprintf("Escort ship %d", o.TargetID)
	case WaitDays:
		return fmt.Sprintf("Wait %d days", o.Days)
	case LoadMineral:
		return fmt.Sprintf("Load %s from colony %d", mineralLabel(o.Mineral), o.ColonyID)
	case UnloadMineral:
		return fmt.Sprintf("Unload %s to colony %d", mineralLabel(o.Mineral), o.ColonyID)
	case MineBody:
		return fmt.Sprintf("Mine %s at body %d", mineralLabel(o.Mineral), o.BodyID)
	case LoadTroops:
		return fmt.Sprintf("Load troops from colony %d", o.ColonyID)
	case UnloadTroops:
		return fmt.Sprintf("Unload troops to colony %d", o.ColonyID)
	case LoadColonists:
		return fmt.Sprintf("Load colonists from colony %d", o.ColonyID)
	case UnloadColonists:
		return fmt.Sprintf("Unload colonists to colony %d", o.ColonyID)
	case InvadeColony:
		return fmt.Sprintf("Invade colony %d", o.ColonyID)
	case BombardColony:
		return fmt.Sprintf("Bombard colony %d", o.ColonyID)
	case SalvageWreck:
		return fmt.Sprintf("Salvage wreck %d", o.WreckID)
	case SalvageWreckLoop:
		return fmt.Sprintf("Salvage loop wreck %d", o.WreckID)
	case InvestigateAnomaly:
		return fmt.Sprintf("Investigate anomaly %d", o.AnomalyID)
	case TransferCargoToShip:
		return fmt.Sprintf("Transfer cargo to ship %d", o.TargetID)
	case TransferFuelToShip:
		return fmt.Sprintf("Transfer fuel to ship %d", o.TargetID)
	case TransferTroopsToShip:
		return fmt.Sprintf("Transfer troops to ship %d", o.TargetID)
	case TransferColonistsToShip:
		return fmt.Sprintf("Transfer colonists to ship %d", o.TargetID)
	case ScrapShip:
		return fmt.Sprintf("Scrap at colony %d", o.ColonyID)
	case nil:
		return "(none)"
	default:
		return o.Kind()
	}
}

func mineralLabel(m string) string {
	if m == "" {
		return "minerals"
	}
	return m
}
