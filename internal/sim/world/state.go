package world

import (
	"fmt"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/world/logic/mathx"
)

// ID identifies any world entity. Zero is never a valid id.
type ID uint64

const InvalidID ID = 0

type Vec2 = mathx.Vec2

// Date is the simulation clock: whole days since epoch plus hour of day.
type Date struct {
	Day  int64 `json:"day"`
	Hour int   `json:"hour"`
}

// Days returns fractional days since epoch; hours are clamped to 0..23.
func (d Date) Days() float64 {
	return float64(d.Day) + float64(mathx.ClampInt(d.Hour, 0, 23))/24
}

type DiplomacyStatus int

const (
	Friendly DiplomacyStatus = iota
	Neutral
	Hostile
)

var diplomacyNames = [...]string{"friendly", "neutral", "hostile"}

func (d DiplomacyStatus) String() string {
	if d < Friendly || d > Hostile {
		return "hostile"
	}
	return diplomacyNames[d]
}

func (d DiplomacyStatus) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *DiplomacyStatus) UnmarshalText(b []byte) error {
	for i, n := range diplomacyNames {
		if n == string(b) {
			*d = DiplomacyStatus(i)
			return nil
		}
	}
	return fmt.Errorf("unknown diplomacy status %q", string(b))
}

type StarSystem struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
	// SensorEnvironment scales sensor ranges inside the system (nebulae, storms).
	// Zero means 1.
	SensorEnvironment float64 `json:"sensor_environment,omitempty"`
}

type Body struct {
	ID           ID     `json:"id"`
	Name         string `json:"name"`
	SystemID     ID     `json:"system_id"`
	ParentBodyID ID     `json:"parent_body_id,omitempty"`
	Position     Vec2   `json:"position_mkm"`

	OrbitRadiusMkm           float64 `json:"orbit_radius_mkm,omitempty"`
	OrbitPeriodDays          float64 `json:"orbit_period_days,omitempty"`
	OrbitPhaseRadians        float64 `json:"orbit_phase_radians,omitempty"`
	OrbitEccentricity        float64 `json:"orbit_eccentricity,omitempty"`
	OrbitArgPeriapsisRadians float64 `json:"orbit_arg_periapsis_radians,omitempty"`

	MassEarths    float64 `json:"mass_earths"`
	SurfaceTempK  float64 `json:"surface_temp_k"`
	AtmosphereAtm float64 `json:"atmosphere_atm"`
	OxygenAtm     float64 `json:"oxygen_atm"`

	TerraformTargetTempK float64 `json:"terraforming_target_temp_k,omitempty"`
	TerraformTargetAtm   float64 `json:"terraforming_target_atm,omitempty"`
	TerraformTargetO2Atm float64 `json:"terraforming_target_o2_atm,omitempty"`
	TerraformComplete    bool    `json:"terraforming_complete,omitempty"`
	TerraformWeightTemp  float64 `json:"terraforming_weight_temp,omitempty"`
	TerraformWeightAtm   float64 `json:"terraforming_weight_atm,omitempty"`
	TerraformWeightO2    float64 `json:"terraforming_weight_o2,omitempty"`
}

// HasTerraformTarget reports whether any climate axis has a target.
func (b *Body) HasTerraformTarget() bool {
	return b.TerraformTargetTempK > 0 || b.TerraformTargetAtm > 0 || b.TerraformTargetO2Atm > 0
}

type JumpPoint struct {
	ID           ID     `json:"id"`
	Name         string `json:"name"`
	SystemID     ID     `json:"system_id"`
	Position     Vec2   `json:"position_mkm"`
	LinkedJumpID ID     `json:"linked_jump_id,omitempty"`
}

type Colony struct {
	ID            ID                 `json:"id"`
	Name          string             `json:"name"`
	BodyID        ID                 `json:"body_id"`
	FactionID     ID                 `json:"faction_id"`
	PopulationM   float64            `json:"population_millions"`
	Minerals      map[string]float64 `json:"minerals,omitempty"`
	Installations map[string]int     `json:"installations,omitempty"`
}

// Mineral returns the stockpile of name, treating negative values as empty.
func (c *Colony) Mineral(name string) float64 {
	return max(0, c.Minerals[name])
}

type Ship struct {
	ID        ID     `json:"id"`
	Name      string `json:"name"`
	FactionID ID     `json:"faction_id"`
	SystemID  ID     `json:"system_id"`
	Position  Vec2   `json:"position_mkm"`
	DesignID  string `json:"design_id"`

	// SpeedKmS overrides the design speed when positive.
	SpeedKmS float64 `json:"speed_km_s,omitempty"`
	// FuelTons below zero means the tank was never initialized and is full.
	FuelTons float64 `json:"fuel_tons"`
	HP       float64 `json:"hp"`
}

type ShipRole string

const (
	RoleSurveyor  ShipRole = "surveyor"
	RoleFreighter ShipRole = "freighter"
	RoleCombatant ShipRole = "combatant"
)

type ShipDesign struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Role             ShipRole `json:"role,omitempty"`
	SpeedKmS         float64  `json:"speed_km_s"`
	FuelCapacityTons float64  `json:"fuel_capacity_tons"`
	FuelUsePerMkm    float64  `json:"fuel_use_per_mkm"`
	WeaponRangeMkm   float64  `json:"weapon_range_mkm,omitempty"`
	SensorRangeMkm   float64  `json:"sensor_range_mkm,omitempty"`
	Engines          int      `json:"engines"`
}

type Wreck struct {
	ID       ID                 `json:"id"`
	Name     string             `json:"name"`
	SystemID ID                 `json:"system_id"`
	Position Vec2               `json:"position_mkm"`
	Kind     string             `json:"kind,omitempty"`
	Minerals map[string]float64 `json:"minerals,omitempty"`
}

type Anomaly struct {
	ID                ID     `json:"id"`
	Name              string `json:"name"`
	SystemID          ID     `json:"system_id"`
	Position          Vec2   `json:"position_mkm"`
	Kind              string `json:"kind,omitempty"`
	InvestigationDays int    `json:"investigation_days"`
	Resolved          bool   `json:"resolved,omitempty"`
}

type Faction struct {
	ID                 ID                     `json:"id"`
	Name               string                 `json:"name"`
	Relations          map[ID]DiplomacyStatus `json:"relations,omitempty"`
	DiscoveredSystems  []ID                   `json:"discovered_systems,omitempty"`
	SurveyedJumpPoints []ID                   `json:"surveyed_jump_points,omitempty"`
	JumpSurveyProgress map[ID]float64         `json:"jump_survey_progress,omitempty"`

	// TerraformMultiplier scales terraforming output; zero means 1.
	TerraformMultiplier float64 `json:"terraforming_multiplier,omitempty"`
}

// InstallationDef is the static content entry for a colony installation.
type InstallationDef struct {
	ID                       string  `json:"id"`
	Name                     string  `json:"name"`
	TerraformingPointsPerDay float64 `json:"terraforming_points_per_day,omitempty"`
}

// State is a read-only snapshot of the world. Callers build it, then hand it
// to planners by pointer; nothing in this module mutates it.
type State struct {
	Date Date `json:"date"`

	Systems       map[ID]*StarSystem         `json:"systems"`
	Bodies        map[ID]*Body               `json:"bodies"`
	JumpPoints    map[ID]*JumpPoint          `json:"jump_points"`
	Colonies      map[ID]*Colony             `json:"colonies"`
	Ships         map[ID]*Ship               `json:"ships"`
	Wrecks        map[ID]*Wreck              `json:"wrecks,omitempty"`
	Anomalies     map[ID]*Anomaly            `json:"anomalies,omitempty"`
	Factions      map[ID]*Faction            `json:"factions"`
	Designs       map[string]*ShipDesign     `json:"designs"`
	Installations map[string]InstallationDef `json:"installations,omitempty"`
	ShipOrders    map[ID]Queue               `json:"ship_orders,omitempty"`
}

func New() *State {
	return &State{
		Systems:       map[ID]*StarSystem{},
		Bodies:        map[ID]*Body{},
		JumpPoints:    map[ID]*JumpPoint{},
		Colonies:      map[ID]*Colony{},
		Ships:         map[ID]*Ship{},
		Wrecks:        map[ID]*Wreck{},
		Anomalies:     map[ID]*Anomaly{},
		Factions:      map[ID]*Faction{},
		Designs:       map[string]*ShipDesign{},
		Installations: map[string]InstallationDef{},
		ShipOrders:    map[ID]Queue{},
	}
}
