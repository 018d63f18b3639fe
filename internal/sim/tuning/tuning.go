package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SimConfig holds the simulation constants the planner and terraforming
// forecast read. Distances are in megameters.
type SimConfig struct {
	SecondsPerDay     float64 `yaml:"seconds_per_day"`
	DockingRangeMkm   float64 `yaml:"docking_range_mkm"`
	ArrivalEpsilonMkm float64 `yaml:"arrival_epsilon_mkm"`

	Terraform  Terraform  `yaml:"terraforming"`
	JumpSurvey JumpSurvey `yaml:"jump_survey"`
}

type Terraform struct {
	TempKPerPointDay   float64 `yaml:"temp_k_per_point_day"`
	AtmPerPointDay     float64 `yaml:"atm_per_point_day"`
	O2AtmPerPointDay   float64 `yaml:"o2_atm_per_point_day"`
	TempToleranceK     float64 `yaml:"temp_tolerance_k"`
	AtmTolerance       float64 `yaml:"atm_tolerance"`
	O2ToleranceAtm     float64 `yaml:"o2_tolerance_atm"`
	O2MaxFractionAtm   float64 `yaml:"o2_max_fraction_of_atm"`
	DuraniumPerPoint   float64 `yaml:"duranium_per_point"`
	NeutroniumPerPoint float64 `yaml:"neutronium_per_point"`

	ScaleWithBodyMass      bool    `yaml:"scale_with_body_mass"`
	MinMassEarths          float64 `yaml:"min_mass_earths"`
	MassScalingExponent    float64 `yaml:"mass_scaling_exponent"`
	SplitPointsBetweenAxes bool    `yaml:"split_points_between_axes"`
}

type JumpSurvey struct {
	PointsRequired             float64 `yaml:"points_required"`
	ReferenceSensorRangeMkm    float64 `yaml:"reference_sensor_range_mkm"`
	StrengthMultiplierSurveyor float64 `yaml:"strength_multiplier_surveyor"`
	StrengthMultiplierOther    float64 `yaml:"strength_multiplier_other"`
	PointsPerDayCap            float64 `yaml:"points_per_day_cap"`
}

func Defaults() SimConfig {
	return SimConfig{
		SecondsPerDay:     86400,
		DockingRangeMkm:   3.0,
		ArrivalEpsilonMkm: 1e-6,
		Terraform: Terraform{
			TempKPerPointDay:       0.1,
			AtmPerPointDay:         0.001,
			O2AtmPerPointDay:       0.0005,
			TempToleranceK:         0.5,
			AtmTolerance:           0.01,
			O2ToleranceAtm:         0.005,
			O2MaxFractionAtm:       0.3,
			ScaleWithBodyMass:      true,
			MinMassEarths:          0.10,
			MassScalingExponent:    1.0,
			SplitPointsBetweenAxes: true,
		},
		JumpSurvey: JumpSurvey{
			PointsRequired:             1.0,
			ReferenceSensorRangeMkm:    400,
			StrengthMultiplierSurveyor: 1.0,
			StrengthMultiplierOther:    0.25,
			PointsPerDayCap:            5.0,
		},
	}
}

// Load reads path over Defaults, so keys missing from the file keep their
// default values.
func Load(path string) (SimConfig, error) {
	cfg := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("tuning: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("tuning.yaml: %w", err)
	}
	return cfg, nil
}

// Validate rejects negative rates and a non-positive day length.
func (c SimConfig) Validate() error {
	if c.SecondsPerDay <= 0 {
		return fmt.Errorf("seconds_per_day must be > 0, got %v", c.SecondsPerDay)
	}
	neg := []struct {
		name string
		v    float64
	}{
		{"docking_range_mkm", c.DockingRangeMkm},
		{"arrival_epsilon_mkm", c.ArrivalEpsilonMkm},
		{"terraforming.temp_k_per_point_day", c.Terraform.TempKPerPointDay},
		{"terraforming.atm_per_point_day", c.Terraform.AtmPerPointDay},
		{"terraforming.o2_atm_per_point_day", c.Terraform.O2AtmPerPointDay},
		{"terraforming.duranium_per_point", c.Terraform.DuraniumPerPoint},
		{"terraforming.neutronium_per_point", c.Terraform.NeutroniumPerPoint},
		{"jump_survey.points_required", c.JumpSurvey.PointsRequired},
		{"jump_survey.points_per_day_cap", c.JumpSurvey.PointsPerDayCap},
	}
	for _, n := range neg {
		if n.v < 0 {
			return fmt.Errorf("%s must be >= 0, got %v", n.name, n.v)
		}
	}
	return nil
}
