package terraform

import (
	"math"
	"testing"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/tuning"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/world"
)

// testWorld has body 1 at 290 K aiming for 300 K, with one colony of faction
// 1 producing pts points/day and holding duranium.
func testWorld(pts, duranium float64) *world.State {
	st := world.New()
	st.Factions[1] = &world.Faction{ID: 1}
	st.Installations["tf"] = world.InstallationDef{ID: "tf", TerraformingPointsPerDay: pts}
	st.Bodies[1] = &world.Body{ID: 1, SystemID: 7, MassEarths: 1, SurfaceTempK: 290, TerraformTargetTempK: 300}
	st.Colonies[1] = &world.Colony{
		ID:            1,
		BodyID:        1,
		FactionID:     1,
		Installations: map[string]int{"tf": 1},
		Minerals:      map[string]float64{"Duranium": duranium},
	}
	return st
}

func testConfig() tuning.SimConfig {
	cfg := tuning.Defaults()
	cfg.Terraform.TempKPerPointDay = 0.5
	cfg.Terraform.TempToleranceK = 0
	cfg.Terraform.ScaleWithBodyMass = false
	return cfg
}

func TestForecastCompletes(t *testing.T) {
	cases := []struct {
		pts  float64
		want int
	}{
		{2, 10},
		{3, 7},
		{20, 1},
	}
	for _, tc := range cases {
		s := Forecast(testWorld(tc.pts, 0), testConfig(), 1, Options{})
		if !s.OK || !s.Complete || s.DaysToComplete != tc.want {
			t.Fatalf("pts=%v ok=%v complete=%v days=%d want=%d", tc.pts, s.OK, s.Complete, s.DaysToComplete, tc.want)
		}
		if s.EndTempK != 300 || s.StartTempK != 290 || s.SystemID != 7 {
			t.Fatalf("pts=%v schedule=%+v", tc.pts, s)
		}
		if s.Stalled || s.Truncated {
			t.Fatalf("pts=%v stalled=%v truncated=%v", tc.pts, s.Stalled, s.Truncated)
		}
	}
}

func TestForecastStallsOnMinerals(t *testing.T) {
	cfg := testConfig()
	cfg.Terraform.DuraniumPerPoint = 1

	// Enough duranium for half of the 20 points needed.
	s := Forecast(testWorld(2, 10), cfg, 1, Options{})
	if !s.OK || s.Complete || !s.Stalled || s.StallReason != ReasonInsufficient {
		t.Fatalf("schedule=%+v", s)
	}
	if s.DaysSimulated != 6 || s.EndTempK != 295 || s.DuraniumConsumed != 10 || s.PointsApplied != 10 {
		t.Fatalf("days=%d end=%v consumed=%v applied=%v", s.DaysSimulated, s.EndTempK, s.DuraniumConsumed, s.PointsApplied)
	}
	if s.DuraniumAvailable != 10 || s.DuraniumPerPoint != 1 {
		t.Fatalf("available=%v per_point=%v", s.DuraniumAvailable, s.DuraniumPerPoint)
	}

	s = Forecast(testWorld(2, 0), cfg, 1, Options{})
	if !s.Stalled || s.StallReason != ReasonMissingMinerals || s.DaysSimulated != 1 {
		t.Fatalf("missing minerals schedule=%+v", s)
	}
}

func TestForecastIgnoreMineralCosts(t *testing.T) {
	cfg := testConfig()
	cfg.Terraform.DuraniumPerPoint = 1

	free := Forecast(testWorld(2, 10), cfg, 1, Options{IgnoreMineralCosts: true})
	if !free.Complete || free.DaysToComplete != 10 {
		t.Fatalf("free=%+v", free)
	}
	if free.DuraniumPerPoint != 1 || free.DuraniumAvailable != 10 || free.DuraniumConsumed != 0 {
		t.Fatalf("reported minerals changed: %+v", free)
	}

	paid := Forecast(testWorld(2, 40), cfg, 1, Options{})
	if !paid.Complete {
		t.Fatalf("paid=%+v", paid)
	}
	if free.DaysToComplete > paid.DaysToComplete {
		t.Fatalf("ignoring costs is slower: %d > %d", free.DaysToComplete, paid.DaysToComplete)
	}
	if paid.DuraniumConsumed != 20 {
		t.Fatalf("consumed=%v want=20", paid.DuraniumConsumed)
	}
}

func TestForecastEdgeCases(t *testing.T) {
	if s := Forecast(world.New(), testConfig(), 1, Options{}); s.OK {
		t.Fatalf("missing body ok")
	}

	st := testWorld(2, 0)
	st.Bodies[1].TerraformTargetTempK = 0
	if s := Forecast(st, testConfig(), 1, Options{}); !s.OK || s.HasTarget || s.Complete || s.EndTempK != 290 {
		t.Fatalf("no target schedule=%+v", s)
	}

	st = testWorld(2, 0)
	st.Bodies[1].SurfaceTempK = 0
	if s := Forecast(st, testConfig(), 1, Options{}); !s.Complete || s.DaysToComplete != 0 || s.StartTempK != 300 {
		t.Fatalf("uninitialized temp schedule=%+v", s)
	}

	st = testWorld(2, 0)
	st.Bodies[1].TerraformComplete = true
	if s := Forecast(st, testConfig(), 1, Options{}); !s.Complete || s.DaysSimulated != 0 {
		t.Fatalf("flagged complete schedule=%+v", s)
	}

	st = testWorld(2, 0)
	st.Colonies[1].Installations = nil
	if s := Forecast(st, testConfig(), 1, Options{}); !s.Stalled || s.StallReason != ReasonNoPoints || s.DaysSimulated != 0 {
		t.Fatalf("no points schedule=%+v", s)
	}
	if s := Forecast(st, testConfig(), 1, Options{}); len(s.Colonies) != 1 || s.Colonies[0].PointsPerDay != 0 {
		t.Fatalf("colonies=%+v", s.Colonies)
	}

	s := Forecast(testWorld(2, 0), testConfig(), 1, Options{MaxDays: 3})
	if !s.Truncated || s.TruncatedReason != ReasonExceededMaxDays || s.DaysSimulated != 3 || s.EndTempK != 293 {
		t.Fatalf("truncated schedule=%+v", s)
	}
}

func TestForecastMassScaling(t *testing.T) {
	cfg := testConfig()
	cfg.Terraform.ScaleWithBodyMass = true
	st := testWorld(2, 0)
	st.Bodies[1].MassEarths = 2
	if s := Forecast(st, cfg, 1, Options{}); s.DaysToComplete != 20 {
		t.Fatalf("days=%d want=20", s.DaysToComplete)
	}
	// Below the minimum mass the minimum applies: 0.1 earths is 10x faster.
	st.Bodies[1].MassEarths = 0
	if s := Forecast(st, cfg, 1, Options{}); s.DaysToComplete != 1 {
		t.Fatalf("days=%d want=1", s.DaysToComplete)
	}
}

func TestForecastAxisAllocation(t *testing.T) {
	cfg := testConfig()
	cfg.Terraform.AtmPerPointDay = 0.01
	cfg.Terraform.AtmTolerance = 0.001

	st := testWorld(2, 0)
	st.Bodies[1].AtmosphereAtm = 0.5
	st.Bodies[1].TerraformTargetAtm = 1.0
	st.Bodies[1].TerraformWeightTemp = 1

	// Manual weights send every point to temperature.
	s := Forecast(st, cfg, 1, Options{MaxDays: 1})
	if s.EndTempK != 291 || s.EndAtm != 0.5 {
		t.Fatalf("split end temp=%v atm=%v", s.EndTempK, s.EndAtm)
	}

	// Without splitting each axis gets the full budget.
	cfg.Terraform.SplitPointsBetweenAxes = false
	s = Forecast(st, cfg, 1, Options{MaxDays: 1})
	if s.EndTempK != 291 || math.Abs(s.EndAtm-0.52) > 1e-12 {
		t.Fatalf("shared end temp=%v atm=%v", s.EndTempK, s.EndAtm)
	}
}

func TestForecastOxygen(t *testing.T) {
	cfg := testConfig()
	cfg.Terraform.O2AtmPerPointDay = 0.05
	cfg.Terraform.O2ToleranceAtm = 1e-9
	cfg.Terraform.O2MaxFractionAtm = 0.3

	st := testWorld(2, 0)
	b := st.Bodies[1]
	b.SurfaceTempK, b.TerraformTargetTempK = 0, 0
	b.AtmosphereAtm = 1.0
	b.TerraformTargetO2Atm = 0.2
	s := Forecast(st, cfg, 1, Options{})
	if !s.Complete || s.DaysToComplete != 2 || math.Abs(s.EndO2Atm-0.2) > 1e-9 {
		t.Fatalf("o2 schedule=%+v", s)
	}

	// 0.5 atm can hold at most 0.15 atm of oxygen, so the target is never met.
	b.AtmosphereAtm = 0.5
	s = Forecast(st, cfg, 1, Options{MaxDays: 5})
	if s.Complete || !s.Truncated || s.EndO2Atm != 0 {
		t.Fatalf("limited o2 schedule=%+v", s)
	}
}
