package tuning

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	body := "docking_range_mkm: 5\nterraforming:\n  scale_with_body_mass: false\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DockingRangeMkm != 5 {
		t.Fatalf("docking=%v want=5", cfg.DockingRangeMkm)
	}
	if cfg.Terraform.ScaleWithBodyMass {
		t.Fatalf("scale_with_body_mass not overridden")
	}
	if cfg.SecondsPerDay != 86400 || cfg.Terraform.TempKPerPointDay != 0.1 || cfg.JumpSurvey.ReferenceSensorRangeMkm != 400 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if !cfg.Terraform.SplitPointsBetweenAxes {
		t.Fatalf("split default lost")
	}
}

func TestLoadRejectsNegative(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(path, []byte("terraforming:\n  atm_per_point_day: -1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "atm_per_point_day") {
		t.Fatalf("err=%v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v want=%v", err, os.ErrNotExist)
	}
}

func TestDefaultsValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}
