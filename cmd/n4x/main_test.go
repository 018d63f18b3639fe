package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/persistence/indexdb"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/watch"
)

const cliWorld = `{
  "date": {"day": 10, "hour": 3},
  "systems": {"1": {"id": 1, "name": "Sol"}},
  "factions": {"1": {"id": 1, "name": "Terrans", "discovered_systems": [1]}},
  "designs": {"scout": {"id": "scout", "speed_km_s": 1000, "fuel_capacity_tons": 1000, "fuel_use_per_mkm": 1}},
  "ships": {"1": {"id": 1, "name": "Scout", "faction_id": 1, "system_id": 1, "design_id": "scout", "fuel_tons": 100}},
  "bodies": {"10": {"id": 10, "name": "Rock", "system_id": 1, "position_mkm": {"x": 100, "y": 0}}},
  "ship_orders": {"1": [{"type": "move_to_body", "body_id": 10}]}
}`

const cliPins = `
[[pin]]
id = 1
label = "Scout fuel"
path = "/ships/1/fuel_tons"

[[pin]]
id = 2
path = "/bodies/*"
is_query = true
op = "count"
`

// setup writes a world and pin file and returns the base args pointing at them.
func setup(t *testing.T) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	snap := filepath.Join(dir, "world.json")
	pins := filepath.Join(dir, "watchboard.toml")
	if err := os.WriteFile(snap, []byte(cliWorld), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pins, []byte(cliPins), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir, []string{"--snapshot", snap, "--pins", pins, "--data", dir}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPlanCommand(t *testing.T) {
	_, base := setup(t)
	out, err := run(t, append([]string{"plan", "1"}, base...)...)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !strings.Contains(out, "fuel 100.0 -> 3.0 t (ok)") {
		t.Fatalf("out=%s", out)
	}

	out, err = run(t, append([]string{"plan", "1", "--json"}, base...)...)
	if err != nil {
		t.Fatalf("plan json: %v", err)
	}
	var plan struct {
		OK    bool  `json:"ok"`
		Steps []any `json:"steps"`
	}
	if err := json.Unmarshal([]byte(out), &plan); err != nil || !plan.OK || len(plan.Steps) != 1 {
		t.Fatalf("plan=%+v err=%v out=%s", plan, err, out)
	}

	if _, err := run(t, append([]string{"plan", "zero"}, base...)...); err == nil {
		t.Fatalf("expected error for bad ship id")
	}
}

func TestPlanCommandOrdersFile(t *testing.T) {
	dir, base := setup(t)
	orders := filepath.Join(dir, "orders.json")
	if err := os.WriteFile(orders, []byte(`[{"type":"wait_days","days":2}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, append([]string{"plan", "1", "--json", "--orders", orders}, base...)...)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	var plan struct {
		TotalETADays float64 `json:"total_eta_days"`
	}
	if err := json.Unmarshal([]byte(out), &plan); err != nil || plan.TotalETADays != 2 {
		t.Fatalf("plan=%+v err=%v", plan, err)
	}
}

func TestTerraformCommand(t *testing.T) {
	_, base := setup(t)
	out, err := run(t, append([]string{"terraform", "10"}, base...)...)
	if err != nil {
		t.Fatalf("terraform: %v", err)
	}
	if !strings.Contains(out, "body 10 has no terraforming target") {
		t.Fatalf("out=%s", out)
	}
	if _, err := run(t, append([]string{"terraform", "99"}, base...)...); err == nil {
		t.Fatalf("expected error for unknown body")
	}
}

func TestDocumentCommands(t *testing.T) {
	_, base := setup(t)
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"resolve", "/ships/1/name"}, `"Scout"`},
		{[]string{"query", "/ships/*/fuel_tons"}, "/ships/1/fuel_tons\t100"},
		{[]string{"query", "/**/name"}, "4 matches"},
		{[]string{"complete", "/sh"}, "/ships"},
		{[]string{"complete", "/bodies/10/n"}, "/bodies/10/name"},
	}
	for _, tc := range cases {
		out, err := run(t, append(tc.args, base...)...)
		if err != nil {
			t.Fatalf("%v: %v", tc.args, err)
		}
		if !strings.Contains(out, tc.want) {
			t.Fatalf("%v: out=%q want substring %q", tc.args, out, tc.want)
		}
	}
	if _, err := run(t, append([]string{"resolve", "/ships/7"}, base...)...); err == nil {
		t.Fatalf("expected error for missing key")
	}
}

func TestWatchCommand(t *testing.T) {
	_, base := setup(t)
	out, err := run(t, append([]string{"watch"}, base...)...)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	for _, want := range []string{"Scout fuel", "100", "/bodies/*"} {
		if !strings.Contains(out, want) {
			t.Fatalf("out=%s missing %q", out, want)
		}
	}
}

func TestInboxCommand(t *testing.T) {
	dir, base := setup(t)
	idx, err := indexdb.OpenSQLite(filepath.Join(dir, "index", "n4x.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	_ = idx.RecordAlert(watch.Alert{Seq: watch.SeqBase | 1, Day: 10, Hour: 3, Level: watch.LevelWarn, PinID: 1, Message: "Scout fuel crossed below 50"})
	if err := idx.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	_ = idx.Close()

	out, err := run(t, append([]string{"inbox"}, base...)...)
	if err != nil {
		t.Fatalf("inbox: %v", err)
	}
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "Scout fuel crossed below 50") {
		t.Fatalf("out=%s", out)
	}
}

func TestEnvOverridesSnapshot(t *testing.T) {
	dir, _ := setup(t)
	t.Setenv("N4X_SNAPSHOT", filepath.Join(dir, "world.json"))
	out, err := run(t, "resolve", "/date/day")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if strings.TrimSpace(out) != "10" {
		t.Fatalf("out=%q", out)
	}
}
