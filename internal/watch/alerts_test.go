package watch

import (
	"testing"
	"time"
)

func numDoc(v float64) any { return map[string]any{"v": v, "s": "x"} }

func TestTick(t *testing.T) {
	if got := Tick(2, 5); got != 53 {
		t.Fatalf("Tick=%d", got)
	}
	if got := Tick(1, 99); got != 47 {
		t.Fatalf("hour clamp: Tick=%d", got)
	}
}

func TestDetector_Modes(t *testing.T) {
	cases := []struct {
		name   string
		rule   AlertRule
		values []float64
		fires  []bool
	}{
		{"cross above", AlertRule{Mode: CrossAbove, Threshold: 10}, []float64{9, 11, 12, 9, 10.5}, []bool{false, true, false, false, true}},
		{"cross below", AlertRule{Mode: CrossBelow, Threshold: 10}, []float64{11, 10, 9, 8}, []bool{false, false, true, false}},
		{"abs delta", AlertRule{Mode: ChangeAbs, Delta: 5}, []float64{0, 4, 10, 10}, []bool{false, false, true, false}},
		{"abs delta zero disabled", AlertRule{Mode: ChangeAbs}, []float64{0, 100}, []bool{false, false}},
		{"pct delta", AlertRule{Mode: ChangePct, Delta: 0.5}, []float64{10, 14, 30, 0, 5}, []bool{false, false, true, true, false}},
		{"any change", AlertRule{Mode: AnyChange}, []float64{1, 1, 2}, []bool{false, false, true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDetector()
			st := NewState()
			rule := tc.rule
			rule.Enabled = true
			pin := Pin{ID: 7, Label: "Val", Path: "/v", Alert: rule}
			now := time.Unix(1000, 0)
			for i, v := range tc.values {
				got := d.Update(numDoc(v), []Pin{pin}, int64(i), 0, now, st)
				if (len(got) == 1) != tc.fires[i] {
					t.Fatalf("step %d value %v: fired=%d want=%v", i, v, len(got), tc.fires[i])
				}
			}
		})
	}
}

func TestDetector_SameTickNotReevaluated(t *testing.T) {
	d := NewDetector()
	st := NewState()
	pin := Pin{ID: 1, Path: "/v", Alert: AlertRule{Enabled: true, Mode: AnyChange}}
	now := time.Unix(0, 0)

	d.Update(numDoc(1), []Pin{pin}, 0, 0, now, st)
	if got := d.Update(numDoc(2), []Pin{pin}, 0, 0, now, st); len(got) != 0 {
		t.Fatalf("same tick fired: %+v", got)
	}
	if got := d.Update(numDoc(3), []Pin{pin}, 0, 1, now, st); len(got) != 1 {
		t.Fatalf("next tick should fire, got %d", len(got))
	}
}

func TestDetector_Message(t *testing.T) {
	d := NewDetector()
	st := NewState()
	pin := Pin{ID: 3, Label: "Fuel", Path: "/v", Alert: AlertRule{Enabled: true, Mode: CrossAbove, Threshold: 5, Level: LevelWarn}}
	now := time.Unix(0, 0)

	d.Update(numDoc(4), []Pin{pin}, 10, 0, now, st)
	got := d.Update(numDoc(6), []Pin{pin}, 10, 1, now, st)
	if len(got) != 1 {
		t.Fatalf("expected one alert, got %d", len(got))
	}
	a := got[0]
	if a.Message != "Fuel cross above 5 (was 4, now 6)" {
		t.Fatalf("message=%q", a.Message)
	}
	if a.Seq != SeqBase || a.Day != 10 || a.Hour != 1 || a.Level != LevelWarn || a.RepresentativePointer != "/v" {
		t.Fatalf("alert=%+v", a)
	}

	pin.Label = ""
	pin.Alert = AlertRule{Enabled: true, Mode: ChangePct, Delta: 0.5}
	st = NewState()
	d.Update(numDoc(10), []Pin{pin}, 0, 0, now, st)
	got = d.Update(numDoc(20), []Pin{pin}, 0, 1, now, st)
	if len(got) != 1 || got[0].Message != "/v change 100% (|Δ|>= 50%, was 10, now 20)" {
		t.Fatalf("pct alert=%+v", got)
	}
}

func TestDetector_Cooldown(t *testing.T) {
	d := NewDetector()
	st := NewState()
	pin := Pin{ID: 1, Path: "/v", Alert: AlertRule{Enabled: true, Mode: AnyChange, CooldownSeconds: 30}}
	t0 := time.Unix(100, 0)

	d.Update(numDoc(0), []Pin{pin}, 0, 0, t0, st)
	if got := d.Update(numDoc(1), []Pin{pin}, 0, 1, t0, st); len(got) != 1 {
		t.Fatalf("first change should fire")
	}
	if got := d.Update(numDoc(2), []Pin{pin}, 0, 2, t0.Add(10*time.Second), st); len(got) != 0 {
		t.Fatalf("fired within cooldown")
	}
	if got := d.Update(numDoc(3), []Pin{pin}, 0, 3, t0.Add(31*time.Second), st); len(got) != 1 {
		t.Fatalf("should fire after cooldown")
	}
}

func TestDetector_EnableResetsBaseline(t *testing.T) {
	d := NewDetector()
	st := NewState()
	pin := Pin{ID: 1, Path: "/v", Alert: AlertRule{Enabled: true, Mode: CrossAbove, Threshold: 5}}
	now := time.Unix(0, 0)

	d.Update(numDoc(1), []Pin{pin}, 0, 0, now, st)
	pin.Alert.Enabled = false
	d.Update(numDoc(1), []Pin{pin}, 0, 1, now, st)
	pin.Alert.Enabled = true
	if got := d.Update(numDoc(9), []Pin{pin}, 0, 2, now, st); len(got) != 0 {
		t.Fatalf("re-enable fired on first sample: %+v", got)
	}
	if got := d.Update(numDoc(9), []Pin{pin}, 0, 3, now, st); len(got) != 0 {
		t.Fatalf("no crossing, got %+v", got)
	}
}

func TestDetector_ConfigChangeAndFailure(t *testing.T) {
	d := NewDetector()
	st := NewState()
	pin := Pin{ID: 1, Path: "/v", Alert: AlertRule{Enabled: true, Mode: AnyChange}}
	now := time.Unix(0, 0)

	d.Update(numDoc(1), []Pin{pin}, 0, 0, now, st)
	pin.Path = "/s"
	if got := d.Update(numDoc(2), []Pin{pin}, 0, 1, now, st); len(got) != 0 {
		t.Fatalf("config change fired: %+v", got)
	}

	pin.Path = "/missing"
	d.Update(numDoc(2), []Pin{pin}, 0, 2, now, st)
	if b := st.Pins[1]; b.HasLast || b.LastDisplay != "(missing)" {
		t.Fatalf("failed evaluation kept baseline: %+v", b)
	}
}

func TestDetector_MaxEmits(t *testing.T) {
	d := NewDetector()
	d.MaxEmitsPerUpdate = 2
	st := NewState()
	var pins []Pin
	for i := 1; i <= 4; i++ {
		pins = append(pins, Pin{ID: uint64(i), Path: "/v", Alert: AlertRule{Enabled: true, Mode: AnyChange}})
	}
	now := time.Unix(0, 0)
	d.Update(numDoc(1), pins, 0, 0, now, st)
	got := d.Update(numDoc(2), pins, 0, 1, now, st)
	if len(got) != 2 || got[0].PinID != 1 || got[1].PinID != 2 {
		t.Fatalf("alerts=%+v", got)
	}
	if got[1].Seq != SeqBase|1 {
		t.Fatalf("seq=%x", got[1].Seq)
	}
}
