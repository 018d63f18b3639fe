package mathx

import (
	"math"
	"testing"
)

func TestStepToward(t *testing.T) {
	cases := []struct {
		x, target, step, want float64
	}{
		{0, 10, 3, 3},
		{9, 10, 3, 10},
		{10, 0, 4, 6},
		{1, 0, 5, 0},
		{5, 5, 1, 5},
		{0, 10, -1, 0},
		{math.NaN(), 1, 1, math.NaN()},
	}
	for _, tc := range cases {
		got := StepToward(tc.x, tc.target, tc.step)
		if math.IsNaN(tc.want) {
			if !math.IsNaN(got) {
				t.Fatalf("StepToward(%v,%v,%v)=%v want NaN", tc.x, tc.target, tc.step, got)
			}
			continue
		}
		if got != tc.want {
			t.Fatalf("StepToward(%v,%v,%v)=%v want=%v", tc.x, tc.target, tc.step, got, tc.want)
		}
	}
}

func TestApproxEqualAndClamp01(t *testing.T) {
	if !ApproxEqual(1.0, 1.4, 0.5) || ApproxEqual(1.0, 1.6, 0.5) {
		t.Fatalf("ApproxEqual tolerance")
	}
	if ApproxEqual(math.Inf(1), math.Inf(1), 1) {
		t.Fatalf("ApproxEqual should reject infinities")
	}
	if Clamp01(math.NaN()) != 0 || Clamp01(2) != 1 || Clamp01(-1) != 0 || Clamp01(0.25) != 0.25 {
		t.Fatalf("Clamp01")
	}
}

func TestVec2(t *testing.T) {
	if d := Dist(Vec2{0, 0}, Vec2{3, 4}); d != 5 {
		t.Fatalf("Dist=%v", d)
	}
	if v := (Vec2{1, 2}).Add(Vec2{3, 4}); v != (Vec2{4, 6}) {
		t.Fatalf("Add=%v", v)
	}
}
