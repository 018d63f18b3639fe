package watch

import (
	"math"
	"time"
)

// SeqBase marks alert sequence numbers as watchboard-originated.
const SeqBase uint64 = 0x8000000000000000

const DefaultMaxEmitsPerUpdate = 6

const changeEpsilon = 1e-9

// Tick folds a simulation date into an hour-resolution tick.
func Tick(day int64, hour int) int64 {
	return day*24 + int64(min(max(hour, 0), 23))
}

// Baseline is the per-pin memory used to detect transitions.
type Baseline struct {
	Path    string  `json:"path"`
	IsQuery bool    `json:"is_query"`
	Op      QueryOp `json:"op"`

	AlertEnabled bool `json:"alert_enabled"`

	HasLast     bool    `json:"has_last"`
	LastNumeric bool    `json:"last_numeric"`
	LastValue   float64 `json:"last_value"`
	LastDisplay string  `json:"last_display"`

	LastTick int64     `json:"last_tick"`
	LastFire time.Time `json:"last_fire"`
}

func (b *Baseline) configChanged(p Pin) bool {
	return b.Path != p.Path || b.IsQuery != p.IsQuery || b.Op != p.Op
}

func (b *Baseline) clear() {
	b.HasLast = false
	b.LastNumeric = false
	b.LastValue = 0
	b.LastDisplay = ""
	b.LastTick = -1
	b.LastFire = time.Time{}
}

// State holds everything the detector remembers between updates. It is owned
// by the caller and must not be shared between concurrent updates.
type State struct {
	LastTick int64  `json:"last_tick"`
	NextSeq  uint64 `json:"next_seq"`

	// WorldID names the game the baselines were taken from.
	WorldID string               `json:"world_id,omitempty"`
	Pins    map[uint64]*Baseline `json:"pins"`
}

func NewState() *State {
	return &State{LastTick: -1, Pins: map[uint64]*Baseline{}}
}

// Reset forgets all baselines, e.g. after a different game was loaded.
func (s *State) Reset() {
	s.LastTick = -1
	s.Pins = map[uint64]*Baseline{}
}

// Clone returns a deep copy, e.g. for persisting while updates continue.
func (s *State) Clone() *State {
	out := &State{LastTick: s.LastTick, NextSeq: s.NextSeq, WorldID: s.WorldID, Pins: make(map[uint64]*Baseline, len(s.Pins))}
	for id, b := range s.Pins {
		if b == nil {
			continue
		}
		cp := *b
		out.Pins[id] = &cp
	}
	return out
}

func (s *State) baseline(id uint64) *Baseline {
	if s.Pins == nil {
		s.Pins = map[uint64]*Baseline{}
	}
	b, ok := s.Pins[id]
	if !ok {
		b = &Baseline{LastTick: -1}
		s.Pins[id] = b
	}
	return b
}

// Alert is one fired transition, shaped for a notification inbox.
type Alert struct {
	Seq                   uint64    `json:"seq"`
	Day                   int64     `json:"day"`
	Hour                  int       `json:"hour"`
	Level                 Level     `json:"level"`
	PinID                 uint64    `json:"pin_id"`
	Label                 string    `json:"label"`
	Path                  string    `json:"path"`
	RepresentativePointer string    `json:"representative_pointer"`
	Message               string    `json:"message"`
	Mode                  AlertMode `json:"mode"`
	Threshold             float64   `json:"threshold"`
	Previous              string    `json:"previous"`
	Current               string    `json:"current"`
}

type Detector struct {
	Eval              EvalOptions
	MaxEmitsPerUpdate int
}

func NewDetector() *Detector {
	opts := DefaultEvalOptions()
	opts.MaxPreviewChars = 96
	return &Detector{Eval: opts, MaxEmitsPerUpdate: DefaultMaxEmitsPerUpdate}
}

// Update evaluates alert-enabled pins for the tick derived from (day, hour)
// and returns the alerts that fired, in pin order. A pin is evaluated when the
// tick advanced, its configuration changed, or it has no baseline yet; it is
// never evaluated twice within one tick. Enabling an alert starts from a fresh
// baseline so the first sample cannot fire.
func (d *Detector) Update(doc any, pins []Pin, day int64, hour int, now time.Time, st *State) []Alert {
	tick := Tick(day, hour)
	tickChanged := tick != st.LastTick
	maxEmits := d.MaxEmitsPerUpdate
	if maxEmits <= 0 {
		maxEmits = DefaultMaxEmitsPerUpdate
	}
	opts := d.Eval
	opts.CollectSamples = false

	var out []Alert
	for _, p := range pins {
		b := st.baseline(p.ID)
		if !p.Alert.Enabled {
			b.AlertEnabled = false
			continue
		}

		changed := b.configChanged(p)
		if changed {
			b.Path, b.IsQuery, b.Op = p.Path, p.IsQuery, p.Op
			b.clear()
		}
		if !b.AlertEnabled {
			b.AlertEnabled = true
			b.HasLast = false
			b.LastTick = -1
		}

		if !tickChanged && !changed && b.HasLast {
			continue
		}
		if b.LastTick == tick && !changed {
			continue
		}

		cur := Evaluate(doc, p, opts)
		b.LastTick = tick
		if !cur.OK {
			b.HasLast = false
			b.LastDisplay = cur.Display
			b.LastNumeric = false
			b.LastValue = 0
			continue
		}

		hadLast := b.HasLast
		prevNumeric, prevValue, prevDisplay := b.LastNumeric, b.LastValue, b.LastDisplay

		fire := false
		if hadLast && !coolingDown(b, p.Alert, now) {
			fire = shouldFire(p.Alert, prevNumeric, prevValue, prevDisplay, cur)
		}

		b.HasLast = true
		b.LastNumeric = cur.Numeric
		b.LastValue = cur.Value
		b.LastDisplay = cur.Display

		if !fire {
			continue
		}
		if len(out) >= maxEmits {
			break
		}

		seq := SeqBase | st.NextSeq
		st.NextSeq++
		out = append(out, Alert{
			Seq:                   seq,
			Day:                   day,
			Hour:                  hour,
			Level:                 p.Alert.Level.clamp(),
			PinID:                 p.ID,
			Label:                 p.Label,
			Path:                  p.Path,
			RepresentativePointer: cur.RepresentativePointer,
			Message:               message(p, prevNumeric, prevValue, prevDisplay, cur),
			Mode:                  p.Alert.Mode.clamp(),
			Threshold:             p.Alert.Threshold,
			Previous:              prevDisplay,
			Current:               cur.Display,
		})
		b.LastFire = now
	}

	if tickChanged {
		st.LastTick = tick
	}
	return out
}

func coolingDown(b *Baseline, rule AlertRule, now time.Time) bool {
	if rule.CooldownSeconds <= 0 || b.LastFire.IsZero() {
		return false
	}
	return now.Sub(b.LastFire).Seconds() < rule.CooldownSeconds
}

func shouldFire(rule AlertRule, prevNumeric bool, prev float64, prevDisplay string, cur Result) bool {
	mode := rule.Mode.clamp()
	if mode == AnyChange {
		if cur.Numeric && prevNumeric {
			return math.Abs(cur.Value-prev) > changeEpsilon
		}
		return cur.Display != prevDisplay
	}
	if !cur.Numeric || !prevNumeric {
		return false
	}
	thr, d := rule.Threshold, rule.Delta
	switch mode {
	case CrossAbove:
		return prev <= thr && cur.Value > thr
	case CrossBelow:
		return prev >= thr && cur.Value < thr
	case ChangeAbs:
		return d > 0 && math.Abs(cur.Value-prev) >= d
	case ChangePct:
		return d > 0 && math.Abs(prev) > changeEpsilon && math.Abs((cur.Value-prev)/prev) >= d
	}
	return false
}

func message(p Pin, prevNumeric bool, prev float64, prevDisplay string, cur Result) string {
	label := p.DisplayLabel()
	mode := p.Alert.Mode.clamp()
	tail := " (was " + prevDisplay + ", now " + cur.Display + ")"
	numeric := cur.Numeric && prevNumeric

	switch {
	case mode == CrossAbove || mode == CrossBelow:
		return label + " " + mode.Label() + " " + FormatNumber(p.Alert.Threshold) + tail
	case mode == ChangeAbs && numeric:
		return label + " change " + FormatNumber(cur.Value-prev) +
			" (|Δ|>= " + FormatNumber(p.Alert.Delta) + ", was " + prevDisplay + ", now " + cur.Display + ")"
	case mode == ChangePct && numeric && math.Abs(prev) > changeEpsilon:
		pct := (cur.Value - prev) / prev * 100
		return label + " change " + FormatNumber(pct) + "%" +
			" (|Δ|>= " + FormatNumber(p.Alert.Delta*100) + "%, was " + prevDisplay + ", now " + cur.Display + ")"
	}
	return label + " changed" + tail
}
