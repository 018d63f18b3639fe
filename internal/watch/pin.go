// Package watch evaluates pinned JSON pointers and glob queries against a
// decoded document and detects alert transitions between sampling ticks.
package watch

import "fmt"

// QueryOp aggregates the matches of a query pin.
type QueryOp int

const (
	OpCount QueryOp = iota
	OpSum
	OpAvg
	OpMin
	OpMax
)

var queryOpNames = [...]string{"count", "sum", "avg", "min", "max"}

func (op QueryOp) String() string {
	if op < OpCount || op > OpMax {
		return "count"
	}
	return queryOpNames[op]
}

func (op QueryOp) MarshalText() ([]byte, error) { return []byte(op.String()), nil }

func (op *QueryOp) UnmarshalText(b []byte) error {
	for i, n := range queryOpNames {
		if n == string(b) {
			*op = QueryOp(i)
			return nil
		}
	}
	return fmt.Errorf("unknown query op %q", string(b))
}

// AlertMode selects how a pin's current value is compared with its baseline.
type AlertMode int

const (
	CrossAbove AlertMode = iota
	CrossBelow
	ChangeAbs
	ChangePct
	AnyChange
)

var alertModeNames = [...]string{"cross_above", "cross_below", "change_abs", "change_pct", "any_change"}

// alertModeLabels are the phrases used in alert messages.
var alertModeLabels = [...]string{"cross above", "cross below", "change (abs)", "change (%)", "changed"}

func (m AlertMode) clamp() AlertMode {
	return AlertMode(min(max(int(m), int(CrossAbove)), int(AnyChange)))
}

func (m AlertMode) String() string { return alertModeNames[m.clamp()] }

// Label is the human phrase for the mode, e.g. "cross above".
func (m AlertMode) Label() string { return alertModeLabels[m.clamp()] }

func (m AlertMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *AlertMode) UnmarshalText(b []byte) error {
	for i, n := range alertModeNames {
		if n == string(b) {
			*m = AlertMode(i)
			return nil
		}
	}
	return fmt.Errorf("unknown alert mode %q", string(b))
}

type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

var levelNames = [...]string{"info", "warn", "error"}

func (l Level) clamp() Level { return Level(min(max(int(l), int(LevelInfo)), int(LevelError))) }

func (l Level) String() string { return levelNames[l.clamp()] }

func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Level) UnmarshalText(b []byte) error {
	for i, n := range levelNames {
		if n == string(b) {
			*l = Level(i)
			return nil
		}
	}
	return fmt.Errorf("unknown level %q", string(b))
}

type AlertRule struct {
	Enabled   bool      `json:"enabled" toml:"enabled"`
	Mode      AlertMode `json:"mode" toml:"mode"`
	Threshold float64   `json:"threshold,omitempty" toml:"threshold"`
	// Delta is absolute for ChangeAbs and a fraction (0.1 = 10%) for ChangePct.
	Delta           float64 `json:"delta,omitempty" toml:"delta"`
	CooldownSeconds float64 `json:"cooldown_seconds,omitempty" toml:"cooldown_seconds"`
	Level           Level   `json:"level" toml:"level"`
}

// Pin is one stored evaluation: a strict pointer, or a glob pattern with an
// aggregation when IsQuery is set.
type Pin struct {
	ID      uint64    `json:"id" toml:"id"`
	Label   string    `json:"label,omitempty" toml:"label"`
	Path    string    `json:"path" toml:"path"`
	IsQuery bool      `json:"is_query,omitempty" toml:"is_query"`
	Op      QueryOp   `json:"op" toml:"op"`
	Alert   AlertRule `json:"alert" toml:"alert"`
}

// DisplayLabel falls back to the path when the pin has no label.
func (p Pin) DisplayLabel() string {
	if p.Label == "" {
		return p.Path
	}
	return p.Label
}
