package watchboard

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/protocol"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/watch"
)

// File is the decoded watchboard.toml.
type File struct {
	QueryMaxMatches   int         `toml:"query_max_matches"`
	QueryMaxNodes     int         `toml:"query_max_nodes"`
	MaxEmitsPerUpdate int         `toml:"max_emits_per_update"`
	Pins              []watch.Pin `toml:"pin"`
}

// LoadPins reads and validates a pin file.
func LoadPins(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	f, err := ParsePins(data)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// ParsePins decodes TOML pin data. The generic form is checked against the
// pin schema before the typed decode so enum typos are reported by name.
func ParsePins(data []byte) (File, error) {
	var generic map[string]any
	if err := toml.Unmarshal(data, &generic); err != nil {
		return File{}, err
	}
	// Round-trip through JSON so the validator sees float64 numbers.
	js, err := json.Marshal(generic)
	if err != nil {
		return File{}, err
	}
	var doc any
	if err := json.Unmarshal(js, &doc); err != nil {
		return File{}, err
	}
	if err := protocol.Validate(protocol.SchemaPins, doc); err != nil {
		return File{}, err
	}

	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return File{}, err
	}
	seen := make(map[uint64]bool, len(f.Pins))
	for _, p := range f.Pins {
		if seen[p.ID] {
			return File{}, fmt.Errorf("duplicate pin id %d", p.ID)
		}
		seen[p.ID] = true
	}
	return f, nil
}

// Detector builds a detector honoring the file's global caps.
func (f File) Detector() *watch.Detector {
	d := watch.NewDetector()
	if f.QueryMaxMatches > 0 {
		d.Eval.QueryMaxMatches = f.QueryMaxMatches
	}
	if f.QueryMaxNodes > 0 {
		d.Eval.QueryMaxNodes = f.QueryMaxNodes
	}
	if f.MaxEmitsPerUpdate > 0 {
		d.MaxEmitsPerUpdate = f.MaxEmitsPerUpdate
	}
	return d
}
