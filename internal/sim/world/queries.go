package world

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Decode parses a world snapshot from JSON. Missing collections decode as
// empty maps.
func Decode(raw []byte) (*State, error) {
	st := New()
	if err := json.Unmarshal(raw, st); err != nil {
		return nil, fmt.Errorf("decode world: %w", err)
	}
	st.fillNil()
	return st, nil
}

func (s *State) fillNil() {
	e := New()
	if s.Systems == nil {
		s.Systems = e.Systems
	}
	if s.Bodies == nil {
		s.Bodies = e.Bodies
	}
	if s.JumpPoints == nil {
		s.JumpPoints = e.JumpPoints
	}
	if s.Colonies == nil {
		s.Colonies = e.Colonies
	}
	if s.Ships == nil {
		s.Ships = e.Ships
	}
	if s.Wrecks == nil {
		s.Wrecks = e.Wrecks
	}
	if s.Anomalies == nil {
		s.Anomalies = e.Anomalies
	}
	if s.Factions == nil {
		s.Factions = e.Factions
	}
	if s.Designs == nil {
		s.Designs = e.Designs
	}
	if s.Installations == nil {
		s.Installations = e.Installations
	}
	if s.ShipOrders == nil {
		s.ShipOrders = e.ShipOrders
	}
}

func (s *State) Design(id string) *ShipDesign {
	if id == "" {
		return nil
	}
	return s.Designs[id]
}

// DiplomaticStatus is how from regards to. Unknown factions and missing
// relations are hostile; a faction is always friendly to itself.
func (s *State) DiplomaticStatus(from, to ID) DiplomacyStatus {
	if from == InvalidID || to == InvalidID {
		return Hostile
	}
	if from == to {
		return Friendly
	}
	f := s.Factions[from]
	if f == nil {
		return Hostile
	}
	st, ok := f.Relations[to]
	if !ok {
		return Hostile
	}
	return st
}

// AreMutualFriendly is true for the same faction, or when each side regards
// the other as friendly.
func (s *State) AreMutualFriendly(a, b ID) bool {
	if a == InvalidID || b == InvalidID {
		return false
	}
	if a == b {
		return true
	}
	return s.DiplomaticStatus(a, b) == Friendly && s.DiplomaticStatus(b, a) == Friendly
}

func (s *State) IsSystemDiscovered(faction, system ID) bool {
	f := s.Factions[faction]
	return f != nil && slices.Contains(f.DiscoveredSystems, system)
}

func (s *State) IsJumpPointSurveyed(faction, jump ID) bool {
	f := s.Factions[faction]
	return f != nil && slices.Contains(f.SurveyedJumpPoints, jump)
}

// TerraformingPointsPerDay sums installation output on c, scaled by the
// owning faction's terraforming multiplier.
func (s *State) TerraformingPointsPerDay(c *Colony) float64 {
	total := 0.0
	for id, n := range c.Installations {
		if n <= 0 {
			continue
		}
		def, ok := s.Installations[id]
		if !ok || def.TerraformingPointsPerDay <= 0 {
			continue
		}
		total += def.TerraformingPointsPerDay * float64(n)
	}
	if f := s.Factions[c.FactionID]; f != nil && f.TerraformMultiplier > 0 {
		total *= f.TerraformMultiplier
	}
	return max(0, total)
}

// SortedColonyIDs returns colony ids ascending, for deterministic iteration.
func (s *State) SortedColonyIDs() []ID {
	ids := make([]ID, 0, len(s.Colonies))
	for id := range s.Colonies {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
