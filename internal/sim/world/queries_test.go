package world

import "testing"

func TestAreMutualFriendly(t *testing.T) {
	s := New()
	s.Factions[1] = &Faction{ID: 1, Relations: map[ID]DiplomacyStatus{2: Friendly, 3: Friendly}}
	s.Factions[2] = &Faction{ID: 2, Relations: map[ID]DiplomacyStatus{1: Friendly}}
	s.Factions[3] = &Faction{ID: 3, Relations: map[ID]DiplomacyStatus{1: Neutral}}

	cases := []struct {
		a, b ID
		want bool
	}{
		{1, 1, true},
		{1, 2, true},
		{2, 1, true},
		{1, 3, false},
		{3, 2, false},
		{0, 0, false},
		{1, 7, false},
	}
	for _, tc := range cases {
		if got := s.AreMutualFriendly(tc.a, tc.b); got != tc.want {
			t.Fatalf("AreMutualFriendly(%d,%d)=%v want=%v", tc.a, tc.b, got, tc.want)
		}
	}
	if got := s.DiplomaticStatus(2, 3); got != Hostile {
		t.Fatalf("missing relation=%v want=hostile", got)
	}
}

func TestTerraformingPointsPerDay(t *testing.T) {
	s := New()
	s.Installations["tf"] = InstallationDef{ID: "tf", TerraformingPointsPerDay: 1.5}
	s.Installations["mine"] = InstallationDef{ID: "mine"}
	s.Factions[1] = &Faction{ID: 1, TerraformMultiplier: 2}
	s.Factions[2] = &Faction{ID: 2}
	c := &Colony{ID: 1, FactionID: 1, Installations: map[string]int{"tf": 2, "mine": 5, "ghost": 3}}
	if got := s.TerraformingPointsPerDay(c); got != 6 {
		t.Fatalf("pts=%v want=6", got)
	}
	c.FactionID = 2
	if got := s.TerraformingPointsPerDay(c); got != 3 {
		t.Fatalf("pts=%v want=3", got)
	}
}

func TestDecodeFillsMaps(t *testing.T) {
	st, err := Decode([]byte(`{"date":{"day":10,"hour":12},"ships":{"5":{"id":5,"name":"Scout","fuel_tons":-1}}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Bodies == nil || st.Colonies == nil || st.ShipOrders == nil {
		t.Fatalf("nil maps after decode")
	}
	if sh := st.Ships[5]; sh == nil || sh.Name != "Scout" || sh.FuelTons != -1 {
		t.Fatalf("ship=%#v", st.Ships[5])
	}
	if got := st.Date.Days(); got != 10.5 {
		t.Fatalf("days=%v want=10.5", got)
	}
}

func TestSurveyAndDiscovery(t *testing.T) {
	s := New()
	s.Factions[1] = &Faction{ID: 1, DiscoveredSystems: []ID{10}, SurveyedJumpPoints: []ID{77}}
	if !s.IsSystemDiscovered(1, 10) || s.IsSystemDiscovered(1, 11) || s.IsSystemDiscovered(9, 10) {
		t.Fatalf("discovery mismatch")
	}
	if !s.IsJumpPointSurveyed(1, 77) || s.IsJumpPointSurveyed(1, 78) {
		t.Fatalf("survey mismatch")
	}
}
