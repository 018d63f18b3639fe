package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/protocol"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/watch"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	decode := func(s string) any {
		t.Helper()
		var v any
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return v
	}

	world := decode(`{
	  "date":{"day":120,"hour":6},
	  "systems":{"1":{"id":1,"name":"Sol"}},
	  "ships":{"5":{"id":5,"name":"Scout","system_id":1,"fuel_tons":-1}},
	  "ship_orders":{"5":[{"type":"wait_days","days":2}]}
	}`)
	if err := protocol.Validate(protocol.SchemaWorld, world); err != nil {
		t.Fatalf("world: %v", err)
	}

	pins := decode(`{
	  "query_max_matches":5000,
	  "pin":[{"id":1,"label":"Fuel","path":"/ships/5/fuel_tons","alert":{"enabled":true,"mode":"cross_below","threshold":10,"level":"warn"}}]
	}`)
	if err := protocol.Validate(protocol.SchemaPins, pins); err != nil {
		t.Fatalf("pins: %v", err)
	}

	plan := decode(`{"ship_id":5,"orders":[{"type":"move_to_body","body_id":3}],"options":{"predict_orbits":false}}`)
	if err := protocol.Validate(protocol.SchemaPlanRequest, plan); err != nil {
		t.Fatalf("plan: %v", err)
	}
}

func TestSchemas_RejectBadDocuments(t *testing.T) {
	cases := []struct {
		schema string
		doc    string
	}{
		{protocol.SchemaWorld, `{"systems":{}}`},
		{protocol.SchemaWorld, `{"date":{"day":1},"ships":{"abc":{"id":1}}}`},
		{protocol.SchemaWorld, `{"date":{"day":1,"hour":30}}`},
		{protocol.SchemaPins, `{"pin":[{"id":1,"path":"/a","op":"median"}]}`},
		{protocol.SchemaPins, `{"pin":[{"path":"/a"}]}`},
		{protocol.SchemaPlanRequest, `{"orders":[]}`},
		{protocol.SchemaPlanRequest, `{"ship_id":1,"orders":[{"body_id":3}]}`},
	}
	for _, tc := range cases {
		var v any
		if err := json.Unmarshal([]byte(tc.doc), &v); err != nil {
			t.Fatalf("decode %s: %v", tc.doc, err)
		}
		if err := protocol.Validate(tc.schema, v); err == nil {
			t.Fatalf("%s accepted %s", tc.schema, tc.doc)
		}
	}
	if err := protocol.Validate("nope.schema.json", map[string]any{}); err == nil {
		t.Fatalf("unknown schema accepted")
	}
}

func TestNewAlertMsg(t *testing.T) {
	m := protocol.NewAlertMsg(watch.Alert{Seq: 9, Day: 3, Hour: 4, Level: watch.LevelWarn, PinID: 2, Label: "Fuel", Message: "Fuel cross below 5 (was 6, now 4)"})
	if m.Type != protocol.TypeAlert || m.Level != "warn" || m.Seq != 9 || m.PinID != 2 || m.Hour != 4 {
		t.Fatalf("msg=%+v", m)
	}
}

func TestErrorMsgShape(t *testing.T) {
	b, err := json.Marshal(protocol.NewErrorMsg(protocol.ErrRateLimit, "slow down"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["type"] != protocol.TypeError || m["code"] != protocol.ErrRateLimit {
		t.Fatalf("msg=%v", m)
	}
}
