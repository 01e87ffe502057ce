package protocol_test

import (
	"testing"

	"voxelcircuit.ai/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	validate := func(name, raw string) {
		t.Helper()
		if err := protocol.Validate(name, []byte(raw)); err != nil {
			t.Fatalf("%s: validate: %v", name, err)
		}
	}
	reject := func(name, raw string) {
		t.Helper()
		if err := protocol.Validate(name, []byte(raw)); err == nil {
			t.Fatalf("%s: expected rejection of %s", name, raw)
		}
	}

	validate(protocol.SchemaHello, `{"type":"HELLO","protocol_version":"1.0","client_name":"bot","max_queue":16}`)
	reject(protocol.SchemaHello, `{"type":"HELLO"}`)

	validate(protocol.SchemaWelcome, `{
	  "type":"WELCOME","protocol_version":"1.0","session_id":"S1","world_id":"world_1",
	  "tick":12,"interval_ms":500,"preset":2,"presets_ms":[500000,500,100,10,1],
	  "voxels":[{"pos":[0,0,0],"kind":"Out","signal":true,"id":3}]
	}`)

	validate(protocol.SchemaCmd, `{"type":"CMD","protocol_version":"1.0","id":"c1","op":"PLACE","pos":[1,0,0],"kind":"Wire"}`)
	validate(protocol.SchemaCmd, `{"type":"CMD","protocol_version":"1.0","id":"c2","op":"TOGGLE","pos":[4,0,0]}`)
	validate(protocol.SchemaCmd, `{"type":"CMD","protocol_version":"1.0","id":"c3","op":"SPEED","preset":3}`)
	validate(protocol.SchemaCmd, `{"type":"CMD","protocol_version":"1.0","id":"c4","op":"SAVE"}`)
	reject(protocol.SchemaCmd, `{"type":"CMD","protocol_version":"1.0","id":"c5","op":"PLACE","pos":[1,0,0]}`)
	reject(protocol.SchemaCmd, `{"type":"CMD","protocol_version":"1.0","id":"c6","op":"PLACE","pos":[1,0],"kind":"Wire"}`)
	reject(protocol.SchemaCmd, `{"type":"CMD","protocol_version":"1.0","id":"c7","op":"PLACE","pos":[1,0,0],"kind":"Lamp"}`)
	reject(protocol.SchemaCmd, `{"type":"CMD","protocol_version":"1.0","id":"c8","op":"LOOK"}`)
	reject(protocol.SchemaCmd, `{"type":"CMD","protocol_version":"1.0","id":"c9","op":"SPEED","preset":0}`)
	reject(protocol.SchemaCmd, `{"type":"CMD","protocol_version":"1.0","id":"c10","op":"EXPLODE"}`)

	validate(protocol.SchemaTick, `{"type":"TICK","protocol_version":"1.0","tick":3,
	  "changes":[{"pos":[0,0,0],"signal":true}],
	  "placed":[{"pos":[1,0,0],"kind":"Wire","signal":false}],
	  "removed":[[2,0,0]]}`)

	validate(protocol.SchemaResult, `{"type":"RESULT","protocol_version":"1.0","id":"c1","ok":true,"tick":4,
	  "look":{"pos":[0,0,0],"present":true,"kind":"Out","signal":true}}`)
	reject(protocol.SchemaResult, `{"type":"RESULT","protocol_version":"1.0","id":"c1","ok":false,"tick":4,"code":"bad"}`)
}

func TestSchemas_GoMessagesConform(t *testing.T) {
	on := true
	pos := [3]int{1, 2, 3}
	cases := []struct {
		name string
		v    any
	}{
		{protocol.SchemaHello, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "x"}},
		{protocol.SchemaWelcome, protocol.WelcomeMsg{
			Type: protocol.TypeWelcome, ProtocolVersion: protocol.Version, SessionID: "S1", WorldID: "w",
			IntervalMs: 500, Preset: 2, PresetsMs: []int64{500},
		}},
		{protocol.SchemaCmd, protocol.CmdMsg{Type: protocol.TypeCmd, ProtocolVersion: protocol.Version, ID: "1", Op: protocol.OpLook, Pos: &pos}},
		{protocol.SchemaTick, protocol.TickMsg{Type: protocol.TypeTick, ProtocolVersion: protocol.Version, Tick: 9,
			Changes: []protocol.SignalChange{{Pos: pos, Signal: true}}}},
		{protocol.SchemaResult, protocol.ResultMsg{Type: protocol.TypeResult, ProtocolVersion: protocol.Version, ID: "1", OK: true, Signal: &on}},
		{protocol.SchemaResult, protocol.ErrorResult("2", 7, protocol.ErrInvalidTarget, "not a switch")},
	}
	for _, c := range cases {
		if err := protocol.ValidateValue(c.name, c.v); err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
	}
}

func TestSchemas_Unknown(t *testing.T) {
	if _, err := protocol.Schema("nope.schema.json"); err == nil {
		t.Fatalf("expected error for unknown schema")
	}
}
