package propagation

import (
	"reflect"
	"testing"

	"voxelcircuit.ai/internal/sim/circuit/kernel/model"
)

type mapEnv map[model.Vec3i]model.Voxel

func (m mapEnv) KindAt(p model.Vec3i) (model.Kind, bool) {
	v, ok := m[p]
	return v.Kind, ok
}

func (m mapEnv) SignalAt(p model.Vec3i) bool { return m[p].Signal }

func (m mapEnv) put(p model.Vec3i, k model.Kind, on bool) {
	m[p] = model.Voxel{Pos: p, Kind: k, Signal: on}
}

func TestDriven_OnlyDrivingKinds(t *testing.T) {
	out := model.Vec3i{}
	for _, k := range model.AllKinds() {
		env := mapEnv{}
		env.put(out, model.Out, false)
		env.put(model.Vec3i{Z: -1}, k, true)
		if got := Driven(env, out); got != k.Drives() {
			t.Fatalf("neighbor %s: driven=%v want %v", k, got, k.Drives())
		}
	}

	env := mapEnv{}
	env.put(out, model.Out, false)
	env.put(model.Vec3i{X: 1}, model.Switch, false)
	if Driven(env, out) {
		t.Fatalf("switch that is off must not drive")
	}
}

func TestWalk_CycleTerminatesAndCoversAll(t *testing.T) {
	// A–B–C–D ring of wires in the XZ plane plus a tail, with an Out touching A.
	env := mapEnv{}
	out := model.Vec3i{X: -1}
	ring := []model.Vec3i{{X: 0}, {X: 1}, {X: 1, Z: 1}, {X: 0, Z: 1}}
	env.put(out, model.Out, false)
	for _, p := range ring {
		env.put(p, model.Wire, false)
	}
	env.put(model.Vec3i{X: 2, Z: 1}, model.Wire, false)
	env.put(model.Vec3i{X: 3, Z: 1}, model.And, true) // not traversed

	got := Walk(env, out, 0)
	if len(got) != 5 {
		t.Fatalf("expected 5 wires, got %d: %v", len(got), got)
	}
	seen := map[model.Vec3i]bool{}
	for _, p := range got {
		if seen[p] {
			t.Fatalf("wire %v visited twice", p)
		}
		seen[p] = true
		if env[p].Kind != model.Wire {
			t.Fatalf("walk entered non-wire %v", p)
		}
	}
}

func TestWalk_ThreeWireTriangleInSpace(t *testing.T) {
	// Three mutually adjacent wires cannot exist on a lattice, so build the smallest
	// 3D cycle: a 2x2 square standing in the XY plane.
	env := mapEnv{}
	env.put(model.Vec3i{X: -1}, model.Out, false)
	cycle := []model.Vec3i{{}, {Y: 1}, {X: 1, Y: 1}, {X: 1}}
	for _, p := range cycle {
		env.put(p, model.Wire, false)
	}
	got := Walk(env, model.Vec3i{X: -1}, 0)
	if len(got) != len(cycle) {
		t.Fatalf("expected %d wires, got %v", len(cycle), got)
	}
}

func TestWalk_Idempotent(t *testing.T) {
	env := mapEnv{}
	start := model.Vec3i{}
	env.put(start, model.Out, false)
	for x := 1; x <= 4; x++ {
		env.put(model.Vec3i{X: x}, model.Wire, false)
		env.put(model.Vec3i{X: x, Y: 1}, model.Wire, false)
	}
	a := Walk(env, start, 0)
	b := Walk(env, start, 0)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("walk not idempotent:\n%v\n%v", a, b)
	}
}

func TestWalk_Budget(t *testing.T) {
	env := mapEnv{}
	env.put(model.Vec3i{}, model.Out, false)
	for x := 1; x <= 10; x++ {
		env.put(model.Vec3i{X: x}, model.Wire, false)
	}
	if got := Walk(env, model.Vec3i{}, 3); len(got) != 3 {
		t.Fatalf("expected budget of 3 wires, got %d", len(got))
	}
	if got := Walk(env, model.Vec3i{}, 0); len(got) != 10 {
		t.Fatalf("expected 10 wires unbounded, got %d", len(got))
	}
}

func TestEngineSink_QueuesOutThenWires(t *testing.T) {
	env := mapEnv{}
	env.put(model.Vec3i{}, model.Out, false)
	env.put(model.Vec3i{X: 1}, model.Wire, false)
	env.put(model.Vec3i{X: 2}, model.Wire, false)
	env.put(model.Vec3i{X: 3}, model.Wire, false)
	env.put(model.Vec3i{X: 4}, model.Switch, true)
	env.put(model.Vec3i{X: -1}, model.Switch, true)

	type change struct {
		pos model.Vec3i
		on  bool
	}
	var got []change
	driven, wires := Engine{}.Sink(env, model.Vec3i{}, func(p model.Vec3i, on bool) {
		got = append(got, change{p, on})
	})
	if !driven || wires != 3 {
		t.Fatalf("driven=%v wires=%d", driven, wires)
	}
	want := []change{{model.Vec3i{}, true}, {model.Vec3i{X: 1}, true}, {model.Vec3i{X: 2}, true}, {model.Vec3i{X: 3}, true}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestEngineSink_SwitchAtFarEndOfChain(t *testing.T) {
	env := mapEnv{}
	env.put(model.Vec3i{}, model.Out, false)
	for x := 1; x <= 3; x++ {
		env.put(model.Vec3i{X: x}, model.Wire, false)
	}
	env.put(model.Vec3i{X: 4}, model.Switch, true)

	var on []model.Vec3i
	driven, _ := Engine{}.Sink(env, model.Vec3i{}, func(p model.Vec3i, v bool) {
		if v {
			on = append(on, p)
		}
	})
	if !driven || len(on) != 4 {
		t.Fatalf("driven=%v on=%v", driven, on)
	}

	env.put(model.Vec3i{X: 4}, model.Switch, false)
	env.put(model.Vec3i{X: 2, Y: 1}, model.Tile, true)
	env.put(model.Vec3i{X: 2, Y: -1}, model.Out, true)
	if driven, _ := (Engine{}).Sink(env, model.Vec3i{}, func(model.Vec3i, bool) {}); driven {
		t.Fatalf("tiles, outs and off switches must not drive the network")
	}
}

func TestEngineSink_GateOnNetworkDoesNotDrive(t *testing.T) {
	for _, k := range []model.Kind{model.And, model.Or, model.Xor, model.Not, model.DFlipFlop} {
		env := mapEnv{}
		env.put(model.Vec3i{}, model.Out, false)
		for x := 1; x <= 3; x++ {
			env.put(model.Vec3i{X: x}, model.Wire, false)
		}
		env.put(model.Vec3i{X: 4}, k, true)
		env.put(model.Vec3i{X: 2, Y: 1}, k, true)

		driven, wires := Engine{}.Sink(env, model.Vec3i{}, func(model.Vec3i, bool) {})
		if driven {
			t.Fatalf("%s next to a network wire must not drive it", k)
		}
		if wires != 3 {
			t.Fatalf("%s: wires=%d", k, wires)
		}

		// Touching the Out itself still drives.
		env.put(model.Vec3i{X: -1}, k, true)
		if driven, _ := (Engine{}).Sink(env, model.Vec3i{}, func(model.Vec3i, bool) {}); !driven {
			t.Fatalf("%s adjacent to the out must drive it", k)
		}
	}
}
