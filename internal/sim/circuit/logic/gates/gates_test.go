package gates

import (
	"testing"
	"testing/quick"

	"voxelcircuit.ai/internal/sim/circuit/kernel/model"
)

// inputsFromBits decodes a 12-bit pattern: low 6 bits = present, high 6 bits = on.
func inputsFromBits(bits uint16) Inputs {
	var in Inputs
	for d := 0; d < model.NumDirections; d++ {
		if bits&(1<<uint(d)) != 0 {
			in[d] = Input{Present: true, On: bits&(1<<uint(d+6)) != 0}
		}
	}
	return in
}

func TestEvaluate_AllInputCombinations(t *testing.T) {
	for bits := uint16(0); bits < 1<<12; bits++ {
		in := inputsFromBits(bits)
		present, on := in.Counts()

		if got, want := Evaluate(model.And, false, in), present >= 1 && on == present; got != want {
			t.Fatalf("And %v = %v, want %v", in, got, want)
		}
		if got, want := Evaluate(model.Or, false, in), on >= 1; got != want {
			t.Fatalf("Or %v = %v, want %v", in, got, want)
		}
		if got, want := Evaluate(model.Xor, false, in), on == 1; got != want {
			t.Fatalf("Xor %v = %v, want %v", in, got, want)
		}
		if got, want := Evaluate(model.Not, false, in), present == 1 && on == 0; got != want {
			t.Fatalf("Not %v = %v, want %v", in, got, want)
		}
	}
}

func TestEvaluate_GatesIgnorePrev(t *testing.T) {
	f := func(bits uint16, prev bool) bool {
		in := inputsFromBits(bits & 0x0fff)
		for _, k := range []model.Kind{model.And, model.Or, model.Xor, model.Not} {
			if Evaluate(k, prev, in) != Evaluate(k, !prev, in) {
				return false
			}
		}
		return true
	}
	if err := quick.Check(f, nil); err != nil {
		t.Fatal(err)
	}
}

func TestEvaluate_NotDegenerate(t *testing.T) {
	var none Inputs
	if Evaluate(model.Not, true, none) {
		t.Fatalf("Not with no inputs must be false")
	}
	var two Inputs
	two[model.PosX] = Input{Present: true}
	two[model.NegX] = Input{Present: true}
	if Evaluate(model.Not, false, two) {
		t.Fatalf("Not with two inputs must be false")
	}
	var one Inputs
	one[model.PosZ] = Input{Present: true}
	if !Evaluate(model.Not, false, one) {
		t.Fatalf("Not with one false input must be true")
	}
}

func TestEvaluate_FlipFlopHoldsWhenClockLow(t *testing.T) {
	f := func(bits uint16, prev bool) bool {
		in := inputsFromBits(bits & 0x0fff)
		in[model.PosY] = Input{Present: bits&0x8000 != 0, On: false}
		return Evaluate(model.DFlipFlop, prev, in) == prev
	}
	if err := quick.Check(f, nil); err != nil {
		t.Fatal(err)
	}
}

func TestEvaluate_FlipFlopLatchesDataWhenClockHigh(t *testing.T) {
	f := func(bits uint16, prev bool) bool {
		in := inputsFromBits(bits & 0x0fff)
		in[model.PosY] = Input{Present: true, On: true}
		data := false
		for _, d := range []model.Direction{model.PosX, model.NegX, model.PosZ, model.NegZ} {
			if in[d].Present && in[d].On {
				data = true
			}
		}
		return Evaluate(model.DFlipFlop, prev, in) == data
	}
	if err := quick.Check(f, nil); err != nil {
		t.Fatal(err)
	}
}

func TestEvaluate_FlipFlopIgnoresBelow(t *testing.T) {
	var in Inputs
	in[model.PosY] = Input{Present: true, On: true}
	in[model.NegY] = Input{Present: true, On: true}
	if Evaluate(model.DFlipFlop, true, in) {
		t.Fatalf("-Y neighbor must not act as data")
	}
}

func TestEvaluate_NonGatesKeepPrev(t *testing.T) {
	var in Inputs
	in[model.PosX] = Input{Present: true, On: true}
	for _, k := range []model.Kind{model.Switch, model.Tile, model.Wire, model.Out} {
		if IsGate(k) {
			t.Fatalf("%s must not be a gate", k)
		}
		if !Evaluate(k, true, in) || Evaluate(k, false, in) {
			t.Fatalf("%s must keep its previous state", k)
		}
	}
}

type mapEnv map[model.Vec3i]model.Voxel

func (m mapEnv) KindAt(p model.Vec3i) (model.Kind, bool) {
	v, ok := m[p]
	return v.Kind, ok
}

func (m mapEnv) SignalAt(p model.Vec3i) bool { return m[p].Signal }

func TestSample_OnlyWireNeighborsCount(t *testing.T) {
	env := mapEnv{
		{X: 1}:  {Kind: model.Wire, Signal: true},
		{X: -1}: {Kind: model.Switch, Signal: true},
		{Y: 1}:  {Kind: model.Wire, Signal: false},
		{Z: 1}:  {Kind: model.And, Signal: true},
		{X: 2}:  {Kind: model.Wire, Signal: true}, // not adjacent
	}
	in := Sample(env, model.Vec3i{})
	present, on := in.Counts()
	if present != 2 || on != 1 {
		t.Fatalf("expected 2 present / 1 on, got %d / %d", present, on)
	}
	if !in[model.PosX].On || !in[model.PosY].Present || in[model.NegX].Present {
		t.Fatalf("unexpected inputs: %+v", in)
	}
}
