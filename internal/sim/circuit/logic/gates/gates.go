package gates

import "voxelcircuit.ai/internal/sim/circuit/kernel/model"

// Env is the read-only view gates sample from. It is always the pre-tick snapshot.
type Env interface {
	KindAt(model.Vec3i) (model.Kind, bool)
	SignalAt(model.Vec3i) bool
}

// Input is one optional wire input.
type Input struct {
	Present bool
	On      bool
}

// Inputs holds the wire inputs of a gate indexed by model.Direction.
type Inputs [model.NumDirections]Input

// Sample reads the six axis neighbors of pos. Only Wire neighbors count as inputs.
func Sample(env Env, pos model.Vec3i) Inputs {
	var in Inputs
	for d, p := range model.Neighbors(pos) {
		k, ok := env.KindAt(p)
		if !ok || k != model.Wire {
			continue
		}
		in[d] = Input{Present: true, On: env.SignalAt(p)}
	}
	return in
}

// Counts returns how many inputs are present and how many of those are on.
func (in Inputs) Counts() (present, on int) {
	for _, i := range in {
		if !i.Present {
			continue
		}
		present++
		if i.On {
			on++
		}
	}
	return present, on
}

// IsGate reports whether kind is evaluated automatically each pass.
func IsGate(kind model.Kind) bool {
	switch kind {
	case model.And, model.Or, model.Xor, model.Not, model.DFlipFlop:
		return true
	}
	return false
}

// Evaluate returns the next state of a voxel of the given kind.
// Non-gate kinds keep prev.
func Evaluate(kind model.Kind, prev bool, in Inputs) bool {
	present, on := in.Counts()
	switch kind {
	case model.And:
		return present > 0 && on == present
	case model.Or:
		return on > 0
	case model.Xor:
		return on == 1
	case model.Not:
		return present == 1 && on == 0
	case model.DFlipFlop:
		return flipFlop(prev, in)
	default:
		return prev
	}
}

// flipFlop is level sensitive: +Y is the clock, the four lateral neighbors are data.
// The -Y neighbor is ignored.
func flipFlop(prev bool, in Inputs) bool {
	clk := in[model.PosY]
	if !clk.Present || !clk.On {
		return prev
	}
	for d := model.Direction(0); d < model.NumDirections; d++ {
		if d.Lateral() && in[d].Present && in[d].On {
			return true
		}
	}
	return false
}
