package propagation

import "voxelcircuit.ai/internal/sim/circuit/kernel/model"

// Env is the pre-tick snapshot the engine reads. It must not change during a pass.
type Env interface {
	KindAt(model.Vec3i) (model.Kind, bool)
	SignalAt(model.Vec3i) bool
}

// Driven reports whether the Out at pos is asserted by an adjacent driving voxel.
// Wire, Tile and Out neighbors never drive an Out directly.
func Driven(env Env, pos model.Vec3i) bool {
	for _, p := range model.Neighbors(pos) {
		k, ok := env.KindAt(p)
		if !ok || !k.Drives() {
			continue
		}
		if env.SignalAt(p) {
			return true
		}
	}
	return false
}

// Walk returns every Wire reachable from start through contiguous Wire voxels, in
// breadth-first order. start itself is never included. maxNodes <= 0 means no limit;
// otherwise at most maxNodes wires are returned.
//
// Neighbors are expanded in model.Direction order, so the result is deterministic
// for a given snapshot.
func Walk(env Env, start model.Vec3i, maxNodes int) []model.Vec3i {
	visited := map[model.Vec3i]bool{start: true}
	q := []model.Vec3i{start}
	var out []model.Vec3i

	for len(q) > 0 {
		p := q[0]
		q = q[1:]

		for _, np := range model.Neighbors(p) {
			if visited[np] {
				continue
			}
			if k, ok := env.KindAt(np); !ok || k != model.Wire {
				continue
			}
			visited[np] = true
			out = append(out, np)
			if maxNodes > 0 && len(out) >= maxNodes {
				return out
			}
			q = append(q, np)
		}
	}
	return out
}

// Emit receives one queued state change.
type Emit func(pos model.Vec3i, next bool)

// Engine computes sink states and wire propagation for one pass.
type Engine struct {
	// MaxNodes caps the wires reached from a single Out. Zero means unbounded.
	MaxNodes int
}

// Sink queues the Out at pos and every wire connected to it with one shared state.
// The Out is driven by an adjacent driving voxel that is on. Along the network only
// a Switch counts: gates read these wires as inputs, so letting them drive the
// network would feed their output back into their own inputs.
// It returns that state and the number of wires reached.
func (e Engine) Sink(env Env, pos model.Vec3i, emit Emit) (driven bool, wires int) {
	reached := Walk(env, pos, e.MaxNodes)
	driven = Driven(env, pos)
	for i := 0; !driven && i < len(reached); i++ {
		driven = SwitchAdjacent(env, reached[i])
	}
	emit(pos, driven)
	for _, w := range reached {
		emit(w, driven)
	}
	return driven, len(reached)
}

// SwitchAdjacent reports whether a Switch that is on touches pos.
func SwitchAdjacent(env Env, pos model.Vec3i) bool {
	for _, p := range model.Neighbors(pos) {
		if k, ok := env.KindAt(p); ok && k == model.Switch && env.SignalAt(p) {
			return true
		}
	}
	return false
}
