package circuit

import (
	"sort"

	"voxelcircuit.ai/internal/protocol"
	"voxelcircuit.ai/internal/sim/circuit/changes"
	"voxelcircuit.ai/internal/sim/circuit/kernel/model"
)

// pendingDelta records positions touched since the last broadcast. A position is
// either structural (placed, replaced or removed) or signal-only; the final grid
// state decides what is sent, so the message fields never overlap.
type pendingDelta struct {
	touched map[model.Vec3i]bool // true = structural
}

func newPendingDelta() pendingDelta {
	return pendingDelta{touched: map[model.Vec3i]bool{}}
}

func (d *pendingDelta) structural(p model.Vec3i) { d.touched[p] = true }

func (d *pendingDelta) signal(p model.Vec3i) {
	if _, ok := d.touched[p]; !ok {
		d.touched[p] = false
	}
}

func (d *pendingDelta) empty() bool { return len(d.touched) == 0 }

func (d *pendingDelta) reset() {
	for k := range d.touched {
		delete(d.touched, k)
	}
}

// build turns the touched set into a TICK message against the current grid state.
func (w *World) buildDelta() protocol.TickMsg {
	msg := protocol.TickMsg{Type: protocol.TypeTick, ProtocolVersion: protocol.Version, Tick: w.tick.Load()}
	pos := make([]model.Vec3i, 0, len(w.pending.touched))
	for p := range w.pending.touched {
		pos = append(pos, p)
	}
	sort.Slice(pos, func(i, j int) bool { return model.Less(pos[i], pos[j]) })

	for _, p := range pos {
		v, ok := w.grid.Get(p)
		switch {
		case w.pending.touched[p] && ok:
			msg.Placed = append(msg.Placed, voxelState(v))
		case w.pending.touched[p]:
			msg.Removed = append(msg.Removed, p.ToArray())
		case ok:
			msg.Changes = append(msg.Changes, protocol.SignalChange{Pos: p.ToArray(), Signal: v.Signal})
		}
	}
	return msg
}

func (w *World) fullState() []protocol.VoxelState {
	vs := w.grid.Sorted()
	out := make([]protocol.VoxelState, 0, len(vs))
	for _, v := range vs {
		out = append(out, voxelState(v))
	}
	return out
}

func voxelState(v model.Voxel) protocol.VoxelState {
	return protocol.VoxelState{Pos: v.Pos.ToArray(), Kind: v.Kind.String(), Signal: v.Signal, ID: v.ID}
}

func signalChanges(cs []changes.Change) []protocol.SignalChange {
	if len(cs) == 0 {
		return nil
	}
	out := make([]protocol.SignalChange, 0, len(cs))
	for _, c := range cs {
		out = append(out, protocol.SignalChange{Pos: c.Pos.ToArray(), Signal: c.Signal})
	}
	return out
}
