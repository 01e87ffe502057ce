package circuit

import (
	"time"

	"voxelcircuit.ai/internal/sim/circuit/changes"
	"voxelcircuit.ai/internal/sim/circuit/grid"
	"voxelcircuit.ai/internal/sim/circuit/kernel/model"
	"voxelcircuit.ai/internal/sim/circuit/logic/gates"
	"voxelcircuit.ai/internal/sim/circuit/logic/propagation"
	"voxelcircuit.ai/internal/sim/circuit/scheduler"
)

// PassStats describes one completed simulation pass.
type PassStats struct {
	Tick uint64

	Gates int // gates evaluated
	Sinks int // Out voxels evaluated
	Wires int // wires reached by propagation, summed over sinks

	Queued     int // queued changes, duplicates included
	Overwrites int // conflicting duplicates resolved by last write

	Changes []changes.Change
}

// Engine runs simulation passes over a grid it does not own. It holds no grid
// reference between calls.
type Engine struct {
	sched *scheduler.Scheduler
	buf   *changes.Buffer
	prop  propagation.Engine

	passes uint64
}

func NewEngine(presets []time.Duration, preset, maxNodes int) *Engine {
	return &Engine{
		sched: scheduler.New(presets, preset),
		buf:   changes.NewBuffer(),
		prop:  propagation.Engine{MaxNodes: maxNodes},
	}
}

func (e *Engine) Scheduler() *scheduler.Scheduler { return e.sched }

// Passes is the number of completed passes, which is also the current tick.
func (e *Engine) Passes() uint64 { return e.passes }

func (e *Engine) setPasses(n uint64) { e.passes = n }

// Advance feeds host time to the scheduler and runs one pass when it is due.
func (e *Engine) Advance(g *grid.Grid, dt time.Duration) (PassStats, bool) {
	if !e.sched.Advance(dt) {
		return PassStats{}, false
	}
	return e.Step(g), true
}

// Step runs exactly one pass: snapshot, gates, sinks with propagation, commit.
// Every read during the pass comes from the snapshot; the grid is written only by
// the final commit.
func (e *Engine) Step(g *grid.Grid) PassStats {
	snap := g.Snapshot()
	var st PassStats

	for _, p := range snap.Positions() {
		k, _ := snap.KindAt(p)
		if !gates.IsGate(k) {
			continue
		}
		e.buf.Queue(p, gates.Evaluate(k, snap.SignalAt(p), gates.Sample(snap, p)))
		st.Gates++
	}
	for _, p := range snap.Positions() {
		if k, _ := snap.KindAt(p); k != model.Out {
			continue
		}
		_, wires := e.prop.Sink(snap, p, e.buf.Queue)
		st.Sinks++
		st.Wires += wires
	}

	st.Queued = e.buf.Len()
	st.Overwrites = e.buf.Overwrites()
	st.Changes = e.buf.Commit(g)

	e.passes++
	st.Tick = e.passes
	return st
}
