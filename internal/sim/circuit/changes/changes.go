package changes

import "voxelcircuit.ai/internal/sim/circuit/kernel/model"

// Target is the write side of the grid used at commit time.
type Target interface {
	Get(model.Vec3i) (model.Voxel, bool)
	SetSignal(model.Vec3i, bool) bool
}

// Change is one committed signal transition.
type Change struct {
	Pos    model.Vec3i
	Signal bool
}

type entry struct {
	pos  model.Vec3i
	next bool
}

// Buffer collects the next states computed during one pass and writes them back
// in one batch. Nothing is written to the grid before Commit.
//
// A position queued more than once keeps the last value in queue order.
type Buffer struct {
	queued []entry
	last   map[model.Vec3i]bool

	overwrites int
}

func NewBuffer() *Buffer {
	return &Buffer{last: map[model.Vec3i]bool{}}
}

func (b *Buffer) Queue(pos model.Vec3i, next bool) {
	if prev, ok := b.last[pos]; ok && prev != next {
		b.overwrites++
	}
	b.last[pos] = next
	b.queued = append(b.queued, entry{pos: pos, next: next})
}

// Len is the number of queued entries, duplicates included.
func (b *Buffer) Len() int { return len(b.queued) }

// Overwrites counts re-queued positions whose value conflicted with an earlier entry
// in the same pass.
func (b *Buffer) Overwrites() int { return b.overwrites }

// Pending returns the value that Commit would write for pos.
func (b *Buffer) Pending(pos model.Vec3i) (next, ok bool) {
	next, ok = b.last[pos]
	return next, ok
}

// Commit applies every queued change and resets the buffer. It returns the
// transitions that actually changed a signal, in first-queued order.
func (b *Buffer) Commit(t Target) []Change {
	var out []Change
	done := make(map[model.Vec3i]bool, len(b.last))
	for _, e := range b.queued {
		if done[e.pos] {
			continue
		}
		done[e.pos] = true
		next := b.last[e.pos]
		cur, ok := t.Get(e.pos)
		if !ok || cur.Signal == next {
			continue
		}
		t.SetSignal(e.pos, next)
		out = append(out, Change{Pos: e.pos, Signal: next})
	}
	b.Reset()
	return out
}

// Reset drops queued entries without touching the grid.
func (b *Buffer) Reset() {
	b.queued = b.queued[:0]
	for k := range b.last {
		delete(b.last, k)
	}
	b.overwrites = 0
}
