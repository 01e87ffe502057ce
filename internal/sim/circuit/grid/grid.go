package grid

import (
	"sort"

	"voxelcircuit.ai/internal/sim/circuit/kernel/model"
)

// Grid is a sparse voxel map keyed by integer coordinate.
//
// It is accessed only from the goroutine that owns the circuit; callers must not
// place or remove voxels while a simulation pass is running.
type Grid struct {
	voxels map[model.Vec3i]*model.Voxel
	nextID uint64
}

func New() *Grid {
	return &Grid{voxels: map[model.Vec3i]*model.Voxel{}}
}

func (g *Grid) Len() int { return len(g.voxels) }

// Get returns a copy of the voxel at pos. A missing voxel is not an error.
func (g *Grid) Get(pos model.Vec3i) (model.Voxel, bool) {
	v := g.voxels[pos]
	if v == nil {
		return model.Voxel{}, false
	}
	return *v, true
}

// Insert places a voxel, replacing any previous record at pos. The new record
// always receives a fresh ID, even when it replaces a voxel of the same kind.
func (g *Grid) Insert(pos model.Vec3i, kind model.Kind, signal bool) model.Voxel {
	g.nextID++
	v := &model.Voxel{Pos: pos, Kind: kind, Signal: signal, ID: g.nextID}
	g.voxels[pos] = v
	return *v
}

func (g *Grid) Remove(pos model.Vec3i) bool {
	if _, ok := g.voxels[pos]; !ok {
		return false
	}
	delete(g.voxels, pos)
	return true
}

// Clear drops every voxel. IDs keep increasing across a clear.
func (g *Grid) Clear() {
	g.voxels = map[model.Vec3i]*model.Voxel{}
}

// SetSignal is the simulation-owned write path (pass commit and switch toggles).
// It reports whether a voxel exists at pos.
func (g *Grid) SetSignal(pos model.Vec3i, on bool) bool {
	v := g.voxels[pos]
	if v == nil {
		return false
	}
	v.Signal = on
	return true
}

// Each visits voxels in unspecified order. fn receives a copy.
func (g *Grid) Each(fn func(v model.Voxel)) {
	for _, v := range g.voxels {
		fn(*v)
	}
}

// Sorted returns all voxels ordered by position.
func (g *Grid) Sorted() []model.Voxel {
	if len(g.voxels) == 0 {
		return nil
	}
	out := make([]model.Voxel, 0, len(g.voxels))
	for _, v := range g.voxels {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return model.Less(out[i].Pos, out[j].Pos) })
	return out
}

// CountByKind tallies voxels per kind.
func (g *Grid) CountByKind() map[model.Kind]int {
	out := map[model.Kind]int{}
	for _, v := range g.voxels {
		out[v.Kind]++
	}
	return out
}

type cell struct {
	kind   model.Kind
	signal bool
}

// Snapshot is a frozen copy of kinds and signals taken at the start of a pass.
type Snapshot struct {
	cells map[model.Vec3i]cell
	order []model.Vec3i
}

// Snapshot copies the current state. Later grid mutations do not affect it.
func (g *Grid) Snapshot() *Snapshot {
	s := &Snapshot{
		cells: make(map[model.Vec3i]cell, len(g.voxels)),
		order: make([]model.Vec3i, 0, len(g.voxels)),
	}
	for p, v := range g.voxels {
		s.cells[p] = cell{kind: v.Kind, signal: v.Signal}
		s.order = append(s.order, p)
	}
	sort.Slice(s.order, func(i, j int) bool { return model.Less(s.order[i], s.order[j]) })
	return s
}

func (s *Snapshot) Len() int { return len(s.order) }

func (s *Snapshot) KindAt(p model.Vec3i) (model.Kind, bool) {
	c, ok := s.cells[p]
	return c.kind, ok
}

// SignalAt returns false for missing positions.
func (s *Snapshot) SignalAt(p model.Vec3i) bool {
	return s.cells[p].signal
}

// Positions returns snapshot positions in sorted order. The slice must not be modified.
func (s *Snapshot) Positions() []model.Vec3i { return s.order }
