package circuit

import (
	"fmt"

	"voxelcircuit.ai/internal/persistence/snapshot"
	"voxelcircuit.ai/internal/sim/circuit/grid"
	"voxelcircuit.ai/internal/sim/circuit/kernel/model"
)

// ExportSnapshot copies the grid into the save layout, voxels in sorted order.
func (w *World) ExportSnapshot() snapshot.SaveV1 {
	vs := w.grid.Sorted()
	s := snapshot.SaveV1{
		Header: &snapshot.Header{Version: snapshot.Version, World: w.cfg.ID, Tick: w.tick.Load()},
		Voxels: make([]snapshot.VoxelV1, 0, len(vs)),
	}
	for _, v := range vs {
		s.Voxels = append(s.Voxels, snapshot.VoxelV1{Pos: v.Pos.ToArray(), Kind: v.Kind.String(), Signal: v.Signal})
	}
	return s
}

// ImportSnapshot replaces the grid with the saved voxels, signals included. No pass
// runs as part of the import. The save is validated completely before anything is
// replaced, so a failed import leaves the world untouched.
func (w *World) ImportSnapshot(s snapshot.SaveV1) error {
	g, err := gridFromSave(s)
	if err != nil {
		return err
	}
	w.grid = g
	if s.Header != nil {
		w.engine.setPasses(s.Header.Tick)
		w.tick.Store(s.Header.Tick)
	}
	w.pending.reset()
	w.markResync()
	w.audit("WORLD", "LOAD", model.Vec3i{}, "", "", fmt.Sprintf("%d voxels", g.Len()))
	w.publishMetrics()
	return nil
}

func gridFromSave(s snapshot.SaveV1) (*grid.Grid, error) {
	if s.Header != nil && s.Header.Version > snapshot.Version {
		return nil, fmt.Errorf("unsupported save version %d", s.Header.Version)
	}
	g := grid.New()
	for i, v := range s.Voxels {
		k, err := model.ParseKind(v.Kind)
		if err != nil {
			return nil, fmt.Errorf("voxel %d at %v: %w", i, v.Pos, err)
		}
		g.Insert(model.FromArray(v.Pos), k, v.Signal)
	}
	return g, nil
}
