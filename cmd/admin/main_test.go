package main

import (
	"path/filepath"
	"strings"
	"testing"

	persistlog "voxelcircuit.ai/internal/persistence/log"
	"voxelcircuit.ai/internal/persistence/snapshot"
	"voxelcircuit.ai/internal/sim/circuit"
	"voxelcircuit.ai/internal/sim/circuit/kernel/model"
)

func TestParseAABB_NormalizesCorners(t *testing.T) {
	min, max, err := parseAABB("3,0,-1:-2,5,4")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if min != [3]int{-2, 0, -1} || max != [3]int{3, 5, 4} {
		t.Fatalf("min=%v max=%v", min, max)
	}
	if _, _, err := parseAABB("1,2,3"); err == nil {
		t.Fatalf("expected error for a single corner")
	}
	if _, _, err := parseAABB("1,2:3,4,5"); err == nil {
		t.Fatalf("expected error for a short vector")
	}
}

func TestRollback_UndoesEditsInsideBox(t *testing.T) {
	worldDir := t.TempDir()
	audit := persistlog.NewAuditLogger(worldDir)

	w := circuit.New(circuit.Config{ID: "w_rb"})
	w.SetAuditLogger(audit)
	if _, err := w.Place("u1", model.Vec3i{X: 0}, model.Wire); err != nil {
		t.Fatalf("place: %v", err)
	}
	w.Step()
	base := w.ExportSnapshot()

	// Edits after the base save: one inside the box, one outside.
	if _, err := w.Place("u1", model.Vec3i{X: 0}, model.And); err != nil {
		t.Fatalf("place: %v", err)
	}
	if _, err := w.Place("u1", model.Vec3i{X: 1}, model.Switch); err != nil {
		t.Fatalf("place: %v", err)
	}
	if _, err := w.Toggle("u1", model.Vec3i{X: 1}); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := w.Place("u2", model.Vec3i{X: 50}, model.Tile); err != nil {
		t.Fatalf("place: %v", err)
	}
	if err := audit.Close(); err != nil {
		t.Fatalf("close audit: %v", err)
	}

	min, max, _ := parseAABB("-5,-5,-5:5,5,5")
	recs, err := readAudit(filepath.Join(worldDir, "audit"), 1, 1, min, max)
	if err != nil {
		t.Fatalf("read audit: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 edits in box, got %d", len(recs))
	}
	if recs[0].Entry.Action != "TOGGLE" {
		t.Fatalf("edits must come newest first, got %s", recs[0].Entry.Action)
	}

	out, applied, skipped, err := applyRollback(w.ExportSnapshot(), recs)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if applied != 3 || skipped != 0 {
		t.Fatalf("applied=%d skipped=%d", applied, skipped)
	}

	got := map[[3]int]string{}
	for _, v := range out.Voxels {
		got[v.Pos] = v.Kind
	}
	if got[[3]int{0, 0, 0}] != "Wire" {
		t.Fatalf("replaced voxel not restored: %v", got)
	}
	if _, ok := got[[3]int{1, 0, 0}]; ok {
		t.Fatalf("placed switch should be gone: %v", got)
	}
	if got[[3]int{50, 0, 0}] != "Tile" {
		t.Fatalf("edit outside the box must survive: %v", got)
	}
	if len(base.Voxels) != 1 {
		t.Fatalf("base save changed: %+v", base.Voxels)
	}
}

func TestDescribeSave_CountsKinds(t *testing.T) {
	save := snapshot.SaveV1{
		Header: &snapshot.Header{Version: snapshot.Version, World: "w", Tick: 9},
		Voxels: []snapshot.VoxelV1{
			{Pos: [3]int{0, 0, 0}, Kind: "Wire", Signal: true},
			{Pos: [3]int{1, 0, 0}, Kind: "Wire"},
			{Pos: [3]int{2, 0, 0}, Kind: "Out"},
		},
	}
	info, err := describeSave("x.save.json", save)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if info.Tick != 9 || info.Voxels != 3 || info.On != 1 {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.Kinds["Wire"] != 2 || info.Kinds["Out"] != 1 {
		t.Fatalf("unexpected kinds: %v", info.Kinds)
	}
	if len(info.Digest) != 64 {
		t.Fatalf("digest=%q", info.Digest)
	}

	save.Voxels = append(save.Voxels, snapshot.VoxelV1{Pos: [3]int{3, 0, 0}, Kind: "Lamp"})
	if _, err := describeSave("bad", save); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestFormatState_SummarizesWorld(t *testing.T) {
	m := circuit.WorldMetrics{
		World:      "w1",
		Tick:       42,
		Voxels:     3,
		Kinds:      map[string]int{"Wire": 2, "Switch": 1, "Out": 0},
		Preset:     2,
		IntervalMs: 250,
		LastPass:   circuit.PassMetrics{Changes: 4, Overwrites: 1},
	}
	got := formatState(m)
	for _, want := range []string{"world=w1", "tick=42", "voxels=3", "[Switch=1 Wire=2]", "changes=4 overwrites=1"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
	if strings.Contains(got, "Out=") || strings.Contains(got, "write_errors") {
		t.Fatalf("unexpected field in %q", got)
	}

	m.WriteErrors = circuit.WriteErrors{Audit: 2}
	if got := formatState(m); !strings.Contains(got, "write_errors(tick=0 audit=2)") {
		t.Fatalf("write errors not shown: %q", got)
	}
}
