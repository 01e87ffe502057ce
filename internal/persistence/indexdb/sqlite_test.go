package indexdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"voxelcircuit.ai/internal/persistence/snapshot"
	"voxelcircuit.ai/internal/protocol"
	"voxelcircuit.ai/internal/sim/circuit"
	"voxelcircuit.ai/internal/sim/tuning"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: circuit.TickLogEntry{Tick: 1}}

	_ = s.WriteTick(circuit.TickLogEntry{Tick: 2})
	_ = s.WriteAudit(circuit.AuditEntry{Tick: 2})
	s.RecordSave("/tmp/2.save.json.zst", snapshot.SaveV1{})

	st := s.Stats()
	if st.DropTickTotal != 1 || st.DropAuditTotal != 1 || st.DropSaveTotal != 1 {
		t.Fatalf("unexpected drop stats: %+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_WriteAndQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "world.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.UpsertTuning("w1", tuning.Defaults()); err != nil {
		t.Fatalf("tuning: %v", err)
	}

	_ = idx.WriteTick(circuit.TickLogEntry{
		Tick: 1, Sinks: 1, Wires: 2, Digest: "d1",
		Changes: []protocol.SignalChange{{Pos: [3]int{0, 0, 0}, Signal: true}, {Pos: [3]int{1, 0, 0}, Signal: true}},
	})
	_ = idx.WriteTick(circuit.TickLogEntry{
		Tick: 5, Sinks: 1, Digest: "d5", Overwrites: 1,
		Changes: []protocol.SignalChange{{Pos: [3]int{0, 0, 0}, Signal: false}},
	})
	_ = idx.WriteAudit(circuit.AuditEntry{Tick: 0, Actor: "S1", Action: "PLACE", Pos: [3]int{0, 0, 0}, To: "Out"})
	_ = idx.WriteAudit(circuit.AuditEntry{Tick: 0, Actor: "S2", Action: "PLACE", Pos: [3]int{1, 0, 0}, To: "Wire"})
	_ = idx.WriteAudit(circuit.AuditEntry{Tick: 3, Actor: "S1", Action: "TOGGLE", Pos: [3]int{2, 0, 0}, From: "off", To: "on"})
	idx.RecordSave("/data/5.save.json.zst", snapshot.SaveV1{
		Header: &snapshot.Header{Version: snapshot.Version, World: "w1", Tick: 5},
		Voxels: []snapshot.VoxelV1{{Pos: [3]int{0, 0, 0}, Kind: "Out"}, {Pos: [3]int{1, 0, 0}, Kind: "Wire"}},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := idx.Sync(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	defer r.Close()

	if w, err := r.Meta(ctx, "world"); err != nil || w != "w1" {
		t.Fatalf("meta world=%q err=%v", w, err)
	}
	ticks, err := r.Ticks(ctx, 10)
	if err != nil || len(ticks) != 2 {
		t.Fatalf("ticks=%+v err=%v", ticks, err)
	}
	if ticks[0].Tick != 5 || ticks[0].Overwrites != 1 || ticks[1].Changes != 2 {
		t.Fatalf("unexpected tick rows: %+v", ticks)
	}

	audits, err := r.Audits(ctx, "S1", 10)
	if err != nil || len(audits) != 2 {
		t.Fatalf("audits=%+v err=%v", audits, err)
	}
	if audits[0].Action != "TOGGLE" || audits[0].To != "on" {
		t.Fatalf("unexpected newest audit: %+v", audits[0])
	}
	all, _ := r.Audits(ctx, "", 10)
	if len(all) != 3 {
		t.Fatalf("expected 3 audits, got %d", len(all))
	}

	saves, err := r.Saves(ctx, 10)
	if err != nil || len(saves) != 1 {
		t.Fatalf("saves=%+v err=%v", saves, err)
	}
	if saves[0].Tick != 5 || saves[0].Voxels != 2 || saves[0].World != "w1" || saves[0].Digest == "" {
		t.Fatalf("unexpected save row: %+v", saves[0])
	}

	hist, sig, err := r.SignalHistory(ctx, [3]int{0, 0, 0}, 10)
	if err != nil || len(hist) != 2 || !sig[0] || sig[1] {
		t.Fatalf("history ticks=%v signals=%v err=%v", hist, sig, err)
	}
}

func TestSaveDigest_OrderSensitive(t *testing.T) {
	a := snapshot.SaveV1{Voxels: []snapshot.VoxelV1{{Pos: [3]int{0, 0, 0}, Kind: "Wire"}, {Pos: [3]int{1, 0, 0}, Kind: "Out"}}}
	b := snapshot.SaveV1{Voxels: []snapshot.VoxelV1{{Pos: [3]int{1, 0, 0}, Kind: "Out"}, {Pos: [3]int{0, 0, 0}, Kind: "Wire"}}}
	if SaveDigest(a) == SaveDigest(b) {
		t.Fatalf("digest should depend on file order")
	}
	if SaveDigest(a) != SaveDigest(a) {
		t.Fatalf("digest not stable")
	}
}
