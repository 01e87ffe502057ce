package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	persistlog "voxelcircuit.ai/internal/persistence/log"
	"voxelcircuit.ai/internal/persistence/snapshot"
	"voxelcircuit.ai/internal/sim/circuit"
	"voxelcircuit.ai/internal/sim/circuit/kernel/model"
	"voxelcircuit.ai/internal/sim/tuning"
)

func main() {
	var (
		savePath   = flag.String("save", "", "path to a save")
		worldDir   = flag.String("world_dir", "", "world dir containing events/ and audit/ (optional)")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		fromTick   = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *savePath == "" {
		fmt.Fprintln(os.Stderr, "missing -save")
		os.Exit(2)
	}

	save, err := snapshot.Read(*savePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read save:", err)
		os.Exit(1)
	}
	var hdr snapshot.Header
	if save.Header != nil {
		hdr = *save.Header
	}
	fmt.Printf("save v%d world=%s tick=%d voxels=%d\n", hdr.Version, hdr.World, hdr.Tick, len(save.Voxels))

	if *worldDir == "" {
		return
	}

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}

	ticks, err := readTicks(filepath.Join(*worldDir, "events"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read events:", err)
		os.Exit(1)
	}
	if len(ticks) == 0 {
		fmt.Fprintln(os.Stderr, "no events files found in", filepath.Join(*worldDir, "events"))
		os.Exit(1)
	}
	edits, err := readEdits(filepath.Join(*worldDir, "audit"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}

	checked, err := replay(save, edits, ticks, options{
		MaxNodes: tune.PropagationMaxNodes,
		From:     *fromTick,
		To:       *toTick,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d passes (from save tick=%d)\n", checked, hdr.Tick)
}

type options struct {
	MaxNodes int
	From     uint64 // first tick whose digest is compared; 0 means the save tick
	To       uint64 // last tick replayed; 0 means all
}

func readTicks(dir string) ([]circuit.TickLogEntry, error) {
	files, err := persistlog.Files(dir, "events")
	if err != nil {
		return nil, err
	}
	var out []circuit.TickLogEntry
	for _, path := range files {
		err := persistlog.ReadJSONLZstd(path, func(line []byte) error {
			var e circuit.TickLogEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
			}
			out = append(out, e)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readEdits(dir string) ([]circuit.AuditEntry, error) {
	files, err := persistlog.Files(dir, "audit")
	if err != nil {
		return nil, err
	}
	var out []circuit.AuditEntry
	for _, path := range files {
		err := persistlog.ReadJSONLZstd(path, func(line []byte) error {
			var e circuit.AuditEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
			}
			out = append(out, e)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// replay loads save, then re-runs passes and edits in log order, comparing the grid
// digest after every logged pass. Passes that committed nothing are not logged but
// are still stepped. An edit audited at tick t was applied after pass t.
func replay(save snapshot.SaveV1, edits []circuit.AuditEntry, ticks []circuit.TickLogEntry, opt options) (uint64, error) {
	id := ""
	if save.Header != nil {
		id = save.Header.World
	}
	w := circuit.New(circuit.Config{ID: id, MaxPropagationNodes: opt.MaxNodes})
	if err := w.ImportSnapshot(save); err != nil {
		return 0, fmt.Errorf("import save: %w", err)
	}
	startTick := w.CurrentTick()
	verifyFrom := opt.From
	if verifyFrom == 0 {
		verifyFrom = startTick
	}

	edits = editsAfterSave(edits, startTick)

	var checked uint64
	next := 0
	applyUpTo := func(tick uint64) error {
		for next < len(edits) && edits[next].Tick <= tick {
			if err := applyEdit(w, edits[next]); err != nil {
				return err
			}
			next++
		}
		return nil
	}

	for _, entry := range ticks {
		if entry.Tick <= startTick {
			continue
		}
		if opt.To != 0 && entry.Tick > opt.To {
			break
		}
		for w.CurrentTick() < entry.Tick {
			if err := applyUpTo(w.CurrentTick()); err != nil {
				return checked, err
			}
			w.Step()
		}
		if w.CurrentTick() != entry.Tick {
			return checked, fmt.Errorf("tick mismatch: want=%d got=%d", entry.Tick, w.CurrentTick())
		}
		if entry.Tick >= verifyFrom {
			checked++
			if got := circuit.Digest(w.Grid()); got != entry.Digest {
				return checked, fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", entry.Tick, got, entry.Digest)
			}
		}
	}
	return checked, nil
}

// editsAfterSave drops the edits already contained in a save taken at tick. The
// SAVE marker pins the exact position; without one, edits at the save tick are
// assumed to follow it.
func editsAfterSave(edits []circuit.AuditEntry, tick uint64) []circuit.AuditEntry {
	for i, e := range edits {
		if e.Action == "SAVE" && e.Tick == tick {
			return edits[i+1:]
		}
	}
	for i, e := range edits {
		if e.Tick >= tick {
			return edits[i:]
		}
	}
	return nil
}

func applyEdit(w *circuit.World, e circuit.AuditEntry) error {
	pos := model.FromArray(e.Pos)
	switch e.Action {
	case "PLACE":
		k, err := model.ParseKind(e.To)
		if err != nil {
			return fmt.Errorf("tick %d: %w", e.Tick, err)
		}
		_, err = w.Place(e.Actor, pos, k)
		return err
	case "REMOVE":
		w.Remove(e.Actor, pos)
	case "TOGGLE":
		if _, err := w.Toggle(e.Actor, pos); err != nil {
			return fmt.Errorf("tick %d: toggle %v: %w", e.Tick, e.Pos, err)
		}
	case "CLEAR":
		w.Reset(e.Actor)
	case "LOAD":
		// A restart resuming from the state being replayed is a no-op.
		if e.Tick != w.CurrentTick() || e.Reason != fmt.Sprintf("%d voxels", w.Grid().Len()) {
			return fmt.Errorf("world was reloaded at tick %d; replay from a later save", e.Tick)
		}
	}
	return nil
}
