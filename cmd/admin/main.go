package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	persistlog "voxelcircuit.ai/internal/persistence/log"
	"voxelcircuit.ai/internal/persistence/snapshot"
	"voxelcircuit.ai/internal/sim/circuit"
	"voxelcircuit.ai/internal/sim/circuit/kernel/model"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "info":
			infoCmd(os.Args[2:])
			return
		case "convert":
			convertCmd(os.Args[2:])
			return
		case "rollback":
			rollbackCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "save":
			saveCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional; lists worlds when empty)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID, "saves")
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

type saveInfo struct {
	Path    string         `json:"path"`
	World   string         `json:"world,omitempty"`
	Tick    uint64         `json:"tick"`
	Version int            `json:"version"`
	Voxels  int            `json:"voxels"`
	Kinds   map[string]int `json:"kinds"`
	On      int            `json:"signals_on"`
	Digest  string         `json:"digest"`
}

func infoCmd(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: admin info <save>")
		os.Exit(2)
	}
	save, err := snapshot.Read(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read save:", err)
		os.Exit(1)
	}
	info, err := describeSave(fs.Arg(0), save)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load save:", err)
		os.Exit(1)
	}
	printJSON(info)
}

func describeSave(path string, save snapshot.SaveV1) (saveInfo, error) {
	w := circuit.New(circuit.Config{})
	if err := w.ImportSnapshot(save); err != nil {
		return saveInfo{}, err
	}
	info := saveInfo{
		Path:   path,
		Voxels: len(save.Voxels),
		Kinds:  map[string]int{},
		Digest: circuit.Digest(w.Grid()),
	}
	if save.Header != nil {
		info.World = save.Header.World
		info.Tick = save.Header.Tick
		info.Version = save.Header.Version
	}
	for k, n := range w.Grid().CountByKind() {
		info.Kinds[k.String()] = n
	}
	for _, v := range save.Voxels {
		if v.Signal {
			info.On++
		}
	}
	return info, nil
}

// convertCmd rewrites a save. The output is compressed when its name ends in .zst.
func convertCmd(args []string) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	_ = fs.Parse(args)
	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: admin convert <in> <out>")
		os.Exit(2)
	}
	save, err := snapshot.Read(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read save:", err)
		os.Exit(1)
	}
	if err := snapshot.Write(fs.Arg(1), save); err != nil {
		fmt.Fprintln(os.Stderr, "write save:", err)
		os.Exit(1)
	}
	fmt.Printf("convert ok: in=%s out=%s voxels=%d\n", fs.Arg(0), fs.Arg(1), len(save.Voxels))
}

func rollbackCmd(args []string) {
	fs := flag.NewFlagSet("rollback", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	savePath := fs.String("save", "", "save to roll back from (optional; defaults to latest)")
	aabb := fs.String("aabb", "", "AABB filter: x1,y1,z1:x2,y2,z2 (required)")
	sinceTick := fs.Uint64("since_tick", 0, "roll back edits since tick (inclusive)")
	toTick := fs.Uint64("to_tick", 0, "roll back edits up to tick (inclusive, optional; defaults to save tick)")
	outPath := fs.String("out", "", "output save path (optional)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	if strings.TrimSpace(*aabb) == "" {
		fmt.Fprintln(os.Stderr, "missing -aabb")
		os.Exit(2)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	saveToLoad := strings.TrimSpace(*savePath)
	if saveToLoad == "" {
		saveToLoad = snapshot.Latest(filepath.Join(worldDir, "saves"))
	}
	if saveToLoad == "" {
		fmt.Fprintln(os.Stderr, "no save found; provide -save or run server until it writes one")
		os.Exit(2)
	}

	save, err := snapshot.Read(saveToLoad)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read save:", err)
		os.Exit(1)
	}

	min, max, err := parseAABB(*aabb)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -aabb:", err)
		os.Exit(2)
	}

	var saveTick uint64
	if save.Header != nil {
		saveTick = save.Header.Tick
	}
	endTick := *toTick
	if endTick == 0 || endTick > saveTick {
		endTick = saveTick
	}

	recs, err := readAudit(filepath.Join(worldDir, "audit"), *sinceTick, endTick, min, max)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	if len(recs) == 0 {
		fmt.Println("no matching audit entries; nothing to roll back")
		return
	}

	out, applied, skipped, err := applyRollback(save, recs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rollback:", err)
		os.Exit(1)
	}

	if strings.TrimSpace(*outPath) == "" {
		*outPath = filepath.Join(worldDir, "saves", fmt.Sprintf("%d.rollback.save.json.zst", saveTick))
	}
	if err := snapshot.Write(*outPath, out); err != nil {
		fmt.Fprintln(os.Stderr, "write save:", err)
		os.Exit(1)
	}

	fmt.Printf("rollback ok: save=%s tick=%d aabb=%s since=%d to=%d entries=%d applied=%d skipped=%d out=%s\n",
		filepath.Base(saveToLoad), saveTick, *aabb, *sinceTick, endTick, len(recs), applied, skipped, *outPath)
}

type auditRec struct {
	Seq   uint64
	Entry circuit.AuditEntry
}

// readAudit returns the grid edits inside the box, newest first.
func readAudit(dir string, sinceTick, toTick uint64, min, max [3]int) ([]auditRec, error) {
	files, err := persistlog.Files(dir, "audit")
	if err != nil {
		return nil, err
	}

	out := make([]auditRec, 0, 1024)
	var seq uint64
	for _, path := range files {
		err := persistlog.ReadJSONLZstd(path, func(line []byte) error {
			var e circuit.AuditEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
			}
			seq++
			switch e.Action {
			case "PLACE", "REMOVE", "TOGGLE":
			default:
				return nil
			}
			if e.Tick < sinceTick || e.Tick > toTick {
				return nil
			}
			if !withinAABB(e.Pos, min, max) {
				return nil
			}
			out = append(out, auditRec{Seq: seq, Entry: e})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// applyRollback undoes recs (newest first) against save. Restored voxels come back
// with their signal off; the next pass recomputes it. A toggle is undone only if a
// Switch still sits at its position.
func applyRollback(save snapshot.SaveV1, recs []auditRec) (snapshot.SaveV1, int, int, error) {
	w := circuit.New(circuit.Config{})
	if err := w.ImportSnapshot(save); err != nil {
		return save, 0, 0, err
	}
	g := w.Grid()

	applied, skipped := 0, 0
	for _, r := range recs {
		pos := model.FromArray(r.Entry.Pos)
		switch r.Entry.Action {
		case "PLACE", "REMOVE":
			if r.Entry.From == "" {
				g.Remove(pos)
				applied++
				continue
			}
			k, err := model.ParseKind(r.Entry.From)
			if err != nil {
				skipped++
				continue
			}
			g.Insert(pos, k, false)
			applied++
		case "TOGGLE":
			v, ok := g.Get(pos)
			if !ok || v.Kind != model.Switch {
				skipped++
				continue
			}
			g.SetSignal(pos, r.Entry.From == "on")
			applied++
		}
	}

	out := w.ExportSnapshot()
	out.Header = save.Header
	return out, applied, skipped, nil
}

func withinAABB(pos [3]int, min, max [3]int) bool {
	return pos[0] >= min[0] && pos[0] <= max[0] &&
		pos[1] >= min[1] && pos[1] <= max[1] &&
		pos[2] >= min[2] && pos[2] <= max[2]
}

func parseAABB(s string) (min, max [3]int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return min, max, fmt.Errorf("expected x1,y1,z1:x2,y2,z2")
	}
	a, err := parseVec3(parts[0])
	if err != nil {
		return min, max, err
	}
	b, err := parseVec3(parts[1])
	if err != nil {
		return min, max, err
	}
	for i := 0; i < 3; i++ {
		if a[i] <= b[i] {
			min[i], max[i] = a[i], b[i]
		} else {
			min[i], max[i] = b[i], a[i]
		}
	}
	return min, max, nil
}

func parseVec3(s string) ([3]int, error) {
	var v [3]int
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("expected x,y,z")
	}
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return v, err
		}
		v[i] = n
	}
	return v, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
