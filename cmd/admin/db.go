package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"voxelcircuit.ai/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	actor := fs.String("actor", "", "actor filter (audits)")
	pos := fs.String("pos", "", "voxel position x,y,z (signals)")
	_ = fs.Parse(args)

	q := "saves"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}

	r, err := indexdb.OpenReader(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer r.Close()

	if err := runQuery(context.Background(), r, q, *limit, *actor, *pos); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if strings.HasPrefix(err.Error(), "unknown query") {
			fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-world WORLD|-db PATH] [-limit N] saves|ticks|audits|signals|tuning")
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func runQuery(ctx context.Context, r *indexdb.Reader, q string, limit int, actor, pos string) error {
	switch q {
	case "saves":
		rows, err := r.Saves(ctx, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		for _, row := range rows {
			printJSON(row)
		}

	case "ticks":
		rows, err := r.Ticks(ctx, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		for _, row := range rows {
			printJSON(row)
		}

	case "audits":
		rows, err := r.Audits(ctx, strings.TrimSpace(actor), limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		for _, row := range rows {
			printJSON(row)
		}

	case "signals":
		p, err := parseVec3(pos)
		if err != nil {
			return fmt.Errorf("bad -pos: %w", err)
		}
		ticks, signals, err := r.SignalHistory(ctx, p, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		for i := range ticks {
			printJSON(struct {
				Tick   uint64 `json:"tick"`
				Pos    [3]int `json:"pos"`
				Signal bool   `json:"signal"`
			}{ticks[i], p, signals[i]})
		}

	case "tuning":
		v, err := r.Meta(ctx, "tuning")
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		fmt.Println(v)

	default:
		return fmt.Errorf("unknown query: %s", q)
	}
	return nil
}
