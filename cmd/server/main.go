package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "voxelcircuit.ai/internal/persistence/log"
	"voxelcircuit.ai/internal/persistence/snapshot"
	"voxelcircuit.ai/internal/sim/circuit"
	"voxelcircuit.ai/internal/sim/tuning"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (tick/audit/save metadata)")

		loadPath   = flag.String("load", "", "path to a save to load (optional)")
		loadLatest = flag.Bool("load_latest", true, "load the latest autosave of the world if present (when -load is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	savesDir := filepath.Join(worldDir, "saves")
	_ = os.MkdirAll(savesDir, 0o755)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}

	idx, err := openRuntimeIndex(worldDir, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertTuning(*worldID, tune); err != nil {
			logger.Printf("index backend: upsert tuning: %v", err)
		}
	}

	w := circuit.New(circuit.Config{
		ID:                  *worldID,
		HostHz:              tune.HostHz,
		SpeedPresets:        tune.SpeedPresets(),
		DefaultSpeed:        tune.DefaultSpeed,
		MaxPropagationNodes: tune.PropagationMaxNodes,
		AutosaveEvery:       tune.AutosaveEvery(),
		LogTicks:            tune.LogTicks,
	})

	tickLog := persistlog.NewTickLogger(worldDir)
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer tickLog.Close()
	defer auditLog.Close()
	w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
	w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})

	saveToLoad := strings.TrimSpace(*loadPath)
	if saveToLoad == "" && *loadLatest {
		saveToLoad = snapshot.Latest(savesDir)
	}
	if saveToLoad != "" {
		save, err := snapshot.Read(saveToLoad)
		if err != nil {
			logger.Fatalf("read save: %v", err)
		}
		if save.Header != nil && save.Header.World != "" && save.Header.World != *worldID {
			logger.Fatalf("save world id mismatch: flag=%s save=%s", *worldID, save.Header.World)
		}
		if err := w.ImportSnapshot(save); err != nil {
			logger.Fatalf("import save: %v", err)
		}
		logger.Printf("resumed from save=%s tick=%d voxels=%d", filepath.Base(saveToLoad), w.CurrentTick(), len(save.Voxels))
	}

	// Save writer. It drains the channel after the world stops so the shutdown save
	// reaches disk.
	saveCh := make(chan snapshot.SaveV1, 2)
	w.SetSnapshotSink(saveCh)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for save := range saveCh {
			writeSave(savesDir, save, idx, logger)
		}
	}()

	ctx, cancel := signalContext()
	defer cancel()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(w, idx, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s world=%s tick=%d", *addr, *worldID, w.CurrentTick())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
		cancel()
	}

	<-worldDone
	// The loop has returned; the world is ours again.
	if tick, err := w.RequestSave(); err != nil {
		logger.Printf("shutdown save: %v", err)
	} else {
		logger.Printf("shutdown save queued tick=%d", tick)
	}
	close(saveCh)
	<-writerDone
}

func writeSave(dir string, save snapshot.SaveV1, idx runtimeIndex, logger *log.Logger) {
	var tick uint64
	if save.Header != nil {
		tick = save.Header.Tick
	}
	path := snapshot.PathFor(dir, tick)
	if err := snapshot.Write(path, save); err != nil {
		logger.Printf("save write: %v", err)
		return
	}
	logger.Printf("saved %s voxels=%d", filepath.Base(path), len(save.Voxels))
	if idx != nil {
		idx.RecordSave(path, save)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
