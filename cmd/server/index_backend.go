package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"voxelcircuit.ai/internal/persistence/indexdb"
	"voxelcircuit.ai/internal/persistence/snapshot"
	"voxelcircuit.ai/internal/sim/circuit"
	"voxelcircuit.ai/internal/sim/tuning"
)

type runtimeIndex interface {
	circuit.TickLogger
	circuit.AuditLogger
	Close() error
	Stats() indexdb.Stats
	UpsertTuning(world string, tune tuning.Tuning) error
	RecordSave(path string, save snapshot.SaveV1)
}

func openRuntimeIndex(worldDir string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("VC_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		logger.Printf("index disabled (VC_INDEX_BACKEND=%s)", backend)
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(worldDir, "index", "world.sqlite")
		idx, err := indexdb.OpenSQLite(dbPath)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported VC_INDEX_BACKEND: %s", backend)
	}
}

type multiTickLogger struct {
	a circuit.TickLogger
	b circuit.TickLogger
}

func (m multiTickLogger) WriteTick(entry circuit.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiAuditLogger struct {
	a circuit.AuditLogger
	b circuit.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry circuit.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
