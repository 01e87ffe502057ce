package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"sort"
	"strings"
	"time"

	"voxelcircuit.ai/internal/protocol"
	"voxelcircuit.ai/internal/sim/circuit"
	"voxelcircuit.ai/internal/transport/ws"
)

func newMux(w *circuit.World, idx runtimeIndex, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeWorldMetrics(rw, w.Metrics())
		if idx != nil {
			writeIndexMetrics(rw, w.ID(), idx)
		}
	})

	if envBool("VC_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(w.Metrics())
		})
		mux.HandleFunc("/admin/v1/save", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			res := requestSave(ctx, w)
			rw.Header().Set("Content-Type", "application/json")
			if !res.OK {
				rw.WriteHeader(http.StatusServiceUnavailable)
			}
			_ = json.NewEncoder(rw).Encode(res)
		})
	} else {
		logger.Printf("admin endpoints disabled (VC_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("VC_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(w, logger).Handler())
	return mux
}

// requestSave routes a SAVE through the world loop, the only goroutine allowed to
// touch the grid.
func requestSave(ctx context.Context, w *circuit.World) protocol.ResultMsg {
	resp := make(chan protocol.ResultMsg, 1)
	req := circuit.CommandRequest{
		SessionID: "admin",
		Cmd: protocol.CmdMsg{
			Type:            protocol.TypeCmd,
			ProtocolVersion: protocol.Version,
			ID:              "admin_save",
			Op:              protocol.OpSave,
		},
		Resp: resp,
	}
	busy := protocol.ErrorResult(req.Cmd.ID, w.CurrentTick(), protocol.ErrWorldBusy, "world busy")
	select {
	case w.Commands() <- req:
	case <-ctx.Done():
		return busy
	}
	select {
	case res := <-resp:
		return res
	case <-ctx.Done():
		return busy
	}
}

func writeWorldMetrics(rw http.ResponseWriter, m circuit.WorldMetrics) {
	id := m.World

	fmt.Fprintf(rw, "# HELP voxelcircuit_world_tick Current world tick.\n")
	fmt.Fprintf(rw, "# TYPE voxelcircuit_world_tick gauge\n")
	fmt.Fprintf(rw, "voxelcircuit_world_tick{world=%q} %d\n", id, m.Tick)

	fmt.Fprintf(rw, "# HELP voxelcircuit_world_voxels Voxel count by kind.\n")
	fmt.Fprintf(rw, "# TYPE voxelcircuit_world_voxels gauge\n")
	kinds := make([]string, 0, len(m.Kinds))
	for k := range m.Kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(rw, "voxelcircuit_world_voxels{world=%q,kind=%q} %d\n", id, k, m.Kinds[k])
	}

	fmt.Fprintf(rw, "# HELP voxelcircuit_world_clients Current number of connected clients.\n")
	fmt.Fprintf(rw, "# TYPE voxelcircuit_world_clients gauge\n")
	fmt.Fprintf(rw, "voxelcircuit_world_clients{world=%q} %d\n", id, m.Clients)

	fmt.Fprintf(rw, "# HELP voxelcircuit_world_resets_total Grid resets since start.\n")
	fmt.Fprintf(rw, "# TYPE voxelcircuit_world_resets_total counter\n")
	fmt.Fprintf(rw, "voxelcircuit_world_resets_total{world=%q} %d\n", id, m.ResetTotal)

	fmt.Fprintf(rw, "# HELP voxelcircuit_world_interval_ms Active pass interval in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE voxelcircuit_world_interval_ms gauge\n")
	fmt.Fprintf(rw, "voxelcircuit_world_interval_ms{world=%q,preset=\"%d\"} %d\n", id, m.Preset, m.IntervalMs)

	fmt.Fprintf(rw, "# HELP voxelcircuit_pass_last Work done by the last pass.\n")
	fmt.Fprintf(rw, "# TYPE voxelcircuit_pass_last gauge\n")
	fmt.Fprintf(rw, "voxelcircuit_pass_last{world=%q,metric=%q} %d\n", id, "gates", m.LastPass.Gates)
	fmt.Fprintf(rw, "voxelcircuit_pass_last{world=%q,metric=%q} %d\n", id, "sinks", m.LastPass.Sinks)
	fmt.Fprintf(rw, "voxelcircuit_pass_last{world=%q,metric=%q} %d\n", id, "wires", m.LastPass.Wires)
	fmt.Fprintf(rw, "voxelcircuit_pass_last{world=%q,metric=%q} %d\n", id, "queued", m.LastPass.Queued)
	fmt.Fprintf(rw, "voxelcircuit_pass_last{world=%q,metric=%q} %d\n", id, "overwrites", m.LastPass.Overwrites)
	fmt.Fprintf(rw, "voxelcircuit_pass_last{world=%q,metric=%q} %d\n", id, "changes", m.LastPass.Changes)

	fmt.Fprintf(rw, "# HELP voxelcircuit_world_step_ms Last pass duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE voxelcircuit_world_step_ms gauge\n")
	fmt.Fprintf(rw, "voxelcircuit_world_step_ms{world=%q} %.3f\n", id, m.StepMS)

	fmt.Fprintf(rw, "# HELP voxelcircuit_world_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE voxelcircuit_world_queue_depth gauge\n")
	fmt.Fprintf(rw, "voxelcircuit_world_queue_depth{world=%q,queue=%q} %d\n", id, "commands", m.QueueDepths.Commands)
	fmt.Fprintf(rw, "voxelcircuit_world_queue_depth{world=%q,queue=%q} %d\n", id, "subscribe", m.QueueDepths.Subscribe)
	fmt.Fprintf(rw, "voxelcircuit_world_queue_depth{world=%q,queue=%q} %d\n", id, "unsubscribe", m.QueueDepths.Unsubscribe)

	fmt.Fprintf(rw, "# HELP voxelcircuit_log_write_errors_total Tick and audit entries the loggers failed to write.\n")
	fmt.Fprintf(rw, "# TYPE voxelcircuit_log_write_errors_total counter\n")
	fmt.Fprintf(rw, "voxelcircuit_log_write_errors_total{world=%q,stream=%q} %d\n", id, "tick", m.WriteErrors.Tick)
	fmt.Fprintf(rw, "voxelcircuit_log_write_errors_total{world=%q,stream=%q} %d\n", id, "audit", m.WriteErrors.Audit)
}

func writeIndexMetrics(rw http.ResponseWriter, id string, idx runtimeIndex) {
	s := idx.Stats()
	fmt.Fprintf(rw, "# HELP voxelcircuit_index_queue_depth Index write queue depth.\n")
	fmt.Fprintf(rw, "# TYPE voxelcircuit_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "voxelcircuit_index_queue_depth{world=%q} %d\n", id, s.QueueDepth)

	fmt.Fprintf(rw, "# HELP voxelcircuit_index_dropped_total Index writes dropped on a full queue.\n")
	fmt.Fprintf(rw, "# TYPE voxelcircuit_index_dropped_total counter\n")
	fmt.Fprintf(rw, "voxelcircuit_index_dropped_total{world=%q,kind=%q} %d\n", id, "tick", s.DropTickTotal)
	fmt.Fprintf(rw, "voxelcircuit_index_dropped_total{world=%q,kind=%q} %d\n", id, "audit", s.DropAuditTotal)
	fmt.Fprintf(rw, "voxelcircuit_index_dropped_total{world=%q,kind=%q} %d\n", id, "save", s.DropSaveTotal)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
