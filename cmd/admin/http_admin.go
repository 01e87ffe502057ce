package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"voxelcircuit.ai/internal/protocol"
	"voxelcircuit.ai/internal/sim/circuit"
)

func adminURL(base, path string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + path
}

// stateCmd prints a one-line summary of the running world, or the raw metrics
// document with -json.
func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	raw := fs.Bool("json", false, "print the metrics document as returned")
	_ = fs.Parse(args)

	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(adminURL(*baseURL, "/admin/v1/state"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		fmt.Fprintln(os.Stderr, strings.TrimSpace(string(b)))
		os.Exit(1)
	}
	if *raw {
		fmt.Println(string(b))
		return
	}
	var m circuit.WorldMetrics
	if err := json.Unmarshal(b, &m); err != nil {
		fmt.Fprintln(os.Stderr, "decode state:", err)
		os.Exit(1)
	}
	fmt.Println(formatState(m))
}

func formatState(m circuit.WorldMetrics) string {
	kinds := make([]string, 0, len(m.Kinds))
	for k, n := range m.Kinds {
		if n > 0 {
			kinds = append(kinds, fmt.Sprintf("%s=%d", k, n))
		}
	}
	sort.Strings(kinds)
	s := fmt.Sprintf("world=%s tick=%d voxels=%d [%s] clients=%d preset=%d interval_ms=%d last_pass(changes=%d overwrites=%d) step_ms=%.3f",
		m.World, m.Tick, m.Voxels, strings.Join(kinds, " "), m.Clients, m.Preset, m.IntervalMs,
		m.LastPass.Changes, m.LastPass.Overwrites, m.StepMS)
	if m.WriteErrors.Tick > 0 || m.WriteErrors.Audit > 0 {
		s += fmt.Sprintf(" write_errors(tick=%d audit=%d)", m.WriteErrors.Tick, m.WriteErrors.Audit)
	}
	return s
}

// saveCmd asks the server for an immediate save and reports the tick it captured.
func saveCmd(args []string) {
	fs := flag.NewFlagSet("save", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	req, _ := http.NewRequest(http.MethodPost, adminURL(*baseURL, "/admin/v1/save"), nil)
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	var res protocol.ResultMsg
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		fmt.Fprintln(os.Stderr, "decode result:", err, "status:", resp.Status)
		os.Exit(1)
	}
	if !res.OK {
		fmt.Fprintf(os.Stderr, "save failed: code=%s message=%s\n", res.Code, res.Message)
		os.Exit(1)
	}
	fmt.Printf("save ok: tick=%d\n", res.Tick)
}
