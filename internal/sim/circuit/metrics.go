package circuit

// WorldMetrics is a read-only view of the world published by the loop goroutine.
// It is safe to read from HTTP handlers.
type WorldMetrics struct {
	World string `json:"world"`
	Tick  uint64 `json:"tick"`

	Voxels int            `json:"voxels"`
	Kinds  map[string]int `json:"kinds,omitempty"`

	Clients    int    `json:"clients"`
	ResetTotal uint64 `json:"reset_total"`

	IntervalMs int64 `json:"interval_ms"`
	Preset     int   `json:"preset"`

	LastPass PassMetrics `json:"last_pass"`
	StepMS   float64     `json:"step_ms"`

	QueueDepths QueueDepths `json:"queue_depths"`

	WriteErrors WriteErrors `json:"write_errors"`
}

// WriteErrors counts tick and audit entries the loggers failed to write. Last is
// the most recent failure.
type WriteErrors struct {
	Tick  uint64 `json:"tick"`
	Audit uint64 `json:"audit"`
	Last  string `json:"last,omitempty"`
}

type PassMetrics struct {
	Gates      int `json:"gates"`
	Sinks      int `json:"sinks"`
	Wires      int `json:"wires"`
	Queued     int `json:"queued"`
	Overwrites int `json:"overwrites"`
	Changes    int `json:"changes"`
}

type QueueDepths struct {
	Commands    int `json:"commands"`
	Subscribe   int `json:"subscribe"`
	Unsubscribe int `json:"unsubscribe"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	m, _ := w.metrics.Load().(WorldMetrics)
	m.WriteErrors.Tick = w.tickWriteErrs.Load()
	m.WriteErrors.Audit = w.auditWriteErrs.Load()
	m.WriteErrors.Last, _ = w.lastWriteErr.Load().(string)
	return m
}

func (w *World) publishMetrics() {
	kinds := map[string]int{}
	for k, n := range w.grid.CountByKind() {
		kinds[k.String()] = n
	}
	interval, preset := w.Speed()
	st := w.lastPass
	w.metrics.Store(WorldMetrics{
		World:      w.cfg.ID,
		Tick:       w.tick.Load(),
		Voxels:     w.grid.Len(),
		Kinds:      kinds,
		Clients:    len(w.clients),
		ResetTotal: w.resets,
		IntervalMs: interval.Milliseconds(),
		Preset:     preset,
		LastPass: PassMetrics{
			Gates:      st.Gates,
			Sinks:      st.Sinks,
			Wires:      st.Wires,
			Queued:     st.Queued,
			Overwrites: st.Overwrites,
			Changes:    len(st.Changes),
		},
		StepMS: w.stepMS,
		QueueDepths: QueueDepths{
			Commands:    len(w.cmds),
			Subscribe:   len(w.sub),
			Unsubscribe: len(w.unsub),
		},
	})
}
