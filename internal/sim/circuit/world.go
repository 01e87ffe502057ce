package circuit

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"voxelcircuit.ai/internal/persistence/snapshot"
	"voxelcircuit.ai/internal/protocol"
	"voxelcircuit.ai/internal/sim/circuit/grid"
	"voxelcircuit.ai/internal/sim/circuit/kernel/model"
)

type CommandRequest struct {
	SessionID string
	Cmd       protocol.CmdMsg
	Resp      chan protocol.ResultMsg
}

type SubscribeRequest struct {
	Name string
	Out  chan []byte
	Resp chan protocol.WelcomeMsg
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick       uint64                  `json:"tick"`
	Gates      int                     `json:"gates"`
	Sinks      int                     `json:"sinks"`
	Wires      int                     `json:"wires"`
	Queued     int                     `json:"queued"`
	Overwrites int                     `json:"overwrites,omitempty"`
	Changes    []protocol.SignalChange `json:"changes,omitempty"`
	Digest     string                  `json:"digest"`
}

type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	Actor  string `json:"actor"`
	Action string `json:"action"` // PLACE, REMOVE, TOGGLE, CLEAR, LOAD, SAVE
	Pos    [3]int `json:"pos"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Errors returned by the direct command methods.
var (
	ErrAbsent     = errors.New("no voxel at position")
	ErrNotSwitch  = errors.New("voxel is not a switch")
	ErrBadKind    = errors.New("unknown voxel kind")
	ErrNoSink     = errors.New("snapshot sink not configured")
	ErrSinkBusy   = errors.New("snapshot sink backpressure")
	ErrBadPreset  = errors.New("speed preset out of range")
	ErrMissingPos = errors.New("pos is required")
)

// World owns one voxel grid and the engine that simulates it.
//
// The direct methods (Place, Remove, Toggle, Step ...) are not safe for concurrent
// use. Once Run is started, all access must go through its channels.
type World struct {
	cfg    Config
	grid   *grid.Grid
	engine *Engine

	tick atomic.Uint64

	cmds  chan CommandRequest
	sub   chan SubscribeRequest
	unsub chan string
	stop  chan struct{}

	stopOnce    sync.Once
	nextSession atomic.Uint64

	clients map[string]*clientState
	pending pendingDelta

	tickLogger   TickLogger
	auditLogger  AuditLogger
	snapshotSink chan<- snapshot.SaveV1

	sinceSave time.Duration
	resets    uint64
	lastPass  PassStats
	stepMS    float64

	metrics atomic.Value

	tickWriteErrs  atomic.Uint64
	auditWriteErrs atomic.Uint64
	lastWriteErr   atomic.Value // string
}

type clientState struct {
	Name   string
	Out    chan []byte
	Resync bool
}

func New(cfg Config) *World {
	cfg.applyDefaults()
	w := &World{
		cfg:     cfg,
		grid:    grid.New(),
		engine:  NewEngine(cfg.SpeedPresets, cfg.DefaultSpeed, cfg.MaxPropagationNodes),
		cmds:    make(chan CommandRequest, 256),
		sub:     make(chan SubscribeRequest, 64),
		unsub:   make(chan string, 64),
		stop:    make(chan struct{}),
		clients: map[string]*clientState{},
		pending: newPendingDelta(),
	}
	w.publishMetrics()
	return w
}

func (w *World) SetTickLogger(l TickLogger)                { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)              { w.auditLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SaveV1) { w.snapshotSink = ch }

func (w *World) Commands() chan<- CommandRequest    { return w.cmds }
func (w *World) Subscribe() chan<- SubscribeRequest { return w.sub }
func (w *World) Unsubscribe() chan<- string         { return w.unsub }

func (w *World) ID() string          { return w.cfg.ID }
func (w *World) Config() Config      { return w.cfg }
func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// Grid exposes the live grid to the owning goroutine.
func (w *World) Grid() *grid.Grid { return w.grid }

func (w *World) Voxel(pos model.Vec3i) (model.Voxel, bool) { return w.grid.Get(pos) }

// Voxels returns every voxel in sorted position order.
func (w *World) Voxels() []model.Voxel { return w.grid.Sorted() }

// Place inserts a voxel with its signal off, replacing whatever was at pos.
func (w *World) Place(actor string, pos model.Vec3i, kind model.Kind) (model.Voxel, error) {
	if !kind.Valid() {
		return model.Voxel{}, ErrBadKind
	}
	from := ""
	if prev, ok := w.grid.Get(pos); ok {
		from = prev.Kind.String()
	}
	v := w.grid.Insert(pos, kind, false)
	w.pending.structural(pos)
	w.audit(actor, "PLACE", pos, from, kind.String(), "")
	return v, nil
}

// Remove deletes the voxel at pos. Removing an empty position is a no-op.
func (w *World) Remove(actor string, pos model.Vec3i) bool {
	prev, ok := w.grid.Get(pos)
	if !ok {
		return false
	}
	w.grid.Remove(pos)
	w.pending.structural(pos)
	w.audit(actor, "REMOVE", pos, prev.Kind.String(), "", "")
	return true
}

// Toggle flips the signal of a Switch and returns the new value.
func (w *World) Toggle(actor string, pos model.Vec3i) (bool, error) {
	v, ok := w.grid.Get(pos)
	if !ok {
		return false, ErrAbsent
	}
	if v.Kind != model.Switch {
		return v.Signal, ErrNotSwitch
	}
	next := !v.Signal
	w.grid.SetSignal(pos, next)
	w.pending.signal(pos)
	w.audit(actor, "TOGGLE", pos, onOff(v.Signal), onOff(next), "")
	return next, nil
}

// LookAt reports what occupies pos.
func (w *World) LookAt(pos model.Vec3i) protocol.LookInfo {
	info := protocol.LookInfo{Pos: pos.ToArray()}
	if v, ok := w.grid.Get(pos); ok {
		info.Present = true
		info.Kind = v.Kind.String()
		info.Signal = v.Signal
	}
	return info
}

func (w *World) SetSpeed(preset int) error {
	if err := w.engine.Scheduler().SetPreset(preset); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPreset, err)
	}
	w.publishMetrics()
	return nil
}

// Speed returns the active pass interval and preset.
func (w *World) Speed() (time.Duration, int) {
	s := w.engine.Scheduler()
	return s.Interval(), s.Preset()
}

// Reset tears the grid down. The tick counter keeps running.
func (w *World) Reset(actor string) {
	n := w.grid.Len()
	w.grid.Clear()
	w.resets++
	w.pending.reset()
	w.markResync()
	w.audit(actor, "CLEAR", model.Vec3i{}, "", "", fmt.Sprintf("%d voxels", n))
	w.publishMetrics()
}

// Step runs one pass immediately, bypassing the scheduler.
func (w *World) Step() PassStats {
	st := w.engine.Step(w.grid)
	w.afterPass(st)
	return st
}

// Advance feeds host time to the scheduler; it runs at most one pass.
func (w *World) Advance(dt time.Duration) (PassStats, bool) {
	start := time.Now()
	st, fired := w.engine.Advance(w.grid, dt)
	if fired {
		w.stepMS = float64(time.Since(start).Microseconds()) / 1000
		w.afterPass(st)
	}
	return st, fired
}

func (w *World) afterPass(st PassStats) {
	w.tick.Store(st.Tick)
	w.lastPass = st
	for _, c := range st.Changes {
		w.pending.signal(c.Pos)
	}
	if w.tickLogger != nil && (len(st.Changes) > 0 || w.cfg.LogTicks) {
		err := w.tickLogger.WriteTick(TickLogEntry{
			Tick:       st.Tick,
			Gates:      st.Gates,
			Sinks:      st.Sinks,
			Wires:      st.Wires,
			Queued:     st.Queued,
			Overwrites: st.Overwrites,
			Changes:    signalChanges(st.Changes),
			Digest:     Digest(w.grid),
		})
		if err != nil {
			w.tickWriteErrs.Add(1)
			w.lastWriteErr.Store("tick log: " + err.Error())
		}
	}
}

// RequestSave hands a copy of the current state to the snapshot sink without
// blocking.
func (w *World) RequestSave() (uint64, error) {
	if w.snapshotSink == nil {
		return 0, ErrNoSink
	}
	snap := w.ExportSnapshot()
	select {
	case w.snapshotSink <- snap:
		w.sinceSave = 0
		w.audit("WORLD", "SAVE", model.Vec3i{}, "", "", "")
		return snap.Header.Tick, nil
	default:
		return 0, ErrSinkBusy
	}
}

func (w *World) audit(actor, action string, pos model.Vec3i, from, to, reason string) {
	if w.auditLogger == nil {
		return
	}
	err := w.auditLogger.WriteAudit(AuditEntry{
		Tick:   w.tick.Load(),
		Actor:  actor,
		Action: action,
		Pos:    pos.ToArray(),
		From:   from,
		To:     to,
		Reason: reason,
	})
	if err != nil {
		w.auditWriteErrs.Add(1)
		w.lastWriteErr.Store("audit log: " + err.Error())
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
