package circuit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"voxelcircuit.ai/internal/protocol"
	"voxelcircuit.ai/internal/sim/circuit/kernel/model"
)

// Run drives the world from a host ticker until ctx is done or Stop is called.
// Commands and subscriptions are applied between passes on this goroutine.
func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.HostHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.sub:
			w.handleSubscribe(req)
		case id := <-w.unsub:
			delete(w.clients, id)
		case req := <-w.cmds:
			res := w.HandleCommand(req.SessionID, req.Cmd)
			if req.Resp != nil {
				select {
				case req.Resp <- res:
				default:
				}
			}
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			w.hostTick(dt)
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// hostTick runs at most one pass, the autosave clock and the broadcast.
func (w *World) hostTick(dt time.Duration) {
	w.Advance(dt)

	if w.cfg.AutosaveEvery > 0 && w.snapshotSink != nil {
		w.sinceSave += dt
		if w.sinceSave >= w.cfg.AutosaveEvery {
			// A busy sink is retried on the next host tick.
			_, _ = w.RequestSave()
		}
	}

	w.broadcast()
	w.publishMetrics()
}

func (w *World) handleSubscribe(req SubscribeRequest) {
	id := fmt.Sprintf("S%d", w.nextSession.Add(1))
	name := req.Name
	if name == "" {
		name = "client"
	}
	w.clients[id] = &clientState{Name: name, Out: req.Out}
	interval, preset := w.Speed()
	presets := w.engine.Scheduler().Presets()
	ms := make([]int64, 0, len(presets))
	for _, p := range presets {
		ms = append(ms, p.Milliseconds())
	}
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       id,
		WorldID:         w.cfg.ID,
		Tick:            w.tick.Load(),
		IntervalMs:      interval.Milliseconds(),
		Preset:          preset,
		PresetsMs:       ms,
		Voxels:          w.fullState(),
	}
	if req.Resp != nil {
		req.Resp <- welcome
	}
}

func (w *World) markResync() {
	for _, c := range w.clients {
		c.Resync = true
	}
}

// broadcast sends the pending delta to every client. A client whose queue is full
// misses the delta and receives the full state on its next successful send.
func (w *World) broadcast() {
	if len(w.clients) == 0 {
		w.pending.reset()
		return
	}
	resync := false
	for _, c := range w.clients {
		if c.Resync {
			resync = true
			break
		}
	}
	if w.pending.empty() && !resync {
		return
	}

	var delta []byte
	if !w.pending.empty() {
		delta, _ = json.Marshal(w.buildDelta())
	}
	var full []byte
	if resync {
		full, _ = json.Marshal(protocol.TickMsg{
			Type:            protocol.TypeTick,
			ProtocolVersion: protocol.Version,
			Tick:            w.tick.Load(),
			Full:            true,
			Voxels:          w.fullState(),
		})
	}
	w.pending.reset()

	for _, c := range w.clients {
		b := delta
		if c.Resync {
			b = full
		}
		if b == nil {
			continue
		}
		select {
		case c.Out <- b:
			c.Resync = false
		default:
			c.Resync = true
		}
	}
}

// HandleCommand applies one CMD and builds its RESULT. It must run on the goroutine
// that owns the world.
func (w *World) HandleCommand(actor string, cmd protocol.CmdMsg) protocol.ResultMsg {
	tick := w.tick.Load()
	needPos := func() (model.Vec3i, *protocol.ResultMsg) {
		if cmd.Pos == nil {
			r := protocol.ErrorResult(cmd.ID, tick, protocol.ErrBadRequest, ErrMissingPos.Error())
			return model.Vec3i{}, &r
		}
		return model.FromArray(*cmd.Pos), nil
	}

	switch cmd.Op {
	case protocol.OpPlace:
		pos, bad := needPos()
		if bad != nil {
			return *bad
		}
		kind, err := model.ParseKind(cmd.Kind)
		if err != nil {
			return protocol.ErrorResult(cmd.ID, tick, protocol.ErrBadRequest, err.Error())
		}
		if _, err := w.Place(actor, pos, kind); err != nil {
			return protocol.ErrorResult(cmd.ID, tick, protocol.ErrBadRequest, err.Error())
		}
		return protocol.NewResult(cmd.ID, tick)

	case protocol.OpRemove:
		pos, bad := needPos()
		if bad != nil {
			return *bad
		}
		w.Remove(actor, pos)
		return protocol.NewResult(cmd.ID, tick)

	case protocol.OpToggle:
		pos, bad := needPos()
		if bad != nil {
			return *bad
		}
		on, err := w.Toggle(actor, pos)
		if err != nil {
			return protocol.ErrorResult(cmd.ID, tick, protocol.ErrInvalidTarget, err.Error())
		}
		res := protocol.NewResult(cmd.ID, tick)
		res.Signal = &on
		return res

	case protocol.OpLook:
		pos, bad := needPos()
		if bad != nil {
			return *bad
		}
		look := w.LookAt(pos)
		res := protocol.NewResult(cmd.ID, tick)
		res.Look = &look
		return res

	case protocol.OpSpeed:
		if err := w.SetSpeed(cmd.Preset); err != nil {
			return protocol.ErrorResult(cmd.ID, tick, protocol.ErrBadRequest, err.Error())
		}
		interval, preset := w.Speed()
		res := protocol.NewResult(cmd.ID, tick)
		res.IntervalMs = interval.Milliseconds()
		res.Preset = preset
		return res

	case protocol.OpSave:
		saved, err := w.RequestSave()
		if err != nil {
			code := protocol.ErrUnavailable
			if errors.Is(err, ErrSinkBusy) {
				code = protocol.ErrWorldBusy
			}
			return protocol.ErrorResult(cmd.ID, tick, code, err.Error())
		}
		res := protocol.NewResult(cmd.ID, saved)
		res.Message = fmt.Sprintf("saved at tick %d", saved)
		return res

	case protocol.OpClear:
		w.Reset(actor)
		return protocol.NewResult(cmd.ID, tick)

	default:
		return protocol.ErrorResult(cmd.ID, tick, protocol.ErrBadRequest, fmt.Sprintf("unknown op %q", cmd.Op))
	}
}
