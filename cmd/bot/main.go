package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"voxelcircuit.ai/internal/protocol"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name     = flag.String("name", "bot", "client name")
		originX  = flag.Int("x", 0, "x of the out voxel")
		chain    = flag.Int("wires", 3, "wires between the switch and the out")
		preset   = flag.Int("speed", 0, "speed preset to select (0 keeps the current one)")
		duration = flag.Duration("duration", 10*time.Second, "how long to watch before exiting")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
		MaxQueue:        32,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		logger.Fatalf("read WELCOME: %v", err)
	}
	logger.Printf("WELCOME session=%s world=%s tick=%d interval_ms=%d voxels=%d",
		welcome.SessionID, welcome.WorldID, welcome.Tick, welcome.IntervalMs, len(welcome.Voxels))

	outPos := [3]int{*originX, 0, 0}
	switchPos := [3]int{*originX + *chain + 1, 0, 0}
	for _, cmd := range circuitScript(outPos, switchPos, *chain, *preset) {
		if err := conn.WriteJSON(cmd); err != nil {
			logger.Fatalf("send CMD %s: %v", cmd.ID, err)
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	deadline := time.After(*duration)
	look := time.NewTicker(time.Second)
	defer look.Stop()

	msgs := make(chan []byte, 64)
	go func() {
		defer close(msgs)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msgs <- msg
		}
	}()

	n := 0
	for {
		select {
		case <-stop:
			return
		case <-deadline:
			logger.Printf("done")
			return
		case <-look.C:
			n++
			cmd := newCmd(fmt.Sprintf("look_%d", n), protocol.OpLook)
			cmd.Pos = &outPos
			_ = conn.WriteJSON(cmd)
		case msg, ok := <-msgs:
			if !ok {
				logger.Printf("connection closed")
				return
			}
			handleMessage(logger, msg)
		}
	}
}

// circuitScript builds switch -> wire chain -> out and flips the switch on.
func circuitScript(outPos, switchPos [3]int, wires, preset int) []protocol.CmdMsg {
	var cmds []protocol.CmdMsg
	place := func(id string, pos [3]int, kind string) {
		c := newCmd(id, protocol.OpPlace)
		p := pos
		c.Pos = &p
		c.Kind = kind
		cmds = append(cmds, c)
	}
	place("place_out", outPos, "Out")
	for i := 1; i <= wires; i++ {
		place(fmt.Sprintf("place_wire_%d", i), [3]int{outPos[0] + i, outPos[1], outPos[2]}, "Wire")
	}
	place("place_switch", switchPos, "Switch")
	if preset > 0 {
		c := newCmd("speed", protocol.OpSpeed)
		c.Preset = preset
		cmds = append(cmds, c)
	}
	toggle := newCmd("toggle", protocol.OpToggle)
	p := switchPos
	toggle.Pos = &p
	cmds = append(cmds, toggle)
	return cmds
}

func newCmd(id, op string) protocol.CmdMsg {
	return protocol.CmdMsg{
		Type:            protocol.TypeCmd,
		ProtocolVersion: protocol.Version,
		ID:              id,
		Op:              op,
	}
}

func handleMessage(logger *log.Logger, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeResult:
		var r protocol.ResultMsg
		if err := json.Unmarshal(msg, &r); err != nil {
			return
		}
		if !r.OK {
			logger.Printf("RESULT id=%s code=%s message=%s", r.ID, r.Code, r.Message)
			return
		}
		if r.Look != nil {
			logger.Printf("LOOK pos=%v kind=%s signal=%v tick=%d", r.Look.Pos, r.Look.Kind, r.Look.Signal, r.Tick)
			return
		}
		logger.Printf("RESULT id=%s ok tick=%d", r.ID, r.Tick)

	case protocol.TypeTick:
		var t protocol.TickMsg
		if err := json.Unmarshal(msg, &t); err != nil {
			return
		}
		if t.Full {
			logger.Printf("TICK %d full voxels=%d", t.Tick, len(t.Voxels))
			return
		}
		logger.Printf("TICK %d changes=%d placed=%d removed=%d", t.Tick, len(t.Changes), len(t.Placed), len(t.Removed))
	}
}
