package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"voxelcircuit.ai/internal/protocol"
	"voxelcircuit.ai/internal/sim/circuit"
)

// World is the channel surface of a running circuit.World.
type World interface {
	Commands() chan<- circuit.CommandRequest
	Subscribe() chan<- circuit.SubscribeRequest
	Unsubscribe() chan<- string
}

type Server struct {
	world World
	log   *log.Logger

	// ResultTimeout bounds the wait for the world loop to answer one CMD.
	ResultTimeout time.Duration

	upgrader websocket.Upgrader
}

func NewServer(w World, logger *log.Logger) *Server {
	s := &Server{
		world:         w,
		log:           logger,
		ResultTimeout: 5 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID, out := s.handshake(conn)
		if sessionID == "" {
			return
		}
		s.logf("session %s connected from %s", sessionID, r.RemoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		results := make(chan []byte, 16)

		// Writer goroutine. It owns every write after the handshake.
		go func() {
			for {
				var b []byte
				select {
				case <-ctx.Done():
					return
				case b = <-results:
				case b = <-out:
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeCmd {
				continue
			}
			res := s.command(ctx, sessionID, msg)
			b, err := json.Marshal(res)
			if err != nil {
				continue
			}
			select {
			case results <- b:
			case <-ctx.Done():
			}
		}

		s.world.Unsubscribe() <- sessionID
		s.logf("session %s disconnected", sessionID)
	}
}

// command validates one raw CMD and forwards it to the world loop.
func (s *Server) command(ctx context.Context, sessionID string, msg []byte) protocol.ResultMsg {
	var cmd protocol.CmdMsg
	_ = json.Unmarshal(msg, &cmd)

	if err := protocol.Validate(protocol.SchemaCmd, msg); err != nil {
		return protocol.ErrorResult(cmd.ID, 0, protocol.ErrProtoBadRequest, err.Error())
	}
	if cmd.ProtocolVersion != protocol.Version {
		return protocol.ErrorResult(cmd.ID, 0, protocol.ErrProtoBadRequest, "bad protocol_version")
	}

	resp := make(chan protocol.ResultMsg, 1)
	select {
	case s.world.Commands() <- circuit.CommandRequest{SessionID: sessionID, Cmd: cmd, Resp: resp}:
	default:
		return protocol.ErrorResult(cmd.ID, 0, protocol.ErrWorldBusy, "command queue full")
	}

	t := time.NewTimer(s.ResultTimeout)
	defer t.Stop()
	select {
	case res := <-resp:
		return res
	case <-t.C:
		return protocol.ErrorResult(cmd.ID, 0, protocol.ErrWorldBusy, "timed out waiting for world")
	case <-ctx.Done():
		return protocol.ErrorResult(cmd.ID, 0, protocol.ErrUnavailable, "connection closed")
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return "", nil
	}
	if err := protocol.Validate(protocol.SchemaHello, msg); err != nil {
		closeWith(conn, "invalid HELLO")
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return "", nil
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}
	out = make(chan []byte, maxQ)

	respCh := make(chan protocol.WelcomeMsg, 1)
	s.world.Subscribe() <- circuit.SubscribeRequest{Name: hello.ClientName, Out: out, Resp: respCh}
	welcome := <-respCh

	if err := writeJSON(conn, welcome); err != nil {
		s.world.Unsubscribe() <- welcome.SessionID
		return "", nil
	}
	return welcome.SessionID, out
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
