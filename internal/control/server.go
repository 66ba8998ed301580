// Package control exposes the daemon's command surface over a local socket:
// a unix socket in the data directory, or a named pipe on Windows. Editors
// and the timecordctl CLI connect here.
//
// The wire format is a simple length-prefixed frame ([EncodeFrame]) carrying
// JSON. Commands get exactly one response frame. A connection that issues
// the watch command additionally receives one [OpEvent] frame per status
// render until it disconnects, which is how the status bar stays current.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"tools.zach/dev/timecord/internal/fault"
)

// Handlers connects incoming commands to the daemon's components. Each func
// runs on the connection's goroutine; nil funcs report an unsupported
// command.
type Handlers struct {
	// Login verifies and persists a token, returning an actor-facing line.
	Login func(ctx context.Context, token string) (string, error)
	// Logout discards the persisted token.
	Logout func() error
	// Start begins tracking and returns the resulting status payload.
	Start func(ctx context.Context) (StatusPayload, error)
	// Stop ends tracking and returns the resulting status payload.
	Stop func(ctx context.Context) (StatusPayload, error)
	// Status snapshots the current state.
	Status func() StatusPayload
	// Activity is the editor's activity signal (edit or focus change).
	Activity func()
	// Dashboard loads recent entries and totals.
	Dashboard func(ctx context.Context) (DashboardPayload, error)
}

// Server accepts control connections and dispatches commands.
type Server struct {
	handlers Handlers

	mu       sync.Mutex
	ln       net.Listener
	conns    map[net.Conn]*connState
	closed   bool
	wg       sync.WaitGroup
	closeOne sync.Once
}

// connState tracks per-connection flags. writeMu serializes response and
// event frames on the same conn.
type connState struct {
	writeMu  sync.Mutex
	watching bool
}

// NewServer builds a server. Call [Server.Serve] with a listener from
// [Listen].
func NewServer(handlers Handlers) *Server {
	return &Server{
		handlers: handlers,
		conns:    map[net.Conn]*connState{},
	}
}

// SetHandlers replaces the command handlers. The composition root uses this
// to break the construction cycle between the server (which the presenter
// needs) and the tracker (which the handlers need). Call before Serve.
func (s *Server) SetHandlers(handlers Handlers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = handlers
}

// Serve accepts connections until the listener is closed. Blocks; run it on
// its own goroutine.
func (s *Server) Serve(ln net.Listener) {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				slog.Warn("control accept failed", "error", err)
			}
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = &connState{}
		s.wg.Add(1)
		s.mu.Unlock()
		go s.handleConn(conn)
	}
}

// Close stops accepting, drops every connection, and waits for handlers.
func (s *Server) Close() {
	s.closeOne.Do(func() {
		s.mu.Lock()
		s.closed = true
		if s.ln != nil {
			s.ln.Close()
		}
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
	})
}

// broadcastTimeout bounds how long an event write may block on a watcher
// that stopped reading. Broadcast runs on the tracker's render path, so a
// stalled client must be dropped, never waited on.
var broadcastTimeout = time.Second

// Broadcast pushes a status payload to every watching connection. A send
// that fails or exceeds [broadcastTimeout] drops the connection.
func (s *Server) Broadcast(p StatusPayload) {
	payload, err := json.Marshal(p)
	if err != nil {
		return
	}
	frame, err := EncodeFrame(OpEvent, payload)
	if err != nil {
		return
	}

	s.mu.Lock()
	targets := make(map[net.Conn]*connState, len(s.conns))
	for conn, st := range s.conns {
		if st.watching {
			targets[conn] = st
		}
	}
	s.mu.Unlock()

	for conn, st := range targets {
		st.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(broadcastTimeout))
		_, err := conn.Write(frame)
		conn.SetWriteDeadline(time.Time{})
		st.writeMu.Unlock()
		if err != nil {
			conn.Close()
		}
	}
}

// ///////////////////////////////////////////////
// Connection Handling
// ///////////////////////////////////////////////

// handleConn reads command frames until the peer disconnects.
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		opcode, payload, err := DecodeFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				slog.Debug("control read failed", "error", err)
			}
			return
		}
		switch opcode {
		case OpClose:
			return
		case OpCommand:
			var req Request
			if err := json.Unmarshal(payload, &req); err != nil {
				s.respond(conn, Response{OK: false, Message: "malformed request"})
				continue
			}
			s.respond(conn, s.dispatch(conn, req))
		default:
			slog.Debug("unexpected control opcode", "opcode", opcode)
		}
	}
}

// dispatch runs one command and builds its response.
func (s *Server) dispatch(conn net.Conn, req Request) Response {
	ctx := context.Background()
	s.mu.Lock()
	h := s.handlers
	s.mu.Unlock()

	switch req.Command {
	case CmdPing:
		return Response{OK: true, Message: "pong"}

	case CmdLogin:
		if h.Login == nil {
			return unsupported(req.Command)
		}
		msg, err := h.Login(ctx, req.Token)
		if err != nil {
			return failure("login", err)
		}
		return Response{OK: true, Message: msg}

	case CmdLogout:
		if h.Logout == nil {
			return unsupported(req.Command)
		}
		if err := h.Logout(); err != nil {
			return failure("logout", err)
		}
		return Response{OK: true, Message: "Signed out"}

	case CmdStart:
		if h.Start == nil {
			return unsupported(req.Command)
		}
		st, err := h.Start(ctx)
		if err != nil {
			return failure("start", err)
		}
		return Response{OK: true, Message: "Tracking started", Status: &st}

	case CmdStop:
		if h.Stop == nil {
			return unsupported(req.Command)
		}
		st, err := h.Stop(ctx)
		if err != nil {
			return failure("stop", err)
		}
		return Response{OK: true, Message: "Tracking stopped", Status: &st}

	case CmdStatus:
		if h.Status == nil {
			return unsupported(req.Command)
		}
		st := h.Status()
		return Response{OK: true, Status: &st}

	case CmdActivity:
		if h.Activity != nil {
			h.Activity()
		}
		return Response{OK: true}

	case CmdDashboard:
		if h.Dashboard == nil {
			return unsupported(req.Command)
		}
		d, err := h.Dashboard(ctx)
		if err != nil {
			return failure("dashboard", err)
		}
		return Response{OK: true, Dashboard: &d}

	case CmdWatch:
		s.mu.Lock()
		if st, ok := s.conns[conn]; ok {
			st.watching = true
		}
		s.mu.Unlock()
		return Response{OK: true, Message: "watching"}

	default:
		return unsupported(req.Command)
	}
}

// respond writes one response frame.
func (s *Server) respond(conn net.Conn, resp Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		return
	}
	frame, err := EncodeFrame(OpResponse, payload)
	if err != nil {
		return
	}

	s.mu.Lock()
	st := s.conns[conn]
	s.mu.Unlock()
	if st == nil {
		return
	}
	st.writeMu.Lock()
	defer st.writeMu.Unlock()
	if _, err := conn.Write(frame); err != nil {
		slog.Debug("control write failed", "error", err)
	}
}

// failure builds an error response carrying the classified kind and the
// actor-facing message. The raw cause is logged here, once.
func failure(op string, err error) Response {
	slog.Error("control command failed", "command", op, "error", err)
	return Response{
		OK:        false,
		Message:   fault.Message(err),
		ErrorKind: fault.KindOf(err).String(),
	}
}

func unsupported(command string) Response {
	return Response{OK: false, Message: "unsupported command: " + command}
}
