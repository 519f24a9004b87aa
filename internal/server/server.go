// Package server implements the TCP acceptor loop and per-connection
// state machine: accept, read a frame, dispatch it, write the response,
// repeat until the client disconnects, times out, or sends the
// configured close command.
package server

import (
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/viktor111/keyz/internal/dispatch"
	"github.com/viktor111/keyz/internal/protocol"
)

// acceptBackoff is how long the acceptor sleeps after a failed Accept.
const acceptBackoff = 100 * time.Millisecond

// Server owns the listener and drives the accept loop. Zero value is
// not usable; build one with New.
type Server struct {
	listener net.Listener
	store    dispatch.Store
	protoCfg protocol.Config
	log      *zap.Logger
}

// New wires a listener to a store and protocol configuration.
func New(listener net.Listener, st dispatch.Store, protoCfg protocol.Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{listener: listener, store: st, protoCfg: protoCfg, log: log}
}

// Serve runs the accept loop until stopCh is closed. An accept error
// while stopCh is still open (including one from a closed listener) is
// logged and retried after acceptBackoff. Each accepted connection is
// handled on its own goroutine.
func (s *Server) Serve(stopCh <-chan struct{}) {
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-stopCh:
				return
			default:
			}
			s.log.Error("listener accept error", zap.Error(err))
			time.Sleep(acceptBackoff)
			continue
		}

		go s.handleConnection(conn)
	}
}

// handleConnection runs the per-connection state machine: read a
// frame under the idle-timeout deadline, dispatch it, write the
// response, and loop, until the client disconnects, times out, or
// sends the configured close command.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("connection handler panic", zap.String("remote", remote), zap.Any("panic", r))
		}
	}()

	idleTimeout := time.Duration(s.protoCfg.IdleTimeoutSecs) * time.Second

	for {
		if err := conn.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
			s.log.Error("failed to set read deadline", zap.String("remote", remote), zap.Error(err))
			return
		}

		line, err := protocol.ReadFrame(conn, s.protoCfg.MaxMessageBytes)
		if err != nil {
			if s.handleReadError(conn, remote, err) {
				continue
			}
			return
		}

		if strings.TrimSpace(line) == "" {
			if writeErr := protocol.WriteFrame(conn, s.protoCfg.InvalidCommandResponse); writeErr != nil {
				s.logWriteError(remote, writeErr)
				return
			}
			continue
		}

		if line == s.protoCfg.CloseCommand {
			_ = protocol.WriteFrame(conn, "Closing connection")
			return
		}

		response, err := dispatch.Dispatch(line, s.store, s.protoCfg)
		if err != nil {
			s.log.Error("dispatch failed", zap.String("remote", remote), zap.Error(err))
			return
		}

		if err := protocol.WriteFrame(conn, response); err != nil {
			s.logWriteError(remote, err)
			return
		}
	}
}

// handleReadError classifies a ReadFrame failure and returns whether
// the connection should return to awaiting the next frame (true) or
// close (false). A malformed frame keeps the connection alive on
// protocol noise but never tries to resynchronize mid-stream: the
// next frame either succeeds or fails again.
func (s *Server) handleReadError(conn net.Conn, remote string, err error) bool {
	switch {
	case protocol.IsKind(err, protocol.KindClientDisconnected):
		s.log.Debug("client disconnected", zap.String("remote", remote))
		return false
	case protocol.IsKind(err, protocol.KindClientTimeout):
		_ = protocol.WriteFrame(conn, s.protoCfg.TimeoutResponse)
		s.log.Debug("client idle timeout", zap.String("remote", remote))
		return false
	case protocol.IsKind(err, protocol.KindInvalidCommand), protocol.IsKind(err, protocol.KindInvalidUTF8):
		if writeErr := protocol.WriteFrame(conn, s.protoCfg.InvalidCommandResponse); writeErr != nil {
			s.logWriteError(remote, writeErr)
			return false
		}
		return true
	default:
		s.log.Error("connection read error", zap.String("remote", remote), zap.Error(err))
		return false
	}
}

func (s *Server) logWriteError(remote string, err error) {
	if protocol.IsKind(err, protocol.KindClientDisconnected) {
		s.log.Debug("client disconnected during write", zap.String("remote", remote))
		return
	}
	s.log.Error("connection write error", zap.String("remote", remote), zap.Error(err))
}
