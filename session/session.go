package session

import (
	"context"
	stderrors "errors"
	"io"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/memviewlab/memview/errors"
	"github.com/memviewlab/memview/queue"
	"github.com/memviewlab/memview/wire"
)

// ErrWouldBlock is returned by transport writers that cannot accept
// more bytes right now. The pump treats it as "try again later", never
// as a failure.
var ErrWouldBlock = stderrors.New("memview: transport would block")

// Transport hands viewer connections to the session. Implementations
// decide addressing, handshake transport and timeouts; WaitForViewer
// blocks until a viewer attaches, ctx is canceled, or the transport
// gives up.
type Transport interface {
	WaitForViewer(ctx context.Context) (io.WriteCloser, error)
}

// State of the viewer connection.
type State int32

const (
	Disconnected State = iota
	Waiting
	Connected
	Draining
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Waiting:
		return "waiting"
	case Connected:
		return "connected"
	case Draining:
		return "draining"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session serializes connection lifecycle transitions and moves queued
// frames to the viewer.
type Session struct {
	mu        sync.Mutex
	transport Transport
	conn      io.WriteCloser
	state     atomic.Int32
	log       *zap.Logger
}

// New creates a session in Disconnected. transport may be nil, in which
// case WaitForConnection fails and Pump discards nothing (frames stay
// queued until the queue's own drop policy applies).
func New(transport Transport, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{transport: transport, log: log}
}

// State reports the current connection state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// WaitForConnection blocks until a viewer attaches, then writes the
// stream header. On any failure the session is back in Disconnected
// and the call may be retried.
func (s *Session) WaitForConnection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch State(s.state.Load()) {
	case Connected:
		return nil
	case Closed:
		return errors.NotInitialized(errors.PhaseConnect)
	}
	if s.transport == nil {
		return errors.TransportUnavailable(errors.PhaseConnect, "no transport configured", nil)
	}

	s.state.Store(int32(Waiting))
	conn, err := s.transport.WaitForViewer(ctx)
	if err != nil {
		s.state.Store(int32(Disconnected))
		return errors.TransportUnavailable(errors.PhaseConnect, "wait for viewer", err)
	}

	var hdr [wire.StreamHeaderLen]byte
	wire.PutStreamHeader(hdr[:])
	if _, err := conn.Write(hdr[:]); err != nil {
		conn.Close()
		s.state.Store(int32(Disconnected))
		return errors.TransportUnavailable(errors.PhaseConnect, "write stream header", err)
	}

	s.conn = conn
	s.state.Store(int32(Connected))
	s.log.Info("viewer connected")
	return nil
}

// Pump drains q through the connection, best effort. Without a
// connection it is a no-op; a would-block write ends the pump without
// error; a broken connection drops the session back to Disconnected.
func (s *Session) Pump(q *queue.Queue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drainLocked(q, errors.PhasePump)
}

func (s *Session) drainLocked(q *queue.Queue, phase errors.Phase) error {
	if State(s.state.Load()) != Connected && State(s.state.Load()) != Draining {
		return nil
	}
	n, err := q.Drain(s.conn)
	if err != nil && !stderrors.Is(err, ErrWouldBlock) {
		s.log.Warn("viewer connection lost",
			zap.Int("bytes_written", n),
			zap.Error(err))
		s.conn.Close()
		s.conn = nil
		s.state.Store(int32(Disconnected))
		return errors.TransportUnavailable(phase, "drain queue", err)
	}
	return nil
}

// Close performs the final best-effort drain of q, closes the viewer
// connection, and ends in Closed. It is safe to call from any state.
func (s *Session) Close(q *queue.Queue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs error
	if State(s.state.Load()) == Connected {
		s.state.Store(int32(Draining))
		if q != nil {
			errs = multierr.Append(errs, s.drainLocked(q, errors.PhaseClose))
		}
	}
	if s.conn != nil {
		errs = multierr.Append(errs, s.conn.Close())
		s.conn = nil
	}
	s.state.Store(int32(Closed))
	s.log.Info("session closed")
	return errs
}
