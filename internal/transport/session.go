// Package transport connects a renderer to a live engine over a WebSocket.
//
// The engine sends FrameMutations frames; the session applies each batch
// and acknowledges its sequence number. Synthetic events flow back as
// FrameEvents frames. Either side may ping; a protocol violation ends the
// session with a fatal FrameError and a close reason.
package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	rerrors "github.com/vango-dev/vrender/internal/errors"
	"github.com/vango-dev/vrender/pkg/protocol"
	"github.com/vango-dev/vrender/pkg/renderer"
)

// Config configures a Session.
type Config struct {
	// URL is the engine endpoint (ws:// or wss://).
	URL string

	// Header is sent with the handshake.
	Header http.Header

	DialTimeout  time.Duration
	WriteTimeout time.Duration

	// PingInterval is how often the session pings the engine.
	PingInterval time.Duration

	// PongTimeout is the read deadline; any frame from the engine extends it.
	PongTimeout time.Duration

	// Compress gzips event frames above protocol.CompressThreshold.
	Compress bool

	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 2 * c.PingInterval
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Stats are session counters.
type Stats struct {
	Batches    uint64 `json:"batches"`
	Acked      uint64 `json:"acked_seq"`
	EventsSent uint64 `json:"events_sent"`
	Malformed  uint64 `json:"malformed_frames"`
}

// Session is one live connection between a renderer and an engine.
type Session struct {
	conn   *websocket.Conn
	r      *renderer.Renderer
	config Config
	logger *slog.Logger

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once

	batches    atomic.Uint64
	acked      atomic.Uint64
	eventsSent atomic.Uint64
	malformed  atomic.Uint64
}

// Dial connects to config.URL and returns a session driving r.
func Dial(ctx context.Context, r *renderer.Renderer, config Config) (*Session, error) {
	config.applyDefaults()
	dialer := websocket.Dialer{
		HandshakeTimeout: config.DialTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	conn, _, err := dialer.DialContext(ctx, config.URL, config.Header)
	if err != nil {
		return nil, rerrors.New("R040").
			WithOp("Dial").
			WithDetail("Could not connect to " + config.URL).
			Wrap(err)
	}
	return NewSession(conn, r, config), nil
}

// NewSession wraps an established connection.
func NewSession(conn *websocket.Conn, r *renderer.Renderer, config Config) *Session {
	config.applyDefaults()
	return &Session{
		conn:   conn,
		r:      r,
		config: config,
		logger: config.Logger.With("component", "transport", "remote", conn.RemoteAddr().String()),
		done:   make(chan struct{}),
	}
}

// Run services the connection until the engine closes it, ctx is
// cancelled, or a protocol violation ends the session. A clean close by
// the engine returns nil.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writeErr := make(chan error, 1)
	go func() {
		err := s.writeLoop(ctx)
		if err != nil {
			s.Close("")
		}
		writeErr <- err
	}()

	go func() {
		select {
		case <-ctx.Done():
			s.Close("")
		case <-s.done:
		}
	}()

	err := s.readLoop(ctx)
	s.Close("")
	cancel()
	if werr := <-writeErr; err == nil && werr != nil && !errors.Is(werr, ErrSessionClosed) {
		err = werr
	}
	return err
}

// readLoop applies incoming frames in order.
func (s *Session) readLoop(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("read loop panic",
				"panic", p,
				"stack", string(debug.Stack()))
			err = rerrors.New("R040").WithOp("Read").WithDetail("read loop panicked")
		}
	}()

	for {
		s.conn.SetReadDeadline(time.Now().Add(s.config.PongTimeout))

		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("engine closed connection")
				return nil
			}
			return rerrors.New("R040").WithOp("Read").Wrap(err)
		}

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			s.malformed.Add(1)
			s.logger.Warn("frame decode error", "bytes", len(msg), "error", err)
			s.sendError(protocol.ErrCodeInvalidFrame, 0, err.Error(), false)
			continue
		}

		switch frame.Type {
		case protocol.FrameMutations:
			if err := s.handleMutations(ctx, frame); err != nil {
				return err
			}
			// Let timers and event work queued by the batch run before the
			// next frame is read.
			if err := s.r.Yield(ctx); err != nil {
				return err
			}

		case protocol.FrameControl:
			if stop := s.handleControl(frame.Payload); stop {
				return nil
			}

		case protocol.FrameError:
			em, err := protocol.DecodeErrorMessage(frame.Payload)
			if err != nil {
				s.logger.Warn("error frame decode error", "error", err)
				continue
			}
			s.logger.Warn("engine reported error",
				"code", em.Code.String(),
				"seq", em.Seq,
				"message", em.Message,
				"fatal", em.Fatal)
			if em.Fatal {
				return rerrors.New("R040").WithOp("Read").Wrap(em)
			}

		default:
			s.logger.Warn("unexpected frame type", "type", frame.Type.String())
		}
	}
}

func (s *Session) handleMutations(ctx context.Context, frame *protocol.Frame) error {
	res, err := s.r.ApplyFrame(ctx, frame)
	switch {
	case err == nil:
	case rerrors.CodeOf(err) == "R007":
		s.malformed.Add(1)
		s.logger.Warn("malformed batch", "error", err)
		s.sendError(protocol.ErrCodeInvalidFrame, 0, err.Error(), false)
		return nil
	case rerrors.IsProtocolViolation(err):
		s.logger.Error("protocol violation, closing session", "seq", res.Seq, "error", err)
		s.sendError(protocol.ErrCodeProtocolViolation, res.Seq, err.Error(), true)
		s.Close("protocol violation: " + rerrors.CodeOf(err))
		return err
	default:
		// Loop closed or ctx cancelled.
		return err
	}

	s.batches.Add(1)
	s.acked.Store(res.Seq)
	if len(res.Failures) > 0 {
		s.logger.Debug("batch applied with skipped instructions",
			"seq", res.Seq,
			"skipped", res.Skipped)
	}
	return s.write(protocol.NewFrame(protocol.FrameAck, protocol.EncodeAck(&protocol.Ack{LastSeq: res.Seq})))
}

// handleControl reports whether the engine asked to close.
func (s *Session) handleControl(payload []byte) bool {
	c, err := protocol.DecodeControl(payload)
	if err != nil {
		s.logger.Warn("control decode error", "error", err)
		return false
	}

	switch c.Type {
	case protocol.ControlPing:
		pong := &protocol.Control{Type: protocol.ControlPong, Timestamp: c.Timestamp}
		if err := s.write(protocol.NewFrame(protocol.FrameControl, protocol.EncodeControl(pong))); err != nil {
			s.logger.Warn("pong error", "error", err)
		}
	case protocol.ControlPong:
		s.logger.Debug("received pong", "rtt", time.Since(time.UnixMilli(int64(c.Timestamp))))
	case protocol.ControlClose:
		s.logger.Info("engine closing", "reason", c.Reason)
		return true
	}
	return false
}

// writeLoop forwards queued synthetic events and sends heartbeats.
func (s *Session) writeLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	events := s.r.Events()
	for {
		if err := s.flushEvents(); err != nil {
			return err
		}

		select {
		case <-events.Notify():
		case <-ticker.C:
			ping := &protocol.Control{Type: protocol.ControlPing, Timestamp: uint64(time.Now().UnixMilli())}
			if err := s.write(protocol.NewFrame(protocol.FrameControl, protocol.EncodeControl(ping))); err != nil {
				return err
			}
		case <-s.done:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Session) flushEvents() error {
	evs := s.r.Events().Drain()
	if len(evs) == 0 {
		return nil
	}
	frame := protocol.NewFrame(protocol.FrameEvents, protocol.EncodeEvents(evs))
	if s.config.Compress {
		var err error
		if frame, err = protocol.Compress(frame); err != nil {
			return rerrors.New("R040").WithOp("Compress").Wrap(err)
		}
	}
	if err := s.write(frame); err != nil {
		return err
	}
	s.eventsSent.Add(uint64(len(evs)))
	return nil
}

func (s *Session) sendError(code protocol.ErrorCode, seq uint64, msg string, fatal bool) {
	em := &protocol.ErrorMessage{Code: code, Seq: seq, Message: msg, Fatal: fatal}
	if err := s.write(protocol.NewFrame(protocol.FrameError, protocol.EncodeErrorMessage(em))); err != nil {
		s.logger.Debug("error frame not sent", "error", err)
	}
}

// ErrSessionClosed is returned by writes after Close.
var ErrSessionClosed = errors.New("transport: session closed")

func (s *Session) write(f *protocol.Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, f.Encode()); err != nil {
		return rerrors.New("R040").WithOp("Write").Wrap(err)
	}
	return nil
}

// Close ends the session. A non-empty reason is sent to the engine as a
// Close control frame first. Close is safe to call more than once.
func (s *Session) Close(reason string) {
	s.closeOnce.Do(func() {
		if reason != "" {
			c := &protocol.Control{Type: protocol.ControlClose, Reason: reason}
			_ = s.write(protocol.NewFrame(protocol.FrameControl, protocol.EncodeControl(c)))
		}

		s.writeMu.Lock()
		close(s.done)
		deadline := time.Now().Add(time.Second)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, truncateReason(reason)),
			deadline)
		s.writeMu.Unlock()

		s.conn.Close()
	})
}

// Close frame reasons are limited to 123 bytes.
func truncateReason(reason string) string {
	if len(reason) > 123 {
		return reason[:123]
	}
	return reason
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} { return s.done }

// Stats returns the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		Batches:    s.batches.Load(),
		Acked:      s.acked.Load(),
		EventsSent: s.eventsSent.Load(),
		Malformed:  s.malformed.Load(),
	}
}
