// Package signaling is the out-of-band WebSocket transport channels use to
// exchange negotiation envelopes before their DataChannels are stable
// (component F's implementation of the meshnode.Signalling contract).
package signaling

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/1ureka/meshnode/internal/envelope"
	"github.com/1ureka/meshnode/internal/logging"
)

// WSSignalling implements meshnode.Signalling over a single persistent
// WebSocket connection. Sends issued before the connection opens are
// queued and flushed, in order, once it does; every inbound frame is
// delivered to the registered handler exactly once, in arrival order.
type WSSignalling struct {
	logger *logging.Logger
	url    string

	mu       sync.Mutex
	conn     *websocket.Conn
	open     bool
	queue    []envelope.Envelope
	onOpen   func()
	onRecv   func(envelope.Envelope)
	closedCh chan struct{}
}

// NewClient returns a WSSignalling that dials url on Connect.
func NewClient(url string, logger *logging.Logger) *WSSignalling {
	if logger == nil {
		logger = logging.Default
	}
	return &WSSignalling{url: url, logger: logger, closedCh: make(chan struct{})}
}

// FromConn wraps an already-upgraded server-side connection (see Listener)
// in a ready-to-use WSSignalling; Connect is a no-op for it.
func FromConn(conn *websocket.Conn, logger *logging.Logger) *WSSignalling {
	if logger == nil {
		logger = logging.Default
	}
	s := &WSSignalling{logger: logger, conn: conn, closedCh: make(chan struct{})}
	s.markOpen()
	go s.readLoop()
	return s
}

// Connect dials the configured URL. A WSSignalling built via FromConn is
// already connected and this is a no-op.
func (s *WSSignalling) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("signaling: dial %s: %w", s.url, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.markOpen()
	go s.readLoop()
	return nil
}

// Disconnect closes the underlying connection. Idempotent.
func (s *WSSignalling) Disconnect() error {
	s.mu.Lock()
	conn := s.conn
	wasOpen := s.open
	s.open = false
	s.mu.Unlock()

	if !wasOpen {
		return nil
	}
	select {
	case <-s.closedCh:
	default:
		close(s.closedCh)
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// IsOpen reports whether the connection is live.
func (s *WSSignalling) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Send serializes and writes env. If the connection is not yet open, env
// is queued and flushed on open, preserving submission order.
func (s *WSSignalling) Send(env envelope.Envelope) error {
	s.mu.Lock()
	if !s.open {
		s.queue = append(s.queue, env)
		s.mu.Unlock()
		return nil
	}
	conn := s.conn
	s.mu.Unlock()

	return s.writeEnvelope(conn, env)
}

func (s *WSSignalling) writeEnvelope(conn *websocket.Conn, env envelope.Envelope) error {
	wire, err := envelope.Serialize(env)
	if err != nil {
		return fmt.Errorf("signaling: serialize: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("signaling: no connection")
	}
	return conn.WriteMessage(websocket.TextMessage, []byte(wire))
}

// OnOpen registers the callback fired once the connection becomes usable.
func (s *WSSignalling) OnOpen(fn func()) {
	s.mu.Lock()
	s.onOpen = fn
	alreadyOpen := s.open
	s.mu.Unlock()
	if alreadyOpen && fn != nil {
		fn()
	}
}

// OnReceiveMessage registers the callback fired for every inbound envelope.
func (s *WSSignalling) OnReceiveMessage(fn func(envelope.Envelope)) {
	s.mu.Lock()
	s.onRecv = fn
	s.mu.Unlock()
}

func (s *WSSignalling) markOpen() {
	s.mu.Lock()
	s.open = true
	pending := s.queue
	s.queue = nil
	conn := s.conn
	cb := s.onOpen
	s.mu.Unlock()

	for _, env := range pending {
		_ = s.writeEnvelope(conn, env)
	}
	if cb != nil {
		cb()
	}
}

func (s *WSSignalling) readLoop() {
	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			s.logger.Debug("signalling connection closed", logging.Fields{"err": err.Error()})
			_ = s.Disconnect()
			return
		}

		if !envelope.IsEnvelope(string(data)) {
			s.logger.Warning("dropped non-envelope signalling frame", nil)
			continue
		}
		env, err := envelope.Deserialize(string(data))
		if err != nil {
			var decErr *envelope.DecodeError
			if asDecodeError(err, &decErr) {
				s.logger.Warning("dropped malformed signalling envelope", logging.Fields{"kind": decErr.Kind})
			}
			continue
		}

		s.mu.Lock()
		cb := s.onRecv
		s.mu.Unlock()
		if cb != nil {
			cb(env)
		}
	}
}

func asDecodeError(err error, target **envelope.DecodeError) bool {
	de, ok := err.(*envelope.DecodeError)
	if ok {
		*target = de
	}
	return ok
}
