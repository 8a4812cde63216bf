package signaling

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/1ureka/meshnode/internal/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Listener accepts inbound WebSocket connections for signalling, one per
// remote node that dials in. It keeps accepting for its entire lifetime —
// a node may negotiate many concurrent channels, not a single fixed tunnel.
type Listener struct {
	pin      string
	listener net.Listener
	connCh   chan *websocket.Conn
	logger   *logging.Logger
}

// NewListener creates a Listener requiring pin as a query-string credential
// on every inbound connection. An empty pin disables the check.
func NewListener(pin string, logger *logging.Logger) *Listener {
	if logger == nil {
		logger = logging.Default
	}
	return &Listener{pin: pin, connCh: make(chan *websocket.Conn, 8), logger: logger}
}

// Start begins listening on addr (":0" for a random port) and returns the
// bound port.
func (l *Listener) Start(addr string) (int, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("signaling: listen: %w", err)
	}
	l.listener = lis
	port := lis.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", l.handleWS)
	go func() {
		_ = http.Serve(lis, mux)
	}()
	return port, nil
}

func (l *Listener) handleWS(w http.ResponseWriter, r *http.Request) {
	if l.pin != "" && r.URL.Query().Get("pin") != l.pin {
		http.Error(w, "invalid pin", http.StatusUnauthorized)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.logger.Warning("websocket upgrade failed", logging.Fields{"err": err.Error()})
		return
	}
	select {
	case l.connCh <- conn:
	default:
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "signalling backlog full"))
		_ = conn.Close()
	}
}

// Accept blocks until the next inbound connection arrives, wraps it as a
// ready WSSignalling, and returns it.
func (l *Listener) Accept(ctx context.Context) (*WSSignalling, error) {
	select {
	case conn := <-l.connCh:
		return FromConn(conn, l.logger), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	if l.listener != nil {
		return l.listener.Close()
	}
	return nil
}

// GeneratePIN returns a random numeric PIN of the given length, used when
// a node wants to gate inbound signalling with a shared secret.
func GeneratePIN(length int) string {
	digits := make([]byte, length)
	for i := range digits {
		n, _ := rand.Int(rand.Reader, big.NewInt(10))
		digits[i] = byte('0') + byte(n.Int64())
	}
	return string(digits)
}
