package functions

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/coder/websocket"
)

// WebSocketTrigger accepts websocket connections on a listener and hands
// each one to a Loop as one invocation's unit of work: read a message, echo
// it back, close.
type WebSocketTrigger struct {
	listener net.Listener
	server   *http.Server
	conns    chan *websocket.Conn
}

// NewWebSocketTrigger wraps ln, serving a websocket upgrade handler on it.
// Call Serve in a goroutine before using Next as a Loop's work source.
func NewWebSocketTrigger(ln net.Listener) *WebSocketTrigger {
	t := &WebSocketTrigger{
		listener: ln,
		conns:    make(chan *websocket.Conn),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", t.handleUpgrade)
	t.server = &http.Server{Handler: mux}

	return t
}

func (t *WebSocketTrigger) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	select {
	case t.conns <- conn:
	case <-r.Context().Done():
		conn.Close(websocket.StatusGoingAway, "shutting down") //nolint:errcheck
	}
}

// Serve blocks, accepting HTTP connections on the wrapped listener, until
// the listener is closed.
func (t *WebSocketTrigger) Serve() error {
	return t.server.Serve(t.listener)
}

// Close shuts down the HTTP server and listener.
func (t *WebSocketTrigger) Close() error {
	return t.server.Close()
}

// Next is a Loop.Next implementation: it waits for one upgraded connection,
// echoes a single text message, and closes it — one connection is one
// invocation.
func (t *WebSocketTrigger) Next(ctx context.Context) error {
	var conn *websocket.Conn
	select {
	case conn = <-t.conns:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer conn.Close(websocket.StatusNormalClosure, "done") //nolint:errcheck

	typ, data, err := conn.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading message: %w", err)
	}
	if err := conn.Write(ctx, typ, data); err != nil {
		return fmt.Errorf("echoing message: %w", err)
	}
	return nil
}
