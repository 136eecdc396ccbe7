package acp

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketTransport is a Transport backed by a *websocket.Conn, one
// JSON-RPC envelope per text message. It satisfies the same Transport
// interface as StdioTransport, proving the Transport contract is
// genuinely pluggable rather than shaped around one particular byte
// stream. Grounded on the message-pump shape used by
// other_examples/wamoscode-go-signalr's hub connection (read loop →
// dispatch, write path serialized by a mutex).
type WebSocketTransport struct {
	*transportCore

	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewWebSocketTransport wraps an already-dialed or already-accepted
// websocket connection as a Transport.
func NewWebSocketTransport(conn *websocket.Conn) *WebSocketTransport {
	return &WebSocketTransport{
		transportCore: newTransportCore(),
		conn:          conn,
	}
}

// Start moves created → starting → started and launches the read loop.
func (t *WebSocketTransport) Start() error {
	t.setState(TransportStarting)
	t.setState(TransportStarted)
	go t.readLoop()
	return nil
}

func (t *WebSocketTransport) readLoop() {
	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			t.finishClose()
			return
		}
		if msgType != websocket.TextMessage || len(data) == 0 || !json.Valid(data) {
			continue
		}
		select {
		case t.inboundCh <- data:
		case <-t.closeSignal:
			return
		}
	}
}

// Send writes a single outbound envelope as one text message.
func (t *WebSocketTransport) Send(line []byte) error {
	if t.State() != TransportStarted {
		return ErrTransportNotConnected
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.State() != TransportStarted {
		return ErrTransportNotConnected
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, line); err != nil {
		return &TransportError{Kind: TransportIO, Cause: err}
	}
	return nil
}

// Close moves started → closing → closed. Idempotent.
func (t *WebSocketTransport) Close() error {
	t.finishClose()
	return nil
}

func (t *WebSocketTransport) finishClose() {
	t.closeOnce.Do(func() {
		t.setState(TransportClosing)
		_ = t.conn.Close()
		t.setState(TransportClosed)
		close(t.closeSignal)
		close(t.stateCh)
		close(t.inboundCh)
	})
}
