package acp

import "sync/atomic"

// ConnState is the state machine shared by AgentConnection and
// ClientConnection: disconnected → connecting → connected →
// disconnecting → disconnected. The only other transitions are Close,
// which passes through disconnecting to disconnected from any state, and
// a failed handshake, which returns the connection to disconnected rather
// than leaving it stuck in connecting.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// baseConnection is the state-machine and Runtime plumbing common to both
// role connections. Generalizes engine/acp/process.go, which inlines
// this bookkeeping directly into process rather than factoring it out —
// here it's factored out because there are now two symmetric roles
// sharing it instead of one.
type baseConnection struct {
	runtime *Runtime
	state   atomic.Int32
}

func newBaseConnection(transport Transport, opts ...RuntimeOption) *baseConnection {
	return &baseConnection{runtime: NewRuntime(transport, opts...)}
}

// State returns the connection's current ConnState.
func (b *baseConnection) State() ConnState {
	return ConnState(b.state.Load())
}

func (b *baseConnection) setState(s ConnState) {
	b.state.Store(int32(s))
}

// requireState returns a *ConnectionError if the connection is not
// currently in state expected, naming method for the caller's error message.
func (b *baseConnection) requireState(expected ConnState, method string) error {
	actual := b.State()
	if actual != expected {
		return &ConnectionError{Kind: ConnInvalidState, Expected: expected, Actual: actual, Method: method}
	}
	return nil
}

// Errors exposes the underlying Runtime's cross-cutting error stream.
func (b *baseConnection) Errors() <-chan *ProtocolError {
	return b.runtime.Errors()
}

// Close tears the connection down: disconnecting, then disconnected,
// regardless of which state it was called from. Idempotent by virtue of
// Runtime.Close being idempotent.
func (b *baseConnection) Close() error {
	b.setState(StateDisconnecting)
	err := b.runtime.Close()
	b.setState(StateDisconnected)
	return err
}

// requireCapability gates a method behind a negotiated capability flag:
// calling an unsupported method must surface MethodNotFound rather than
// silently succeeding or panicking. engine/acp/process.go never needed
// this check — it is always the client side talking to a real agent
// binary that either supports a method or rejects it over the wire —
// but here both roles can be hosted locally, so the SDK itself must
// enforce what the wire would otherwise enforce for us.
func requireCapability(granted bool, method string) error {
	if !granted {
		return NewNotImplementedError(method)
	}
	return nil
}
