package acp

import (
	"sync"
	"sync/atomic"
)

// TransportState is the finite automaton a Transport moves through:
// created → starting → started → closing → closed. There are no
// backward transitions; closed is terminal.
type TransportState int32

const (
	TransportCreated TransportState = iota
	TransportStarting
	TransportStarted
	TransportClosing
	TransportClosed
)

func (s TransportState) String() string {
	switch s {
	case TransportCreated:
		return "created"
	case TransportStarting:
		return "starting"
	case TransportStarted:
		return "started"
	case TransportClosing:
		return "closing"
	case TransportClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transport is the pluggable byte-stream contract the Protocol Runtime is
// built on. Implementations MUST:
//
//   - move state created → starting → started on Start, and only ever
//     forward from there;
//   - reject Send with a *TransportError{Kind: TransportNotConnected} when
//     the state is not started;
//   - make Close idempotent, moving started → closing → closed;
//   - have Inbound yield only envelopes that parsed successfully — frames
//     that fail to parse are silently skipped, never surfaced as a zero
//     value on the channel;
//   - close both StateChanges and Inbound once Close has fully run or the
//     underlying stream hits EOF/a read error (which itself drives the
//     state to closing then closed).
type Transport interface {
	// Start begins reading inbound frames. Must be called at most once.
	Start() error

	// Send writes a single outbound envelope. Safe for concurrent use;
	// writes are serialized internally.
	Send(line []byte) error

	// Close shuts the transport down. Idempotent; never returns an error
	// for a transport that is already closed.
	Close() error

	// State returns the current TransportState.
	State() TransportState

	// StateChanges streams every TransportState the transport enters,
	// most recent last, closed when the transport reaches TransportClosed.
	StateChanges() <-chan TransportState

	// Inbound streams well-formed raw JSON frames as they arrive. Closed
	// when the transport reaches TransportClosed.
	Inbound() <-chan []byte
}

// transportCore is the shared state-machine bookkeeping embedded by every
// concrete Transport. Its fields are unexported; the concrete transports
// in this package embed it and use them directly.
type transportCore struct {
	state       atomic.Int32
	stateCh     chan TransportState
	inboundCh   chan []byte
	closeOnce   sync.Once
	closeSignal chan struct{}
}

func newTransportCore() *transportCore {
	return &transportCore{
		stateCh:     make(chan TransportState, 8),
		inboundCh:   make(chan []byte, 64),
		closeSignal: make(chan struct{}),
	}
}

func (c *transportCore) State() TransportState {
	return TransportState(c.state.Load())
}

func (c *transportCore) StateChanges() <-chan TransportState { return c.stateCh }
func (c *transportCore) Inbound() <-chan []byte               { return c.inboundCh }

// setState advances the state machine and publishes the transition.
// Never blocks: stateCh is sized generously for the five-state lifecycle.
func (c *transportCore) setState(s TransportState) {
	c.state.Store(int32(s))
	select {
	case c.stateCh <- s:
	default:
	}
}

