// Package acptest wires an AgentConnection to a ClientConnection over an
// in-memory duplex pipe, for use in tests and examples that want both
// roles running in one process without a real subprocess or socket.
// Generalizes engine/acp/conn_test.go's testPeer — which pairs a single
// Conn against a hand-rolled peer that only speaks raw JSON — into a pair
// of fully real Role Connections, each exercising the other's actual
// dispatch code rather than a test double.
package acptest

import (
	"io"

	"github.com/dmora/acp-go"
)

// NewDuplexPair returns two Transports, each other's peer: bytes written
// to one arrive as inbound frames on the other. maxMessageSize <= 0
// selects the StdioTransport default.
func NewDuplexPair(maxMessageSize int) (a, b *acp.StdioTransport) {
	toA, fromB := io.Pipe()
	toB, fromA := io.Pipe()
	a = acp.NewStdioTransport(toA, fromA, maxMessageSize)
	b = acp.NewStdioTransport(toB, fromB, maxMessageSize)
	return a, b
}

// Pair is a started AgentConnection/ClientConnection bound to each other
// over an in-memory duplex pipe.
type Pair struct {
	Agent  *acp.AgentConnection
	Client *acp.ClientConnection
}

// NewPair constructs and starts both connections. Close shuts both down.
func NewPair(agent acp.Agent, client acp.Client, opts ...acp.RuntimeOption) (*Pair, error) {
	at, ct := NewDuplexPair(0)

	agentConn := acp.NewAgentConnection(at, agent, opts...)
	clientConn := acp.NewClientConnection(ct, client, opts...)

	if err := agentConn.Start(); err != nil {
		return nil, err
	}
	if err := clientConn.Start(); err != nil {
		_ = agentConn.Close()
		return nil, err
	}

	return &Pair{Agent: agentConn, Client: clientConn}, nil
}

// Close shuts both connections (and their shared pipe) down. Safe to call
// more than once.
func (p *Pair) Close() error {
	cerr := p.Client.Close()
	aerr := p.Agent.Close()
	if cerr != nil {
		return cerr
	}
	return aerr
}
