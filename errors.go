package acp

import (
	"errors"
	"fmt"

	"github.com/dmora/acp-go/internal/errfmt"
)

// Standard JSON-RPC 2.0 and ACP-specific error codes.
const (
	CodeParseError       = -32700
	CodeInvalidRequest   = -32600
	CodeMethodNotFound   = -32601
	CodeInvalidParams    = -32602
	CodeInternalError    = -32603
	CodeAuthRequired     = -32000
	CodeResourceNotFound = -32001
	CodeRequestCancelled = -32800
)

// --- TransportError family ---

// TransportError is returned by Transport operations.
type TransportError struct {
	Kind  TransportErrorKind
	Cause error
}

// TransportErrorKind classifies a TransportError.
type TransportErrorKind int

const (
	TransportNotConnected TransportErrorKind = iota
	TransportAlreadyClosed
	TransportIO
)

func (e *TransportError) Error() string {
	switch e.Kind {
	case TransportNotConnected:
		return "acp: transport not connected"
	case TransportAlreadyClosed:
		return "acp: transport already closed"
	case TransportIO:
		return fmt.Sprintf("acp: transport io: %v", e.Cause)
	default:
		return "acp: transport error"
	}
}

func (e *TransportError) Unwrap() error { return e.Cause }

// ErrTransportNotConnected is a sentinel matchable with errors.Is against
// any *TransportError of kind TransportNotConnected.
var ErrTransportNotConnected = &TransportError{Kind: TransportNotConnected}

// ErrTransportAlreadyClosed is the sentinel for a double-close.
var ErrTransportAlreadyClosed = &TransportError{Kind: TransportAlreadyClosed}

func (e *TransportError) Is(target error) bool {
	t, ok := target.(*TransportError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// --- ProtocolError family ---

// ProtocolError is returned by Runtime operations (send_request) and
// emitted on the Runtime's error stream for cross-cutting failures.
type ProtocolError struct {
	Kind ProtocolErrorKind

	// InvalidID is set when Kind == ProtocolInvalidResponseID.
	InvalidID RequestID

	// RPCCode/RPCMessage/RPCData are set when Kind == ProtocolJSONRPCError.
	RPCCode    int
	RPCMessage string
	RPCData    []byte

	Cause error
}

// ProtocolErrorKind classifies a ProtocolError.
type ProtocolErrorKind int

const (
	ProtocolMalformed ProtocolErrorKind = iota
	ProtocolInvalidResponseID
	ProtocolTransportClosed
	ProtocolJSONRPCError
	ProtocolTimeout
	ProtocolCancelled
)

func (e *ProtocolError) Error() string {
	switch e.Kind {
	case ProtocolMalformed:
		if e.Cause != nil {
			return fmt.Sprintf("acp: malformed envelope: %v", e.Cause)
		}
		return "acp: malformed envelope"
	case ProtocolInvalidResponseID:
		return fmt.Sprintf("acp: response for unknown request id %v", e.InvalidID)
	case ProtocolTransportClosed:
		return "acp: transport closed"
	case ProtocolJSONRPCError:
		return fmt.Sprintf("acp: rpc error %d: %s", e.RPCCode, e.RPCMessage)
	case ProtocolTimeout:
		return "acp: request timed out"
	case ProtocolCancelled:
		return "acp: request cancelled"
	default:
		return "acp: protocol error"
	}
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

func (e *ProtocolError) Is(target error) bool {
	t, ok := target.(*ProtocolError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is matching against ProtocolError.Kind.
var (
	ErrTransportClosed = &ProtocolError{Kind: ProtocolTransportClosed}
	ErrTimeout          = &ProtocolError{Kind: ProtocolTimeout}
	ErrCancelled        = &ProtocolError{Kind: ProtocolCancelled}
)

// MalformedError is a lightweight decode-time error, promoted to a full
// *ProtocolError with Kind ProtocolMalformed wherever it crosses an API
// boundary (see decodeEnvelope).
type MalformedError struct {
	Detail string
}

func (e *MalformedError) Error() string {
	return "acp: malformed: " + e.Detail
}

func (e *MalformedError) toProtocolError() *ProtocolError {
	return &ProtocolError{Kind: ProtocolMalformed, Cause: e}
}

// --- ConnectionError family ---

// ConnectionError is returned by Role Connection (AgentConnection /
// ClientConnection) operations.
type ConnectionError struct {
	Kind     ConnectionErrorKind
	Expected ConnState
	Actual   ConnState
	Method   string
	Detail   string
}

// ConnectionErrorKind classifies a ConnectionError.
type ConnectionErrorKind int

const (
	ConnInvalidState ConnectionErrorKind = iota
	ConnNotConnected
	ConnUnknownMethod
	ConnMissingParams
	ConnDecodingFailed
)

func (e *ConnectionError) Error() string {
	switch e.Kind {
	case ConnInvalidState:
		return fmt.Sprintf("acp: invalid connection state: expected %s, got %s", e.Expected, e.Actual)
	case ConnNotConnected:
		return "acp: not connected"
	case ConnUnknownMethod:
		return fmt.Sprintf("acp: unknown method: %s", e.Method)
	case ConnMissingParams:
		return fmt.Sprintf("acp: missing params for method %s", e.Method)
	case ConnDecodingFailed:
		return fmt.Sprintf("acp: decoding failed: %s", e.Detail)
	default:
		return "acp: connection error"
	}
}

func (e *ConnectionError) Is(target error) bool {
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// ErrNotConnected is the sentinel for ACP methods invoked outside the
// connected state.
var ErrNotConnected = &ConnectionError{Kind: ConnNotConnected}

// --- RoleError family (agent/client implementation errors) ---

// RoleError is the error type an Agent or Client implementation returns
// from a handler to signal a specific JSON-RPC error code back to the peer.
type RoleError struct {
	Kind   RoleErrorKind
	Method string
	ID     string
	Detail string
}

// RoleErrorKind classifies a RoleError and determines its JSON-RPC code.
type RoleErrorKind int

const (
	RoleNotImplemented RoleErrorKind = iota
	RoleSessionNotFound
	RoleInvalidParams
	RoleInternalError
)

// Code returns the JSON-RPC error code this RoleErrorKind maps to.
func (k RoleErrorKind) Code() int {
	switch k {
	case RoleNotImplemented:
		return CodeMethodNotFound
	case RoleSessionNotFound:
		return CodeResourceNotFound
	case RoleInvalidParams:
		return CodeInvalidParams
	case RoleInternalError:
		return CodeInternalError
	default:
		return CodeInternalError
	}
}

func (e *RoleError) Error() string {
	switch e.Kind {
	case RoleNotImplemented:
		return fmt.Sprintf("acp: method not implemented: %s", e.Method)
	case RoleSessionNotFound:
		return fmt.Sprintf("acp: session not found: %s", e.ID)
	case RoleInvalidParams:
		return fmt.Sprintf("acp: invalid params: %s", e.Detail)
	case RoleInternalError:
		return fmt.Sprintf("acp: internal error: %s", e.Detail)
	default:
		return "acp: role error"
	}
}

// NewNotImplementedError builds a RoleError for an unimplemented ACP method.
func NewNotImplementedError(method string) error {
	return &RoleError{Kind: RoleNotImplemented, Method: method}
}

// NewSessionNotFoundError builds a RoleError for an unknown session id.
func NewSessionNotFoundError(id string) error {
	return &RoleError{Kind: RoleSessionNotFound, ID: id}
}

// NewInvalidParamsError builds a RoleError for params that fail validation.
func NewInvalidParamsError(detail string) error {
	return &RoleError{Kind: RoleInvalidParams, Detail: errfmt.Truncate(detail)}
}

// NewInternalError builds a RoleError for an unexpected handler failure.
func NewInternalError(detail string) error {
	return &RoleError{Kind: RoleInternalError, Detail: errfmt.Truncate(detail)}
}

// roleErrorCode extracts the JSON-RPC error code for any error returned
// from a method handler, defaulting unrecognized error types to
// InternalError. The message is truncated before it crosses back over
// the wire to the peer — a panicking handler may embed an arbitrarily
// large value (e.g. a stack trace or a dumped request body) in its
// error, and nothing downstream bounds it.
func roleErrorCode(err error) (int, string) {
	var re *RoleError
	if errors.As(err, &re) {
		return re.Kind.Code(), errfmt.Truncate(re.Error())
	}
	return CodeInternalError, errfmt.Truncate(err.Error())
}
