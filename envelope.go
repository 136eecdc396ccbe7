package acp

import "encoding/json"

// jsonrpcVersion is the only JSON-RPC version this SDK speaks.
const jsonrpcVersion = "2.0"

// envelopeKind discriminates the four shapes a decoded envelope can take.
type envelopeKind int

const (
	kindRequest envelopeKind = iota
	kindResponse
	kindErrorResponse
	kindNotification
)

// wireEnvelope is the superset representation used for decoding: every
// inbound text frame is unmarshaled into this shape, and dispatch then
// classifies it by which fields are present. This mirrors
// engine/acp/conn.go's rpcMessage, generalized to a string|int RequestID
// and an explicit Meta passthrough on params/result.
type wireEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *RequestID      `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
}

// wireError is the JSON-RPC 2.0 error object.
type wireError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// kind classifies a decoded wireEnvelope: request has id+method,
// error has error (with or without id), response has id+result (no
// method), notification has method without id.
func (w *wireEnvelope) kind() (envelopeKind, bool) {
	switch {
	case w.Error != nil:
		return kindErrorResponse, true
	case w.ID != nil && w.Method != "":
		return kindRequest, true
	case w.ID != nil && w.Method == "" && w.Result != nil:
		return kindResponse, true
	case w.ID == nil && w.Method != "":
		return kindNotification, true
	default:
		return 0, false
	}
}

// outboundRequest is the shape encoded for Call()/send_request. Field
// declaration order is encoding order — jsonrpc first, as JSON-RPC 2.0 requires.
type outboundRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      RequestID `json:"id"`
	Method  string    `json:"method"`
	Params  any       `json:"params,omitempty"`
}

// outboundNotification is the shape encoded for Notify()/send_notification.
// A notification MUST NOT carry an id field.
type outboundNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// outboundResponse is the shape encoded for a successful inbound-request reply.
type outboundResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      RequestID `json:"id"`
	Result  any       `json:"result"`
}

// outboundErrorResponse is the shape encoded for a failed inbound-request reply.
// The id is nullable per JSON-RPC 2.0 (a parse error has no request to blame).
type outboundErrorResponse struct {
	JSONRPC string     `json:"jsonrpc"`
	ID      *RequestID `json:"id"`
	Error   *wireError `json:"error"`
}

// encodeLine marshals v and appends a single trailing newline, as required
// by the newline-delimited-JSON wire format. Encoding itself carries
// no framing opinion beyond "exactly one newline terminator" — a
// transport that frames differently (e.g. length-prefixed) can still use
// the marshaled bytes without the newline.
func encodeLine(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// decodeEnvelope parses a single JSON text frame into a wireEnvelope,
// validating the jsonrpc field and the envelope shape. Frames that parse
// as JSON but do not match one of the four envelope shapes, or whose
// jsonrpc tag is wrong, produce a *MalformedError — the Runtime reports
// these on its own error stream rather than routing them anywhere else.
func decodeEnvelope(line []byte) (*wireEnvelope, envelopeKind, error) {
	var w wireEnvelope
	if err := json.Unmarshal(line, &w); err != nil {
		return nil, 0, &MalformedError{Detail: err.Error()}
	}
	if w.JSONRPC != jsonrpcVersion {
		return nil, 0, &MalformedError{Detail: "missing or wrong jsonrpc version"}
	}
	k, ok := w.kind()
	if !ok {
		return nil, 0, &MalformedError{Detail: "envelope matches no known shape"}
	}
	return &w, k, nil
}
