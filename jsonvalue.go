package acp

import "encoding/json"

// RawMeta is an open, uninterpreted passthrough object. ACP payloads may
// carry a "_meta" field for progress tokens and extensibility keys; the
// SDK captures it on decode and re-emits it unchanged on encode without
// ever looking inside it.
type RawMeta = json.RawMessage

// RequestID is the union of a non-negative integer and a non-empty string,
// as used by JSON-RPC 2.0 request/response ids. The zero value is the
// integer id 0; use NewIntID or NewStringID to construct one.
type RequestID struct {
	isString bool
	str      string
	num      int64
}

// NewIntID returns a RequestID carrying an integer.
func NewIntID(n int64) RequestID {
	return RequestID{num: n}
}

// NewStringID returns a RequestID carrying a string. Panics if s is empty —
// the wire format requires a non-empty string id.
func NewStringID(s string) RequestID {
	if s == "" {
		panic("acp: string request id must not be empty")
	}
	return RequestID{isString: true, str: s}
}

// IsString reports whether the id is a string (as opposed to an integer).
func (id RequestID) IsString() bool { return id.isString }

// Int returns the integer value of the id. Only meaningful when !IsString().
func (id RequestID) Int() int64 { return id.num }

// String returns the string value of the id. Only meaningful when IsString().
func (id RequestID) String() string {
	if id.isString {
		return id.str
	}
	return ""
}

// Equal reports whether two ids have the same tag and value.
func (id RequestID) Equal(other RequestID) bool {
	if id.isString != other.isString {
		return false
	}
	if id.isString {
		return id.str == other.str
	}
	return id.num == other.num
}

// MarshalJSON encodes an integer id as a bare JSON number and a string id
// as a JSON string.
func (id RequestID) MarshalJSON() ([]byte, error) {
	if id.isString {
		return json.Marshal(id.str)
	}
	return json.Marshal(id.num)
}

// UnmarshalJSON accepts either a JSON number or a JSON string.
func (id *RequestID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		id.isString = true
		id.str = s
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return &MalformedError{Detail: "request id is neither a JSON number nor a JSON string"}
	}
	id.isString = false
	id.num = n
	return nil
}

// idKey returns a value suitable for use as a Go map key, collapsing the
// tagged union into a single comparable value without losing the tag.
func (id RequestID) idKey() any {
	if id.isString {
		return "s:" + id.str
	}
	return int64(id.num)
}
