// Package acpid mints and validates the opaque session ids the protocol
// passes around as plain strings (sessionId in every session/* payload).
// Grounded on github.com/google/uuid, the same dependency used for
// identifier generation in _examples/jinterlante1206-AleutianLocal's
// go.mod — the ACP wire format never requires any particular id shape,
// but a v4 UUID is what every agent implementation in the wild already
// emits, and collision-free generation without a central allocator is
// exactly the property the protocol needs for concurrently created sessions.
package acpid

import "github.com/google/uuid"

// New mints a fresh session id.
func New() string {
	return uuid.NewString()
}

// Valid reports whether s parses as a UUID. Agent implementations backed
// by acpid-minted ids can use this to reject a session/load or
// session/resume call for an id that was never one of theirs, without
// needing to consult storage first.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
