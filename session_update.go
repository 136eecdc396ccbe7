package acp

import "encoding/json"

// SessionUpdateKind is the "sessionUpdate" discriminator carried by every
// session/update notification's inner payload. Generalizes
// engine/acp/update.go's updateParsers keys into an exported type.
type SessionUpdateKind string

// The eleven update kinds an agent may emit — three content-chunk variants,
// two tool-call variants, and six status/metadata variants. engine/acp's
// own updateParsers table already carries all eleven, which this SDK
// keeps as the authoritative set.
const (
	UpdateAgentMessageChunk      SessionUpdateKind = "agent_message_chunk"
	UpdateAgentThoughtChunk      SessionUpdateKind = "agent_thought_chunk"
	UpdateUserMessageChunk       SessionUpdateKind = "user_message_chunk"
	UpdateToolCall               SessionUpdateKind = "tool_call"
	UpdateToolCallUpdate         SessionUpdateKind = "tool_call_update"
	UpdatePlan                   SessionUpdateKind = "plan"
	UpdateCurrentModeUpdate      SessionUpdateKind = "current_mode_update"
	UpdateConfigOptionUpdate     SessionUpdateKind = "config_option_update"
	UpdateSessionInfoUpdate      SessionUpdateKind = "session_info_update"
	UpdateUsageUpdate            SessionUpdateKind = "usage_update"
	UpdateAvailableCommandsUpdate SessionUpdateKind = "available_commands_update"
)

// PlanEntry is one step of an agent's plan update.
type PlanEntry struct {
	Content  string `json:"content"`
	Priority string `json:"priority,omitempty"`
	Status   string `json:"status,omitempty"`
}

// SessionInfo carries session_info_update's payload.
type SessionInfo struct {
	Title string `json:"title,omitempty"`
}

// AvailableCommand describes one slash-command the agent currently exposes.
type AvailableCommand struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SessionUpdate is the decoded form of a session/update notification: the
// outer sessionId plus a tagged union over the inner payload. Only the
// field(s) matching Kind are populated. Raw always holds the undecoded
// inner payload so a caller can recover fields this type doesn't surface,
// and so an unrecognized Kind degrades to Raw instead of an error.
type SessionUpdate struct {
	SessionID string
	Kind      SessionUpdateKind
	Meta      RawMeta

	Content           *ContentBlock
	ToolCall          *ToolCallUpdate
	Plan              []PlanEntry
	CurrentModeID     string
	SessionInfo       *SessionInfo
	AvailableCommands []AvailableCommand

	Raw json.RawMessage
}

// sessionUpdateDecoder fills in the Kind-specific fields of update from its
// raw inner payload. Errors are reported as *MalformedError.
type sessionUpdateDecoder func(update json.RawMessage, out *SessionUpdate) error

var sessionUpdateDecoders = map[SessionUpdateKind]sessionUpdateDecoder{
	UpdateAgentMessageChunk:       decodeContentChunk,
	UpdateAgentThoughtChunk:       decodeContentChunk,
	UpdateUserMessageChunk:        decodeContentChunk,
	UpdateToolCall:                decodeToolCall,
	UpdateToolCallUpdate:          decodeToolCall,
	UpdatePlan:                    decodePlan,
	UpdateCurrentModeUpdate:       decodeCurrentModeUpdate,
	UpdateConfigOptionUpdate:      decodeNoop,
	UpdateSessionInfoUpdate:       decodeSessionInfoUpdate,
	UpdateUsageUpdate:             decodeNoop,
	UpdateAvailableCommandsUpdate: decodeAvailableCommandsUpdate,
}

// decodeSessionNotification parses a full session/update notification
// payload into a SessionUpdate, dispatching on the inner "sessionUpdate"
// discriminator exactly as engine/acp/update.go's parseSessionUpdate does,
// but returning the typed union instead of an agentrun.Message.
func decodeSessionNotification(raw json.RawMessage) (*SessionUpdate, error) {
	var outer sessionNotification
	if err := json.Unmarshal(raw, &outer); err != nil {
		return nil, &MalformedError{Detail: "session/update: " + err.Error()}
	}

	var header sessionUpdateHeader
	if len(outer.Update) > 0 {
		if err := json.Unmarshal(outer.Update, &header); err != nil {
			return nil, &MalformedError{Detail: "session/update: inner header: " + err.Error()}
		}
	}

	out := &SessionUpdate{
		SessionID: outer.SessionID,
		Kind:      SessionUpdateKind(header.SessionUpdate),
		Meta:      outer.Meta,
		Raw:       outer.Update,
	}

	if header.SessionUpdate == "" {
		return out, nil
	}

	if dec, ok := sessionUpdateDecoders[out.Kind]; ok {
		if err := dec(outer.Update, out); err != nil {
			return nil, err
		}
	}
	// Unknown kinds fall through with only SessionID/Kind/Raw populated —
	// forward compatible with agent versions newer than this SDK.
	return out, nil
}

func decodeNoop(json.RawMessage, *SessionUpdate) error { return nil }

func decodeContentChunk(update json.RawMessage, out *SessionUpdate) error {
	var d struct {
		Content ContentBlock `json:"content"`
	}
	if err := json.Unmarshal(update, &d); err != nil {
		return &MalformedError{Detail: "content chunk: " + err.Error()}
	}
	out.Content = &d.Content
	return nil
}

func decodeToolCall(update json.RawMessage, out *SessionUpdate) error {
	var d ToolCallUpdate
	if err := json.Unmarshal(update, &d); err != nil {
		return &MalformedError{Detail: "tool call: " + err.Error()}
	}
	out.ToolCall = &d
	return nil
}

func decodePlan(update json.RawMessage, out *SessionUpdate) error {
	var d struct {
		Entries []PlanEntry `json:"entries"`
	}
	if err := json.Unmarshal(update, &d); err != nil {
		return &MalformedError{Detail: "plan: " + err.Error()}
	}
	out.Plan = d.Entries
	return nil
}

func decodeCurrentModeUpdate(update json.RawMessage, out *SessionUpdate) error {
	var d struct {
		CurrentModeID string `json:"currentModeId"`
	}
	if err := json.Unmarshal(update, &d); err != nil {
		return &MalformedError{Detail: "current_mode_update: " + err.Error()}
	}
	out.CurrentModeID = d.CurrentModeID
	return nil
}

func decodeSessionInfoUpdate(update json.RawMessage, out *SessionUpdate) error {
	var d SessionInfo
	if err := json.Unmarshal(update, &d); err != nil {
		return &MalformedError{Detail: "session_info_update: " + err.Error()}
	}
	out.SessionInfo = &d
	return nil
}

func decodeAvailableCommandsUpdate(update json.RawMessage, out *SessionUpdate) error {
	var d struct {
		AvailableCommands []AvailableCommand `json:"availableCommands"`
	}
	if err := json.Unmarshal(update, &d); err != nil {
		return &MalformedError{Detail: "available_commands_update: " + err.Error()}
	}
	out.AvailableCommands = d.AvailableCommands
	return nil
}
