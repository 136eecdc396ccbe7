package acp

import (
	"context"
	"encoding/json"
)

// AgentContext is the per-prompt facade handed to an Agent's Prompt method.
// It is a thin, non-owning borrow of the AgentConnection's Runtime
// plus the session id the prompt belongs to — it outlives nothing and owns
// no resources of its own, so handlers may freely copy it by value.
// Generalizes the bundle of (conn *Conn, sessionID string) that engine/acp's
// makeUpdateHandler and makePermissionHandler each close over ad hoc;
// AgentContext is that same bundle promoted to a first-class type so every
// outbound call during a prompt turn is scoped and named the same way.
type AgentContext struct {
	conn      *AgentConnection
	sessionID string
	ctx       context.Context
}

// SessionID returns the session this context's prompt turn belongs to.
func (a *AgentContext) SessionID() string { return a.sessionID }

// Context returns a context.Context that is cancelled when the client
// sends session/cancel for this session, or when the connection closes,
// whichever happens first. Agent implementations doing long-running work
// (model calls, tool execution) should select on this alongside their own
// work to honor cancellation promptly.
func (a *AgentContext) Context() context.Context { return a.ctx }

// NotifyMessageChunk streams one piece of the agent's reply.
func (a *AgentContext) NotifyMessageChunk(block ContentBlock) error {
	return a.sendUpdate(UpdateAgentMessageChunk, wireContentChunk{SessionUpdate: string(UpdateAgentMessageChunk), Content: block})
}

// NotifyThoughtChunk streams one piece of the agent's private reasoning.
func (a *AgentContext) NotifyThoughtChunk(block ContentBlock) error {
	return a.sendUpdate(UpdateAgentThoughtChunk, wireContentChunk{SessionUpdate: string(UpdateAgentThoughtChunk), Content: block})
}

// NotifyToolCall announces a newly started tool call.
func (a *AgentContext) NotifyToolCall(tc ToolCallUpdate) error {
	return a.sendUpdate(UpdateToolCall, wireToolCall{SessionUpdate: string(UpdateToolCall), ToolCallUpdate: tc})
}

// NotifyToolCallUpdate reports progress or completion of a tool call.
func (a *AgentContext) NotifyToolCallUpdate(tc ToolCallUpdate) error {
	return a.sendUpdate(UpdateToolCallUpdate, wireToolCall{SessionUpdate: string(UpdateToolCallUpdate), ToolCallUpdate: tc})
}

// NotifyPlan publishes the agent's current step-by-step plan.
func (a *AgentContext) NotifyPlan(entries []PlanEntry) error {
	return a.sendUpdate(UpdatePlan, wirePlan{SessionUpdate: string(UpdatePlan), Entries: entries})
}

// NotifyCurrentMode announces a mode change made by the agent itself
// (as opposed to one the client requested via session/set_mode).
func (a *AgentContext) NotifyCurrentMode(modeID string) error {
	return a.sendUpdate(UpdateCurrentModeUpdate, wireCurrentMode{SessionUpdate: string(UpdateCurrentModeUpdate), CurrentModeID: modeID})
}

// NotifySessionInfo updates session metadata (e.g. a generated title).
func (a *AgentContext) NotifySessionInfo(info SessionInfo) error {
	return a.sendUpdate(UpdateSessionInfoUpdate, wireSessionInfo{SessionUpdate: string(UpdateSessionInfoUpdate), SessionInfo: info})
}

// NotifyAvailableCommands announces the slash-commands the agent currently exposes.
func (a *AgentContext) NotifyAvailableCommands(cmds []AvailableCommand) error {
	return a.sendUpdate(UpdateAvailableCommandsUpdate, wireAvailableCommands{SessionUpdate: string(UpdateAvailableCommandsUpdate), AvailableCommands: cmds})
}

// ReadTextFile asks the client to read a file from its workspace, gated on
// the negotiated FS.ReadTextFile capability.
func (a *AgentContext) ReadTextFile(ctx context.Context, path string, line, limit int) (string, error) {
	if err := requireCapability(a.conn.clientCanReadTextFile(), MethodFSReadTextFile); err != nil {
		return "", err
	}
	var result ReadTextFileResult
	raw, err := a.conn.runtime.SendRequest(ctx, MethodFSReadTextFile, ReadTextFileParams{
		SessionID: a.sessionID, Path: path, Line: line, Limit: limit,
	}, nil)
	if err != nil {
		return "", err
	}
	if err := unmarshalResult(raw, &result); err != nil {
		return "", err
	}
	return result.Content, nil
}

// WriteTextFile asks the client to write a file in its workspace, gated on
// the negotiated FS.WriteTextFile capability.
func (a *AgentContext) WriteTextFile(ctx context.Context, path, content string) error {
	if err := requireCapability(a.conn.clientCanWriteTextFile(), MethodFSWriteTextFile); err != nil {
		return err
	}
	_, err := a.conn.runtime.SendRequest(ctx, MethodFSWriteTextFile, WriteTextFileParams{
		SessionID: a.sessionID, Path: path, Content: content,
	}, nil)
	return err
}

// RequestPermission asks the client to approve or deny a tool call,
// blocking until the client responds.
func (a *AgentContext) RequestPermission(ctx context.Context, toolCall ToolCallUpdate, options []PermissionOpt) (RequestPermissionOutcome, error) {
	var result RequestPermissionResult
	raw, err := a.conn.runtime.SendRequest(ctx, MethodRequestPermission, RequestPermissionParams{
		SessionID: a.sessionID, ToolCall: toolCall, Options: options,
	}, nil)
	if err != nil {
		return RequestPermissionOutcome{}, err
	}
	if err := unmarshalResult(raw, &result); err != nil {
		return RequestPermissionOutcome{}, err
	}
	return result.Outcome, nil
}

// CreateTerminal asks the client to spawn a terminal/process in its
// workspace, gated on the negotiated Terminal capability.
func (a *AgentContext) CreateTerminal(ctx context.Context, p CreateTerminalParams) (string, error) {
	if err := requireCapability(a.conn.clientCanTerminal(), MethodTerminalCreate); err != nil {
		return "", err
	}
	p.SessionID = a.sessionID
	var result CreateTerminalResult
	raw, err := a.conn.runtime.SendRequest(ctx, MethodTerminalCreate, p, nil)
	if err != nil {
		return "", err
	}
	if err := unmarshalResult(raw, &result); err != nil {
		return "", err
	}
	return result.TerminalID, nil
}

// TerminalOutput fetches a live or exited terminal's buffered output.
func (a *AgentContext) TerminalOutput(ctx context.Context, terminalID string) (TerminalOutputResult, error) {
	var result TerminalOutputResult
	raw, err := a.conn.runtime.SendRequest(ctx, MethodTerminalOutput, TerminalOutputParams{
		SessionID: a.sessionID, TerminalID: terminalID,
	}, nil)
	if err != nil {
		return result, err
	}
	err = unmarshalResult(raw, &result)
	return result, err
}

// WaitForTerminalExit blocks until the terminal exits.
func (a *AgentContext) WaitForTerminalExit(ctx context.Context, terminalID string) (TerminalExitStatus, error) {
	var result WaitForTerminalExitResult
	raw, err := a.conn.runtime.SendRequest(ctx, MethodTerminalWaitForExit, WaitForTerminalExitParams{
		SessionID: a.sessionID, TerminalID: terminalID,
	}, nil)
	if err != nil {
		return TerminalExitStatus{}, err
	}
	err = unmarshalResult(raw, &result)
	return result.TerminalExitStatus, err
}

// ReleaseTerminal frees client-side resources held for terminalID.
func (a *AgentContext) ReleaseTerminal(ctx context.Context, terminalID string) error {
	_, err := a.conn.runtime.SendRequest(ctx, MethodTerminalRelease, ReleaseTerminalParams{
		SessionID: a.sessionID, TerminalID: terminalID,
	}, nil)
	return err
}

// KillTerminal forcibly terminates a running terminal without releasing it.
func (a *AgentContext) KillTerminal(ctx context.Context, terminalID string) error {
	_, err := a.conn.runtime.SendRequest(ctx, MethodTerminalKill, KillTerminalParams{
		SessionID: a.sessionID, TerminalID: terminalID,
	}, nil)
	return err
}

func (a *AgentContext) sendUpdate(kind SessionUpdateKind, inner any) error {
	payload, err := json.Marshal(inner)
	if err != nil {
		return &ProtocolError{Kind: ProtocolMalformed, Cause: err}
	}
	return a.conn.runtime.SendNotification(MethodSessionUpdate, sessionNotification{
		SessionID: a.sessionID,
		Update:    payload,
	})
}

// wire* types flatten a SessionUpdateKind discriminator alongside the
// kind-specific fields on encode, mirroring the shape session_update.go
// decodes on the way in.
type wireContentChunk struct {
	SessionUpdate string `json:"sessionUpdate"`
	Content       ContentBlock `json:"content"`
}

type wireToolCall struct {
	SessionUpdate string `json:"sessionUpdate"`
	ToolCallUpdate
}

type wirePlan struct {
	SessionUpdate string      `json:"sessionUpdate"`
	Entries       []PlanEntry `json:"entries"`
}

type wireCurrentMode struct {
	SessionUpdate string `json:"sessionUpdate"`
	CurrentModeID string `json:"currentModeId"`
}

type wireSessionInfo struct {
	SessionUpdate string `json:"sessionUpdate"`
	SessionInfo
}

type wireAvailableCommands struct {
	SessionUpdate     string             `json:"sessionUpdate"`
	AvailableCommands []AvailableCommand `json:"availableCommands"`
}
