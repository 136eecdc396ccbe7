package acp

import "encoding/json"

// JSON-RPC 2.0 method constants for the Agent Client Protocol. Generalizes
// engine/acp/protocol.go's method table with the full ACP method surface:
// pagination (session/list), session forking/resuming, the fs/* and
// terminal/* client-side methods, and session/cancel as a notification.
const (
	MethodInitialize = "initialize"

	MethodSessionNew    = "session/new"
	MethodSessionLoad   = "session/load"
	MethodSessionList   = "session/list"
	MethodSessionFork   = "session/fork"
	MethodSessionResume = "session/resume"

	MethodSessionPrompt    = "session/prompt"
	MethodSessionUpdate    = "session/update"
	MethodSessionCancel    = "session/cancel" // notification, not a request
	MethodSessionSetMode   = "session/set_mode"
	MethodSessionSetModel  = "session/set_model"
	MethodSessionSetConfig = "session/set_config_option"

	MethodAuthenticate = "authenticate"

	MethodRequestPermission = "client/request_permission"

	MethodFSReadTextFile  = "fs/read_text_file"
	MethodFSWriteTextFile = "fs/write_text_file"

	MethodTerminalCreate      = "terminal/create"
	MethodTerminalOutput      = "terminal/output"
	MethodTerminalWaitForExit = "terminal/wait_for_exit"
	MethodTerminalRelease     = "terminal/release"
	MethodTerminalKill        = "terminal/kill"
)

// ACP protocol identity constants.
const (
	protocolVersion = 1 // ACP spec integer version, not semver
)

// --- Initialize ---

// InitializeParams begins the capability handshake.
type InitializeParams struct {
	ProtocolVersion    int                 `json:"protocolVersion"`
	ClientCapabilities *ClientCapabilities `json:"clientCapabilities,omitempty"`
	ClientInfo         *Implementation     `json:"clientInfo,omitempty"`
	Meta               RawMeta             `json:"_meta,omitempty"`
}

// InitializeResult is the agent's response to initialize.
type InitializeResult struct {
	ProtocolVersion   int                `json:"protocolVersion"`
	AgentCapabilities *AgentCapabilities `json:"agentCapabilities,omitempty"`
	AgentInfo         *Implementation    `json:"agentInfo,omitempty"`
	AuthMethods       []AuthMethod       `json:"authMethods,omitempty"`
	Meta              RawMeta            `json:"_meta,omitempty"`
}

// Implementation identifies a client or agent.
type Implementation struct {
	Name    string `json:"name"`
	Title   string `json:"title,omitempty"`
	Version string `json:"version"`
}

// ClientCapabilities declares which client-side operations the client
// supports; an agent MUST NOT call a method the client hasn't declared.
type ClientCapabilities struct {
	FS       *FileSystemCapability `json:"fs,omitempty"`
	Terminal bool                  `json:"terminal,omitempty"`
}

// FileSystemCapability declares which fs/* operations the client supports.
type FileSystemCapability struct {
	ReadTextFile  bool `json:"readTextFile,omitempty"`
	WriteTextFile bool `json:"writeTextFile,omitempty"`
}

// AgentCapabilities declares what the agent supports. A client MUST NOT
// call a method the agent hasn't declared support for here.
type AgentCapabilities struct {
	LoadSession     bool              `json:"loadSession,omitempty"`
	ListSessions    bool              `json:"listSessions,omitempty"`
	ForkSession     bool              `json:"forkSession,omitempty"`
	ResumeSession   bool              `json:"resumeSession,omitempty"`
	SetSessionModel bool              `json:"setSessionModel,omitempty"`
	SetConfigOption bool              `json:"setSessionConfigOption,omitempty"`
	Prompt          *PromptCapability `json:"promptCapabilities,omitempty"`
}

// PromptCapability declares which content block kinds a session/prompt may carry.
type PromptCapability struct {
	Image            bool `json:"image,omitempty"`
	Audio            bool `json:"audio,omitempty"`
	EmbeddedContext  bool `json:"embeddedContext,omitempty"`
}

// AuthMethod describes an authentication method offered by the agent.
type AuthMethod struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AuthenticateParams selects one of the agent's AuthMethods (as advertised
// in InitializeResult.AuthMethods) to perform authentication with.
type AuthenticateParams struct {
	MethodID string  `json:"methodId"`
	Meta     RawMeta `json:"_meta,omitempty"`
}

// AuthenticateResult is intentionally empty; success is the absence of an error.
type AuthenticateResult struct{}

// --- Session lifecycle ---

// McpServer describes an MCP server to attach to a session (stdio-only).
type McpServer struct {
	Name    string   `json:"name"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// NewSessionParams creates a new agent session.
type NewSessionParams struct {
	CWD        string      `json:"cwd"`
	MCPServers []McpServer `json:"mcpServers"`
	Meta       RawMeta     `json:"_meta,omitempty"`
}

// NewSessionResult is the response to session/new.
type NewSessionResult struct {
	SessionID     string                `json:"sessionId"`
	Modes         *SessionModeState     `json:"modes,omitempty"`
	Models        *SessionModelState    `json:"models,omitempty"`
	ConfigOptions []SessionConfigOption `json:"configOptions,omitempty"`
	Meta          RawMeta               `json:"_meta,omitempty"`
}

// LoadSessionParams rehydrates a session whose history was persisted by the
// agent after the original connection ended.
type LoadSessionParams struct {
	SessionID  string      `json:"sessionId"`
	CWD        string      `json:"cwd"`
	MCPServers []McpServer `json:"mcpServers"`
	Meta       RawMeta     `json:"_meta,omitempty"`
}

// LoadSessionResult is the response to session/load.
type LoadSessionResult struct {
	Modes         *SessionModeState     `json:"modes,omitempty"`
	Models        *SessionModelState    `json:"models,omitempty"`
	ConfigOptions []SessionConfigOption `json:"configOptions,omitempty"`
	Meta          RawMeta               `json:"_meta,omitempty"`
}

// ListSessionsParams requests one page of the agent's known sessions,
// newest first. Cursor is nil on the first call.
type ListSessionsParams struct {
	Cursor   *string `json:"cursor,omitempty"`
	PageSize int     `json:"pageSize,omitempty"`
	Meta     RawMeta `json:"_meta,omitempty"`
}

// ListSessionsResult is one page of sessions. NextCursor is nil once the
// caller has seen every session.
type ListSessionsResult struct {
	Sessions   []SessionSummary `json:"sessions"`
	NextCursor *string          `json:"nextCursor,omitempty"`
	Meta       RawMeta          `json:"_meta,omitempty"`
}

// SessionSummary is one entry in a session/list page.
type SessionSummary struct {
	SessionID string `json:"sessionId"`
	Title     string `json:"title,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// ForkSessionParams branches a new, independent session from an existing
// one's current history, without disturbing the original.
type ForkSessionParams struct {
	SessionID string  `json:"sessionId"`
	Meta      RawMeta `json:"_meta,omitempty"`
}

// ForkSessionResult carries the newly minted session id.
type ForkSessionResult struct {
	SessionID     string                `json:"sessionId"`
	Modes         *SessionModeState     `json:"modes,omitempty"`
	ConfigOptions []SessionConfigOption `json:"configOptions,omitempty"`
	Meta          RawMeta               `json:"_meta,omitempty"`
}

// ResumeSessionParams reattaches to a session the agent still holds live
// in memory (e.g. across a client reconnect), as distinct from
// session/load's rehydration of a persisted, previously torn-down session.
type ResumeSessionParams struct {
	SessionID string  `json:"sessionId"`
	Meta      RawMeta `json:"_meta,omitempty"`
}

// ResumeSessionResult is the response to session/resume.
type ResumeSessionResult struct {
	Modes         *SessionModeState     `json:"modes,omitempty"`
	ConfigOptions []SessionConfigOption `json:"configOptions,omitempty"`
	Meta          RawMeta               `json:"_meta,omitempty"`
}

// SessionModeState describes the agent's current and available operating modes.
type SessionModeState struct {
	CurrentModeID  string        `json:"currentModeId"`
	AvailableModes []SessionMode `json:"availableModes"`
}

// SessionMode describes a single operating mode.
type SessionMode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SessionModelState describes the agent's current and available models.
type SessionModelState struct {
	CurrentModelID  string      `json:"currentModelId"`
	AvailableModels []ModelInfo `json:"availableModels"`
}

// ModelInfo describes a model available to the agent.
type ModelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SessionConfigOption describes a configurable session option.
type SessionConfigOption struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Category     string               `json:"category,omitempty"`
	Type         string               `json:"type,omitempty"`
	CurrentValue string               `json:"currentValue,omitempty"`
	Options      []ConfigOptionChoice `json:"options,omitempty"`
}

// ConfigOptionChoice is one selectable value for a config option.
type ConfigOptionChoice struct {
	Value string `json:"value"`
	Name  string `json:"name"`
}

// --- Prompt ---

// ContentBlock is a single content element of a prompt or update. Only the
// fields relevant to Type are populated; unused fields are omitted on encode.
type ContentBlock struct {
	Type     string  `json:"type"`
	Text     string  `json:"text,omitempty"`
	Data     string  `json:"data,omitempty"` // base64, for image/audio
	MimeType string  `json:"mimeType,omitempty"`
	URI      string  `json:"uri,omitempty"` // for embedded-context resource references
}

// Stop reasons for a completed prompt turn.
const (
	StopReasonEndTurn         = "end_turn"
	StopReasonMaxTokens       = "max_tokens"
	StopReasonMaxTurnRequests = "max_turn_requests"
	StopReasonRefusal         = "refusal"
	StopReasonCancelled       = "cancelled"
)

// PromptParams sends a user message to the session.
type PromptParams struct {
	SessionID string         `json:"sessionId"`
	Prompt    []ContentBlock `json:"prompt"`
	Meta      RawMeta        `json:"_meta,omitempty"`
}

// PromptResult is the response when a prompt turn completes.
type PromptResult struct {
	StopReason string   `json:"stopReason,omitempty"`
	Usage      *ACPUsage `json:"usage,omitempty"`
	Meta       RawMeta   `json:"_meta,omitempty"`
}

// ACPUsage contains token usage from a prompt turn.
type ACPUsage struct {
	InputTokens       int `json:"inputTokens"`
	OutputTokens      int `json:"outputTokens"`
	TotalTokens       int `json:"totalTokens"`
	ThoughtTokens     int `json:"thoughtTokens,omitempty"`
	CachedReadTokens  int `json:"cachedReadTokens,omitempty"`
	CachedWriteTokens int `json:"cachedWriteTokens,omitempty"`
}

// sessionCancelParams is the notification body for session/cancel. The
// ACP schema does not pin this down precisely; by convention
// — and by what every agent in the wild actually expects — it carries only
// the session being cancelled, not a request id. The Runtime layer's
// generic per-call CancelNotification carries this value for whichever
// pending session/prompt call is being abandoned.
type sessionCancelParams struct {
	SessionID string `json:"sessionId"`
}

// --- Updates (session/update notifications from agent to client) ---

// sessionNotification is the outer envelope for session/update notifications.
type sessionNotification struct {
	SessionID string          `json:"sessionId"`
	Update    json.RawMessage `json:"update"`
	Meta      RawMeta         `json:"_meta,omitempty"`
}

// sessionUpdateHeader extracts the discriminator from the inner update object.
type sessionUpdateHeader struct {
	SessionUpdate string `json:"sessionUpdate"`
}

// --- Permission ---

// RequestPermissionParams is the wire format for a client/request_permission
// call made by the agent to the client mid-turn.
type RequestPermissionParams struct {
	SessionID string           `json:"sessionId"`
	ToolCall  ToolCallUpdate   `json:"toolCall"`
	Options   []PermissionOpt  `json:"options"`
	Meta      RawMeta          `json:"_meta,omitempty"`
}

// ToolCallUpdate describes a tool call in permission and session/update contexts.
type ToolCallUpdate struct {
	ToolCallID string          `json:"toolCallId"`
	Title      string          `json:"title,omitempty"`
	Kind       string          `json:"kind,omitempty"`
	Status     string          `json:"status,omitempty"`
	Content    json.RawMessage `json:"content,omitempty"`
	RawInput   json.RawMessage `json:"rawInput,omitempty"`
	RawOutput  json.RawMessage `json:"rawOutput,omitempty"`
}

// PermissionOpt is a single option in a permission request.
type PermissionOpt struct {
	OptionID string `json:"optionId"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
}

// RequestPermissionResult is the client's response to a permission request.
type RequestPermissionResult struct {
	Outcome RequestPermissionOutcome `json:"outcome"`
}

// RequestPermissionOutcome is the selected outcome.
type RequestPermissionOutcome struct {
	Outcome  string `json:"outcome"`
	OptionID string `json:"optionId,omitempty"`
}

// --- Mode / config mutation ---

// SetModeParams sets the session's current operating mode.
type SetModeParams struct {
	SessionID string `json:"sessionId"`
	ModeID    string `json:"modeId"`
}

// SetConfigOptionParams sets a session config option.
type SetConfigOptionParams struct {
	SessionID string `json:"sessionId"`
	ConfigID  string `json:"configId"`
	Value     string `json:"value"`
}

// SetModeResult and SetConfigOptionResult are intentionally empty; success
// is the absence of an error.
type SetModeResult struct{}
type SetConfigOptionResult struct{}

// SetModelParams sets the session's current model, gated on the agent's
// declared setSessionModel capability.
type SetModelParams struct {
	SessionID string `json:"sessionId"`
	ModelID   string `json:"modelId"`
}

// SetModelResult is intentionally empty; success is the absence of an error.
type SetModelResult struct{}

// --- File system (client-hosted, agent-called) ---

// ReadTextFileParams requests the contents of a text file from the client's
// workspace. Line/Limit page through large files; both zero means "whole file".
type ReadTextFileParams struct {
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
	Line      int    `json:"line,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// ReadTextFileResult carries the requested file content.
type ReadTextFileResult struct {
	Content string `json:"content"`
}

// WriteTextFileParams overwrites (or creates) a text file in the client's workspace.
type WriteTextFileParams struct {
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
	Content   string `json:"content"`
}

// WriteTextFileResult is intentionally empty; success is the absence of an error.
type WriteTextFileResult struct{}

// --- Terminal (client-hosted, agent-called) ---

// CreateTerminalParams starts a new terminal/process in the client's workspace.
type CreateTerminalParams struct {
	SessionID       string   `json:"sessionId"`
	Command         string   `json:"command"`
	Args            []string `json:"args,omitempty"`
	CWD             string   `json:"cwd,omitempty"`
	Env             []EnvVar `json:"env,omitempty"`
	OutputByteLimit int      `json:"outputByteLimit,omitempty"`
}

// EnvVar is one environment variable for a spawned terminal.
type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CreateTerminalResult carries the new terminal's id.
type CreateTerminalResult struct {
	TerminalID string `json:"terminalId"`
}

// TerminalOutputParams requests the buffered output of a live or exited terminal.
type TerminalOutputParams struct {
	SessionID  string `json:"sessionId"`
	TerminalID string `json:"terminalId"`
}

// TerminalOutputResult is the terminal's buffered output so far.
type TerminalOutputResult struct {
	Output     string              `json:"output"`
	Truncated  bool                `json:"truncated,omitempty"`
	ExitStatus *TerminalExitStatus `json:"exitStatus,omitempty"`
}

// WaitForTerminalExitParams blocks the caller until the terminal exits.
type WaitForTerminalExitParams struct {
	SessionID  string `json:"sessionId"`
	TerminalID string `json:"terminalId"`
}

// WaitForTerminalExitResult is the terminal's final exit status.
type WaitForTerminalExitResult struct {
	TerminalExitStatus
}

// TerminalExitStatus reports how a terminal ended. Exactly one of ExitCode
// or Signal is set, mirroring the mutually exclusive wait(2) outcomes.
type TerminalExitStatus struct {
	ExitCode *int    `json:"exitCode,omitempty"`
	Signal   *string `json:"signal,omitempty"`
}

// ReleaseTerminalParams frees client-side resources for a terminal the
// caller no longer needs output or exit status from.
type ReleaseTerminalParams struct {
	SessionID  string `json:"sessionId"`
	TerminalID string `json:"terminalId"`
}

// ReleaseTerminalResult is intentionally empty.
type ReleaseTerminalResult struct{}

// KillTerminalParams forcibly terminates a running terminal without releasing it.
type KillTerminalParams struct {
	SessionID  string `json:"sessionId"`
	TerminalID string `json:"terminalId"`
}

// KillTerminalResult is intentionally empty.
type KillTerminalResult struct{}
