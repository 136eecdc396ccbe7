package acp

import (
	"context"
	"sync"

	"github.com/dmora/acp-go/internal/stopreason"
)

// Client is the interface a user implements to host the client (editor)
// side of the connection: answering the agent's mid-turn callbacks for
// permission, file access, and terminals, and receiving session/update
// notifications as they stream in. Generalizes the PermissionHandler
// callback style of engine/acp/options.go to the full callback surface an
// agent may invoke, rather than just permission.
type Client interface {
	RequestPermission(ctx context.Context, params RequestPermissionParams) (RequestPermissionOutcome, error)
	ReadTextFile(ctx context.Context, params ReadTextFileParams) (ReadTextFileResult, error)
	WriteTextFile(ctx context.Context, params WriteTextFileParams) error
	CreateTerminal(ctx context.Context, params CreateTerminalParams) (CreateTerminalResult, error)
	TerminalOutput(ctx context.Context, params TerminalOutputParams) (TerminalOutputResult, error)
	WaitForTerminalExit(ctx context.Context, params WaitForTerminalExitParams) (TerminalExitStatus, error)
	ReleaseTerminal(ctx context.Context, params ReleaseTerminalParams) error
	KillTerminal(ctx context.Context, params KillTerminalParams) error

	// SessionUpdate is called for every session/update notification. It
	// has no return value — notification handler failures are reported
	// on the Runtime's error stream, never back to the peer.
	SessionUpdate(update *SessionUpdate)
}

// ClientConnection hosts the Client side: it drives an Agent peer through
// the handshake/session/prompt call sequence and answers the agent's
// callbacks. Generalizes engine/acp/process.go's Send/handshake sequence,
// which hard-codes a single subprocess-backed agent session, into a
// reusable connection type that can sit atop any Transport and talk to
// any compliant agent, including ones also built with this SDK.
type ClientConnection struct {
	*baseConnection

	client Client

	capsMu    sync.RWMutex
	agentCaps AgentCapabilities
}

// NewClientConnection wires client to transport and registers every ACP
// method ClientConnection answers on the agent's behalf. Call Start to
// begin processing, then Initialize to perform the handshake.
func NewClientConnection(transport Transport, client Client, opts ...RuntimeOption) *ClientConnection {
	c := &ClientConnection{
		baseConnection: newBaseConnection(transport, opts...),
		client:         client,
	}
	c.registerHandlers()
	return c
}

// Start moves disconnected → connecting and begins dispatch. Call
// Initialize afterward to complete the handshake and reach connected.
func (c *ClientConnection) Start() error {
	c.setState(StateConnecting)
	return c.runtime.Start()
}

func (c *ClientConnection) registerHandlers() {
	r := c.runtime

	r.SetRequestHandler(MethodRequestPermission, func(ctx context.Context, raw rawParams) (any, error) {
		var p RequestPermissionParams
		if err := unmarshalResult(raw, &p); err != nil {
			return nil, err
		}
		outcome, err := c.client.RequestPermission(ctx, p)
		if err != nil {
			return nil, err
		}
		return RequestPermissionResult{Outcome: outcome}, nil
	})
	r.SetRequestHandler(MethodFSReadTextFile, typedHandler(c.client.ReadTextFile))
	r.SetRequestHandler(MethodTerminalCreate, typedHandler(c.client.CreateTerminal))
	r.SetRequestHandler(MethodTerminalOutput, typedHandler(c.client.TerminalOutput))

	r.SetRequestHandler(MethodFSWriteTextFile, func(ctx context.Context, raw rawParams) (any, error) {
		var p WriteTextFileParams
		if err := unmarshalResult(raw, &p); err != nil {
			return nil, err
		}
		if err := c.client.WriteTextFile(ctx, p); err != nil {
			return nil, err
		}
		return WriteTextFileResult{}, nil
	})
	r.SetRequestHandler(MethodTerminalWaitForExit, func(ctx context.Context, raw rawParams) (any, error) {
		var p WaitForTerminalExitParams
		if err := unmarshalResult(raw, &p); err != nil {
			return nil, err
		}
		status, err := c.client.WaitForTerminalExit(ctx, p)
		if err != nil {
			return nil, err
		}
		return WaitForTerminalExitResult{TerminalExitStatus: status}, nil
	})
	r.SetRequestHandler(MethodTerminalRelease, func(ctx context.Context, raw rawParams) (any, error) {
		var p ReleaseTerminalParams
		if err := unmarshalResult(raw, &p); err != nil {
			return nil, err
		}
		if err := c.client.ReleaseTerminal(ctx, p); err != nil {
			return nil, err
		}
		return ReleaseTerminalResult{}, nil
	})
	r.SetRequestHandler(MethodTerminalKill, func(ctx context.Context, raw rawParams) (any, error) {
		var p KillTerminalParams
		if err := unmarshalResult(raw, &p); err != nil {
			return nil, err
		}
		if err := c.client.KillTerminal(ctx, p); err != nil {
			return nil, err
		}
		return KillTerminalResult{}, nil
	})

	r.OnNotification(MethodSessionUpdate, func(raw rawParams) {
		update, err := decodeSessionNotification(raw)
		if err != nil {
			// Report the malformed payload on Runtime.Errors() instead of
			// handing a partial update to the Client.
			c.runtime.errs.push(&ProtocolError{Kind: ProtocolMalformed, Cause: err})
			return
		}
		c.client.SessionUpdate(update)
	})
}

// Authenticate performs the named auth method against the agent, ahead of
// initialize or in response to an AuthRequired error mid-session.
func (c *ClientConnection) Authenticate(ctx context.Context, methodID string) error {
	_, err := c.runtime.SendRequest(ctx, MethodAuthenticate, AuthenticateParams{MethodID: methodID}, nil)
	return err
}

// Initialize performs the capability handshake. On success the connection
// moves to connected and the agent's declared capabilities are recorded
// for later gating (loadSession, etc.).
func (c *ClientConnection) Initialize(ctx context.Context, params InitializeParams) (InitializeResult, error) {
	params.ProtocolVersion = protocolVersion
	var result InitializeResult
	raw, err := c.runtime.SendRequest(ctx, MethodInitialize, params, nil)
	if err != nil {
		c.setState(StateDisconnected)
		return result, err
	}
	if err := unmarshalResult(raw, &result); err != nil {
		c.setState(StateDisconnected)
		return result, err
	}
	if result.AgentCapabilities != nil {
		c.capsMu.Lock()
		c.agentCaps = *result.AgentCapabilities
		c.capsMu.Unlock()
	}
	c.setState(StateConnected)
	return result, nil
}

// NewSession creates a new agent session.
func (c *ClientConnection) NewSession(ctx context.Context, params NewSessionParams) (NewSessionResult, error) {
	var result NewSessionResult
	raw, err := c.runtime.SendRequest(ctx, MethodSessionNew, params, nil)
	if err != nil {
		return result, err
	}
	err = unmarshalResult(raw, &result)
	return result, err
}

// LoadSession rehydrates a previously persisted session, gated on the
// agent's declared loadSession capability.
func (c *ClientConnection) LoadSession(ctx context.Context, params LoadSessionParams) (LoadSessionResult, error) {
	var result LoadSessionResult
	if err := requireCapability(c.agentSupportsLoadSession(), MethodSessionLoad); err != nil {
		return result, err
	}
	raw, err := c.runtime.SendRequest(ctx, MethodSessionLoad, params, nil)
	if err != nil {
		return result, err
	}
	err = unmarshalResult(raw, &result)
	return result, err
}

// ListSessions returns a lazily-paged sequence over the agent's known
// sessions, pageSize items per underlying session/list call (0 lets the
// agent choose its own default), gated on the agent's declared
// listSessions capability.
func (c *ClientConnection) ListSessions(ctx context.Context, pageSize int) *PaginatedSequence[SessionSummary] {
	return NewPaginatedSequence(func(ctx context.Context, cursor *string) ([]SessionSummary, *string, error) {
		if err := requireCapability(c.agentSupportsListSessions(), MethodSessionList); err != nil {
			return nil, nil, err
		}
		var result ListSessionsResult
		raw, err := c.runtime.SendRequest(ctx, MethodSessionList, ListSessionsParams{
			Cursor: cursor, PageSize: pageSize,
		}, nil)
		if err != nil {
			return nil, nil, err
		}
		if err := unmarshalResult(raw, &result); err != nil {
			return nil, nil, err
		}
		return result.Sessions, result.NextCursor, nil
	})
}

// ForkSession branches a new session from an existing one's history, gated
// on the agent's declared forkSession capability.
func (c *ClientConnection) ForkSession(ctx context.Context, sessionID string) (ForkSessionResult, error) {
	var result ForkSessionResult
	if err := requireCapability(c.agentSupportsForkSession(), MethodSessionFork); err != nil {
		return result, err
	}
	raw, err := c.runtime.SendRequest(ctx, MethodSessionFork, ForkSessionParams{SessionID: sessionID}, nil)
	if err != nil {
		return result, err
	}
	err = unmarshalResult(raw, &result)
	return result, err
}

// ResumeSession reattaches to a session the agent still holds live, gated
// on the agent's declared resumeSession capability.
func (c *ClientConnection) ResumeSession(ctx context.Context, sessionID string) (ResumeSessionResult, error) {
	var result ResumeSessionResult
	if err := requireCapability(c.agentSupportsResumeSession(), MethodSessionResume); err != nil {
		return result, err
	}
	raw, err := c.runtime.SendRequest(ctx, MethodSessionResume, ResumeSessionParams{SessionID: sessionID}, nil)
	if err != nil {
		return result, err
	}
	err = unmarshalResult(raw, &result)
	return result, err
}

// Prompt sends a user message and blocks until the turn completes. If ctx
// is cancelled first, a session/cancel notification is sent and the call
// applies the Runtime's graceful cancellation window before giving up.
func (c *ClientConnection) Prompt(ctx context.Context, params PromptParams) (PromptResult, error) {
	var result PromptResult
	raw, err := c.runtime.SendRequest(ctx, MethodSessionPrompt, params, &CancelNotification{
		Method: MethodSessionCancel,
		Params: sessionCancelParams{SessionID: params.SessionID},
	})
	if err != nil {
		return result, err
	}
	err = unmarshalResult(raw, &result)
	result.StopReason = stopreason.Sanitize(result.StopReason)
	return result, err
}

// Cancel sends session/cancel directly, independent of any in-flight
// Prompt call's context — useful for a "stop" button in a UI that isn't
// itself holding the ctx passed to Prompt.
func (c *ClientConnection) Cancel(sessionID string) error {
	return c.runtime.SendNotification(MethodSessionCancel, sessionCancelParams{SessionID: sessionID})
}

// SetMode changes a session's current operating mode.
func (c *ClientConnection) SetMode(ctx context.Context, sessionID, modeID string) error {
	_, err := c.runtime.SendRequest(ctx, MethodSessionSetMode, SetModeParams{SessionID: sessionID, ModeID: modeID}, nil)
	return err
}

// SetModel changes a session's current model, gated on the agent's
// declared setSessionModel capability.
func (c *ClientConnection) SetModel(ctx context.Context, sessionID, modelID string) error {
	if err := requireCapability(c.agentSupportsSetModel(), MethodSessionSetModel); err != nil {
		return err
	}
	_, err := c.runtime.SendRequest(ctx, MethodSessionSetModel, SetModelParams{SessionID: sessionID, ModelID: modelID}, nil)
	return err
}

// SetConfigOption changes a session config option, gated on the agent's
// declared setSessionConfigOption capability.
func (c *ClientConnection) SetConfigOption(ctx context.Context, sessionID, configID, value string) error {
	if err := requireCapability(c.agentSupportsSetConfigOption(), MethodSessionSetConfig); err != nil {
		return err
	}
	_, err := c.runtime.SendRequest(ctx, MethodSessionSetConfig, SetConfigOptionParams{
		SessionID: sessionID, ConfigID: configID, Value: value,
	}, nil)
	return err
}

func (c *ClientConnection) agentSupportsLoadSession() bool {
	c.capsMu.RLock()
	defer c.capsMu.RUnlock()
	return c.agentCaps.LoadSession
}

func (c *ClientConnection) agentSupportsListSessions() bool {
	c.capsMu.RLock()
	defer c.capsMu.RUnlock()
	return c.agentCaps.ListSessions
}

func (c *ClientConnection) agentSupportsForkSession() bool {
	c.capsMu.RLock()
	defer c.capsMu.RUnlock()
	return c.agentCaps.ForkSession
}

func (c *ClientConnection) agentSupportsResumeSession() bool {
	c.capsMu.RLock()
	defer c.capsMu.RUnlock()
	return c.agentCaps.ResumeSession
}

func (c *ClientConnection) agentSupportsSetModel() bool {
	c.capsMu.RLock()
	defer c.capsMu.RUnlock()
	return c.agentCaps.SetSessionModel
}

func (c *ClientConnection) agentSupportsSetConfigOption() bool {
	c.capsMu.RLock()
	defer c.capsMu.RUnlock()
	return c.agentCaps.SetConfigOption
}
