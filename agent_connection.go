package acp

import (
	"context"
	"sync"
)

// Agent is the interface a user implements to host the agent side of the
// protocol. AgentConnection dispatches each inbound client request to the
// matching method. A method an implementation doesn't support should
// return NewNotImplementedError(method) (or a more specific RoleError);
// AgentConnection never calls a method preemptively on its behalf.
type Agent interface {
	Initialize(ctx context.Context, params InitializeParams) (InitializeResult, error)
	Authenticate(ctx context.Context, params AuthenticateParams) error
	NewSession(ctx context.Context, params NewSessionParams) (NewSessionResult, error)
	LoadSession(ctx context.Context, params LoadSessionParams) (LoadSessionResult, error)
	ListSessions(ctx context.Context, params ListSessionsParams) (ListSessionsResult, error)
	ForkSession(ctx context.Context, params ForkSessionParams) (ForkSessionResult, error)
	ResumeSession(ctx context.Context, params ResumeSessionParams) (ResumeSessionResult, error)
	Prompt(actx *AgentContext, params PromptParams) (PromptResult, error)
	SetMode(ctx context.Context, params SetModeParams) error
	SetModel(ctx context.Context, params SetModelParams) error
	SetConfigOption(ctx context.Context, params SetConfigOptionParams) error
}

// AgentConnection hosts the Agent side of a connection: it answers
// requests a ClientConnection peer sends, and in turn calls back into the
// client for permission, file system, and terminal operations during a
// prompt turn. engine/acp is exclusively a client driving a subprocess
// agent, so the dispatch plumbing here is new code grounded in the
// *shape* of engine/acp/conn.go's OnMethod/Call split, mirrored onto the
// opposite role.
type AgentConnection struct {
	*baseConnection

	agent Agent

	capsMu       sync.RWMutex
	clientCaps   ClientCapabilities

	cancelMu sync.Mutex
	cancels  map[string]context.CancelFunc // sessionId -> cancel for its in-flight prompt
}

// NewAgentConnection wires agent to transport and registers every ACP
// method AgentConnection answers. Call Start to begin processing.
func NewAgentConnection(transport Transport, agent Agent, opts ...RuntimeOption) *AgentConnection {
	c := &AgentConnection{
		baseConnection: newBaseConnection(transport, opts...),
		agent:          agent,
		cancels:        make(map[string]context.CancelFunc),
	}
	c.registerHandlers()
	return c
}

// Start moves disconnected → connecting and begins dispatch. The
// connection moves to connected once initialize completes successfully.
func (c *AgentConnection) Start() error {
	c.setState(StateConnecting)
	return c.runtime.Start()
}

func (c *AgentConnection) registerHandlers() {
	r := c.runtime

	r.SetRequestHandler(MethodInitialize, c.handleInitialize)
	r.SetRequestHandler(MethodAuthenticate, func(ctx context.Context, raw rawParams) (any, error) {
		var p AuthenticateParams
		if err := unmarshalResult(raw, &p); err != nil {
			return nil, err
		}
		if err := c.agent.Authenticate(ctx, p); err != nil {
			return nil, err
		}
		return AuthenticateResult{}, nil
	})
	r.SetRequestHandler(MethodSessionNew, typedHandler(c.agent.NewSession))
	r.SetRequestHandler(MethodSessionLoad, typedHandler(c.agent.LoadSession))
	r.SetRequestHandler(MethodSessionList, typedHandler(c.agent.ListSessions))
	r.SetRequestHandler(MethodSessionFork, typedHandler(c.agent.ForkSession))
	r.SetRequestHandler(MethodSessionResume, typedHandler(c.agent.ResumeSession))
	r.SetRequestHandler(MethodSessionPrompt, c.handlePrompt)
	r.SetRequestHandler(MethodSessionSetMode, func(ctx context.Context, raw rawParams) (any, error) {
		var p SetModeParams
		if err := unmarshalResult(raw, &p); err != nil {
			return nil, err
		}
		if err := c.agent.SetMode(ctx, p); err != nil {
			return nil, err
		}
		return SetModeResult{}, nil
	})
	r.SetRequestHandler(MethodSessionSetModel, func(ctx context.Context, raw rawParams) (any, error) {
		var p SetModelParams
		if err := unmarshalResult(raw, &p); err != nil {
			return nil, err
		}
		if err := c.agent.SetModel(ctx, p); err != nil {
			return nil, err
		}
		return SetModelResult{}, nil
	})
	r.SetRequestHandler(MethodSessionSetConfig, func(ctx context.Context, raw rawParams) (any, error) {
		var p SetConfigOptionParams
		if err := unmarshalResult(raw, &p); err != nil {
			return nil, err
		}
		if err := c.agent.SetConfigOption(ctx, p); err != nil {
			return nil, err
		}
		return SetConfigOptionResult{}, nil
	})

	r.OnNotification(MethodSessionCancel, c.handleCancel)
}

func (c *AgentConnection) handleInitialize(ctx context.Context, raw rawParams) (any, error) {
	var p InitializeParams
	if err := unmarshalResult(raw, &p); err != nil {
		return nil, err
	}
	if p.ClientCapabilities != nil {
		c.capsMu.Lock()
		c.clientCaps = *p.ClientCapabilities
		c.capsMu.Unlock()
	}
	result, err := c.agent.Initialize(ctx, p)
	if err != nil {
		c.setState(StateDisconnected)
		return nil, err
	}
	c.setState(StateConnected)
	return result, nil
}

func (c *AgentConnection) handlePrompt(ctx context.Context, raw rawParams) (any, error) {
	var p PromptParams
	if err := unmarshalResult(raw, &p); err != nil {
		return nil, err
	}

	promptCtx, cancel := context.WithCancel(ctx)
	c.cancelMu.Lock()
	c.cancels[p.SessionID] = cancel
	c.cancelMu.Unlock()
	defer func() {
		cancel()
		c.cancelMu.Lock()
		delete(c.cancels, p.SessionID)
		c.cancelMu.Unlock()
	}()

	actx := &AgentContext{conn: c, sessionID: p.SessionID, ctx: promptCtx}
	return c.agent.Prompt(actx, p)
}

func (c *AgentConnection) handleCancel(raw rawParams) {
	var p sessionCancelParams
	if unmarshalResult(raw, &p) != nil {
		return
	}
	c.cancelMu.Lock()
	cancel, ok := c.cancels[p.SessionID]
	c.cancelMu.Unlock()
	if ok {
		cancel()
	}
}

func (c *AgentConnection) clientCanReadTextFile() bool {
	c.capsMu.RLock()
	defer c.capsMu.RUnlock()
	return c.clientCaps.FS != nil && c.clientCaps.FS.ReadTextFile
}

func (c *AgentConnection) clientCanWriteTextFile() bool {
	c.capsMu.RLock()
	defer c.capsMu.RUnlock()
	return c.clientCaps.FS != nil && c.clientCaps.FS.WriteTextFile
}

func (c *AgentConnection) clientCanTerminal() bool {
	c.capsMu.RLock()
	defer c.capsMu.RUnlock()
	return c.clientCaps.Terminal
}

// rawParams is the json.RawMessage alias RequestHandler actually receives;
// named locally for readability at call sites in this file.
type rawParams = RawMeta

// typedHandler adapts a (ctx, P) (R, error) Agent method into the untyped
// RequestHandler signature the Runtime dispatches to.
func typedHandler[P any, R any](fn func(context.Context, P) (R, error)) RequestHandler {
	return func(ctx context.Context, raw rawParams) (any, error) {
		var p P
		if err := unmarshalResult(raw, &p); err != nil {
			return nil, err
		}
		return fn(ctx, p)
	}
}
