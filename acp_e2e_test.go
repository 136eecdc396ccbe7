package acp_test

import (
	"context"
	"sync"
	"testing"
	"time"

	acp "github.com/dmora/acp-go"
	"github.com/dmora/acp-go/acptest"
)

// echoAgent is a minimal Agent implementation exercising the full
// handshake + session + prompt + pagination surface the ACP role
// connections expose.
type echoAgent struct {
	loadSessionNotImplemented bool

	mu          sync.Mutex
	lastPrompt  string
	sessionIDs  map[string]bool
	listFetches int
}

func newEchoAgent() *echoAgent {
	return &echoAgent{sessionIDs: make(map[string]bool)}
}

func (a *echoAgent) Initialize(ctx context.Context, params acp.InitializeParams) (acp.InitializeResult, error) {
	return acp.InitializeResult{
		ProtocolVersion: params.ProtocolVersion,
		AgentCapabilities: &acp.AgentCapabilities{
			LoadSession:     true,
			ListSessions:    true,
			ForkSession:     true,
			ResumeSession:   true,
			SetSessionModel: true,
			SetConfigOption: true,
		},
		AgentInfo: &acp.Implementation{Name: "EchoAgent", Version: "1.0.0"},
	}, nil
}

func (a *echoAgent) Authenticate(ctx context.Context, params acp.AuthenticateParams) error {
	return nil
}

func (a *echoAgent) NewSession(ctx context.Context, params acp.NewSessionParams) (acp.NewSessionResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := "sess-1"
	a.sessionIDs[id] = true
	return acp.NewSessionResult{SessionID: id}, nil
}

func (a *echoAgent) LoadSession(ctx context.Context, params acp.LoadSessionParams) (acp.LoadSessionResult, error) {
	if a.loadSessionNotImplemented {
		return acp.LoadSessionResult{}, acp.NewNotImplementedError(acp.MethodSessionLoad)
	}
	return acp.LoadSessionResult{}, nil
}

func (a *echoAgent) ListSessions(ctx context.Context, params acp.ListSessionsParams) (acp.ListSessionsResult, error) {
	a.mu.Lock()
	a.listFetches++
	a.mu.Unlock()

	cursor := ""
	if params.Cursor != nil {
		cursor = *params.Cursor
	}
	switch cursor {
	case "":
		next := "10"
		return acp.ListSessionsResult{Sessions: makeSummaries(1, 10), NextCursor: &next}, nil
	case "10":
		next := "20"
		return acp.ListSessionsResult{Sessions: makeSummaries(11, 20), NextCursor: &next}, nil
	case "20":
		return acp.ListSessionsResult{Sessions: makeSummaries(21, 25), NextCursor: nil}, nil
	default:
		return acp.ListSessionsResult{}, nil
	}
}

func makeSummaries(from, to int) []acp.SessionSummary {
	var out []acp.SessionSummary
	for i := from; i <= to; i++ {
		out = append(out, acp.SessionSummary{SessionID: "s" + itoaTest(i)})
	}
	return out
}

func itoaTest(n int) string {
	digits := []byte{}
	if n == 0 {
		return "0"
	}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func (a *echoAgent) ForkSession(ctx context.Context, params acp.ForkSessionParams) (acp.ForkSessionResult, error) {
	return acp.ForkSessionResult{SessionID: params.SessionID + "-fork"}, nil
}

func (a *echoAgent) ResumeSession(ctx context.Context, params acp.ResumeSessionParams) (acp.ResumeSessionResult, error) {
	return acp.ResumeSessionResult{}, nil
}

func (a *echoAgent) Prompt(actx *acp.AgentContext, params acp.PromptParams) (acp.PromptResult, error) {
	a.mu.Lock()
	if len(params.Prompt) > 0 {
		a.lastPrompt = params.Prompt[0].Text
	}
	a.mu.Unlock()
	_ = actx.NotifyMessageChunk(acp.ContentBlock{Type: "text", Text: "echo: " + params.Prompt[0].Text})
	return acp.PromptResult{StopReason: acp.StopReasonEndTurn}, nil
}

func (a *echoAgent) SetMode(ctx context.Context, params acp.SetModeParams) error { return nil }

func (a *echoAgent) SetModel(ctx context.Context, params acp.SetModelParams) error { return nil }

func (a *echoAgent) SetConfigOption(ctx context.Context, params acp.SetConfigOptionParams) error {
	return nil
}

// recordingClient captures session/update notifications and answers
// permission/file/terminal callbacks with canned responses.
type recordingClient struct {
	mu      sync.Mutex
	updates []*acp.SessionUpdate
}

func (c *recordingClient) SessionUpdate(update *acp.SessionUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, update)
}

func (c *recordingClient) snapshot() []*acp.SessionUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*acp.SessionUpdate, len(c.updates))
	copy(out, c.updates)
	return out
}

func (c *recordingClient) RequestPermission(ctx context.Context, params acp.RequestPermissionParams) (acp.RequestPermissionOutcome, error) {
	return acp.SelectPermissionOption(params.Options, "allow_once"), nil
}
func (c *recordingClient) ReadTextFile(ctx context.Context, params acp.ReadTextFileParams) (acp.ReadTextFileResult, error) {
	return acp.ReadTextFileResult{Content: "file contents"}, nil
}
func (c *recordingClient) WriteTextFile(ctx context.Context, params acp.WriteTextFileParams) error {
	return nil
}
func (c *recordingClient) CreateTerminal(ctx context.Context, params acp.CreateTerminalParams) (acp.CreateTerminalResult, error) {
	return acp.CreateTerminalResult{TerminalID: "term-1"}, nil
}
func (c *recordingClient) TerminalOutput(ctx context.Context, params acp.TerminalOutputParams) (acp.TerminalOutputResult, error) {
	return acp.TerminalOutputResult{Output: "ok"}, nil
}
func (c *recordingClient) WaitForTerminalExit(ctx context.Context, params acp.WaitForTerminalExitParams) (acp.TerminalExitStatus, error) {
	code := 0
	return acp.TerminalExitStatus{ExitCode: &code}, nil
}
func (c *recordingClient) ReleaseTerminal(ctx context.Context, params acp.ReleaseTerminalParams) error {
	return nil
}
func (c *recordingClient) KillTerminal(ctx context.Context, params acp.KillTerminalParams) error {
	return nil
}

func newPair(t *testing.T, agent *echoAgent, client *recordingClient) *acptest.Pair {
	t.Helper()
	pair, err := acptest.NewPair(agent, client)
	if err != nil {
		t.Fatalf("acptest.NewPair: %v", err)
	}
	t.Cleanup(func() { _ = pair.Close() })
	return pair
}

func TestE2E_InitializeHandshake(t *testing.T) {
	agent := newEchoAgent()
	client := &recordingClient{}
	pair := newPair(t, agent, client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := pair.Client.Initialize(ctx, acp.InitializeParams{
		ClientCapabilities: &acp.ClientCapabilities{FS: &acp.FileSystemCapability{ReadTextFile: true}},
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if result.AgentInfo == nil || result.AgentInfo.Name != "EchoAgent" || result.AgentInfo.Version != "1.0.0" {
		t.Fatalf("AgentInfo = %+v", result.AgentInfo)
	}
	if result.AgentCapabilities == nil || !result.AgentCapabilities.LoadSession {
		t.Fatalf("AgentCapabilities = %+v, want LoadSession true", result.AgentCapabilities)
	}
	if pair.Client.State() != acp.StateConnected {
		t.Fatalf("client state = %v, want connected", pair.Client.State())
	}
}

func TestE2E_SimplePrompt(t *testing.T) {
	agent := newEchoAgent()
	client := &recordingClient{}
	pair := newPair(t, agent, client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := pair.Client.Initialize(ctx, acp.InitializeParams{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	session, err := pair.Client.NewSession(ctx, acp.NewSessionParams{CWD: "/tmp"})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if session.SessionID == "" {
		t.Fatal("expected a non-empty sessionId")
	}

	result, err := pair.Client.Prompt(ctx, acp.PromptParams{
		SessionID: session.SessionID,
		Prompt:    []acp.ContentBlock{{Type: "text", Text: "Hello"}},
	})
	if err != nil {
		t.Fatalf("Prompt: %v", err)
	}
	if result.StopReason != acp.StopReasonEndTurn {
		t.Fatalf("StopReason = %q, want end_turn", result.StopReason)
	}

	agent.mu.Lock()
	got := agent.lastPrompt
	agent.mu.Unlock()
	if got != "Hello" {
		t.Fatalf("agent observed prompt %q, want %q", got, "Hello")
	}

	deadline := time.After(2 * time.Second)
	for {
		if len(client.snapshot()) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("expected a session/update notification to arrive")
		case <-time.After(5 * time.Millisecond):
		}
	}
	update := client.snapshot()[0]
	if update.Kind != acp.UpdateAgentMessageChunk || update.Content == nil || update.Content.Text != "echo: Hello" {
		t.Fatalf("update = %+v", update)
	}
}

func TestE2E_MethodNotImplemented(t *testing.T) {
	agent := newEchoAgent()
	agent.loadSessionNotImplemented = true
	client := &recordingClient{}
	pair := newPair(t, agent, client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := pair.Client.Initialize(ctx, acp.InitializeParams{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	_, err := pair.Client.LoadSession(ctx, acp.LoadSessionParams{SessionID: "nope"})
	if err == nil {
		t.Fatal("expected an error for an unimplemented method")
	}
	var pe *acp.ProtocolError
	if pe2, ok := err.(*acp.ProtocolError); ok {
		pe = pe2
	}
	if pe == nil || pe.Kind != acp.ProtocolJSONRPCError || pe.RPCCode != acp.CodeMethodNotFound {
		t.Fatalf("err = %v, want a MethodNotFound JSON-RPC error", err)
	}
}

func TestE2E_PaginatedListSessions(t *testing.T) {
	agent := newEchoAgent()
	client := &recordingClient{}
	pair := newPair(t, agent, client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := pair.Client.Initialize(ctx, acp.InitializeParams{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	seq := pair.Client.ListSessions(ctx, 0)
	items, err := seq.Collect(ctx)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(items) != 25 {
		t.Fatalf("got %d sessions, want 25", len(items))
	}
	if items[0].SessionID != "s1" || items[24].SessionID != "s25" {
		t.Fatalf("first/last = %q/%q", items[0].SessionID, items[24].SessionID)
	}

	agent.mu.Lock()
	fetches := agent.listFetches
	agent.mu.Unlock()
	if fetches != 3 {
		t.Fatalf("fetches = %d, want exactly 3", fetches)
	}
}
