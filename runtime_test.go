package acp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

// fakeTransport is a minimal in-memory Transport for unit-testing the
// Runtime's dispatch logic without a real byte stream: Send records what
// was written instead of writing it anywhere, and push injects a raw
// inbound frame as if it had just arrived off the wire.
type fakeTransport struct {
	*transportCore

	mu   sync.Mutex
	sent [][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{transportCore: newTransportCore()}
}

func (f *fakeTransport) Start() error {
	f.setState(TransportStarted)
	return nil
}

func (f *fakeTransport) Send(line []byte) error {
	if f.State() != TransportStarted {
		return ErrTransportNotConnected
	}
	f.mu.Lock()
	f.sent = append(f.sent, append([]byte(nil), line...))
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() {
		f.setState(TransportClosing)
		f.setState(TransportClosed)
		close(f.closeSignal)
		close(f.stateCh)
		close(f.inboundCh)
	})
	return nil
}

func (f *fakeTransport) push(line []byte) { f.inboundCh <- line }

func (f *fakeTransport) lastSent() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func newTestRuntime(t *testing.T) (*Runtime, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport()
	r := NewRuntime(ft)
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r, ft
}

// --- property: IDs allocated k..k+n-1 in entry order ---

func TestRuntime_IDAllocation_Sequential(t *testing.T) {
	r, _ := newTestRuntime(t)

	var ids []int64
	for i := 0; i < 3; i++ {
		entry, err := r.issueRequest("m", nil)
		if err != nil {
			t.Fatalf("issueRequest: %v", err)
		}
		ids = append(ids, entry.id.Int())
	}
	for i, id := range ids {
		want := int64(i + 1)
		if id != want {
			t.Fatalf("ids = %v, want consecutive starting at 1", ids)
		}
	}
}

func (f *fakeTransport) sentSnapshot() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

// --- SendRequest completes with the matching response's result ---

func TestRuntime_SendRequest_RoundTrip(t *testing.T) {
	r, ft := newTestRuntime(t)

	done := make(chan struct{})
	var result json.RawMessage
	var err error
	go func() {
		result, err = r.SendRequest(context.Background(), "echo", map[string]string{"a": "b"}, nil)
		close(done)
	}()

	waitForSent(t, ft, "echo")
	ft.push([]byte(`{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SendRequest did not return")
	}
	if err != nil {
		t.Fatalf("SendRequest error: %v", err)
	}
	var decoded map[string]bool
	if uerr := json.Unmarshal(result, &decoded); uerr != nil || !decoded["ok"] {
		t.Fatalf("result = %s", result)
	}
}

func TestRuntime_SendRequest_JSONRPCError(t *testing.T) {
	r, ft := newTestRuntime(t)

	done := make(chan struct{})
	var err error
	go func() {
		_, err = r.SendRequest(context.Background(), "boom", nil, nil)
		close(done)
	}()
	waitForSent(t, ft, "boom")
	ft.push([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"nope"}}`))

	<-done
	var pe *ProtocolError
	if !asProtocolError(err, &pe) || pe.Kind != ProtocolJSONRPCError || pe.RPCCode != -32601 {
		t.Fatalf("err = %v, want ProtocolJSONRPCError -32601", err)
	}
}

func waitForSent(t *testing.T, ft *fakeTransport, method string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		for _, line := range ft.sentSnapshot() {
			var env wireEnvelope
			if json.Unmarshal(line, &env) == nil && env.Method == method {
				return
			}
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for an outbound %q request", method)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func asProtocolError(err error, target **ProtocolError) bool {
	pe, ok := err.(*ProtocolError)
	if !ok {
		return false
	}
	*target = pe
	return true
}

// --- property: unknown response id is reported, not silently lost ---

func TestRuntime_UnknownResponseID_ReportedOnErrorStream(t *testing.T) {
	r, ft := newTestRuntime(t)
	ft.push([]byte(`{"jsonrpc":"2.0","id":999,"result":{}}`))

	select {
	case pe := <-r.Errors():
		if pe.Kind != ProtocolInvalidResponseID || pe.InvalidID.Int() != 999 {
			t.Fatalf("got %+v, want InvalidResponseID(999)", pe)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected an error on the error stream")
	}
}

// --- method-not-implemented: no handler registered -> MethodNotFound ---

func TestRuntime_MethodNotFound(t *testing.T) {
	r, ft := newTestRuntime(t)
	ft.push([]byte(`{"jsonrpc":"2.0","id":5,"method":"session/new","params":{}}`))

	deadline := time.After(2 * time.Second)
	for {
		if line := ft.lastSent(); line != nil {
			var env wireEnvelope
			if json.Unmarshal(line, &env) == nil && env.Error != nil {
				if env.Error.Code != CodeMethodNotFound {
					t.Fatalf("code = %d, want %d", env.Error.Code, CodeMethodNotFound)
				}
				return
			}
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for a MethodNotFound reply")
		case <-time.After(5 * time.Millisecond):
		}
	}
	_ = r
}

// --- property: notification fan-out runs every handler, in order ---

func TestRuntime_NotificationFanout(t *testing.T) {
	r, _ := newTestRuntime(t)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		i := i
		r.OnNotification("ping", func(json.RawMessage) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}

	env := &wireEnvelope{Method: "ping"}
	r.routeNotification(env)

	waitGroup(t, &wg, 2*time.Second)
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 {
		t.Fatalf("invoked %d handlers, want 3", len(order))
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("handlers ran in order %v, want registration order", order)
		}
	}
}

func waitGroup(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for handlers")
	}
}

// --- property: Close is idempotent ---

func TestRuntime_Close_Idempotent(t *testing.T) {
	r, _ := newTestRuntime(t)
	if err := r.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestRuntime_Close_FailsPendingRequests(t *testing.T) {
	r, _ := newTestRuntime(t)
	done := make(chan error, 1)
	go func() {
		_, err := r.SendRequest(context.Background(), "never", nil, nil)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	_ = r.Close()

	select {
	case err := <-done:
		var pe *ProtocolError
		if !asProtocolError(err, &pe) || pe.Kind != ProtocolTransportClosed {
			t.Fatalf("err = %v, want TransportClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SendRequest never unblocked after Close")
	}
}

// --- graceful cancellation: end-to-end over a real duplex pipe ---

func newDuplexRuntimes(t *testing.T, opts ...RuntimeOption) (*Runtime, *Runtime) {
	t.Helper()
	toA, fromB := io.Pipe()
	toB, fromA := io.Pipe()
	ta := NewStdioTransport(toA, fromA, 0)
	tb := NewStdioTransport(toB, fromB, 0)

	a := NewRuntime(ta, opts...)
	b := NewRuntime(tb, opts...)
	if err := a.Start(); err != nil {
		t.Fatalf("a.Start: %v", err)
	}
	if err := b.Start(); err != nil {
		t.Fatalf("b.Start: %v", err)
	}
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return a, b
}

func TestGracefulCancellation_CompletesWithinWindow(t *testing.T) {
	a, b := newDuplexRuntimes(t, WithGracefulCancellationTimeout(1*time.Second))

	release := make(chan struct{})
	b.SetRequestHandler("slow", func(ctx context.Context, params json.RawMessage) (any, error) {
		<-release
		return map[string]string{"status": "done"}, nil
	})
	b.OnNotification("test/cancel", func(json.RawMessage) {
		close(release)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	raw, err := a.SendRequest(ctx, "slow", nil, &CancelNotification{Method: "test/cancel"})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("SendRequest returned error %v, want the upgraded response", err)
	}
	var result map[string]string
	if uerr := json.Unmarshal(raw, &result); uerr != nil || result["status"] != "done" {
		t.Fatalf("result = %s", raw)
	}
	if elapsed > 900*time.Millisecond {
		t.Fatalf("took %v, expected the cancellation to be upgraded well inside the 1s window", elapsed)
	}
}

func TestGracefulCancellation_TimeoutExpires(t *testing.T) {
	a, b := newDuplexRuntimes(t, WithGracefulCancellationTimeout(200*time.Millisecond))

	never := make(chan struct{})
	b.SetRequestHandler("slow", func(ctx context.Context, params json.RawMessage) (any, error) {
		<-never // never replies within the test
		return nil, nil
	})
	b.OnNotification("test/cancel", func(json.RawMessage) {
		// peer acknowledges the cancellation but never actually responds
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := a.SendRequest(ctx, "slow", nil, &CancelNotification{Method: "test/cancel"})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want Cancelled", err)
	}
	if elapsed < 180*time.Millisecond {
		t.Fatalf("returned after %v, expected to wait out the ~200ms graceful window", elapsed)
	}
}
