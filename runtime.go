package acp

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmora/acp-go/internal/errfmt"
)

// defaultGracefulCancellationTimeout is the bounded wait the
// Runtime allows for a peer's natural response after a cancellation
// notification has been sent.
const defaultGracefulCancellationTimeout = 1 * time.Second

// NotificationHandler is invoked for each inbound notification of the
// method it was registered for. Multiple handlers may be registered per
// method; for each inbound notification they run one after another, in
// registration order, on a goroutine of their own.
type NotificationHandler func(params json.RawMessage)

// RequestHandler is invoked for an inbound request of the method it was
// registered for. Its return value is marshaled as the response result;
// a non-nil error is translated to a JSON-RPC error envelope via
// roleErrorCode.
type RequestHandler func(ctx context.Context, params json.RawMessage) (any, error)

// CancelNotification describes the notification a caller's in-flight
// SendRequest should trigger if its context is cancelled before a
// response arrives. The Runtime itself is agnostic to ACP method names;
// the Role Connection supplies this per call — e.g.
// session/prompt supplies {Method: MethodSessionCancel, Params:
// sessionCancelParams{SessionID: sid}}. A nil CancelNotification means
// the Runtime still applies the graceful wait window but sends no
// notification first.
type CancelNotification struct {
	Method string
	Params any
}

// RuntimeOptions configures a Runtime at construction time.
type RuntimeOptions struct {
	// GracefulCancellationTimeout bounds how long a cancelled SendRequest
	// waits for the peer's natural response before giving up.
	GracefulCancellationTimeout time.Duration

	// IDStart is the first request id the Runtime allocates. Defaults to 1.
	IDStart int64
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*RuntimeOptions)

// WithGracefulCancellationTimeout overrides the default 1s graceful
// cancellation window.
func WithGracefulCancellationTimeout(d time.Duration) RuntimeOption {
	return func(o *RuntimeOptions) {
		if d > 0 {
			o.GracefulCancellationTimeout = d
		}
	}
}

// WithIDStart overrides the first allocated request id. Values <= 0 are ignored.
func WithIDStart(n int64) RuntimeOption {
	return func(o *RuntimeOptions) {
		if n > 0 {
			o.IDStart = n
		}
	}
}

func resolveRuntimeOptions(opts ...RuntimeOption) RuntimeOptions {
	o := RuntimeOptions{
		GracefulCancellationTimeout: defaultGracefulCancellationTimeout,
		IDStart:                     1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// pendingState tracks whether a pending entry is still actively awaited
// or has entered the graceful-cancellation window: a two-phase slot,
// Active then Cancelling(deadline).
type pendingState int32

const (
	pendingActive pendingState = iota
	pendingCancelling
)

// pendingEntry is the Runtime's bookkeeping for one outstanding SendRequest.
type pendingEntry struct {
	id    RequestID
	resCh chan *wireEnvelope // buffered 1; exactly one send ever occurs
	state atomic.Int32
}

// Runtime is the concurrent, bidirectional JSON-RPC 2.0 dispatcher at the
// center of the SDK. One Runtime owns one Transport; it is never
// shared across connections. Generalizes engine/acp/conn.go's Conn with a
// string|int RequestID, an ordered multi-handler notification registry,
// an unbounded error stream, and graceful cancellation.
type Runtime struct {
	transport Transport
	opts      RuntimeOptions

	nextID atomic.Int64

	sendMu sync.Mutex // orders id-alloc + pending-register + transport.Send

	mu             sync.Mutex
	pending        map[any]*pendingEntry
	notifyHandlers map[string][]NotificationHandler
	methodHandlers map[string]RequestHandler
	closed         bool

	errs *errorStream

	ctx    context.Context
	cancel context.CancelFunc

	group *errgroup.Group

	doneCh chan struct{}
}

// NewRuntime constructs a Runtime over transport. Call Start to begin
// processing; register notification/request handlers before Start for
// handlers that must see the very first inbound message, though
// OnNotification/SetRequestHandler remain safe to call at any time.
func NewRuntime(transport Transport, opts ...RuntimeOption) *Runtime {
	o := resolveRuntimeOptions(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runtime{
		transport:      transport,
		opts:           o,
		pending:        make(map[any]*pendingEntry),
		notifyHandlers: make(map[string][]NotificationHandler),
		methodHandlers: make(map[string]RequestHandler),
		errs:           newErrorStream(),
		ctx:            ctx,
		cancel:         cancel,
		group:          &errgroup.Group{},
		doneCh:         make(chan struct{}),
	}
	r.nextID.Store(o.IDStart - 1)
	return r
}

// Start takes ownership of the transport, starts it, and launches the
// inbound dispatch loop.
func (r *Runtime) Start() error {
	if err := r.transport.Start(); err != nil {
		return err
	}
	go r.dispatchLoop()
	return nil
}

// OnNotification registers an additional handler for inbound notifications
// of method. Handlers for the same method run in registration order.
func (r *Runtime) OnNotification(method string, h NotificationHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifyHandlers[method] = append(r.notifyHandlers[method], h)
}

// SetRequestHandler sets the handler for inbound requests of method,
// replacing any previously registered handler.
func (r *Runtime) SetRequestHandler(method string, h RequestHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methodHandlers[method] = h
}

// Errors returns the stream of cross-cutting Runtime errors — malformed
// inbound envelopes, responses with unknown ids, uncaught handler panics
// not tied to a pending request. Unbounded and single-consumer;
// user code may subscribe for observability but need not.
func (r *Runtime) Errors() <-chan *ProtocolError {
	return r.errs.out
}

// SendRequest allocates the next request id, sends method/params, and
// suspends until a matching response, error, graceful-cancellation
// timeout, or Runtime close. cancelNotif, if non-nil, is sent to the peer
// the moment ctx is cancelled, before the graceful wait begins.
func (r *Runtime) SendRequest(ctx context.Context, method string, params any, cancelNotif *CancelNotification) (json.RawMessage, error) {
	entry, err := r.issueRequest(method, params)
	if err != nil {
		return nil, err
	}

	select {
	case env, ok := <-entry.resCh:
		return resultOrError(env, ok)
	case <-ctx.Done():
		return r.handleCancellation(ctx, entry, cancelNotif)
	case <-r.doneCh:
		return nil, ErrTransportClosed
	}
}

// issueRequest performs the id-alloc + pending-register + transport.Send
// critical section, guaranteeing outbound requests leave in allocation
// order.
func (r *Runtime) issueRequest(method string, params any) (*pendingEntry, error) {
	r.sendMu.Lock()
	defer r.sendMu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrTransportClosed
	}
	r.mu.Unlock()

	id := r.nextID.Add(1)
	rid := NewIntID(id)
	entry := &pendingEntry{id: rid, resCh: make(chan *wireEnvelope, 1)}

	r.mu.Lock()
	r.pending[rid.idKey()] = entry
	r.mu.Unlock()

	line, err := encodeLine(outboundRequest{JSONRPC: jsonrpcVersion, ID: rid, Method: method, Params: params})
	if err != nil {
		r.removePending(rid)
		return nil, &ProtocolError{Kind: ProtocolMalformed, Cause: err}
	}
	if err := r.transport.Send(line); err != nil {
		r.removePending(rid)
		return nil, &ProtocolError{Kind: ProtocolTransportClosed, Cause: err}
	}
	return entry, nil
}

// handleCancellation implements the graceful cancellation contract: send
// the cancel notification (best effort), wait up to the graceful window
// for the peer's natural response, and either upgrade it to a normal
// completion or give up with Cancelled.
func (r *Runtime) handleCancellation(ctx context.Context, entry *pendingEntry, cancelNotif *CancelNotification) (json.RawMessage, error) {
	entry.state.Store(int32(pendingCancelling))

	if cancelNotif != nil {
		_ = r.SendNotification(cancelNotif.Method, cancelNotif.Params)
	}

	timer := time.NewTimer(r.opts.GracefulCancellationTimeout)
	defer timer.Stop()

	select {
	case env, ok := <-entry.resCh:
		return resultOrError(env, ok)
	case <-timer.C:
		r.removePending(entry.id)
		return nil, ErrCancelled
	case <-r.doneCh:
		return nil, ErrTransportClosed
	}
}

func resultOrError(env *wireEnvelope, ok bool) (json.RawMessage, error) {
	if !ok || env == nil {
		return nil, ErrTransportClosed
	}
	if env.Error != nil {
		return nil, &ProtocolError{
			Kind:       ProtocolJSONRPCError,
			RPCCode:    env.Error.Code,
			RPCMessage: errfmt.Truncate(env.Error.Message),
			RPCData:    env.Error.Data,
		}
	}
	return env.Result, nil
}

// SendNotification sends a fire-and-forget notification; no pending
// entry is registered.
func (r *Runtime) SendNotification(method string, params any) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrTransportClosed
	}
	r.mu.Unlock()

	line, err := encodeLine(outboundNotification{JSONRPC: jsonrpcVersion, Method: method, Params: params})
	if err != nil {
		return &ProtocolError{Kind: ProtocolMalformed, Cause: err}
	}
	if err := r.transport.Send(line); err != nil {
		return &ProtocolError{Kind: ProtocolTransportClosed, Cause: err}
	}
	return nil
}

// Close stops accepting new requests, completes all pending entries with
// TransportClosed, closes the transport, and drops all handlers.
// Idempotent.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	pending := r.pending
	r.pending = make(map[any]*pendingEntry)
	r.notifyHandlers = make(map[string][]NotificationHandler)
	r.methodHandlers = make(map[string]RequestHandler)
	r.mu.Unlock()

	for _, entry := range pending {
		select {
		case entry.resCh <- nil:
		default:
		}
	}

	close(r.doneCh)
	r.cancel()
	_ = r.group.Wait() // let in-flight handler goroutines finish their reply before the transport goes away
	err := r.transport.Close()
	r.errs.close()
	return err
}

func (r *Runtime) removePending(id RequestID) {
	r.mu.Lock()
	delete(r.pending, id.idKey())
	r.mu.Unlock()
}

// dispatchLoop pulls raw frames from the transport and classifies/routes
// each one.
func (r *Runtime) dispatchLoop() {
	for line := range r.transport.Inbound() {
		env, kind, err := decodeEnvelope(line)
		if err != nil {
			var me *MalformedError
			if asMalformed(err, &me) {
				r.errs.push(me.toProtocolError())
			}
			continue
		}
		r.route(env, kind)
	}
	// Transport reached TransportClosed (EOF or explicit Close): finish
	// any callers still waiting with TransportClosed.
	_ = r.Close()
}

func asMalformed(err error, target **MalformedError) bool {
	if me, ok := err.(*MalformedError); ok {
		*target = me
		return true
	}
	return false
}

func (r *Runtime) route(env *wireEnvelope, kind envelopeKind) {
	switch kind {
	case kindResponse, kindErrorResponse:
		r.routeCompletion(env)
	case kindRequest:
		r.routeRequest(env)
	case kindNotification:
		r.routeNotification(env)
	}
}

// routeCompletion delivers a response or error envelope to its pending
// caller, or reports it as an InvalidResponseID / untargeted error.
func (r *Runtime) routeCompletion(env *wireEnvelope) {
	if env.Error != nil && env.ID == nil {
		r.errs.push(&ProtocolError{
			Kind:       ProtocolJSONRPCError,
			RPCCode:    env.Error.Code,
			RPCMessage: errfmt.Truncate(env.Error.Message),
			RPCData:    env.Error.Data,
		})
		return
	}
	if env.ID == nil {
		return
	}

	r.mu.Lock()
	entry, ok := r.pending[env.ID.idKey()]
	if ok {
		delete(r.pending, env.ID.idKey())
	}
	r.mu.Unlock()

	if !ok {
		r.errs.push(&ProtocolError{Kind: ProtocolInvalidResponseID, InvalidID: *env.ID})
		return
	}
	entry.resCh <- env
}

// routeRequest dispatches an inbound request to its registered handler on
// a fresh goroutine, or replies MethodNotFound if none is registered.
func (r *Runtime) routeRequest(env *wireEnvelope) {
	r.mu.Lock()
	h, ok := r.methodHandlers[env.Method]
	r.mu.Unlock()

	id := *env.ID
	if !ok {
		r.replyError(id, CodeMethodNotFound, "method not found: "+env.Method, nil)
		return
	}

	params := env.Params
	r.group.Go(func() error {
		result, err := r.invokeRequestHandler(h, params)
		if err != nil {
			code, msg := roleErrorCode(err)
			r.replyError(id, code, msg, nil)
			return nil
		}
		r.replyResult(id, result)
		return nil
	})
}

// invokeRequestHandler runs h with panic recovery, synthesizing an
// InternalError if the handler panics instead of letting it crash the
// dispatch goroutine.
func (r *Runtime) invokeRequestHandler(h RequestHandler, params json.RawMessage) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = NewInternalError(panicMessage(rec))
		}
	}()
	return h(r.ctx, params)
}

func panicMessage(rec any) string {
	if e, ok := rec.(error); ok {
		return e.Error()
	}
	return "panic: handler failed unexpectedly"
}

// routeNotification fans an inbound notification out to every handler
// registered for its method, running them in registration order on a
// fresh goroutine.
func (r *Runtime) routeNotification(env *wireEnvelope) {
	r.mu.Lock()
	handlers := append([]NotificationHandler(nil), r.notifyHandlers[env.Method]...)
	r.mu.Unlock()

	if len(handlers) == 0 {
		return
	}
	params := env.Params
	r.group.Go(func() error {
		for _, h := range handlers {
			r.invokeNotificationHandler(h, params)
		}
		return nil
	})
}

func (r *Runtime) invokeNotificationHandler(h NotificationHandler, params json.RawMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			r.errs.push(&ProtocolError{Kind: ProtocolMalformed, Cause: NewInternalError(panicMessage(rec))})
		}
	}()
	h(params)
}

func (r *Runtime) replyResult(id RequestID, result any) {
	line, err := encodeLine(outboundResponse{JSONRPC: jsonrpcVersion, ID: id, Result: result})
	if err != nil {
		r.replyError(id, CodeInternalError, "marshal result: "+err.Error(), nil)
		return
	}
	_ = r.transport.Send(line) // best-effort — peer may already be gone
}

func (r *Runtime) replyError(id RequestID, code int, message string, data []byte) {
	line, err := encodeLine(outboundErrorResponse{
		JSONRPC: jsonrpcVersion,
		ID:      &id,
		Error:   &wireError{Code: code, Message: message, Data: data},
	})
	if err != nil {
		return
	}
	_ = r.transport.Send(line) // best-effort
}
