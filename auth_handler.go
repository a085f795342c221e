package mqttwire

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// authChannel is what the auth state machine needs from its connection.
// Every method is called on the connection's event loop.
type authChannel interface {
	// active reports whether CONNACK was accepted and the connection is not
	// closing. It may be called from any goroutine.
	active() bool

	// writePacket queues pkt for writing. onWritten, if not nil, runs on the
	// event loop once the write finished.
	writePacket(pkt Packet, onWritten func(error))

	// disconnect sends DISCONNECT with code and closes the connection.
	disconnect(code ReasonCode, cause error)

	// close closes the connection without sending DISCONNECT.
	close(cause error)

	// connectAccepted is called once connect time authentication finished.
	connectAccepted(connack *ConnackPacket)
}

// authHandler is the enhanced authentication state machine of one
// connection. Except for state reads and reauth, every method runs on loop.
type authHandler struct {
	ch                authChannel
	loop              *EventLoop
	provider          EnhancedAuthProvider
	allowServerReAuth bool
	timeout           time.Duration
	logger            Logger
	metrics           *connMetrics

	stateV atomic.Int32

	// owned by loop
	state      AuthState
	connecting bool
	closed     bool
	flow       *Flow
	timer      *Timer
	epoch      uint64
	writeToken uint64
	kind       string
	started    time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func newAuthHandler(ch authChannel, loop *EventLoop, o *connOptions) *authHandler {
	ctx, cancel := context.WithCancel(context.Background())
	return &authHandler{
		ch:                ch,
		loop:              loop,
		provider:          o.provider,
		allowServerReAuth: o.allowServerReAuth,
		timeout:           o.authTimeout,
		logger:            o.logger,
		metrics:           newConnMetrics(o.metrics),
		ctx:               ctx,
		cancel:            cancel,
	}
}

// State returns the current state. It may be called from any goroutine.
func (h *authHandler) State() AuthState { return AuthState(h.stateV.Load()) }

func (h *authHandler) setState(s AuthState) {
	if h.state == s {
		return
	}
	h.logger.Debug("auth state changed", LogFields{
		LogFieldAuthState: s.String(),
		"previous":        h.state.String(),
	})
	h.state = s
	h.stateV.Store(int32(s))
}

// startConnect sends CONNECT, enriched by the provider first when enhanced
// authentication is configured.
func (h *authHandler) startConnect(connect *ConnectPacket) {
	h.connecting = true

	if h.provider == nil {
		h.ch.writePacket(connect, func(err error) {
			if err != nil {
				h.ch.close(err)
			}
		})
		return
	}

	h.begin(AuthKindConnect)
	out := newAuthBuilder(h.provider.Method(), ReasonSuccess)
	h.callProvider(func(ctx context.Context) error {
		return h.provider.OnAuth(ctx, connect, out)
	}, func(err error) {
		if err != nil {
			h.ch.close(err)
			return
		}
		out.applyTo(connect)
		h.send(connect)
	})
}

// reauth starts a client initiated reauthentication. It may be called from
// any goroutine.
func (h *authHandler) reauth() *Flow {
	flow := newFlow()
	if h.provider == nil {
		flow.complete(ErrNoAuthProvider)
		return flow
	}
	if !h.ch.active() {
		flow.complete(ErrNotConnected)
		return flow
	}
	if !h.loop.Execute(func() { h.startReAuth(flow) }) {
		flow.complete(ErrNotConnected)
	}
	return flow
}

func (h *authHandler) startReAuth(flow *Flow) {
	if h.closed || !h.ch.active() {
		flow.complete(ErrNotConnected)
		return
	}
	if h.state != AuthStateNone {
		flow.complete(ErrReAuthPending)
		return
	}

	h.flow = flow
	h.begin(AuthKindReAuth)
	out := newAuthBuilder(h.provider.Method(), ReasonReAuth)
	h.callProvider(func(ctx context.Context) error {
		return h.provider.OnReAuth(ctx, out)
	}, func(err error) {
		if err != nil {
			h.abort(err)
			return
		}
		h.send(out.packet())
	})
}

func (h *authHandler) begin(kind string) {
	h.kind = kind
	h.started = time.Now()
	h.setState(AuthStateInProgressInit)
}

// callProvider runs call on its own goroutine and continues on the loop,
// unless the connection closed in between.
func (h *authHandler) callProvider(call func(ctx context.Context) error, cont func(error)) {
	epoch := h.epoch
	ctx, cancel := context.WithTimeout(h.ctx, h.timeout)
	go func() {
		defer cancel()
		err := safeProviderCall(ctx, call)
		h.loop.Execute(func() {
			if h.epoch != epoch {
				return
			}
			cont(err)
		})
	}()
}

func safeProviderCall(ctx context.Context, call func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("auth provider panicked: %v", r)
		}
	}()
	return call(ctx)
}

func (h *authHandler) notify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("auth provider callback panicked", LogFields{LogFieldError: fmt.Sprint(r)})
		}
	}()
	fn()
}

// send writes a client packet of the exchange and waits for the server.
func (h *authHandler) send(pkt Packet) {
	h.setState(AuthStateWaitForServer)
	h.writeToken++
	token := h.writeToken
	epoch := h.epoch

	h.ch.writePacket(pkt, func(err error) {
		if h.epoch != epoch {
			return
		}
		if err != nil {
			if errors.Is(err, ErrPacketTooLarge) && !h.connecting {
				h.abort(err)
				return
			}
			h.ch.close(err)
			return
		}
		if h.writeToken == token && h.state == AuthStateWaitForServer {
			h.scheduleTimeout()
		}
	})
}

func (h *authHandler) scheduleTimeout() {
	h.cancelTimeout()
	h.timer = h.loop.Schedule(h.timeout, func() {
		h.timer = nil
		h.ch.disconnect(ReasonNotAuthorized, &AuthError{
			err:     ErrAuthTimeout,
			Message: "Timeout while waiting for AUTH or DISCONNECT.",
		})
	})
}

func (h *authHandler) cancelTimeout() {
	h.timer.Cancel()
	h.timer = nil
}

// abort ends a reauth exchange locally; the connection stays open.
func (h *authHandler) abort(err error) {
	h.cancelTimeout()
	h.epoch++
	h.notify(func() { h.provider.OnReAuthError(err) })
	h.finish(AuthOutcomeError, err)
}

// finish returns to NONE and reports the outcome to the pending flow.
func (h *authHandler) finish(outcome string, err error) {
	h.setState(AuthStateNone)
	h.metrics.authExchange(h.kind, outcome, time.Since(h.started))

	flow := h.flow
	h.flow = nil
	if flow == nil {
		return
	}
	if !flow.complete(err) && err == nil {
		h.logger.Warn("Reauth was successful but the flow has been cancelled.", LogFields{
			LogFieldAuthMethod: h.provider.Method(),
		})
	}
}

func (h *authHandler) protocolError(pkt Packet, msg string) {
	h.ch.disconnect(ReasonProtocolError, NewProtocolError(pkt, msg))
}

func (h *authHandler) notAuthorized(pkt Packet, msg string) {
	h.ch.disconnect(ReasonNotAuthorized, NewAuthFailedError(pkt, msg))
}

// onConnack handles the CONNACK ending the connect phase.
func (h *authHandler) onConnack(connack *ConnackPacket) {
	h.cancelTimeout()

	if connack.ReasonCode.IsError() {
		if h.provider != nil && h.state != AuthStateNone {
			h.epoch++
			h.notify(func() { h.provider.OnAuthRejected(connack) })
			h.finish(AuthOutcomeRejected, nil)
		}
		h.ch.close(NewConnectError(connack.ReasonCode, &connack.Props))
		return
	}

	if h.provider == nil {
		if connack.AuthMethod() != "" {
			h.protocolError(connack, "Must not receive an auth method in CONNACK if none was sent.")
			return
		}
		h.connecting = false
		h.ch.connectAccepted(connack)
		return
	}

	if h.state != AuthStateWaitForServer {
		h.protocolError(connack, "Must not receive CONNACK in no response to a client message.")
		return
	}
	if connack.AuthMethod() != h.provider.Method() {
		h.protocolError(connack, "Auth method in CONNACK must be the same as in the CONNECT.")
		return
	}

	h.setState(AuthStateInProgressDone)
	h.callProvider(func(ctx context.Context) error {
		return h.provider.OnAuthSuccess(ctx, connack)
	}, func(err error) {
		if err != nil {
			h.notAuthorized(connack, "Server auth success not accepted.")
			return
		}
		h.finish(AuthOutcomeSuccess, nil)
		h.connecting = false
		h.ch.connectAccepted(connack)
	})
}

// onAuth handles an AUTH packet from the server.
func (h *authHandler) onAuth(auth *AuthPacket) {
	h.cancelTimeout()

	if h.provider == nil {
		h.protocolError(auth, "Must not receive AUTH if no auth method was sent.")
		return
	}
	if auth.Method() != h.provider.Method() {
		h.protocolError(auth, "Auth method in AUTH must be the same as in the CONNECT.")
		return
	}

	switch auth.ReasonCode {
	case ReasonContinueAuth:
		h.onContinue(auth)
	case ReasonSuccess:
		if h.connecting {
			h.protocolError(auth, "Must not receive AUTH with reason code SUCCESS before CONNACK.")
			return
		}
		h.onSuccess(auth)
	case ReasonReAuth:
		if h.connecting {
			h.protocolError(auth, "Must not receive AUTH with reason code REAUTHENTICATE before CONNACK.")
			return
		}
		h.onServerReAuth(auth)
	default:
		h.protocolError(auth, "Must not receive AUTH with reason code "+auth.ReasonCode.String()+".")
	}
}

func (h *authHandler) onContinue(auth *AuthPacket) {
	if h.state != AuthStateWaitForServer {
		h.protocolError(auth, "Must not receive AUTH with reason code CONTINUE_AUTHENTICATION in no response to a client message.")
		return
	}

	h.setState(AuthStateInProgressInit)
	out := newAuthBuilder(h.provider.Method(), ReasonContinueAuth)
	h.callProvider(func(ctx context.Context) error {
		return h.provider.OnContinue(ctx, auth, out)
	}, func(err error) {
		if err != nil {
			h.notAuthorized(auth, "Server auth not accepted.")
			return
		}
		h.send(out.packet())
	})
}

func (h *authHandler) onSuccess(auth *AuthPacket) {
	if h.state != AuthStateWaitForServer {
		h.protocolError(auth, "Must not receive AUTH with reason code SUCCESS in no response to a client message.")
		return
	}

	h.setState(AuthStateInProgressDone)
	h.callProvider(func(ctx context.Context) error {
		return h.provider.OnReAuthSuccess(ctx, auth)
	}, func(err error) {
		if err != nil {
			h.notAuthorized(auth, "Server auth success not accepted.")
			return
		}
		h.finish(AuthOutcomeSuccess, nil)
	})
}

func (h *authHandler) onServerReAuth(auth *AuthPacket) {
	if !h.allowServerReAuth {
		h.protocolError(auth, "Must not receive an AUTH with reason code REAUTHENTICATE.")
		return
	}
	if h.state != AuthStateNone {
		h.protocolError(auth, "Must not receive AUTH with reason code REAUTHENTICATE if reauth is still pending.")
		return
	}

	h.begin(AuthKindServerReAuth)
	out := newAuthBuilder(h.provider.Method(), ReasonContinueAuth)
	h.callProvider(func(ctx context.Context) error {
		return h.provider.OnServerReAuth(ctx, auth, out)
	}, func(err error) {
		if err != nil {
			h.notAuthorized(auth, "Server reauth not accepted.")
			return
		}
		h.send(out.packet())
	})
}

// onDisconnect handles a DISCONNECT from the server. The connection closes
// right after.
func (h *authHandler) onDisconnect(d *DisconnectPacket) {
	h.cancelTimeout()

	if h.state != AuthStateNone {
		h.epoch++
		err := &DisconnectError{ReasonCode: d.ReasonCode, Properties: &d.Props, Remote: true}
		if h.connecting {
			h.notify(func() { h.provider.OnAuthError(err) })
		} else {
			h.notify(func() { h.provider.OnReAuthRejected(d) })
		}
		h.finish(AuthOutcomeRejected, err)
	}
}

// onClose tears the state machine down. A running exchange fails with cause.
func (h *authHandler) onClose(cause error) {
	if h.closed {
		return
	}
	h.closed = true
	h.cancelTimeout()
	h.epoch++
	h.cancel()

	if h.state != AuthStateNone {
		if h.connecting {
			h.notify(func() { h.provider.OnAuthError(cause) })
		} else {
			h.notify(func() { h.provider.OnReAuthError(cause) })
		}
		h.finish(AuthOutcomeError, cause)
	}
	if h.flow != nil {
		h.flow.complete(cause)
		h.flow = nil
	}
}
