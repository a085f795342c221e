package mqttwire

import "context"

// AuthState is the state of the enhanced authentication exchange of one
// connection.
type AuthState int32

const (
	// AuthStateNone means no exchange is running.
	AuthStateNone AuthState = iota
	// AuthStateInProgressInit means the provider is building the next
	// client packet.
	AuthStateInProgressInit
	// AuthStateWaitForServer means a client packet was sent and the server
	// has not answered yet.
	AuthStateWaitForServer
	// AuthStateInProgressDone means the server reported success and the
	// provider is checking it.
	AuthStateInProgressDone
)

func (s AuthState) String() string {
	switch s {
	case AuthStateNone:
		return "NONE"
	case AuthStateInProgressInit:
		return "IN_PROGRESS_INIT"
	case AuthStateWaitForServer:
		return "WAIT_FOR_SERVER"
	case AuthStateInProgressDone:
		return "IN_PROGRESS_DONE"
	default:
		return "UNKNOWN"
	}
}

// AuthBuilder collects what a provider wants to put into the next CONNECT
// or AUTH packet. The authentication method is fixed by the provider.
type AuthBuilder struct {
	method string

	ReasonCode     ReasonCode
	Data           []byte
	ReasonString   string
	UserProperties []StringPair
}

func newAuthBuilder(method string, code ReasonCode) *AuthBuilder {
	return &AuthBuilder{method: method, ReasonCode: code}
}

// Method returns the authentication method.
func (b *AuthBuilder) Method() string { return b.method }

// AddUserProperty appends a user property.
func (b *AuthBuilder) AddUserProperty(key, value string) {
	b.UserProperties = append(b.UserProperties, StringPair{Key: key, Value: value})
}

func (b *AuthBuilder) packet() *AuthPacket {
	pkt := &AuthPacket{ReasonCode: b.ReasonCode}
	pkt.Props.Set(PropAuthenticationMethod, b.method)
	if b.Data != nil {
		pkt.Props.Set(PropAuthenticationData, b.Data)
	}
	if b.ReasonString != "" {
		pkt.Props.Set(PropReasonString, b.ReasonString)
	}
	for _, up := range b.UserProperties {
		pkt.Props.Add(PropUserProperty, up)
	}
	return pkt
}

func (b *AuthBuilder) applyTo(connect *ConnectPacket) {
	connect.Props.Set(PropAuthenticationMethod, b.method)
	if b.Data != nil {
		connect.Props.Set(PropAuthenticationData, b.Data)
	} else {
		connect.Props.Delete(PropAuthenticationData)
	}
	for _, up := range b.UserProperties {
		connect.Props.Add(PropUserProperty, up)
	}
}

// EnhancedAuthProvider implements one enhanced authentication method on the
// client side.
//
// Methods taking a context may block; they run on their own goroutine and
// the context is cancelled when the connection closes or the auth timeout
// expires. Returning an error rejects the step. The notification methods
// (OnAuthRejected, OnAuthError, OnReAuthRejected, OnReAuthError) run on the
// connection's event loop and must not block.
type EnhancedAuthProvider interface {
	// Method returns the authentication method name, e.g. "SCRAM-SHA-256".
	Method() string

	// OnAuth fills in the authentication data of the CONNECT packet.
	OnAuth(ctx context.Context, connect *ConnectPacket, out *AuthBuilder) error

	// OnContinue answers an AUTH(CONTINUE_AUTHENTICATION) from the server.
	OnContinue(ctx context.Context, in *AuthPacket, out *AuthBuilder) error

	// OnAuthSuccess checks a successful CONNACK.
	OnAuthSuccess(ctx context.Context, connack *ConnackPacket) error

	OnAuthRejected(connack *ConnackPacket)
	OnAuthError(err error)

	// OnReAuth builds a client initiated AUTH(REAUTHENTICATE).
	OnReAuth(ctx context.Context, out *AuthBuilder) error

	// OnServerReAuth answers a server initiated AUTH(REAUTHENTICATE).
	OnServerReAuth(ctx context.Context, in *AuthPacket, out *AuthBuilder) error

	// OnReAuthSuccess checks the server's AUTH(SUCCESS) ending a reauth.
	OnReAuthSuccess(ctx context.Context, in *AuthPacket) error

	OnReAuthRejected(disconnect *DisconnectPacket)
	OnReAuthError(err error)
}
