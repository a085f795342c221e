package mqttwire

import (
	"errors"
	"fmt"
)

// Connection and authentication sentinels, checked with errors.Is.
var (
	ErrNotConnected     = errors.New("not connected")
	ErrReAuthPending    = errors.New("reauth is still pending")
	ErrNoAuthProvider   = errors.New("no enhanced auth provider configured")
	ErrAuthTimeout      = errors.New("timeout while waiting for AUTH or DISCONNECT")
	ErrProtocolError    = errors.New("protocol error")
	ErrAuthFailed       = errors.New("authentication failed")
	ErrServerDisconnect = errors.New("server disconnect")
	ErrConnectionClosed = errors.New("connection closed")
	ErrFlowCancelled    = errors.New("flow cancelled")
)

// AuthError reports a protocol or authentication failure together with the
// packet that caused it. It wraps ErrProtocolError or ErrAuthFailed.
type AuthError struct {
	err     error
	Packet  Packet
	Message string
}

func (e *AuthError) Error() string { return e.Message }
func (e *AuthError) Unwrap() error { return e.err }

// NewProtocolError creates an AuthError wrapping ErrProtocolError.
func NewProtocolError(pkt Packet, msg string) *AuthError {
	return &AuthError{err: ErrProtocolError, Packet: pkt, Message: msg}
}

// NewAuthFailedError creates an AuthError wrapping ErrAuthFailed.
func NewAuthFailedError(pkt Packet, msg string) *AuthError {
	return &AuthError{err: ErrAuthFailed, Packet: pkt, Message: msg}
}

// DisconnectError describes how a connection ended. Remote is true when the
// server sent the DISCONNECT. Cause is the local failure that led to a
// client DISCONNECT, if any.
type DisconnectError struct {
	ReasonCode ReasonCode
	Properties *Properties
	Remote     bool
	Cause      error
}

func (e *DisconnectError) Error() string {
	switch {
	case e.Remote:
		if rs := e.Properties.GetString(PropReasonString); rs != "" {
			return fmt.Sprintf("server disconnect: %s: %s", e.ReasonCode, rs)
		}
		return "server disconnect: " + e.ReasonCode.String()
	case e.Cause != nil:
		return fmt.Sprintf("disconnected: %s: %v", e.ReasonCode, e.Cause)
	default:
		return "disconnected: " + e.ReasonCode.String()
	}
}

// Unwrap exposes ErrServerDisconnect for remote disconnects and the cause
// for local ones.
func (e *DisconnectError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Remote {
		errs = append(errs, ErrServerDisconnect)
	} else {
		errs = append(errs, ErrConnectionClosed)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// ConnectError is returned when the server refuses a connection.
type ConnectError struct {
	err        error
	ReasonCode ReasonCode
	Properties *Properties
}

func (e *ConnectError) Error() string {
	return "connect failed: " + e.ReasonCode.String()
}

func (e *ConnectError) Unwrap() error { return e.err }

// NewConnectError creates a ConnectError from a CONNACK reason code.
func NewConnectError(reason ReasonCode, props *Properties) *ConnectError {
	base := ErrProtocolError
	switch reason {
	case ReasonBadUserNameOrPassword, ReasonNotAuthorized, ReasonBadAuthMethod, ReasonBanned:
		base = ErrAuthFailed
	}
	return &ConnectError{err: base, ReasonCode: reason, Properties: props}
}
