package mqttwire

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketSubprotocol is the MQTT WebSocket subprotocol.
const WebSocketSubprotocol = "mqtt"

// WSConn adapts a WebSocket connection to net.Conn. Every Write is sent as
// one binary message; Read returns message payloads as a byte stream.
type WSConn struct {
	conn *websocket.Conn

	rmu sync.Mutex
	buf []byte

	wmu sync.Mutex
}

// NewWSConn wraps an established WebSocket connection.
func NewWSConn(conn *websocket.Conn) *WSConn {
	return &WSConn{conn: conn}
}

// Read reads from the current message, fetching the next one when it is
// used up.
func (c *WSConn) Read(b []byte) (int, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	for len(c.buf) == 0 {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		if messageType != websocket.BinaryMessage {
			return 0, fmt.Errorf("%w: non-binary WebSocket message", ErrProtocolViolation)
		}
		c.buf = data
	}

	n := copy(b, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}

// Write sends b as one binary message.
func (c *WSConn) Write(b []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if err := c.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *WSConn) Close() error                       { return c.conn.Close() }
func (c *WSConn) LocalAddr() net.Addr                { return c.conn.LocalAddr() }
func (c *WSConn) RemoteAddr() net.Addr               { return c.conn.RemoteAddr() }
func (c *WSConn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *WSConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }

// SetDeadline sets the read and write deadlines.
func (c *WSConn) SetDeadline(t time.Time) error {
	if err := c.conn.SetReadDeadline(t); err != nil {
		return err
	}
	return c.conn.SetWriteDeadline(t)
}

func dialWebSocket(ctx context.Context, cfg *TransportConfig, ep endpoint, secure bool) (net.Conn, error) {
	ws := cfg.WebSocket
	if ws == nil {
		ws = &WebSocketConfig{}
	}

	path := ws.Path
	if path == "" {
		path = ep.path
	}
	if path == "" {
		path = "/mqtt"
	}
	subprotocol := ws.Subprotocol
	if subprotocol == "" {
		subprotocol = WebSocketSubprotocol
	}

	u := url.URL{Scheme: "ws", Host: ep.address, Path: path}
	if secure {
		u.Scheme = "wss"
	}

	dialer := &websocket.Dialer{
		NetDialContext: func(ctx context.Context, _, addr string) (net.Conn, error) {
			return cfg.dialStream(ctx, addr)
		},
		TLSClientConfig: cfg.TLS,
		Subprotocols:    []string{subprotocol},
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}

	header := ws.Header
	if header == nil {
		header = http.Header{}
	}

	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("WebSocket dial %s: %w", u.String(), err)
	}
	return NewWSConn(conn), nil
}
