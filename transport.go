package mqttwire

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnsupportedScheme is returned for a server address with an unknown
// URL scheme.
var ErrUnsupportedScheme = errors.New("unsupported server address scheme")

// TransportConfig describes how to reach the server.
//
// ServerAddress is either host:port or a URL. Recognised schemes are tcp,
// mqtt, ssl, tls, mqtts, ws, wss, quic and unix; the URL scheme takes
// precedence over the TLS, WebSocket and QUIC fields.
type TransportConfig struct {
	ServerAddress string
	LocalAddress  string

	TLS       *tls.Config
	WebSocket *WebSocketConfig
	Proxy     *ProxyConfig
	QUIC      bool

	SocketConnectTimeout time.Duration
	MQTTConnectTimeout   time.Duration
}

// WebSocketConfig selects the WebSocket transport.
type WebSocketConfig struct {
	// Path is the request path, "/mqtt" when empty.
	Path string `yaml:"path"`

	// Subprotocol is the negotiated subprotocol, "mqtt" when empty.
	Subprotocol string `yaml:"subprotocol"`

	Header http.Header `yaml:"header"`
}

type transportKind int

const (
	transportTCP transportKind = iota
	transportTLS
	transportWebSocket
	transportQUIC
	transportUnix
)

type endpoint struct {
	kind    transportKind
	address string // host:port, or the socket path for unix
	path    string // WebSocket request path
}

// endpoint resolves ServerAddress against the transport fields.
func (c *TransportConfig) endpoint() (endpoint, error) {
	addr := c.ServerAddress
	if addr == "" {
		return endpoint{}, errors.New("server address is empty")
	}

	if !strings.Contains(addr, "://") {
		ep := endpoint{kind: transportTCP, address: addr}
		switch {
		case c.QUIC:
			ep.kind = transportQUIC
		case c.WebSocket != nil:
			ep.kind = transportWebSocket
		case c.TLS != nil:
			ep.kind = transportTLS
		}
		return ep, nil
	}

	u, err := url.Parse(addr)
	if err != nil {
		return endpoint{}, fmt.Errorf("invalid server address: %w", err)
	}

	switch u.Scheme {
	case "tcp", "mqtt":
		return endpoint{kind: transportTCP, address: hostPort(u, "1883")}, nil
	case "ssl", "tls", "mqtts":
		return endpoint{kind: transportTLS, address: hostPort(u, "8883")}, nil
	case "ws":
		return endpoint{kind: transportWebSocket, address: hostPort(u, "80"), path: u.Path}, nil
	case "wss":
		return endpoint{kind: transportWebSocket, address: hostPort(u, "443"), path: u.Path}, nil
	case "quic":
		return endpoint{kind: transportQUIC, address: hostPort(u, "14567")}, nil
	case "unix":
		return endpoint{kind: transportUnix, address: u.Path}, nil
	default:
		return endpoint{}, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
}

func hostPort(u *url.URL, defaultPort string) string {
	if u.Port() != "" {
		return u.Host
	}
	return net.JoinHostPort(u.Hostname(), defaultPort)
}

// Dial opens the byte stream to the server. SocketConnectTimeout bounds
// the whole dial, proxy and TLS handshakes included.
func (c *TransportConfig) Dial(ctx context.Context) (net.Conn, error) {
	ep, err := c.endpoint()
	if err != nil {
		return nil, err
	}

	if c.SocketConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.SocketConnectTimeout)
		defer cancel()
	}

	switch ep.kind {
	case transportQUIC:
		return dialQUIC(ctx, ep.address, c.TLS)
	case transportUnix:
		var d net.Dialer
		return d.DialContext(ctx, "unix", ep.address)
	case transportWebSocket:
		secure := c.TLS != nil || strings.HasPrefix(c.ServerAddress, "wss://")
		return dialWebSocket(ctx, c, ep, secure)
	}

	conn, err := c.dialStream(ctx, ep.address)
	if err != nil {
		return nil, err
	}
	if ep.kind == transportTLS {
		return tlsHandshake(ctx, conn, c.TLS, ep.address)
	}
	return conn, nil
}

// dialStream opens a TCP connection, through the proxy when one is set.
func (c *TransportConfig) dialStream(ctx context.Context, address string) (net.Conn, error) {
	forward := net.Dialer{}
	if c.LocalAddress != "" {
		local, err := net.ResolveTCPAddr("tcp", c.LocalAddress)
		if err != nil {
			return nil, fmt.Errorf("invalid local address: %w", err)
		}
		forward.LocalAddr = local
	}

	if c.Proxy == nil || c.Proxy.URL == "" {
		return forward.DialContext(ctx, "tcp", address)
	}

	pd, err := NewProxyDialer(c.Proxy.URL, c.Proxy.Username, c.Proxy.Password)
	if err != nil {
		return nil, err
	}
	pd.forward = forward
	return pd.DialContext(ctx, "tcp", address)
}

func tlsHandshake(ctx context.Context, conn net.Conn, cfg *tls.Config, address string) (net.Conn, error) {
	if cfg == nil {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if cfg.ServerName == "" && !cfg.InsecureSkipVerify {
		cfg = cfg.Clone()
		host, _, err := net.SplitHostPort(address)
		if err != nil {
			host = address
		}
		cfg.ServerName = host
	}

	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("TLS handshake: %w", err)
	}
	return tlsConn, nil
}
