package mqttwire

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
)

// QUICConn carries the MQTT byte stream on one bidirectional QUIC stream.
type QUICConn struct {
	conn   *quic.Conn
	stream *quic.Stream

	closeOnce sync.Once
	closeErr  error
}

func (c *QUICConn) Read(b []byte) (int, error)  { return c.stream.Read(b) }
func (c *QUICConn) Write(b []byte) (int, error) { return c.stream.Write(b) }
func (c *QUICConn) LocalAddr() net.Addr         { return c.conn.LocalAddr() }
func (c *QUICConn) RemoteAddr() net.Addr        { return c.conn.RemoteAddr() }

// Close closes the stream and then the QUIC connection.
func (c *QUICConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.stream.Close()
		if err := c.conn.CloseWithError(0, ""); c.closeErr == nil {
			c.closeErr = err
		}
	})
	return c.closeErr
}

// SetDeadline sets the read and write deadlines.
func (c *QUICConn) SetDeadline(t time.Time) error {
	if err := c.stream.SetReadDeadline(t); err != nil {
		return err
	}
	return c.stream.SetWriteDeadline(t)
}

func (c *QUICConn) SetReadDeadline(t time.Time) error  { return c.stream.SetReadDeadline(t) }
func (c *QUICConn) SetWriteDeadline(t time.Time) error { return c.stream.SetWriteDeadline(t) }

// quicTLSConfig returns cfg with TLS 1.3 and the "mqtt" ALPN protocol.
func quicTLSConfig(cfg *tls.Config) *tls.Config {
	if cfg == nil {
		return &tls.Config{MinVersion: tls.VersionTLS13, NextProtos: []string{"mqtt"}}
	}
	if len(cfg.NextProtos) == 0 || cfg.MinVersion < tls.VersionTLS13 {
		cfg = cfg.Clone()
		if len(cfg.NextProtos) == 0 {
			cfg.NextProtos = []string{"mqtt"}
		}
		cfg.MinVersion = tls.VersionTLS13
	}
	return cfg
}

func dialQUIC(ctx context.Context, address string, cfg *tls.Config) (net.Conn, error) {
	conn, err := quic.DialAddr(ctx, address, quicTLSConfig(cfg), &quic.Config{
		KeepAlivePeriod: 30 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "failed to open stream")
		return nil, err
	}
	return &QUICConn{conn: conn, stream: stream}, nil
}
