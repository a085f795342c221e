package mqttwire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadyConnected is returned by a second call to Connect.
var ErrAlreadyConnected = errors.New("connect already called")

// Connection is one MQTT 5 client connection. It owns the CONNECT/CONNACK
// handshake, enhanced authentication and reauthentication. Other inbound
// packets are handed to the WithOnPacket handler.
//
// Protocol state lives on an event loop. Blocking writes run on a separate
// writer loop so the event loop never waits on the network.
type Connection struct {
	id     string
	opts   *connOptions
	conn   net.Conn
	logger Logger

	loop     *EventLoop
	ownsLoop bool
	writer   *EventLoop
	encoders *Encoders
	metrics  *connMetrics
	auth     *authHandler
	ka       *keepAlive

	started   atomic.Bool
	connected atomic.Bool
	maxOut    atomic.Uint32

	// owned by loop
	closing         bool
	connackReceived bool

	connectResult chan connectResult

	errMu sync.Mutex
	err   error
	done  chan struct{}
}

type connectResult struct {
	connack *ConnackPacket
	err     error
}

// Dial opens the transport described by WithTransport and wraps it in a
// Connection. Call Connect to run the handshake.
func Dial(ctx context.Context, opts ...Option) (*Connection, error) {
	o := applyOptions(opts...)
	conn, err := o.transport.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", o.transport.ServerAddress, err)
	}
	return newConnection(conn, o), nil
}

// NewConnection wraps an established byte stream.
func NewConnection(conn net.Conn, opts ...Option) *Connection {
	return newConnection(conn, applyOptions(opts...))
}

func newConnection(conn net.Conn, o *connOptions) *Connection {
	c := &Connection{
		id:            uuid.NewString(),
		opts:          o,
		conn:          conn,
		encoders:      NewEncoders(),
		metrics:       newConnMetrics(o.metrics),
		connectResult: make(chan connectResult, 1),
		done:          make(chan struct{}),
	}
	c.logger = o.logger.WithFields(LogFields{LogFieldConnectionID: c.id})
	o.logger = c.logger

	c.loop = o.loop
	if c.loop == nil {
		c.loop = NewEventLoop(c.logger)
		c.ownsLoop = true
	}
	c.writer = NewEventLoop(c.logger)
	c.auth = newAuthHandler(c, c.loop, o)
	c.ka = newKeepAlive(o.keepAlive)
	return c
}

// ID returns the connection id used in logs.
func (c *Connection) ID() string { return c.id }

// Connect sends CONNECT and waits until the server accepted the connection
// and connect time authentication finished. The MQTT connect timeout of the
// transport configuration bounds the wait.
func (c *Connection) Connect(ctx context.Context) (*ConnackPacket, error) {
	if !c.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyConnected
	}

	if d := c.opts.transport.MQTTConnectTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	c.metrics.connectionOpened()
	go c.readLoop()

	connect := c.buildConnect()
	if !c.loop.Execute(func() { c.auth.startConnect(connect) }) {
		c.Close()
		return nil, ErrConnectionClosed
	}

	select {
	case res := <-c.connectResult:
		if res.err != nil {
			return nil, res.err
		}
		return res.connack, nil
	case <-ctx.Done():
		err := fmt.Errorf("connect: %w", ctx.Err())
		c.closeWithError(err)
		return nil, err
	}
}

func (c *Connection) buildConnect() *ConnectPacket {
	o := c.opts
	connect := &ConnectPacket{
		ClientID:   o.clientID,
		CleanStart: o.cleanStart,
		KeepAlive:  o.keepAlive,
		Username:   o.username,
		Password:   o.password,
		Will:       o.will,
	}
	if connect.ClientID == "" && !connect.CleanStart {
		connect.ClientID = GenerateClientID()
	}
	if o.sessionExpiryInterval > 0 {
		connect.Props.Set(PropSessionExpiryInterval, o.sessionExpiryInterval)
	}
	if o.receiveMaximum > 0 {
		connect.Props.Set(PropReceiveMaximum, o.receiveMaximum)
	}
	if o.maxPacketSize > 0 {
		connect.Props.Set(PropMaximumPacketSize, o.maxPacketSize)
	}
	for _, up := range o.userProperties {
		connect.Props.Add(PropUserProperty, up)
	}
	return connect
}

// GenerateClientID returns a random client identifier of 23 characters,
// the length every server must accept.
func GenerateClientID() string {
	return "mqttwire" + strings.ReplaceAll(uuid.NewString(), "-", "")[:15]
}

// ReAuthAsync starts a client initiated reauthentication. It fails at once
// with ErrNotConnected when the connection is not active, and with
// ErrReAuthPending while another exchange is running.
func (c *Connection) ReAuthAsync() *Flow {
	return c.auth.reauth()
}

// ReAuth reauthenticates and waits for the outcome. When ctx ends first
// the flow is cancelled; the exchange itself still runs to completion.
func (c *Connection) ReAuth(ctx context.Context) error {
	flow := c.ReAuthAsync()
	if err := flow.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			flow.Cancel()
		}
		return err
	}
	return nil
}

// AuthState returns the state of the authentication exchange.
func (c *Connection) AuthState() AuthState { return c.auth.State() }

// Send writes a packet and waits until it is on the wire. CONNECT, AUTH
// and DISCONNECT are managed by the connection and rejected here.
func (c *Connection) Send(ctx context.Context, pkt Packet) error {
	switch pkt.(type) {
	case *ConnectPacket, *AuthPacket, *DisconnectPacket:
		return fmt.Errorf("%w: %s is managed by the connection", ErrProtocolViolation, pkt.Type())
	}
	if !c.connected.Load() {
		return ErrNotConnected
	}

	errCh := make(chan error, 1)
	maxSize := c.maxOut.Load()
	if !c.writer.Execute(func() { errCh <- c.write(pkt, maxSize) }) {
		return ErrNotConnected
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect sends DISCONNECT with code and closes the connection.
func (c *Connection) Disconnect(ctx context.Context, code ReasonCode) error {
	if !c.loop.Execute(func() { c.disconnectWith(code, nil) }) {
		return ErrNotConnected
	}
	select {
	case <-c.done:
		return nil
	case <-c.loop.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the connection without sending DISCONNECT and waits for it
// to shut down.
func (c *Connection) Close() error {
	c.closeWithError(ErrConnectionClosed)
	select {
	case <-c.done:
	case <-c.loop.Done():
	}
	return nil
}

func (c *Connection) closeWithError(err error) {
	c.loop.Execute(func() { c.shutdown(err, nil) })
}

// Done is closed when the connection has shut down.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Err returns why the connection closed, nil while it is open.
func (c *Connection) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Connection) readLoop() {
	for {
		pkt, n, err := ReadPacket(c.conn, c.opts.maxPacketSize)
		if err != nil {
			c.loop.Execute(func() { c.readFailed(err) })
			return
		}
		c.metrics.packetReceived(pkt.Type(), n)
		c.loop.Execute(func() { c.handleInbound(pkt) })
	}
}

func (c *Connection) readFailed(err error) {
	if c.closing {
		return
	}
	switch {
	case errors.Is(err, ErrPacketTooLarge):
		c.disconnectWith(ReasonPacketTooLarge, err)
	case errors.Is(err, ErrMalformedPacket), errors.Is(err, ErrVarintMalformed),
		errors.Is(err, ErrVarintOverlong), errors.Is(err, ErrInvalidPacketType),
		errors.Is(err, ErrInvalidPacketFlags):
		c.disconnectWith(ReasonMalformedPacket, err)
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		c.shutdown(ErrConnectionClosed, nil)
	default:
		c.shutdown(fmt.Errorf("%w: %w", ErrConnectionClosed, err), nil)
	}
}

func (c *Connection) handleInbound(pkt Packet) {
	if c.closing {
		return
	}
	c.logger.Debug("packet received", LogFields{LogFieldPacketType: pkt.Type().String()})

	switch p := pkt.(type) {
	case *ConnackPacket:
		if c.connackReceived {
			c.disconnectWith(ReasonProtocolError, NewProtocolError(p, "Must not receive second CONNACK."))
			return
		}
		c.connackReceived = true
		c.auth.onConnack(p)
	case *AuthPacket:
		c.auth.onAuth(p)
	case *DisconnectPacket:
		c.auth.onDisconnect(p)
		c.shutdown(&DisconnectError{ReasonCode: p.ReasonCode, Properties: &p.Props, Remote: true}, nil)
	case *ConnectPacket, *SubscribePacket, *UnsubscribePacket, *PingreqPacket:
		c.disconnectWith(ReasonProtocolError, NewProtocolError(p, "Must not receive "+p.Type().String()+" from the server."))
	default:
		if !c.connackReceived {
			c.disconnectWith(ReasonProtocolError, NewProtocolError(p, "Must not receive "+p.Type().String()+" before CONNACK."))
			return
		}
		if _, ok := p.(*PingrespPacket); ok {
			c.ka.pingAcked()
		}
		if c.opts.onPacket != nil {
			c.dispatch(pkt)
		}
	}
}

func (c *Connection) dispatch(pkt Packet) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("packet handler panicked", LogFields{
				LogFieldPacketType: pkt.Type().String(),
				LogFieldError:      fmt.Sprint(r),
			})
		}
	}()
	c.opts.onPacket(pkt)
}

// write encodes and writes one packet. It runs on the writer loop.
func (c *Connection) write(pkt Packet, maxSize uint32) error {
	n, err := c.encoders.WritePacket(c.conn, pkt, maxSize)
	if err != nil {
		if errors.Is(err, ErrPacketTooLarge) {
			c.metrics.encodeError(pkt.Type())
		}
		c.logger.Debug("packet write failed", LogFields{
			LogFieldPacketType: pkt.Type().String(),
			LogFieldError:      err,
		})
		return err
	}
	c.metrics.packetSent(pkt.Type(), n)
	c.ka.markSent(time.Now())
	return nil
}

// shutdown closes the connection once. final, if set, is written before
// the transport is closed.
func (c *Connection) shutdown(cause error, final Packet) {
	if c.closing {
		return
	}
	c.closing = true
	c.connected.Store(false)
	c.ka.stop()

	c.errMu.Lock()
	c.err = cause
	c.errMu.Unlock()

	c.auth.onClose(cause)

	select {
	case c.connectResult <- connectResult{err: cause}:
	default:
	}

	if c.started.Load() {
		c.metrics.connectionClosed()
	}
	c.logger.Debug("connection closed", LogFields{LogFieldError: cause})

	maxSize := c.maxOut.Load()
	finish := func() {
		if final != nil {
			_ = c.write(final, maxSize)
		}
		_ = c.conn.Close()
		if c.ownsLoop {
			c.loop.Stop()
		}
		close(c.done)
	}
	if !c.writer.Execute(finish) {
		finish()
	}
	c.writer.Stop()
}

func (c *Connection) disconnectWith(code ReasonCode, cause error) {
	d := &DisconnectPacket{ReasonCode: code}
	if cause != nil {
		d.Props.Set(PropReasonString, cause.Error())
	}
	c.shutdown(&DisconnectError{ReasonCode: code, Cause: cause}, d)
}

// authChannel

func (c *Connection) active() bool {
	return c.connected.Load()
}

func (c *Connection) writePacket(pkt Packet, onWritten func(error)) {
	maxSize := c.maxOut.Load()
	ok := c.writer.Execute(func() {
		err := c.write(pkt, maxSize)
		if onWritten != nil {
			c.loop.Execute(func() { onWritten(err) })
		}
	})
	if !ok && onWritten != nil {
		onWritten(ErrConnectionClosed)
	}
}

func (c *Connection) disconnect(code ReasonCode, cause error) {
	c.disconnectWith(code, cause)
}

func (c *Connection) close(cause error) {
	c.shutdown(cause, nil)
}

func (c *Connection) connectAccepted(connack *ConnackPacket) {
	c.maxOut.Store(connack.MaximumPacketSize())
	c.connected.Store(true)
	interval := c.ka.applyConnack(connack)
	c.logger.Info("connected", LogFields{
		LogFieldClientID:   c.opts.clientID,
		LogFieldReasonCode: connack.ReasonCode.String(),
		LogFieldKeepAlive:  interval.String(),
	})
	if interval > 0 {
		c.scheduleKeepAlive(interval)
	}

	select {
	case c.connectResult <- connectResult{connack: connack}:
	default:
	}
}

func (c *Connection) scheduleKeepAlive(d time.Duration) {
	c.ka.timer = c.loop.Schedule(d, c.onKeepAlive)
}

func (c *Connection) onKeepAlive() {
	if c.closing {
		return
	}
	ping, expired, wait := c.ka.next(time.Now())
	if expired {
		c.disconnectWith(ReasonKeepAliveTimeout, ErrKeepAliveTimeout)
		return
	}
	if ping {
		c.logger.Debug("keep alive ping", nil)
		c.writePacket(&PingreqPacket{}, nil)
	}
	c.scheduleKeepAlive(wait)
}
