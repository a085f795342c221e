package mqttwire

import (
	"time"
)

// Default timeouts.
const (
	DefaultSocketConnectTimeout = 10 * time.Second
	DefaultMQTTConnectTimeout   = 60 * time.Second
	DefaultAuthTimeout          = 60 * time.Second
)

// connOptions holds the configuration of a Connection.
type connOptions struct {
	clientID   string
	username   string
	password   []byte
	keepAlive  uint16
	cleanStart bool
	will       *Will

	sessionExpiryInterval uint32
	receiveMaximum        uint16
	userProperties        []StringPair

	// maxPacketSize limits inbound packets and is announced in CONNECT.
	maxPacketSize uint32

	provider          EnhancedAuthProvider
	allowServerReAuth bool
	authTimeout       time.Duration

	transport TransportConfig

	logger   Logger
	metrics  Metrics
	loop     *EventLoop
	onPacket func(Packet)
}

func defaultOptions() *connOptions {
	return &connOptions{
		keepAlive:   60,
		cleanStart:  true,
		authTimeout: DefaultAuthTimeout,
		transport: TransportConfig{
			SocketConnectTimeout: DefaultSocketConnectTimeout,
			MQTTConnectTimeout:   DefaultMQTTConnectTimeout,
		},
		logger:  NewNoOpLogger(),
		metrics: &NoOpMetrics{},
	}
}

// Option configures a Connection.
type Option func(*connOptions)

// WithClientID sets the client identifier. An empty id with clean start
// lets the server assign one.
func WithClientID(id string) Option {
	return func(o *connOptions) {
		o.clientID = id
	}
}

// WithCredentials sets the username and password sent in CONNECT.
func WithCredentials(username, password string) Option {
	return func(o *connOptions) {
		o.username = username
		o.password = []byte(password)
	}
}

// WithKeepAlive sets the keep-alive interval in seconds.
func WithKeepAlive(seconds uint16) Option {
	return func(o *connOptions) {
		o.keepAlive = seconds
	}
}

// WithCleanStart sets whether to start with a clean session.
func WithCleanStart(clean bool) Option {
	return func(o *connOptions) {
		o.cleanStart = clean
	}
}

// WithWill sets the will message.
func WithWill(will *Will) Option {
	return func(o *connOptions) {
		o.will = will
	}
}

// WithSessionExpiryInterval sets the session expiry interval in seconds.
func WithSessionExpiryInterval(seconds uint32) Option {
	return func(o *connOptions) {
		o.sessionExpiryInterval = seconds
	}
}

// WithReceiveMaximum sets the receive maximum announced in CONNECT.
func WithReceiveMaximum(n uint16) Option {
	return func(o *connOptions) {
		o.receiveMaximum = n
	}
}

// WithUserProperty adds a user property to CONNECT.
func WithUserProperty(key, value string) Option {
	return func(o *connOptions) {
		o.userProperties = append(o.userProperties, StringPair{Key: key, Value: value})
	}
}

// WithEnhancedAuth enables enhanced authentication with provider.
func WithEnhancedAuth(provider EnhancedAuthProvider) Option {
	return func(o *connOptions) {
		o.provider = provider
	}
}

// WithAllowServerReAuth allows the server to start a reauthentication.
// Without it a server AUTH(REAUTHENTICATE) is a protocol error.
func WithAllowServerReAuth(allow bool) Option {
	return func(o *connOptions) {
		o.allowServerReAuth = allow
	}
}

// WithAuthTimeout sets how long to wait for the server during an
// authentication exchange. Non-positive values are ignored.
func WithAuthTimeout(d time.Duration) Option {
	return func(o *connOptions) {
		if d > 0 {
			o.authTimeout = d
		}
	}
}

// WithConnectTimeout sets how long Connect waits for the CONNACK.
// Non-positive values are ignored.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *connOptions) {
		if d > 0 {
			o.transport.MQTTConnectTimeout = d
		}
	}
}

// WithMaxPacketSize sets the largest packet this client accepts. Zero means
// no limit beyond the protocol maximum.
func WithMaxPacketSize(size uint32) Option {
	return func(o *connOptions) {
		if size > maxVarint+5 {
			size = 0
		}
		o.maxPacketSize = size
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(o *connOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *connOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithEventLoop runs the connection on a shared loop, typically picked from
// an EventLoopGroup. The connection never stops a loop it did not create.
func WithEventLoop(loop *EventLoop) Option {
	return func(o *connOptions) {
		o.loop = loop
	}
}

// WithOnPacket sets the handler for inbound packets the connection does not
// consume itself (everything except CONNACK, AUTH and DISCONNECT). It runs
// on the event loop and must not block.
func WithOnPacket(handler func(Packet)) Option {
	return func(o *connOptions) {
		o.onPacket = handler
	}
}

// WithTransport sets how Dial reaches the server. Zero timeouts in cfg keep
// their defaults.
func WithTransport(cfg TransportConfig) Option {
	return func(o *connOptions) {
		if cfg.SocketConnectTimeout <= 0 {
			cfg.SocketConnectTimeout = o.transport.SocketConnectTimeout
		}
		if cfg.MQTTConnectTimeout <= 0 {
			cfg.MQTTConnectTimeout = o.transport.MQTTConnectTimeout
		}
		o.transport = cfg
	}
}

func applyOptions(opts ...Option) *connOptions {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return options
}
