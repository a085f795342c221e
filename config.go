package mqttwire

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned for configuration files that cannot be used.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the file form of the connection options.
type Config struct {
	Server       string `yaml:"server"`
	LocalAddress string `yaml:"local_address"`

	ClientID              string `yaml:"client_id"`
	Username              string `yaml:"username"`
	Password              string `yaml:"password"`
	KeepAlive             uint16 `yaml:"keep_alive"`
	CleanStart            *bool  `yaml:"clean_start"`
	SessionExpiryInterval uint32 `yaml:"session_expiry_interval"`
	ReceiveMaximum        uint16 `yaml:"receive_maximum"`
	MaxPacketSize         uint32 `yaml:"max_packet_size"`

	Timeouts  TimeoutConfig    `yaml:"timeouts"`
	TLS       *TLSFileConfig   `yaml:"tls"`
	WebSocket *WebSocketConfig `yaml:"websocket"`
	Proxy     *ProxyConfig     `yaml:"proxy"`
	QUIC      bool             `yaml:"quic"`
	Auth      AuthConfig       `yaml:"auth"`
	Log       LogConfig        `yaml:"log"`
}

// TimeoutConfig holds the connection timeouts. Zero keeps the default.
type TimeoutConfig struct {
	SocketConnect time.Duration `yaml:"socket_connect"`
	MQTTConnect   time.Duration `yaml:"mqtt_connect"`
	Auth          time.Duration `yaml:"auth"`
}

// TLSFileConfig points to PEM files.
type TLSFileConfig struct {
	CAFile             string `yaml:"ca_file"`
	CertFile           string `yaml:"cert_file"`
	KeyFile            string `yaml:"key_file"`
	ServerName         string `yaml:"server_name"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// AuthConfig selects enhanced authentication. Only the SCRAM methods can be
// configured from a file; other providers are passed with WithEnhancedAuth.
type AuthConfig struct {
	Method            string `yaml:"method"`
	AllowServerReAuth bool   `yaml:"allow_server_reauth"`
}

// LogConfig configures the production logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses a YAML configuration.
func ParseConfig(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the parts of the configuration that do not need the
// file system.
func (c *Config) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("%w: server is required", ErrInvalidConfig)
	}
	transport := TransportConfig{ServerAddress: c.Server, QUIC: c.QUIC, WebSocket: c.WebSocket}
	if _, err := transport.endpoint(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Auth.Method != "" {
		if _, ok := ParseSCRAMHash(c.Auth.Method); !ok {
			return fmt.Errorf("%w: unsupported auth method %q", ErrInvalidConfig, c.Auth.Method)
		}
		if c.Username == "" {
			return fmt.Errorf("%w: auth method %s needs a username", ErrInvalidConfig, c.Auth.Method)
		}
	}
	if c.TLS != nil && (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return fmt.Errorf("%w: tls cert_file and key_file go together", ErrInvalidConfig)
	}
	return nil
}

// Options converts the configuration into connection options. logger is
// used by the connection and the SCRAM provider and may be nil.
func (c *Config) Options(logger Logger) ([]Option, error) {
	transport := TransportConfig{
		ServerAddress:        c.Server,
		LocalAddress:         c.LocalAddress,
		WebSocket:            c.WebSocket,
		Proxy:                c.Proxy,
		QUIC:                 c.QUIC,
		SocketConnectTimeout: c.Timeouts.SocketConnect,
		MQTTConnectTimeout:   c.Timeouts.MQTTConnect,
	}
	if c.TLS != nil {
		tlsConfig, err := c.TLS.load()
		if err != nil {
			return nil, err
		}
		transport.TLS = tlsConfig
	}

	opts := []Option{
		WithTransport(transport),
		WithClientID(c.ClientID),
		WithAuthTimeout(c.Timeouts.Auth),
		WithAllowServerReAuth(c.Auth.AllowServerReAuth),
		WithSessionExpiryInterval(c.SessionExpiryInterval),
		WithReceiveMaximum(c.ReceiveMaximum),
		WithMaxPacketSize(c.MaxPacketSize),
		WithLogger(logger),
	}
	if c.KeepAlive > 0 {
		opts = append(opts, WithKeepAlive(c.KeepAlive))
	}
	if c.CleanStart != nil {
		opts = append(opts, WithCleanStart(*c.CleanStart))
	}

	if c.Auth.Method != "" {
		hashType, _ := ParseSCRAMHash(c.Auth.Method)
		opts = append(opts, WithEnhancedAuth(NewSCRAMProvider(hashType, c.Username, c.Password, logger)))
	} else if c.Username != "" || c.Password != "" {
		opts = append(opts, WithCredentials(c.Username, c.Password))
	}
	return opts, nil
}

func (t *TLSFileConfig) load() (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         t.ServerName,
		InsecureSkipVerify: t.InsecureSkipVerify, //nolint:gosec // opt-in for test brokers
	}

	if t.CAFile != "" {
		pem, err := os.ReadFile(t.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read tls ca_file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: no certificates in %s", ErrInvalidConfig, t.CAFile)
		}
		cfg.RootCAs = pool
	}

	if t.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load tls key pair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}
