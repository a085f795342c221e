package mqttwire

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // SHA-1 required for SCRAM-SHA-1 compatibility
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

// SCRAM errors.
var (
	ErrSCRAMInvalidServerMessage = errors.New("invalid SCRAM server message")
	ErrSCRAMNonceMismatch        = errors.New("SCRAM server nonce does not extend the client nonce")
	ErrSCRAMServerSignature      = errors.New("SCRAM server signature mismatch")
	ErrSCRAMUnexpectedMessage    = errors.New("unexpected SCRAM message")
)

// minSCRAMIterations is the lowest iteration count a server may demand.
const minSCRAMIterations = 4096

// SCRAMHash represents the hash algorithm used for SCRAM authentication.
type SCRAMHash int

const (
	// SCRAMHashSHA1 uses SHA-1 (for legacy compatibility, not recommended for new deployments).
	SCRAMHashSHA1 SCRAMHash = iota
	// SCRAMHashSHA256 uses SHA-256 (recommended).
	SCRAMHashSHA256
	// SCRAMHashSHA512 uses SHA-512.
	SCRAMHashSHA512
)

// String returns the MQTT auth method name for this hash.
func (h SCRAMHash) String() string {
	switch h {
	case SCRAMHashSHA1:
		return "SCRAM-SHA-1"
	case SCRAMHashSHA512:
		return "SCRAM-SHA-512"
	default:
		return "SCRAM-SHA-256"
	}
}

// ParseSCRAMHash maps an auth method name to its hash.
func ParseSCRAMHash(method string) (SCRAMHash, bool) {
	switch strings.ToUpper(method) {
	case "SCRAM-SHA-1":
		return SCRAMHashSHA1, true
	case "SCRAM-SHA-256":
		return SCRAMHashSHA256, true
	case "SCRAM-SHA-512":
		return SCRAMHashSHA512, true
	default:
		return SCRAMHashSHA256, false
	}
}

func (h SCRAMHash) hashFunc() func() hash.Hash {
	switch h {
	case SCRAMHashSHA1:
		return sha1.New
	case SCRAMHashSHA512:
		return sha512.New
	default:
		return sha256.New
	}
}

func (h SCRAMHash) keySize() int {
	switch h {
	case SCRAMHashSHA1:
		return 20
	case SCRAMHashSHA512:
		return 64
	default:
		return 32
	}
}

// SCRAMCredentials are the keys a server stores for a user instead of the
// password.
type SCRAMCredentials struct {
	Hash       SCRAMHash
	Salt       []byte
	Iterations int

	// StoredKey is H(ClientKey) where ClientKey = HMAC(SaltedPassword, "Client Key").
	StoredKey []byte

	// ServerKey is HMAC(SaltedPassword, "Server Key").
	ServerKey []byte
}

// ComputeSCRAMCredentials derives the server side credentials for password.
func ComputeSCRAMCredentials(hashType SCRAMHash, password string, salt []byte, iterations int) *SCRAMCredentials {
	keys := deriveSCRAMKeys(hashType, password, salt, iterations)
	return &SCRAMCredentials{
		Hash:       hashType,
		Salt:       salt,
		Iterations: iterations,
		StoredKey:  keys.storedKey,
		ServerKey:  keys.serverKey,
	}
}

// GenerateSalt generates a random salt for SCRAM credential computation.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

type scramKeys struct {
	clientKey []byte
	storedKey []byte
	serverKey []byte
}

func deriveSCRAMKeys(hashType SCRAMHash, password string, salt []byte, iterations int) scramKeys {
	hashFunc := hashType.hashFunc()

	// SaltedPassword = PBKDF2(password, salt, iterations, keySize, Hash)
	salted := pbkdf2.Key([]byte(password), salt, iterations, hashType.keySize(), hashFunc)

	clientKey := scramHMAC(hashFunc, salted, "Client Key")
	h := hashFunc()
	h.Write(clientKey)

	return scramKeys{
		clientKey: clientKey,
		storedKey: h.Sum(nil),
		serverKey: scramHMAC(hashFunc, salted, "Server Key"),
	}
}

func scramHMAC(hashFunc func() hash.Hash, key []byte, msg string) []byte {
	mac := hmac.New(hashFunc, key)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}

// scramExchange is one client side SCRAM conversation.
type scramExchange struct {
	clientFirstBare string
	clientNonce     string
	serverSignature []byte
}

// SCRAMProvider authenticates with SCRAM-SHA-1, SCRAM-SHA-256 or
// SCRAM-SHA-512 (RFC 5802, without channel binding). It is used for the
// connect exchange and for every reauthentication.
type SCRAMProvider struct {
	hash     SCRAMHash
	username string
	password string
	logger   Logger

	mu       sync.Mutex
	exchange *scramExchange

	// nonce is replaced in tests.
	nonce func() (string, error)
}

// NewSCRAMProvider creates a provider for username and password.
func NewSCRAMProvider(hashType SCRAMHash, username, password string, logger Logger) *SCRAMProvider {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &SCRAMProvider{
		hash:     hashType,
		username: username,
		password: password,
		logger:   logger,
		nonce:    generateSCRAMNonce,
	}
}

// Method implements EnhancedAuthProvider.
func (p *SCRAMProvider) Method() string { return p.hash.String() }

// OnAuth puts the client-first-message into CONNECT.
func (p *SCRAMProvider) OnAuth(_ context.Context, _ *ConnectPacket, out *AuthBuilder) error {
	return p.start(out)
}

// OnReAuth puts a fresh client-first-message into AUTH(REAUTHENTICATE).
func (p *SCRAMProvider) OnReAuth(_ context.Context, out *AuthBuilder) error {
	return p.start(out)
}

// OnServerReAuth answers the server with a fresh client-first-message.
func (p *SCRAMProvider) OnServerReAuth(_ context.Context, _ *AuthPacket, out *AuthBuilder) error {
	return p.start(out)
}

func (p *SCRAMProvider) start(out *AuthBuilder) error {
	nonce, err := p.nonce()
	if err != nil {
		return fmt.Errorf("scram nonce: %w", err)
	}

	bare := "n=" + scramEscape(p.username) + ",r=" + nonce

	p.mu.Lock()
	p.exchange = &scramExchange{clientFirstBare: bare, clientNonce: nonce}
	p.mu.Unlock()

	// gs2 header "n,,": no channel binding, no authzid
	out.Data = []byte("n,," + bare)
	return nil
}

// OnContinue answers the server-first-message with the client proof.
func (p *SCRAMProvider) OnContinue(_ context.Context, in *AuthPacket, out *AuthBuilder) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ex := p.exchange
	if ex == nil || ex.serverSignature != nil {
		return ErrSCRAMUnexpectedMessage
	}

	serverFirst := string(in.Data())
	attrs := parseSCRAMAttributes(serverFirst)
	if msg, ok := attrs['e']; ok {
		return fmt.Errorf("%w: server error %q", ErrAuthFailed, msg)
	}

	nonce := attrs['r']
	if !strings.HasPrefix(nonce, ex.clientNonce) || len(nonce) == len(ex.clientNonce) {
		return ErrSCRAMNonceMismatch
	}
	salt, err := base64.StdEncoding.DecodeString(attrs['s'])
	if err != nil || len(salt) == 0 {
		return fmt.Errorf("%w: bad salt", ErrSCRAMInvalidServerMessage)
	}
	iterations, err := strconv.Atoi(attrs['i'])
	if err != nil || iterations < minSCRAMIterations {
		return fmt.Errorf("%w: bad iteration count %q", ErrSCRAMInvalidServerMessage, attrs['i'])
	}

	keys := deriveSCRAMKeys(p.hash, p.password, salt, iterations)
	hashFunc := p.hash.hashFunc()

	withoutProof := "c=biws,r=" + nonce
	authMessage := ex.clientFirstBare + "," + serverFirst + "," + withoutProof

	signature := scramHMAC(hashFunc, keys.storedKey, authMessage)
	proof := make([]byte, len(keys.clientKey))
	for i := range proof {
		proof[i] = keys.clientKey[i] ^ signature[i]
	}
	ex.serverSignature = scramHMAC(hashFunc, keys.serverKey, authMessage)

	out.Data = []byte(withoutProof + ",p=" + base64.StdEncoding.EncodeToString(proof))
	return nil
}

// OnAuthSuccess verifies the server-final-message carried by CONNACK.
func (p *SCRAMProvider) OnAuthSuccess(_ context.Context, connack *ConnackPacket) error {
	return p.verify(connack.Props.GetBinary(PropAuthenticationData))
}

// OnReAuthSuccess verifies the server-final-message carried by AUTH(SUCCESS).
func (p *SCRAMProvider) OnReAuthSuccess(_ context.Context, in *AuthPacket) error {
	return p.verify(in.Data())
}

func (p *SCRAMProvider) verify(serverFinal []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ex := p.exchange
	p.exchange = nil
	if ex == nil || ex.serverSignature == nil {
		return ErrSCRAMUnexpectedMessage
	}

	attrs := parseSCRAMAttributes(string(serverFinal))
	if msg, ok := attrs['e']; ok {
		return fmt.Errorf("%w: server error %q", ErrAuthFailed, msg)
	}
	got, err := base64.StdEncoding.DecodeString(attrs['v'])
	if err != nil {
		return fmt.Errorf("%w: bad verifier", ErrSCRAMInvalidServerMessage)
	}
	if !hmac.Equal(got, ex.serverSignature) {
		return ErrSCRAMServerSignature
	}
	return nil
}

func (p *SCRAMProvider) reset() {
	p.mu.Lock()
	p.exchange = nil
	p.mu.Unlock()
}

// OnAuthRejected implements EnhancedAuthProvider.
func (p *SCRAMProvider) OnAuthRejected(connack *ConnackPacket) {
	p.reset()
	p.logger.Warn("scram authentication rejected", LogFields{
		LogFieldAuthMethod: p.Method(),
		LogFieldReasonCode: connack.ReasonCode.String(),
	})
}

// OnAuthError implements EnhancedAuthProvider.
func (p *SCRAMProvider) OnAuthError(err error) {
	p.reset()
	p.logger.Warn("scram authentication failed", LogFields{LogFieldAuthMethod: p.Method(), LogFieldError: err})
}

// OnReAuthRejected implements EnhancedAuthProvider.
func (p *SCRAMProvider) OnReAuthRejected(disconnect *DisconnectPacket) {
	p.reset()
	p.logger.Warn("scram reauthentication rejected", LogFields{
		LogFieldAuthMethod: p.Method(),
		LogFieldReasonCode: disconnect.ReasonCode.String(),
	})
}

// OnReAuthError implements EnhancedAuthProvider.
func (p *SCRAMProvider) OnReAuthError(err error) {
	p.reset()
	p.logger.Warn("scram reauthentication failed", LogFields{LogFieldAuthMethod: p.Method(), LogFieldError: err})
}

// scramEscape encodes a username as a SCRAM saslname.
func scramEscape(s string) string {
	s = strings.ReplaceAll(s, "=", "=3D")
	return strings.ReplaceAll(s, ",", "=2C")
}

// parseSCRAMAttributes splits "a=value,b=value" into a map keyed by the
// attribute letter.
func parseSCRAMAttributes(msg string) map[byte]string {
	attrs := make(map[byte]string)
	for _, part := range strings.Split(msg, ",") {
		if len(part) < 2 || part[1] != '=' {
			continue
		}
		attrs[part[0]] = part[2:]
	}
	return attrs
}

func generateSCRAMNonce() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
