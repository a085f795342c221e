package mqttwire

import (
	"bytes"
	"context"
	"crypto/hmac"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scramTestServer is the server half of a SCRAM exchange.
type scramTestServer struct {
	creds       *SCRAMCredentials
	nonce       string
	firstBare   string
	serverFirst string
}

func (s *scramTestServer) first(clientFirst []byte) ([]byte, error) {
	msg, ok := strings.CutPrefix(string(clientFirst), "n,,")
	if !ok {
		return nil, errors.New("missing gs2 header")
	}
	s.firstBare = msg
	attrs := parseSCRAMAttributes(msg)
	s.serverFirst = "r=" + attrs['r'] + s.nonce +
		",s=" + base64.StdEncoding.EncodeToString(s.creds.Salt) +
		",i=" + strconv.Itoa(s.creds.Iterations)
	return []byte(s.serverFirst), nil
}

func (s *scramTestServer) final(clientFinal []byte) ([]byte, error) {
	msg := string(clientFinal)
	idx := strings.LastIndex(msg, ",p=")
	if idx < 0 {
		return nil, errors.New("missing proof")
	}
	proof, err := base64.StdEncoding.DecodeString(msg[idx+3:])
	if err != nil {
		return nil, err
	}

	hashFunc := s.creds.Hash.hashFunc()
	authMessage := s.firstBare + "," + s.serverFirst + "," + msg[:idx]
	signature := scramHMAC(hashFunc, s.creds.StoredKey, authMessage)
	if len(proof) != len(signature) {
		return nil, errors.New("bad proof length")
	}

	clientKey := make([]byte, len(proof))
	for i := range proof {
		clientKey[i] = proof[i] ^ signature[i]
	}
	h := hashFunc()
	h.Write(clientKey)
	if !hmac.Equal(h.Sum(nil), s.creds.StoredKey) {
		return []byte("e=invalid-proof"), nil
	}

	serverSignature := scramHMAC(hashFunc, s.creds.ServerKey, authMessage)
	return []byte("v=" + base64.StdEncoding.EncodeToString(serverSignature)), nil
}

func fixedNonce(nonce string) func() (string, error) {
	return func() (string, error) { return nonce, nil }
}

func scramAuthPacket(method string, data []byte) *AuthPacket {
	return authPacket(ReasonContinueAuth, method, data)
}

func TestSCRAMHashString(t *testing.T) {
	tests := []struct {
		hash SCRAMHash
		want string
	}{
		{SCRAMHashSHA1, "SCRAM-SHA-1"},
		{SCRAMHashSHA256, "SCRAM-SHA-256"},
		{SCRAMHashSHA512, "SCRAM-SHA-512"},
		{SCRAMHash(99), "SCRAM-SHA-256"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.hash.String())
		})
	}
}

func TestParseSCRAMHash(t *testing.T) {
	tests := []struct {
		method string
		want   SCRAMHash
		ok     bool
	}{
		{"SCRAM-SHA-1", SCRAMHashSHA1, true},
		{"scram-sha-256", SCRAMHashSHA256, true},
		{"SCRAM-SHA-512", SCRAMHashSHA512, true},
		{"PLAIN", SCRAMHashSHA256, false},
		{"", SCRAMHashSHA256, false},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			got, ok := ParseSCRAMHash(tt.method)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeSCRAMCredentials(t *testing.T) {
	salt := []byte("0123456789abcdef")

	for _, h := range []SCRAMHash{SCRAMHashSHA1, SCRAMHashSHA256, SCRAMHashSHA512} {
		t.Run(h.String(), func(t *testing.T) {
			creds := ComputeSCRAMCredentials(h, "secret", salt, 4096)

			assert.Equal(t, h, creds.Hash)
			assert.Equal(t, salt, creds.Salt)
			assert.Equal(t, 4096, creds.Iterations)
			assert.Len(t, creds.StoredKey, h.keySize())
			assert.Len(t, creds.ServerKey, h.keySize())
			assert.NotEqual(t, creds.StoredKey, creds.ServerKey)

			again := ComputeSCRAMCredentials(h, "secret", salt, 4096)
			assert.Equal(t, creds, again)

			other := ComputeSCRAMCredentials(h, "other", salt, 4096)
			assert.NotEqual(t, creds.StoredKey, other.StoredKey)
		})
	}
}

func TestGenerateSalt(t *testing.T) {
	a, err := GenerateSalt()
	require.NoError(t, err)
	b, err := GenerateSalt()
	require.NoError(t, err)

	assert.Len(t, a, 16)
	assert.False(t, bytes.Equal(a, b))
}

func TestSCRAMProviderTestVectors(t *testing.T) {
	tests := []struct {
		name        string
		hash        SCRAMHash
		nonce       string
		clientFirst string
		serverFirst string
		clientFinal string
		serverFinal string
	}{
		{
			name:        "rfc 5802 sha-1",
			hash:        SCRAMHashSHA1,
			nonce:       "fyko+d2lbbFgONRv9qkxdawL",
			clientFirst: "n,,n=user,r=fyko+d2lbbFgONRv9qkxdawL",
			serverFirst: "r=fyko+d2lbbFgONRv9qkxdawL3rfcNHYJY1ZVvWVs7j,s=QSXCR+Q6sek8bf92,i=4096",
			clientFinal: "c=biws,r=fyko+d2lbbFgONRv9qkxdawL3rfcNHYJY1ZVvWVs7j,p=v0X8v3Bz2T0CJGbJQyF0X+HI4Ts=",
			serverFinal: "v=rmF9pqV8S7suAoZWja4dJRkFsKQ=",
		},
		{
			name:        "rfc 7677 sha-256",
			hash:        SCRAMHashSHA256,
			nonce:       "rOprNGfwEbeRWgbNEkqO",
			clientFirst: "n,,n=user,r=rOprNGfwEbeRWgbNEkqO",
			serverFirst: "r=rOprNGfwEbeRWgbNEkqO%hvYDpWUa2RaTCAfuxFIlj)hNlF$k0,s=W22ZaJ0SNY7soEsUEjb6gQ==,i=4096",
			clientFinal: "c=biws,r=rOprNGfwEbeRWgbNEkqO%hvYDpWUa2RaTCAfuxFIlj)hNlF$k0,p=dHzbZapWIk4jUhN+Ute9ytag9zjfMHgsqmmiz7AndVQ=",
			serverFinal: "v=6rriTRBi23WpRR/wtup+mMhUZUn/dB5nLTJRsjl95G4=",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			p := NewSCRAMProvider(tt.hash, "user", "pencil", nil)
			p.nonce = fixedNonce(tt.nonce)

			first := newAuthBuilder(p.Method(), ReasonSuccess)
			require.NoError(t, p.OnAuth(ctx, &ConnectPacket{}, first))
			assert.Equal(t, tt.clientFirst, string(first.Data))

			final := newAuthBuilder(p.Method(), ReasonContinueAuth)
			require.NoError(t, p.OnContinue(ctx, scramAuthPacket(p.Method(), []byte(tt.serverFirst)), final))
			assert.Equal(t, tt.clientFinal, string(final.Data))

			connack := connackWithMethod(p.Method())
			connack.Props.Set(PropAuthenticationData, []byte(tt.serverFinal))
			assert.NoError(t, p.OnAuthSuccess(ctx, connack))
		})
	}
}

func TestSCRAMProviderExchange(t *testing.T) {
	for _, h := range []SCRAMHash{SCRAMHashSHA1, SCRAMHashSHA256, SCRAMHashSHA512} {
		t.Run(h.String(), func(t *testing.T) {
			ctx := context.Background()
			salt, err := GenerateSalt()
			require.NoError(t, err)

			server := &scramTestServer{
				creds: ComputeSCRAMCredentials(h, "s3cr=t,pw", salt, 4096),
				nonce: "server-nonce",
			}
			p := NewSCRAMProvider(h, "user=name,x", "s3cr=t,pw", nil)

			first := newAuthBuilder(p.Method(), ReasonReAuth)
			require.NoError(t, p.OnReAuth(ctx, first))
			assert.True(t, strings.HasPrefix(string(first.Data), "n,,n=user=3Dname=2Cx,r="))

			serverFirst, err := server.first(first.Data)
			require.NoError(t, err)

			final := newAuthBuilder(p.Method(), ReasonContinueAuth)
			require.NoError(t, p.OnContinue(ctx, scramAuthPacket(p.Method(), serverFirst), final))

			serverFinal, err := server.final(final.Data)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(string(serverFinal), "v="))

			assert.NoError(t, p.OnReAuthSuccess(ctx, authPacket(ReasonSuccess, p.Method(), serverFinal)))
		})
	}
}

func TestSCRAMProviderWrongPassword(t *testing.T) {
	ctx := context.Background()
	server := &scramTestServer{
		creds: ComputeSCRAMCredentials(SCRAMHashSHA256, "right", []byte("salt"), 4096),
		nonce: "abc",
	}
	p := NewSCRAMProvider(SCRAMHashSHA256, "user", "wrong", nil)

	first := newAuthBuilder(p.Method(), ReasonSuccess)
	require.NoError(t, p.OnAuth(ctx, &ConnectPacket{}, first))
	serverFirst, err := server.first(first.Data)
	require.NoError(t, err)

	final := newAuthBuilder(p.Method(), ReasonContinueAuth)
	require.NoError(t, p.OnContinue(ctx, scramAuthPacket(p.Method(), serverFirst), final))

	serverFinal, err := server.final(final.Data)
	require.NoError(t, err)

	err = p.OnReAuthSuccess(ctx, authPacket(ReasonSuccess, p.Method(), serverFinal))
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestSCRAMProviderContinueErrors(t *testing.T) {
	tests := []struct {
		name        string
		serverFirst string
		err         error
	}{
		{
			name:        "nonce not extended",
			serverFirst: "r=client,s=c2FsdA==,i=4096",
			err:         ErrSCRAMNonceMismatch,
		},
		{
			name:        "foreign nonce",
			serverFirst: "r=other-nonce,s=c2FsdA==,i=4096",
			err:         ErrSCRAMNonceMismatch,
		},
		{
			name:        "bad salt",
			serverFirst: "r=client-server,s=!!!,i=4096",
			err:         ErrSCRAMInvalidServerMessage,
		},
		{
			name:        "missing salt",
			serverFirst: "r=client-server,i=4096",
			err:         ErrSCRAMInvalidServerMessage,
		},
		{
			name:        "too few iterations",
			serverFirst: "r=client-server,s=c2FsdA==,i=1",
			err:         ErrSCRAMInvalidServerMessage,
		},
		{
			name:        "iterations not a number",
			serverFirst: "r=client-server,s=c2FsdA==,i=many",
			err:         ErrSCRAMInvalidServerMessage,
		},
		{
			name:        "server error",
			serverFirst: "e=unknown-user",
			err:         ErrAuthFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			p := NewSCRAMProvider(SCRAMHashSHA256, "user", "pencil", nil)
			p.nonce = fixedNonce("client")

			require.NoError(t, p.OnAuth(ctx, &ConnectPacket{}, newAuthBuilder(p.Method(), ReasonSuccess)))

			out := newAuthBuilder(p.Method(), ReasonContinueAuth)
			err := p.OnContinue(ctx, scramAuthPacket(p.Method(), []byte(tt.serverFirst)), out)
			assert.ErrorIs(t, err, tt.err)
			assert.Nil(t, out.Data)
		})
	}
}

func TestSCRAMProviderUnexpectedMessages(t *testing.T) {
	ctx := context.Background()
	serverFirst := []byte("r=client-server,s=c2FsdA==,i=4096")

	t.Run("continue before start", func(t *testing.T) {
		p := NewSCRAMProvider(SCRAMHashSHA256, "user", "pencil", nil)
		err := p.OnContinue(ctx, scramAuthPacket(p.Method(), serverFirst), newAuthBuilder(p.Method(), ReasonContinueAuth))
		assert.ErrorIs(t, err, ErrSCRAMUnexpectedMessage)
	})

	t.Run("success before continue", func(t *testing.T) {
		p := NewSCRAMProvider(SCRAMHashSHA256, "user", "pencil", nil)
		require.NoError(t, p.OnAuth(ctx, &ConnectPacket{}, newAuthBuilder(p.Method(), ReasonSuccess)))
		assert.ErrorIs(t, p.OnAuthSuccess(ctx, connackWithMethod(p.Method())), ErrSCRAMUnexpectedMessage)
	})

	t.Run("second continue", func(t *testing.T) {
		p := NewSCRAMProvider(SCRAMHashSHA256, "user", "pencil", nil)
		p.nonce = fixedNonce("client")
		require.NoError(t, p.OnAuth(ctx, &ConnectPacket{}, newAuthBuilder(p.Method(), ReasonSuccess)))
		require.NoError(t, p.OnContinue(ctx, scramAuthPacket(p.Method(), serverFirst), newAuthBuilder(p.Method(), ReasonContinueAuth)))

		err := p.OnContinue(ctx, scramAuthPacket(p.Method(), serverFirst), newAuthBuilder(p.Method(), ReasonContinueAuth))
		assert.ErrorIs(t, err, ErrSCRAMUnexpectedMessage)
	})

	t.Run("bad verifier", func(t *testing.T) {
		p := NewSCRAMProvider(SCRAMHashSHA256, "user", "pencil", nil)
		p.nonce = fixedNonce("client")
		require.NoError(t, p.OnAuth(ctx, &ConnectPacket{}, newAuthBuilder(p.Method(), ReasonSuccess)))
		require.NoError(t, p.OnContinue(ctx, scramAuthPacket(p.Method(), serverFirst), newAuthBuilder(p.Method(), ReasonContinueAuth)))

		err := p.OnReAuthSuccess(ctx, authPacket(ReasonSuccess, p.Method(), []byte("v="+base64.StdEncoding.EncodeToString([]byte("nope")))))
		assert.ErrorIs(t, err, ErrSCRAMServerSignature)
	})
}

func TestSCRAMProviderNotificationsReset(t *testing.T) {
	ctx := context.Background()
	serverFirst := []byte("r=client-server,s=c2FsdA==,i=4096")

	notifications := map[string]func(p *SCRAMProvider){
		"auth rejected":   func(p *SCRAMProvider) { p.OnAuthRejected(&ConnackPacket{ReasonCode: ReasonNotAuthorized}) },
		"auth error":      func(p *SCRAMProvider) { p.OnAuthError(ErrConnectionClosed) },
		"reauth rejected": func(p *SCRAMProvider) { p.OnReAuthRejected(&DisconnectPacket{ReasonCode: ReasonNotAuthorized}) },
		"reauth error":    func(p *SCRAMProvider) { p.OnReAuthError(ErrAuthTimeout) },
	}

	for name, notify := range notifications {
		t.Run(name, func(t *testing.T) {
			logger, logs := newObservedLogger(LogLevelDebug.zapLevel())
			p := NewSCRAMProvider(SCRAMHashSHA256, "user", "pencil", logger)
			p.nonce = fixedNonce("client")
			require.NoError(t, p.OnAuth(ctx, &ConnectPacket{}, newAuthBuilder(p.Method(), ReasonSuccess)))

			notify(p)

			err := p.OnContinue(ctx, scramAuthPacket(p.Method(), serverFirst), newAuthBuilder(p.Method(), ReasonContinueAuth))
			assert.ErrorIs(t, err, ErrSCRAMUnexpectedMessage)
			assert.Equal(t, 1, logs.Len())
		})
	}
}

func TestSCRAMEscape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"user", "user"},
		{"a=b", "a=3Db"},
		{"a,b", "a=2Cb"},
		{"=,", "=3D=2C"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, scramEscape(tt.in))
		})
	}
}

func TestParseSCRAMAttributes(t *testing.T) {
	attrs := parseSCRAMAttributes("r=abc,s=c2FsdA==,i=4096,garbage,x")

	assert.Equal(t, "abc", attrs['r'])
	assert.Equal(t, "c2FsdA==", attrs['s'])
	assert.Equal(t, "4096", attrs['i'])
	assert.Len(t, attrs, 3)
}

func BenchmarkComputeSCRAMCredentials(b *testing.B) {
	salt := []byte("0123456789abcdef")
	for b.Loop() {
		ComputeSCRAMCredentials(SCRAMHashSHA256, "secret", salt, 4096)
	}
}
