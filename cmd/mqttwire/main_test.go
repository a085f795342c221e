package main

import (
	"bytes"
	"encoding/hex"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/mqttwire"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "mqttwire dev (none)\n", out)
}

func TestDecodeCmd(t *testing.T) {
	t.Run("split arguments", func(t *testing.T) {
		out, err := execute(t, "decode", "50030005", "90")
		require.NoError(t, err)
		assert.Contains(t, out, "PUBREC\n")
		assert.Contains(t, out, "packet id:   5\n")
		assert.Contains(t, out, "reason:      0x90")
	})

	t.Run("several packets", func(t *testing.T) {
		out, err := execute(t, "decode", "c000d000")
		require.NoError(t, err)
		assert.Equal(t, "PINGREQ\nPINGRESP\n", out)
	})

	t.Run("properties", func(t *testing.T) {
		pkt := &mqttwire.DisconnectPacket{ReasonCode: mqttwire.ReasonServerShuttingDown}
		pkt.Props.Set(mqttwire.PropReasonString, "maintenance")
		data, err := mqttwire.AppendPacket(nil, pkt, 0)
		require.NoError(t, err)

		out, err := execute(t, "decode", hex.EncodeToString(data))
		require.NoError(t, err)
		assert.Contains(t, out, "DISCONNECT\n")
		assert.Contains(t, out, "maintenance")
	})

	t.Run("invalid hex", func(t *testing.T) {
		_, err := execute(t, "decode", "zz")
		assert.ErrorContains(t, err, "invalid hex")
	})

	t.Run("too large", func(t *testing.T) {
		_, err := execute(t, "decode", "--max-size", "3", "5003000590")
		assert.ErrorIs(t, err, mqttwire.ErrPacketTooLarge)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := execute(t, "decode", "400400010005")
		assert.ErrorIs(t, err, mqttwire.ErrMalformedPacket)
	})

	t.Run("no arguments", func(t *testing.T) {
		_, err := execute(t, "decode")
		assert.Error(t, err)
	})
}

func TestEncodeAckCmd(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "defaults omit reason",
			args: []string{"encode", "ack"},
			want: "40020001\n",
		},
		{
			name: "pubrec with reason",
			args: []string{"encode", "ack", "--type", "pubrec", "--id", "5", "--reason", "0x90"},
			want: "5003000590\n",
		},
		{
			name: "pubrel",
			args: []string{"encode", "ack", "-t", "PUBREL", "--id", "7"},
			want: "62020007\n",
		},
		{
			name: "reason string dropped to fit",
			args: []string{"encode", "ack", "-t", "disconnect", "-r", "0x8B", "--reason-string", "bye", "--max-size", "3"},
			want: "e0018b\n",
		},
		{
			name: "reason string kept",
			args: []string{"encode", "ack", "-t", "disconnect", "-r", "0x8B", "--reason-string", "bye"},
			want: "e0088b061f0003627965\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestEncodeAckCmdErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unsupported type", []string{"encode", "ack", "-t", "publish"}},
		{"bad user property", []string{"encode", "ack", "--user-property", "novalue"}},
		{"invalid reason", []string{"encode", "ack", "-t", "pubrel", "-r", "0x10"}},
		{"does not fit", []string{"encode", "ack", "--max-size", "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestConnectCmd(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	done := make(chan mqttwire.Packet, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

		if _, _, err := mqttwire.ReadPacket(conn, 0); err != nil {
			return
		}
		if _, err := mqttwire.WritePacket(conn, &mqttwire.ConnackPacket{}, 0); err != nil {
			return
		}
		pkt, _, err := mqttwire.ReadPacket(conn, 0)
		if err != nil {
			return
		}
		done <- pkt
	}()

	path := filepath.Join(t.TempDir(), "client.yaml")
	config := "server: tcp://" + ln.Addr().String() + "\nclient_id: cli-test\ntimeouts:\n  mqtt_connect: 5s\n"
	require.NoError(t, os.WriteFile(path, []byte(config), 0o600))

	out, err := execute(t, "connect", "--config", path, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "connected: ")
	assert.Contains(t, out, "bytes received\n")

	select {
	case pkt := <-done:
		assert.Equal(t, mqttwire.PacketDISCONNECT, pkt.Type())
	case <-time.After(5 * time.Second):
		t.Fatal("broker did not receive DISCONNECT")
	}
}

func TestConnectCmdErrors(t *testing.T) {
	t.Run("missing config", func(t *testing.T) {
		_, err := execute(t, "connect", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "client.yaml")
		require.NoError(t, os.WriteFile(path, []byte("client_id: x\n"), 0o600))

		_, err := execute(t, "connect", "--config", path)
		assert.ErrorIs(t, err, mqttwire.ErrInvalidConfig)
	})
}
