package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in       string
		kind     Kind
		target   string
		hasError bool
	}{
		{"/dev/rfcomm0", KindSerial, "/dev/rfcomm0", false},
		{" COM3 ", KindSerial, "COM3", false},
		{"tcp://127.0.0.1:2323", KindTCP, "127.0.0.1:2323", false},
		{"tcp://beagle.local:23", KindTCP, "beagle.local:23", false},
		{"tcp://nohost", 0, "", true},
		{"udp://1.2.3.4:5", 0, "", true},
		{"", 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			kind, target, err := ParseAddress(tt.in)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.target, target)
		})
	}
}

func TestOpen_TCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		_, _ = io.Copy(c, c)
	}()

	conn, err := Open(context.Background(), "tcp://"+ln.Addr().String(), 0)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("INFO\n"))
	require.NoError(t, err)
	buf := make([]byte, 5)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "INFO\n", string(buf))
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "no-such-tty"), 0)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Open(ctx, "tcp://127.0.0.1:1", 0)
	assert.Error(t, err)

	_, err = Open(context.Background(), "", 0)
	assert.Error(t, err)
}

func TestIsDisconnect(t *testing.T) {
	assert.False(t, IsDisconnect(nil))
	assert.True(t, IsDisconnect(io.EOF))
	assert.True(t, IsDisconnect(fmt.Errorf("read: %w", io.ErrUnexpectedEOF)))
	assert.True(t, IsDisconnect(net.ErrClosed))
	assert.True(t, IsDisconnect(&net.OpError{Op: "write", Err: syscall.EPIPE}))
	assert.False(t, IsDisconnect(errors.New("permission denied")))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "serial", KindSerial.String())
	assert.Equal(t, "tcp", KindTCP.String())
}
