package beagle

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufferedConn struct {
	io.Reader
	*bufio.Writer
}

type errConn struct{ err error }

func (c errConn) Read([]byte) (int, error)  { return 0, c.err }
func (c errConn) Write([]byte) (int, error) { return 0, c.err }

func TestLink_ReadLine(t *testing.T) {
	l := NewLink(newScriptedConn("INFOOK\r", "", "# x"))

	for _, want := range []string{"INFOOK", "", "# x"} {
		got, err := l.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := l.ReadLine()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestLink_ReadLinePartial(t *testing.T) {
	conn := &scriptedConn{in: strings.NewReader("PAGEO")}
	_, err := NewLink(conn).ReadLine()

	var cerr *ConnectionError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "read", cerr.Op)
}

func TestLink_WriteCommand(t *testing.T) {
	conn := newScriptedConn()
	l := NewLink(conn)

	require.NoError(t, l.WriteCommand("GETBOOKS"))
	require.Len(t, conn.writes, 1, "line and newline go out in one write")
	assert.Equal(t, "GETBOOKS\n", string(conn.writes[0]))

	assert.Error(t, l.WriteCommand("INFO\nVIRGIN"))
	assert.Len(t, conn.writes, 1)
}

func TestLink_Flushes(t *testing.T) {
	var out bytes.Buffer
	conn := bufferedConn{Reader: strings.NewReader(""), Writer: bufio.NewWriterSize(&out, 4096)}
	l := NewLink(conn)

	require.NoError(t, l.WriteCommand("PAGE 1"))
	assert.Equal(t, "PAGE 1\n", out.String())
	require.NoError(t, l.WriteBinary([]byte{0, 1, 2}))
	assert.Equal(t, "PAGE 1\n\x00\x01\x02", out.String())
}

func TestLink_WriteFailure(t *testing.T) {
	l := NewLink(errConn{err: io.ErrClosedPipe})

	err := l.WriteCommand("INFO")
	var cerr *ConnectionError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "write", cerr.Op)
	assert.ErrorIs(t, err, io.ErrClosedPipe)

	assert.ErrorIs(t, l.WriteBinary([]byte{1}), io.ErrClosedPipe)
}
