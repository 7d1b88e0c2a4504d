// Package transport opens the byte stream to the e-reader. The device speaks
// over a Bluetooth serial port (rfcomm), which shows up as a tty, or through
// a TCP serial bridge.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// DefaultBaud is used for serial ports when no rate is configured. rfcomm
// ignores it, USB adapters do not.
const DefaultBaud = 115200

const tcpScheme = "tcp://"

// Conn is an open stream to the device. Closing it releases any blocked read.
type Conn = io.ReadWriteCloser

// Kind tells which transport an address selects.
type Kind int

const (
	KindSerial Kind = iota
	KindTCP
)

func (k Kind) String() string {
	if k == KindTCP {
		return "tcp"
	}
	return "serial"
}

// ParseAddress splits a device address into its kind and target:
// "tcp://host:port" or a serial device path such as /dev/rfcomm0.
func ParseAddress(addr string) (Kind, string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return 0, "", errors.New("no device configured")
	}
	if rest, ok := strings.CutPrefix(addr, tcpScheme); ok {
		if _, _, err := net.SplitHostPort(rest); err != nil {
			return 0, "", fmt.Errorf("bad tcp address %q: %w", addr, err)
		}
		return KindTCP, rest, nil
	}
	if strings.Contains(addr, "://") {
		return 0, "", fmt.Errorf("unsupported address %q", addr)
	}
	return KindSerial, addr, nil
}

// Open connects to the device at addr.
func Open(ctx context.Context, addr string, baud int) (Conn, error) {
	kind, target, err := ParseAddress(addr)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindTCP:
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", target)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", target, err)
		}
		log.Info().Str("addr", target).Msg("connected over tcp")
		return conn, nil
	default:
		if baud <= 0 {
			baud = DefaultBaud
		}
		port, err := serial.Open(target, &serial.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		if err != nil {
			return nil, fmt.Errorf("open serial port %s: %w", target, err)
		}
		log.Info().Str("port", target).Int("baud", baud).Msg("connected over serial")
		return port, nil
	}
}

// Ports lists the serial ports present on this machine.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}

// IsDisconnect reports whether err means the device went away, as opposed to
// a configuration or permission problem.
func IsDisconnect(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := portErrorCode(err); ok {
		switch code {
		case serial.PortNotFound, serial.PortClosed, serial.InvalidSerialPort:
			return true
		default:
			return false
		}
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EIO)
}

func portErrorCode(err error) (serial.PortErrorCode, bool) {
	var ptr *serial.PortError
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code(), true
	}
	var val serial.PortError
	if errors.As(err, &val) {
		return val.Code(), true
	}
	return 0, false
}
