package wallpad

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"time"

	"go.bug.st/serial"
)

// Transport dials the byte stream that carries wallpad frames. Two
// transports exist: the EW11 TCP-to-RS485 gateway, and a directly attached
// serial adapter for installations where the bridge host sits on the bus.
type Transport interface {
	// Dial opens the stream. Implementations honour ctx for cancellation
	// and deadline during connection establishment only.
	Dial(ctx context.Context) (io.ReadWriteCloser, error)

	// String describes the endpoint for logs.
	String() string
}

// Default transport parameters.
const (
	defaultDialTimeout = 10 * time.Second

	// defaultBaudRate matches the wallpad bus speed (9600 8N1).
	defaultBaudRate = 9600
)

// TCPGateway connects to an EW11-style TCP-to-serial gateway.
type TCPGateway struct {
	Host string
	Port int

	// DialTimeout bounds connection establishment. Default 10s.
	DialTimeout time.Duration
}

// Dial opens the TCP stream to the gateway.
func (g *TCPGateway) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	timeout := g.DialTimeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", net.JoinHostPort(g.Host, strconv.Itoa(g.Port)))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", g, err)
	}
	return conn, nil
}

func (g *TCPGateway) String() string {
	return fmt.Sprintf("tcp://%s:%d", g.Host, g.Port)
}

// SerialPort connects to a directly attached RS485 adapter.
type SerialPort struct {
	Device   string
	BaudRate int
}

// Dial opens the serial device. The returned port is closed by the
// connection manager like any other stream.
func (s *SerialPort) Dial(_ context.Context) (io.ReadWriteCloser, error) {
	baud := s.BaudRate
	if baud == 0 {
		baud = defaultBaudRate
	}
	port, err := serial.Open(s.Device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s, err)
	}
	return port, nil
}

func (s *SerialPort) String() string {
	baud := s.BaudRate
	if baud == 0 {
		baud = defaultBaudRate
	}
	return fmt.Sprintf("serial://%s?baud=%d", s.Device, baud)
}

// ParseTransport builds a Transport from a connection URL.
//
// Supported formats:
//   - "tcp://192.168.0.10:8899" (EW11 gateway)
//   - "serial:///dev/ttyUSB0?baud=9600" (direct RS485 adapter)
func ParseTransport(connURL string) (Transport, error) {
	u, err := url.Parse(connURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTransport, err)
	}

	switch u.Scheme {
	case "tcp":
		host := u.Hostname()
		if host == "" {
			return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidTransport, connURL)
		}
		port, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("%w: missing or bad port in %q", ErrInvalidTransport, connURL)
		}
		return &TCPGateway{Host: host, Port: port}, nil

	case "serial":
		if u.Path == "" {
			return nil, fmt.Errorf("%w: missing device path in %q", ErrInvalidTransport, connURL)
		}
		baud := 0
		if v := u.Query().Get("baud"); v != "" {
			baud, err = strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("%w: bad baud in %q", ErrInvalidTransport, connURL)
			}
		}
		return &SerialPort{Device: u.Path, BaudRate: baud}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q (use tcp or serial)", ErrInvalidTransport, u.Scheme)
	}
}
