package tracking

import (
	"net"
	"time"
)

// UDPSocket is the minimal socket surface the listener needs. The
// abstraction exists so tests can run the listener without real
// network connections.
type UDPSocket interface {
	// ReadFromUDP reads a UDP packet from the socket.
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)

	// SetReadDeadline sets the deadline for future Read calls.
	SetReadDeadline(t time.Time) error

	// Close closes the socket.
	Close() error

	// LocalAddr returns the local network address.
	LocalAddr() net.Addr
}

// SocketFactory creates UDP sockets. Injected into the listener so
// tests can supply fakes.
type SocketFactory interface {
	ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error)
}

// RealSocketFactory implements SocketFactory using net.ListenUDP.
type RealSocketFactory struct{}

// ListenUDP binds a real UDP socket.
func (RealSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// FakeSocket implements UDPSocket for tests. It serves packets from a
// channel and simulates read timeouts when none are pending.
type FakeSocket struct {
	// Incoming supplies packet payloads to ReadFromUDP.
	Incoming chan []byte
	// CloseCalls counts Close invocations.
	CloseCalls int

	closed chan struct{}
}

// NewFakeSocket creates a fake socket with a buffered packet channel.
func NewFakeSocket() *FakeSocket {
	return &FakeSocket{
		Incoming: make(chan []byte, 64),
		closed:   make(chan struct{}),
	}
}

// ReadFromUDP returns the next queued packet, a timeout if none is
// available within a short poll interval, or net.ErrClosed after Close.
func (s *FakeSocket) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	select {
	case <-s.closed:
		return 0, nil, net.ErrClosed
	case data := <-s.Incoming:
		n := copy(b, data)
		return n, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9876}, nil
	case <-time.After(5 * time.Millisecond):
		return 0, nil, &net.OpError{Op: "read", Net: "udp", Err: fakeTimeout{}}
	}
}

// SetReadDeadline is a no-op for the fake.
func (s *FakeSocket) SetReadDeadline(time.Time) error { return nil }

// Close marks the socket closed. Safe to call more than once.
func (s *FakeSocket) Close() error {
	s.CloseCalls++
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return nil
}

// LocalAddr returns a fixed loopback address.
func (s *FakeSocket) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9876}
}

// FakeSocketFactory returns a prepared fake socket, or an error to
// simulate bind failures.
type FakeSocketFactory struct {
	Socket *FakeSocket
	Err    error
}

// ListenUDP returns the configured socket or error.
func (f *FakeSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Socket, nil
}

type fakeTimeout struct{}

func (fakeTimeout) Error() string   { return "i/o timeout" }
func (fakeTimeout) Timeout() bool   { return true }
func (fakeTimeout) Temporary() bool { return true }
