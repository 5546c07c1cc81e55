package tracking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/pilot/internal/pose"
)

// Logf is the package-level diagnostic logger. It defaults to
// log.Printf but may be replaced via SetLogger; tests can mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil sets a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// readDeadlinePoll bounds each blocking read so the receive loop can
// notice shutdown promptly.
const readDeadlinePoll = 100 * time.Millisecond

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	// RobotID names the robot this listener feeds; used in logs.
	RobotID string
	// Port is the UDP port the tracking system streams this robot's
	// poses to.
	Port int
	// Address is the bind address. Empty means all interfaces.
	Address string
	// Cell receives decoded poses. Required.
	Cell *PoseCell
	// SocketFactory creates the socket. Defaults to RealSocketFactory.
	SocketFactory SocketFactory
}

// Listener owns one UDP socket and a background goroutine that decodes
// pose packets into the robot's PoseCell. Decode failures are logged
// and swallowed; the previous pose stays visible until a valid packet
// replaces it. Start and Stop are idempotent, and Stop may be called
// from a different goroutine than Start.
type Listener struct {
	cfg     ListenerConfig
	decoder *pose.Decoder

	mu      sync.Mutex
	sock    UDPSocket
	cancel  context.CancelFunc
	done    chan struct{}
	started bool

	statsMu   sync.Mutex
	packets   int64
	malformed int64
}

// NewListener creates a listener for one robot.
func NewListener(cfg ListenerConfig) *Listener {
	if cfg.SocketFactory == nil {
		cfg.SocketFactory = RealSocketFactory{}
	}
	return &Listener{
		cfg:     cfg,
		decoder: pose.NewDecoder(cfg.RobotID),
	}
}

// Start binds the socket and launches the receive loop. Calling Start
// on a running listener is a no-op. A bind failure is returned with
// the offending port number and is fatal to startup.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return nil
	}
	if l.cfg.Cell == nil {
		return errors.New("tracking: listener requires a pose cell")
	}

	addr := &net.UDPAddr{IP: net.ParseIP("0.0.0.0"), Port: l.cfg.Port}
	if l.cfg.Address != "" {
		resolved, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", l.cfg.Address, l.cfg.Port))
		if err != nil {
			return fmt.Errorf("tracking: resolve %s:%d: %w", l.cfg.Address, l.cfg.Port, err)
		}
		addr = resolved
	}

	sock, err := l.cfg.SocketFactory.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("tracking: bind UDP port %d for robot %q: %w", l.cfg.Port, l.cfg.RobotID, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.sock = sock
	l.cancel = cancel
	l.done = make(chan struct{})
	l.started = true

	Logf("[tracker: %s] listening on UDP port %d", l.cfg.RobotID, l.cfg.Port)
	go l.receiveLoop(ctx, sock, l.done)
	return nil
}

// Stop shuts the listener down, closes the socket and waits for the
// receive loop to exit. Calling Stop on a stopped listener is a no-op.
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return
	}
	cancel := l.cancel
	sock := l.sock
	done := l.done
	l.started = false
	l.cancel = nil
	l.sock = nil
	l.mu.Unlock()

	cancel()
	sock.Close()
	<-done
	Logf("[tracker: %s] listener on port %d has shut down", l.cfg.RobotID, l.cfg.Port)
}

// Stats returns the number of packets received and the number that
// failed to decode.
func (l *Listener) Stats() (packets, malformed int64) {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	return l.packets, l.malformed
}

func (l *Listener) receiveLoop(ctx context.Context, sock UDPSocket, done chan struct{}) {
	defer close(done)

	buf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Bounded read so shutdown is noticed between packets.
		if err := sock.SetReadDeadline(time.Now().Add(readDeadlinePoll)); err != nil {
			if ctx.Err() != nil {
				return
			}
		}

		n, _, err := sock.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			Logf("[tracker: %s] read error: %v", l.cfg.RobotID, err)
			continue
		}

		l.statsMu.Lock()
		l.packets++
		l.statsMu.Unlock()

		frame, err := l.decoder.Decode(buf[:n])
		if err != nil {
			// Malformed packets are dropped; the previous pose stays
			// visible to readers.
			l.statsMu.Lock()
			l.malformed++
			l.statsMu.Unlock()
			Logf("[tracker: %s] dropping packet: %v", l.cfg.RobotID, err)
			continue
		}

		l.cfg.Cell.Set(frame.Pose(), time.Now())
	}
}
