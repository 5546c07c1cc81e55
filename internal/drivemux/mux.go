package drivemux

import (
	"errors"
	"fmt"
	"sync"
)

var ErrWriteFailed = errors.New("failed to write to drive port")

// Mux owns one drive port and serializes command writes to it. The
// control loop and operator-facing surfaces (monitor, calibration) may
// issue commands concurrently.
type Mux struct {
	port      DrivePorter
	commandMu sync.Mutex
	closed    bool
}

func NewMux(port DrivePorter) *Mux {
	return &Mux{port: port}
}

// SendMove writes one movement command, displacements in meters in the
// robot's local frame.
func (m *Mux) SendMove(dx, dy float64) error {
	return m.send(fmt.Sprintf("MV %.4f %.4f\n", dx, dy))
}

// SendStop commands an immediate halt.
func (m *Mux) SendStop() error {
	return m.send("ST\n")
}

func (m *Mux) send(line string) error {
	m.commandMu.Lock()
	defer m.commandMu.Unlock()
	if m.closed {
		return fmt.Errorf("drive port closed: %w", ErrWriteFailed)
	}
	if _, err := m.port.Write([]byte(line)); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

// Close closes the underlying port. Subsequent sends fail.
func (m *Mux) Close() error {
	m.commandMu.Lock()
	defer m.commandMu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.port.Close()
}
