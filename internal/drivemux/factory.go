package drivemux

import (
	"fmt"

	"go.bug.st/serial"
)

// RealPortFactory opens real serial ports.
type RealPortFactory struct{}

// Open opens the serial device at path with the given mode.
func (RealPortFactory) Open(path string, mode *PortMode) (DrivePorter, error) {
	if mode == nil {
		mode = DefaultPortMode()
	}
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: mode.BaudRate,
		DataBits: mode.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open drive port %s: %w", path, err)
	}
	return port, nil
}

// NewRealMux opens the serial device at path and wraps it in a Mux.
func NewRealMux(path string, mode *PortMode) (*Mux, error) {
	port, err := RealPortFactory{}.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return NewMux(port), nil
}
