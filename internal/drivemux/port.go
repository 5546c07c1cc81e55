// Package drivemux provides the serial drive backend: it serializes
// movement commands from the control loop onto the robot's radio link as
// line-oriented text. One mux owns one port.
package drivemux

import "io"

// DrivePorter defines the minimal interface needed for a drive link.
// This abstraction enables unit testing without real serial hardware.
type DrivePorter interface {
	io.Writer
	io.Closer
}

// PortMode defines serial port configuration parameters.
type PortMode struct {
	BaudRate int
	DataBits int
}

// DefaultPortMode returns the mode the drive radios ship with.
func DefaultPortMode() *PortMode {
	return &PortMode{
		BaudRate: 115200,
		DataBits: 8,
	}
}

// PortFactory defines an interface for opening drive ports, enabling
// dependency injection of port creation.
type PortFactory interface {
	Open(path string, mode *PortMode) (DrivePorter, error)
}
