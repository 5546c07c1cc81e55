// Package robot defines the actuation surface the calibrator and the
// control loop drive, with a hardware-backed implementation and a
// simulation for running the stack without a physical robot.
package robot

import "github.com/banshee-data/pilot/internal/pose"

// Robot is a drivable, tracked robot. MoveByVector displacements are in
// the robot's local frame, meters; backends must tolerate repeated
// identical commands.
type Robot interface {
	// Ready reports whether the robot can accept commands.
	Ready() bool
	// Pose returns the latest world-frame pose, false if no tracking
	// data has arrived yet.
	Pose() (pose.Pose, bool)
	// MoveByVector commands a displacement in the robot's local frame.
	MoveByVector(dx, dy float64) error
	// Stop halts the robot immediately.
	Stop() error
	// LastCommand returns the most recent commanded vector, for
	// diagnostics.
	LastCommand() (dx, dy float64)
	// Close releases the robot's resources.
	Close() error
}
