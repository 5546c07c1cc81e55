// Package calib discovers and persists the rotation offset between the
// tracking system's world frame and a robot's own control frame.
//
// The procedure commands a known forward move in the robot's frame and
// observes the resulting world-frame displacement. The bearing of that
// displacement is the offset, since the commanded direction was defined
// as bearing zero.
package calib

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/pilot/internal/pose"
	"github.com/banshee-data/pilot/internal/timeutil"
)

var (
	// ErrInsufficientMovement means the robot moved less than half the
	// commanded calibration distance. Stalled, blocked, or not connected;
	// the caller decides whether to retry, abort, or run uncalibrated.
	ErrInsufficientMovement = errors.New("insufficient movement during calibration")

	// ErrCorruptCalibration means a stored record failed validation and
	// the robot must be recalibrated.
	ErrCorruptCalibration = errors.New("corrupt calibration record")
)

// minMovementFactor times the calibration distance is the smallest
// observed displacement accepted as a reliable measurement.
const minMovementFactor = 0.5

// Driver is the slice of robot behaviour calibration needs.
type Driver interface {
	// Pose returns the latest world-frame pose, false if tracking has
	// not produced data yet.
	Pose() (pose.Pose, bool)
	// MoveByVector commands a displacement in the robot's local frame.
	MoveByVector(dx, dy float64) error
}

// Config holds the calibration move parameters.
type Config struct {
	// Distance is the commanded forward move in meters.
	Distance float64
	// SettlingTime is how long to wait for the move to complete before
	// measuring the end pose.
	SettlingTime time.Duration
}

func DefaultConfig() Config {
	return Config{
		Distance:     0.5,
		SettlingTime: 2 * time.Second,
	}
}

// Calibration is the discovered frame offset for one robot. The zero
// value is an identity calibration (no rotation).
type Calibration struct {
	RobotID      string
	Offset       float64 // radians, in (-pi, pi]
	CalibratedAt time.Time
}

// Transform rotates a world-frame movement vector into the robot's local
// frame. It is the inverse of the rotation discovered during calibration
// and must be applied to every command before it reaches the robot.
func (c Calibration) Transform(dx, dy float64) (float64, float64) {
	sin, cos := math.Sincos(c.Offset)
	return dx*cos + dy*sin, -dx*sin + dy*cos
}

// Calibrator runs the one-shot calibration procedure. It is blocking and
// must complete before path following starts.
type Calibrator struct {
	cfg   Config
	clock timeutil.Clock
}

func New(cfg Config, clock timeutil.Clock) *Calibrator {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Calibrator{cfg: cfg, clock: clock}
}

// Calibrate moves the robot forward by the configured distance, waits
// the settling time, and derives the offset from the observed
// displacement. The settling wait is bounded by ctx.
func (c *Calibrator) Calibrate(ctx context.Context, robotID string, drv Driver) (Calibration, error) {
	start, ok := drv.Pose()
	if !ok {
		return Calibration{}, fmt.Errorf("calibrate %s: no tracking data", robotID)
	}

	if err := drv.MoveByVector(c.cfg.Distance, 0); err != nil {
		return Calibration{}, fmt.Errorf("calibrate %s: command move: %w", robotID, err)
	}

	select {
	case <-c.clock.After(c.cfg.SettlingTime):
	case <-ctx.Done():
		return Calibration{}, fmt.Errorf("calibrate %s: %w", robotID, ctx.Err())
	}

	end, ok := drv.Pose()
	if !ok {
		return Calibration{}, fmt.Errorf("calibrate %s: tracking data lost", robotID)
	}

	dx, dy := end.X-start.X, end.Y-start.Y
	moved := math.Hypot(dx, dy)
	if moved < c.cfg.Distance*minMovementFactor {
		return Calibration{}, fmt.Errorf("calibrate %s: moved %.4fm of commanded %.4fm: %w",
			robotID, moved, c.cfg.Distance, ErrInsufficientMovement)
	}

	return Calibration{
		RobotID:      robotID,
		Offset:       pose.WrapAngle(math.Atan2(dy, dx)),
		CalibratedAt: c.clock.Now(),
	}, nil
}
