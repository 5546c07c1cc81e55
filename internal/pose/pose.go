// Package pose decodes rigid-body pose frames streamed by an optical
// tracking system (OptiTrack/Vicon style) over UDP.
//
// WIRE FORMAT (minimum 28 bytes, little-endian):
//
//	├── Position (12 bytes) - 3 × float32: x, y, z in meters
//	└── Rotation (16 bytes) - 4 × float32: quaternion qx, qy, qz, qw
//
// Packets longer than 28 bytes carry vendor-specific trailing telemetry
// (marker sets, tracking quality, frame counters); the fixed record is
// always the first 28 bytes and the remainder is ignored. Packets
// shorter than 28 bytes cannot contain a pose and are rejected.
//
// The system is 2D: roll and pitch are discarded and only the yaw
// component of the quaternion is kept.
package pose

import (
	"errors"
	"math"
)

// Frame layout constants.
const (
	PositionFloats   = 3  // x, y, z
	QuaternionFloats = 4  // qx, qy, qz, qw
	FrameSize        = (PositionFloats + QuaternionFloats) * 4 // 28 bytes
)

// ErrMalformedPacket is returned when a payload is shorter than the
// fixed 28-byte pose record.
var ErrMalformedPacket = errors.New("pose: packet shorter than fixed 28-byte record")

// Pose is a 2D position plus heading in the tracking system's world
// frame. Yaw is wrapped to (-pi, pi].
type Pose struct {
	X   float64 // meters
	Y   float64 // meters
	Yaw float64 // radians, (-pi, pi]
}

// Frame is one decoded tracking sample, before 2D reduction.
type Frame struct {
	X, Y, Z        float64
	QX, QY, QZ, QW float64
}

// Pose reduces the frame to 2D: position x,y and the yaw extracted
// from the quaternion.
func (f Frame) Pose() Pose {
	return Pose{X: f.X, Y: f.Y, Yaw: YawFromQuaternion(f.QX, f.QY, f.QZ, f.QW)}
}

// YawFromQuaternion extracts the z-axis rotation from a unit
// quaternion using the standard atan2 formulation:
//
//	yaw = atan2(2(wz + xy), 1 - 2(y² + z²))
//
// The result is in (-pi, pi] by construction of atan2.
func YawFromQuaternion(x, y, z, w float64) float64 {
	return math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
}

// WrapAngle normalizes an angle to (-pi, pi].
func WrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}
