package robot

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/pilot/internal/pose"
	"github.com/banshee-data/pilot/internal/timeutil"
)

// SimConfig tunes the simulated robot's motion model.
type SimConfig struct {
	// MaxSpeed caps the simulated linear speed, m/s.
	MaxSpeed float64
	// GoalTolerance is the radius at which a goal counts as reached.
	GoalTolerance float64
	// LinearGain is the proportional gain toward the goal.
	LinearGain float64
	// LocalFrame interprets MoveByVector displacements in the robot's
	// own frame instead of the world frame, matching the hardware.
	LocalFrame bool
	// Yaw is the robot's fixed simulated heading; the holonomic drive
	// holds it while translating.
	Yaw float64
}

func DefaultSimConfig() SimConfig {
	return SimConfig{
		MaxSpeed:      0.5,
		GoalTolerance: 0.03,
		LinearGain:    0.9,
		LocalFrame:    true,
	}
}

// Sim is a holonomic robot simulation with proportional control toward
// the latest commanded goal. Motion advances only through Step, so tests
// and the run loop control time explicitly.
type Sim struct {
	cfg SimConfig

	mu     sync.Mutex
	x, y   float64
	goalX  float64
	goalY  float64
	active bool
	lastDX float64
	lastDY float64
	closed bool
}

func NewSim(cfg SimConfig, startX, startY float64) *Sim {
	return &Sim{cfg: cfg, x: startX, y: startY}
}

func (s *Sim) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Pose always reports data; a simulation has no tracking warm-up.
func (s *Sim) Pose() (pose.Pose, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pose.Pose{X: s.x, Y: s.y, Yaw: s.cfg.Yaw}, true
}

// MoveByVector replaces the current goal. Repeated identical commands
// re-anchor the goal at the current position, which is harmless.
func (s *Sim) MoveByVector(dx, dy float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDX, s.lastDY = dx, dy
	wx, wy := dx, dy
	if s.cfg.LocalFrame {
		sin, cos := math.Sincos(s.cfg.Yaw)
		wx = cos*dx - sin*dy
		wy = sin*dx + cos*dy
	}
	s.goalX = s.x + wx
	s.goalY = s.y + wy
	s.active = true
	return nil
}

func (s *Sim) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDX, s.lastDY = 0, 0
	s.active = false
	return nil
}

func (s *Sim) LastCommand() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDX, s.lastDY
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.active = false
	return nil
}

// Step advances the simulation by dt seconds of proportional motion
// toward the goal.
func (s *Sim) Step(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	dx := s.goalX - s.x
	dy := s.goalY - s.y
	dist := math.Hypot(dx, dy)
	if dist <= s.cfg.GoalTolerance {
		s.active = false
		return
	}
	v := s.cfg.LinearGain * dist
	if v > s.cfg.MaxSpeed {
		v = s.cfg.MaxSpeed
	}
	step := v * dt
	if step > dist {
		step = dist
	}
	s.x += dx / dist * step
	s.y += dy / dist * step
}

// Run steps the simulation at the given rate until ctx is cancelled.
func (s *Sim) Run(ctx context.Context, clock timeutil.Clock, period time.Duration) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	ticker := clock.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.Step(period.Seconds())
		}
	}
}
