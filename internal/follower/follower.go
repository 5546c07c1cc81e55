// Package follower implements the path-following control core: lookahead
// targeting with lane offset, corner smoothing, stuck detection, and
// bounded recovery. The caller drives it at a fixed tick rate; each
// Update reads the latest pose and produces one movement command.
package follower

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/pilot/internal/pose"
	"github.com/banshee-data/pilot/internal/timeutil"
	"github.com/banshee-data/pilot/internal/track"
)

// ErrStuck means recovery ran its full bounded duration without the
// robot making progress. The caller decides whether to abort, retry, or
// intervene; the follower will not loop forever on its own.
var ErrStuck = errors.New("follower stuck after recovery")

// State is the follower lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateRunning    State = "running"
	StateStuck      State = "stuck"
	StateRecovering State = "recovering"
	StateCompleted  State = "completed"
)

// RecoveryBias selects how stuck recovery steers the target.
type RecoveryBias string

const (
	// BiasCenterline decays the lane offset toward zero over the
	// recovery window, pulling the target back to the track centerline
	// where the corner radius is widest.
	BiasCenterline RecoveryBias = "centerline"
	// BiasNone leaves the offset alone and relies on the raised
	// lookahead only.
	BiasNone RecoveryBias = "none"
)

// Config holds the follower tuning parameters.
type Config struct {
	// Lookahead is the base target distance along the track, meters.
	Lookahead float64
	// PositionTolerance is the completion radius around the final
	// waypoint of an open track.
	PositionTolerance float64
	// OffsetLookaheadGain scales the adaptive lookahead increase per
	// meter of lane offset.
	OffsetLookaheadGain float64
	// MaxOffsetFactor times Lookahead bounds the lane offset magnitude.
	MaxOffsetFactor float64
	// StuckWindow is the sliding window over which arc-length progress
	// is measured.
	StuckWindow time.Duration
	// StuckMinProgress is the minimum progress over StuckWindow before
	// the follower is considered stuck, meters.
	StuckMinProgress float64
	// RecoveryDuration bounds how long recovery may run.
	RecoveryDuration time.Duration
	// RecoveryLookaheadBoost multiplies the lookahead during recovery.
	RecoveryLookaheadBoost float64
	// RecoveryBias selects the recovery steering strategy.
	RecoveryBias RecoveryBias
}

func DefaultConfig() Config {
	return Config{
		Lookahead:              0.5,
		PositionTolerance:      0.15,
		OffsetLookaheadGain:    0.5,
		MaxOffsetFactor:        1.5,
		StuckWindow:            3 * time.Second,
		StuckMinProgress:       0.05,
		RecoveryDuration:       5 * time.Second,
		RecoveryLookaheadBoost: 1.5,
		RecoveryBias:           BiasCenterline,
	}
}

// PoseSource supplies the latest world-frame pose. False means tracking
// has not produced data yet; the follower no-ops that tick.
type PoseSource interface {
	Pose() (pose.Pose, bool)
}

// Transformer rotates a world-frame movement vector into the robot's
// local frame.
type Transformer interface {
	Transform(dx, dy float64) (float64, float64)
}

// MovementCommand is one tick's movement vector in the robot's local
// frame, meters.
type MovementCommand struct {
	DX float64
	DY float64
}

// Result is the outcome of one Update tick.
type Result struct {
	State State
	// HasCommand is false on no-op ticks (unknown pose, idle, completed).
	HasCommand bool
	Command    MovementCommand
	// Target is the world-frame point the command steers toward.
	Target track.Waypoint
	// DistanceToTarget is the world-frame distance to Target.
	DistanceToTarget float64
	// CrossTrackError is the distance from the robot to the track
	// centerline.
	CrossTrackError float64
}

type progressSample struct {
	at       time.Time
	odometer float64
}

// Follower owns FollowerState for one robot. All mutation happens inside
// Update, Start, Stop and SetOffset, guarded by one mutex; Update is
// intended to be driven from a single control loop while SetOffset may
// be called from anywhere.
type Follower struct {
	cfg       Config
	tr        *track.Track
	source    PoseSource
	transform Transformer
	clock     timeutil.Clock

	mu     sync.Mutex
	state  State
	offset float64
	seg    int

	odometer      float64
	lastS         float64
	haveS         bool
	window        []progressSample
	recoveryStart time.Time
	stuckTerminal bool
}

// New builds an idle follower. transform may not be nil; pass an
// identity calibration for uncalibrated operation.
func New(cfg Config, tr *track.Track, source PoseSource, transform Transformer, clock timeutil.Clock) *Follower {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Follower{
		cfg:       cfg,
		tr:        tr,
		source:    source,
		transform: transform,
		clock:     clock,
		state:     StateIdle,
	}
}

// Start arms the follower. Idempotent while running; restarting a
// completed follower begins a fresh pass.
func (f *Follower) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateIdle && f.state != StateCompleted {
		return
	}
	f.state = StateRunning
	f.seg = 0
	f.odometer = 0
	f.haveS = false
	f.stuckTerminal = false
	f.window = f.window[:0]
}

// Stop returns the follower to idle. Safe to call at any time.
func (f *Follower) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = StateIdle
	f.stuckTerminal = false
	f.window = f.window[:0]
}

// State returns the current lifecycle state.
func (f *Follower) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// SetOffset changes the lane offset, positive to the right of the travel
// direction. Magnitudes above MaxOffsetFactor times the base lookahead
// are clamped, not rejected. Takes effect on the next tick; safe to call
// while running.
func (f *Follower) SetOffset(v float64) {
	limit := f.cfg.MaxOffsetFactor * f.cfg.Lookahead
	if v > limit {
		v = limit
	} else if v < -limit {
		v = -limit
	}
	f.mu.Lock()
	f.offset = v
	f.mu.Unlock()
}

// Offset returns the current (post-clamp) lane offset.
func (f *Follower) Offset() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offset
}

// Update runs one control tick. The returned error is non-nil only for
// the terminal stuck condition; transient conditions (no pose yet) are
// reported as a command-less Result.
func (f *Follower) Update() (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == StateIdle || f.state == StateCompleted {
		return Result{State: f.state}, nil
	}

	p, ok := f.source.Pose()
	if !ok {
		// Tracking has produced nothing yet. Not an error.
		return Result{State: f.state}, nil
	}

	proj := f.tr.NearestFrom(p.X, p.Y, f.seg)
	f.seg = proj.Segment
	f.advanceOdometer(proj.S)

	// Open-track completion check before anything else so the final
	// approach cannot be misread as stuck.
	if !f.tr.Closed() {
		end := f.tr.End()
		if math.Hypot(end.X-p.X, end.Y-p.Y) <= f.cfg.PositionTolerance {
			f.state = StateCompleted
			return Result{State: f.state}, nil
		}
	}

	if err := f.updateStuckState(); err != nil {
		return Result{State: f.state, CrossTrackError: proj.Dist}, err
	}

	offset := f.effectiveOffset()
	lookahead := f.effectiveLookahead(offset)

	target := f.selectTarget(p, proj, offset, lookahead)

	dx, dy := target.X-p.X, target.Y-p.Y
	rdx, rdy := f.transform.Transform(dx, dy)

	return Result{
		State:            f.state,
		HasCommand:       true,
		Command:          MovementCommand{DX: rdx, DY: rdy},
		Target:           target,
		DistanceToTarget: math.Hypot(dx, dy),
		CrossTrackError:  proj.Dist,
	}, nil
}

// advanceOdometer folds the new arc position into a monotonic progress
// counter, correcting for the wrap of closed tracks.
func (f *Follower) advanceOdometer(s float64) {
	if !f.haveS {
		f.haveS = true
		f.lastS = s
		return
	}
	delta := s - f.lastS
	if f.tr.Closed() {
		half := f.tr.Length() / 2
		if delta < -half {
			delta += f.tr.Length()
		} else if delta > half {
			delta -= f.tr.Length()
		}
	}
	f.lastS = s
	if delta > 0 {
		f.odometer += delta
	}
}

// updateStuckState maintains the sliding progress window and drives the
// Running -> Stuck -> Recovering transitions. Returns ErrStuck once the
// recovery bound has expired without progress.
func (f *Follower) updateStuckState() error {
	now := f.clock.Now()
	f.window = append(f.window, progressSample{at: now, odometer: f.odometer})
	for len(f.window) > 1 && now.Sub(f.window[1].at) >= f.cfg.StuckWindow {
		f.window = f.window[1:]
	}

	span := now.Sub(f.window[0].at)
	progress := f.odometer - f.window[0].odometer
	moving := progress >= f.cfg.StuckMinProgress

	switch f.state {
	case StateRunning:
		if span >= f.cfg.StuckWindow && !moving {
			f.state = StateStuck
		}
	case StateStuck:
		if f.stuckTerminal {
			if moving {
				f.stuckTerminal = false
				f.state = StateRunning
				return nil
			}
			return fmt.Errorf("no progress in %v of recovery: %w", f.cfg.RecoveryDuration, ErrStuck)
		}
		f.state = StateRecovering
		f.recoveryStart = now
	case StateRecovering:
		if moving {
			f.state = StateRunning
			return nil
		}
		if now.Sub(f.recoveryStart) >= f.cfg.RecoveryDuration {
			f.state = StateStuck
			f.stuckTerminal = true
			return fmt.Errorf("no progress in %v of recovery: %w", f.cfg.RecoveryDuration, ErrStuck)
		}
	}
	return nil
}

// effectiveOffset is the lane offset after recovery biasing.
func (f *Follower) effectiveOffset() float64 {
	if f.state != StateRecovering || f.cfg.RecoveryBias != BiasCenterline {
		return f.offset
	}
	// Decay toward the centerline over the recovery window.
	frac := 1 - float64(f.clock.Since(f.recoveryStart))/float64(f.cfg.RecoveryDuration)
	if frac < 0 {
		frac = 0
	}
	return f.offset * frac
}

// effectiveLookahead adapts the base lookahead upward with the offset
// magnitude so tight offset lines anticipate corners earlier, and boosts
// it during recovery.
func (f *Follower) effectiveLookahead(offset float64) float64 {
	l := f.cfg.Lookahead * (1 + f.cfg.OffsetLookaheadGain*math.Abs(offset))
	if f.state == StateRecovering {
		l *= f.cfg.RecoveryLookaheadBoost
	}
	return l
}

// selectTarget picks the world-frame target point. With a lane offset it
// translates the nominal lookahead point perpendicular to the smoothed
// tangent, then validates the result is ahead of the robot; if not, the
// search advances along the track up to a bounded distance before
// falling back to the nominal target.
func (f *Follower) selectTarget(p pose.Pose, proj track.Projection, offset, lookahead float64) track.Waypoint {
	nominalS := proj.S + lookahead
	nominal, _ := f.tr.At(nominalS)
	if offset == 0 {
		return nominal
	}

	maxSearch := 2 * lookahead
	step := lookahead / 4
	for adv := 0.0; adv <= maxSearch; adv += step {
		pt, seg2 := f.tr.At(nominalS + adv)
		tx, ty := f.tr.TangentAt(seg2)
		// Right-hand perpendicular of the travel direction.
		cand := track.Waypoint{X: pt.X + ty*offset, Y: pt.Y - tx*offset}
		if (cand.X-p.X)*tx+(cand.Y-p.Y)*ty > 0 {
			return cand
		}
	}

	return nominal
}
