package follower

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pilot/internal/calib"
	"github.com/banshee-data/pilot/internal/pose"
	"github.com/banshee-data/pilot/internal/timeutil"
	"github.com/banshee-data/pilot/internal/track"
)

// staticSource serves a settable pose to the follower.
type staticSource struct {
	p  pose.Pose
	ok bool
}

func (s *staticSource) Pose() (pose.Pose, bool) { return s.p, s.ok }

func unitSquare(t *testing.T) *track.Track {
	t.Helper()
	tr, err := track.New("unit-square", []track.Waypoint{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
	}, true)
	require.NoError(t, err)
	return tr
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Lookahead = 1.0
	return cfg
}

func newTestFollower(t *testing.T, tr *track.Track, src PoseSource) (*Follower, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	return New(testConfig(), tr, src, calib.Calibration{}, clock), clock
}

func TestUpdateIdleIsNoOp(t *testing.T) {
	src := &staticSource{p: pose.Pose{}, ok: true}
	f, _ := newTestFollower(t, unitSquare(t), src)

	res, err := f.Update()
	require.NoError(t, err)
	assert.Equal(t, StateIdle, res.State)
	assert.False(t, res.HasCommand)
}

func TestUpdateUnknownPoseIsNoOp(t *testing.T) {
	src := &staticSource{ok: false}
	f, _ := newTestFollower(t, unitSquare(t), src)
	f.Start()

	res, err := f.Update()
	require.NoError(t, err)
	assert.Equal(t, StateRunning, res.State)
	assert.False(t, res.HasCommand)
}

func TestZeroOffsetTargetsNominalLookaheadPoint(t *testing.T) {
	tests := []struct {
		name string
		at   pose.Pose
		want track.Waypoint
	}{
		{"start of lap", pose.Pose{X: 0, Y: 0}, track.Waypoint{X: 1, Y: 0}},
		{"after first corner", pose.Pose{X: 1, Y: 0}, track.Waypoint{X: 1, Y: 1}},
		{"final corner wraps to start", pose.Pose{X: 0, Y: 1}, track.Waypoint{X: 0, Y: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &staticSource{p: tt.at, ok: true}
			f, _ := newTestFollower(t, unitSquare(t), src)
			f.Start()

			res, err := f.Update()
			require.NoError(t, err)
			require.True(t, res.HasCommand)
			assert.InDelta(t, tt.want.X, res.Target.X, 1e-9)
			assert.InDelta(t, tt.want.Y, res.Target.Y, 1e-9)
		})
	}
}

func TestSetOffsetClampsToBound(t *testing.T) {
	src := &staticSource{ok: true}
	f, _ := newTestFollower(t, unitSquare(t), src)
	limit := f.cfg.MaxOffsetFactor * f.cfg.Lookahead

	f.SetOffset(100)
	assert.InDelta(t, limit, f.Offset(), 1e-9)

	f.SetOffset(-100)
	assert.InDelta(t, -limit, f.Offset(), 1e-9)

	f.SetOffset(0.25)
	assert.InDelta(t, 0.25, f.Offset(), 1e-9)
}

func TestOffsetShiftsTargetRightOfTravel(t *testing.T) {
	line, err := track.Line(5, 10, 0)
	require.NoError(t, err)
	src := &staticSource{p: pose.Pose{X: 0, Y: 0}, ok: true}
	f, _ := newTestFollower(t, line, src)
	f.Start()
	f.SetOffset(0.2)

	res, err := f.Update()
	require.NoError(t, err)
	require.True(t, res.HasCommand)

	// Travel is +x, so a positive offset puts the target at negative y,
	// and the lookahead adapts upward with the offset magnitude.
	wantLookahead := f.cfg.Lookahead * (1 + f.cfg.OffsetLookaheadGain*0.2)
	assert.InDelta(t, wantLookahead, res.Target.X, 1e-9)
	assert.InDelta(t, -0.2, res.Target.Y, 1e-9)
}

func TestOffsetAdaptiveLookaheadIncreasesWithMagnitude(t *testing.T) {
	line, err := track.Line(10, 20, 0)
	require.NoError(t, err)
	src := &staticSource{p: pose.Pose{X: 0, Y: 0}, ok: true}

	var prevX float64
	for _, offset := range []float64{0, 0.3, 0.6} {
		f, _ := newTestFollower(t, line, src)
		f.Start()
		f.SetOffset(offset)

		res, err := f.Update()
		require.NoError(t, err)
		assert.Greater(t, res.Target.X, prevX-1e-9, "offset=%v", offset)
		prevX = res.Target.X
	}
}

func TestOffsetSearchAdvancesPastHairpin(t *testing.T) {
	// Out-and-back hairpin. Approaching the turn, the nominal lookahead
	// point sits on the return leg whose travel direction points back
	// past the robot, so the first offset candidates fail the ahead
	// check and the search has to walk further along the track.
	hairpin, err := track.New("hairpin", []track.Waypoint{
		{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 0.4}, {X: 0, Y: 0.4},
	}, false)
	require.NoError(t, err)

	src := &staticSource{p: pose.Pose{X: 2, Y: 0}, ok: true}
	f, _ := newTestFollower(t, hairpin, src)
	f.Start()
	f.SetOffset(1.0)

	res, err := f.Update()
	require.NoError(t, err)
	require.True(t, res.HasCommand)

	// With offset 1.0 the lookahead grows to 1.5, putting the nominal
	// point at arc 3.5, x=2.9 on the return leg. Candidates at search
	// advances 0, 0.375 and 0.75 all sit at x >= 2 and are rejected;
	// the first accepted candidate is at advance 1.125 (arc 4.625),
	// offset one meter to the right of the return direction.
	assert.InDelta(t, 1.775, res.Target.X, 1e-6)
	assert.InDelta(t, 1.4, res.Target.Y, 1e-6)

	// The accepted target is strictly ahead along the return leg.
	assert.Greater(t, (res.Target.X-src.p.X)*-1, 0.0)
}

func TestOffsetFallsBackToNominalWhenNoneAhead(t *testing.T) {
	// Robot overshot the end of an open track, outside the completion
	// tolerance. Every search point clamps to the final waypoint and
	// fails the ahead check, so the tick falls back to the nominal
	// target and steers back toward the track.
	line, err := track.Line(5, 10, 0)
	require.NoError(t, err)
	src := &staticSource{p: pose.Pose{X: 6, Y: 0}, ok: true}
	f, _ := newTestFollower(t, line, src)
	f.Start()
	f.SetOffset(0.2)

	res, err := f.Update()
	require.NoError(t, err)
	require.True(t, res.HasCommand)
	assert.Equal(t, StateRunning, res.State)

	assert.InDelta(t, 5.0, res.Target.X, 1e-9)
	assert.InDelta(t, 0.0, res.Target.Y, 1e-9)
	assert.Negative(t, res.Command.DX)
}

func TestCommandRotatedIntoRobotFrame(t *testing.T) {
	line, err := track.Line(5, 10, 0)
	require.NoError(t, err)
	src := &staticSource{p: pose.Pose{X: 0, Y: 0}, ok: true}
	clock := timeutil.NewMockClock(time.Now())

	// A robot whose forward bearing sits 90 degrees off the world frame.
	cal := calib.Calibration{Offset: math.Pi / 2}
	f := New(testConfig(), line, src, cal, clock)
	f.Start()

	res, err := f.Update()
	require.NoError(t, err)
	require.True(t, res.HasCommand)
	assert.InDelta(t, 0.0, res.Command.DX, 1e-9)
	assert.InDelta(t, -1.0, res.Command.DY, 1e-9)
	assert.InDelta(t, 1.0, res.DistanceToTarget, 1e-9)
}

func TestCrossTrackErrorReported(t *testing.T) {
	line, err := track.Line(5, 10, 0)
	require.NoError(t, err)
	src := &staticSource{p: pose.Pose{X: 2.5, Y: 0.3}, ok: true}
	f, _ := newTestFollower(t, line, src)
	f.Start()

	res, err := f.Update()
	require.NoError(t, err)
	assert.InDelta(t, 0.3, res.CrossTrackError, 1e-9)
}

func TestOpenTrackCompletes(t *testing.T) {
	line, err := track.Line(5, 10, 0)
	require.NoError(t, err)
	src := &staticSource{p: pose.Pose{X: 4.95, Y: 0}, ok: true}
	f, _ := newTestFollower(t, line, src)
	f.Start()

	res, err := f.Update()
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
	assert.False(t, res.HasCommand)

	// Further ticks stay completed.
	res, err = f.Update()
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
}

// tickUntil advances the clock at 10 Hz, updating each tick, until the
// predicate holds or maxTicks run out.
func tickUntil(t *testing.T, f *Follower, clock *timeutil.MockClock, maxTicks int, pred func(Result, error) bool) (Result, error) {
	t.Helper()
	var (
		res Result
		err error
	)
	for i := 0; i < maxTicks; i++ {
		clock.Advance(100 * time.Millisecond)
		res, err = f.Update()
		if pred(res, err) {
			return res, err
		}
	}
	t.Fatalf("condition not reached in %d ticks; final state %s err %v", maxTicks, res.State, err)
	return res, err
}

func TestStuckSequenceSurfacesErrStuck(t *testing.T) {
	// Pose pinned in place: no progress ever accumulates.
	src := &staticSource{p: pose.Pose{X: 0.5, Y: 0}, ok: true}
	f, clock := newTestFollower(t, unitSquare(t), src)
	f.Start()

	res, _ := tickUntil(t, f, clock, 100, func(r Result, err error) bool {
		return r.State == StateStuck
	})
	assert.Equal(t, StateStuck, res.State)

	res, _ = tickUntil(t, f, clock, 5, func(r Result, err error) bool {
		return r.State == StateRecovering
	})
	assert.Equal(t, StateRecovering, res.State)

	_, err := tickUntil(t, f, clock, 100, func(r Result, err error) bool {
		return err != nil
	})
	assert.ErrorIs(t, err, ErrStuck)

	// The condition persists on subsequent ticks until the caller acts.
	clock.Advance(100 * time.Millisecond)
	_, err = f.Update()
	assert.ErrorIs(t, err, ErrStuck)
}

func TestRecoveryReturnsToRunningOnProgress(t *testing.T) {
	src := &staticSource{p: pose.Pose{X: 0.2, Y: 0}, ok: true}
	f, clock := newTestFollower(t, unitSquare(t), src)
	f.Start()

	tickUntil(t, f, clock, 100, func(r Result, err error) bool {
		return r.State == StateRecovering
	})

	// The robot breaks free and creeps along the bottom side.
	res, err := tickUntil(t, f, clock, 50, func(r Result, err error) bool {
		src.p.X += 0.02
		return r.State == StateRunning
	})
	require.NoError(t, err)
	assert.Equal(t, StateRunning, res.State)
}

func TestRecoveryDecaysOffsetTowardCenterline(t *testing.T) {
	src := &staticSource{p: pose.Pose{X: 0.5, Y: 0}, ok: true}
	f, clock := newTestFollower(t, unitSquare(t), src)
	f.Start()
	f.SetOffset(0.4)

	tickUntil(t, f, clock, 100, func(r Result, err error) bool {
		return r.State == StateRecovering
	})

	// Partway through recovery the effective target sits closer to the
	// centerline than the full offset would place it, while the caller's
	// requested offset is preserved.
	clock.Advance(2 * time.Second)
	res, err := f.Update()
	require.NoError(t, err)
	require.True(t, res.HasCommand)
	assert.InDelta(t, 0.4, f.Offset(), 1e-9)
	assert.Greater(t, res.Target.Y, -0.4+1e-6, "target should have decayed toward the centerline")
}

func TestRecoveryBiasNoneKeepsOffsetAndBoostsLookahead(t *testing.T) {
	line, err := track.Line(5, 10, 0)
	require.NoError(t, err)
	src := &staticSource{p: pose.Pose{X: 2, Y: 0}, ok: true}

	cfg := testConfig()
	cfg.RecoveryBias = BiasNone
	clock := timeutil.NewMockClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	f := New(cfg, line, src, calib.Calibration{}, clock)
	f.Start()
	f.SetOffset(0.4)

	tickUntil(t, f, clock, 100, func(r Result, err error) bool {
		return r.State == StateRecovering
	})

	// The offset stays at full strength; only the lookahead changes,
	// from 1.2 (adaptive) to 1.8 (recovery boost).
	clock.Advance(100 * time.Millisecond)
	res, err := f.Update()
	require.NoError(t, err)
	require.True(t, res.HasCommand)
	assert.Equal(t, StateRecovering, res.State)
	assert.InDelta(t, 3.8, res.Target.X, 1e-9)
	assert.InDelta(t, -0.4, res.Target.Y, 1e-9)
	assert.InDelta(t, 0.4, f.Offset(), 1e-9)
}

func TestStopResetsToIdle(t *testing.T) {
	src := &staticSource{p: pose.Pose{X: 0, Y: 0}, ok: true}
	f, _ := newTestFollower(t, unitSquare(t), src)
	f.Start()
	assert.Equal(t, StateRunning, f.State())

	f.Stop()
	assert.Equal(t, StateIdle, f.State())

	res, err := f.Update()
	require.NoError(t, err)
	assert.False(t, res.HasCommand)
}
