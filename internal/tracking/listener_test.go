package tracking

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pilot/internal/pose"
)

func init() {
	SetLogger(nil)
	pose.SetLogger(nil)
}

func poseFrame(x, y, yaw float32) []byte {
	buf := make([]byte, pose.FrameSize)
	half := float64(yaw) / 2
	vals := []float32{x, y, 0, 0, 0, float32(math.Sin(half)), float32(math.Cos(half))}
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// waitForSeq polls the cell until its write sequence reaches want.
func waitForSeq(t *testing.T, cell *PoseCell, want uint64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, seq := cell.LastUpdate(); seq >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	_, seq := cell.LastUpdate()
	t.Fatalf("cell sequence = %d, want >= %d", seq, want)
}

func TestPoseCellDistinguishesNoDataFromZero(t *testing.T) {
	cell := NewPoseCell()

	if _, ok := cell.Get(); ok {
		t.Fatal("empty cell reported data")
	}

	cell.Set(pose.Pose{}, time.Now())
	p, ok := cell.Get()
	if !ok {
		t.Fatal("cell with zero pose reported no data")
	}
	if p.X != 0 || p.Y != 0 || p.Yaw != 0 {
		t.Errorf("pose = %+v, want zero", p)
	}
}

func TestListenerPublishesPoses(t *testing.T) {
	sock := NewFakeSocket()
	cell := NewPoseCell()
	l := NewListener(ListenerConfig{
		RobotID:       "umh_2",
		Port:          9876,
		Cell:          cell,
		SocketFactory: &FakeSocketFactory{Socket: sock},
	})

	require.NoError(t, l.Start())
	defer l.Stop()

	sock.Incoming <- poseFrame(1.5, -0.5, 0)
	waitForSeq(t, cell, 1)

	p, ok := cell.Get()
	require.True(t, ok)
	assert.InDelta(t, 1.5, p.X, 1e-6)
	assert.InDelta(t, -0.5, p.Y, 1e-6)
}

func TestListenerSwallowsMalformedAndKeepsPreviousPose(t *testing.T) {
	sock := NewFakeSocket()
	cell := NewPoseCell()
	l := NewListener(ListenerConfig{
		RobotID:       "umh_2",
		Port:          9876,
		Cell:          cell,
		SocketFactory: &FakeSocketFactory{Socket: sock},
	})

	require.NoError(t, l.Start())
	defer l.Stop()

	sock.Incoming <- poseFrame(2, 3, 0)
	waitForSeq(t, cell, 1)

	// A short packet must be dropped without disturbing the cell.
	sock.Incoming <- []byte{1, 2, 3, 4}
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, malformed := l.Stats(); malformed == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("malformed packet never counted")
		}
		time.Sleep(time.Millisecond)
	}

	p, ok := cell.Get()
	require.True(t, ok)
	assert.InDelta(t, 2.0, p.X, 1e-6)
	assert.InDelta(t, 3.0, p.Y, 1e-6)
	if _, seq := cell.LastUpdate(); seq != 1 {
		t.Errorf("cell sequence = %d, want 1 (malformed packet must not write)", seq)
	}
}

func TestListenerStartStopIdempotent(t *testing.T) {
	sock := NewFakeSocket()
	l := NewListener(ListenerConfig{
		RobotID:       "umh_3",
		Port:          9877,
		Cell:          NewPoseCell(),
		SocketFactory: &FakeSocketFactory{Socket: sock},
	})

	require.NoError(t, l.Start())
	require.NoError(t, l.Start()) // second Start is a no-op

	l.Stop()
	l.Stop() // second Stop is a no-op

	if sock.CloseCalls != 1 {
		t.Errorf("socket closed %d times, want 1", sock.CloseCalls)
	}
}

func TestListenerBindFailureReportsPort(t *testing.T) {
	bindErr := errors.New("address already in use")
	l := NewListener(ListenerConfig{
		RobotID:       "umh_4",
		Port:          9878,
		Cell:          NewPoseCell(),
		SocketFactory: &FakeSocketFactory{Err: bindErr},
	})

	err := l.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "9878")
	assert.ErrorIs(t, err, bindErr)
}
