package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setFlag swaps a string flag value for the test and restores it
// afterwards.
func setFlag(t *testing.T, p *string, v string) {
	t.Helper()
	old := *p
	*p = v
	t.Cleanup(func() { *p = old })
}

func TestBuildTrackShapes(t *testing.T) {
	tests := []struct {
		shape  string
		closed bool
	}{
		{"circle", true},
		{"square", true},
		{"figure-eight", true},
		{"line", false},
	}
	for _, tt := range tests {
		t.Run(tt.shape, func(t *testing.T) {
			setFlag(t, trackType, tt.shape)
			tr, err := buildTrack()
			require.NoError(t, err)
			assert.Equal(t, tt.closed, tr.Closed())
			assert.Greater(t, tr.Length(), 0.0)
		})
	}
}

func TestBuildTrackUnknownShape(t *testing.T) {
	setFlag(t, trackType, "möbius")
	_, err := buildTrack()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown track type")
}

func TestRunReturnsErrorInsteadOfExiting(t *testing.T) {
	// Failures must propagate as errors so deferred cleanup in run can
	// release sockets and serial ports on the way out.
	setFlag(t, trackType, "nonexistent")
	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to build track")
}

func TestRunSaveTrackWritesFileAndStops(t *testing.T) {
	out := filepath.Join(t.TempDir(), "circle.json")
	setFlag(t, trackType, "circle")
	setFlag(t, saveTrack, out)

	require.NoError(t, run())

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
