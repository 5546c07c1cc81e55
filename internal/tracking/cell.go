// Package tracking ingests pose packets from an external optical
// tracking system and publishes live robot poses.
//
// One Listener per tracked robot owns one UDP socket and a background
// goroutine; the only state shared with the rest of the system is a
// PoseCell, a single-writer/multi-reader slot that the control loop
// and any monitoring layer read from.
package tracking

import (
	"sync"
	"time"

	"github.com/banshee-data/pilot/internal/pose"
)

// PoseCell holds the most recent pose for one robot. The listener is
// the only writer; the control loop and the monitor are readers.
// A cell distinguishes "no data received yet" from a zero-valued pose.
type PoseCell struct {
	mu        sync.RWMutex
	pose      pose.Pose
	ok        bool
	updatedAt time.Time
	seq       uint64
}

// NewPoseCell creates an empty cell in the "no data yet" state.
func NewPoseCell() *PoseCell {
	return &PoseCell{}
}

// Set publishes a new pose. Called only by the owning listener.
func (c *PoseCell) Set(p pose.Pose, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pose = p
	c.ok = true
	c.updatedAt = at
	c.seq++
}

// Get returns the latest pose and whether any pose has been received.
func (c *PoseCell) Get() (pose.Pose, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pose, c.ok
}

// LastUpdate returns when the cell was last written and the write
// sequence number. Sequence 0 means no data yet.
func (c *PoseCell) LastUpdate() (time.Time, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt, c.seq
}
