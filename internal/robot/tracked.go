package robot

import (
	"fmt"
	"sync"

	"github.com/banshee-data/pilot/internal/drivemux"
	"github.com/banshee-data/pilot/internal/pose"
	"github.com/banshee-data/pilot/internal/tracking"
)

// Tracked is a physical robot: position comes from the external
// tracking pipeline, commands go out over the serial drive link.
type Tracked struct {
	id    string
	cell  *tracking.PoseCell
	drive *drivemux.Mux

	mu     sync.Mutex
	lastDX float64
	lastDY float64
	closed bool
}

// NewTracked wires a pose cell and a drive mux into a Robot. The caller
// keeps ownership of the listener that feeds the cell.
func NewTracked(id string, cell *tracking.PoseCell, drive *drivemux.Mux) *Tracked {
	return &Tracked{id: id, cell: cell, drive: drive}
}

func (r *Tracked) ID() string { return r.id }

func (r *Tracked) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed
}

func (r *Tracked) Pose() (pose.Pose, bool) {
	return r.cell.Get()
}

func (r *Tracked) MoveByVector(dx, dy float64) error {
	r.mu.Lock()
	r.lastDX, r.lastDY = dx, dy
	r.mu.Unlock()
	if err := r.drive.SendMove(dx, dy); err != nil {
		return fmt.Errorf("robot %s: %w", r.id, err)
	}
	return nil
}

func (r *Tracked) Stop() error {
	r.mu.Lock()
	r.lastDX, r.lastDY = 0, 0
	r.mu.Unlock()
	if err := r.drive.SendStop(); err != nil {
		return fmt.Errorf("robot %s: %w", r.id, err)
	}
	return nil
}

func (r *Tracked) LastCommand() (float64, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastDX, r.lastDY
}

func (r *Tracked) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return r.drive.Close()
}
