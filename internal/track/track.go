// Package track models the path a robot follows: an ordered polyline of
// waypoints, open or closed, with the geometry queries the follower needs
// (nearest projection, smoothed tangent, arc-length walking).
package track

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrTooFewPoints      = errors.New("track needs at least 2 waypoints")
	ErrZeroLengthSegment = errors.New("track has zero-length segment")
)

// minSegmentLength rejects consecutive waypoints closer than this.
const minSegmentLength = 1e-6

// closeTolerance is how near the first and last waypoints of a closed
// track may sit before the duplicate endpoint is collapsed.
const closeTolerance = 0.1

// Waypoint is a single 2D track point in meters, world frame.
type Waypoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Track is an immutable ordered polyline. A closed track wraps from the
// last waypoint back to the first with an implicit closing segment.
type Track struct {
	name   string
	points []Waypoint
	closed bool

	// cum[i] is the arc length from the start to points[i]. For closed
	// tracks total carries the extra closing segment.
	cum   []float64
	total float64
}

// New validates the waypoint list and builds a track. Closed tracks that
// arrive with an explicit duplicate endpoint (generator or file formats
// that repeat the first point) have the duplicate collapsed.
func New(name string, points []Waypoint, closed bool) (*Track, error) {
	pts := make([]Waypoint, len(points))
	copy(pts, points)

	if closed && len(pts) >= 2 {
		first, last := pts[0], pts[len(pts)-1]
		if math.Hypot(last.X-first.X, last.Y-first.Y) < closeTolerance {
			pts = pts[:len(pts)-1]
		}
	}

	if len(pts) < 2 {
		return nil, fmt.Errorf("track %q: %w", name, ErrTooFewPoints)
	}
	for i := 1; i < len(pts); i++ {
		if math.Hypot(pts[i].X-pts[i-1].X, pts[i].Y-pts[i-1].Y) < minSegmentLength {
			return nil, fmt.Errorf("track %q: waypoints %d and %d coincide: %w", name, i-1, i, ErrZeroLengthSegment)
		}
	}

	t := &Track{name: name, points: pts, closed: closed}
	t.cum = make([]float64, len(pts))
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		t.cum[i] = t.cum[i-1] + math.Hypot(b.X-a.X, b.Y-a.Y)
	}
	t.total = t.cum[len(pts)-1]
	if closed {
		a, b := pts[len(pts)-1], pts[0]
		t.total += math.Hypot(b.X-a.X, b.Y-a.Y)
	}
	return t, nil
}

func (t *Track) Name() string       { return t.name }
func (t *Track) Closed() bool       { return t.closed }
func (t *Track) Length() float64    { return t.total }
func (t *Track) Points() []Waypoint { return t.points }

// NumSegments counts directed segments, including the closing segment of
// a closed track.
func (t *Track) NumSegments() int {
	if t.closed {
		return len(t.points)
	}
	return len(t.points) - 1
}

// segment returns the endpoints of segment i, wrapping for the closing
// segment of a closed track.
func (t *Track) segment(i int) (Waypoint, Waypoint) {
	a := t.points[i]
	b := t.points[(i+1)%len(t.points)]
	return a, b
}

// segmentStart is the arc length at the start of segment i.
func (t *Track) segmentStart(i int) float64 {
	return t.cum[i]
}

// End returns the final waypoint. For closed tracks this is simply the
// last listed point; completion never applies to them.
func (t *Track) End() Waypoint {
	return t.points[len(t.points)-1]
}
