package track

import "math"

// Sliding search window for NearestFrom, in segments. The backward slack
// tolerates tracking jitter; the forward bound keeps overlapping paths
// (figure-eight crossings) from stealing the projection.
const (
	nearestBackwardWindow = 5
	nearestForwardWindow  = 20
)

// tangentWindow is how many segments past the current one feed the
// smoothed tangent.
const tangentWindow = 2

// Projection is the result of projecting a query point onto the track.
type Projection struct {
	Segment int      // index of the nearest segment
	T       float64  // clamped parameter along that segment, 0..1
	Point   Waypoint // nearest point on the track
	S       float64  // arc length from the track start to Point
	Dist    float64  // distance from the query point to Point
}

// Nearest projects (x, y) onto the whole track.
func (t *Track) Nearest(x, y float64) Projection {
	return t.nearestIn(x, y, 0, t.NumSegments())
}

// NearestFrom projects (x, y) onto a sliding window of segments around
// fromSeg. Use it once following is underway so self-intersecting tracks
// keep the robot on its current lap of the path.
func (t *Track) NearestFrom(x, y float64, fromSeg int) Projection {
	n := t.NumSegments()
	if nearestBackwardWindow+nearestForwardWindow >= n {
		return t.nearestIn(x, y, 0, n)
	}
	start := fromSeg - nearestBackwardWindow
	if !t.closed && start < 0 {
		start = 0
	}
	end := fromSeg + nearestForwardWindow
	if !t.closed && end > n {
		end = n
	}
	return t.nearestIn(x, y, start, end)
}

// nearestIn scans segments [start, end) with wrap for closed tracks.
func (t *Track) nearestIn(x, y float64, start, end int) Projection {
	n := t.NumSegments()
	best := Projection{Dist: math.Inf(1)}
	for i := start; i < end; i++ {
		seg := ((i % n) + n) % n
		a, b := t.segment(seg)
		tt, px, py := projectOnSegment(x, y, a, b)
		d := math.Hypot(px-x, py-y)
		if d < best.Dist {
			segLen := math.Hypot(b.X-a.X, b.Y-a.Y)
			best = Projection{
				Segment: seg,
				T:       tt,
				Point:   Waypoint{X: px, Y: py},
				S:       t.segmentStart(seg) + tt*segLen,
				Dist:    d,
			}
		}
	}
	return best
}

// projectOnSegment returns the clamped parameter and foot of the
// perpendicular from (x, y) onto segment ab.
func projectOnSegment(x, y float64, a, b Waypoint) (tt, px, py float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return 0, a.X, a.Y
	}
	tt = ((x-a.X)*dx + (y-a.Y)*dy) / l2
	if tt < 0 {
		tt = 0
	} else if tt > 1 {
		tt = 1
	}
	return tt, a.X + tt*dx, a.Y + tt*dy
}

// TangentAt returns the unit travel direction at segment seg, smoothed
// over the next tangentWindow segments weighted toward the current one.
// Smoothing keeps the target direction continuous through sharp corners.
func (t *Track) TangentAt(seg int) (float64, float64) {
	n := t.NumSegments()
	var sx, sy float64
	for j := 0; j <= tangentWindow; j++ {
		i := seg + j
		if t.closed {
			i %= n
		} else if i >= n {
			break
		}
		a, b := t.segment(i)
		dx, dy := b.X-a.X, b.Y-a.Y
		l := math.Hypot(dx, dy)
		if l < minSegmentLength {
			continue
		}
		w := 1.0 / float64(1+j)
		sx += dx / l * w
		sy += dy / l * w
	}
	l := math.Hypot(sx, sy)
	if l < minSegmentLength {
		// Opposed segments cancelled out; fall back to the raw segment.
		a, b := t.segment(seg % n)
		dx, dy := b.X-a.X, b.Y-a.Y
		l = math.Hypot(dx, dy)
		return dx / l, dy / l
	}
	return sx / l, sy / l
}

// At returns the point at arc length s and the segment it lies on. For
// closed tracks s wraps modulo the total length; for open tracks it is
// clamped to the endpoints.
func (t *Track) At(s float64) (Waypoint, int) {
	if t.closed {
		s = math.Mod(s, t.total)
		if s < 0 {
			s += t.total
		}
	} else {
		if s <= 0 {
			return t.points[0], 0
		}
		if s >= t.total {
			return t.End(), t.NumSegments() - 1
		}
	}

	n := t.NumSegments()
	for i := 0; i < n; i++ {
		a, b := t.segment(i)
		segLen := math.Hypot(b.X-a.X, b.Y-a.Y)
		start := t.segmentStart(i)
		if s <= start+segLen || i == n-1 {
			tt := (s - start) / segLen
			if tt > 1 {
				tt = 1
			}
			return Waypoint{X: a.X + tt*(b.X-a.X), Y: a.Y + tt*(b.Y-a.Y)}, i
		}
	}
	return t.End(), n - 1
}

// PointAt returns the point at arc length s.
func (t *Track) PointAt(s float64) Waypoint {
	p, _ := t.At(s)
	return p
}
