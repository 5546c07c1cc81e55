package track

import "math"

// Circle builds a closed circular track of the given radius centered at
// (cx, cy), sampled counterclockwise from bearing 0.
func Circle(radius float64, numPoints int, cx, cy float64) (*Track, error) {
	pts := make([]Waypoint, 0, numPoints)
	for i := 0; i < numPoints; i++ {
		angle := 2 * math.Pi * float64(i) / float64(numPoints)
		pts = append(pts, Waypoint{
			X: cx + radius*math.Cos(angle),
			Y: cy + radius*math.Sin(angle),
		})
	}
	return New("circle", pts, true)
}

// Square builds a closed square track of the given side length centered
// on the origin, with pointsPerSide samples along each side.
func Square(side float64, pointsPerSide int) (*Track, error) {
	half := side / 2
	corners := []Waypoint{
		{X: -half, Y: -half},
		{X: half, Y: -half},
		{X: half, Y: half},
		{X: -half, Y: half},
	}
	pts := make([]Waypoint, 0, 4*pointsPerSide)
	for i := range corners {
		a := corners[i]
		b := corners[(i+1)%len(corners)]
		for j := 0; j < pointsPerSide; j++ {
			t := float64(j) / float64(pointsPerSide)
			pts = append(pts, Waypoint{X: a.X + t*(b.X-a.X), Y: a.Y + t*(b.Y-a.Y)})
		}
	}
	return New("square", pts, true)
}

// FigureEight builds a closed lemniscate track. The crossing at the
// origin is intentional; followers rely on windowed nearest-segment
// search to stay on their current lobe.
func FigureEight(radius float64, numPoints int) (*Track, error) {
	pts := make([]Waypoint, 0, numPoints)
	for i := 0; i < numPoints; i++ {
		t := 2 * math.Pi * float64(i) / float64(numPoints)
		pts = append(pts, Waypoint{
			X: radius * math.Sin(t),
			Y: radius * math.Sin(t) * math.Cos(t),
		})
	}
	return New("figure-eight", pts, true)
}

// Line builds an open straight track of the given length from the origin
// at the given world-frame bearing.
func Line(length float64, numPoints int, angle float64) (*Track, error) {
	pts := make([]Waypoint, 0, numPoints+1)
	for i := 0; i <= numPoints; i++ {
		t := float64(i) / float64(numPoints)
		pts = append(pts, Waypoint{
			X: t * length * math.Cos(angle),
			Y: t * length * math.Sin(angle),
		})
	}
	return New("line", pts, false)
}
