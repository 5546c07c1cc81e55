package monitor

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/pilot/internal/db"
	"github.com/banshee-data/pilot/internal/track"
)

// RenderRun saves a PNG comparing the planned track with the recorded
// trail of one session.
func RenderRun(tr *track.Track, samples []db.PoseSample, outPath string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("track %s", tr.Name())
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	points := tr.Points()
	trackPts := make(plotter.XYs, 0, len(points)+1)
	for _, wp := range points {
		trackPts = append(trackPts, plotter.XY{X: wp.X, Y: wp.Y})
	}
	if tr.Closed() && len(points) > 0 {
		trackPts = append(trackPts, plotter.XY{X: points[0].X, Y: points[0].Y})
	}

	trackLine, err := plotter.NewLine(trackPts)
	if err != nil {
		return fmt.Errorf("build track line: %w", err)
	}
	trackLine.Width = vg.Points(1)
	trackLine.Color = color.RGBA{B: 255, A: 255}
	p.Add(trackLine)
	p.Legend.Add("track", trackLine)

	if len(samples) > 0 {
		trailPts := make(plotter.XYs, 0, len(samples))
		for _, s := range samples {
			trailPts = append(trailPts, plotter.XY{X: s.X, Y: s.Y})
		}
		trailLine, err := plotter.NewLine(trailPts)
		if err != nil {
			return fmt.Errorf("build trail line: %w", err)
		}
		trailLine.Width = vg.Points(1)
		trailLine.Color = color.RGBA{R: 255, A: 255}
		p.Add(trailLine)
		p.Legend.Add("trail", trailLine)
	}

	if err := p.Save(8*vg.Inch, 8*vg.Inch, outPath); err != nil {
		return fmt.Errorf("save plot %s: %w", outPath, err)
	}
	return nil
}
