package monitor

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// handleTrackChart renders a quick scatter plot (HTML) of the track
// waypoints and the robot's recorded trail using go-echarts. This is a
// debugging-only endpoint (no auth) to eyeball tracking quality without
// a full UI.
func (s *Server) handleTrackChart(w http.ResponseWriter, r *http.Request) {
	points := s.tr.Points()
	trail := s.trailSnapshot()

	trackData := make([]opts.ScatterData, 0, len(points))
	maxAbs := 1.0
	for _, p := range points {
		if abs(p.X) > maxAbs {
			maxAbs = abs(p.X)
		}
		if abs(p.Y) > maxAbs {
			maxAbs = abs(p.Y)
		}
		trackData = append(trackData, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
	}

	trailData := make([]opts.ScatterData, 0, len(trail))
	for _, p := range trail {
		if abs(p.X) > maxAbs {
			maxAbs = abs(p.X)
		}
		if abs(p.Y) > maxAbs {
			maxAbs = abs(p.Y)
		}
		trailData = append(trailData, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
	}

	// Square plot with symmetric axes so the geometry is not distorted.
	pad := maxAbs * 1.1

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Track + Trail", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Track + Trail", Subtitle: fmt.Sprintf("robot=%s track=%s trail=%d", s.robotID, s.tr.Name(), len(trail))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)

	scatter.AddSeries("track", trackData, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	scatter.AddSeries("trail", trailData, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		http.Error(w, fmt.Sprintf("failed to render chart: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
