package db

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// RunSummary aggregates one session's recorded poses.
type RunSummary struct {
	Samples     int
	Duration    time.Duration
	Distance    float64 // meters travelled along the recorded trail
	MeanSpeed   float64 // m/s averaged over inter-sample steps
	SpeedStdDev float64
	MaxSpeed    float64
}

// Summarize computes run statistics from recorded pose samples. Samples
// must be in recording order. Steps with non-increasing timestamps are
// skipped since they carry no usable speed information.
func Summarize(samples []PoseSample) RunSummary {
	s := RunSummary{Samples: len(samples)}
	if len(samples) < 2 {
		return s
	}
	s.Duration = samples[len(samples)-1].At.Sub(samples[0].At)

	speeds := make([]float64, 0, len(samples)-1)
	for i := 1; i < len(samples); i++ {
		dt := samples[i].At.Sub(samples[i-1].At).Seconds()
		if dt <= 0 {
			continue
		}
		step := math.Hypot(samples[i].X-samples[i-1].X, samples[i].Y-samples[i-1].Y)
		s.Distance += step
		v := step / dt
		speeds = append(speeds, v)
		if v > s.MaxSpeed {
			s.MaxSpeed = v
		}
	}
	if len(speeds) == 0 {
		return s
	}
	s.MeanSpeed = stat.Mean(speeds, nil)
	if len(speeds) > 1 {
		s.SpeedStdDev = stat.StdDev(speeds, nil)
	}
	return s
}

// SummarizeSession loads a session's poses and summarizes them.
func (db *DB) SummarizeSession(sessionID string) (RunSummary, error) {
	samples, err := db.PosesForSession(sessionID)
	if err != nil {
		return RunSummary{}, err
	}
	return Summarize(samples), nil
}
