// internal/source/source.go
// Package source supplies per-frame intensity samples to the detection
// engine. A source stands in for the camera-side collaborator: it produces
// one scalar intensity value plus a millisecond timestamp per captured
// frame, at whatever cadence the caller drives it.
package source

import (
	"math"

	"github.com/kwhart/pulsemon/internal/pulse"
)

// FrameSource produces one sample per call. Implementations are not safe
// for concurrent use; the pipeline drives a source from a single goroutine.
type FrameSource interface {
	Next() pulse.Sample
}

// SimConfig holds configuration for the synthetic pulse waveform.
type SimConfig struct {
	// FrameRate is the simulated capture rate in frames per second (from config: frame_rate)
	FrameRate int
	// BPM is the simulated heart rate (from config: sim_bpm)
	BPM float64
	// Noise is the amplitude of the deterministic noise term (from config: sim_noise)
	Noise float64
}

// DefaultSimConfig returns a resting heart rate at a typical phone camera
// frame rate.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		FrameRate: 30,
		BPM:       72,
		Noise:     0.02,
	}
}

// PulseSim generates a synthetic photoplethysmogram: a baseline wander plus
// a systolic peak and a smaller dicrotic bump per cardiac cycle, with a
// little deterministic noise. Intensity is scaled to an 8-bit channel level
// around a midpoint, matching what a finger-over-lens ROI would yield.
type PulseSim struct {
	config SimConfig
	phase  float64
	nowMs  float64
}

// NewPulseSim creates a simulator starting at timestamp 0.
func NewPulseSim(cfg SimConfig) *PulseSim {
	if cfg.FrameRate < 1 {
		cfg.FrameRate = 30
	}
	return &PulseSim{config: cfg}
}

// Next returns the next frame's sample and advances the simulated clock by
// one frame interval.
func (s *PulseSim) Next() pulse.Sample {
	cycleHz := s.config.BPM / 60.0
	s.phase += cycleHz / float64(s.config.FrameRate)
	if s.phase >= 1.0 {
		s.phase -= 1.0
	}

	t := s.phase // position in the cardiac cycle, 0..1

	// Slow baseline wander (respiration-like)
	baseline := 0.05 * math.Sin(2*math.Pi*0.2*t)

	// Systolic peak and dicrotic bump as Gaussians
	systolic := 1.0 * gauss(t, 0.25, 0.05)
	dicrotic := 0.2 * gauss(t, 0.45, 0.07)

	// Deterministic noise, cheap and reproducible
	noise := s.config.Noise * (2*fract(math.Sin(12345.678*t)*9876.543) - 1)

	value := 128 + 24*(baseline+systolic+dicrotic+noise)

	sample := pulse.Sample{
		Value:     value,
		Timestamp: int64(math.Round(s.nowMs)),
	}
	s.nowMs += 1000.0 / float64(s.config.FrameRate)
	return sample
}

func gauss(x, mu, sigma float64) float64 {
	z := (x - mu) / sigma
	return math.Exp(-0.5 * z * z)
}

func fract(x float64) float64 { return x - math.Floor(x) }
