// internal/pulse/detector.go
// Package pulse implements the heart pulse detection engine: a sample
// buffer, the filtering pipeline, and the BPM estimation state machine.
package pulse

import (
	"errors"
	"sync/atomic"

	"github.com/kwhart/pulsemon/internal/filter"
)

var (
	// ErrInvalidMinSamples indicates the minimum frame count must be at least 3
	ErrInvalidMinSamples = errors.New("min samples must be at least 3")
	// ErrInvalidSmoothingWindow indicates the moving-average window must be positive
	ErrInvalidSmoothingWindow = errors.New("smoothing window must be positive")
	// ErrInvalidBandpass indicates both band-pass window sizes must be positive
	ErrInvalidBandpass = errors.New("band-pass window sizes must be positive")
	// ErrInvalidPeakDistance indicates the peak exclusion distance must be positive
	ErrInvalidPeakDistance = errors.New("peak min distance must be positive")
	// ErrInvalidBPMRange indicates the valid BPM range must satisfy 0 < min < max
	ErrInvalidBPMRange = errors.New("bpm range must satisfy 0 < min < max")
	// ErrInvalidRetention indicates the retention window must be positive
	ErrInvalidRetention = errors.New("retention window must be positive")
	// ErrInvalidBeatWindow indicates the beat freshness window must be positive
	ErrInvalidBeatWindow = errors.New("beat window must be positive")
)

// Sample is one per-frame intensity measurement: a scalar value (e.g. the
// mean color-channel level over a region of interest) plus its acquisition
// timestamp in milliseconds. Immutable once produced.
type Sample struct {
	Value     float64
	Timestamp int64
}

// State describes the engine's estimation state.
type State int

const (
	// StateEmpty means no frame has been processed since creation or reset.
	StateEmpty State = iota
	// StateMeasuring means the buffer is filling but no valid BPM exists yet.
	StateMeasuring
	// StateStable means a valid BPM has been computed; the estimate is
	// sticky and persists through later failed computations.
	StateStable
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateMeasuring:
		return "measuring"
	case StateStable:
		return "stable"
	default:
		return "unknown"
	}
}

// BeatEvent is emitted synchronously from ProcessFrame when the most recent
// accepted peak lies near the end of the buffer. It refires on every
// processed frame while that peak remains within the trailing window, so it
// is a UI feedback signal, not a once-per-heartbeat count.
type BeatEvent struct {
	// Timestamp is the buffer timestamp of the triggering peak, in ms
	Timestamp int64
	// PeakIndex is the peak's position in the current buffer
	PeakIndex int
	// BPM is the current sticky estimate (0 when HasBPM is false)
	BPM float64
	// HasBPM reports whether a valid estimate exists yet
	HasBPM bool
}

// BeatCallback is called when a beat is detected. It runs synchronously
// inside ProcessFrame and must be fast, non-blocking, and must not re-enter
// the detector.
type BeatCallback func(event BeatEvent)

// Config holds the detection engine parameters. All values should come from
// the application config file.
type Config struct {
	// MinSamples is the buffer length required before the pipeline runs (from config: min_samples)
	MinSamples int
	// SmoothingWindow is the moving-average window of the first stage (from config: smoothing_window)
	SmoothingWindow int
	// BandpassLow is the lagged-difference size of the high-pass stage (from config: bandpass_low)
	BandpassLow int
	// BandpassHigh is the moving-average window of the low-pass stage (from config: bandpass_high)
	BandpassHigh int
	// PeakMinDistance is the exclusion zone between accepted peaks, in samples (from config: peak_min_distance)
	PeakMinDistance int
	// MinBPM and MaxBPM bound the accepted estimate range (from config: bpm_min, bpm_max)
	MinBPM float64
	MaxBPM float64
	// RetentionMs is the buffer's sample lifetime (from config: retention_ms)
	RetentionMs int64
	// BeatWindow is how close to the buffer end the latest peak must be,
	// in samples, for a beat event to fire (from config: beat_window)
	BeatWindow int
}

// DefaultConfig returns the fixed parameters of the detection session.
func DefaultConfig() Config {
	return Config{
		MinSamples:      100,
		SmoothingWindow: 5,
		BandpassLow:     10,
		BandpassHigh:    3,
		PeakMinDistance: 10,
		MinBPM:          40,
		MaxBPM:          200,
		RetentionMs:     10000,
		BeatWindow:      5,
	}
}

// Detector extracts a beats-per-minute estimate from per-frame intensity
// samples. It owns the sample buffer, the sticky BPM estimate, and at most
// one registered beat callback. One detector is created per detection
// session and is long-lived.
//
// The detector is single-threaded by contract: ProcessFrame calls must not
// overlap, and replacing the callback is safe only between frames. The
// callback slot itself is an atomic pointer so BPM polling and callback
// swaps never tear.
type Detector struct {
	config Config
	buffer *Buffer

	bpm    float64
	hasBPM bool
	state  State

	// Callback for beat events (atomic for safe replacement)
	callbackPtr atomic.Pointer[BeatCallback]
}

// NewDetector creates a detection engine with the given configuration.
func NewDetector(cfg Config) (*Detector, error) {
	if cfg.MinSamples < 3 {
		return nil, ErrInvalidMinSamples
	}
	if cfg.SmoothingWindow < 1 {
		return nil, ErrInvalidSmoothingWindow
	}
	if cfg.BandpassLow < 1 || cfg.BandpassHigh < 1 {
		return nil, ErrInvalidBandpass
	}
	if cfg.PeakMinDistance < 1 {
		return nil, ErrInvalidPeakDistance
	}
	if cfg.MinBPM <= 0 || cfg.MaxBPM <= cfg.MinBPM {
		return nil, ErrInvalidBPMRange
	}
	if cfg.RetentionMs < 1 {
		return nil, ErrInvalidRetention
	}
	if cfg.BeatWindow < 1 {
		return nil, ErrInvalidBeatWindow
	}

	return &Detector{
		config: cfg,
		buffer: NewBuffer(cfg.RetentionMs),
		state:  StateEmpty,
	}, nil
}

// SetBeatCallback replaces the single registered beat callback. Passing nil
// unregisters it. Safe to call only between frames.
func (d *Detector) SetBeatCallback(cb BeatCallback) {
	if cb == nil {
		d.callbackPtr.Store(nil)
	} else {
		d.callbackPtr.Store(&cb)
	}
}

// ProcessFrame ingests one sample and runs the detection pipeline. A frame
// that yields too little data, too few peaks, degenerate timing, or an
// out-of-range BPM is normal flow: the frame is absorbed and the previous
// estimate is retained.
func (d *Detector) ProcessFrame(sample Sample) {
	d.buffer.Append(sample.Value, sample.Timestamp)
	if d.state == StateEmpty {
		d.state = StateMeasuring
	}

	if d.buffer.Len() < d.config.MinSamples {
		return
	}

	// Fixed pipeline order: smooth, detrend, band-pass, normalize. Every
	// stage preserves length, so peak indices map back to buffer positions.
	filtered := filter.MovingAverage(d.buffer.Values(), d.config.SmoothingWindow)
	filtered = filter.Detrend(filtered)
	filtered = filter.Bandpass(filtered, d.config.BandpassLow, d.config.BandpassHigh)
	filtered = filter.Normalize(filtered)

	peaks := filter.FindPeaks(filtered, filter.PeakOptions{
		MinDistance: d.config.PeakMinDistance,
	})
	if len(peaks) < 2 {
		return
	}

	if bpm, ok := d.estimateBPM(peaks); ok && bpm >= d.config.MinBPM && bpm <= d.config.MaxBPM {
		d.bpm = bpm
		d.hasBPM = true
		d.state = StateStable
	}

	// Beat feedback is independent of whether the estimate updated: it
	// fires whenever the latest peak sits in the trailing window.
	last := peaks[len(peaks)-1]
	if d.buffer.Len()-1-last <= d.config.BeatWindow {
		d.emitBeat(BeatEvent{
			Timestamp: d.buffer.TimestampAt(last),
			PeakIndex: last,
			BPM:       d.bpm,
			HasBPM:    d.hasBPM,
		})
	}
}

// estimateBPM computes 60000 over the mean of the positive time deltas
// between consecutive peaks, using the original buffer timestamps at the
// peak indices. Returns false when no positive delta exists.
func (d *Detector) estimateBPM(peaks []int) (float64, bool) {
	var sum float64
	var count int
	for i := 1; i < len(peaks); i++ {
		delta := d.buffer.TimestampAt(peaks[i]) - d.buffer.TimestampAt(peaks[i-1])
		if delta <= 0 {
			continue
		}
		sum += float64(delta)
		count++
	}
	if count == 0 {
		return 0, false
	}
	return 60000 / (sum / float64(count)), true
}

// emitBeat calls the registered callback if set.
func (d *Detector) emitBeat(event BeatEvent) {
	cbPtr := d.callbackPtr.Load()
	if cbPtr != nil {
		(*cbPtr)(event)
	}
}

// BPM returns the sticky estimate and whether one has ever been computed.
func (d *Detector) BPM() (float64, bool) {
	return d.bpm, d.hasBPM
}

// State returns the engine's estimation state.
func (d *Detector) State() State {
	return d.state
}

// BufferLen returns the current sample buffer depth.
func (d *Detector) BufferLen() int {
	return d.buffer.Len()
}

// Reset clears the buffer and the estimate and returns the engine to
// StateEmpty. The callback registration survives a reset.
func (d *Detector) Reset() {
	d.buffer.Reset()
	d.bpm = 0
	d.hasBPM = false
	d.state = StateEmpty
}

// Config returns the current configuration.
func (d *Detector) Config() Config {
	return d.config
}
