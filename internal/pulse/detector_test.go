// internal/pulse/detector_test.go
package pulse

import (
	"math"
	"testing"
)

// Test constants matching config file defaults
const (
	testMinSamples   = 100
	testFrameMs      = 33 // ~30 fps capture cadence
	testSinePeriod   = 25 // samples per beat: 25 * 33 ms = 825 ms -> ~72.7 BPM
	testExpectedBPM  = 60000.0 / (testSinePeriod * testFrameMs)
	testBPMTolerance = 5.0
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := NewDetector(DefaultConfig())
	if err != nil {
		t.Fatalf("NewDetector failed with default config: %v", err)
	}
	return d
}

// feedSine feeds n frames of a sinusoidal intensity series with the given
// period in samples, starting at sample index start and timestamp base ms.
func feedSine(d *Detector, start, n int, period int, baseMs, stepMs int64) {
	for i := 0; i < n; i++ {
		idx := start + i
		d.ProcessFrame(Sample{
			Value:     math.Sin(2 * math.Pi * float64(idx) / float64(period)),
			Timestamp: baseMs + int64(i)*stepMs,
		})
	}
}

func TestNewDetector_ValidConfig(t *testing.T) {
	cfg := DefaultConfig()
	d, err := NewDetector(cfg)
	if err != nil {
		t.Fatalf("NewDetector failed with valid config: %v", err)
	}
	if d == nil {
		t.Fatal("NewDetector returned nil with valid config")
	}

	stored := d.Config()
	if stored.MinSamples != cfg.MinSamples {
		t.Errorf("MinSamples mismatch: got %d, want %d", stored.MinSamples, cfg.MinSamples)
	}
	if stored.MinBPM != cfg.MinBPM || stored.MaxBPM != cfg.MaxBPM {
		t.Errorf("BPM range mismatch: got [%v, %v], want [%v, %v]",
			stored.MinBPM, stored.MaxBPM, cfg.MinBPM, cfg.MaxBPM)
	}
	if d.State() != StateEmpty {
		t.Errorf("initial State() = %v, want %v", d.State(), StateEmpty)
	}
}

func TestNewDetector_InvalidConfig(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"min samples too small", func(c *Config) { c.MinSamples = 2 }, ErrInvalidMinSamples},
		{"zero smoothing window", func(c *Config) { c.SmoothingWindow = 0 }, ErrInvalidSmoothingWindow},
		{"zero bandpass low", func(c *Config) { c.BandpassLow = 0 }, ErrInvalidBandpass},
		{"negative bandpass high", func(c *Config) { c.BandpassHigh = -1 }, ErrInvalidBandpass},
		{"zero peak distance", func(c *Config) { c.PeakMinDistance = 0 }, ErrInvalidPeakDistance},
		{"zero min bpm", func(c *Config) { c.MinBPM = 0 }, ErrInvalidBPMRange},
		{"inverted bpm range", func(c *Config) { c.MinBPM = 200; c.MaxBPM = 40 }, ErrInvalidBPMRange},
		{"zero retention", func(c *Config) { c.RetentionMs = 0 }, ErrInvalidRetention},
		{"zero beat window", func(c *Config) { c.BeatWindow = 0 }, ErrInvalidBeatWindow},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)

			_, err := NewDetector(cfg)
			if err != tc.wantErr {
				t.Errorf("expected %v, got: %v", tc.wantErr, err)
			}
		})
	}
}

func TestDetector_NoBPMBelowMinSamples(t *testing.T) {
	d := newTestDetector(t)

	feedSine(d, 0, testMinSamples-1, testSinePeriod, 0, testFrameMs)

	if bpm, ok := d.BPM(); ok {
		t.Errorf("BPM() = %v before min frame count, want absent", bpm)
	}
	if d.State() != StateMeasuring {
		t.Errorf("State() = %v, want %v", d.State(), StateMeasuring)
	}
}

func TestDetector_SinusoidYieldsKnownRate(t *testing.T) {
	d := newTestDetector(t)

	feedSine(d, 0, 150, testSinePeriod, 0, testFrameMs)

	bpm, ok := d.BPM()
	if !ok {
		t.Fatal("BPM() absent after 150 sinusoidal frames")
	}
	if math.Abs(bpm-testExpectedBPM) > testBPMTolerance {
		t.Errorf("BPM() = %.2f, want %.2f +/- %.0f", bpm, testExpectedBPM, testBPMTolerance)
	}
	if d.State() != StateStable {
		t.Errorf("State() = %v, want %v", d.State(), StateStable)
	}
}

func TestDetector_ConstantSignalNoEstimate(t *testing.T) {
	d := newTestDetector(t)

	for i := 0; i < 150; i++ {
		d.ProcessFrame(Sample{Value: 128, Timestamp: int64(i) * testFrameMs})
	}

	// Normalize of a constant series is all zeros: no peaks, no estimate
	if bpm, ok := d.BPM(); ok {
		t.Errorf("BPM() = %v on constant signal, want absent", bpm)
	}
}

func TestDetector_FrozenTimestampsNoEstimate(t *testing.T) {
	d := newTestDetector(t)

	// A varying signal whose clock never advances: peaks are found, but
	// every inter-peak delta is zero, so no mean interval exists
	for i := 0; i < 200; i++ {
		d.ProcessFrame(Sample{
			Value:     math.Sin(2 * math.Pi * float64(i) / testSinePeriod),
			Timestamp: 5000,
		})
	}

	if bpm, ok := d.BPM(); ok {
		t.Errorf("BPM() = %v with frozen timestamps, want absent", bpm)
	}
	if d.State() != StateMeasuring {
		t.Errorf("State() = %v, want %v", d.State(), StateMeasuring)
	}
}

func TestDetector_OutOfRangeDoesNotOverwrite(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamples = 40
	d, err := NewDetector(cfg)
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}

	// Phase 1: 20-sample period at 40 ms/frame -> 800 ms per beat -> 75 BPM
	feedSine(d, 0, 100, 20, 0, 40)

	stored, ok := d.BPM()
	if !ok {
		t.Fatal("BPM() absent after valid phase")
	}
	if math.Abs(stored-75) > testBPMTolerance {
		t.Fatalf("phase 1 BPM() = %.2f, want ~75", stored)
	}

	// Phase 2: a timestamp jump past the retention window flushes the
	// buffer, then the same waveform arrives at 8 ms/frame -> 160 ms per
	// beat -> 375 BPM, outside [40, 200] on every recomputation.
	feedSine(d, 0, 100, 20, 100000, 8)

	got, ok := d.BPM()
	if !ok {
		t.Fatal("BPM() absent after out-of-range phase, sticky estimate lost")
	}
	if got != stored {
		t.Errorf("BPM() = %v after out-of-range computations, want retained %v", got, stored)
	}
	if d.State() != StateStable {
		t.Errorf("State() = %v, want %v (stable survives failed updates)", d.State(), StateStable)
	}
}

func TestDetector_Reset(t *testing.T) {
	d := newTestDetector(t)

	feedSine(d, 0, 150, testSinePeriod, 0, testFrameMs)
	if _, ok := d.BPM(); !ok {
		t.Fatal("BPM() absent before reset, test setup broken")
	}

	d.Reset()

	if bpm, ok := d.BPM(); ok {
		t.Errorf("BPM() = %v after Reset, want absent", bpm)
	}
	if d.BufferLen() != 0 {
		t.Errorf("BufferLen() = %d after Reset, want 0", d.BufferLen())
	}
	if d.State() != StateEmpty {
		t.Errorf("State() = %v after Reset, want %v", d.State(), StateEmpty)
	}
}

func TestDetector_BeatCallback(t *testing.T) {
	d := newTestDetector(t)

	beats := 0
	firesThisFrame := 0
	d.SetBeatCallback(func(event BeatEvent) {
		beats++
		firesThisFrame++

		// The triggering peak must lie within the trailing window
		if gap := d.BufferLen() - 1 - event.PeakIndex; gap > DefaultConfig().BeatWindow {
			t.Errorf("beat fired with peak %d positions from end, want <= %d",
				gap, DefaultConfig().BeatWindow)
		}
	})

	for i := 0; i < 200; i++ {
		firesThisFrame = 0
		d.ProcessFrame(Sample{
			Value:     math.Sin(2 * math.Pi * float64(i) / testSinePeriod),
			Timestamp: int64(i) * testFrameMs,
		})
		if firesThisFrame > 1 {
			t.Fatalf("frame %d: callback fired %d times, want at most 1", i, firesThisFrame)
		}
	}

	if beats == 0 {
		t.Error("beat callback never fired over 200 sinusoidal frames")
	}
}

func TestDetector_CallbackSurvivesReset(t *testing.T) {
	d := newTestDetector(t)

	beats := 0
	d.SetBeatCallback(func(BeatEvent) { beats++ })

	feedSine(d, 0, 150, testSinePeriod, 0, testFrameMs)
	if beats == 0 {
		t.Fatal("beat callback never fired, test setup broken")
	}

	d.Reset()
	beats = 0

	feedSine(d, 0, 150, testSinePeriod, 0, testFrameMs)
	if beats == 0 {
		t.Error("beat callback did not fire after Reset, registration lost")
	}
}

func TestDetector_UnregisterCallback(t *testing.T) {
	d := newTestDetector(t)

	beats := 0
	d.SetBeatCallback(func(BeatEvent) { beats++ })
	d.SetBeatCallback(nil)

	feedSine(d, 0, 150, testSinePeriod, 0, testFrameMs)
	if beats != 0 {
		t.Errorf("callback fired %d times after unregistering, want 0", beats)
	}
}

func TestState_String(t *testing.T) {
	testCases := []struct {
		state State
		want  string
	}{
		{StateEmpty, "empty"},
		{StateMeasuring, "measuring"},
		{StateStable, "stable"},
		{State(99), "unknown"},
	}

	for _, tc := range testCases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", tc.state, got, tc.want)
		}
	}
}
