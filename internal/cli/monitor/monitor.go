// internal/cli/monitor/monitor.go
// Package monitor wires a frame source into the detection engine and fans
// the results out to the log, the optional NATS publisher, and the optional
// HTTP snapshot server. The whole pipeline runs on one goroutine: frames
// are processed serially and reset requests are applied between frames.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kwhart/pulsemon/internal/config"
	"github.com/kwhart/pulsemon/internal/pulse"
	"github.com/kwhart/pulsemon/internal/server"
	"github.com/kwhart/pulsemon/internal/source"
	"github.com/kwhart/pulsemon/internal/stream"
)

// ErrSettingsRequired indicates Options.Settings was nil
var ErrSettingsRequired = errors.New("settings are required")

// Options configures a pipeline run. Source, Publisher, and Server are
// optional; a nil Source falls back to the synthetic pulse simulator.
type Options struct {
	Settings  *config.Settings
	Source    source.FrameSource
	Publisher *stream.Publisher
	Server    *server.Server
	Logger    *slog.Logger
}

// Runner drives the detection pipeline at the configured frame rate.
type Runner struct {
	settings  *config.Settings
	detector  *pulse.Detector
	source    source.FrameSource
	publisher *stream.Publisher
	server    *server.Server
	logger    *slog.Logger
}

// New builds the detection engine from the settings and registers the beat
// callback fan-out.
func New(opts Options) (*Runner, error) {
	if opts.Settings == nil {
		return nil, ErrSettingsRequired
	}

	s := opts.Settings
	detector, err := pulse.NewDetector(pulse.Config{
		MinSamples:      s.MinSamples,
		SmoothingWindow: s.SmoothingWindow,
		BandpassLow:     s.BandpassLow,
		BandpassHigh:    s.BandpassHigh,
		PeakMinDistance: s.PeakMinDistance,
		MinBPM:          s.BPMMin,
		MaxBPM:          s.BPMMax,
		RetentionMs:     s.RetentionMs,
		BeatWindow:      s.BeatWindow,
	})
	if err != nil {
		return nil, err
	}

	src := opts.Source
	if src == nil {
		src = source.NewPulseSim(source.SimConfig{
			FrameRate: s.FrameRate,
			BPM:       s.SimBPM,
			Noise:     s.SimNoise,
		})
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Runner{
		settings:  s,
		detector:  detector,
		source:    src,
		publisher: opts.Publisher,
		server:    opts.Server,
		logger:    logger,
	}

	detector.SetBeatCallback(r.onBeat)
	return r, nil
}

// Detector exposes the engine for status queries.
func (r *Runner) Detector() *pulse.Detector {
	return r.detector
}

// Run processes frames until the context is canceled. It blocks the calling
// goroutine; all engine access happens here.
func (r *Runner) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(r.settings.FrameRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("pipeline started",
		"frame_rate", r.settings.FrameRate,
		"min_samples", r.settings.MinSamples)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("pipeline stopping")
			return nil

		case <-ticker.C:
			r.step()
		}
	}
}

// step processes exactly one frame.
func (r *Runner) step() {
	if r.server != nil && r.server.ConsumeResetRequest() {
		r.detector.Reset()
		r.logger.Info("engine reset", "source", "http")
	}

	prevState := r.detector.State()
	sample := r.source.Next()
	r.detector.ProcessFrame(sample)

	state := r.detector.State()
	if state != prevState {
		r.logger.Info("state changed", "from", prevState.String(), "to", state.String())
	}

	bpm, valid := r.detector.BPM()

	if r.server != nil {
		r.server.Update(server.Snapshot{
			BPM:       bpm,
			Valid:     valid,
			State:     state.String(),
			BufferLen: r.detector.BufferLen(),
			UpdatedAt: sample.Timestamp,
		})
	}

	if r.publisher != nil && valid {
		err := r.publisher.PublishReading(stream.ReadingMsg{
			Ts:    time.Now().UnixMilli(),
			BPM:   bpm,
			State: state.String(),
		})
		if err != nil {
			r.logger.Warn("publish reading failed", "error", err)
		}
	}
}

// onBeat runs synchronously inside ProcessFrame; keep it fast.
func (r *Runner) onBeat(event pulse.BeatEvent) {
	if r.settings.Debug {
		r.logger.Debug("beat", "peak_ts", event.Timestamp, "bpm", event.BPM)
	}

	if r.server != nil {
		r.server.RecordBeat()
	}

	if r.publisher != nil {
		msg := stream.BeatMsg{Ts: time.Now().UnixMilli()}
		if event.HasBPM {
			msg.BPM = event.BPM
		}
		if err := r.publisher.PublishBeat(msg); err != nil {
			r.logger.Warn("publish beat failed", "error", err)
		}
	}
}
