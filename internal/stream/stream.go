// internal/stream/stream.go
// Package stream publishes detection output over NATS for downstream
// consumers (dashboards, recorders). Publishing is fire-and-forget: a lost
// message only costs one reading, the next frame produces another.
package stream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Connect dials the NATS server with reconnection enabled.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(
		url,
		nats.Name("pulsemon"),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

// ReadingMsg is published on <prefix>.bpm after every processed frame once
// an estimate exists.
type ReadingMsg struct {
	Ts    int64   `json:"ts"`
	BPM   float64 `json:"bpm"`
	State string  `json:"state"`
}

// BeatMsg is published on <prefix>.beat when the engine fires a beat event.
type BeatMsg struct {
	Ts  int64   `json:"ts"`
	BPM float64 `json:"bpm,omitempty"`
}

// Publisher sends readings and beat events to fixed subjects under a
// common prefix.
type Publisher struct {
	nc      *nats.Conn
	bpmSub  string
	beatSub string
}

// NewPublisher creates a publisher over an established connection.
// The prefix names the subjects: <prefix>.bpm and <prefix>.beat.
func NewPublisher(nc *nats.Conn, prefix string) *Publisher {
	if prefix == "" {
		prefix = "pulse"
	}
	return &Publisher{
		nc:      nc,
		bpmSub:  prefix + ".bpm",
		beatSub: prefix + ".beat",
	}
}

// PublishReading sends the current estimate.
func (p *Publisher) PublishReading(msg ReadingMsg) error {
	return p.publish(p.bpmSub, msg)
}

// PublishBeat sends a beat event.
func (p *Publisher) PublishBeat(msg BeatMsg) error {
	return p.publish(p.beatSub, msg)
}

func (p *Publisher) publish(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}
	if err := p.nc.Publish(subject, b); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Subjects returns the BPM and beat subjects, in that order.
func (p *Publisher) Subjects() (string, string) {
	return p.bpmSub, p.beatSub
}
