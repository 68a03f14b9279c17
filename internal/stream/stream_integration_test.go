//go:build integration

package stream

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

// These tests require a running NATS server and are skipped by default.
// Run with: NATS_URL=nats://127.0.0.1:4222 go test -tags=integration ./internal/stream

const integrationURL = "nats://127.0.0.1:4222"

func TestPublisher_RoundTrip_Integration(t *testing.T) {
	nc, err := Connect(integrationURL)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer nc.Drain()

	p := NewPublisher(nc, "pulsetest")
	bpmSub, _ := p.Subjects()

	received := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(bpmSub, received)
	if err != nil {
		t.Fatalf("subscribe error = %v", err)
	}
	defer sub.Unsubscribe()

	msg := ReadingMsg{Ts: time.Now().UnixMilli(), BPM: 72.5, State: "stable"}
	if err := p.PublishReading(msg); err != nil {
		t.Fatalf("PublishReading() error = %v", err)
	}

	select {
	case m := <-received:
		if len(m.Data) == 0 {
			t.Error("received empty message")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received within 2s")
	}
}
