package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOutToRunSubscribers(t *testing.T) {
	bus := New()
	var first, second []string
	bus.Subscribe("run-1", func(e *Event) { first = append(first, e.Type) })
	bus.Subscribe("run-1", func(e *Event) { second = append(second, e.Type) })
	var other []string
	bus.Subscribe("run-2", func(e *Event) { other = append(other, e.Type) })

	bus.Publish(PhaseUpdated("run-1", "brief", "DRAFT", "RUNNING", 1, "tester"))

	assert.Equal(t, []string{TypePhaseUpdated}, first)
	assert.Equal(t, []string{TypePhaseUpdated}, second)
	assert.Empty(t, other)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	bus := New()
	var count int
	unsubscribe := bus.Subscribe("run-1", func(*Event) { count++ })

	bus.Publish(RunReset("run-1", "tester"))
	unsubscribe()
	unsubscribe()
	bus.Publish(RunReset("run-1", "tester"))

	assert.Equal(t, 1, count)
	assert.Zero(t, bus.SubscriberCount("run-1"))
}

func TestPanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	bus := New()
	bus.Subscribe("run-1", func(*Event) { panic("boom") })
	var delivered int
	bus.Subscribe("run-1", func(*Event) { delivered++ })

	assert.NotPanics(t, func() {
		bus.Publish(RunReset("run-1", "tester"))
	})
	assert.Equal(t, 1, delivered)
}

func TestEmittedAtIsMonotonicPerRun(t *testing.T) {
	bus := New()
	var stamps []time.Time
	bus.Subscribe("run-1", func(e *Event) { stamps = append(stamps, e.EmittedAt) })

	for i := 0; i < 5; i++ {
		bus.Publish(RunReset("run-1", "tester"))
	}
	require.Len(t, stamps, 5)
	for i := 1; i < len(stamps); i++ {
		assert.False(t, stamps[i].Before(stamps[i-1]), "event %d emitted before its predecessor", i)
	}
}

func TestStreamEmitsHeartbeatFirstThenForwards(t *testing.T) {
	bus := New()
	stream := OpenStream(bus, "run-1", time.Hour, 8)
	defer stream.Close()

	heartbeat := <-stream.Events()
	require.Equal(t, TypeHeartbeat, heartbeat.Type)
	assert.Equal(t, uint64(1), heartbeat.Seq)

	bus.Publish(PhaseUpdated("run-1", "brief", "DRAFT", "RUNNING", 1, "tester"))
	forwarded := <-stream.Events()
	assert.Equal(t, TypePhaseUpdated, forwarded.Type)
	assert.Equal(t, "brief", forwarded.PhaseID)
}

func TestStreamHeartbeatSequenceIncreases(t *testing.T) {
	bus := New()
	stream := OpenStream(bus, "run-1", time.Millisecond, 8)
	defer stream.Close()

	var seqs []uint64
	deadline := time.After(time.Second)
	for len(seqs) < 3 {
		select {
		case e := <-stream.Events():
			if e.Type == TypeHeartbeat {
				seqs = append(seqs, e.Seq)
			}
		case <-deadline:
			t.Fatal("timed out waiting for heartbeats")
		}
	}
	for i := 1; i < len(seqs); i++ {
		assert.Greater(t, seqs[i], seqs[i-1])
	}
}

func TestStreamCloseUnsubscribes(t *testing.T) {
	bus := New()
	stream := OpenStream(bus, "run-1", time.Hour, 8)
	require.Equal(t, 1, bus.SubscriberCount("run-1"))

	stream.Close()
	stream.Close()
	assert.Zero(t, bus.SubscriberCount("run-1"))

	_, open := <-stream.Events()
	for open {
		_, open = <-stream.Events()
	}
}
