package event

import (
	"sync"
	"time"

	"github.com/strokeworks/vectorflow/internal/clock"
)

// DefaultHeartbeatInterval is used when a stream is opened without an
// explicit interval.
const DefaultHeartbeatInterval = 15 * time.Second

// Stream bridges a bus subscription into a buffered channel for long-lived
// consumers. The first emitted event is always a heartbeat, further
// heartbeats tick independently of state changes so a consumer can tell a
// live-but-idle connection from a stalled one. Events that arrive while the
// buffer is full are dropped; the consumer reconciles via a snapshot fetch.
type Stream struct {
	runID       string
	events      chan *Event
	unsubscribe func()
	done        chan struct{}
	closeOnce   sync.Once

	mu     sync.Mutex
	seq    uint64
	closed bool
}

// OpenStream subscribes to a run and starts the heartbeat ticker. Callers
// must Close the stream when done.
func OpenStream(bus *Service, runID string, heartbeatInterval time.Duration, buffer int) *Stream {
	if heartbeatInterval <= 0 {
		heartbeatInterval = DefaultHeartbeatInterval
	}
	if buffer <= 0 {
		buffer = 64
	}
	s := &Stream{
		runID:  runID,
		events: make(chan *Event, buffer),
		done:   make(chan struct{}),
	}
	s.unsubscribe = bus.Subscribe(runID, func(event *Event) {
		s.offer(event)
	})
	s.offer(s.heartbeat())

	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				s.offer(s.heartbeat())
			}
		}
	}()
	return s
}

// Events returns the consumer channel. It is closed by Close.
func (s *Stream) Events() <-chan *Event {
	return s.events
}

// Close unsubscribes from the bus and closes the consumer channel. Safe to
// call multiple times.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.unsubscribe()
		close(s.done)
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.events)
	})
}

// heartbeat builds the next synthetic heartbeat with a per-connection
// monotonic sequence number.
func (s *Stream) heartbeat() *Event {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()
	return &Event{
		Type:      TypeHeartbeat,
		RunID:     s.runID,
		Seq:       seq,
		EmittedAt: clock.Now(),
	}
}

// offer enqueues without blocking; a full buffer drops the event.
func (s *Stream) offer(event *Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- event:
	default:
	}
}
