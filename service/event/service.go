package event

import (
	"sort"
	"sync"
	"time"

	"github.com/strokeworks/vectorflow/internal/clock"
	"github.com/strokeworks/vectorflow/internal/log"
)

// Listener receives published events. Listeners run synchronously on the
// publisher's goroutine; slow listeners slow the publisher down, a panicking
// listener is isolated and logged.
type Listener func(event *Event)

// Service is the in-memory per-run publish/subscribe bus. Delivery is
// best-effort and non-durable: a subscriber that connects after publication
// bootstraps from a snapshot fetch instead.
type Service struct {
	mu          sync.RWMutex
	subscribers map[string]map[int]Listener
	nextID      int
	lastEmitted map[string]time.Time
}

// New creates an empty bus.
func New() *Service {
	return &Service{
		subscribers: map[string]map[int]Listener{},
		lastEmitted: map[string]time.Time{},
	}
}

// Subscribe registers a listener for the run and returns its unsubscribe
// function. Unsubscribing more than once is a no-op.
func (s *Service) Subscribe(runID string, listener Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	if s.subscribers[runID] == nil {
		s.subscribers[runID] = map[int]Listener{}
	}
	s.subscribers[runID][id] = listener

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subscribers[runID], id)
			if len(s.subscribers[runID]) == 0 {
				delete(s.subscribers, runID)
			}
		})
	}
}

// Publish stamps the event and fans it out synchronously to every current
// subscriber of the event's run, in subscription order. EmittedAt is
// monotonically non-decreasing per run.
func (s *Service) Publish(event *Event) {
	if event == nil || event.RunID == "" {
		return
	}
	s.mu.Lock()
	emittedAt := clock.Now()
	if last, ok := s.lastEmitted[event.RunID]; ok && emittedAt.Before(last) {
		emittedAt = last
	}
	s.lastEmitted[event.RunID] = emittedAt
	event.EmittedAt = emittedAt

	listeners := make([]Listener, 0, len(s.subscribers[event.RunID]))
	ids := make([]int, 0, len(s.subscribers[event.RunID]))
	for id := range s.subscribers[event.RunID] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		listeners = append(listeners, s.subscribers[event.RunID][id])
	}
	s.mu.Unlock()

	for _, listener := range listeners {
		s.deliver(listener, event)
	}
}

// deliver invokes one listener, isolating panics so a misbehaving subscriber
// never prevents delivery to the others or reaches the publishing action.
func (s *Service) deliver(listener Listener, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			log.GetLogger().WithField("runId", event.RunID).
				WithField("type", event.Type).
				Errorf("event subscriber panicked: %v", r)
		}
	}()
	listener(event)
}

// SubscriberCount returns the number of live subscribers for a run.
func (s *Service) SubscriberCount(runID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers[runID])
}
