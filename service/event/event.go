package event

import "time"

// Event types published on the bus.
const (
	TypePhaseUpdated = "phase_updated"
	TypeRunReset     = "run_reset"
	TypeHeartbeat    = "heartbeat"
)

// Event describes a single state change within a run. Events are published
// at most once per causing action per subscriber and are never persisted;
// a subscriber that reconnects re-derives state from a snapshot fetch.
type Event struct {
	Type           string    `json:"type"`
	RunID          string    `json:"runId"`
	PhaseID        string    `json:"phaseId,omitempty"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	Status         string    `json:"status,omitempty"`
	Attempt        int       `json:"attempt,omitempty"`
	ActorID        string    `json:"actorId,omitempty"`
	Seq            uint64    `json:"seq,omitempty"`
	EmittedAt      time.Time `json:"emittedAt"`
}

// PhaseUpdated builds a phase_updated event.
func PhaseUpdated(runID, phaseID, previous, status string, attempt int, actorID string) *Event {
	return &Event{
		Type:           TypePhaseUpdated,
		RunID:          runID,
		PhaseID:        phaseID,
		PreviousStatus: previous,
		Status:         status,
		Attempt:        attempt,
		ActorID:        actorID,
	}
}

// RunReset builds a run_reset event.
func RunReset(runID, actorID string) *Event {
	return &Event{
		Type:    TypeRunReset,
		RunID:   runID,
		ActorID: actorID,
	}
}
