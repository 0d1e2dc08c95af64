package run

import (
	"time"

	"github.com/strokeworks/vectorflow/internal/clock"
)

// Status represents the lifecycle state of a phase within a run.
type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusBlocked         Status = "BLOCKED"
	StatusRunning         Status = "RUNNING"
	StatusWaitingForHuman Status = "WAITING_FOR_HUMAN"
	StatusReadyForReview  Status = "READY_FOR_REVIEW"
	StatusApproved        Status = "APPROVED"
	StatusRejected        Status = "REJECTED"
	StatusCompleted       Status = "COMPLETED"
	StatusError           Status = "ERROR_STATUS"
)

// Satisfied reports whether a phase in this status satisfies dependents
// waiting on it.
func (s Status) Satisfied() bool {
	return s == StatusCompleted || s == StatusApproved
}

// Phase is the runtime state of one phase within a run. Instances are
// created when the run is seeded and mutated only through the engine's
// action application; a retry resets output and artifacts and increments
// Attempt rather than replacing the instance.
type Phase struct {
	PhaseID    string     `json:"phaseId"`
	Attempt    int        `json:"attempt"`
	Status     Status     `json:"status"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Error      string     `json:"error,omitempty"`
	Output     *Output    `json:"output,omitempty"`
	Artifacts  []Ref      `json:"artifacts,omitempty"`
}

// NewPhase creates a phase instance in its seed status.
func NewPhase(id string, status Status) *Phase {
	return &Phase{
		PhaseID: id,
		Attempt: 1,
		Status:  status,
	}
}

// Begin marks the phase as running, stamping StartedAt on the first
// transition of the current attempt.
func (p *Phase) Begin() {
	if p.StartedAt == nil {
		p.StartedAt = clock.NowPtr()
	}
	p.Status = StatusRunning
}

// AwaitHuman parks a running phase until a human decision arrives.
func (p *Phase) AwaitHuman() {
	p.Status = StatusWaitingForHuman
}

// ReadyForReview parks a phase whose generated output awaits explicit
// approval.
func (p *Phase) ReadyForReview() {
	p.Status = StatusReadyForReview
}

// Approve marks the phase approved.
func (p *Phase) Approve() {
	p.FinishedAt = clock.NowPtr()
	p.Status = StatusApproved
}

// Reject marks the phase rejected, recording the decision reason.
func (p *Phase) Reject(reason string) {
	p.FinishedAt = clock.NowPtr()
	p.Error = reason
	p.Status = StatusRejected
}

// Complete marks the phase completed.
func (p *Phase) Complete() {
	p.FinishedAt = clock.NowPtr()
	p.Status = StatusCompleted
}

// Fail marks the phase as errored.
func (p *Phase) Fail(err error) {
	p.FinishedAt = clock.NowPtr()
	if err != nil {
		p.Error = err.Error()
	}
	p.Status = StatusError
}

// ResetForRetry increments the attempt counter and clears the error,
// output and artifact references of the previous attempt. Prior attempts'
// persisted artifacts stay in the store; only the references are dropped.
func (p *Phase) ResetForRetry() {
	p.Attempt++
	p.Error = ""
	p.Output = nil
	p.Artifacts = nil
	p.StartedAt = nil
	p.FinishedAt = nil
	p.Status = StatusDraft
}

// Unblock moves a blocked phase to draft.
func (p *Phase) Unblock() {
	if p.Status == StatusBlocked {
		p.Status = StatusDraft
	}
}

// CanApply reports whether the action is legal for the phase's current
// status.
func (p *Phase) CanApply(action ActionType) bool {
	switch action {
	case ActionStartPhase:
		return p.Status == StatusDraft
	case ActionApprovePhase, ActionRejectPhase:
		return p.Status == StatusWaitingForHuman || p.Status == StatusReadyForReview
	case ActionRetryPhase:
		switch p.Status {
		case StatusError, StatusRejected, StatusApproved, StatusCompleted:
			return true
		}
		return false
	}
	return false
}

// Clone returns a deep copy of the phase.
func (p *Phase) Clone() *Phase {
	if p == nil {
		return nil
	}
	ret := *p
	if p.StartedAt != nil {
		t := *p.StartedAt
		ret.StartedAt = &t
	}
	if p.FinishedAt != nil {
		t := *p.FinishedAt
		ret.FinishedAt = &t
	}
	ret.Output = p.Output.Clone()
	if len(p.Artifacts) > 0 {
		ret.Artifacts = make([]Ref, len(p.Artifacts))
		copy(ret.Artifacts, p.Artifacts)
	}
	return &ret
}
