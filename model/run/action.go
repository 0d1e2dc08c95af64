package run

import (
	"strings"

	"github.com/strokeworks/vectorflow/service/event"
)

// ActionType enumerates the actions a caller may apply to a phase.
type ActionType string

const (
	ActionStartPhase   ActionType = "START_PHASE"
	ActionApprovePhase ActionType = "APPROVE_PHASE"
	ActionRejectPhase  ActionType = "REJECT_PHASE"
	ActionRetryPhase   ActionType = "RETRY_PHASE"
)

// ParseAction maps a wire action name onto an ActionType.
func ParseAction(value string) (ActionType, bool) {
	switch ActionType(strings.ToUpper(strings.TrimSpace(value))) {
	case ActionStartPhase:
		return ActionStartPhase, true
	case ActionApprovePhase:
		return ActionApprovePhase, true
	case ActionRejectPhase:
		return ActionRejectPhase, true
	case ActionRetryPhase:
		return ActionRetryPhase, true
	}
	return "", false
}

// Request is a single action submitted against a phase.
type Request struct {
	Action  ActionType             `json:"action"`
	RunID   string                 `json:"runId"`
	PhaseID string                 `json:"phaseId"`
	ActorID string                 `json:"actorId"`
	Reason  string                 `json:"reason,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Response reports the outcome of an applied action. On acceptance it
// carries the causing event, any artifact references produced, and for
// fan-out actions a per-branch outcome summary.
type Response struct {
	Accepted  bool           `json:"accepted"`
	RunID     string         `json:"runId"`
	PhaseID   string         `json:"phaseId"`
	Status    Status         `json:"status"`
	Message   string         `json:"message,omitempty"`
	Event     *event.Event   `json:"event,omitempty"`
	Artifacts []Ref          `json:"artifacts,omitempty"`
	Branches  *BranchSummary `json:"branches,omitempty"`
}

// BranchSummary aggregates a settle-all fan-out: both counts are reported
// so partial failure is never collapsed into a single undifferentiated
// error.
type BranchSummary struct {
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Failures  []BranchFailure `json:"failures,omitempty"`
}

// BranchFailure names one failed branch and why it failed.
type BranchFailure struct {
	Branch string `json:"branch"`
	Reason string `json:"reason"`
}
