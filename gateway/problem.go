package gateway

import (
	"errors"
	"net/http"

	"github.com/strokeworks/vectorflow/model/run"
	"github.com/strokeworks/vectorflow/service/dao"
	"github.com/strokeworks/vectorflow/service/generation"
)

// Problem is an RFC 7807 style error body, extended with the rejected
// action's machine-checkable phase status and branch summary where present.
type Problem struct {
	Type     string             `json:"type"`
	Title    string             `json:"title"`
	Status   int                `json:"status"`
	Detail   string             `json:"detail,omitempty"`
	RunID    string             `json:"runId,omitempty"`
	PhaseID  string             `json:"phaseId,omitempty"`
	Phase    run.Status         `json:"phaseStatus,omitempty"`
	Branches *run.BranchSummary `json:"branches,omitempty"`
}

const problemTypeBase = "https://vectorflow.strokeworks.dev/problems/"

// classify maps a sentinel error onto an HTTP status and a stable problem
// type slug.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, run.ErrValidation):
		return http.StatusUnprocessableEntity, "validation", "action rejected"
	case errors.Is(err, run.ErrSelectorNotFound):
		return http.StatusUnprocessableEntity, "selector-not-found", "selector not found"
	case errors.Is(err, run.ErrUnknownRun):
		return http.StatusNotFound, "unknown-run", "unknown run"
	case errors.Is(err, run.ErrUnknownPhase):
		return http.StatusNotFound, "unknown-phase", "unknown phase"
	case errors.Is(err, dao.ErrLockTimeout):
		return http.StatusServiceUnavailable, "lock-timeout", "store busy"
	case errors.Is(err, run.ErrAllBranchesFailed):
		return http.StatusBadGateway, "all-branches-failed", "all branches failed"
	case errors.Is(err, generation.ErrProvider):
		return http.StatusBadGateway, "provider", "generation provider failed"
	}
	return http.StatusInternalServerError, "internal", "internal error"
}

// newProblem builds the error body for a failed request, folding in the
// engine's rejection response when one exists.
func newProblem(err error, response *run.Response) *Problem {
	status, slug, title := classify(err)
	problem := &Problem{
		Type:   problemTypeBase + slug,
		Title:  title,
		Status: status,
		Detail: err.Error(),
	}
	if response != nil {
		problem.RunID = response.RunID
		problem.PhaseID = response.PhaseID
		problem.Phase = response.Status
		problem.Branches = response.Branches
	}
	return problem
}
