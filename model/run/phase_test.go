package run

import (
	"errors"
	"testing"
	"time"

	"github.com/strokeworks/vectorflow/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseLifecycle(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	current := base
	clock.NowFunc = func() time.Time { return current }
	defer func() { clock.NowFunc = time.Now }()

	phase := NewPhase("brief", StatusDraft)
	assert.Equal(t, 1, phase.Attempt)

	phase.Begin()
	require.NotNil(t, phase.StartedAt)
	assert.Equal(t, base, *phase.StartedAt)
	assert.Equal(t, StatusRunning, phase.Status)

	// a second Begin must not restamp StartedAt
	current = base.Add(time.Minute)
	phase.Begin()
	assert.Equal(t, base, *phase.StartedAt)

	phase.Approve()
	require.NotNil(t, phase.FinishedAt)
	assert.Equal(t, StatusApproved, phase.Status)

	phase.Complete()
	assert.Equal(t, StatusCompleted, phase.Status)

	phase.Output = &Output{Kind: OutputKindBrief, Brief: &BriefOutput{Canonical: "x"}}
	phase.Artifacts = []Ref{{ID: "a1", Kind: ArtifactBrief}}
	phase.ResetForRetry()
	assert.Equal(t, 2, phase.Attempt)
	assert.Equal(t, StatusDraft, phase.Status)
	assert.Nil(t, phase.Output)
	assert.Empty(t, phase.Artifacts)
	assert.Nil(t, phase.StartedAt)
	assert.Nil(t, phase.FinishedAt)
	assert.Empty(t, phase.Error)
}

func TestPhaseFailAndReject(t *testing.T) {
	phase := NewPhase("variant-light", StatusDraft)
	phase.Begin()
	phase.Fail(errors.New("provider exploded"))
	assert.Equal(t, StatusError, phase.Status)
	assert.Equal(t, "provider exploded", phase.Error)
	require.NotNil(t, phase.FinishedAt)

	other := NewPhase("review", StatusDraft)
	other.Begin()
	other.AwaitHuman()
	assert.Equal(t, StatusWaitingForHuman, other.Status)
	other.Reject("not good enough")
	assert.Equal(t, StatusRejected, other.Status)
	assert.Equal(t, "not good enough", other.Error)
}

func TestPhaseCanApply(t *testing.T) {
	testCases := []struct {
		status Status
		action ActionType
		expect bool
	}{
		{StatusDraft, ActionStartPhase, true},
		{StatusBlocked, ActionStartPhase, false},
		{StatusRunning, ActionStartPhase, false},
		{StatusWaitingForHuman, ActionApprovePhase, true},
		{StatusReadyForReview, ActionApprovePhase, true},
		{StatusWaitingForHuman, ActionRejectPhase, true},
		{StatusDraft, ActionApprovePhase, false},
		{StatusError, ActionRetryPhase, true},
		{StatusRejected, ActionRetryPhase, true},
		{StatusApproved, ActionRetryPhase, true},
		{StatusCompleted, ActionRetryPhase, true},
		{StatusRunning, ActionRetryPhase, false},
		{StatusBlocked, ActionRetryPhase, false},
	}
	for _, testCase := range testCases {
		phase := NewPhase("p", testCase.status)
		assert.Equal(t, testCase.expect, phase.CanApply(testCase.action),
			"status=%v action=%v", testCase.status, testCase.action)
	}
}

func TestStatusSatisfied(t *testing.T) {
	assert.True(t, StatusCompleted.Satisfied())
	assert.True(t, StatusApproved.Satisfied())
	for _, status := range []Status{StatusDraft, StatusBlocked, StatusRunning, StatusWaitingForHuman, StatusReadyForReview, StatusRejected, StatusError} {
		assert.False(t, status.Satisfied(), "status=%v", status)
	}
}

func TestParseAction(t *testing.T) {
	action, ok := ParseAction("start_phase")
	require.True(t, ok)
	assert.Equal(t, ActionStartPhase, action)

	action, ok = ParseAction(" APPROVE_PHASE ")
	require.True(t, ok)
	assert.Equal(t, ActionApprovePhase, action)

	_, ok = ParseAction("DESTROY_PHASE")
	assert.False(t, ok)
}
