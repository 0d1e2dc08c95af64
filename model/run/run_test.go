package run

import (
	"testing"

	"github.com/strokeworks/vectorflow/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSeedsStatuses(t *testing.T) {
	definition := model.DefaultDefinition(2)
	aRun := New(definition, "run-1")

	assert.Equal(t, "run-1", aRun.RunID)
	assert.Equal(t, model.DefaultWorkflowID, aRun.WorkflowID)
	assert.Len(t, aRun.Nodes, len(definition.Phases))
	assert.Len(t, aRun.Phases, len(definition.Phases))

	brief, ok := aRun.Phase(model.PhaseBrief)
	require.True(t, ok)
	assert.Equal(t, StatusDraft, brief.Status)

	for _, node := range aRun.Nodes {
		if node.PhaseID == model.PhaseBrief {
			continue
		}
		assert.Equal(t, StatusBlocked, node.Status, "phase %v", node.PhaseID)
	}

	// every edge endpoint resolves to a phase
	for _, edge := range aRun.Edges {
		_, ok := aRun.Phase(edge.From)
		assert.True(t, ok, "edge from %v", edge.From)
		_, ok = aRun.Phase(edge.To)
		assert.True(t, ok, "edge to %v", edge.To)
	}
}

func TestNodesAndPhasesAgree(t *testing.T) {
	aRun := New(model.DefaultDefinition(3), "run-1")
	phase, _ := aRun.Phase(model.PhaseBrief)
	phase.Begin()
	aRun.Sync(model.PhaseBrief)

	for _, node := range aRun.Nodes {
		assert.Equal(t, aRun.Phases[node.PhaseID].Status, node.Status, "phase %v", node.PhaseID)
		assert.Equal(t, aRun.Phases[node.PhaseID].Attempt, node.Attempt, "phase %v", node.PhaseID)
	}
}

func TestDependents(t *testing.T) {
	aRun := New(model.DefaultDefinition(2), "run-1")
	dependents := aRun.Dependents(model.PhaseBrief)
	assert.ElementsMatch(t, []string{"variant-light", "variant-dark"}, dependents)
	assert.Equal(t, []string{model.PhaseFinalize}, aRun.Dependents(model.PhaseReview))
	assert.Empty(t, aRun.Dependents(model.PhaseInductionMerge))
}

func TestDependenciesSatisfied(t *testing.T) {
	aRun := New(model.DefaultDefinition(2), "run-1")
	assert.False(t, aRun.DependenciesSatisfied(model.PhaseReview))

	light, _ := aRun.Phase("variant-light")
	light.Approve()
	aRun.Sync("variant-light")
	assert.False(t, aRun.DependenciesSatisfied(model.PhaseReview))

	dark, _ := aRun.Phase("variant-dark")
	dark.Complete()
	aRun.Sync("variant-dark")
	assert.True(t, aRun.DependenciesSatisfied(model.PhaseReview))
}

func TestCloneIsIndependent(t *testing.T) {
	aRun := New(model.DefaultDefinition(2), "run-1")
	brief, _ := aRun.Phase(model.PhaseBrief)
	brief.Output = &Output{Kind: OutputKindBrief, Brief: &BriefOutput{Canonical: "original"}}
	brief.Artifacts = []Ref{{ID: "a1", Kind: ArtifactBrief, Locator: "run-1/brief/1/a1"}}

	induction, _ := aRun.Phase(model.PhaseInduction)
	induction.Output = &Output{
		Kind:      OutputKindInduction,
		Induction: &InductionOutput{Selector: "horizon", Succeeded: 2},
		Details: map[string]interface{}{
			"renders": map[string]interface{}{
				"induction-a1-b1": "<svg>one</svg>",
				"induction-a1-b2": "<svg>two</svg>",
			},
			"diffs": []interface{}{"-a\n+b\n"},
		},
	}

	clone := aRun.Clone()
	clonedBrief, _ := clone.Phase(model.PhaseBrief)
	clonedBrief.Status = StatusError
	clonedBrief.Output.Brief.Canonical = "mutated"
	clonedBrief.Artifacts[0].ID = "tampered"
	clone.Nodes[0].Status = StatusError
	clonedInduction, _ := clone.Phase(model.PhaseInduction)
	clonedInduction.Output.Details["renders"].(map[string]interface{})["induction-a1-b1"] = "tampered"
	clonedInduction.Output.Details["diffs"].([]interface{})[0] = "tampered"

	assert.Equal(t, StatusDraft, brief.Status)
	assert.Equal(t, "original", brief.Output.Brief.Canonical)
	assert.Equal(t, "a1", brief.Artifacts[0].ID)
	assert.Equal(t, StatusDraft, aRun.Nodes[0].Status)
	renders := induction.Output.Details["renders"].(map[string]interface{})
	assert.Equal(t, "<svg>one</svg>", renders["induction-a1-b1"])
	assert.Equal(t, "-a\n+b\n", induction.Output.Details["diffs"].([]interface{})[0])
}

func TestCurrentRender(t *testing.T) {
	aRun := New(model.DefaultDefinition(2), "run-1")
	_, ok := aRun.CurrentRender()
	assert.False(t, ok)

	finalize, _ := aRun.Phase(model.PhaseFinalize)
	finalize.Output = &Output{Kind: OutputKindRender, Render: &RenderOutput{Render: "<svg>final</svg>"}}
	render, ok := aRun.CurrentRender()
	require.True(t, ok)
	assert.Equal(t, "<svg>final</svg>", render)

	merge, _ := aRun.Phase(model.PhaseInductionMerge)
	merge.Output = &Output{Kind: OutputKindRender, Render: &RenderOutput{Render: "<svg>refined</svg>"}}
	render, ok = aRun.CurrentRender()
	require.True(t, ok)
	assert.Equal(t, "<svg>refined</svg>", render)
}

func TestArtifactRef(t *testing.T) {
	artifact := NewArtifact("run-1", "induction", 2, ArtifactDiff, "--- a\n+++ b\n")
	ref := artifact.Ref()
	assert.Equal(t, artifact.ArtifactID, ref.ID)
	assert.Equal(t, ArtifactDiff, ref.Kind)
	assert.Equal(t, "run-1/induction/2/"+artifact.ArtifactID, ref.Locator)
}
