package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDefinition(t *testing.T) {
	testCases := []struct {
		description string
		factor      int
		expect      int
	}{
		{description: "factor within range", factor: 4, expect: 4},
		{description: "factor below minimum is clamped", factor: 1, expect: 2},
		{description: "factor above maximum is clamped", factor: 99, expect: 8},
	}
	for _, testCase := range testCases {
		definition := DefaultDefinition(testCase.factor)
		require.Empty(t, definition.Validate(), testCase.description)
		variants := 0
		for _, p := range definition.Phases {
			if p.Kind == KindVariant {
				variants++
			}
		}
		assert.Equal(t, testCase.expect, variants, testCase.description)
	}
}

func TestDefaultDefinitionShape(t *testing.T) {
	definition := DefaultDefinition(3)
	require.Empty(t, definition.Validate())

	brief := definition.Phase(PhaseBrief)
	require.NotNil(t, brief)
	assert.Equal(t, KindGate, brief.Kind)
	assert.Empty(t, brief.DependsOn)

	review := definition.Phase(PhaseReview)
	require.NotNil(t, review)
	assert.Len(t, review.DependsOn, 3)

	merge := definition.Phase(PhaseInductionMerge)
	require.NotNil(t, merge)
	assert.Equal(t, []string{PhaseInduction}, merge.DependsOn)
}

func TestDefinitionValidate(t *testing.T) {
	testCases := []struct {
		description string
		definition  *Definition
		expectIssue string
	}{
		{
			description: "valid",
			definition: &Definition{
				ID: "wf",
				Phases: []*PhaseSpec{
					{ID: "a", Kind: KindGate},
					{ID: "b", Kind: KindReview, DependsOn: []string{"a"}},
				},
			},
		},
		{
			description: "duplicate phase id",
			definition: &Definition{
				ID: "wf",
				Phases: []*PhaseSpec{
					{ID: "a", Kind: KindGate},
					{ID: "a", Kind: KindReview},
				},
			},
			expectIssue: "duplicate phase id a",
		},
		{
			description: "unknown dependency",
			definition: &Definition{
				ID: "wf",
				Phases: []*PhaseSpec{
					{ID: "a", Kind: KindGate, DependsOn: []string{"ghost"}},
				},
			},
			expectIssue: "depends on unknown phase ghost",
		},
		{
			description: "self dependency",
			definition: &Definition{
				ID: "wf",
				Phases: []*PhaseSpec{
					{ID: "a", Kind: KindGate, DependsOn: []string{"a"}},
				},
			},
			expectIssue: "depends on itself",
		},
		{
			description: "cycle",
			definition: &Definition{
				ID: "wf",
				Phases: []*PhaseSpec{
					{ID: "a", Kind: KindGate, DependsOn: []string{"b"}},
					{ID: "b", Kind: KindReview, DependsOn: []string{"a"}},
				},
			},
			expectIssue: "dependency cycle",
		},
		{
			description: "unknown kind",
			definition: &Definition{
				ID: "wf",
				Phases: []*PhaseSpec{
					{ID: "a", Kind: "banana"},
				},
			},
			expectIssue: "unknown kind",
		},
		{
			description: "unknown approval mode",
			definition: &Definition{
				ID: "wf",
				Phases: []*PhaseSpec{
					{ID: "a", Kind: KindGate, Approval: "maybe"},
				},
			},
			expectIssue: "unknown approval mode",
		},
	}

	for _, testCase := range testCases {
		issues := testCase.definition.Validate()
		if testCase.expectIssue == "" {
			assert.Empty(t, issues, testCase.description)
			continue
		}
		require.NotEmpty(t, issues, testCase.description)
		found := false
		for _, issue := range issues {
			if strings.Contains(issue.Error(), testCase.expectIssue) {
				found = true
				break
			}
		}
		assert.True(t, found, "%v: expected issue %q in %v", testCase.description, testCase.expectIssue, issues)
	}
}

func TestParse(t *testing.T) {
	document := `
id: vector-studio
version: 1.0.0
phases:
  - id: brief
    kind: gate
    branches:
      factor: 2
      labels: [light, dark]
  - id: variant-light
    kind: variant
    dependsOn: [brief]
  - id: variant-dark
    kind: variant
    dependsOn: [brief]
  - id: review
    kind: review
    dependsOn: [variant-light, variant-dark]
`
	definition, err := Parse([]byte(document))
	require.NoError(t, err)
	assert.Equal(t, "vector-studio", definition.ID)
	assert.Len(t, definition.Phases, 4)
	assert.Equal(t, 2, definition.Phase("brief").Branches.EffectiveFactor())

	_, err = Parse([]byte("id: broken\nphases:\n  - id: a\n    kind: nope\n"))
	assert.Error(t, err)
}

func TestEffectiveFactor(t *testing.T) {
	var nilSpec *BranchSpec
	assert.Equal(t, MinBranchFactor, nilSpec.EffectiveFactor())
	assert.Equal(t, 8, (&BranchSpec{Factor: 20}).EffectiveFactor())
	assert.Equal(t, 5, (&BranchSpec{Factor: 5}).EffectiveFactor())
}
