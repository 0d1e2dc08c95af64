package model

import "fmt"

// DefaultWorkflowID identifies the built-in vector-studio pipeline.
const DefaultWorkflowID = "vector-studio"

// Phase ids of the default pipeline.
const (
	PhaseBrief          = "brief"
	PhaseReview         = "review"
	PhaseFinalize       = "finalize"
	PhaseInduction      = "induction"
	PhaseInductionMerge = "induction-merge"
)

// variantPalette names the candidate branches of the default pipeline. The
// first two entries deliberately cover the common light/dark qualitative
// axis used by preference inference.
var variantPalette = []string{"light", "dark", "vivid", "mono", "pastel", "neon", "sepia", "sketch"}

// VariantPhaseID returns the phase id for a palette label.
func VariantPhaseID(label string) string {
	return fmt.Sprintf("variant-%s", label)
}

// DefaultDefinition builds the vector-studio pipeline with the requested
// number of candidate branches (clamped): a creative-brief gate fans out to
// the variants, a human review feeds the finalize merge, then a scoped
// induction round and its merge selection conclude the run.
func DefaultDefinition(branchFactor int) *Definition {
	factor := ClampBranchFactor(branchFactor)
	labels := variantPalette[:factor]

	phases := []*PhaseSpec{
		{
			ID:    PhaseBrief,
			Label: "Creative brief",
			Kind:  KindGate,
			Branches: &BranchSpec{
				Factor: factor,
				Labels: labels,
			},
		},
	}
	variantIDs := make([]string, 0, factor)
	for _, label := range labels {
		id := VariantPhaseID(label)
		variantIDs = append(variantIDs, id)
		phases = append(phases, &PhaseSpec{
			ID:        id,
			Label:     label,
			Kind:      KindVariant,
			DependsOn: []string{PhaseBrief},
		})
	}
	phases = append(phases,
		&PhaseSpec{
			ID:        PhaseReview,
			Label:     "Variant review",
			Kind:      KindReview,
			DependsOn: variantIDs,
		},
		&PhaseSpec{
			ID:        PhaseFinalize,
			Label:     "Finalize",
			Kind:      KindFinalize,
			DependsOn: []string{PhaseReview},
		},
		&PhaseSpec{
			ID:        PhaseInduction,
			Label:     "Scoped refinement",
			Kind:      KindInduction,
			DependsOn: []string{PhaseFinalize},
			Branches:  &BranchSpec{Factor: MinBranchFactor},
		},
		&PhaseSpec{
			ID:        PhaseInductionMerge,
			Label:     "Refinement merge",
			Kind:      KindInductionMerge,
			DependsOn: []string{PhaseInduction},
		},
	)

	return &Definition{
		ID:          DefaultWorkflowID,
		Description: "human-in-the-loop vector artwork pipeline",
		Version:     "1.0.0",
		Phases:      phases,
	}
}
