package coordinator

import (
	"context"

	"github.com/strokeworks/vectorflow/internal/log"
	"github.com/strokeworks/vectorflow/model"
	"github.com/strokeworks/vectorflow/model/run"
	"github.com/strokeworks/vectorflow/service/engine"
)

// startFinalize composes the reviewer-preferred branches into the final
// render. A provider failure degrades to the first preferred render rather
// than failing the phase; the output is flagged as a fallback so the
// degradation stays visible.
func (s *Service) startFinalize(ctx context.Context, txn *engine.Txn) error {
	node := txn.Run.FirstNodeOfKind(model.KindFinalize)
	if node == nil {
		return nil
	}
	phase, ok := txn.Phase(node.PhaseID)
	if !ok || phase.Status != run.StatusDraft {
		return nil
	}

	basis := s.mergeBasis(txn)
	previous := phase.Status
	phase.Begin()
	txn.Commit(node.PhaseID, previous)

	if len(basis) == 0 {
		prior, _ := txn.Run.CurrentRender()
		phase.Output = &run.Output{
			Kind: run.OutputKindRender,
			Details: pruneDetails(map[string]interface{}{
				"fallback":    true,
				"priorRender": prior,
			}),
		}
		previous = phase.Status
		phase.Complete()
		txn.Commit(node.PhaseID, previous)
		return nil
	}

	render := basis[0].Render
	fallback := false
	if len(basis) > 1 {
		merged, err := s.provider.Generate(ctx, s.prompter.Merge(s.reviewRationale(txn), basis))
		if err != nil {
			log.GetLogger().WithField("run", txn.Run.RunID).
				Warnf("merge generation failed, keeping first preferred render: %v", err)
			fallback = true
		} else {
			render = merged
		}
	}

	ids := make([]string, len(basis))
	for i, b := range basis {
		ids[i] = b.ID
	}
	phase.Output = &run.Output{
		Kind: run.OutputKindRender,
		Render: &run.RenderOutput{
			Render:   render,
			Basis:    ids,
			Fallback: fallback,
		},
	}
	txn.AddArtifact(run.NewArtifact(txn.Run.RunID, node.PhaseID, phase.Attempt, run.ArtifactRender, render))
	previous = phase.Status
	phase.Complete()
	txn.Commit(node.PhaseID, previous)
	return nil
}

// mergeBasis resolves the finalize inputs: the reviewer's preferred branch
// renders when a review decision exists, otherwise every successful variant.
func (s *Service) mergeBasis(txn *engine.Txn) []BasisRender {
	candidates := successfulVariants(txn)
	byID := make(map[string]candidate, len(candidates))
	for _, c := range candidates {
		byID[c.PhaseID] = c
	}

	var ret []BasisRender
	if review := s.reviewOutput(txn); review != nil {
		for _, id := range review.Preferred {
			if c, ok := byID[id]; ok {
				ret = append(ret, BasisRender{ID: c.PhaseID, Label: c.Label, Render: c.Render})
			}
		}
	}
	if len(ret) == 0 {
		for _, c := range candidates {
			ret = append(ret, BasisRender{ID: c.PhaseID, Label: c.Label, Render: c.Render})
		}
	}
	return ret
}

func (s *Service) reviewOutput(txn *engine.Txn) *run.ReviewOutput {
	node := txn.Run.FirstNodeOfKind(model.KindReview)
	if node == nil {
		return nil
	}
	phase, ok := txn.Phase(node.PhaseID)
	if !ok || phase.Output == nil {
		return nil
	}
	return phase.Output.Review
}

func (s *Service) reviewRationale(txn *engine.Txn) string {
	if review := s.reviewOutput(txn); review != nil {
		return review.Rationale
	}
	return ""
}
