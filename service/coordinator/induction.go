package coordinator

import (
	"context"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/strokeworks/vectorflow/model"
	"github.com/strokeworks/vectorflow/model/run"
	"github.com/strokeworks/vectorflow/service/engine"
	"github.com/strokeworks/vectorflow/service/generation"
)

// startInduction runs a scoped refinement round: the instruction is applied
// to the current finalized render by several concurrent branches, each
// producing a full replacement render and a unified diff against the
// original. The branches settle together; the human then picks one through
// the merge phase.
func (s *Service) startInduction(ctx context.Context, txn *engine.Txn, spec *model.PhaseSpec) error {
	payload := &inductionPayload{}
	if err := coerce(txn.Request.Payload, payload); err != nil {
		return err
	}
	payload.Selector = strings.TrimSpace(payload.Selector)
	payload.Instruction = strings.TrimSpace(payload.Instruction)
	if payload.Selector == "" {
		return run.Validationf("payload.selector is required")
	}
	if payload.Instruction == "" {
		return run.Validationf("payload.instruction is required")
	}
	current, ok := txn.Run.CurrentRender()
	if !ok {
		return run.Validationf("no finalized render to refine")
	}
	if !strings.Contains(current, payload.Selector) {
		return fmt.Errorf("%w: %q", run.ErrSelectorNotFound, payload.Selector)
	}

	phase, _ := txn.Phase(spec.ID)
	previous := phase.Status
	phase.Begin()
	txn.Commit(spec.ID, previous)

	factor := spec.Branches.EffectiveFactor()
	items := make([]generation.Item, factor)
	for i := 0; i < factor; i++ {
		items[i] = generation.Item{
			Key:     fmt.Sprintf("%s-a%d-b%d", spec.ID, phase.Attempt, i+1),
			RunID:   txn.Run.RunID,
			PhaseID: spec.ID,
			Prompt:  s.prompter.Induction(current, payload.Selector, payload.Instruction, i+1),
		}
	}
	results := s.settle(ctx, items)

	renders := map[string]interface{}{}
	diffs := map[string]interface{}{}
	output := &run.InductionOutput{
		Selector:    payload.Selector,
		Instruction: payload.Instruction,
	}
	summary := &run.BranchSummary{}
	for i, result := range results {
		id := items[i].Key
		ref := run.BranchRef{ID: id, Label: fmt.Sprintf("branch %d", i+1)}
		if result.Err != nil {
			ref.Failed = true
			ref.Reason = result.Err.Error()
			output.Failed++
			summary.Failed++
			summary.Failures = append(summary.Failures, run.BranchFailure{Branch: id, Reason: result.Err.Error()})
			output.Branches = append(output.Branches, ref)
			continue
		}
		diff := unifiedDiff(current, result.Content, spec.ID, id)
		ref.Brief = scopeBrief(payload.Selector, diff)
		renders[id] = result.Content
		diffs[id] = diff
		txn.AddArtifact(run.NewArtifact(txn.Run.RunID, spec.ID, phase.Attempt, run.ArtifactDiff, diff))
		output.Succeeded++
		summary.Succeeded++
		output.Branches = append(output.Branches, ref)
	}
	txn.SetBranches(summary)

	phase.Output = &run.Output{
		Kind:      run.OutputKindInduction,
		Induction: output,
		Details: pruneDetails(map[string]interface{}{
			"renders": renders,
			"diffs":   diffs,
		}),
	}
	if output.Succeeded == 0 {
		previous = phase.Status
		phase.Fail(run.AllBranchesFailedf(output.Failed))
		txn.Commit(spec.ID, previous)
		return run.AllBranchesFailedf(output.Failed)
	}
	previous = phase.Status
	phase.Complete()
	txn.Commit(spec.ID, previous)
	return nil
}

// scopeBrief derives a confirmation statement from the branch diff: it
// reports how many lines the edit replaced and added, and whether every
// replaced line matched the requested selector.
func scopeBrief(selector, diff string) string {
	var added, removed, outside int
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
			if !strings.Contains(line, selector) {
				outside++
			}
		}
	}
	if outside > 0 {
		return fmt.Sprintf("Edit for %q replaced %d line(s) and added %d; %d replaced line(s) did not match the selector.",
			selector, removed, added, outside)
	}
	return fmt.Sprintf("Edit confirmed scoped to %q: replaced %d line(s), added %d.",
		selector, removed, added)
}

// unifiedDiff renders a unified diff between two renders.
func unifiedDiff(before, after, fromName, toName string) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: fromName,
		ToFile:   toName,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return text
}
