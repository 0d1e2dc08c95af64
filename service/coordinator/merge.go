package coordinator

import (
	sgdiff "github.com/sourcegraph/go-diff/diff"

	"github.com/strokeworks/vectorflow/model"
	"github.com/strokeworks/vectorflow/model/run"
	"github.com/strokeworks/vectorflow/service/engine"
)

// startInductionMerge promotes one refinement branch to the new current
// render. The selection is pure bookkeeping; no generation call happens
// here.
func (s *Service) startInductionMerge(txn *engine.Txn, spec *model.PhaseSpec) error {
	payload := &mergePayload{}
	if err := coerce(txn.Request.Payload, payload); err != nil {
		return err
	}
	if payload.Branch == "" {
		return run.Validationf("payload.branch is required")
	}

	induction := s.inductionPhase(txn)
	if induction == nil || induction.Output == nil || induction.Output.Induction == nil {
		return run.Validationf("no refinement round to merge")
	}
	for _, ref := range induction.Output.Induction.Branches {
		if ref.ID == payload.Branch && ref.Failed {
			return run.Validationf("branch %s failed and cannot be merged", payload.Branch)
		}
	}
	render, ok := detailString(induction.Output.Details, "renders", payload.Branch)
	if !ok {
		return run.Validationf("branch %s does not exist in the current refinement round", payload.Branch)
	}
	diff, _ := detailString(induction.Output.Details, "diffs", payload.Branch)

	phase, _ := txn.Phase(spec.ID)
	previous := phase.Status
	phase.Begin()
	txn.Commit(spec.ID, previous)

	details := map[string]interface{}{"diff": diff}
	if added, deleted, ok := hunkStats(diff); ok {
		details["added"] = added
		details["deleted"] = deleted
	}
	phase.Output = &run.Output{
		Kind: run.OutputKindRender,
		Render: &run.RenderOutput{
			Render: render,
			Basis:  []string{payload.Branch},
		},
		Details: pruneDetails(details),
	}
	txn.AddArtifact(run.NewArtifact(txn.Run.RunID, spec.ID, phase.Attempt, run.ArtifactRender, render))
	previous = phase.Status
	phase.Complete()
	txn.Commit(spec.ID, previous)
	return nil
}

func (s *Service) inductionPhase(txn *engine.Txn) *run.Phase {
	node := txn.Run.FirstNodeOfKind(model.KindInduction)
	if node == nil {
		return nil
	}
	phase, _ := txn.Phase(node.PhaseID)
	return phase
}

// detailString reads details[section][key] as a string, tolerating both the
// in-memory map[string]string shape and the post-JSON map[string]interface{}
// shape.
func detailString(details map[string]interface{}, section, key string) (string, bool) {
	raw, ok := details[section]
	if !ok {
		return "", false
	}
	switch values := raw.(type) {
	case map[string]interface{}:
		value, ok := values[key].(string)
		return value, ok
	case map[string]string:
		value, ok := values[key]
		return value, ok
	}
	return "", false
}

// hunkStats summarises a unified diff as added and deleted line counts.
func hunkStats(text string) (added, deleted int, ok bool) {
	if text == "" {
		return 0, 0, false
	}
	fd, err := sgdiff.ParseFileDiff([]byte(text))
	if err != nil {
		return 0, 0, false
	}
	stat := fd.Stat()
	return int(stat.Added + stat.Changed), int(stat.Deleted + stat.Changed), true
}
