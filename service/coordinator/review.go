package coordinator

import (
	"context"
	"strings"

	"github.com/strokeworks/vectorflow/model"
	"github.com/strokeworks/vectorflow/model/run"
	"github.com/strokeworks/vectorflow/service/engine"
)

// candidate is one successful variant branch eligible for merging.
type candidate struct {
	PhaseID string
	Label   string
	Render  string
}

// approveReview records the merge decision and immediately starts finalize.
// Explicit preferences must name existing successful branches; when none are
// given the preferences are inferred from the rationale text.
func (s *Service) approveReview(ctx context.Context, txn *engine.Txn, spec *model.PhaseSpec) error {
	payload := &reviewPayload{}
	if err := coerce(txn.Request.Payload, payload); err != nil {
		return err
	}
	candidates := successfulVariants(txn)
	if len(candidates) == 0 {
		return run.Validationf("no successful variant branches to review")
	}
	preferred, inferred, err := resolvePreferences(payload, candidates)
	if err != nil {
		return err
	}

	phase, _ := txn.Phase(spec.ID)
	phase.Output = &run.Output{
		Kind: run.OutputKindReview,
		Review: &run.ReviewOutput{
			Rationale: payload.Rationale,
			Preferred: preferred,
			Inferred:  inferred,
		},
	}
	previous := phase.Status
	phase.Approve()
	txn.Commit(spec.ID, previous)

	return s.startFinalize(ctx, txn)
}

// successfulVariants collects every variant branch with an approved or
// completed render, in node order.
func successfulVariants(txn *engine.Txn) []candidate {
	var ret []candidate
	for _, node := range txn.Run.NodesOfKind(model.KindVariant) {
		phase, ok := txn.Phase(node.PhaseID)
		if !ok || !phase.Status.Satisfied() {
			continue
		}
		if phase.Output == nil || phase.Output.Variant == nil {
			continue
		}
		ret = append(ret, candidate{
			PhaseID: node.PhaseID,
			Label:   variantLabel(node),
			Render:  phase.Output.Variant.Render,
		})
	}
	return ret
}

// resolvePreferences maps the reviewer's stated preferences onto candidate
// branch ids. Explicit entries may use either the phase id or the label and
// must all resolve; with no explicit entries the rationale text is scanned
// for label mentions, and as a last resort the first candidate is used.
func resolvePreferences(payload *reviewPayload, candidates []candidate) ([]string, bool, error) {
	if len(payload.Preferences) > 0 {
		ret := make([]string, 0, len(payload.Preferences))
		for _, pref := range payload.Preferences {
			resolved := ""
			for _, c := range candidates {
				if strings.EqualFold(pref, c.PhaseID) || strings.EqualFold(pref, c.Label) {
					resolved = c.PhaseID
					break
				}
			}
			if resolved == "" {
				return nil, false, run.Validationf("preference %q does not match a successful branch", pref)
			}
			ret = appendUnique(ret, resolved)
		}
		return ret, false, nil
	}

	rationale := strings.ToLower(payload.Rationale)
	var ret []string
	for _, c := range candidates {
		if c.Label != "" && strings.Contains(rationale, strings.ToLower(c.Label)) {
			ret = appendUnique(ret, c.PhaseID)
		}
	}
	if len(ret) == 0 {
		ret = []string{candidates[0].PhaseID}
	}
	return ret, true, nil
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
