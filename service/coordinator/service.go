// Package coordinator implements phase-kind-specific orchestration on top
// of the engine's generic state machine: the human-gated brief phase with
// its synchronous variant fan-out, review approval with preference
// inference, finalize composition, scoped induction refinement and the
// induction merge selection.
package coordinator

import (
	"context"
	"strings"

	"github.com/strokeworks/vectorflow/model"
	"github.com/strokeworks/vectorflow/model/run"
	"github.com/strokeworks/vectorflow/policy"
	"github.com/strokeworks/vectorflow/service/engine"
	"github.com/strokeworks/vectorflow/service/generation"
)

// Service coordinates phase execution over a generation provider.
type Service struct {
	provider     generation.Service
	batch        generation.Batch
	prompter     Prompter
	providerName string
}

var _ engine.Coordinator = (*Service)(nil)

// Option customises the coordinator.
type Option func(s *Service)

// WithBatch delegates fan-outs to an off-process batch backend.
func WithBatch(batch generation.Batch) Option {
	return func(s *Service) { s.batch = batch }
}

// WithPrompter replaces the plain default prompter.
func WithPrompter(prompter Prompter) Option {
	return func(s *Service) { s.prompter = prompter }
}

// WithProviderName labels variant outputs with the producing provider.
func WithProviderName(name string) Option {
	return func(s *Service) { s.providerName = name }
}

// New creates a coordinator over the given provider.
func New(provider generation.Service, options ...Option) *Service {
	s := &Service{provider: provider, prompter: DefaultPrompter()}
	for _, opt := range options {
		opt(s)
	}
	if batch, ok := provider.(generation.Batch); ok && s.batch == nil {
		s.batch = batch
	}
	return s
}

// Execute routes one engine transaction to the phase-kind-specific flow.
func (s *Service) Execute(ctx context.Context, txn *engine.Txn) error {
	request := txn.Request
	spec := txn.Definition.Phase(request.PhaseID)
	if spec == nil {
		return run.ErrUnknownPhase
	}
	switch request.Action {
	case run.ActionStartPhase:
		return s.start(ctx, txn, spec)
	case run.ActionApprovePhase:
		return s.approve(ctx, txn, spec)
	case run.ActionRetryPhase:
		return s.retry(ctx, txn, spec)
	}
	return run.Validationf("unsupported action %q", request.Action)
}

func (s *Service) start(ctx context.Context, txn *engine.Txn, spec *model.PhaseSpec) error {
	switch spec.Kind {
	case model.KindGate:
		return s.startGate(ctx, txn, spec)
	case model.KindVariant:
		return s.startVariant(ctx, txn, spec.ID)
	case model.KindReview:
		s.startReview(txn, spec.ID)
		return nil
	case model.KindFinalize:
		return s.startFinalize(ctx, txn)
	case model.KindInduction:
		return s.startInduction(ctx, txn, spec)
	case model.KindInductionMerge:
		return s.startInductionMerge(txn, spec)
	}
	return run.Validationf("phase %s has unknown kind %q", spec.ID, spec.Kind)
}

// approve handles generic approval; the review kind carries the merge
// decision and immediately starts finalize.
func (s *Service) approve(ctx context.Context, txn *engine.Txn, spec *model.PhaseSpec) error {
	if spec.Kind == model.KindReview {
		return s.approveReview(ctx, txn, spec)
	}
	phase, _ := txn.Phase(spec.ID)
	previous := phase.Status
	phase.Approve()
	txn.Commit(spec.ID, previous)
	// a manually approved variant may have been the last one review waited on
	s.autoStartReview(txn)
	return nil
}

// retry re-runs generative phases immediately; human-gated phases stay in
// DRAFT awaiting a fresh START. The engine has already reset the phase.
func (s *Service) retry(ctx context.Context, txn *engine.Txn, spec *model.PhaseSpec) error {
	switch spec.Kind {
	case model.KindVariant:
		return s.startVariant(ctx, txn, spec.ID)
	case model.KindFinalize:
		return s.startFinalize(ctx, txn)
	}
	return nil
}

// startGate validates the human payload, normalizes it into a canonical
// brief through a single generation call, auto-approves the gate and then
// synchronously fans out the variant branches, all before the gate action
// returns.
func (s *Service) startGate(ctx context.Context, txn *engine.Txn, spec *model.PhaseSpec) error {
	payload := &gatePayload{}
	if err := coerce(txn.Request.Payload, payload); err != nil {
		return err
	}
	payload.Context = strings.TrimSpace(payload.Context)
	if payload.Context == "" {
		return run.Validationf("payload.context is required")
	}

	phase, _ := txn.Phase(spec.ID)
	previous := phase.Status
	phase.Begin()
	txn.Commit(spec.ID, previous)

	canonical, err := s.provider.Generate(ctx, s.prompter.Brief(payload.Context, payload.StyleHints))
	if err != nil {
		previous = phase.Status
		phase.Fail(err)
		txn.Commit(spec.ID, previous)
		return err
	}
	phase.Output = &run.Output{
		Kind:  run.OutputKindBrief,
		Brief: &run.BriefOutput{Canonical: canonical, Context: payload.Context},
	}
	txn.AddArtifact(run.NewArtifact(txn.Run.RunID, spec.ID, phase.Attempt, run.ArtifactBrief, canonical))
	previous = phase.Status
	phase.Approve()
	txn.Commit(spec.ID, previous)

	summary, err := s.fanOutVariants(ctx, txn, canonical)
	txn.SetBranches(summary)
	if err != nil {
		return err
	}
	if summary != nil && summary.Succeeded > 0 {
		previous = phase.Status
		phase.Complete()
		txn.Commit(spec.ID, previous)
	}
	s.autoStartReview(txn)
	return nil
}

// fanOutVariants runs every unblocked variant branch concurrently with a
// settle-all join. The batch fails as a whole only when every branch fails.
func (s *Service) fanOutVariants(ctx context.Context, txn *engine.Txn, brief string) (*run.BranchSummary, error) {
	var nodes []*run.Node
	for _, node := range txn.Run.NodesOfKind(model.KindVariant) {
		if phase, ok := txn.Phase(node.PhaseID); ok && phase.Status == run.StatusDraft {
			nodes = append(nodes, node)
		}
	}
	if len(nodes) > model.MaxBranchFactor {
		nodes = nodes[:model.MaxBranchFactor]
	}
	if len(nodes) == 0 {
		return nil, nil
	}

	items := make([]generation.Item, len(nodes))
	for i, node := range nodes {
		phase, _ := txn.Phase(node.PhaseID)
		previous := phase.Status
		phase.Begin()
		txn.Commit(node.PhaseID, previous)
		items[i] = generation.Item{
			Key:     node.PhaseID,
			RunID:   txn.Run.RunID,
			PhaseID: node.PhaseID,
			Prompt:  s.prompter.Variant(variantLabel(node), brief),
		}
	}

	results := s.settle(ctx, items)
	summary := &run.BranchSummary{}
	for i, result := range results {
		node := nodes[i]
		if result.Err != nil {
			phase, _ := txn.Phase(node.PhaseID)
			previous := phase.Status
			phase.Fail(result.Err)
			txn.Commit(node.PhaseID, previous)
			summary.Failed++
			summary.Failures = append(summary.Failures, run.BranchFailure{
				Branch: node.PhaseID,
				Reason: result.Err.Error(),
			})
			continue
		}
		s.completeVariant(ctx, txn, node, result.Content)
		summary.Succeeded++
	}
	if summary.Succeeded == 0 {
		return summary, run.AllBranchesFailedf(summary.Failed)
	}
	return summary, nil
}

// startVariant re-runs a single branch, used for direct START and RETRY of
// one variant phase.
func (s *Service) startVariant(ctx context.Context, txn *engine.Txn, phaseID string) error {
	brief := s.briefCanonical(txn)
	if brief == "" {
		return run.Validationf("gate brief is not available yet")
	}
	node := txn.Run.Node(phaseID)
	phase, _ := txn.Phase(phaseID)
	previous := phase.Status
	phase.Begin()
	txn.Commit(phaseID, previous)

	content, err := s.provider.Generate(ctx, s.prompter.Variant(variantLabel(node), brief))
	if err != nil {
		previous = phase.Status
		phase.Fail(err)
		txn.Commit(phaseID, previous)
		return err
	}
	s.completeVariant(ctx, txn, node, content)
	s.autoStartReview(txn)
	return nil
}

// completeVariant stores a successful branch render and either approves it
// or parks it for explicit review, per the phase's approval mode and any
// context policy override.
func (s *Service) completeVariant(ctx context.Context, txn *engine.Txn, node *run.Node, content string) {
	phase, _ := txn.Phase(node.PhaseID)
	phase.Output = &run.Output{
		Kind: run.OutputKindVariant,
		Variant: &run.VariantOutput{
			Label:    variantLabel(node),
			Render:   content,
			Provider: s.providerName,
		},
	}
	txn.AddArtifact(run.NewArtifact(txn.Run.RunID, node.PhaseID, phase.Attempt, run.ArtifactRender, content))
	txn.AddArtifact(run.NewArtifact(txn.Run.RunID, node.PhaseID, phase.Attempt, run.ArtifactRubric, marshalRubric(evaluateRender(content))))

	previous := phase.Status
	if policy.FromContext(ctx).AutoApproves(node.Approval) {
		phase.Approve()
	} else {
		phase.ReadyForReview()
	}
	txn.Commit(node.PhaseID, previous)
}

// startReview parks the review phase for the human decision.
func (s *Service) startReview(txn *engine.Txn, phaseID string) {
	phase, _ := txn.Phase(phaseID)
	previous := phase.Status
	phase.Begin()
	txn.Commit(phaseID, previous)
	previous = phase.Status
	phase.AwaitHuman()
	txn.Commit(phaseID, previous)
}

// autoStartReview starts any review phase whose branches have settled. A
// review stays blocked only while a dependency is still undecided: once
// every branch is terminal and at least one succeeded, the review proceeds
// over the surviving branches even though some failed.
func (s *Service) autoStartReview(txn *engine.Txn) {
	for _, node := range txn.Run.NodesOfKind(model.KindReview) {
		phase, ok := txn.Phase(node.PhaseID)
		if !ok {
			continue
		}
		if phase.Status == run.StatusBlocked && branchesSettled(txn.Run, node) {
			previous := phase.Status
			phase.Unblock()
			txn.Commit(node.PhaseID, previous)
		}
		if phase.Status == run.StatusDraft {
			s.startReview(txn, node.PhaseID)
		}
	}
}

// branchesSettled reports whether every dependency of the node reached a
// terminal status with at least one of them satisfied.
func branchesSettled(aRun *run.Run, node *run.Node) bool {
	satisfied := 0
	for _, dep := range node.DependsOn {
		phase, ok := aRun.Phase(dep)
		if !ok {
			return false
		}
		switch phase.Status {
		case run.StatusApproved, run.StatusCompleted:
			satisfied++
		case run.StatusError, run.StatusRejected:
		default:
			return false
		}
	}
	return satisfied > 0
}

// briefCanonical returns the gate phase's canonical brief, or "".
func (s *Service) briefCanonical(txn *engine.Txn) string {
	node := txn.Run.FirstNodeOfKind(model.KindGate)
	if node == nil {
		return ""
	}
	phase, ok := txn.Phase(node.PhaseID)
	if !ok || phase.Output == nil || phase.Output.Brief == nil {
		return ""
	}
	return phase.Output.Brief.Canonical
}

// variantLabel prefers the declared label, falling back to the phase id
// without its kind prefix.
func variantLabel(node *run.Node) string {
	if node == nil {
		return ""
	}
	if node.Label != "" {
		return node.Label
	}
	return strings.TrimPrefix(node.PhaseID, "variant-")
}
