package run

// OutputKind discriminates the Output union.
type OutputKind string

const (
	OutputKindBrief     OutputKind = "brief"
	OutputKindVariant   OutputKind = "variant"
	OutputKindReview    OutputKind = "review"
	OutputKindRender    OutputKind = "render"
	OutputKindInduction OutputKind = "induction"
)

// Output is the structured result of a phase, a tagged union keyed by Kind
// with exactly one variant populated. Details carries free-form values only
// where the shape genuinely varies per workflow definition.
type Output struct {
	Kind      OutputKind             `json:"kind"`
	Brief     *BriefOutput           `json:"brief,omitempty"`
	Variant   *VariantOutput         `json:"variant,omitempty"`
	Review    *ReviewOutput          `json:"review,omitempty"`
	Render    *RenderOutput          `json:"render,omitempty"`
	Induction *InductionOutput       `json:"induction,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// BriefOutput is the canonical summary produced by the gate phase.
type BriefOutput struct {
	Canonical string `json:"canonical"`
	Context   string `json:"context,omitempty"`
}

// VariantOutput is one generated candidate render.
type VariantOutput struct {
	Label    string `json:"label"`
	Render   string `json:"render"`
	Provider string `json:"provider,omitempty"`
}

// ReviewOutput records the human merge decision.
type ReviewOutput struct {
	Rationale string   `json:"rationale"`
	Preferred []string `json:"preferred,omitempty"`
	Inferred  bool     `json:"inferred,omitempty"`
}

// RenderOutput is a finalized or merged render together with the branches
// it was composed from.
type RenderOutput struct {
	Render   string   `json:"render"`
	Basis    []string `json:"basis,omitempty"`
	Fallback bool     `json:"fallback,omitempty"`
}

// InductionOutput summarises a scoped refinement round.
type InductionOutput struct {
	Selector    string      `json:"selector"`
	Instruction string      `json:"instruction"`
	Branches    []BranchRef `json:"branches,omitempty"`
	Succeeded   int         `json:"succeeded"`
	Failed      int         `json:"failed"`
}

// BranchRef identifies one fan-out branch and its outcome. Brief confirms,
// for successful refinement branches, that the edit stayed scoped to the
// requested selector.
type BranchRef struct {
	ID     string `json:"id"`
	Label  string `json:"label,omitempty"`
	Brief  string `json:"brief,omitempty"`
	Failed bool   `json:"failed,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Clone returns a deep copy of the output.
func (o *Output) Clone() *Output {
	if o == nil {
		return nil
	}
	ret := *o
	if o.Brief != nil {
		v := *o.Brief
		ret.Brief = &v
	}
	if o.Variant != nil {
		v := *o.Variant
		ret.Variant = &v
	}
	if o.Review != nil {
		v := *o.Review
		ret.Review = &v
		if len(o.Review.Preferred) > 0 {
			ret.Review.Preferred = append([]string(nil), o.Review.Preferred...)
		}
	}
	if o.Render != nil {
		v := *o.Render
		ret.Render = &v
		if len(o.Render.Basis) > 0 {
			ret.Render.Basis = append([]string(nil), o.Render.Basis...)
		}
	}
	if o.Induction != nil {
		v := *o.Induction
		ret.Induction = &v
		if len(o.Induction.Branches) > 0 {
			ret.Induction.Branches = append([]BranchRef(nil), o.Induction.Branches...)
		}
	}
	if len(o.Details) > 0 {
		ret.Details = cloneDetails(o.Details)
	}
	return &ret
}

// cloneDetails deep-copies a details map, descending into nested maps and
// slices so a clone never aliases the original's containers.
func cloneDetails(details map[string]interface{}) map[string]interface{} {
	ret := make(map[string]interface{}, len(details))
	for k, v := range details {
		ret[k] = cloneDetailValue(v)
	}
	return ret
}

func cloneDetailValue(value interface{}) interface{} {
	switch actual := value.(type) {
	case map[string]interface{}:
		return cloneDetails(actual)
	case map[string]string:
		ret := make(map[string]string, len(actual))
		for k, v := range actual {
			ret[k] = v
		}
		return ret
	case []interface{}:
		ret := make([]interface{}, len(actual))
		for i, item := range actual {
			ret[i] = cloneDetailValue(item)
		}
		return ret
	case []string:
		return append([]string(nil), actual...)
	default:
		return actual
	}
}
