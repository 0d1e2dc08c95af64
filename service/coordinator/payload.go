package coordinator

import (
	"github.com/viant/toolbox"

	"github.com/strokeworks/vectorflow/model/run"
)

// gatePayload is the structured payload of a gate START.
type gatePayload struct {
	Context    string `json:"context"`
	StyleHints string `json:"styleHints"`
}

// reviewPayload is the structured payload of a review APPROVE.
type reviewPayload struct {
	Rationale   string   `json:"rationale"`
	Preferences []string `json:"preferences"`
}

// inductionPayload is the structured payload of an induction START.
type inductionPayload struct {
	Selector    string `json:"selector"`
	Instruction string `json:"instruction"`
}

// mergePayload is the structured payload of an induction-merge START.
type mergePayload struct {
	Branch string `json:"branch"`
}

// coerce converts a free-form action payload map into a typed per-phase
// payload struct. A nil payload leaves the target zero-valued.
func coerce(payload map[string]interface{}, target interface{}) error {
	if len(payload) == 0 {
		return nil
	}
	if err := toolbox.DefaultConverter.AssignConverted(target, payload); err != nil {
		return run.Validationf("malformed payload: %v", err)
	}
	return nil
}

// pruneDetails drops empty entries from an output details map.
func pruneDetails(details map[string]interface{}) map[string]interface{} {
	if len(details) == 0 {
		return nil
	}
	return toolbox.DeleteEmptyKeys(details)
}
