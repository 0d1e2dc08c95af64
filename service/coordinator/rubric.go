package coordinator

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// Rubric is a lightweight structural evaluation of a render, persisted next
// to it so reviewers can compare candidates without parsing the markup.
type Rubric struct {
	Size       int  `json:"size"`
	Lines      int  `json:"lines"`
	Markup     bool `json:"markup"`
	WellFormed bool `json:"wellFormed"`
}

// evaluateRender scores one render. Well-formedness is only meaningful for
// markup payloads; plain text is reported as non-markup.
func evaluateRender(render string) Rubric {
	rubric := Rubric{
		Size:  len(render),
		Lines: len(strings.Split(render, "\n")),
	}
	trimmedRender := strings.TrimSpace(render)
	if strings.HasPrefix(trimmedRender, "<") {
		rubric.Markup = true
		rubric.WellFormed = wellFormed(trimmedRender)
	}
	return rubric
}

// wellFormed reports whether the markup parses as a complete XML document.
func wellFormed(markup string) bool {
	decoder := xml.NewDecoder(strings.NewReader(markup))
	for {
		_, err := decoder.Token()
		if err != nil {
			return errors.Is(err, io.EOF)
		}
	}
}

// marshalRubric renders the rubric as the artifact payload.
func marshalRubric(rubric Rubric) string {
	data, err := json.Marshal(rubric)
	if err != nil {
		return "{}"
	}
	return string(data)
}
