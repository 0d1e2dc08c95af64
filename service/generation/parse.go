package generation

import (
	"encoding/json"
	"strings"
)

// parseText extracts the generated text from a provider response body,
// tolerating the response shapes of the supported backends: a top-level
// output_text, OpenAI-style choices[0].message.content (string or block
// list) and Anthropic-style content block lists, including nested blocks.
func parseText(body []byte) string {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if text, ok := payload["output_text"].(string); ok && text != "" {
		return text
	}
	if choices, ok := payload["choices"].([]interface{}); ok && len(choices) > 0 {
		if first, ok := choices[0].(map[string]interface{}); ok {
			if message, ok := first["message"].(map[string]interface{}); ok {
				if parsed := strings.TrimSpace(extractBlocks(message["content"])); parsed != "" {
					return parsed
				}
			}
		}
	}
	if parsed := strings.TrimSpace(extractBlocks(payload["content"])); parsed != "" {
		return parsed
	}
	return ""
}

// extractBlocks flattens a content value that may be a plain string or a
// list of text blocks with optional nested content.
func extractBlocks(value interface{}) string {
	switch typed := value.(type) {
	case string:
		return typed
	case []interface{}:
		var ret string
		for _, element := range typed {
			switch block := element.(type) {
			case string:
				ret += block
			case map[string]interface{}:
				if text, ok := block["text"].(string); ok {
					ret += text
					continue
				}
				ret += extractBlocks(block["content"])
			}
		}
		return ret
	}
	return ""
}
