package discovery

import (
	"encoding/json"
	"strings"
)

// NoContent is the placeholder some servers return instead of an empty
// result.
const NoContent = "No content"

// ExtractText pulls a single string out of a tools/call result. It tries,
// in order: the text of every content block, content as a bare string, a
// top-level text field, message.content, and the result itself when it is
// a string. ok is false when nothing usable was found.
func ExtractText(result json.RawMessage) (text string, ok bool) {
	text = extract(result)
	if strings.TrimSpace(text) == "" || text == NoContent {
		return "", false
	}
	return text, true
}

func extract(result json.RawMessage) string {
	var s string
	if json.Unmarshal(result, &s) == nil {
		return s
	}

	var obj struct {
		Content json.RawMessage `json:"content"`
		Text    *string         `json:"text"`
		Message *struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	}
	if json.Unmarshal(result, &obj) != nil {
		return ""
	}

	if len(obj.Content) > 0 {
		var blocks []struct {
			Type string  `json:"type"`
			Text *string `json:"text"`
		}
		if json.Unmarshal(obj.Content, &blocks) == nil {
			var parts []string
			for _, b := range blocks {
				if b.Text != nil {
					parts = append(parts, *b.Text)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, "\n")
			}
		}
		if json.Unmarshal(obj.Content, &s) == nil {
			return s
		}
	}
	if obj.Text != nil {
		return *obj.Text
	}
	if obj.Message != nil && len(obj.Message.Content) > 0 {
		if json.Unmarshal(obj.Message.Content, &s) == nil {
			return s
		}
	}
	return ""
}
