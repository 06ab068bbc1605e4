package discovery

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name   string
		result string
		want   string
		ok     bool
	}{
		{"content blocks", `{"content":[{"type":"text","text":"a"},{"type":"image","data":"x"},{"type":"text","text":"b"}]}`, "a\nb", true},
		{"content string", `{"content":"plain"}`, "plain", true},
		{"top-level text", `{"text":"hello"}`, "hello", true},
		{"message content", `{"message":{"role":"assistant","content":"from message"}}`, "from message", true},
		{"bare string", `"raw"`, "raw", true},
		{"content wins over text", `{"content":[{"type":"text","text":"first"}],"text":"second"}`, "first", true},
		{"no content marker", `{"content":[{"type":"text","text":"No content"}]}`, "", false},
		{"empty", `{"content":[]}`, "", false},
		{"blank text", `{"text":"   "}`, "", false},
		{"number", `42`, "", false},
		{"null", `null`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractText(json.RawMessage(tt.result))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
