package inference

import (
	"strings"

	"github.com/mcp-scooter/toolbridge/internal/domain/discovery"
)

// InferCommand returns "call" when the first argument looks like a
// namespaced tool name, so `toolbridge github__search q=go` works.
func InferCommand(args []string, known []string) (string, []string) {
	if len(args) == 0 {
		return "", nil
	}

	first := args[0]
	if strings.HasPrefix(first, "-") {
		return "", args
	}
	for _, k := range known {
		if k == first {
			return "", args
		}
	}
	if _, _, err := discovery.SplitName(first); err == nil {
		return "call", args
	}
	return "", args
}
