// Command toolbridge is the command-line front end: tool detection, MCP
// tool listing and calls, in-process or through toolbridged.
package main

import (
	"os"

	"github.com/mcp-scooter/toolbridge/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
