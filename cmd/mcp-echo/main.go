// Command mcp-echo is a minimal stdio MCP server with echo, shout and env
// tools. It is handy for trying the gateway without installing a real
// server:
//
//	mcp_servers:
//	  - id: echo_srv
//	    command: mcp-echo
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mcp-scooter/toolbridge/internal/testutil/mcpstub"
)

func main() {
	mode := flag.String("mode", mcpstub.ModeEcho, "stub behaviour")
	flag.Parse()

	if err := mcpstub.Serve(os.Stdin, os.Stdout, *mode); err != nil {
		fmt.Fprintln(os.Stderr, "mcp-echo:", err)
		os.Exit(1)
	}
}
