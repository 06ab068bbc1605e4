package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcp-scooter/toolbridge/internal/domain/discovery"
	"github.com/mcp-scooter/toolbridge/internal/domain/protocol"
	"github.com/mcp-scooter/toolbridge/internal/logger"
)

func newToolsCmd(g *globals) *cobra.Command {
	var cached bool
	cmd := &cobra.Command{
		Use:     "tools [server]",
		Aliases: []string{"list"},
		Short:   "List the tools of every enabled MCP server",
		Long: `Tools starts each enabled MCP server, asks it for its tools and prints them
as <server>__<tool>. Servers that fail are reported and skipped. --cached
prints the result of the last listing without starting anything.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var listing discovery.ToolListing
			schemas, err := g.schemaCache()
			if err != nil {
				return err
			}

			if cached {
				tools, err := schemas.All()
				if err != nil {
					return err
				}
				listing.Tools = tools
			} else {
				b, err := g.backend()
				if err != nil {
					return err
				}
				defer b.Close()

				listing, err = b.ListTools(cmd.Context())
				if err != nil {
					return err
				}
				if err := schemas.Replace(listing.Tools); err != nil {
					logger.Warnf("Failed to cache tool schemas: %v", err)
				}
			}

			if len(args) == 1 {
				listing = filterServer(listing, args[0])
			}
			if listing.Tools == nil {
				listing.Tools = []protocol.Tool{}
			}
			return g.out().Tools(listing)
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "print the last listing without starting servers")
	return cmd
}

func filterServer(listing discovery.ToolListing, server string) discovery.ToolListing {
	prefix := server + discovery.Separator
	out := discovery.ToolListing{Tools: []protocol.Tool{}}
	for _, t := range listing.Tools {
		if strings.HasPrefix(t.Name, prefix) {
			out.Tools = append(out.Tools, t)
		}
	}
	for _, f := range listing.Failures {
		if f.Server == server {
			out.Failures = append(out.Failures, f)
		}
	}
	return out
}
