package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newServersCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "servers",
		Short: "List configured MCP servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := g.backend()
			if err != nil {
				return err
			}
			defer b.Close()

			servers, err := b.Servers(cmd.Context())
			if err != nil {
				return err
			}
			return g.out().Servers(servers)
		},
	}
	cmd.AddCommand(newServersImportCmd(g))
	return cmd
}

func newServersImportCmd(g *globals) *cobra.Command {
	var clients []string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import MCP servers from installed AI clients",
		Long: `Import copies stdio MCP servers configured in Claude, Gemini, Codex, Cursor,
VS Code and Zed into the toolbridge settings. Servers whose id already exists
are left alone.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := g.backend()
			if err != nil {
				return err
			}
			defer b.Close()

			res, err := b.ImportServers(cmd.Context(), clients)
			if err != nil {
				return err
			}
			out := g.out()
			if g.jsonOutput {
				return out.JSON(res)
			}
			out.Println(fmt.Sprintf("Imported %d servers", len(res.Servers)))
			for _, s := range res.Servers {
				out.Println("  " + s.ID)
			}
			for _, skipped := range res.Skipped {
				out.Println("Skipped: " + skipped)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&clients, "client", nil, "only import from these clients (repeatable)")
	return cmd
}
