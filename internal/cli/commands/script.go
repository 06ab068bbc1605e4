package commands

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcp-scooter/toolbridge/internal/cli/inference"
)

func newScriptCmd(g *globals) *cobra.Command {
	var pairs []string
	cmd := &cobra.Command{
		Use:   "script <file|->",
		Short: "Run a JavaScript file that chains MCP tool calls",
		Long: `Script runs JavaScript with callTool(name, args), textOf(result), log(msg)
and the args object in scope. The body runs as a function; whatever it
returns is printed.`,
		Example: `  toolbridge script summarize.js --arg repo=acme/widgets`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src []byte
			var err error
			if args[0] == "-" {
				src, err = io.ReadAll(g.stdin)
			} else {
				src, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			scriptArgs, err := inference.ParseArgs(pairs, nil)
			if err != nil {
				return err
			}

			b, err := g.backend()
			if err != nil {
				return err
			}
			defer b.Close()

			res, err := b.RunScript(cmd.Context(), string(src), scriptArgs)
			if err != nil {
				return err
			}
			out := g.out()
			if g.jsonOutput {
				return out.JSON(res)
			}
			for _, line := range res.Logs {
				out.Println("# " + line)
			}
			if s, ok := res.Value.(string); ok {
				out.Println(s)
				return nil
			}
			return out.JSON(res.Value)
		},
	}
	cmd.Flags().StringArrayVar(&pairs, "arg", nil, "script argument as key=value (repeatable)")
	return cmd
}
