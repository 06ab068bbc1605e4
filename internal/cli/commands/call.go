package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"

	"github.com/spf13/cobra"

	"github.com/mcp-scooter/toolbridge/internal/cli/inference"
	"github.com/mcp-scooter/toolbridge/internal/cli/output"
)

func newCallCmd(g *globals) *cobra.Command {
	var argsJSON string
	cmd := &cobra.Command{
		Use:   "call <server>__<tool> [key=value...]",
		Short: "Call an MCP tool",
		Long: `Call starts the tool's server, sends one tools/call and prints the result.
Arguments are given as key=value pairs, typed by the tool's cached input
schema when available, or as a JSON object with --args-json ("-" reads
stdin). Pairs override keys of --args-json.`,
		Example: `  toolbridge call github__search_repositories query=mcp perPage=5
  toolbridge github__get_me
  echo '{"text":"hi"}' | toolbridge call echo_srv__shout --args-json -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			arguments, err := g.callArguments(name, argsJSON, args[1:])
			if err != nil {
				return err
			}

			b, err := g.backend()
			if err != nil {
				return err
			}
			defer b.Close()

			raw, err := b.CallTool(cmd.Context(), name, arguments, g.timeout)
			if err != nil {
				return err
			}
			res := output.NewCallResult(raw)
			g.out().Println(g.out().FormatResult(res))
			if res.IsError() {
				return fmt.Errorf("tool %s reported an error: %w", name, errReported)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&argsJSON, "args-json", "", `tool arguments as a JSON object, "-" for stdin`)
	return cmd
}

func (g *globals) callArguments(name, argsJSON string, pairs []string) (json.RawMessage, error) {
	args := map[string]any{}
	if argsJSON != "" {
		data := []byte(argsJSON)
		if argsJSON == "-" {
			var err error
			if data, err = io.ReadAll(g.stdin); err != nil {
				return nil, err
			}
		}
		if err := json.Unmarshal(data, &args); err != nil {
			return nil, fmt.Errorf("--args-json must be a JSON object: %w", err)
		}
	}

	if len(pairs) > 0 {
		var schema json.RawMessage
		if schemas, err := g.schemaCache(); err == nil {
			if tool, ok := schemas.Get(name); ok {
				schema = tool.InputSchema
			}
		}
		parsed, err := inference.ParseArgs(pairs, schema)
		if err != nil {
			return nil, err
		}
		maps.Copy(args, parsed)
	}
	return json.Marshal(args)
}
