package commands

import (
	"github.com/spf13/cobra"

	"github.com/mcp-scooter/toolbridge/internal/domain/detection"
)

func newDetectCmd(g *globals) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "detect [name...]",
		Short: "Detect installed AI command-line tools",
		Long: `Detect reports whether each known tool is installed, where, and at which
version. Results are cached; --refresh forces a new probe.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := g.backend()
			if err != nil {
				return err
			}
			defer b.Close()

			ctx := cmd.Context()
			out := g.out()
			if len(args) == 0 {
				if refresh {
					if err := b.ClearDetections(ctx); err != nil {
						return err
					}
				}
				results, err := b.DetectAll(ctx)
				if err != nil {
					return err
				}
				return out.Detections(results)
			}

			if len(args) == 1 {
				d, err := b.Detect(ctx, args[0], refresh)
				if err != nil {
					return err
				}
				return out.Detection(d)
			}
			results := make(map[string]detection.Detection, len(args))
			for _, name := range args {
				d, err := b.Detect(ctx, name, refresh)
				if err != nil {
					return err
				}
				results[name] = d
			}
			return out.Detections(results)
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore cached results")
	return cmd
}

func newInstructionsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "instructions <name>",
		Short: "Show how to install a tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := g.backend()
			if err != nil {
				return err
			}
			defer b.Close()

			text, err := b.Instructions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := g.out()
			if g.jsonOutput {
				return out.JSON(map[string]string{"name": args[0], "instructions": text})
			}
			out.Println(text)
			return nil
		},
	}
}
