package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcp-scooter/toolbridge/internal/domain/detection"
	"github.com/mcp-scooter/toolbridge/internal/domain/profile"
)

func newValidateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a settings file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := g.settingsPath()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				path = args[0]
			}

			res, err := profile.ValidateFile(path, detection.BuiltinNames()...)
			if err != nil {
				return err
			}
			out := g.out()
			if g.jsonOutput {
				if err := out.JSON(res); err != nil {
					return err
				}
			} else {
				for _, w := range res.Warnings {
					out.Println("warning: " + w.Error())
				}
				for _, e := range res.Errors {
					out.Println("error: " + e.Error())
				}
				if res.Valid {
					out.Println(fmt.Sprintf("%s is valid", path))
				}
			}
			if !res.Valid {
				return fmt.Errorf("%s has %d errors: %w", path, len(res.Errors), errReported)
			}
			return nil
		},
	}
}
