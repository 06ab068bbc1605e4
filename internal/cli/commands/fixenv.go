package commands

import (
	"strings"

	"github.com/spf13/cobra"
)

func newFixEnvCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "fix-env",
		Short: "Recover PATH from the login shell",
		Long: `fix-env asks the login shell for its PATH and merges it into the
environment, which matters for processes started from a desktop launcher.
With --daemon the daemon's environment is repaired.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := g.backend()
			if err != nil {
				return err
			}
			defer b.Close()

			res, err := b.FixEnvironment(cmd.Context())
			if err != nil {
				return err
			}
			out := g.out()
			if g.jsonOutput {
				return out.JSON(res)
			}
			switch {
			case res.Error != "":
				out.Println("PATH repair failed: " + res.Error)
			case res.Skipped != "":
				out.Println("PATH repair skipped: " + res.Skipped)
			case res.Changed:
				out.Println("PATH updated, added: " + strings.Join(res.Added, ", "))
			default:
				out.Println("PATH already complete")
			}
			return nil
		},
	}
}
