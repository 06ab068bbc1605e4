package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Status is what `toolbridge status` reports.
type Status struct {
	Mode     string `json:"mode"`
	Daemon   string `json:"daemon,omitempty"`
	Settings string `json:"settings"`
	Sessions int    `json:"active_sessions"`
}

func newStatusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where commands run and the active MCP sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := g.backend()
			if err != nil {
				return err
			}
			defer b.Close()

			sessions, err := b.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			status := Status{Mode: "direct", Daemon: g.daemon, Sessions: len(sessions)}
			if g.daemon != "" {
				status.Mode = "daemon"
			}
			if status.Settings, err = g.settingsPath(); err != nil {
				return err
			}

			out := g.out()
			if g.jsonOutput {
				return out.JSON(status)
			}
			if g.noColor {
				out.Println("toolbridge status:")
			} else {
				out.Println(color.CyanString("toolbridge status:"))
			}
			out.Println(fmt.Sprintf("  Mode:     %s", status.Mode))
			if status.Daemon != "" {
				out.Println(fmt.Sprintf("  Daemon:   %s", status.Daemon))
			}
			out.Println(fmt.Sprintf("  Settings: %s", status.Settings))
			return out.Sessions(sessions)
		},
	}
}
