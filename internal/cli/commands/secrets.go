package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcp-scooter/toolbridge/internal/app"
	"github.com/mcp-scooter/toolbridge/internal/domain/integration"
)

func newSecretsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage secrets referenced by secrets_env",
		Long: fmt.Sprintf(`Secrets are stored in the OS keychain (a user-only file on Linux and macOS)
and resolved when a server starts. A %s<ID> environment variable
takes precedence over the keychain.`, integration.SecretEnvPrefix),
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <id>",
		Short: "Store a secret read from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := credentials()
			if err != nil {
				return err
			}
			value, err := bufio.NewReader(g.stdin).ReadString('\n')
			value = strings.TrimRight(value, "\r\n")
			if value == "" {
				if err != nil {
					return fmt.Errorf("reading secret from stdin: %w", err)
				}
				return fmt.Errorf("empty secret")
			}
			if err := creds.SetCredential(args[0], value); err != nil {
				return err
			}
			g.out().Println("Stored secret " + args[0])
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a stored secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := credentials()
			if err != nil {
				return err
			}
			if err := creds.DeleteCredential(args[0]); err != nil {
				return err
			}
			g.out().Println("Deleted secret " + args[0])
			return nil
		},
	})
	return cmd
}

func credentials() (*integration.CredentialManager, error) {
	dir, err := app.Dir()
	if err != nil {
		return nil, err
	}
	return integration.NewCredentialManager(dir), nil
}
