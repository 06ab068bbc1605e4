package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcp-scooter/toolbridge/internal/app"
	"github.com/mcp-scooter/toolbridge/internal/cli/cache"
	"github.com/mcp-scooter/toolbridge/internal/cli/client"
	clierrors "github.com/mcp-scooter/toolbridge/internal/cli/errors"
	"github.com/mcp-scooter/toolbridge/internal/cli/inference"
	"github.com/mcp-scooter/toolbridge/internal/cli/output"
	"github.com/mcp-scooter/toolbridge/internal/logger"
)

// DefaultDaemonURL is used when --daemon is given without a value.
const DefaultDaemonURL = "http://127.0.0.1:6210"

// errReported marks failures that were already printed.
var errReported = errors.New("error already reported")

// globals holds the persistent flags and the collaborators shared by all
// subcommands.
type globals struct {
	cfgFile    string
	jsonOutput bool
	rawOutput  bool
	noColor    bool
	verbose    bool
	daemon     string
	timeout    time.Duration

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	newBackend func(g *globals) (client.Backend, error)
}

// Option customizes the root command, mostly for tests.
type Option func(*globals)

// WithBackend makes every command use b instead of building one.
func WithBackend(b client.Backend) Option {
	return func(g *globals) {
		g.newBackend = func(*globals) (client.Backend, error) { return b, nil }
	}
}

// WithIO redirects the command's standard streams.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(g *globals) {
		g.stdin, g.stdout, g.stderr = stdin, stdout, stderr
	}
}

// NewRootCmd builds the toolbridge command tree.
func NewRootCmd(opts ...Option) *cobra.Command {
	g := &globals{
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		newBackend: defaultBackend,
	}
	for _, opt := range opts {
		opt(g)
	}

	rootCmd := &cobra.Command{
		Use:   "toolbridge",
		Short: "Discover AI command-line tools and call MCP server tools",
		Long: `toolbridge finds installed AI CLIs (Claude Code, Ollama, Gemini and custom
tools), and calls tools on configured MCP servers by <server>__<tool> name.
Commands run in-process unless --daemon points them at a running toolbridged.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetQuiet(!g.verbose)
		},
	}
	rootCmd.SetIn(g.stdin)
	rootCmd.SetOut(g.stdout)
	rootCmd.SetErr(g.stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&g.cfgFile, "config", "", "settings file (default is <config dir>/toolbridge/settings.yaml)")
	flags.BoolVar(&g.jsonOutput, "json", false, "output in JSON format")
	flags.BoolVar(&g.rawOutput, "raw", false, "raw output (no formatting)")
	flags.BoolVar(&g.noColor, "no-color", false, "disable colored output")
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "print logs to stdout")
	flags.StringVar(&g.daemon, "daemon", "", "use the toolbridged control API at this URL instead of running in-process")
	flags.Lookup("daemon").NoOptDefVal = DefaultDaemonURL
	flags.DurationVar(&g.timeout, "timeout", 0, "MCP call timeout (default from settings)")

	rootCmd.AddCommand(
		newDetectCmd(g),
		newInstructionsCmd(g),
		newServersCmd(g),
		newToolsCmd(g),
		newCallCmd(g),
		newScriptCmd(g),
		newValidateCmd(g),
		newFixEnvCmd(g),
		newSecretsCmd(g),
		newStatusCmd(g),
	)
	return rootCmd
}

// Execute runs the CLI with os.Args.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := NewRootCmd()
	args := os.Args[1:]
	if inferred, _ := inference.InferCommand(args, commandNames(rootCmd)); inferred != "" {
		args = append([]string{inferred}, args...)
	}
	rootCmd.SetArgs(args)
	return Run(ctx, rootCmd)
}

// Run executes cmd and prints a classified error when it fails.
func Run(ctx context.Context, cmd *cobra.Command) error {
	executed, err := cmd.ExecuteContextC(ctx)
	if err == nil || errors.Is(err, errReported) {
		return err
	}
	g := globalsOf(executed)
	fmt.Fprintln(cmd.ErrOrStderr(), g.formatter(cmd.ErrOrStderr()).FormatError(clierrors.Classify(err)))
	return err
}

func commandNames(cmd *cobra.Command) []string {
	names := []string{"help", "completion"}
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
		names = append(names, c.Aliases...)
	}
	return names
}

// globalsOf reads the output flags back from the command that ran.
func globalsOf(cmd *cobra.Command) *globals {
	g := &globals{}
	if cmd == nil {
		return g
	}
	g.jsonOutput, _ = cmd.Flags().GetBool("json")
	g.noColor, _ = cmd.Flags().GetBool("no-color")
	return g
}

func (g *globals) formatter(w io.Writer) *output.Formatter {
	format := output.FormatText
	switch {
	case g.jsonOutput:
		format = output.FormatJSON
	case g.rawOutput:
		format = output.FormatRaw
	}
	// color disables itself when stdout is not a terminal.
	return output.NewFormatter(w, format, !g.noColor)
}

func (g *globals) out() *output.Formatter { return g.formatter(g.stdout) }

func (g *globals) backend() (client.Backend, error) {
	return g.newBackend(g)
}

func defaultBackend(g *globals) (client.Backend, error) {
	if g.daemon != "" {
		return client.NewControlClient(strings.TrimRight(g.daemon, "/"), 0), nil
	}
	dir, err := app.Dir()
	if err != nil {
		return nil, err
	}
	svc, err := app.New(dir, g.cfgFile, app.Options{})
	if err != nil {
		return nil, err
	}
	return client.NewDirect(svc), nil
}

func (g *globals) schemaCache() (*cache.SchemaCache, error) {
	dir, err := app.Dir()
	if err != nil {
		return nil, err
	}
	return cache.NewSchemaCache(filepath.Join(dir, "cache", "tools")), nil
}

func (g *globals) settingsPath() (string, error) {
	if g.cfgFile != "" {
		return g.cfgFile, nil
	}
	dir, err := app.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, app.SettingsFile), nil
}
