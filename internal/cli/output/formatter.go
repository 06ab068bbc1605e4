package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/mcp-scooter/toolbridge/internal/api"
	"github.com/mcp-scooter/toolbridge/internal/cli/errors"
	"github.com/mcp-scooter/toolbridge/internal/domain/detection"
	"github.com/mcp-scooter/toolbridge/internal/domain/discovery"
)

type OutputFormat string

const (
	FormatText     OutputFormat = "text"
	FormatJSON     OutputFormat = "json"
	FormatRaw      OutputFormat = "raw"
	FormatMarkdown OutputFormat = "markdown"
)

// Formatter renders command results to w.
type Formatter struct {
	w      io.Writer
	format OutputFormat
	color  bool
}

func NewFormatter(w io.Writer, format OutputFormat, useColor bool) *Formatter {
	return &Formatter{
		w:      w,
		format: format,
		color:  useColor,
	}
}

func (f *Formatter) Format() OutputFormat { return f.format }

// JSON writes v indented. Every table printer falls back to it in JSON mode.
func (f *Formatter) JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f.w, string(data))
	return err
}

func (f *Formatter) Println(a ...any) {
	fmt.Fprintln(f.w, a...)
}

func (f *Formatter) FormatResult(result *CallResult) string {
	switch f.format {
	case FormatJSON:
		s, err := result.JSON()
		if err != nil {
			return string(result.Raw)
		}
		return s
	case FormatMarkdown:
		return result.Markdown()
	case FormatRaw:
		return string(result.Raw)
	}

	if result.IsError() {
		return f.red("Error: ") + result.Text()
	}
	return result.Text()
}

func (f *Formatter) FormatError(err errors.ClassifiedError) string {
	if f.format == FormatJSON {
		data, _ := json.MarshalIndent(err, "", "  ")
		return string(data)
	}

	msg := f.red(fmt.Sprintf("Error [%s]: %s", err.Kind, err.Message))
	if err.Hint != "" {
		msg += "\n" + f.yellow("Hint: "+err.Hint)
	}
	return msg
}

// Detections prints one row per tool, sorted by name.
func (f *Formatter) Detections(results map[string]detection.Detection) error {
	if f.format == FormatJSON {
		return f.JSON(results)
	}
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	table := tablewriter.NewTable(f.w,
		tablewriter.WithHeader([]string{"Tool", "Installed", "Version", "Path", "Running", "Auth", "Error"}),
	)
	for _, name := range names {
		table.Append(f.detectionRow(results[name]))
	}
	return table.Render()
}

// Detection prints a single tool as key/value lines.
func (f *Formatter) Detection(d detection.Detection) error {
	if f.format == FormatJSON {
		return f.JSON(d)
	}
	row := f.detectionRow(d)
	labels := []string{"Tool", "Installed", "Version", "Path", "Running", "Auth", "Error"}
	for i, label := range labels {
		if row[i] == "" || row[i] == "-" {
			continue
		}
		fmt.Fprintf(f.w, "%-10s %s\n", label+":", row[i])
	}
	return nil
}

func (f *Formatter) detectionRow(d detection.Detection) []string {
	installed := f.red("no")
	if d.Installed {
		installed = f.green("yes")
	}
	path := d.Path
	if path != "" && !d.InPath {
		path += " (not in PATH)"
	}
	return []string{d.Name, installed, d.Version, path, tri(d.Running), tri(d.Authenticated), d.Error}
}

func (f *Formatter) Tools(listing discovery.ToolListing) error {
	if f.format == FormatJSON {
		return f.JSON(listing)
	}
	table := tablewriter.NewTable(f.w,
		tablewriter.WithHeader([]string{"Name", "Description"}),
	)
	for _, t := range listing.Tools {
		table.Append([]string{t.Name, firstLine(t.Description)})
	}
	if err := table.Render(); err != nil {
		return err
	}
	for _, failure := range listing.Failures {
		fmt.Fprintln(f.w, f.yellow(fmt.Sprintf("Warning: server %s omitted (%s): %s", failure.Server, failure.Kind, failure.Error)))
	}
	return nil
}

func (f *Formatter) Servers(servers []api.ServerInfo) error {
	if f.format == FormatJSON {
		return f.JSON(servers)
	}
	table := tablewriter.NewTable(f.w,
		tablewriter.WithHeader([]string{"ID", "Enabled", "Command", "Secrets"}),
	)
	for _, s := range servers {
		enabled := f.red("no")
		if s.Enabled {
			enabled = f.green("yes")
		}
		command := strings.TrimSpace(s.Command + " " + strings.Join(s.Args, " "))
		table.Append([]string{s.ID, enabled, command, strings.Join(s.Secrets, ", ")})
	}
	return table.Render()
}

func (f *Formatter) Sessions(sessions []discovery.SessionInfo) error {
	if f.format == FormatJSON {
		return f.JSON(sessions)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(f.w, "No active MCP sessions")
		return nil
	}
	table := tablewriter.NewTable(f.w,
		tablewriter.WithHeader([]string{"Session", "Server", "PID", "Started"}),
	)
	for _, s := range sessions {
		table.Append([]string{s.ID, s.Server, fmt.Sprint(s.PID), s.Started.Format("15:04:05")})
	}
	return table.Render()
}

func (f *Formatter) red(s string) string {
	if !f.color {
		return s
	}
	return color.RedString("%s", s)
}

func (f *Formatter) green(s string) string {
	if !f.color {
		return s
	}
	return color.GreenString("%s", s)
}

func (f *Formatter) yellow(s string) string {
	if !f.color {
		return s
	}
	return color.YellowString("%s", s)
}

func tri(b *bool) string {
	switch {
	case b == nil:
		return "-"
	case *b:
		return "yes"
	default:
		return "no"
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
