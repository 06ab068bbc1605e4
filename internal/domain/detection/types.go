// Package detection locates external AI command-line tools, verifies that
// the binary found is the intended tool, and caches the result.
package detection

import (
	"os"
	"runtime"
	"time"
)

// Built-in tool names.
const (
	ToolClaudeCode = "claude-code"
	ToolOllama     = "ollama"
	ToolGemini     = "gemini"
)

// BuiltinNames lists the tools that always have a detector.
func BuiltinNames() []string {
	return []string{ToolClaudeCode, ToolOllama, ToolGemini}
}

// ToolInfo is a snapshot of what is known about one tool.
type ToolInfo struct {
	Name      string `json:"name"`
	Installed bool   `json:"installed"`
	Version   string `json:"version,omitempty"`
	Path      string `json:"path,omitempty"`
	InPath    bool   `json:"in_path"`
	// Running is set only by detectors with a liveness probe.
	Running *bool `json:"running,omitempty"`
	// Authenticated is set only by detectors with a cheap auth check.
	Authenticated *bool  `json:"authenticated,omitempty"`
	Error         string `json:"error,omitempty"`
}

// CachedDetection is a ToolInfo together with the time it was taken.
type CachedDetection struct {
	Info    ToolInfo
	TakenAt time.Time
}

// Detection is what the registry hands to callers.
type Detection struct {
	ToolInfo
	TakenAt time.Time `json:"taken_at"`
}

// Candidate is a path produced by one probe strategy.
type Candidate struct {
	Path   string `json:"path"`
	InPath bool   `json:"in_path"`
	Source string `json:"source"`
}

// Candidate sources.
const (
	SourcePATH       = "path"
	SourceWellKnown  = "well-known"
	SourceLoginShell = "login-shell"
)

// Env is the slice of the host environment detectors read. Tests swap it
// for a fake home and OS.
type Env struct {
	GOOS   string
	Home   string
	Getenv func(string) string
}

// SystemEnv returns the environment of the running process.
func SystemEnv() Env {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return Env{GOOS: runtime.GOOS, Home: home, Getenv: os.Getenv}
}

func (e Env) getenv(key string) string {
	if e.Getenv == nil {
		return ""
	}
	return e.Getenv(key)
}

func (e Env) windows() bool { return e.GOOS == "windows" }

func boolPtr(b bool) *bool { return &b }
