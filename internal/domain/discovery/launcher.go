package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mcp-scooter/toolbridge/internal/logger"
	"github.com/mcp-scooter/toolbridge/internal/procutil"
)

// LaunchSpec is everything a launcher needs to start one MCP server.
type LaunchSpec struct {
	ServerID string
	Command  string
	Args     []string
	// Env holds the server's own variables plus resolved secrets. The exec
	// launcher layers it over the inherited environment.
	Env map[string]string
	// StopDelay bounds how long Wait may block on pipes held open by
	// grandchildren after the server exits.
	StopDelay time.Duration
}

// Process is a running MCP server with its stdio wired up.
type Process interface {
	Stdin() io.WriteCloser
	Stdout() io.Reader
	// PID is the OS process id, or 0 for in-process servers.
	PID() int
	// Kill terminates the server and everything it spawned.
	Kill() error
	// Done is closed once the server has exited and been reaped.
	Done() <-chan struct{}
}

// Launcher starts MCP server processes.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (Process, error)
}

type execLauncher struct{}

type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	cancel context.CancelFunc
	done   chan struct{}
}

func (execLauncher) Launch(_ context.Context, spec LaunchSpec) (Process, error) {
	// The session owns the lifetime; the caller's ctx only bounds requests.
	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, spec.Command, spec.Args...)
	cmd.Env = mergeEnv(os.Environ(), spec.Env)
	procutil.Setup(cmd)
	stderr := newStderrMirror(spec.ServerID)
	cmd.Stderr = stderr
	if spec.StopDelay > 0 {
		cmd.WaitDelay = spec.StopDelay
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, classifyStartError(err)
	}

	p := &execProcess{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		err := cmd.Wait()
		stderr.Flush()
		if err != nil {
			logger.Debugf("[%s] process %d exited: %v", spec.ServerID, p.PID(), err)
		}
		cancel()
		close(p.done)
	}()
	return p, nil
}

func (p *execProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *execProcess) Stdout() io.Reader     { return p.stdout }
func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Kill cancels the process context; the Cancel hook installed by
// procutil.Setup then kills the whole process group.
func (p *execProcess) Kill() error {
	p.cancel()
	return nil
}

func classifyStartError(err error) error {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("executable not found: %w", err)
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("permission denied: %w", err)
	}
	return err
}

// mergeEnv overlays extra onto base. Keys already present in base are
// replaced rather than duplicated so the child sees exactly one value.
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, override := extra[key]; override {
			continue
		}
		out = append(out, kv)
	}
	for _, k := range sortedKeys(extra) {
		out = append(out, k+"="+extra[k])
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

const maxStderrLineLength = 32 * 1024

// stderrMirror forwards a server's stderr to the logger one line at a
// time. Lines are logged, never interpreted.
type stderrMirror struct {
	server string
	mu     sync.Mutex
	buf    []byte
}

func newStderrMirror(server string) *stderrMirror {
	return &stderrMirror{server: server}
}

func (m *stderrMirror) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buf = append(m.buf, p...)
	for {
		i := bytes.IndexByte(m.buf, '\n')
		if i < 0 {
			break
		}
		m.emit(m.buf[:i])
		m.buf = m.buf[i+1:]
	}
	if len(m.buf) > maxStderrLineLength {
		m.emit(m.buf)
		m.buf = nil
	}
	return len(p), nil
}

// Flush logs any trailing partial line.
func (m *stderrMirror) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.buf) > 0 {
		m.emit(m.buf)
		m.buf = nil
	}
}

func (m *stderrMirror) emit(line []byte) {
	text := strings.TrimRight(string(line), "\r")
	if strings.TrimSpace(text) == "" {
		return
	}
	if len(text) > maxStderrLineLength {
		text = text[:maxStderrLineLength] + "... [truncated]"
	}
	logger.Infof("[%s] %s", m.server, text)
}
