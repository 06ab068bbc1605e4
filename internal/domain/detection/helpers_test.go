package detection

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// spyRunner answers which/where and login shells from tables and runs
// everything else for real, recording every invocation.
type spyRunner struct {
	mu     sync.Mutex
	calls  []string
	which  map[string]string
	shells map[string]string
	exec   ExecRunner
}

func newSpyRunner() *spyRunner {
	return &spyRunner{which: map[string]string{}, shells: map[string]string{}}
}

func (s *spyRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	s.mu.Unlock()

	switch filepath.Base(name) {
	case "which", "where":
		if p, ok := s.which[args[0]]; ok {
			return []byte(p + "\n"), nil
		}
		return nil, errors.New("exit status 1")
	case "zsh", "bash", "fish":
		if out, ok := s.shells[filepath.Base(name)]; ok {
			return []byte(out), nil
		}
		return nil, errors.New("executable file not found")
	}
	return s.exec.Run(ctx, name, args...)
}

func (s *spyRunner) count(substr string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if strings.Contains(c, substr) {
			n++
		}
	}
	return n
}

func (s *spyRunner) history() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script shims need /bin/sh")
	}
}

// writeShim writes an executable /bin/sh script and returns its path.
func writeShim(t *testing.T, dir, name, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func testEnv(home string, vars map[string]string) Env {
	return Env{
		GOOS:   runtime.GOOS,
		Home:   home,
		Getenv: func(k string) string { return vars[k] },
	}
}

func testOptions(runner Runner, env Env) Options {
	return Options{
		Prober:          NewProber(runner, env),
		Verifier:        NewVerifier(runner, 2*time.Second),
		HTTPClient:      http.DefaultClient,
		LivenessTimeout: time.Second,
	}
}

func ptr[T any](v T) *T { return &v }
