package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/mcp-scooter/toolbridge/internal/logger"
)

// IsWasmCommand reports whether command names a WebAssembly module that
// runs in-process instead of as a child process.
func IsWasmCommand(command string) bool {
	return strings.EqualFold(filepath.Ext(command), ".wasm")
}

// wasmLauncher runs WASI modules speaking MCP over their stdio. Compiled
// modules are cached across launches.
type wasmLauncher struct {
	cache wazero.CompilationCache
}

func newWasmLauncher() *wasmLauncher {
	return &wasmLauncher{cache: wazero.NewCompilationCache()}
}

type wasmProcess struct {
	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

func (l *wasmLauncher) Launch(ctx context.Context, spec LaunchSpec) (Process, error) {
	data, err := os.ReadFile(spec.Command)
	if err != nil {
		return nil, classifyStartError(err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	cfg := wazero.NewRuntimeConfig().
		WithCompilationCache(l.cache).
		WithCloseOnContextDone(true)
	rt := wazero.NewRuntimeWithConfig(runCtx, cfg)
	if _, err := wasi_snapshot_preview1.Instantiate(runCtx, rt); err != nil {
		cancel()
		_ = rt.Close(context.Background())
		return nil, fmt.Errorf("instantiate wasi: %w", err)
	}
	compiled, err := rt.CompileModule(ctx, data)
	if err != nil {
		cancel()
		_ = rt.Close(context.Background())
		return nil, fmt.Errorf("compile %s: %w", filepath.Base(spec.Command), err)
	}

	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()
	stderr := newStderrMirror(spec.ServerID)

	modCfg := wazero.NewModuleConfig().
		WithName("").
		WithStdin(stdinR).
		WithStdout(stdoutW).
		WithStderr(stderr).
		WithArgs(append([]string{filepath.Base(spec.Command)}, spec.Args...)...)
	for _, k := range sortedKeys(spec.Env) {
		modCfg = modCfg.WithEnv(k, spec.Env[k])
	}

	p := &wasmProcess{
		stdinR:  stdinR,
		stdinW:  stdinW,
		stdoutR: stdoutR,
		stdoutW: stdoutW,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		// For a stdio module, instantiation runs _start to completion.
		mod, err := rt.InstantiateModule(runCtx, compiled, modCfg)
		if mod != nil {
			_ = mod.Close(context.Background())
		}
		var exit *sys.ExitError
		if err != nil && !(errors.As(err, &exit) && exit.ExitCode() == 0) {
			logger.Debugf("[%s] wasm module exited: %v", spec.ServerID, err)
		}
		stderr.Flush()
		_ = stdoutW.Close()
		_ = stdinR.Close()
		_ = rt.Close(context.Background())
		cancel()
	}()
	return p, nil
}

func (p *wasmProcess) Stdin() io.WriteCloser { return p.stdinW }
func (p *wasmProcess) Stdout() io.Reader     { return p.stdoutR }
func (p *wasmProcess) PID() int              { return 0 }
func (p *wasmProcess) Done() <-chan struct{} { return p.done }

// Kill cancels the module's context and breaks its pipes so a module
// blocked in a host read or write returns.
func (p *wasmProcess) Kill() error {
	p.once.Do(func() {
		p.cancel()
		_ = p.stdinR.CloseWithError(io.ErrClosedPipe)
		_ = p.stdoutW.CloseWithError(io.ErrClosedPipe)
	})
	return nil
}
