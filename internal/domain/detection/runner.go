package detection

import (
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/mcp-scooter/toolbridge/internal/procutil"
)

// MaxOutputBytes caps how much output of a detection command is kept. Output
// past the cap is drained and dropped.
const MaxOutputBytes = 1 << 20

// Runner executes a command and returns its combined stdout and stderr.
// A non-nil error together with output means the command ran but failed.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands as real child processes.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cleanup := procutil.Setup(cmd)
	defer cleanup()
	// Grandchildren holding the pipes open must not stall the caller.
	cmd.WaitDelay = 500 * time.Millisecond

	out := &cappedBuffer{limit: MaxOutputBytes}
	cmd.Stdout = out
	cmd.Stderr = out
	err := cmd.Run()
	return out.Bytes(), err
}

// cappedBuffer keeps the first limit bytes written to it and reports every
// write as complete so the child never blocks on a full pipe.
type cappedBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - len(b.buf); room > 0 {
		b.buf = append(b.buf, p[:min(room, len(p))]...)
	}
	return len(p), nil
}

func (b *cappedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf
}
