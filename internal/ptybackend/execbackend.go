package ptybackend

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/agentcore/orchestrator/internal/coreerr"
	"golang.org/x/sys/unix"
)

// ExecBackend spawns children directly via os/exec, generalizing the
// teacher's exec.CommandContext-with-timeout discipline
// (internal/wezterm/ops.go's runCommand) onto a directly-owned
// process rather than a remote multiplexer pane. It is the default,
// portable backend and the one exercised by Session Core's tests.
type ExecBackend struct{}

func NewExecBackend() *ExecBackend { return &ExecBackend{} }

func (b *ExecBackend) Spawn(ctx context.Context, cmdline []string, cwd string, env []string, size Size) (Child, error) {
	if len(cmdline) == 0 {
		return nil, coreerr.New(coreerr.KindValidation, "spawn requires a non-empty command")
	}
	if !size.Valid() {
		return nil, coreerr.New(coreerr.KindValidation, "pty size must have non-zero rows and cols")
	}

	cmd := exec.Command(cmdline[0], cmdline[1:]...)
	cmd.Dir = cwd
	cmd.Env = env
	// New process group so Signal/Kill can reach any children the
	// spawned process itself forks, mirroring the multi-layered kill
	// discipline in the teacher's agents.Spawner.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindIO, "open stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindIO, "open stdout pipe", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, coreerr.Wrap(coreerr.KindIO, "start child process", err)
	}

	c := &execChild{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		size:   size,
		exited: make(chan struct{}),
	}
	go c.drain()
	return c, nil
}

type execChild struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	size   Size

	mu       sync.Mutex
	buf      bytes.Buffer
	waitErr  error
	exited   chan struct{}
	exitedOnce sync.Once
}

func (c *execChild) drain() {
	chunk := make([]byte, 4096)
	for {
		n, err := c.stdout.Read(chunk)
		if n > 0 {
			c.mu.Lock()
			c.buf.Write(chunk[:n])
			c.mu.Unlock()
		}
		if err != nil {
			break
		}
	}
	c.waitErr = c.cmd.Wait()
	c.exitedOnce.Do(func() { close(c.exited) })
}

func (c *execChild) Read(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf.Len() == 0 {
		return []byte{}, nil
	}
	out := make([]byte, c.buf.Len())
	copy(out, c.buf.Bytes())
	c.buf.Reset()
	return out, nil
}

func (c *execChild) Write(ctx context.Context, data []byte) error {
	if !c.Alive() {
		return coreerr.New(coreerr.KindState, "child process is not running")
	}
	_, err := c.stdin.Write(data)
	if err != nil {
		return coreerr.Wrap(coreerr.KindIO, "write to child stdin", err)
	}
	return nil
}

// Resize is a no-op for the exec backend: os/exec pipes have no
// terminal dimension concept without a real PTY device, which the
// retrieved example corpus never binds (no creack/pty equivalent is
// present). wezbackend's Resize likewise only records the requested
// size.
func (c *execChild) Resize(size Size) error {
	c.size = size
	return nil
}

func (c *execChild) Wait(ctx context.Context) error {
	select {
	case <-c.exited:
		return c.waitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *execChild) Signal(sig os.Signal) error {
	if c.cmd.Process == nil {
		return coreerr.New(coreerr.KindState, "child process was never started")
	}
	pgid, err := unix.Getpgid(c.cmd.Process.Pid)
	if err != nil {
		return c.cmd.Process.Signal(sig)
	}
	sysSig, ok := sig.(syscall.Signal)
	if !ok {
		return c.cmd.Process.Signal(sig)
	}
	return syscall.Kill(-pgid, sysSig)
}

func (c *execChild) Kill() error {
	return c.Signal(syscall.SIGKILL)
}

func (c *execChild) Alive() bool {
	select {
	case <-c.exited:
		return false
	default:
		return c.cmd.Process != nil
	}
}
