// Package proc runs external build tools, streaming their output line by
// line with a tag naming the program.
package proc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/kballard/go-shellquote"
	"github.com/mattn/go-isatty"
	"github.com/specialistvlad/anda/internal/ctxlog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// DefaultGracePeriod is how long a cancelled command may take to exit after
// SIGTERM before it is killed.
const DefaultGracePeriod = 5 * time.Second

// DefaultDrainTimeout bounds how long output is still read after the command
// exited. Background processes that inherited its output are not waited for.
const DefaultDrainTimeout = 500 * time.Millisecond

// Runner executes a prepared command to completion.
type Runner interface {
	Run(ctx context.Context, cmd *exec.Cmd) error
}

// Executor is the Runner used outside of tests.
type Executor struct {
	Out          io.Writer
	UsePTY       bool
	Color        bool
	GracePeriod  time.Duration
	DrainTimeout time.Duration

	mu sync.Mutex
}

// NewExecutor creates an Executor writing tagged output to out. Colors are
// enabled when out is a terminal and NO_COLOR is unset.
func NewExecutor(out io.Writer, usePTY bool) *Executor {
	return &Executor{
		Out:          out,
		UsePTY:       usePTY,
		Color:        ColorEnabled(out),
		GracePeriod:  DefaultGracePeriod,
		DrainTimeout: DefaultDrainTimeout,
	}
}

// ColorEnabled reports whether colored output should be written to w.
func ColorEnabled(w io.Writer) bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ShellCommand returns a command running script through sh -c.
func ShellCommand(script string) *exec.Cmd {
	return exec.Command("sh", "-c", script)
}

// Cmdline renders the command line of cmd, shell-quoted.
func Cmdline(cmd *exec.Cmd) string {
	return shellquote.Join(cmd.Args...)
}

type stream int

const (
	streamStdout stream = iota
	streamStderr
)

type channel struct {
	read  *os.File
	write *os.File
}

func (e *Executor) open() (channel, error) {
	if e.UsePTY {
		if master, tty, err := openPTY(); err == nil {
			return channel{read: master, write: tty}, nil
		}
	}
	r, w, err := os.Pipe()
	if err != nil {
		return channel{}, err
	}
	return channel{read: r, write: w}, nil
}

// Run starts cmd with stdout and stderr attached to terminals (or pipes),
// prints every line it produces and waits for it to exit. If ctx is done
// first the process group is sent SIGTERM, then SIGKILL after the grace
// period, and an error matching ErrCancelled is returned.
func (e *Executor) Run(ctx context.Context, cmd *exec.Cmd) error {
	logger := ctxlog.FromContext(ctx)
	cmdline := Cmdline(cmd)
	prog := programName(cmd)
	logger.Debug("Running command.", "cmd", cmdline, "dir", cmd.Dir)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s", ErrCancelled, cmdline)
	}

	stdout, err := e.open()
	if err != nil {
		return fmt.Errorf("failed to allocate output for %s: %w", cmdline, err)
	}
	stderr, err := e.open()
	if err != nil {
		stdout.read.Close()
		stdout.write.Close()
		return fmt.Errorf("failed to allocate output for %s: %w", cmdline, err)
	}
	closeRead := func() {
		stdout.read.Close()
		stderr.read.Close()
	}

	cmd.Stdout = stdout.write
	cmd.Stderr = stderr.write
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true

	startErr := cmd.Start()
	stdout.write.Close()
	stderr.write.Close()
	if startErr != nil {
		closeRead()
		if errors.Is(startErr, exec.ErrNotFound) || errors.Is(startErr, os.ErrNotExist) {
			return newExitError(cmdline, prog, 127, startErr)
		}
		return fmt.Errorf("failed to start %s: %w", cmdline, startErr)
	}

	var g errgroup.Group
	g.Go(func() error { return e.drain(prog, streamStdout, stdout.read) })
	g.Go(func() error { return e.drain(prog, streamStderr, stderr.read) })
	drained := make(chan error, 1)
	go func() { drained <- g.Wait() }()

	done := make(chan error, 1)
	go func() {
		waitErr := cmd.Wait()
		var readErr error
		select {
		case readErr = <-drained:
		case <-time.After(e.drainTimeout()):
			logger.Debug("Output still open after exit, closing it.", "cmd", cmdline)
			closeRead()
			readErr = <-drained
		}
		if waitErr == nil {
			waitErr = readErr
		}
		done <- waitErr
	}()

	select {
	case err := <-done:
		closeRead()
		return e.exitStatus(cmdline, prog, err)
	case <-ctx.Done():
	}

	pid := cmd.Process.Pid
	logger.Warn("Interrupt received, terminating command.", "cmd", cmdline, "pid", pid)
	_ = unix.Kill(-pid, unix.SIGTERM)

	grace := e.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	select {
	case <-done:
	case <-time.After(grace):
		logger.Warn("Command did not exit in time, killing it.", "cmd", cmdline, "grace", grace)
		_ = unix.Kill(-pid, unix.SIGKILL)
		closeRead()
		<-done
	}
	closeRead()
	return fmt.Errorf("%w: %s", ErrCancelled, cmdline)
}

func (e *Executor) drainTimeout() time.Duration {
	if e.DrainTimeout <= 0 {
		return DefaultDrainTimeout
	}
	return e.DrainTimeout
}

func (e *Executor) exitStatus(cmdline, prog string, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return newExitError(cmdline, prog, exitErr.ExitCode(), err)
	}
	return fmt.Errorf("command %s: %w", cmdline, err)
}

// drain prints r line by line until the writing side is gone. A pty reports
// that as EIO.
func (e *Executor) drain(prog string, s stream, r io.Reader) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			e.printLine(prog, s, strings.TrimRight(line, "\r\n"))
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

func (e *Executor) printLine(prog string, s stream, line string) {
	tag := prog
	if e.Color {
		if s == streamStderr {
			tag = color.Yellow.Sprint(prog)
		} else {
			tag = color.Cyan.Sprint(prog)
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fmt.Fprintf(e.Out, "%s\t| %s\n", tag, line)
}

func programName(cmd *exec.Cmd) string {
	if len(cmd.Args) > 0 {
		return filepath.Base(cmd.Args[0])
	}
	return filepath.Base(cmd.Path)
}
