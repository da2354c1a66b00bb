package testutil

import (
	"context"
	"os/exec"
	"sync"
)

// FakeRunner records commands instead of executing them. OnRun, if set, is
// called for every command and its error is returned from Run.
type FakeRunner struct {
	OnRun func(cmd *exec.Cmd) error

	mu       sync.Mutex
	commands [][]string
}

// Run implements proc.Runner.
func (f *FakeRunner) Run(_ context.Context, cmd *exec.Cmd) error {
	f.mu.Lock()
	f.commands = append(f.commands, append([]string(nil), cmd.Args...))
	f.mu.Unlock()
	if f.OnRun != nil {
		return f.OnRun(cmd)
	}
	return nil
}

// Commands returns the argv of every recorded command, in order.
func (f *FakeRunner) Commands() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.commands...)
}

// Programs returns argv[0] of every recorded command, in order.
func (f *FakeRunner) Programs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.commands))
	for _, c := range f.commands {
		out = append(out, c[0])
	}
	return out
}
