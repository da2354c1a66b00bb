package proc

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/specialistvlad/anda/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(out *testutil.SafeBuffer, usePTY bool) *Executor {
	return &Executor{Out: out, UsePTY: usePTY, GracePeriod: time.Second}
}

func TestRun_TagsBothStreams(t *testing.T) {
	// Arrange
	out := &testutil.SafeBuffer{}
	e := newTestExecutor(out, false)
	cmd := exec.Command("sh", "-c", "echo out; echo err >&2; printf tail")

	// Act
	err := e.Run(context.Background(), cmd)

	// Assert
	require.NoError(t, err)
	assert.Contains(t, out.String(), "sh\t| out\n")
	assert.Contains(t, out.String(), "sh\t| err\n")
	assert.Contains(t, out.String(), "sh\t| tail\n")
}

func TestRun_SilentStreamDoesNotBlockChattyOne(t *testing.T) {
	out := &testutil.SafeBuffer{}
	e := newTestExecutor(out, false)
	cmd := exec.Command("sh", "-c", `i=0; while [ $i -lt 2000 ]; do echo "line $i"; i=$((i+1)); done`)

	require.NoError(t, e.Run(context.Background(), cmd))
	assert.Contains(t, out.String(), "sh\t| line 1999\n")
}

func TestRun_BackgroundChildDoesNotHoldTheRun(t *testing.T) {
	out := &testutil.SafeBuffer{}
	e := newTestExecutor(out, false)
	e.DrainTimeout = 100 * time.Millisecond
	cmd := exec.Command("sh", "-c", "sleep 3 & echo hi")

	start := time.Now()
	require.NoError(t, e.Run(context.Background(), cmd))

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Contains(t, out.String(), "sh\t| hi\n")
}

func TestRun_PseudoTerminal(t *testing.T) {
	master, tty, err := openPTY()
	if err != nil {
		t.Skipf("no pty available: %v", err)
	}
	master.Close()
	tty.Close()

	out := &testutil.SafeBuffer{}
	e := newTestExecutor(out, true)
	cmd := exec.Command("sh", "-c", "if [ -t 1 ]; then echo tty; else echo notty; fi")

	require.NoError(t, e.Run(context.Background(), cmd))
	assert.Contains(t, out.String(), "sh\t| tty\n")
}

func TestRun_NonZeroExit(t *testing.T) {
	out := &testutil.SafeBuffer{}
	e := newTestExecutor(out, false)

	err := e.Run(context.Background(), exec.Command("sh", "-c", "exit 3"))

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Status)
	assert.Equal(t, "sh", exitErr.Program)
	assert.Empty(t, exitErr.Hint)
	assert.Contains(t, err.Error(), "sh -c 'exit 3'")
	assert.Contains(t, err.Error(), "status 3")
}

func TestRun_MissingProgramSuggestsInstall(t *testing.T) {
	out := &testutil.SafeBuffer{}
	e := newTestExecutor(out, false)

	err := e.Run(context.Background(), exec.Command("anda-no-such-tool", "--version"))

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 127, exitErr.Status)
	assert.Contains(t, err.Error(), "you may need to install `anda-no-such-tool`")
}

func TestRun_CancelTerminatesChild(t *testing.T) {
	out := &testutil.SafeBuffer{}
	e := newTestExecutor(out, false)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	start := time.Now()
	err := e.Run(ctx, exec.Command("sh", "-c", "echo started; sleep 30"))

	assert.True(t, errors.Is(err, ErrCancelled), "got %v", err)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRun_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cmd := exec.Command("sh", "-c", "echo never")

	err := newTestExecutor(&testutil.SafeBuffer{}, false).Run(ctx, cmd)

	assert.ErrorIs(t, err, ErrCancelled)
	assert.Nil(t, cmd.Process)
}

func TestCmdline_QuotesArguments(t *testing.T) {
	cmd := exec.Command("mock", "-D", "dist .fc40", "--spec", "a.spec")
	assert.Equal(t, "mock -D 'dist .fc40' --spec a.spec", Cmdline(cmd))
}

func TestColorEnabled_NonTerminal(t *testing.T) {
	assert.False(t, ColorEnabled(&testutil.SafeBuffer{}))
}
