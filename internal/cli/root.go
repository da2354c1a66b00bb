package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/specialistvlad/anda/internal/app"
	"github.com/specialistvlad/anda/internal/builder"
	"github.com/specialistvlad/anda/internal/hcl_adapter"
	"github.com/specialistvlad/anda/internal/proc"
)

// Globals are the flags shared by every command.
type Globals struct {
	Config    string `short:"c" env:"ANDA_CONFIG" default:"anda.hcl" help:"Path to the anda manifest." placeholder:"PATH"`
	TargetDir string `short:"t" env:"TARGET_DIR" default:"anda-build" help:"Output directory for built packages." placeholder:"DIR"`
	LogLevel  string `enum:"debug,info,warn,error" default:"info" help:"Log level (${enum})."`
	LogFormat string `enum:"text,json" default:"text" help:"Log format (${enum})."`
	NoColor   bool   `help:"Disable colored output."`
}

// Root is the anda command tree.
type Root struct {
	Globals

	Build   BuildCmd   `cmd:"" help:"Build a project."`
	List    ListCmd    `cmd:"" help:"List all projects in the manifest."`
	Clean   CleanCmd   `cmd:"" help:"Remove the build directory."`
	Init    InitCmd    `cmd:"" help:"Print a manifest for the spec files and Dockerfiles found in a directory."`
	CI      CICmd      `cmd:"" name:"ci" help:"Print the build matrix for GitHub Actions."`
	Update  UpdateCmd  `cmd:"" help:"Run the update script of every project."`
	Run     RunCmd     `cmd:"" help:"Run scripts."`
	Publish PublishCmd `cmd:"" help:"Upload the build directory to S3-compatible storage."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// Streams are the standard streams of one invocation.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdStreams returns the process streams.
func StdStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// exitCode carries the status passed to kong's exit function, so that help
// and version output return from Execute instead of exiting the process.
type exitCode int

// Execute parses args, builds the application and runs the selected
// command. The returned error, if any, is an *ExitError.
func Execute(args []string, streams Streams) (err error) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var root Root
	parser, err := kong.New(&root,
		kong.Name("anda"),
		kong.Description("Andaman builds packages in various formats (RPM, Docker, Podman) from an anda.hcl project manifest."),
		kong.Writers(streams.Out, streams.Err),
		kong.Exit(func(code int) { panic(exitCode(code)) }),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.Bind(&streams),
	)
	if err != nil {
		return exitError(err)
	}

	defer func() {
		if r := recover(); r != nil {
			code, ok := r.(exitCode)
			if !ok {
				panic(r)
			}
			if code != 0 {
				err = &ExitError{Code: int(code)}
			}
		}
	}()

	kctx, err := parser.Parse(args)
	if err != nil {
		return exitError(err)
	}

	cfg, err := app.NewConfig(app.Config{
		ManifestPath: root.Config,
		TargetDir:    root.TargetDir,
		LogLevel:     root.LogLevel,
		LogFormat:    root.LogFormat,
		Color:        !root.NoColor && proc.ColorEnabled(streams.Out),
		UsePTY:       !root.Build.NoPTY,
	})
	if err != nil {
		return usageError(err.Error())
	}

	a := app.NewApp(streams.Out, streams.Err, cfg, hcl_adapter.NewLoader())
	defer a.Close()

	return exitError(kctx.Run(a))
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (c *VersionCmd) Run(streams *Streams) error {
	fmt.Fprintf(streams.Out, "anda %s\n", builder.Version)
	return nil
}

// confirm asks question on the error stream and reads the answer from the
// input stream. An empty answer means yes.
func confirm(streams *Streams) app.ConfirmFunc {
	in := bufio.NewReader(streams.In)
	return func(question string) bool {
		fmt.Fprintf(streams.Err, "%s [Y/n] ", question)
		answer, _ := in.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "", "y", "yes":
			return true
		default:
			return false
		}
	}
}
