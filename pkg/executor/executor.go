// Package executor runs external commands on behalf of the bring-up pipeline.
// Every invocation blocks until the process exits; stdout and stderr are always
// captured, and the Mode only decides what is echoed to the operator's console.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"

	lerrors "github.com/kinecosystem/localnet/pkg/errors"
	"mvdan.cc/sh/v3/shell"
)

// Mode selects which streams are echoed while a command runs.
type Mode int

const (
	// Stream echoes stdout and stderr.
	Stream Mode = iota
	// HideStdout echoes stderr only.
	HideStdout
	// HideStderr echoes stdout only.
	HideStderr
	// HideBoth echoes nothing.
	HideBoth
)

// Capture keeps stdout for parsing without echoing it; stderr stays visible.
const Capture = HideStdout

func (m Mode) String() string {
	switch m {
	case Stream:
		return "stream"
	case HideStdout:
		return "hide_stdout"
	case HideStderr:
		return "hide_stderr"
	case HideBoth:
		return "hide_both"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ErrCommandFailed is matched by every CommandError.
var ErrCommandFailed = errors.New("command failed")

// Command describes one external process invocation.
type Command struct {
	Args []string
	Dir  string
	Env  map[string]string
	Mode Mode
}

// String renders the command line the way an operator would type it.
// Values of Env are not included.
func (c Command) String() string {
	return strings.Join(c.Args, " ")
}

// Result is the outcome of a successful invocation.
type Result struct {
	Stdout string
	Stderr string
}

// CommandError reports a non-zero exit or a process that could not be started.
type CommandError struct {
	Args     []string
	Dir      string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q failed", strings.Join(e.Args, " "))
	if e.ExitCode > 0 {
		msg += fmt.Sprintf(" with exit code %d", e.ExitCode)
	}
	if e.Err != nil && e.ExitCode <= 0 {
		msg += ": " + e.Err.Error()
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += "\n" + stderr
	}
	return msg
}

func (e *CommandError) Is(target error) bool {
	return target == ErrCommandFailed
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Runner executes commands. The pipeline depends on this interface so tests can
// record the emitted command order without spawning processes.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner returns a runner echoing to the process's stdout and stderr.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run spawns cmd and waits for it to exit.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	if len(cmd.Args) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	if cmd.Dir != "" {
		info, err := os.Stat(cmd.Dir)
		if err != nil {
			return nil, lerrors.Wrapf(err, "working directory %s", cmd.Dir)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("working directory %s is not a directory", cmd.Dir)
		}
	}

	slog.Info("command_start", "command", cmd.String(), "dir", cmd.Dir, "mode", cmd.Mode.String())

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	c.Dir = cmd.Dir
	c.Stdout = r.sink(&stdout, r.Stdout, cmd.Mode == Stream || cmd.Mode == HideStderr)
	c.Stderr = r.sink(&stderr, r.Stderr, cmd.Mode == Stream || cmd.Mode == HideStdout)
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), EnvList(cmd.Env)...)
	}

	if err := c.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		slog.Error("command_failed", "command", cmd.String(), "exit_code", exitCode, "error", err)
		return nil, &CommandError{
			Args:     cmd.Args,
			Dir:      cmd.Dir,
			ExitCode: exitCode,
			Stderr:   stderr.String(),
			Err:      err,
		}
	}

	slog.Info("command_complete", "command", cmd.String())

	return &Result{Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

func (r *ExecRunner) sink(buf *bytes.Buffer, console io.Writer, echo bool) io.Writer {
	if echo && console != nil {
		return io.MultiWriter(buf, console)
	}
	return buf
}

// EnvList renders env as sorted KEY=VALUE pairs.
func EnvList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

// ParseLine splits a shell-style command line into arguments. Quotes are
// honoured; variables are left unexpanded.
func ParseLine(line string) ([]string, error) {
	fields, err := shell.Fields(line, func(name string) string {
		return "$" + name
	})
	if err != nil {
		return nil, lerrors.Wrapf(err, "parse command line %q", line)
	}
	return fields, nil
}
