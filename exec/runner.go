package exec

import (
	"io"
	"os"
	osexec "os/exec"
	"strings"
	"time"

	"github.com/bitfield/script"
	"github.com/pkg/errors"
	"mvdan.cc/sh/v3/shell"

	"github.com/vcnkl/watchrun/models"
)

var errEmptyCommand = errors.New("empty command")

type RunnerOptions struct {
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// Runner starts a command directly, without a shell, and buffers everything
// it writes to stdout until it exits.
type Runner struct {
	env    []string
	stdout io.Writer
	stderr io.Writer
}

func NewRunner(opts *RunnerOptions) *Runner {
	if opts == nil {
		opts = &RunnerOptions{}
	}

	r := &Runner{
		env:    opts.Env,
		stdout: opts.Stdout,
		stderr: opts.Stderr,
	}
	if r.stdout == nil {
		r.stdout = os.Stdout
	}
	if r.stderr == nil {
		r.stderr = os.Stderr
	}

	return r
}

// Run blocks until the command exits. Captured stdout is written to the
// console even when the command exits non-zero.
func (r *Runner) Run(command string) (*models.RunResult, error) {
	start := time.Now()
	result := &models.RunResult{Command: command}

	args, err := r.splitCommand(command)
	if err != nil {
		return result, &LaunchError{Command: command, Err: err}
	}

	pipe := script.NewPipe().WithEnv(r.env).WithStderr(r.stderr).Exec(quoteArgs(args))
	output, err := pipe.String()
	result.Output = output
	result.Duration = time.Since(start)

	if err != nil {
		var exitErr *osexec.ExitError
		if !errors.As(err, &exitErr) {
			return result, &LaunchError{Command: command, Err: err}
		}
		result.ExitCode = exitErr.ExitCode()
	}

	if _, werr := io.WriteString(r.stdout, output); werr != nil {
		return result, errors.Wrap(werr, "failed to write command output")
	}

	if result.ExitCode != 0 {
		return result, &ExitError{Command: command, ExitCode: result.ExitCode, Err: err}
	}

	return result, nil
}

// splitCommand turns the command line into argv. A command naming an existing
// file is used as is, so paths containing spaces need no quoting. Otherwise
// the line is split with shell quoting rules and $VAR expanded from the
// runner's environment.
func (r *Runner) splitCommand(command string) ([]string, error) {
	if strings.TrimSpace(command) == "" {
		return nil, errEmptyCommand
	}

	if info, err := os.Stat(command); err == nil && !info.IsDir() {
		return []string{command}, nil
	}

	args, err := shell.Fields(command, r.lookupEnv)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse command")
	}
	if len(args) == 0 {
		return nil, errEmptyCommand
	}

	return args, nil
}

func (r *Runner) lookupEnv(name string) string {
	if r.env == nil {
		return os.Getenv(name)
	}

	prefix := name + "="
	value := ""
	for _, e := range r.env {
		if strings.HasPrefix(e, prefix) {
			value = e[len(prefix):]
		}
	}
	return value
}

// quoteArgs single-quotes every argument so script's own split keeps them
// verbatim and expands nothing a second time.
func quoteArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = shellQuote(arg)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\"'\"'") + "'"
}
