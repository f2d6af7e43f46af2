package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Command describes one external command invocation.
type Command struct {
	Dir     string
	Program string
	Args    []string
	// Env is appended to the current process environment.
	Env map[string]string
}

// Result holds the exit status of a completed command. Output goes to the
// sink passed to RunCommand, not here, so that capture and redaction stay in
// one place.
type Result struct {
	ExitCode int
}

// RunCommand executes a command, streaming combined stdout/stderr into sink.
// A non-zero exit status is returned as an error carrying the exit code.
func RunCommand(ctx context.Context, cmd Command, sink io.Writer) (Result, error) {
	if cmd.Program == "" {
		return Result{}, errors.New("command program cannot be empty")
	}

	c := exec.CommandContext(ctx, cmd.Program, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stdout = sink
	c.Stderr = sink
	if len(cmd.Env) > 0 {
		c.Env = os.Environ()
		for k, v := range cmd.Env {
			c.Env = append(c.Env, k+"="+v)
		}
	}

	err := c.Run()
	if err == nil {
		return Result{ExitCode: 0}, nil
	}

	if ctx.Err() != nil {
		return Result{ExitCode: -1}, fmt.Errorf("command %s terminated: %w", cmd.Program, ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		return Result{ExitCode: code}, fmt.Errorf("command %s exited with status %d", cmd.Program, code)
	}
	return Result{ExitCode: -1}, fmt.Errorf("starting command %s: %w", cmd.Program, err)
}
