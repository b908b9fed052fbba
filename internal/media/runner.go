package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"
)

// Command is one invocation of an external media tool
type Command struct {
	Binary string
	Args   []string
	Dir    string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Binary + " " + strings.Join(c.Args, " "))
}

// Result holds the output and status of a finished command
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Runner executes external commands. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct {
	// GracePeriod is how long a cancelled process gets between the interrupt
	// and the kill.
	GracePeriod time.Duration
}

// ExitError reports a non-zero exit from a media tool
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.ExitCode, e.Stderr)
}

// Run implements Runner
func (r ExecRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Binary == "" {
		return nil, errors.New("media: binary is required")
	}
	grace := r.GracePeriod
	if grace == 0 {
		grace = 5 * time.Second
	}

	c := exec.CommandContext(ctx, cmd.Binary, cmd.Args...)
	c.Dir = cmd.Dir
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	c.Cancel = func() error { return interrupt(c) }
	c.WaitDelay = grace

	start := time.Now()
	err := c.Run()
	result := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: -1,
		Duration: time.Since(start),
	}
	if c.ProcessState != nil {
		result.ExitCode = c.ProcessState.ExitCode()
	}

	if err != nil {
		if ctx.Err() != nil {
			return result, fmt.Errorf("%s: killed by context: %w", cmd.Binary, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return result, &ExitError{
				Command:  cmd.Binary,
				ExitCode: result.ExitCode,
				Stderr:   tail(stderr.String(), 512),
			}
		}
		return result, fmt.Errorf("run %s: %w", cmd.Binary, err)
	}
	return result, nil
}

// tail keeps at most the last n bytes of s, cut on a rune boundary; ffmpeg puts the actual error at the end
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	i := len(s) - n
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return "..." + s[i:]
}
