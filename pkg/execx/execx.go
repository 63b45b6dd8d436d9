// Package execx runs external conversion tools as subprocesses with
// bounded lifetimes and typed failures. Stdout and stderr are drained
// concurrently with the stdin write, so a tool producing output while
// still reading its input can never deadlock on a full pipe.
package execx

import (
	"bytes"
	"context"
	goerrors "errors"
	"io"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/semwebtools/rdfproxy/pkg/errors"
)

// stderrExcerptLimit bounds how much captured stderr a failure carries.
const stderrExcerptLimit = 4096

// Command describes one subprocess invocation.
type Command struct {
	// Path is the executable name or path; names are resolved via PATH.
	Path string
	Args []string

	// Dir is the working directory; empty means inherit.
	Dir string

	// Stdin is streamed to the process; nil means no input.
	Stdin io.Reader

	// Timeout bounds the process lifetime. Zero means no timeout beyond
	// the caller's context.
	Timeout time.Duration
}

// Result captures the output of a completed process.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Run executes the command and waits for it to finish.
//
// Failure modes map to distinct error codes:
//   - ErrCodeSpawnFailed: the process could not be started at all
//   - ErrCodeTimeout: the timeout or the caller's context expired;
//     the process is killed
//   - ErrCodeToolFailed: the process ran but exited non-zero; the error
//     message carries the exit code and a stderr excerpt
func Run(ctx context.Context, cmd Command) (Result, error) {
	if cmd.Path == "" {
		return Result{}, errors.New(errors.ErrCodeSpawnFailed, "empty command path")
	}
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stdin = cmd.Stdin

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	if err == nil {
		return res, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, errors.Wrap(errors.ErrCodeTimeout, ctxErr,
			"%s killed after %s", cmd.Path, res.Duration.Round(time.Millisecond))
	}
	var exitErr *exec.ExitError
	if goerrors.As(err, &exitErr) {
		return res, errors.New(errors.ErrCodeToolFailed,
			"%s exited with code %d: %s", cmd.Path, exitErr.ExitCode(), stderrExcerpt(res.Stderr))
	}
	return res, errors.Wrap(errors.ErrCodeSpawnFailed, err, "starting %s", cmd.Path)
}

// LookTool resolves an executable name via PATH. A miss is a spawn
// failure: the tool is not installed where the process can see it.
func LookTool(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeSpawnFailed, err, "tool %q not found in PATH", name)
	}
	return path, nil
}

// ScratchPath returns a collision-free file path under dir for tools
// that insist on file arguments instead of pipes.
func ScratchPath(dir, ext string) string {
	name := uuid.NewString()
	if ext != "" {
		name += "." + ext
	}
	return filepath.Join(dir, name)
}

func stderrExcerpt(stderr []byte) string {
	s := bytes.TrimSpace(stderr)
	if len(s) > stderrExcerptLimit {
		s = s[:stderrExcerptLimit]
	}
	if len(s) == 0 {
		return "(no stderr output)"
	}
	return string(s)
}
