package bridge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
)

// Runner executes one device-bridge command and returns its combined output.
// The exec implementation shells out to adb; tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
	RunInput(ctx context.Context, stdin io.Reader, args ...string) (string, error)
}

// ExecRunner runs the bridge executable via os/exec.
type ExecRunner struct {
	path string
}

// NewExecRunner creates a runner for the given adb path.
func NewExecRunner(path string) *ExecRunner {
	if path == "" {
		path = "adb"
	}
	return &ExecRunner{path: path}
}

// Run executes the command and returns combined stdout+stderr.
func (r *ExecRunner) Run(ctx context.Context, args ...string) (string, error) {
	return r.RunInput(ctx, nil, args...)
}

// RunInput executes the command with the given stdin payload.
func (r *ExecRunner) RunInput(ctx context.Context, stdin io.Reader, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.path, args...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if stdin != nil {
		cmd.Stdin = stdin
	}

	err := cmd.Run()
	if err != nil {
		return out.String(), fmt.Errorf("%s %v: %w", r.path, args, err)
	}
	return out.String(), nil
}

// Available probes whether the bridge executable can be started at all.
func (r *ExecRunner) Available() bool {
	_, err := exec.LookPath(r.path)
	return err == nil
}
