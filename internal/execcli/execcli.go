// Package execcli provides the shared helper the exec-wrapping
// collaborator adapters (internal/rauc, internal/svcbridge) use to invoke
// a configurable CLI tool: tokenize a
// config-supplied "binary plus flags" string with shlex, then run it with
// a bounded timeout and capture stdout.
package execcli

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/google/shlex"
	"github.com/linux-automation/tacd/internal/errkind"
)

// Runner exec-wraps one CLI tool.
type Runner struct {
	bin      string
	extraArg []string
	Timeout  time.Duration

	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// New tokenizes binWithArgs (e.g. "rauc --system-conf /etc/x") via shlex,
// the same way internal/gpioctl does for digital-line control tools.
func New(binWithArgs string) (*Runner, error) {
	parts, err := shlex.Split(binWithArgs)
	if err != nil || len(parts) == 0 {
		return nil, errkind.New(errkind.Internal, "execcli.New", "invalid command: "+binWithArgs)
	}
	r := &Runner{bin: parts[0], extraArg: parts[1:], Timeout: 5 * time.Second}
	r.run = r.execRun
	return r, nil
}

func (r *Runner) execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	full := append(append([]string{}, r.extraArg...), args...)
	_ = name
	cctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, r.bin, full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errkind.Wrap(errkind.HardwareUnavailable, "execcli.Run["+r.bin+"]", err)
	}
	return stdout.Bytes(), nil
}

// Run executes the tool with args, returning captured stdout.
func (r *Runner) Run(ctx context.Context, args ...string) ([]byte, error) {
	return r.run(ctx, r.bin, args...)
}
