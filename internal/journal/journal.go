// Package journal tails the systemd journal for the SSE endpoint:
// exec-wraps `journalctl -o json --follow`, the
// same external-CLI idiom internal/gpioctl and internal/i2cbus use for
// hardware no Go library binds natively, applied here to the journal
// API instead of a bus.
package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"os/exec"
	"strconv"

	"github.com/linux-automation/tacd/internal/errkind"
)

// Tailer exec-wraps journalctl.
type Tailer struct {
	bin string

	// newCmd is indirected for test-time substitution, the same func-field
	// pattern internal/gpioctl uses for its run field.
	newCmd func(ctx context.Context, historyLen int, unit string) *exec.Cmd
}

func New(bin string) *Tailer {
	if bin == "" {
		bin = "journalctl"
	}
	t := &Tailer{bin: bin}
	t.newCmd = t.journalctlCmd
	return t
}

func (t *Tailer) journalctlCmd(ctx context.Context, historyLen int, unit string) *exec.Cmd {
	args := []string{"-o", "json", "--follow", "-n", strconv.Itoa(historyLen)}
	if unit != "" {
		args = append(args, "-u", unit)
	}
	return exec.CommandContext(ctx, t.bin, args...)
}

// Stream runs journalctl with historyLen lines of backlog, optionally
// restricted to unit, and calls onEntry once per journal line until ctx
// is cancelled or the process exits. Each line from `journalctl -o json`
// already satisfies the wire contract ("at least MESSAGE and one of
// _SOURCE_REALTIME_TIMESTAMP/SYSLOG_TIMESTAMP") verbatim, so entries are
// forwarded as raw JSON without field-by-field decoding.
func (t *Tailer) Stream(ctx context.Context, historyLen int, unit string, onEntry func(json.RawMessage)) error {
	cmd := t.newCmd(ctx, historyLen, unit)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errkind.Wrap(errkind.Internal, "journal.Stream", err)
	}
	if err := cmd.Start(); err != nil {
		return errkind.Wrap(errkind.HardwareUnavailable, "journal.Stream", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		onEntry(json.RawMessage(cp))
	}

	_ = cmd.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}
