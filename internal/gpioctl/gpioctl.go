// Package gpioctl actuates and reads digital I/O lines by exec-wrapping
// the `pinctrl` CLI rather than binding the kernel GPIO character-device
// ABI directly.
//
// The daemon's wire-up uses it for the DUT power switch lines, the LED
// outputs and the two button inputs.
package gpioctl

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/shlex"
	"github.com/linux-automation/tacd/internal/errkind"
)

// Level is a digital line level.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// Line is a single named digital line, identified by the chip's `pinctrl`
// pin number (or, for test doubles, any opaque string).
type Line struct {
	ctl *Controller
	pin string
}

// Controller exec-wraps one `pinctrl`-compatible binary. SafeMode, when
// set, makes every Set a no-op, for demo/simulation runs and for tests.
type Controller struct {
	mu       sync.Mutex
	bin      string
	extraArg []string
	safeMode bool
	timeout  time.Duration

	// run is indirected as a func field for test-time substitution.
	run func(ctx context.Context, args ...string) (string, error)
}

// New builds a Controller. binWithArgs may include extra flags, e.g.
// "pinctrl --chip 0", and is tokenized with shlex the same way
// internal/execcli tokenizes the RAUC and systemd adapters' configured
// command lines.
func New(binWithArgs string) (*Controller, error) {
	parts, err := shlex.Split(binWithArgs)
	if err != nil || len(parts) == 0 {
		return nil, errkind.New(errkind.Internal, "gpioctl.New", "invalid command: "+binWithArgs)
	}
	c := &Controller{
		bin:      parts[0],
		extraArg: parts[1:],
		timeout:  2 * time.Second,
	}
	c.run = c.execRun
	return c, nil
}

// SetSafeMode disables all Set calls when enabled, for simulation/testing.
func (c *Controller) SetSafeMode(enabled bool) {
	c.mu.Lock()
	c.safeMode = enabled
	c.mu.Unlock()
}

func (c *Controller) execRun(ctx context.Context, args ...string) (string, error) {
	full := append(append([]string{}, c.extraArg...), args...)
	cmd := exec.CommandContext(ctx, c.bin, full...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", errkind.Wrap(errkind.HardwareUnavailable, "gpioctl: "+c.bin+" "+strings.Join(full, " "), err)
	}
	return string(out), nil
}

// Line returns a handle for pin. No I/O is performed.
func (c *Controller) Line(pin string) *Line {
	return &Line{ctl: c, pin: pin}
}

// Set drives the line to level. A no-op under SafeMode.
func (l *Line) Set(ctx context.Context, level Level) error {
	l.ctl.mu.Lock()
	safe := l.ctl.safeMode
	l.ctl.mu.Unlock()
	if safe {
		return nil
	}
	val := "dl"
	if level == High {
		val = "dh"
	}
	ctx, cancel := context.WithTimeout(ctx, l.ctl.timeout)
	defer cancel()
	_, err := l.ctl.run(ctx, "set", l.pin, val)
	return err
}

// Read returns the current level of the line.
func (l *Line) Read(ctx context.Context) (Level, error) {
	ctx, cancel := context.WithTimeout(ctx, l.ctl.timeout)
	defer cancel()
	out, err := l.ctl.run(ctx, "lev", l.pin)
	if err != nil {
		return Low, err
	}
	v, perr := strconv.Atoi(strings.TrimSpace(out))
	if perr != nil {
		return Low, errkind.Wrap(errkind.HardwareUnavailable, "gpioctl: parse level for "+l.pin, perr)
	}
	return v != 0, nil
}

// Float tri-states the line, used when the DUT power state is OffFloating.
func (l *Line) Float(ctx context.Context) error {
	l.ctl.mu.Lock()
	safe := l.ctl.safeMode
	l.ctl.mu.Unlock()
	if safe {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, l.ctl.timeout)
	defer cancel()
	_, err := l.ctl.run(ctx, "set", l.pin, "ip") // input, i.e. high-Z
	return err
}

// ValidateStartupPins checks that every named pin responds to a read:
// missing hardware in non-stub mode is a fatal wire-up error.
func (c *Controller) ValidateStartupPins(ctx context.Context, pins []string) error {
	for _, p := range pins {
		if _, err := c.Line(p).Read(ctx); err != nil {
			return fmt.Errorf("gpioctl: startup validation failed for pin %s: %w", p, err)
		}
	}
	return nil
}
