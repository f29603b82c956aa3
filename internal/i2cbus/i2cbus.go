// Package i2cbus provides a write-then-read I2C transaction by
// exec-wrapping the `i2ctransfer` CLI from i2c-tools, following the same
// exec-wrapped-hardware-tool idiom as internal/gpioctl.
package i2cbus

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/linux-automation/tacd/internal/errkind"
)

// Bus matches the minimal write-then-read transaction shape common I2C
// driver interfaces expose, so drivers written against it (internal/tactemp)
// port over with only an import swap.
type Bus interface {
	Tx(addr uint16, w, r []byte) error
}

// Controller is a Bus backed by `i2ctransfer` against a given Linux I2C
// bus number (e.g. /dev/i2c-1 -> busNum=1).
type Controller struct {
	busNum  int
	bin     string
	timeout time.Duration
}

func New(busNum int) *Controller {
	return &Controller{busNum: busNum, bin: "i2ctransfer", timeout: 500 * time.Millisecond}
}

// Tx performs a repeated-start write-then-read when both w and r are
// non-empty, a write-only or read-only transfer otherwise.
func (c *Controller) Tx(addr uint16, w, r []byte) error {
	args := []string{"-y", strconv.Itoa(c.busNum)}

	if len(w) > 0 {
		seg := fmt.Sprintf("w%d@0x%02x", len(w), addr)
		args = append(args, seg)
		for _, b := range w {
			args = append(args, fmt.Sprintf("0x%02x", b))
		}
	}
	if len(r) > 0 {
		args = append(args, fmt.Sprintf("r%d@0x%02x", len(r), addr))
	}
	if len(w) == 0 && len(r) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, c.bin, args...).CombinedOutput()
	if err != nil {
		return errkind.Wrap(errkind.HardwareUnavailable, "i2cbus: "+c.bin+" "+strings.Join(args, " "), err)
	}
	if len(r) == 0 {
		return nil
	}

	fields := strings.Fields(string(out))
	if len(fields) < len(r) {
		return errkind.New(errkind.HardwareUnavailable, "i2cbus: short read", string(out))
	}
	fields = fields[len(fields)-len(r):]
	for i, f := range fields {
		v, perr := strconv.ParseUint(strings.TrimPrefix(f, "0x"), 16, 8)
		if perr != nil {
			return errkind.Wrap(errkind.HardwareUnavailable, "i2cbus: parse reply byte", perr)
		}
		r[i] = byte(v)
	}
	return nil
}
