// Package adc abstracts the analog inputs the measurement pipeline and
// DUT power supervisor sample.
//
// No ADC driver library is available, and the supervisor's 1 kHz hot
// path cannot afford to exec a CLI per sample the way internal/gpioctl
// does for infrequent digital actuation. The standard Linux IIO sysfs
// ABI (raw counts + scale files under /sys/bus/iio/devices/iio:deviceN/)
// is read directly with stdlib os.ReadFile: it is the kernel's own ABI,
// not a concern any wrapper library covers.
package adc

import (
	"os"
	"strconv"
	"strings"

	"github.com/linux-automation/tacd/internal/errkind"
)

// Channel yields successive voltage/current readings in SI units.
type Channel interface {
	Read() (float64, error)
}

// IIOChannel reads one IIO sysfs raw/scale pair. Value = (raw + offset) * scale,
// with offset 0 when the channel has no offset file.
type IIOChannel struct {
	rawPath   string
	scale     float64
	offsetRaw float64
}

// NewIIOChannel builds a channel from a device directory and channel
// name, e.g. dir="/sys/bus/iio/devices/iio:device0", name="voltage0".
// scale and offset are read once at construction time (both are static
// for a given ADC channel on this hardware).
func NewIIOChannel(dir, name string) (*IIOChannel, error) {
	scaleRaw, err := os.ReadFile(dir + "/in_" + name + "_scale")
	if err != nil {
		return nil, errkind.Wrap(errkind.HardwareUnavailable, "adc: read scale for "+name, err)
	}
	scale, err := strconv.ParseFloat(strings.TrimSpace(string(scaleRaw)), 64)
	if err != nil {
		return nil, errkind.Wrap(errkind.HardwareUnavailable, "adc: parse scale for "+name, err)
	}

	offset := 0.0
	if offRaw, err := os.ReadFile(dir + "/in_" + name + "_offset"); err == nil {
		offset, _ = strconv.ParseFloat(strings.TrimSpace(string(offRaw)), 64)
	}

	return &IIOChannel{
		rawPath:   dir + "/in_" + name + "_raw",
		scale:     scale,
		offsetRaw: offset,
	}, nil
}

func (c *IIOChannel) Read() (float64, error) {
	raw, err := os.ReadFile(c.rawPath)
	if err != nil {
		return 0, errkind.Wrap(errkind.HardwareUnavailable, "adc: read raw", err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0, errkind.Wrap(errkind.HardwareUnavailable, "adc: parse raw", err)
	}
	return (v + c.offsetRaw) * c.scale, nil
}

// Fixed is a constant-value channel, used by tests and the demo-mode
// wire-up in place of real hardware.
type Fixed struct {
	Value float64
	Err   error
}

func (f *Fixed) Read() (float64, error) { return f.Value, f.Err }

// Func adapts a plain function to a Channel, used by tests that need a
// scripted sequence of readings.
type Func func() (float64, error)

func (f Func) Read() (float64, error) { return f() }
