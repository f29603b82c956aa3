// Package tactemp reads the TAC's onboard AHT20 temperature/humidity
// sensor and publishes a board-temperature Measurement.
//
// The low-level driver below uses the sensor's standard two-phase
// Trigger/Collect protocol and fixed-point decoding, built directly on
// internal/i2cbus.Bus (an exec-wrapped i2ctransfer bus) since this is a
// hosted daemon, not firmware running against a native I2C peripheral.
package tactemp

import (
	"errors"
	"time"

	"github.com/linux-automation/tacd/internal/i2cbus"
)

// Address is the AHT20's fixed I2C address.
const Address = 0x38

const (
	cmdTrigger    = 0xAC
	cmdInitialize = 0xBE
	cmdSoftReset  = 0xBA
	cmdStatus     = 0x71

	statusBusy       = 0x80
	statusCalibrated = 0x08
)

var (
	ErrTimeout  = errors.New("aht20: timeout")
	ErrNotReady = errors.New("aht20: not ready")
)

// Config controls non-hardware behaviour.
type Config struct {
	Address        uint16
	PollInterval   time.Duration
	CollectTimeout time.Duration
}

// Device wraps an I2C connection to an AHT20 sensor.
type Device struct {
	bus     i2cbus.Bus
	Address uint16
	cfg     Config
	buf     [7]byte
}

func NewDevice(bus i2cbus.Bus) Device {
	return Device{bus: bus, Address: Address}
}

func (d *Device) Configure(cfgs ...Config) {
	if len(cfgs) > 0 {
		d.cfg = cfgs[0]
	}
	if d.cfg.Address == 0 {
		d.cfg.Address = Address
	}
	if d.cfg.PollInterval <= 0 {
		d.cfg.PollInterval = 15 * time.Millisecond
	}
	if d.cfg.CollectTimeout <= 0 {
		d.cfg.CollectTimeout = 250 * time.Millisecond
	}
	d.Address = d.cfg.Address

	st, _ := d.Status()
	if st&statusCalibrated != 0 {
		return
	}
	_ = d.bus.Tx(d.Address, []byte{cmdInitialize, 0x08, 0x00}, nil)
	time.Sleep(10 * time.Millisecond)
}

func (d *Device) Reset() {
	_ = d.bus.Tx(d.Address, []byte{cmdSoftReset}, nil)
}

func (d *Device) Status() (byte, error) {
	data := []byte{0}
	if err := d.bus.Tx(d.Address, []byte{cmdStatus}, data); err != nil {
		return 0, err
	}
	return data[0], nil
}

func (d *Device) Trigger() error {
	if d.cfg.PollInterval == 0 {
		d.Configure()
	}
	return d.bus.Tx(d.Address, []byte{cmdTrigger, 0x33, 0x00}, nil)
}

// Sample holds one raw reading.
type Sample struct {
	RawHumidity uint32
	RawTemp     uint32
}

func (d *Device) Collect(out *Sample) error {
	data := d.buf[:]
	if err := d.bus.Tx(d.Address, nil, data); err != nil {
		return err
	}
	if (data[0]&statusCalibrated) == 0 || (data[0]&statusBusy) != 0 {
		return ErrNotReady
	}
	hraw := (uint32(data[1]) << 12) | (uint32(data[2]) << 4) | (uint32(data[3]) >> 4)
	traw := (uint32(data[3]&0x0F) << 16) | (uint32(data[4]) << 8) | uint32(data[5])
	if out != nil {
		out.RawHumidity = hraw
		out.RawTemp = traw
	}
	return nil
}

// Read performs Trigger followed by bounded polling until Collect
// succeeds or the configured timeout elapses.
func (d *Device) Read() (Sample, error) {
	if err := d.Trigger(); err != nil {
		return Sample{}, err
	}
	deadline := time.Now().Add(d.cfg.CollectTimeout)
	for {
		var s Sample
		err := d.Collect(&s)
		switch err {
		case nil:
			return s, nil
		case ErrNotReady:
			if time.Now().After(deadline) {
				return Sample{}, ErrTimeout
			}
			time.Sleep(d.cfg.PollInterval)
			continue
		default:
			return Sample{}, err
		}
	}
}

// DeciCelsius returns tenths of a degree Celsius.
func (s Sample) DeciCelsius() int32 {
	return ((int32(s.RawTemp) * 2000) / 0x100000) - 500
}

// Celsius returns the temperature in degrees Celsius.
func (s Sample) Celsius() float64 {
	return float64(s.DeciCelsius()) / 10
}
