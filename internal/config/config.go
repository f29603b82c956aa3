// Package config loads and validates the daemon's configuration: flag
// defaults overridden by an optional YAML file, validated before any
// hardware adapter is constructed, the same
// flag-then-file-then-validate shape used for the HVAC controller's
// config package, with the same reflection-based pin-conflict check
// generalized from integer GPIO pins to the TAC's named line/channel
// strings.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Pins names every digital line the daemon drives or reads, keyed by the
// string gpioctl.Line accepts. Two logical roles must never share a pin.
type Pins struct {
	DutSwitch    string `yaml:"dut_switch"`
	DutDischarge string `yaml:"dut_discharge"`
	ButtonUpper  string `yaml:"button_upper"`
	ButtonLower  string `yaml:"button_lower"`
	LEDStatus    string `yaml:"led_status"`
	LEDOut0      string `yaml:"led_out0"`
	LEDOut1      string `yaml:"led_out1"`
	LEDDutPwr    string `yaml:"led_dut_pwr"`
	LEDEthDut    string `yaml:"led_eth_dut"`
	LEDEthLab    string `yaml:"led_eth_lab"`
}

// ADCChannels names the IIO sysfs channels the measurement pipeline reads.
type ADCChannels struct {
	DutVoltage string `yaml:"dut_voltage"`
	DutCurrent string `yaml:"dut_current"`
}

// Channel mirrors one entry of the configured update-channel list.
type Channel struct {
	Name             string `yaml:"name"`
	DisplayName      string `yaml:"display_name"`
	Description      string `yaml:"description"`
	URL              string `yaml:"url"`
	PollingIntervalS int    `yaml:"polling_interval_s"`
	Enabled          bool   `yaml:"enabled"`
	Primary          bool   `yaml:"primary"`
}

// Config is the daemon's full startup configuration.
type Config struct {
	ConfigFile string `yaml:"-"`
	LogLevel   zerolog.Level `yaml:"-"`

	HTTPAddr   string `yaml:"http_addr"`
	BridgeName string `yaml:"bridge_name"`
	SetupMode  bool   `yaml:"setup_mode"`

	GPIOCtlBin    string `yaml:"gpioctl_bin"`
	I2CBus        int    `yaml:"i2c_bus"`
	RaucBin       string `yaml:"rauc_bin"`
	SystemctlBin  string `yaml:"systemctl_bin"`
	JournalctlBin string `yaml:"journalctl_bin"`
	IOBusURL      string `yaml:"iobus_url"`
	IIOBasePath   string `yaml:"iio_base_path"`

	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ButtonPollEvery time.Duration `yaml:"button_poll_every"`

	Pins        Pins        `yaml:"pins"`
	ADC         ADCChannels `yaml:"adc"`
	Services    []string    `yaml:"services"`
	Channels    []Channel   `yaml:"update_channels"`
}

// Default returns the built-in defaults, overridden by Load's flags and
// YAML file.
func Default() Config {
	return Config{
		HTTPAddr:        ":8080",
		BridgeName:      "tac-bridge",
		GPIOCtlBin:      "pinctrl",
		I2CBus:          1,
		RaucBin:         "rauc",
		SystemctlBin:    "systemctl",
		JournalctlBin:   "journalctl",
		IOBusURL:        "http://localhost:8081",
		IIOBasePath:     "/sys/bus/iio/devices/iio:device0",
		IdleTimeout:     30 * time.Second,
		ButtonPollEvery: 10 * time.Millisecond,
		LogLevel:        zerolog.InfoLevel,
	}
}

// Validate enforces the invariants that must hold before any hardware
// adapter is constructed: every required pin/channel is set, and no two
// roles share the same physical line.
func (c *Config) Validate() error {
	var missing []string
	used := map[string]string{}

	v := reflect.ValueOf(c.Pins)
	t := reflect.TypeOf(c.Pins)
	for i := 0; i < v.NumField(); i++ {
		name := t.Field(i).Tag.Get("yaml")
		val := v.Field(i).String()
		if val == "" {
			missing = append(missing, "pins."+name)
			continue
		}
		if other, ok := used[val]; ok {
			return fmt.Errorf("config: pins.%s and pins.%s both use line %q", name, other, val)
		}
		used[val] = name
	}

	av := reflect.ValueOf(c.ADC)
	at := reflect.TypeOf(c.ADC)
	for i := 0; i < av.NumField(); i++ {
		name := at.Field(i).Tag.Get("yaml")
		val := av.Field(i).String()
		if val == "" {
			missing = append(missing, "adc."+name)
			continue
		}
		if other, ok := used[val]; ok {
			return fmt.Errorf("config: adc.%s and %s both reference %q", name, other, val)
		}
		used[val] = "adc." + name
	}

	if len(missing) > 0 {
		return fmt.Errorf("config: missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Load parses flags, then overlays an optional YAML config file, then
// validates. Any failure here is a fatal wire-up failure the caller
// should exit non-zero on.
func Load(args []string) (Config, error) {
	cfg := Default()

	fs := newFlagSet(&cfg)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if cfg.ConfigFile != "" {
		data, err := os.ReadFile(cfg.ConfigFile)
		if err != nil {
			return cfg, fmt.Errorf("config: reading %s: %w", cfg.ConfigFile, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parsing %s: %w", cfg.ConfigFile, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
