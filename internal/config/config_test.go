package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validPins() Pins {
	return Pins{
		DutSwitch: "GPIO17", DutDischarge: "GPIO27",
		ButtonUpper: "GPIO5", ButtonLower: "GPIO6",
		LEDStatus: "GPIO12", LEDOut0: "GPIO13", LEDOut1: "GPIO16",
		LEDDutPwr: "GPIO19", LEDEthDut: "GPIO20", LEDEthLab: "GPIO21",
	}
}

func TestValidateRejectsMissingField(t *testing.T) {
	cfg := Default()
	cfg.Pins = validPins()
	cfg.Pins.DutSwitch = ""
	cfg.ADC = ADCChannels{DutVoltage: "voltage0", DutCurrent: "current0"}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected missing pin to fail validation")
	}
}

func TestValidateRejectsPinConflict(t *testing.T) {
	cfg := Default()
	cfg.Pins = validPins()
	cfg.Pins.LEDOut1 = cfg.Pins.LEDOut0
	cfg.ADC = ADCChannels{DutVoltage: "voltage0", DutCurrent: "current0"}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected duplicate pin assignment to fail validation")
	}
}

func TestLoadOverlaysYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tacd.yaml")
	yamlBody := `
http_addr: ":9090"
pins:
  dut_switch: GPIO17
  dut_discharge: GPIO27
  button_upper: GPIO5
  button_lower: GPIO6
  led_status: GPIO12
  led_out0: GPIO13
  led_out1: GPIO16
  led_dut_pwr: GPIO19
  led_eth_dut: GPIO20
  led_eth_lab: GPIO21
adc:
  dut_voltage: voltage0
  dut_current: current0
`
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load([]string{"-config-file", path})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("expected http_addr overlaid from YAML, got %q", cfg.HTTPAddr)
	}
	if cfg.Pins.DutSwitch != "GPIO17" {
		t.Fatalf("expected pins overlaid from YAML, got %+v", cfg.Pins)
	}
}
