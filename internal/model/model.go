// Package model holds the daemon's core data types: the sum types and
// records that flow across the topic bus. Fields carry json tags because
// every topic value is also the daemon's JSON wire contract.
package model

import (
	"encoding/json"
	"time"
)

// Measurement is a single analog sample.
type Measurement struct {
	TS    int64   `json:"ts"` // milliseconds since boot
	Value float64 `json:"value"`
}

// DutPwrStatus is the DUT power supervisor's published state.
type DutPwrStatus string

const (
	DutOn                DutPwrStatus = "On"
	DutOff               DutPwrStatus = "Off"
	DutOffFloating       DutPwrStatus = "OffFloating"
	DutChanging          DutPwrStatus = "Changing"
	DutInvertedPolarity  DutPwrStatus = "InvertedPolarity"
	DutOverCurrent       DutPwrStatus = "OverCurrent"
	DutOverVoltage       DutPwrStatus = "OverVoltage"
	DutRealtimeViolation DutPwrStatus = "RealtimeViolation"
)

// IsFault reports whether s is one of the sticky fault variants.
func (s DutPwrStatus) IsFault() bool {
	switch s {
	case DutInvertedPolarity, DutOverCurrent, DutOverVoltage, DutRealtimeViolation:
		return true
	default:
		return false
	}
}

// DutPwrRequest is the externally-settable subset of DutPwrStatus.
type DutPwrRequest string

const (
	ReqOn          DutPwrRequest = "On"
	ReqOff         DutPwrRequest = "Off"
	ReqOffFloating DutPwrRequest = "OffFloating"
)

// Valid reports whether r is a legal external request value.
func (r DutPwrRequest) Valid() bool {
	switch r {
	case ReqOn, ReqOff, ReqOffFloating:
		return true
	default:
		return false
	}
}

// UnmarshalJSON rejects any value that is not one of the three legal
// requests, so that PUT /v1/dut/powered/request with a fault-variant or
// garbage string decodes as a JSON error and the broker surfaces it as
// BadRequest.
func (r *DutPwrRequest) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v := DutPwrRequest(s)
	if !v.Valid() {
		return &invalidRequestError{value: s}
	}
	*r = v
	return nil
}

type invalidRequestError struct{ value string }

func (e *invalidRequestError) Error() string {
	return "invalid DutPwrRequest value: " + e.value
}

// Screen enumerates top-level and modal screens.
type Screen string

const (
	ScreenDutPower Screen = "DutPower"
	ScreenUsb      Screen = "Usb"
	ScreenDigOut   Screen = "DigOut"
	ScreenSystem   Screen = "System"
	ScreenIoBus    Screen = "IoBus"
	ScreenUart     Screen = "Uart"

	ScreenSetup              Screen = "Setup"
	ScreenHelp               Screen = "Help"
	ScreenRebootConfirm      Screen = "RebootConfirm"
	ScreenUpdateAvailable    Screen = "UpdateAvailable"
	ScreenUpdateInstallation Screen = "UpdateInstallation"
	ScreenLocator            Screen = "Locator"
	ScreenSaver              Screen = "ScreenSaver"
)

// NormalScreens is the cycle order for user-selected screens.
var NormalScreens = []Screen{
	ScreenDutPower, ScreenUsb, ScreenDigOut, ScreenSystem, ScreenIoBus, ScreenUart,
}

// modalPriority ranks modal screens; higher wins. Non-modal screens are
// never in this table and never win against a modal alert.
var modalPriority = map[Screen]int{
	ScreenRebootConfirm:      100,
	ScreenSetup:              90,
	ScreenUpdateInstallation: 80,
	ScreenUpdateAvailable:    70,
	ScreenLocator:            60,
	ScreenHelp:               50,
	ScreenSaver:              10,
}

// IsModal reports whether s participates in the alert stack.
func IsModal(s Screen) bool {
	_, ok := modalPriority[s]
	return ok
}

// Priority returns s's alert priority, or -1 if s is not modal.
func Priority(s Screen) int {
	if p, ok := modalPriority[s]; ok {
		return p
	}
	return -1
}

// Button identifies a physical button.
type Button string

const (
	BtnUpper Button = "Upper"
	BtnLower Button = "Lower"
)

// PressDir is Press or Release.
type PressDir string

const (
	DirPress   PressDir = "Press"
	DirRelease PressDir = "Release"
)

// PressDur classifies how long a press was held.
type PressDur string

const (
	DurShort PressDur = "Short"
	DurLong  PressDur = "Long"
)

// LongPressThreshold is the default duration after which a held press is
// reported as Long.
const LongPressThreshold = 1 * time.Second

// ButtonEvent is a single physical button transition.
type ButtonEvent struct {
	Btn Button   `json:"btn"`
	Dir PressDir `json:"dir"`
	Dur PressDur `json:"dur"`
}

// BlinkStep is one segment of a BlinkPattern.
type BlinkStep struct {
	DurationMS int     `json:"duration_ms"`
	Brightness float64 `json:"brightness"` // in [0,1]
}

// BlinkPattern drives one LED. Repetitions of 0 means infinite.
type BlinkPattern struct {
	Repetitions int         `json:"repetitions"`
	Steps       []BlinkStep `json:"steps"`
}

// Solid returns a one-step, infinitely repeating pattern at brightness b.
func Solid(b float64) BlinkPattern {
	return BlinkPattern{Repetitions: 0, Steps: []BlinkStep{{DurationMS: 1000, Brightness: b}}}
}

// Off is the always-dark pattern.
func Off() BlinkPattern { return Solid(0) }

// Blink returns a simple two-step on/off pattern of the given period.
func Blink(onMS, offMS int) BlinkPattern {
	return BlinkPattern{
		Repetitions: 0,
		Steps: []BlinkStep{
			{DurationMS: onMS, Brightness: 1},
			{DurationMS: offMS, Brightness: 0},
		},
	}
}

// LocatorPattern is the distinctive pattern the status LED takes while
// /v1/tac/display/locator is set.
func LocatorPattern() BlinkPattern {
	return BlinkPattern{
		Repetitions: 0,
		Steps: []BlinkStep{
			{DurationMS: 80, Brightness: 1},
			{DurationMS: 80, Brightness: 0},
			{DurationMS: 80, Brightness: 1},
			{DurationMS: 600, Brightness: 0},
		},
	}
}

// RaucSlot describes one RAUC slot's persisted status.
type RaucSlot struct {
	State      string     `json:"state"`
	Status     string     `json:"status"`
	BootStatus string     `json:"boot_status"`
	Build      string     `json:"build,omitempty"`
	Installed  *time.Time `json:"installed,omitempty"`
}

// RaucSlots is the full slot table keyed by slot name.
type RaucSlots map[string]RaucSlot

// RaucProgress mirrors RAUC's D-Bus progress signal shape.
type RaucProgress struct {
	Percentage   int    `json:"percentage"`
	Message      string `json:"message"`
	NestingDepth int    `json:"nesting_depth"`
}

// UpdateChannel describes one entry in the update-channel list.
type UpdateChannel struct {
	Name             string `json:"name"`
	DisplayName      string `json:"display_name"`
	Description      string `json:"description"`
	URL              string `json:"url"`
	PollingIntervalS int    `json:"polling_interval"`
	Enabled          bool   `json:"enabled"`
	Primary          bool   `json:"primary"`
	Bundle           string `json:"bundle,omitempty"`
}

// ServiceStatus mirrors one systemd unit's status.
type ServiceStatus struct {
	ActiveState   string `json:"active_state"`
	SubState      string `json:"sub_state"`
	ActiveEnterTS int64  `json:"active_enter_ts"`
	ActiveExitTS  int64  `json:"active_exit_ts"`
}

// ServiceAction is a control verb accepted by the systemd bridge.
type ServiceAction string

const (
	ActionStart   ServiceAction = "Start"
	ActionStop    ServiceAction = "Stop"
	ActionRestart ServiceAction = "Restart"
)

// LinkStatus is one network interface's link-level state.
type LinkStatus struct {
	SpeedMbps int  `json:"speed"`
	Carrier   bool `json:"carrier"`
}

// IOBusInfo mirrors the local IOBus server's self-description.
type IOBusInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// IOBusNode is one node visible on the local IOBus.
type IOBusNode struct {
	Address  int    `json:"address"`
	Kind     string `json:"kind"`
	Firmware string `json:"firmware,omitempty"`
}
