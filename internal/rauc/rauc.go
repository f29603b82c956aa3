// Package rauc adapts the RAUC update client:
// publishes operation/progress/slots/last_error/should_reboot, consumes
// install and channels-reload, and honors the
// /v1/tac/update/inhibited lock so an install is refused while a DUT
// power-on session is active. There is no enable_polling input: nothing
// in this package or its wire-up toggles update-channel polling.
package rauc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/linux-automation/tacd/internal/errkind"
	"github.com/linux-automation/tacd/internal/execcli"
	"github.com/linux-automation/tacd/internal/model"
	"github.com/linux-automation/tacd/internal/topic"
	"github.com/rs/zerolog"
)

// InstallSpec is the externally-settable request shape: either a bare
// JSON string (taken as the bundle path or URL) or an object with a path
// or url plus an optional manifest_hash. Install hands the path or URL to
// rauc; manifest_hash is decoded but not checked.
type InstallSpec struct {
	Path         string `json:"path,omitempty"`
	URL          string `json:"url,omitempty"`
	ManifestHash string `json:"manifest_hash,omitempty"`
}

// UnmarshalJSON accepts both the bare-string and the object form.
func (s *InstallSpec) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = InstallSpec{Path: str}
		return nil
	}
	type plain InstallSpec
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = InstallSpec(p)
	return nil
}

// Topics are the bus surface an Adapter owns or reads.
type Topics struct {
	Operation    *topic.Topic[string]
	Progress     *topic.Topic[model.RaucProgress]
	Slots        *topic.Topic[model.RaucSlots]
	LastError    *topic.Topic[string]
	ShouldReboot *topic.Topic[bool]
	Inhibited    *topic.Topic[bool]        // read-write: other components may set it too
	DutPower     *topic.Topic[model.DutPwrStatus] // read-only: gates install while DUT is on
}

// Adapter exec-wraps the `rauc` CLI.
type Adapter struct {
	cli    *execcli.Runner
	topics Topics
	log    zerolog.Logger

	// ReloadChannels, when set, is invoked to satisfy the "channels/reload:
	// true" verb; wired by internal/wireup to internal/updatechannels.
	ReloadChannels func(ctx context.Context) error

	mu          sync.Mutex
	overrideGate bool
}

func New(cli *execcli.Runner, topics Topics, log zerolog.Logger) *Adapter {
	a := &Adapter{cli: cli, topics: topics, log: log}
	a.topics.Operation.Publish("idle")
	return a
}

type rawStatus struct {
	Slots map[string]struct {
		State      string `json:"state"`
		BootStatus string `json:"boot_status"`
		Status     string `json:"status"`
		Build      string `json:"bundle.build"`
		Installed  string `json:"installed.timestamp"`
	} `json:"slots"`
}

// RefreshStatus runs `rauc status` and publishes the parsed slot table.
func (a *Adapter) RefreshStatus(ctx context.Context) error {
	out, err := a.cli.Run(ctx, "status", "--output-format=json")
	if err != nil {
		a.topics.LastError.Publish(err.Error())
		return err
	}
	var raw rawStatus
	if err := json.Unmarshal(out, &raw); err != nil {
		return errkind.Wrap(errkind.Internal, "rauc.RefreshStatus", err)
	}
	slots := make(model.RaucSlots, len(raw.Slots))
	for name, s := range raw.Slots {
		var installed *time.Time
		if t, err := time.Parse(time.RFC3339, s.Installed); err == nil {
			installed = &t
		}
		slots[name] = model.RaucSlot{
			State:      s.State,
			Status:     s.Status,
			BootStatus: s.BootStatus,
			Build:      s.Build,
			Installed:  installed,
		}
	}
	a.topics.Slots.Publish(slots)
	return nil
}

// Install begins a bundle installation, refusing it with Forbidden if the
// DUT is currently powered and the inhibit lock has not been overridden.
func (a *Adapter) Install(ctx context.Context, spec InstallSpec) error {
	if blocked, reason := a.installInhibited(); blocked {
		return errkind.New(errkind.Forbidden, "rauc.Install", reason)
	}

	target := spec.Path
	if spec.URL != "" {
		target = spec.URL
	}
	if target == "" {
		return errkind.New(errkind.BadRequest, "rauc.Install", "install requires path or url")
	}

	a.topics.Operation.Publish("installing")
	a.topics.Progress.Publish(model.RaucProgress{Percentage: 0, Message: "starting", NestingDepth: 0})

	_, err := a.cli.Run(ctx, "install", target)

	a.topics.Operation.Publish("idle")
	if err != nil {
		a.topics.LastError.Publish(err.Error())
		return err
	}
	a.topics.Progress.Publish(model.RaucProgress{Percentage: 100, Message: "done", NestingDepth: 0})
	a.topics.ShouldReboot.Publish(true)
	return nil
}

func (a *Adapter) installInhibited() (bool, string) {
	a.mu.Lock()
	override := a.overrideGate
	a.mu.Unlock()
	if override {
		return false, ""
	}
	if inhibited, _, ok := a.topics.Inhibited.TryGet(); ok && inhibited {
		return true, "update installation inhibited"
	}
	if st, _, ok := a.topics.DutPower.TryGet(); ok {
		switch st {
		case model.DutOn, model.DutChanging:
			return true, fmt.Sprintf("update installation inhibited while DUT power is %s", st)
		}
	}
	return false, ""
}

// SetOverride allows a caller to bypass the DUT-power inhibit for this
// adapter instance (used by an explicit operator override endpoint, not
// the default path).
func (a *Adapter) SetOverride(v bool) {
	a.mu.Lock()
	a.overrideGate = v
	a.mu.Unlock()
}

// HandleChannelsReload services the "channels/reload: true" verb.
func (a *Adapter) HandleChannelsReload(ctx context.Context) error {
	if a.ReloadChannels == nil {
		return nil
	}
	return a.ReloadChannels(ctx)
}
