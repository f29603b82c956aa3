package rauc

import (
	"context"
	"testing"

	"github.com/linux-automation/tacd/internal/errkind"
	"github.com/linux-automation/tacd/internal/execcli"
	"github.com/linux-automation/tacd/internal/model"
	"github.com/linux-automation/tacd/internal/topic"
	"github.com/rs/zerolog"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	cli, err := execcli.New("rauc")
	if err != nil {
		t.Fatal(err)
	}
	topics := Topics{
		Operation:    topic.New[string]("/v1/tac/update/operation", true, false),
		Progress:     topic.New[model.RaucProgress]("/v1/tac/update/progress", true, false),
		Slots:        topic.New[model.RaucSlots]("/v1/tac/update/slots", true, false),
		LastError:    topic.New[string]("/v1/tac/update/last_error", true, false),
		ShouldReboot: topic.New[bool]("/v1/tac/update/should_reboot", true, false),
		Inhibited:    topic.New[bool]("/v1/tac/update/inhibited", true, true),
		DutPower:     topic.New[model.DutPwrStatus]("/v1/dut/powered", true, true),
	}
	topics.Inhibited.Publish(false)
	topics.DutPower.Publish(model.DutOff)
	return New(cli, topics, zerolog.Nop())
}

func TestInstallRefusedWhileDutPowered(t *testing.T) {
	a := newTestAdapter(t)
	a.topics.DutPower.Publish(model.DutOn)

	err := a.Install(context.Background(), InstallSpec{URL: "http://example/bundle.raucb"})
	if err == nil {
		t.Fatal("expected install to be refused while DUT is on")
	}
}

func TestInstallRefusedWhileInhibited(t *testing.T) {
	a := newTestAdapter(t)
	a.topics.Inhibited.Publish(true)

	err := a.Install(context.Background(), InstallSpec{URL: "http://example/bundle.raucb"})
	if err == nil {
		t.Fatal("expected install to be refused while inhibited")
	}
}

func TestInstallOverrideBypassesInhibit(t *testing.T) {
	a := newTestAdapter(t)
	a.topics.DutPower.Publish(model.DutOn)
	a.SetOverride(true)

	// cli.Run will fail (no real rauc binary) but that's a different
	// error path than the inhibit Forbidden this test checks for.
	err := a.Install(context.Background(), InstallSpec{URL: "http://example/bundle.raucb"})
	if err != nil && errkind.Of(err) == errkind.Forbidden {
		t.Fatalf("expected override to bypass inhibit, got Forbidden")
	}
}
