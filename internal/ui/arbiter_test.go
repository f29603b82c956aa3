package ui

import (
	"testing"
	"time"

	"github.com/linux-automation/tacd/internal/model"
	"github.com/linux-automation/tacd/internal/topic"
)

func newTestArbiter() *Arbiter {
	screen := topic.New[model.Screen]("/v1/tac/display/screen", true, true)
	alerts := topic.New[[]model.Screen]("/v1/tac/display/alerts", true, false)
	locator := topic.New[bool]("/v1/tac/display/locator", true, true)
	content := topic.New[[]byte]("/v1/tac/display/content", true, false)
	alerts.Publish(nil)
	screen.Publish(model.NormalScreens[0])
	locator.Publish(false)
	return New(screen, alerts, locator, content, NewFramebuffer(128, 64), time.Hour, 20)
}

func TestCycleScreenAdvancesAndWraps(t *testing.T) {
	a := newTestArbiter()
	a.CycleScreen()
	got, _, _ := a.ScreenTopic.TryGet()
	if got != model.NormalScreens[1] {
		t.Fatalf("expected second normal screen, got %s", got)
	}

	for i := 0; i < len(model.NormalScreens)-1; i++ {
		a.CycleScreen()
	}
	got, _, _ = a.ScreenTopic.TryGet()
	if got != model.NormalScreens[0] {
		t.Fatalf("expected wrap to first screen, got %s", got)
	}
	alerts, _, _ := a.AlertsTopic.TryGet()
	found := false
	for _, al := range alerts {
		if al == model.ScreenSaver {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected screensaver asserted on wrap, got %v", alerts)
	}
}

func TestAlertPriorityWinsOverNormalScreen(t *testing.T) {
	a := newTestArbiter()
	a.AssertAlert(model.ScreenHelp)
	a.AssertAlert(model.ScreenRebootConfirm)
	if got := a.effective(); got != model.ScreenRebootConfirm {
		t.Fatalf("expected RebootConfirm (higher priority), got %s", got)
	}
	a.DeassertAlert(model.ScreenRebootConfirm)
	if got := a.effective(); got != model.ScreenHelp {
		t.Fatalf("expected Help after RebootConfirm cleared, got %s", got)
	}
}

func TestScreensaverSwallowsFirstButtonPress(t *testing.T) {
	a := newTestArbiter()
	a.AssertAlert(model.ScreenSaver)
	if got := a.effective(); got != model.ScreenSaver {
		t.Fatalf("expected screensaver active, got %s", got)
	}

	a.HandleButton(model.ButtonEvent{Btn: model.BtnUpper, Dir: model.DirPress, Dur: model.DurShort})

	if got := a.effective(); got != model.NormalScreens[0] {
		t.Fatalf("expected screensaver popped and no screen change, got %s", got)
	}
}

func TestUpperShortPressCyclesNormalScreen(t *testing.T) {
	a := newTestArbiter()
	a.HandleButton(model.ButtonEvent{Btn: model.BtnUpper, Dir: model.DirPress, Dur: model.DurShort})
	got, _, _ := a.ScreenTopic.TryGet()
	if got != model.NormalScreens[1] {
		t.Fatalf("expected screen cycle from upper short press, got %s", got)
	}
}
