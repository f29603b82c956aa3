package dutpower

import (
	"context"
	"testing"
	"time"

	"github.com/linux-automation/tacd/internal/gpioctl"
	"github.com/linux-automation/tacd/internal/model"
	"github.com/linux-automation/tacd/internal/ring"
	"github.com/linux-automation/tacd/internal/topic"
)

type fakeLine struct {
	level    gpioctl.Level
	floated  bool
	failNext bool
}

func (f *fakeLine) Set(ctx context.Context, level gpioctl.Level) error {
	if f.failNext {
		f.failNext = false
		return errBoom
	}
	f.level = level
	f.floated = false
	return nil
}

func (f *fakeLine) Float(ctx context.Context) error {
	f.floated = true
	return nil
}

type boom struct{}

func (boom) Error() string { return "boom" }

var errBoom = boom{}

func newTestSupervisor() (*Supervisor, *fakeLine, *fakeLine, *ring.Ring[model.Measurement], *ring.Ring[model.Measurement]) {
	sw := &fakeLine{}
	dis := &fakeLine{}
	vRing := ring.New[model.Measurement](8)
	iRing := ring.New[model.Measurement](8)
	status := topic.New[model.DutPwrStatus]("/v1/dut/powered", true, true)
	limits := DefaultLimits()
	limits.OverCurrentSamples = 3
	sup := New(limits, Lines{Switch: sw, Discharge: dis}, vRing, iRing, status, discardLogger())
	return sup, sw, dis, vRing, iRing
}

func TestPowerOnSettlesToOn(t *testing.T) {
	sup, sw, _, vRing, iRing := newTestSupervisor()
	vRing.Push(model.Measurement{Value: 48})
	iRing.Push(model.Measurement{Value: 0.1})

	sup.RequestPower(model.ReqOn)
	sup.step(context.Background(), time.Now())
	if sup.State() != model.DutChanging {
		t.Fatalf("expected Changing immediately after request, got %s", sup.State())
	}
	if sw.level != gpioctl.High {
		t.Fatalf("expected switch line driven high entering Changing")
	}

	sup.step(context.Background(), time.Now().Add(time.Second))
	if sup.State() != model.DutOn {
		t.Fatalf("expected On after settle with good V/I, got %s", sup.State())
	}
}

func TestOverCurrentRequiresKConsecutiveSamples(t *testing.T) {
	sup, sw, _, vRing, iRing := newTestSupervisor()
	sup.state = model.DutOn
	// 6 A at 24 V is 144 W, under MaxPower, so only the current streak can trip.
	vRing.Push(model.Measurement{Value: 24})

	for i := 0; i < 2; i++ {
		iRing.Push(model.Measurement{Value: 6.0})
		sup.step(context.Background(), time.Now())
		if sup.State() == model.DutOverCurrent {
			t.Fatalf("tripped OverCurrent after only %d samples", i+1)
		}
	}

	iRing.Push(model.Measurement{Value: 6.0})
	sup.step(context.Background(), time.Now())
	if sup.State() != model.DutOverCurrent {
		t.Fatalf("expected OverCurrent after K consecutive samples, got %s", sup.State())
	}
	if sw.level != gpioctl.Low {
		t.Fatalf("expected switch off after fault latch")
	}
}

func TestFaultTieBreakPrefersRealtimeViolation(t *testing.T) {
	sup, _, _, vRing, iRing := newTestSupervisor()
	sup.state = model.DutOn
	sup.deadlineMissStreak = sup.limits.DeadlineMissesToFault
	vRing.Push(model.Measurement{Value: -5}) // would also trip InvertedPolarity
	iRing.Push(model.Measurement{Value: 0.1})

	sup.step(context.Background(), time.Now())
	if sup.State() != model.DutRealtimeViolation {
		t.Fatalf("expected RealtimeViolation to win tie-break, got %s", sup.State())
	}
}

func TestFaultLatchRequiresExplicitClear(t *testing.T) {
	sup, _, _, vRing, iRing := newTestSupervisor()
	sup.state = model.DutOn
	vRing.Push(model.Measurement{Value: -5})
	sup.step(context.Background(), time.Now())
	if sup.State() != model.DutInvertedPolarity {
		t.Fatalf("expected InvertedPolarity, got %s", sup.State())
	}

	// Further samples, even good ones, must not clear the fault.
	vRing.Push(model.Measurement{Value: 48})
	iRing.Push(model.Measurement{Value: 0.1})
	sup.step(context.Background(), time.Now())
	if sup.State() != model.DutInvertedPolarity {
		t.Fatalf("fault must stay latched without explicit request, got %s", sup.State())
	}

	sup.RequestPower(model.ReqOff)
	sup.step(context.Background(), time.Now())
	if sup.State() != model.DutOff {
		t.Fatalf("expected explicit Off request to clear fault, got %s", sup.State())
	}
}

func TestActuationFailureLatchesRealtimeViolation(t *testing.T) {
	sup, sw, _, _, _ := newTestSupervisor()
	sw.failNext = true

	sup.RequestPower(model.ReqOn)
	sup.step(context.Background(), time.Now())
	if sup.State() != model.DutRealtimeViolation {
		t.Fatalf("expected actuation failure to latch RealtimeViolation, got %s", sup.State())
	}
}
