package buttons

import (
	"context"
	"testing"
	"time"

	"github.com/linux-automation/tacd/internal/gpioctl"
	"github.com/linux-automation/tacd/internal/model"
)

type fakeReader struct {
	level gpioctl.Level
}

func (f *fakeReader) Read(ctx context.Context) (gpioctl.Level, error) {
	return f.level, nil
}

func TestShortPressEmitsOnRelease(t *testing.T) {
	reader := &fakeReader{level: gpioctl.Low}
	var got []model.ButtonEvent
	s := New(time.Millisecond, 2, map[model.Button]Wiring{
		model.BtnUpper: {Line: reader, PressedOnLevel: gpioctl.High},
	})
	s.Publish = func(ev model.ButtonEvent) { got = append(got, ev) }

	now := time.Now()
	reader.level = gpioctl.High
	s.pollAll(context.Background(), now)
	s.pollAll(context.Background(), now)

	reader.level = gpioctl.Low
	s.pollAll(context.Background(), now.Add(time.Millisecond))
	s.pollAll(context.Background(), now.Add(time.Millisecond))

	if len(got) != 1 || got[0].Dir != model.DirRelease || got[0].Dur != model.DurShort {
		t.Fatalf("expected one short release event, got %+v", got)
	}
}

func TestLongPressFiresWhileHeld(t *testing.T) {
	reader := &fakeReader{level: gpioctl.High}
	var got []model.ButtonEvent
	s := New(time.Millisecond, 1, map[model.Button]Wiring{
		model.BtnLower: {Line: reader, PressedOnLevel: gpioctl.High},
	})
	s.Publish = func(ev model.ButtonEvent) { got = append(got, ev) }

	base := time.Now()
	s.pollAll(context.Background(), base)
	s.pollAll(context.Background(), base.Add(model.LongPressThreshold+time.Millisecond))

	if len(got) != 1 || got[0].Dir != model.DirPress || got[0].Dur != model.DurLong {
		t.Fatalf("expected one long press event, got %+v", got)
	}

	// Releasing after a long-press has already fired must not emit a
	// second (short) event.
	reader.level = gpioctl.Low
	s.pollAll(context.Background(), base.Add(model.LongPressThreshold+2*time.Millisecond))
	if len(got) != 1 {
		t.Fatalf("expected release after long-fire to emit nothing, got %+v", got)
	}
}

func TestDebounceRequiresStableReads(t *testing.T) {
	reader := &fakeReader{level: gpioctl.Low}
	var got []model.ButtonEvent
	s := New(time.Millisecond, 3, map[model.Button]Wiring{
		model.BtnUpper: {Line: reader, PressedOnLevel: gpioctl.High},
	})
	s.Publish = func(ev model.ButtonEvent) { got = append(got, ev) }

	now := time.Now()
	reader.level = gpioctl.High
	s.pollAll(context.Background(), now)
	reader.level = gpioctl.Low
	s.pollAll(context.Background(), now)
	reader.level = gpioctl.High
	s.pollAll(context.Background(), now)

	if len(got) != 0 {
		t.Fatalf("expected no transition to register before stable reads, got %+v", got)
	}
}
