// Package buttons turns the two front-panel button GPIOs into classified
// ButtonEvent values, publishing each to the UI's
// input topic. Buttons are polled the same way internal/gpioctl
// polls any other digital line rather than read from
// /dev/input/by-path/... directly.
package buttons

import (
	"context"
	"time"

	"github.com/linux-automation/tacd/internal/gpioctl"
	"github.com/linux-automation/tacd/internal/model"
)

// LevelReader is the subset of *gpioctl.Line a Source needs.
type LevelReader interface {
	Read(ctx context.Context) (gpioctl.Level, error)
}

// Wiring maps a logical button to the line that reads it and whether a
// logical press corresponds to a High or Low electrical level.
type Wiring struct {
	Line           LevelReader
	PressedOnLevel gpioctl.Level
}

type buttonState struct {
	wiring      Wiring
	pressed     bool
	pressedAt   time.Time
	longFired   bool
	stableLevel gpioctl.Level
	stableCount int
}

// Source polls a set of buttons at a fixed interval, debounces raw level
// reads, and emits classified ButtonEvent values through Publish.
type Source struct {
	interval     time.Duration
	debounceReads int
	longPress    time.Duration
	states       map[model.Button]*buttonState
	Publish      func(model.ButtonEvent)
}

// New builds a Source. interval is the poll period; a level must read the
// same for debounceReads consecutive polls before a transition is
// accepted, which is the same fixed-sample-count debounce idiom
// internal/dutpower uses for its overcurrent window.
func New(interval time.Duration, debounceReads int, wiring map[model.Button]Wiring) *Source {
	states := make(map[model.Button]*buttonState, len(wiring))
	for btn, w := range wiring {
		states[btn] = &buttonState{wiring: w}
	}
	return &Source{
		interval:      interval,
		debounceReads: debounceReads,
		longPress:     model.LongPressThreshold,
		states:        states,
		Publish:       func(model.ButtonEvent) {},
	}
}

// Run polls every button until ctx is cancelled.
func (s *Source) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.pollAll(ctx, now)
		}
	}
}

func (s *Source) pollAll(ctx context.Context, now time.Time) {
	for btn, st := range s.states {
		level, err := st.wiring.Line.Read(ctx)
		if err != nil {
			continue
		}
		s.feed(btn, st, level, now)
	}
}

func (s *Source) feed(btn model.Button, st *buttonState, level gpioctl.Level, now time.Time) {
	if level == st.stableLevel {
		st.stableCount++
	} else {
		st.stableLevel = level
		st.stableCount = 1
	}
	if st.stableCount < s.debounceReads {
		return
	}

	pressedNow := level == st.wiring.PressedOnLevel
	switch {
	case pressedNow && !st.pressed:
		st.pressed = true
		st.pressedAt = now
		st.longFired = false
	case pressedNow && st.pressed:
		if !st.longFired && now.Sub(st.pressedAt) >= s.longPress {
			st.longFired = true
			s.Publish(model.ButtonEvent{Btn: btn, Dir: model.DirPress, Dur: model.DurLong})
		}
	case !pressedNow && st.pressed:
		st.pressed = false
		if !st.longFired {
			s.Publish(model.ButtonEvent{Btn: btn, Dir: model.DirRelease, Dur: model.DurShort})
		}
	}
}
