// Package led drives BlinkPattern topics. A single
// ticker advances every registered LED on a common phase, satisfying the
// "kept in sync" requirement for patterns like the locator blink. There is
// no PWM-capable output available, so brightness is approximated by
// asserting the line for a fraction of consecutive ticks, chosen with a
// running-remainder accumulator to avoid drift. When a pattern is swapped
// for another (e.g. the locator blink engaging or clearing), brightness is
// walked from the old step's level to the new one with x/ramp.StartLinear
// instead of jumping, so a pattern switch never looks like a glitch.
package led

import (
	"context"
	"sync"
	"time"

	"github.com/linux-automation/tacd/internal/gpioctl"
	"github.com/linux-automation/tacd/internal/model"
	"github.com/linux-automation/tacd/x/mathx"
	"github.com/linux-automation/tacd/x/ramp"
)

// rampScale is the integer brightness resolution x/ramp.StartLinear ramps
// over; a transition takes rampSteps steps spread over rampDuration, so
// each step lasts rampDuration/rampSteps.
const (
	rampScale    = 1000
	rampSteps    = 30
	rampDuration = 150 * time.Millisecond
)

// Line is the output a Driver drives; satisfied by *gpioctl.Line.
type Line interface {
	Set(ctx context.Context, level gpioctl.Level) error
}

type ledState struct {
	line Line

	mu          sync.Mutex
	pattern     model.BlinkPattern
	stepIdx     int
	stepElapsed time.Duration
	repsDone    int
	finished    bool // a finite pattern has run out its repetitions and holds its last step

	dutyAcc float64 // Bresenham-style running remainder for duty emulation

	transitioning bool
	transitionAt  float64 // current brightness while a ramp is in flight
	gen           uint64  // bumped on every SetPattern, lets a stale ramp bail out
}

// Driver advances every registered LED's BlinkPattern on a shared tick.
type Driver struct {
	tick time.Duration

	mu   sync.Mutex
	leds map[string]*ledState
}

func New(tick time.Duration) *Driver {
	return &Driver{tick: tick, leds: make(map[string]*ledState)}
}

// Register adds an LED driven by line, initially off.
func (d *Driver) Register(name string, line Line) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.leds[name] = &ledState{line: line, pattern: model.Off()}
}

// SetPattern replaces name's pattern and resets its step cursor, meant to
// be wired directly as a Topic[model.BlinkPattern] subscriber callback.
// Rather than snapping straight to the new pattern's first-step brightness,
// it fades there over rampDuration on its own goroutine.
func (d *Driver) SetPattern(name string, p model.BlinkPattern) {
	d.mu.Lock()
	l, ok := d.leds[name]
	d.mu.Unlock()
	if !ok {
		return
	}

	l.mu.Lock()
	from := l.currentBrightness()
	to := 0.0
	if len(p.Steps) > 0 {
		to = p.Steps[0].Brightness
	}
	l.pattern = p
	l.stepIdx = 0
	l.stepElapsed = 0
	l.repsDone = 0
	l.finished = false
	l.gen++
	gen := l.gen
	l.mu.Unlock()

	go l.rampTo(from, to, gen)
}

// currentBrightness reads the brightness the pattern cursor is on; l.mu
// must be held.
func (l *ledState) currentBrightness() float64 {
	if l.transitioning {
		return l.transitionAt
	}
	if len(l.pattern.Steps) == 0 {
		return 0
	}
	if l.finished {
		return l.pattern.Steps[len(l.pattern.Steps)-1].Brightness
	}
	return l.pattern.Steps[l.stepIdx].Brightness
}

// rampTo fades brightness from..to using x/ramp.StartLinear, publishing
// each intermediate level through transitionAt. It abandons itself as soon
// as gen is superseded by a later SetPattern call.
func (l *ledState) rampTo(from, to float64, gen uint64) {
	l.mu.Lock()
	l.transitioning = true
	l.transitionAt = from
	l.mu.Unlock()

	cur := uint16(mathx.Clamp(from, 0, 1) * rampScale)
	target := uint16(mathx.Clamp(to, 0, 1) * rampScale)

	ramp.StartLinear(cur, target, rampScale, uint32(rampDuration/time.Millisecond), rampSteps,
		func(d time.Duration) bool {
			time.Sleep(d)
			l.mu.Lock()
			live := l.gen == gen
			l.mu.Unlock()
			return live
		},
		func(level uint16) {
			l.mu.Lock()
			l.transitionAt = float64(level) / rampScale
			l.mu.Unlock()
		},
	)

	l.mu.Lock()
	if l.gen == gen {
		l.transitioning = false
	}
	l.mu.Unlock()
}

// Run advances every LED once per tick until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) {
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.advanceAll(ctx)
		}
	}
}

func (d *Driver) advanceAll(ctx context.Context) {
	d.mu.Lock()
	states := make([]*ledState, 0, len(d.leds))
	for _, l := range d.leds {
		states = append(states, l)
	}
	d.mu.Unlock()

	for _, l := range states {
		level := l.advance(d.tick)
		_ = l.line.Set(ctx, level)
	}
}

// advance moves the LED's pattern cursor forward by dt and returns the
// on/off level to drive this tick. While a pattern-switch ramp is still in
// flight, the cursor is held and the ramp's current brightness is driven
// instead.
func (l *ledState) advance(dt time.Duration) gpioctl.Level {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.transitioning {
		return l.duty(l.transitionAt)
	}

	if len(l.pattern.Steps) == 0 {
		return gpioctl.Low
	}

	if l.finished {
		last := l.pattern.Steps[len(l.pattern.Steps)-1]
		return l.duty(last.Brightness)
	}

	step := l.pattern.Steps[l.stepIdx]
	l.stepElapsed += dt
	for l.stepElapsed >= time.Duration(step.DurationMS)*time.Millisecond && step.DurationMS > 0 {
		l.stepElapsed -= time.Duration(step.DurationMS) * time.Millisecond
		l.stepIdx++
		if l.stepIdx >= len(l.pattern.Steps) {
			l.stepIdx = 0
			l.repsDone++
			if l.pattern.Repetitions > 0 && l.repsDone >= l.pattern.Repetitions {
				// Finite repetition ends on the last step's brightness
				// and holds it until the next SetPattern.
				l.finished = true
				last := l.pattern.Steps[len(l.pattern.Steps)-1]
				return l.duty(last.Brightness)
			}
		}
		step = l.pattern.Steps[l.stepIdx]
	}

	return l.duty(step.Brightness)
}

// duty quantizes brightness in [0,1] to an on/off decision for this tick
// using a running-remainder accumulator, so that e.g. brightness=0.3
// asserts the line on roughly 3 ticks out of 10 rather than never.
func (l *ledState) duty(brightness float64) gpioctl.Level {
	b := mathx.Clamp(brightness, 0, 1)
	l.dutyAcc += b
	if l.dutyAcc >= 1 {
		l.dutyAcc -= 1
		return gpioctl.High
	}
	if b <= 0 {
		return gpioctl.Low
	}
	if b >= 1 {
		return gpioctl.High
	}
	return gpioctl.Low
}
