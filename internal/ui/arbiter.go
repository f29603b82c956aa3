// Package ui implements the screen/button arbiter: it
// owns the LCD framebuffer, decides which screen is effectively visible
// (highest-priority modal alert, else the user-selected normal screen),
// routes button presses to whichever is active, and republishes every
// redraw as a PNG topic for remote viewing.
package ui

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/linux-automation/tacd/internal/model"
	"github.com/linux-automation/tacd/internal/topic"
	"golang.org/x/time/rate"
)

// Renderer draws one screen's content and reacts to Lower-button presses
// while that screen is active.
type Renderer interface {
	Render(fb *Framebuffer, screen model.Screen)
	HandlePress(dir model.PressDir, dur model.PressDur)
}

// noopRenderer is used for any screen without a registered Renderer, so
// the arbiter can always produce a frame.
type noopRenderer struct{ name model.Screen }

func (n noopRenderer) Render(fb *Framebuffer, screen model.Screen) {
	fb.Clear()
	fb.FillRect(2, 2, fb.Bounds().Dx()-2, 10)
}
func (noopRenderer) HandlePress(model.PressDir, model.PressDur) {}

// Arbiter is the UI's cooperative core.
type Arbiter struct {
	ScreenTopic  *topic.Topic[model.Screen]
	AlertsTopic  *topic.Topic[[]model.Screen]
	LocatorTopic *topic.Topic[bool]
	ContentTopic *topic.Topic[[]byte]

	fb          *Framebuffer
	idleTimeout time.Duration
	limiter     *rate.Limiter

	mu           sync.Mutex
	renderers    map[model.Screen]Renderer
	lastActivity time.Time

	redraw chan struct{}
}

// New wires an Arbiter around already-registered topics. maxHz bounds the
// redraw rate, throttled to at most ~20 Hz.
func New(screen *topic.Topic[model.Screen], alerts *topic.Topic[[]model.Screen], locator *topic.Topic[bool], content *topic.Topic[[]byte], fb *Framebuffer, idleTimeout time.Duration, maxHz float64) *Arbiter {
	a := &Arbiter{
		ScreenTopic:  screen,
		AlertsTopic:  alerts,
		LocatorTopic: locator,
		ContentTopic: content,
		fb:           fb,
		idleTimeout:  idleTimeout,
		limiter:      rate.NewLimiter(rate.Limit(maxHz), 1),
		renderers:    make(map[model.Screen]Renderer),
		lastActivity: time.Now(),
		redraw:       make(chan struct{}, 1),
	}
	a.ScreenTopic.Subscribe(func(_, _ uint64, _ model.Screen) { a.scheduleRedraw() })
	a.AlertsTopic.Subscribe(func(_, _ uint64, _ []model.Screen) { a.scheduleRedraw() })
	a.LocatorTopic.Subscribe(func(_, _ uint64, locatorOn bool) {
		a.fb.SetInverted(locatorOn)
		a.scheduleRedraw()
	})
	return a
}

// RegisterRenderer attaches the Renderer for a specific screen. Screens
// that never register one still render (as a placeholder bar) rather
// than panicking the arbiter.
func (a *Arbiter) RegisterRenderer(s model.Screen, r Renderer) {
	a.mu.Lock()
	a.renderers[s] = r
	a.mu.Unlock()
}

// AssertAlert adds s to the alert set if not already present, at the back
// of arrival order (ties within the set are broken by model.Priority, not
// arrival order).
func (a *Arbiter) AssertAlert(s model.Screen) {
	a.AlertsTopic.Modify(func(cur []model.Screen, ok bool) ([]model.Screen, bool) {
		for _, existing := range cur {
			if existing == s {
				return cur, false
			}
		}
		return append(append([]model.Screen{}, cur...), s), true
	})
}

// DeassertAlert removes s from the alert set.
func (a *Arbiter) DeassertAlert(s model.Screen) {
	a.AlertsTopic.Modify(func(cur []model.Screen, ok bool) ([]model.Screen, bool) {
		next := make([]model.Screen, 0, len(cur))
		changed := false
		for _, existing := range cur {
			if existing == s {
				changed = true
				continue
			}
			next = append(next, existing)
		}
		return next, changed
	})
}

// effective returns the screen that should currently be shown: the
// highest-priority asserted alert, else the user-selected normal screen.
func (a *Arbiter) effective() model.Screen {
	alerts, _, _ := a.AlertsTopic.TryGet()
	if len(alerts) > 0 {
		sorted := append([]model.Screen{}, alerts...)
		sort.Slice(sorted, func(i, j int) bool { return model.Priority(sorted[i]) > model.Priority(sorted[j]) })
		return sorted[0]
	}
	if s, _, ok := a.ScreenTopic.TryGet(); ok {
		return s
	}
	return model.NormalScreens[0]
}

// CycleScreen advances to the next normal screen, asserting the
// screensaver alert once the cycle wraps back to the first screen.
func (a *Arbiter) CycleScreen() {
	cur, _, ok := a.ScreenTopic.TryGet()
	if !ok {
		cur = model.NormalScreens[0]
	}
	idx := 0
	for i, s := range model.NormalScreens {
		if s == cur {
			idx = i
			break
		}
	}
	next := model.NormalScreens[(idx+1)%len(model.NormalScreens)]
	a.ScreenTopic.Publish(next)
	if next == model.NormalScreens[0] {
		a.AssertAlert(model.ScreenSaver)
	}
}

// HandleButton routes one button event, meant to be wired directly as a
// Topic[model.ButtonEvent] subscriber callback.
func (a *Arbiter) HandleButton(ev model.ButtonEvent) {
	a.mu.Lock()
	a.lastActivity = time.Now()
	a.mu.Unlock()

	showing := a.effective()

	// Screensaver swallows the first press that wakes it.
	if showing == model.ScreenSaver {
		a.DeassertAlert(model.ScreenSaver)
		return
	}

	if !model.IsModal(showing) && ev.Dir == model.DirPress && ev.Btn == model.BtnUpper && ev.Dur == model.DurShort {
		a.CycleScreen()
		return
	}

	a.mu.Lock()
	r, ok := a.renderers[showing]
	a.mu.Unlock()
	if ok {
		r.HandlePress(ev.Dir, ev.Dur)
	}
}

func (a *Arbiter) scheduleRedraw() {
	select {
	case a.redraw <- struct{}{}:
	default:
	}
}

// Run drives the idle timer and the throttled redraw loop until ctx is
// cancelled.
func (a *Arbiter) Run(ctx context.Context) {
	idleTicker := time.NewTicker(a.idleTimeout / 4)
	defer idleTicker.Stop()

	a.scheduleRedraw()
	for {
		select {
		case <-ctx.Done():
			return
		case <-idleTicker.C:
			a.mu.Lock()
			idle := time.Since(a.lastActivity) >= a.idleTimeout
			a.mu.Unlock()
			if idle && a.effective() != model.ScreenSaver {
				a.AssertAlert(model.ScreenSaver)
			}
		case <-a.redraw:
			if err := a.limiter.Wait(ctx); err != nil {
				return
			}
			a.renderOnce()
		}
	}
}

func (a *Arbiter) renderOnce() {
	showing := a.effective()
	a.mu.Lock()
	r, ok := a.renderers[showing]
	a.mu.Unlock()
	if !ok {
		r = noopRenderer{name: showing}
	}
	r.Render(a.fb, showing)
	if png, err := a.fb.PNG(); err == nil {
		a.ContentTopic.Publish(png)
	}
}
