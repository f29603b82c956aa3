// Package dutpower implements the realtime DUT power supervisor: a
// fixed-rate sample -> decide -> actuate loop with a sticky-fault safety
// state machine.
//
// Limit windows are checked against ring-buffered V/I samples and latched
// on trip; a fault, once latched, persists until an explicit power
// request clears it (never on a merely-good subsequent sample). The
// control loop and its decision function are kept separate (Run vs step)
// so the decision logic can be driven by a fake clock in tests.
package dutpower

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/linux-automation/tacd/internal/gpioctl"
	"github.com/linux-automation/tacd/internal/model"
	"github.com/linux-automation/tacd/internal/ring"
	"github.com/linux-automation/tacd/internal/topic"
	"github.com/rs/zerolog"
)

// Limits are the build-time safety thresholds; the exact K and period are
// hardware-tuned constants, not runtime-configurable topics.
type Limits struct {
	Period                time.Duration
	MaxCurrent            float64 // I_max, amps
	MaxVoltage            float64 // V_max, volts
	MinVoltage            float64 // V_rev, reverse-polarity threshold (negative)
	MaxPower              float64 // P_max, watts
	SettleDuration        time.Duration
	OverCurrentSamples    int // K
	DeadlineMissesToFault int // N
}

// DefaultLimits holds the production safety thresholds, sampled at a
// nominal 1 kHz rate.
func DefaultLimits() Limits {
	return Limits{
		Period:                time.Millisecond,
		MaxCurrent:            5.0,
		MaxVoltage:            48.0,
		MinVoltage:            -1.0,
		MaxPower:              200.0,
		SettleDuration:        120 * time.Millisecond,
		OverCurrentSamples:    5,
		DeadlineMissesToFault: 3,
	}
}

// Line is the subset of *gpioctl.Line the supervisor needs; declared as
// an interface so tests can substitute a fake without exec-ing anything.
type Line interface {
	Set(ctx context.Context, level gpioctl.Level) error
	Float(ctx context.Context) error
}

// Lines are the digital outputs the supervisor drives. Off must be
// reachable from every state without error handling beyond logging: a
// failed actuation is itself treated as a fault.
type Lines struct {
	Switch    Line // asserted High = DUT powered
	Discharge Line // asserted High = actively pulled low/discharged
}

// Supervisor is the realtime core. Construct with New, then run it on its
// own goroutine via Run. Callers should pin it to a dedicated OS thread
// with runtime.LockOSThread if the platform supports realtime scheduling.
type Supervisor struct {
	limits Limits
	lines  Lines
	vRing  *ring.Ring[model.Measurement]
	iRing  *ring.Ring[model.Measurement]
	status *topic.Topic[model.DutPwrStatus]
	log    zerolog.Logger

	pending atomic.Pointer[model.DutPwrRequest]

	state              model.DutPwrStatus
	overCurrentStreak  int
	deadlineMissStreak int
	changingSince      time.Time
}

func New(limits Limits, lines Lines, vRing, iRing *ring.Ring[model.Measurement], status *topic.Topic[model.DutPwrStatus], log zerolog.Logger) *Supervisor {
	return &Supervisor{
		limits: limits,
		lines:  lines,
		vRing:  vRing,
		iRing:  iRing,
		status: status,
		log:    log,
		state:  model.DutOff,
	}
}

// RequestPower delivers req to the supervisor's command mailbox. It is
// safe to call from any goroutine; only the most recent unconsumed
// request is kept.
func (s *Supervisor) RequestPower(req model.DutPwrRequest) {
	r := req
	s.pending.Store(&r)
}

// Run executes the fixed-rate loop until ctx is cancelled. It never
// suspends on anything but its own monotonic sleep: it does not read the
// broker, does not allocate in steady state beyond what the Go runtime
// does for a channel-free busy loop, and touches no lock shared with the
// broker.
func (s *Supervisor) Run(ctx context.Context) {
	s.publish(s.state) // initial retained value

	next := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.actuateSafe(ctx, "shutdown")
			return
		default:
		}

		next = next.Add(s.limits.Period)
		if d := time.Until(next); d > 0 {
			time.Sleep(d)
		}

		late := time.Since(next)
		if late > s.limits.Period {
			s.deadlineMissStreak++
		} else {
			s.deadlineMissStreak = 0
		}

		s.step(ctx, time.Now())
	}
}

// step runs one iteration's decide+actuate+publish. It is a pure-ish
// method (all inputs are struct fields or the passed clock reading) kept
// separate from Run so it can be unit tested without real timing.
func (s *Supervisor) step(ctx context.Context, now time.Time) {
	if req := s.pending.Swap(nil); req != nil {
		s.applyRequest(ctx, *req, now)
	}

	if s.state != model.DutOn && s.state != model.DutChanging {
		return
	}

	fault, ok := s.detectFault(now)
	if s.deadlineMissStreak >= s.limits.DeadlineMissesToFault {
		fault, ok = model.DutRealtimeViolation, true
	}
	if ok {
		s.latchFault(ctx, fault)
		return
	}

	if s.state == model.DutChanging && now.Sub(s.changingSince) >= s.limits.SettleDuration {
		s.transition(ctx, model.DutOn, func(ctx context.Context) error { return nil })
	}
}

// detectFault applies the tie-break priority order:
// RealtimeViolation > InvertedPolarity > OverVoltage > OverCurrent. The
// caller folds in the RealtimeViolation case separately since it depends
// on loop-level deadline bookkeeping, not sample values.
func (s *Supervisor) detectFault(now time.Time) (model.DutPwrStatus, bool) {
	vSample, hasV := s.vRing.Latest()
	iSample, hasI := s.iRing.Latest()
	if !hasV && !hasI {
		return "", false
	}
	v, i := vSample.Value, iSample.Value

	if hasV && v < s.limits.MinVoltage {
		return model.DutInvertedPolarity, true
	}
	if hasV && v > s.limits.MaxVoltage {
		return model.DutOverVoltage, true
	}

	overPower := hasV && hasI && abs(i)*v > s.limits.MaxPower
	if overPower {
		return model.DutOverCurrent, true
	}
	if hasI && abs(i) > s.limits.MaxCurrent {
		s.overCurrentStreak++
	} else {
		s.overCurrentStreak = 0
	}
	if s.overCurrentStreak >= s.limits.OverCurrentSamples {
		return model.DutOverCurrent, true
	}
	return "", false
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func (s *Supervisor) applyRequest(ctx context.Context, req model.DutPwrRequest, now time.Time) {
	switch req {
	case model.ReqOn:
		s.overCurrentStreak = 0
		s.deadlineMissStreak = 0
		s.changingSince = now
		s.transition(ctx, model.DutChanging, s.actuateOn)
	case model.ReqOff:
		s.overCurrentStreak = 0
		s.deadlineMissStreak = 0
		s.transition(ctx, model.DutOff, s.actuateOff)
	case model.ReqOffFloating:
		s.overCurrentStreak = 0
		s.deadlineMissStreak = 0
		s.transition(ctx, model.DutOffFloating, s.actuateOffFloating)
	}
}

func (s *Supervisor) latchFault(ctx context.Context, fault model.DutPwrStatus) {
	if s.state == fault {
		return
	}
	s.transition(ctx, fault, s.actuateOff)
}

// transition actuates before publishing, within the same call: status
// publication must happen synchronously within the same loop iteration
// as the actuation decision.
func (s *Supervisor) transition(ctx context.Context, next model.DutPwrStatus, actuate func(context.Context) error) {
	if err := actuate(ctx); err != nil {
		s.log.Error().Err(err).Str("target_state", string(next)).Msg("dutpower: actuation failed, latching RealtimeViolation")
		next = model.DutRealtimeViolation
		_ = s.actuateOff(ctx)
	}
	if next == s.state {
		return
	}
	s.state = next
	s.publish(next)
}

func (s *Supervisor) publish(st model.DutPwrStatus) {
	s.status.Publish(st)
}

func (s *Supervisor) actuateOn(ctx context.Context) error {
	if err := s.lines.Discharge.Set(ctx, gpioctl.Low); err != nil {
		return err
	}
	return s.lines.Switch.Set(ctx, gpioctl.High)
}

func (s *Supervisor) actuateOff(ctx context.Context) error {
	if err := s.lines.Switch.Set(ctx, gpioctl.Low); err != nil {
		return err
	}
	return s.lines.Discharge.Set(ctx, gpioctl.High)
}

func (s *Supervisor) actuateOffFloating(ctx context.Context) error {
	if err := s.lines.Switch.Set(ctx, gpioctl.Low); err != nil {
		return err
	}
	return s.lines.Discharge.Float(ctx)
}

// actuateSafe is used on shutdown: best-effort, errors only logged, since
// there is no further state machine to transition into. The supervisor
// has no cancellation of its own; it is stopped only by process exit,
// after first latching the switch to off.
func (s *Supervisor) actuateSafe(ctx context.Context, reason string) {
	if err := s.actuateOff(ctx); err != nil {
		s.log.Error().Err(err).Str("reason", reason).Msg("dutpower: failed to reach safe state on exit")
	}
}

// State returns the supervisor's current published status, for tests and
// diagnostics.
func (s *Supervisor) State() model.DutPwrStatus { return s.state }
