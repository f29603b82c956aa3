// Package wireup performs the daemon's single startup wire-up phase:
// register every topic on a broker.Builder, build
// every hardware/collaborator adapter against those topics, and hand back a
// System whose Run starts every subsystem's goroutine. Nothing here runs
// concurrently with itself; concurrency starts only once System.Run is
// called.
package wireup

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/linux-automation/tacd/internal/adc"
	"github.com/linux-automation/tacd/internal/broker"
	"github.com/linux-automation/tacd/internal/buttons"
	"github.com/linux-automation/tacd/internal/config"
	"github.com/linux-automation/tacd/internal/dutpower"
	"github.com/linux-automation/tacd/internal/execcli"
	"github.com/linux-automation/tacd/internal/gpioctl"
	"github.com/linux-automation/tacd/internal/i2cbus"
	"github.com/linux-automation/tacd/internal/iobus"
	"github.com/linux-automation/tacd/internal/journal"
	"github.com/linux-automation/tacd/internal/led"
	"github.com/linux-automation/tacd/internal/measure"
	"github.com/linux-automation/tacd/internal/model"
	"github.com/linux-automation/tacd/internal/netinfo"
	"github.com/linux-automation/tacd/internal/rauc"
	"github.com/linux-automation/tacd/internal/ring"
	"github.com/linux-automation/tacd/internal/svcbridge"
	"github.com/linux-automation/tacd/internal/tactemp"
	"github.com/linux-automation/tacd/internal/topic"
	"github.com/linux-automation/tacd/internal/ui"
	"github.com/linux-automation/tacd/internal/updatechannels"
)

// System holds every started subsystem plus the pieces the HTTP edge
// (internal/api) and cmd/tacd need: the broker, the setup-mode topic, the
// journal tailer, and the UI's display-content topic.
type System struct {
	Broker      *broker.Broker
	SetupMode   *topic.Topic[bool]
	Journal     *journal.Tailer
	Display     *topic.Topic[[]byte]
	DutPower    *dutpower.Supervisor
	RaucAdapter *rauc.Adapter

	runners []func(context.Context)
}

// Run starts every wired subsystem on its own goroutine and blocks until
// ctx is cancelled, then waits for each to return.
func (s *System) Run(ctx context.Context) {
	done := make(chan struct{}, len(s.runners))
	for _, r := range s.runners {
		r := r
		go func() {
			r(ctx)
			done <- struct{}{}
		}()
	}
	<-ctx.Done()
	for range s.runners {
		<-done
	}
}

// Build performs the single startup wire-up phase. Any returned error is
// an unrecoverable wire-up failure; the caller should exit non-zero
// without starting anything.
func Build(cfg config.Config, log zerolog.Logger) (*System, error) {
	b := broker.NewBuilder()

	setupMode := broker.Register[bool](b, "/v1/tac/setup_mode", true, true)
	setupMode.Publish(cfg.SetupMode)

	dutPowerStatus := broker.Register[model.DutPwrStatus](b, "/v1/dut/powered", true, false)
	dutPowerReq := broker.Register[model.DutPwrRequest](b, "/v1/dut/powered/request", false, true)
	voltage := broker.Register[model.Measurement](b, "/v1/dut/feedback/voltage", true, false)
	current := broker.Register[model.Measurement](b, "/v1/dut/feedback/current", true, false)

	screen := broker.Register[model.Screen](b, "/v1/tac/display/screen", true, true)
	alerts := broker.Register[[]model.Screen](b, "/v1/tac/display/alerts", true, false)
	locator := broker.Register[bool](b, "/v1/tac/display/locator", true, true)
	content := broker.Register[[]byte](b, "/v1/tac/display/content", true, false)
	buttonEvents := broker.Register[model.ButtonEvent](b, "/v1/tac/display/buttons", true, false)

	boardTemp := broker.Register[model.Measurement](b, "/v1/tac/temperatures", true, false)

	raucOp := broker.Register[string](b, "/v1/tac/update/operation", true, false)
	raucProgress := broker.Register[model.RaucProgress](b, "/v1/tac/update/progress", true, false)
	raucSlots := broker.Register[model.RaucSlots](b, "/v1/tac/update/slots", true, false)
	raucLastErr := broker.Register[string](b, "/v1/tac/update/last_error", true, false)
	raucReboot := broker.Register[bool](b, "/v1/tac/update/should_reboot", true, false)
	raucInhibited := broker.Register[bool](b, "/v1/tac/update/inhibited", true, true)
	raucChannels := broker.Register[[]model.UpdateChannel](b, "/v1/tac/update/channels", true, false)
	raucInstall := broker.Register[rauc.InstallSpec](b, "/v1/tac/update/install", false, true)
	raucOverride := broker.Register[bool](b, "/v1/tac/update/override", false, true)
	raucReload := broker.Register[bool](b, "/v1/tac/update/channels/reload", false, true)

	hostname := broker.Register[string](b, "/v1/tac/network/hostname", true, false)
	bridgeAddrs := broker.Register[[]string](b, "/v1/tac/network/bridge_addrs", true, false)

	ioBusInfo := broker.Register[model.IOBusInfo](b, "/v1/iobus/info", true, false)
	ioBusNodes := broker.Register[[]model.IOBusNode](b, "/v1/iobus/nodes", true, false)

	led0 := broker.Register[model.BlinkPattern](b, "/v1/tac/led/status", true, false)
	led1 := broker.Register[model.BlinkPattern](b, "/v1/tac/led/out0", true, false)
	led2 := broker.Register[model.BlinkPattern](b, "/v1/tac/led/out1", true, false)

	svcStatuses := map[string]*topic.Topic[model.ServiceStatus]{}
	for _, unit := range cfg.Services {
		svcStatuses[unit] = broker.Register[model.ServiceStatus](b, "/v1/tac/service/"+unit+"/status", true, false)
	}

	br := b.Build()

	sys := &System{Broker: br, SetupMode: setupMode, Display: content}

	gpio, err := gpioctl.New(cfg.GPIOCtlBin)
	if err != nil {
		return nil, err
	}
	bus := i2cbus.New(cfg.I2CBus)

	vChan, err := adc.NewIIOChannel(cfg.IIOBasePath, cfg.ADC.DutVoltage)
	if err != nil {
		log.Warn().Err(err).Msg("wireup: DUT voltage channel unavailable, supervisor will see no samples")
	}
	iChan, err := adc.NewIIOChannel(cfg.IIOBasePath, cfg.ADC.DutCurrent)
	if err != nil {
		log.Warn().Err(err).Msg("wireup: DUT current channel unavailable, supervisor will see no samples")
	}

	vRing := ring.New[model.Measurement](64)
	iRing := ring.New[model.Measurement](64)

	supervisor := dutpower.New(dutpower.DefaultLimits(), dutpower.Lines{
		Switch:    gpio.Line(cfg.Pins.DutSwitch),
		Discharge: gpio.Line(cfg.Pins.DutDischarge),
	}, vRing, iRing, dutPowerStatus, log.With().Str("component", "dutpower").Logger())
	sys.DutPower = supervisor

	dutPowerReq.Subscribe(func(_, _ uint64, req model.DutPwrRequest) {
		supervisor.RequestPower(req)
	})

	sys.runners = append(sys.runners, supervisor.Run)

	if vChan != nil {
		sys.runners = append(sys.runners, (&measure.FastChannel{Name: "dut_voltage_fast", Ch: vChan, Period: time.Millisecond, Ring: vRing}).Run)
		sys.runners = append(sys.runners, (&measure.UIChannel{Name: "dut_voltage", Ch: vChan, Period: 100 * time.Millisecond, Topic: voltage, Log: log}).Run)
	}
	if iChan != nil {
		sys.runners = append(sys.runners, (&measure.FastChannel{Name: "dut_current_fast", Ch: iChan, Period: time.Millisecond, Ring: iRing}).Run)
		sys.runners = append(sys.runners, (&measure.UIChannel{Name: "dut_current", Ch: iChan, Period: 100 * time.Millisecond, Topic: current, Log: log}).Run)
	}

	ledDriver := led.New(20 * time.Millisecond)
	ledDriver.Register("status", gpio.Line(cfg.Pins.LEDStatus))
	ledDriver.Register("out0", gpio.Line(cfg.Pins.LEDOut0))
	ledDriver.Register("out1", gpio.Line(cfg.Pins.LEDOut1))
	led0.Subscribe(func(_, _ uint64, p model.BlinkPattern) { ledDriver.SetPattern("status", p) })
	led1.Subscribe(func(_, _ uint64, p model.BlinkPattern) { ledDriver.SetPattern("out0", p) })
	led2.Subscribe(func(_, _ uint64, p model.BlinkPattern) { ledDriver.SetPattern("out1", p) })
	locator.Subscribe(func(_, _ uint64, on bool) {
		if on {
			ledDriver.SetPattern("status", model.LocatorPattern())
		} else if p, _, ok := led0.TryGet(); ok {
			ledDriver.SetPattern("status", p)
		} else {
			ledDriver.SetPattern("status", model.Off())
		}
	})
	sys.runners = append(sys.runners, ledDriver.Run)

	buttonSource := buttons.New(cfg.ButtonPollEvery, 3, map[model.Button]buttons.Wiring{
		model.BtnUpper: {Line: gpio.Line(cfg.Pins.ButtonUpper), PressedOnLevel: gpioctl.Low},
		model.BtnLower: {Line: gpio.Line(cfg.Pins.ButtonLower), PressedOnLevel: gpioctl.Low},
	})

	fb := ui.NewFramebuffer(128, 64)
	arbiter := ui.New(screen, alerts, locator, content, fb, cfg.IdleTimeout, 20)
	buttonSource.Publish = func(ev model.ButtonEvent) {
		buttonEvents.Publish(ev)
		arbiter.HandleButton(ev)
	}
	sys.runners = append(sys.runners, buttonSource.Run)
	sys.runners = append(sys.runners, arbiter.Run)

	tempSvc := tactemp.New(bus, boardTemp, 10*time.Second, log.With().Str("component", "tactemp").Logger())
	sys.runners = append(sys.runners, tempSvc.Run)

	raucCLI, err := execcli.New(cfg.RaucBin)
	if err != nil {
		return nil, err
	}
	raucAdapter := rauc.New(raucCLI, rauc.Topics{
		Operation:    raucOp,
		Progress:     raucProgress,
		Slots:        raucSlots,
		LastError:    raucLastErr,
		ShouldReboot: raucReboot,
		Inhibited:    raucInhibited,
		DutPower:     dutPowerStatus,
	}, log.With().Str("component", "rauc").Logger())
	sys.RaucAdapter = raucAdapter
	sys.runners = append(sys.runners, func(ctx context.Context) {
		runEvery(ctx, 10*time.Second, func() {
			if err := raucAdapter.RefreshStatus(ctx); err != nil {
				log.Debug().Err(err).Msg("rauc status refresh failed")
			}
		})
	})
	raucInstall.Subscribe(func(_, _ uint64, spec rauc.InstallSpec) {
		if err := raucAdapter.Install(context.Background(), spec); err != nil {
			log.Warn().Err(err).Msg("rauc install rejected")
		}
	})
	raucOverride.Subscribe(func(_, _ uint64, v bool) { raucAdapter.SetOverride(v) })
	raucReload.Subscribe(func(_, _ uint64, v bool) {
		if v {
			if err := raucAdapter.HandleChannelsReload(context.Background()); err != nil {
				log.Warn().Err(err).Msg("update channel reload failed")
			}
		}
	})

	svcCLI, err := execcli.New(cfg.SystemctlBin)
	if err != nil {
		return nil, err
	}
	var svcRefreshers []func(context.Context)
	for _, unit := range cfg.Services {
		svc := svcbridge.NewService(svcCLI, unit, svcStatuses[unit])
		svcRefreshers = append(svcRefreshers, func(ctx context.Context) {
			_ = svc.Refresh(ctx)
		})
	}
	sys.runners = append(sys.runners, periodicAll(svcRefreshers, 5*time.Second))

	netCollector := netinfo.New(cfg.BridgeName)
	sys.runners = append(sys.runners, func(ctx context.Context) {
		runEvery(ctx, 10*time.Second, func() {
			if name, err := netCollector.Hostname(); err == nil {
				hostname.Publish(name)
			}
			if addrs, err := netCollector.BridgeAddrs(); err == nil {
				bridgeAddrs.Publish(addrs)
			}
		})
	})

	ioBusClient := iobus.New(cfg.IOBusURL, ioBusInfo, ioBusNodes)
	sys.runners = append(sys.runners, func(ctx context.Context) {
		runEvery(ctx, 5*time.Second, func() {
			if err := ioBusClient.Refresh(ctx); err != nil {
				log.Debug().Err(err).Msg("iobus refresh failed")
			}
		})
	})

	updatePoller := updatechannels.New(toUpdateChannelConfigs(cfg.Channels), &updatechannels.HTTPFetcher{}, raucChannels)
	raucAdapter.ReloadChannels = updatePoller.ReloadNow
	sys.runners = append(sys.runners, updatePoller.Run)

	sys.Journal = journal.New(cfg.JournalctlBin)

	return sys, nil
}

func toUpdateChannelConfigs(chs []config.Channel) []updatechannels.Config {
	out := make([]updatechannels.Config, len(chs))
	for i, c := range chs {
		out[i] = updatechannels.Config{
			Name:             c.Name,
			DisplayName:      c.DisplayName,
			Description:      c.Description,
			URL:              c.URL,
			PollingIntervalS: c.PollingIntervalS,
			Enabled:          c.Enabled,
			Primary:          c.Primary,
		}
	}
	return out
}

// periodicAll wraps a batch of zero-arg refresh funcs (here: per-service
// systemd status refreshers) into a single runner ticking every interval.
func periodicAll(fns []func(context.Context), interval time.Duration) func(context.Context) {
	return func(ctx context.Context) {
		runEvery(ctx, interval, func() {
			for _, fn := range fns {
				fn(ctx)
			}
		})
	}
}

func runEvery(ctx context.Context, interval time.Duration, fn func()) {
	fn()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
