package tactemp

import (
	"context"
	"time"

	"github.com/linux-automation/tacd/internal/errkind"
	"github.com/linux-automation/tacd/internal/model"
	"github.com/linux-automation/tacd/internal/topic"
	"github.com/rs/zerolog"
)

// Service polls the onboard AHT20 at a slow cadence and publishes board
// temperature as a Measurement. Absence of the sensor is not a fatal
// wire-up error (it is not safety-critical); reads simply stop producing
// values and the topic stays at its last retained value.
type Service struct {
	dev      Device
	topic    *topic.Topic[model.Measurement]
	interval time.Duration
	log      zerolog.Logger
	start    time.Time
}

func New(bus interface {
	Tx(addr uint16, w, r []byte) error
}, t *topic.Topic[model.Measurement], interval time.Duration, log zerolog.Logger) *Service {
	dev := Device{bus: bus, Address: Address}
	return &Service{dev: dev, topic: t, interval: interval, log: log, start: time.Now()}
}

func (s *Service) Run(ctx context.Context) {
	s.dev.Configure()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample, err := s.dev.Read()
			if err != nil {
				s.log.Warn().Err(errkind.Wrap(errkind.HardwareUnavailable, "tactemp.Read", err)).Msg("board temperature read failed")
				continue
			}
			s.topic.Publish(model.Measurement{
				TS:    time.Since(s.start).Milliseconds(),
				Value: sample.Celsius(),
			})
		}
	}
}
