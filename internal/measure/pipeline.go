// Package measure drives the analog sampling loops: one goroutine per
// analog channel, each running at its own fixed period. The goroutines
// are not locked to OS threads.
// UI-facing channels publish Measurement values onto a topic;
// supervisor-facing channels push onto a lock-free ring instead,
// bypassing the broker entirely to preserve deadlines.
package measure

import (
	"context"
	"time"

	"github.com/linux-automation/tacd/internal/adc"
	"github.com/linux-automation/tacd/internal/model"
	"github.com/linux-automation/tacd/internal/ring"
	"github.com/linux-automation/tacd/internal/topic"
	"github.com/rs/zerolog"
)

// UIChannel samples Ch every Period and publishes onto Topic. A tick that
// lands more than one full Period late is logged, not latched: missed
// deadlines on UI channels are recorded but never trip a fault.
type UIChannel struct {
	Name   string
	Ch     adc.Channel
	Period time.Duration
	Topic  *topic.Topic[model.Measurement]
	Log    zerolog.Logger
}

func (c *UIChannel) Run(ctx context.Context) {
	start := time.Now()
	ticker := time.NewTicker(c.Period)
	defer ticker.Stop()

	next := start.Add(c.Period)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if now.Sub(next) > c.Period {
				c.Log.Warn().
					Str("channel", c.Name).
					Dur("late_by", now.Sub(next)).
					Msg("measurement channel missed its deadline")
			}
			next = next.Add(c.Period)

			v, err := c.Ch.Read()
			if err != nil {
				c.Log.Warn().Str("channel", c.Name).Err(err).Msg("sample read failed")
				continue
			}
			c.Topic.Publish(model.Measurement{
				TS:    now.Sub(start).Milliseconds(),
				Value: v,
			})
		}
	}
}

// FastChannel samples Ch at Period and pushes samples onto Ring for the
// supervisor to consume via Ring.Latest(). It never touches the broker.
type FastChannel struct {
	Name   string
	Ch     adc.Channel
	Period time.Duration
	Ring   *ring.Ring[model.Measurement]
}

func (c *FastChannel) Run(ctx context.Context) {
	start := time.Now()
	ticker := time.NewTicker(c.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			v, err := c.Ch.Read()
			if err != nil {
				continue
			}
			c.Ring.Push(model.Measurement{
				TS:    now.Sub(start).Milliseconds(),
				Value: v,
			})
		}
	}
}
