// Package updatechannels polls a configured list of RAUC update channels
// for manifest metadata and publishes the merged channel table.
// Scheduling reuses internal/poller's heap-based jittered dispatcher
// instead of one ticker per channel.
package updatechannels

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/linux-automation/tacd/internal/model"
	"github.com/linux-automation/tacd/internal/poller"
	"github.com/linux-automation/tacd/internal/topic"
)

// Config describes one configured channel (the "configured channel list").
type Config struct {
	Name             string
	DisplayName      string
	Description      string
	URL              string
	PollingIntervalS int
	Enabled          bool
	Primary          bool
}

// Fetcher retrieves the bundle identifier a channel's manifest currently
// points at. Abstracted so tests don't need a real HTTP server.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (bundle string, err error)
}

// HTTPFetcher fetches the manifest over plain HTTP(S) using the standard
// library's net/http.
type HTTPFetcher struct{ Client *http.Client }

func (f HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// Poller drives the channel list.
type Poller struct {
	channels []Config
	fetcher  Fetcher
	out      *topic.Topic[[]model.UpdateChannel]

	core *poller.Poller
	reqs chan poller.Req

	mu      sync.Mutex
	enabled bool
	bundles map[string]string
}

func New(channels []Config, fetcher Fetcher, out *topic.Topic[[]model.UpdateChannel]) *Poller {
	reqs := make(chan poller.Req, len(channels)+1)
	p := &Poller{
		channels: channels,
		fetcher:  fetcher,
		out:      out,
		core:     poller.New(reqs),
		reqs:     reqs,
		enabled:  true,
		bundles:  make(map[string]string),
	}
	p.publish()
	return p
}

// Run starts the poll schedule and services fetch requests until ctx is
// cancelled.
func (p *Poller) Run(ctx context.Context) {
	for _, c := range p.channels {
		if c.Enabled {
			interval := time.Duration(c.PollingIntervalS) * time.Second
			p.core.Upsert(c.Name, interval, interval/5)
		}
	}
	go p.core.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-p.reqs:
			p.fetchOne(ctx, req.Key)
		}
	}
}

// ReloadNow fetches every enabled channel immediately, satisfying the
// "channels/reload: true" verb.
func (p *Poller) ReloadNow(ctx context.Context) error {
	for _, c := range p.channels {
		if c.Enabled {
			p.fetchOne(ctx, c.Name)
		}
	}
	return nil
}

// SetPollingEnabled toggles the recurring cadence without forgetting the
// configured channel list.
func (p *Poller) SetPollingEnabled(enabled bool) {
	p.mu.Lock()
	p.enabled = enabled
	p.mu.Unlock()
	for _, c := range p.channels {
		if !enabled {
			p.core.Stop(c.Name)
		} else if c.Enabled {
			interval := time.Duration(c.PollingIntervalS) * time.Second
			p.core.Upsert(c.Name, interval, interval/5)
		}
	}
}

func (p *Poller) fetchOne(ctx context.Context, name string) {
	var cfg Config
	found := false
	for _, c := range p.channels {
		if c.Name == name {
			cfg, found = c, true
			break
		}
	}
	if !found {
		return
	}
	bundle, err := p.fetcher.Fetch(ctx, cfg.URL)
	p.mu.Lock()
	if err == nil {
		p.bundles[name] = bundle
	}
	p.mu.Unlock()
	p.publish()
}

func (p *Poller) publish() {
	p.mu.Lock()
	out := make([]model.UpdateChannel, 0, len(p.channels))
	for _, c := range p.channels {
		out = append(out, model.UpdateChannel{
			Name:             c.Name,
			DisplayName:      c.DisplayName,
			Description:      c.Description,
			URL:              c.URL,
			PollingIntervalS: c.PollingIntervalS,
			Enabled:          c.Enabled,
			Primary:          c.Primary,
			Bundle:           p.bundles[c.Name],
		})
	}
	p.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	p.out.Publish(out)
}
