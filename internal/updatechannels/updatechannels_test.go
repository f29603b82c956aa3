package updatechannels

import (
	"context"
	"testing"

	"github.com/linux-automation/tacd/internal/model"
	"github.com/linux-automation/tacd/internal/topic"
)

type fakeFetcher struct{ bundle string }

func (f fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	return f.bundle, nil
}

func TestReloadNowPublishesFetchedBundle(t *testing.T) {
	out := topic.New[[]model.UpdateChannel]("/v1/tac/update/channels", true, false)
	p := New([]Config{
		{Name: "stable", URL: "http://example/stable", Enabled: true, PollingIntervalS: 60},
	}, fakeFetcher{bundle: "bundle-123"}, out)

	if err := p.ReloadNow(context.Background()); err != nil {
		t.Fatal(err)
	}

	channels, _, _ := out.TryGet()
	if len(channels) != 1 || channels[0].Bundle != "bundle-123" {
		t.Fatalf("expected fetched bundle to be published, got %+v", channels)
	}
}
