// Package iobus caches the local IOBus server's self-description and node
// table: a small HTTP client against the bus server's
// own `server/info`/`server/nodes` endpoints, refreshed on a poller
// cadence.
package iobus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linux-automation/tacd/internal/errkind"
	"github.com/linux-automation/tacd/internal/model"
	"github.com/linux-automation/tacd/internal/topic"
)

// Client polls a local IOBus server over HTTP.
type Client struct {
	baseURL string
	http    *http.Client

	Info  *topic.Topic[model.IOBusInfo]
	Nodes *topic.Topic[[]model.IOBusNode]
}

func New(baseURL string, info *topic.Topic[model.IOBusInfo], nodes *topic.Topic[[]model.IOBusNode]) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: 2 * time.Second}, Info: info, Nodes: nodes}
}

// Refresh fetches both endpoints and publishes on success. A failure to
// reach the bus server is HardwareUnavailable, not fatal (the IOBus is
// optional peripheral hardware).
func (c *Client) Refresh(ctx context.Context) error {
	var info model.IOBusInfo
	if err := c.getJSON(ctx, "/server/info", &info); err != nil {
		return err
	}
	var nodes []model.IOBusNode
	if err := c.getJSON(ctx, "/server/nodes", &nodes); err != nil {
		return err
	}
	c.Info.Publish(info)
	c.Nodes.Publish(nodes)
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errkind.Wrap(errkind.Internal, "iobus.getJSON", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errkind.Wrap(errkind.HardwareUnavailable, "iobus.getJSON["+path+"]", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errkind.New(errkind.HardwareUnavailable, "iobus.getJSON", fmt.Sprintf("%s: status %d", path, resp.StatusCode))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errkind.Wrap(errkind.Internal, "iobus.getJSON["+path+"]", err)
	}
	return nil
}
