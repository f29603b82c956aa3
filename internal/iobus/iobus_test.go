package iobus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/linux-automation/tacd/internal/model"
	"github.com/linux-automation/tacd/internal/topic"
)

func TestRefreshPublishesInfoAndNodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/server/info":
			w.Write([]byte(`{"name":"iobus0","version":"1.2.3"}`))
		case "/server/nodes":
			w.Write([]byte(`[{"address":1,"kind":"relay"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	info := topic.New[model.IOBusInfo]("/v1/iobus/server/info", true, false)
	nodes := topic.New[[]model.IOBusNode]("/v1/iobus/server/nodes", true, false)
	c := New(srv.URL, info, nodes)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	gotInfo, _, _ := info.TryGet()
	if gotInfo.Name != "iobus0" {
		t.Fatalf("unexpected info: %+v", gotInfo)
	}
	gotNodes, _, _ := nodes.TryGet()
	if len(gotNodes) != 1 || gotNodes[0].Kind != "relay" {
		t.Fatalf("unexpected nodes: %+v", gotNodes)
	}
}

func TestRefreshReturnsHardwareUnavailableOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	info := topic.New[model.IOBusInfo]("/v1/iobus/server/info", true, false)
	nodes := topic.New[[]model.IOBusNode]("/v1/iobus/server/nodes", true, false)
	c := New(srv.URL, info, nodes)

	if err := c.Refresh(context.Background()); err == nil {
		t.Fatal("expected error from unavailable server")
	}
}
