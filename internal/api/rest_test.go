package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/linux-automation/tacd/internal/broker"
	"github.com/linux-automation/tacd/internal/topic"
)

func jsonReader(b []byte) io.Reader { return bytes.NewReader(b) }

type fakeJournal struct{}

func (fakeJournal) Stream(ctx context.Context, historyLen int, unit string, onEntry func(json.RawMessage)) error {
	<-ctx.Done()
	return ctx.Err()
}

func newTestServer() (*Server, *topic.Topic[string]) {
	b := broker.NewBuilder()
	greet := broker.Register[string](b, "/v1/example/greeting", true, true)
	setup := broker.Register[bool](b, "/v1/tac/setup_mode", true, false)
	display := broker.Register[[]byte](b, "/v1/tac/display/content", true, false)
	br := b.Build()
	setup.Publish(false)
	return New(br, setup, fakeJournal{}, display, zerolog.Nop()), greet
}

func TestGetReturnsPublishedValue(t *testing.T) {
	s, greet := newTestServer()
	greet.Publish("hello")

	req := httptest.NewRequest(http.MethodGet, "/v1/example/greeting", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil || got != "hello" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestGetUnknownPathReturns404(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/v1/no/such/path", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPutUpdatesTopic(t *testing.T) {
	s, greet := newTestServer()
	body := []byte(`"updated"`)
	req := httptest.NewRequest(http.MethodPut, "/v1/example/greeting", jsonReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	v, _, ok := greet.TryGet()
	if !ok || v != "updated" {
		t.Fatalf("expected topic updated to %q, got %q (ok=%v)", "updated", v, ok)
	}
}

// TestDisplayContentRouteTakesPriority guards against the dedicated PNG
// route being shadowed by the generic /v1/{path:.*} topic GET, which would
// serve the same path as base64-in-JSON instead of raw image/png.
func TestDisplayContentRouteTakesPriority(t *testing.T) {
	b := broker.NewBuilder()
	setup := broker.Register[bool](b, "/v1/tac/setup_mode", true, false)
	display := broker.Register[[]byte](b, "/v1/tac/display/content", true, false)
	br := b.Build()
	setup.Publish(false)
	s := New(br, setup, fakeJournal{}, display, zerolog.Nop())

	png := []byte{0x89, 0x50, 0x4e, 0x47}
	display.Publish(png)

	req := httptest.NewRequest(http.MethodGet, "/v1/tac/display/content", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %q", ct)
	}
	if !bytes.Equal(rec.Body.Bytes(), png) {
		t.Fatalf("expected raw PNG bytes, got %v", rec.Body.Bytes())
	}
}

// TestJournalSSERouteTakesPriority guards against /v1/tac/journal being
// shadowed by the generic topic GET route.
func TestJournalSSERouteTakesPriority(t *testing.T) {
	s, _ := newTestServer()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/v1/tac/journal?history_len=10", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code == http.StatusNotFound {
		t.Fatalf("expected the SSE route to handle the request, got 404")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}
}
