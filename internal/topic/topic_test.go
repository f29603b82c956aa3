package topic

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPublishOrderAndSerials(t *testing.T) {
	tp := New[int]("/t", true, true)

	var got []int
	var serials []uint64
	tp.Subscribe(func(_, newSerial uint64, v int) {
		got = append(got, v)
		serials = append(serials, newSerial)
	})

	for _, v := range []int{1, 2, 3} {
		tp.Publish(v)
	}

	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("unexpected delivery order: %v", got)
	}
	for i := 1; i < len(serials); i++ {
		if serials[i] <= serials[i-1] {
			t.Fatalf("serials not strictly increasing: %v", serials)
		}
	}
}

func TestSubscribeRetainedImmediateCallback(t *testing.T) {
	tp := New[string]("/t", true, true)
	tp.Publish("hello")

	called := false
	var got string
	tp.Subscribe(func(_, _ uint64, v string) {
		called = true
		got = v
	})

	if !called || got != "hello" {
		t.Fatalf("expected immediate callback with retained value, got called=%v val=%q", called, got)
	}
}

func TestUnsubscribeStopsCallbacks(t *testing.T) {
	tp := New[int]("/t", true, true)
	count := 0
	sub := tp.Subscribe(func(_, _ uint64, v int) { count++ })

	tp.Publish(1)
	sub.Unsubscribe()
	tp.Publish(2)
	tp.Publish(3)

	if count != 1 {
		t.Fatalf("expected exactly 1 callback before unsubscribe, got %d", count)
	}
}

func TestReentrantPublishDeferred(t *testing.T) {
	tp := New[int]("/t", true, true)
	var order []int
	var mu sync.Mutex

	tp.Subscribe(func(_, _ uint64, v int) {
		mu.Lock()
		order = append(order, v)
		mu.Unlock()
		if v == 1 {
			// Re-entrant publish from within a callback: must not
			// recurse, must run after this fan-out completes.
			tp.Publish(2)
		}
	})

	tp.Publish(1)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected [1 2], got %v", order)
	}
}

func TestWaitFor(t *testing.T) {
	tp := New[int]("/t", true, true)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan int, 1)
	go func() {
		v, err := tp.WaitFor(ctx, func(v int) bool { return v >= 5 })
		if err != nil {
			done <- -1
			return
		}
		done <- v
	}()

	time.Sleep(10 * time.Millisecond)
	tp.Publish(1)
	tp.Publish(5)

	select {
	case v := <-done:
		if v != 5 {
			t.Fatalf("expected 5, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for WaitFor")
	}
}

func TestPanickingSubscriberRemoved(t *testing.T) {
	tp := New[int]("/t", true, true)
	tp.Subscribe(func(_, _ uint64, v int) { panic("boom") })

	survivorCalls := 0
	tp.Subscribe(func(_, _ uint64, v int) { survivorCalls++ })

	tp.Publish(1)
	tp.Publish(2)

	if survivorCalls != 2 {
		t.Fatalf("expected survivor to see both publishes, got %d", survivorCalls)
	}
}
