// Package topic implements Topic[T], the atomic unit of state: a typed,
// retained, synchronously fanned-out publish/subscribe cell addressed by
// path (set/get/subscribe/modify, retained delivery on subscribe, serial
// numbers for ordering).
package topic

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

var log = zerolog.Nop()

// SetLogger installs the logger used to report panicking subscribers.
func SetLogger(l zerolog.Logger) { log = l }

// Callback is invoked synchronously, outside the topic's lock, on every
// publish (and once immediately on Subscribe if a retained value exists).
type Callback[T any] func(oldSerial, newSerial uint64, value T)

type subscriber[T any] struct {
	id   uint64
	cb   Callback[T]
	dead bool
}

// Subscription is the handle returned by Subscribe. Unsubscribe is
// idempotent; a callback already in flight still completes.
type Subscription[T any] struct {
	t  *Topic[T]
	id uint64
}

func (s *Subscription[T]) Unsubscribe() {
	s.t.mu.Lock()
	for _, sub := range s.t.subs {
		if sub.id == s.id {
			sub.dead = true
		}
	}
	s.t.compact()
	s.t.mu.Unlock()
}

// entry holds one retained value plus its serial.
type entry[T any] struct {
	value  T
	serial uint64
}

// Topic is a typed retained-value cell with ordered, synchronous fan-out.
//
// Publishes are serialized through an internal FIFO queue: the first
// caller to find the queue idle drains it (incrementing the serial,
// storing the retained value, and running subscriber callbacks outside
// the lock) until it is empty. A publish issued by a subscriber callback
// while a drain is already in progress is appended to the queue and
// returns immediately instead of recursing: re-entrancy is serialized
// per topic, so same-topic republishes from
// within a callback run after the current fan-out completes, and (as a
// simplifying strengthening) so do concurrent publishes from other
// goroutines, which keeps the total-order guarantee trivially true.
type Topic[T any] struct {
	mu   sync.Mutex
	path string

	writable bool
	readable bool

	retained  *entry[T]
	lastSet   bool
	subs      []*subscriber[T]
	nextSubID uint64
	serial    uint64

	queue    []T
	draining bool
}

// New creates a Topic at path. writable/readable describe whether the
// broker should expose it as PUT-able / GET-able on the REST surface;
// they do not affect in-process Publish/Subscribe.
func New[T any](path string, readable, writable bool) *Topic[T] {
	return &Topic[T]{path: path, readable: readable, writable: writable}
}

func (t *Topic[T]) Path() string     { return t.path }
func (t *Topic[T]) Readable() bool   { return t.readable }
func (t *Topic[T]) Writable() bool   { return t.writable }

// Publish enqueues value. If no drain is in progress on this topic (from
// any goroutine), this call performs the drain (possibly fanning out
// values enqueued by its own subscribers or by other goroutines) before
// returning; otherwise it returns once value is queued.
func (t *Topic[T]) Publish(value T) {
	t.mu.Lock()
	t.queue = append(t.queue, value)
	if t.draining {
		t.mu.Unlock()
		return
	}
	t.draining = true
	t.mu.Unlock()

	t.drain()
}

func (t *Topic[T]) drain() {
	for {
		t.mu.Lock()
		if len(t.queue) == 0 {
			t.draining = false
			t.mu.Unlock()
			return
		}
		v := t.queue[0]
		t.queue = t.queue[1:]

		old := t.serial
		t.serial++
		t.retained = &entry[T]{value: v, serial: t.serial}
		t.lastSet = true
		newSerial := t.serial

		subsCopy := make([]*subscriber[T], len(t.subs))
		copy(subsCopy, t.subs)
		t.mu.Unlock()

		for _, s := range subsCopy {
			t.invoke(s, old, newSerial, v)
		}
	}
}

func (t *Topic[T]) invoke(s *subscriber[T], old, newSerial uint64, v T) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("topic", t.path).Msg("subscriber callback panicked, removing subscription")
			t.mu.Lock()
			s.dead = true
			t.compact()
			t.mu.Unlock()
		}
	}()
	t.mu.Lock()
	dead := s.dead
	t.mu.Unlock()
	if dead {
		return
	}
	s.cb(old, newSerial, v)
}

func (t *Topic[T]) compact() {
	live := t.subs[:0]
	for _, s := range t.subs {
		if !s.dead {
			live = append(live, s)
		}
	}
	t.subs = live
}

// TryGet returns the retained value and serial, or ok=false if nothing
// has ever been published.
func (t *Topic[T]) TryGet() (value T, serial uint64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.retained == nil {
		return value, 0, false
	}
	return t.retained.value, t.retained.serial, true
}

// Get blocks until a value is available, then returns it.
func (t *Topic[T]) Get(ctx context.Context) (T, error) {
	if v, _, ok := t.TryGet(); ok {
		return v, nil
	}
	ch := make(chan T, 1)
	sub := t.Subscribe(func(_, _ uint64, v T) {
		select {
		case ch <- v:
		default:
		}
	})
	defer sub.Unsubscribe()
	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Subscribe registers cb. If a retained value exists, cb is invoked
// exactly once, synchronously, with that value before Subscribe returns.
func (t *Topic[T]) Subscribe(cb Callback[T]) *Subscription[T] {
	t.mu.Lock()
	t.nextSubID++
	id := t.nextSubID
	s := &subscriber[T]{id: id, cb: cb}
	t.subs = append(t.subs, s)
	ret := t.retained
	t.mu.Unlock()

	if ret != nil {
		t.invoke(s, ret.serial, ret.serial, ret.value)
	}
	return &Subscription[T]{t: t, id: id}
}

// WaitFor blocks until a publish whose value satisfies pred occurs (or
// ctx is done). The retained value is checked first.
func (t *Topic[T]) WaitFor(ctx context.Context, pred func(T) bool) (T, error) {
	if v, _, ok := t.TryGet(); ok && pred(v) {
		return v, nil
	}
	ch := make(chan T, 1)
	sub := t.Subscribe(func(_, _ uint64, v T) {
		if pred(v) {
			select {
			case ch <- v:
			default:
			}
		}
	})
	defer sub.Unsubscribe()
	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Modify performs an atomic read-modify-write. fn receives the current
// value (ok=false if unset) and returns the new value plus whether to
// publish it.
func (t *Topic[T]) Modify(fn func(cur T, ok bool) (T, bool)) {
	t.mu.Lock()
	var cur T
	ok := false
	if t.retained != nil {
		cur = t.retained.value
		ok = true
	}
	t.mu.Unlock()

	if next, set := fn(cur, ok); set {
		t.Publish(next)
	}
}
