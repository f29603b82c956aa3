// Package broker is the path-keyed registry and external-edge decoder for
// topics: a typed Go registry, built with generics,
// that exposes each Topic[T] for byte-level GET/PUT access without the
// REST/WS/SSE edges needing to know T.
package broker

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/linux-automation/tacd/internal/errkind"
	"github.com/linux-automation/tacd/internal/topic"
)

// AnyTopic is the type-erased view of a Topic[T] the broker needs for the
// REST/WS/SSE edges: byte-level get/set/subscribe plus the readable/
// writable flags from wire-up.
type AnyTopic interface {
	Path() string
	Readable() bool
	Writable() bool
	SetFromBytes(data []byte) error
	TryGetAsBytes() ([]byte, bool)
	SubscribeBytes(cb func(data []byte)) Unsubscriber
}

// Unsubscriber cancels a byte-level subscription.
type Unsubscriber interface{ Unsubscribe() }

type typedAdapter[T any] struct {
	t *topic.Topic[T]
}

func (a typedAdapter[T]) Path() string   { return a.t.Path() }
func (a typedAdapter[T]) Readable() bool { return a.t.Readable() }
func (a typedAdapter[T]) Writable() bool { return a.t.Writable() }

func (a typedAdapter[T]) SetFromBytes(data []byte) error {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return errkind.Wrap(errkind.BadRequest, "decode "+a.t.Path(), err)
	}
	a.t.Publish(v)
	return nil
}

func (a typedAdapter[T]) TryGetAsBytes() ([]byte, bool) {
	v, _, ok := a.t.TryGet()
	if !ok {
		return nil, false
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return b, true
}

func (a typedAdapter[T]) SubscribeBytes(cb func(data []byte)) Unsubscriber {
	return a.t.Subscribe(func(_, _ uint64, v T) {
		b, err := json.Marshal(v)
		if err != nil {
			return
		}
		cb(b)
	})
}

// GateFunc validates an external write before it is allowed to proceed,
// beyond the plain writable check. It receives the raw bytes being
// written and whatever gate state the caller supplies (here: whether the
// device is currently in setup mode). Returning a non-nil error aborts
// the write with that error's kind.
type GateFunc func(raw []byte, setupMode bool) error

// Builder accumulates topics during the single startup wire-up phase.
type Builder struct {
	topics map[string]AnyTopic
	gates  map[string]GateFunc
	order  []string
}

func NewBuilder() *Builder {
	return &Builder{topics: make(map[string]AnyTopic), gates: make(map[string]GateFunc)}
}

// Register adds a new typed topic at path and returns it for the owning
// component to Publish/Subscribe on directly.
func Register[T any](b *Builder, path string, readable, writable bool) *topic.Topic[T] {
	t := topic.New[T](path, readable, writable)
	if _, dup := b.topics[path]; dup {
		panic(fmt.Sprintf("broker: duplicate topic path %q", path))
	}
	b.topics[path] = typedAdapter[T]{t: t}
	b.order = append(b.order, path)
	return t
}

// Gate attaches a GateFunc to an already-registered writable path.
func (b *Builder) Gate(path string, g GateFunc) {
	b.gates[path] = g
}

// Build finalizes the registry. No further topics may be added afterwards.
func (b *Builder) Build() *Broker {
	paths := make([]string, len(b.order))
	copy(paths, b.order)
	sort.Strings(paths)
	return &Broker{
		topics: b.topics,
		gates:  b.gates,
		paths:  paths,
	}
}

// Broker is the read-only, built registry used by the REST/WS/SSE edges
// and by any component that only knows a topic's path (not its type).
type Broker struct {
	mu     sync.RWMutex
	topics map[string]AnyTopic
	gates  map[string]GateFunc
	paths  []string
}

// Paths returns every registered topic path, sorted.
func (br *Broker) Paths() []string { return br.paths }

// Lookup returns the AnyTopic at path, if any.
func (br *Broker) Lookup(path string) (AnyTopic, bool) {
	br.mu.RLock()
	defer br.mu.RUnlock()
	t, ok := br.topics[path]
	return t, ok
}

// SetExternal is the broker's single external-write entry point.
// setupMode is the current value of /v1/tac/setup_mode, supplied by the
// caller (the REST/WS edge) so this package has no circular dependency on
// any particular topic.
func (br *Broker) SetExternal(path string, data []byte, setupMode bool) error {
	t, ok := br.Lookup(path)
	if !ok {
		return errkind.New(errkind.NotFound, "set "+path, "unknown topic")
	}
	if !t.Writable() {
		return errkind.New(errkind.Forbidden, "set "+path, "topic is read-only")
	}
	br.mu.RLock()
	gate, gated := br.gates[path]
	br.mu.RUnlock()
	if gated {
		if err := gate(data, setupMode); err != nil {
			return err
		}
	}
	if err := t.SetFromBytes(data); err != nil {
		return err
	}
	return nil
}

// GetExternal returns the retained JSON bytes for path, or NotFound if the
// path is unknown, or Forbidden if the topic is not externally readable.
func (br *Broker) GetExternal(path string) ([]byte, error) {
	t, ok := br.Lookup(path)
	if !ok {
		return nil, errkind.New(errkind.NotFound, "get "+path, "unknown topic")
	}
	if !t.Readable() {
		return nil, errkind.New(errkind.Forbidden, "get "+path, "topic is not externally readable")
	}
	b, ok := t.TryGetAsBytes()
	if !ok {
		return nil, errkind.New(errkind.NotFound, "get "+path, "no value published yet")
	}
	return b, nil
}
