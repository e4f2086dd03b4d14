// Package eventbus is an in-process fan-out bus. Publishing never blocks: a
// subscriber whose buffer is full misses the event and the miss is counted.
package eventbus

import (
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the per-subscriber channel capacity used when none is given.
const DefaultBuffer = 8

// EventBus is the publish side and subscription management of a Bus.
type EventBus[T any] interface {
	Publish(T)
	Subscribe() <-chan T
	Unsubscribe(<-chan T)
	Close()
}

// Bus delivers each published value to every current subscriber.
type Bus[T any] struct {
	mu      sync.RWMutex
	buffer  int
	subs    map[<-chan T]chan T
	closed  bool
	dropped atomic.Uint64
}

// New returns a Bus whose subscribers buffer up to buffer values. A
// non-positive buffer selects DefaultBuffer.
func New[T any](buffer int) *Bus[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus[T]{buffer: buffer, subs: make(map[<-chan T]chan T)}
}

// Publish offers v to every subscriber without waiting.
func (b *Bus[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- v:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped is the number of deliveries skipped because a subscriber was full.
func (b *Bus[T]) Dropped() uint64 { return b.dropped.Load() }

// Subscribe returns a new buffered channel. After Close it returns a closed
// channel.
func (b *Bus[T]) Subscribe() <-chan T {
	ch := make(chan T, b.buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = ch
	return ch
}

// Unsubscribe closes sub and stops delivering to it. Unknown channels are
// ignored.
func (b *Bus[T]) Unsubscribe(sub <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(ch)
	}
}

// Close closes every subscriber. Later publishes are discarded.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for key, ch := range b.subs {
		close(ch)
		delete(b.subs, key)
	}
}
