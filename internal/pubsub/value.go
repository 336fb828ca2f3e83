// Package pubsub provides explicit publish-subscribe primitives used by the
// client stores in place of implicit re-render triggers.
package pubsub

import (
	"sync"
)

// Value holds a current value and publishes every change to its subscribers.
// Slow subscribers are conflated: they always observe the latest value, but
// may skip intermediate ones.
type Value[T any] struct {
	mu   sync.RWMutex
	cur  T
	subs map[uint64]chan T
	next uint64
}

// NewValue creates a Value holding initial
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		cur:  initial,
		subs: make(map[uint64]chan T),
	}
}

// Get returns the current value
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cur
}

// Set replaces the current value and notifies subscribers
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cur = val
	v.publishLocked()
}

// Update applies fn to the current value atomically, publishes and returns the result
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cur = fn(v.cur)
	v.publishLocked()
	return v.cur
}

// Subscribe returns the current value, a channel of subsequent values and a
// cancel function that closes the channel.
func (v *Value[T]) Subscribe() (T, <-chan T, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := v.next
	v.next++
	ch := make(chan T, 1)
	v.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			if c, ok := v.subs[id]; ok {
				delete(v.subs, id)
				close(c)
			}
		})
	}
	return v.cur, ch, cancel
}

// Subscribers returns the number of active subscriptions
func (v *Value[T]) Subscribers() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.subs)
}

// publishLocked must be called with mu held for writing. Only the publisher
// sends on subscriber channels, so after draining the stale value the send
// cannot block.
func (v *Value[T]) publishLocked() {
	for _, ch := range v.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v.cur
	}
}
