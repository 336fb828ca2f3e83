package pubsub

import (
	"context"
	"sync"
)

// Stream delivers every published event, in publish order, to each subscriber.
// Publish waits for each subscriber to accept the event, so a slow consumer
// slows the producer instead of losing events.
type Stream[T any] struct {
	mu   sync.RWMutex
	subs map[uint64]*Subscription[T]
	next uint64
}

// Subscription is a single consumer of a Stream
type Subscription[T any] struct {
	C <-chan T

	ch     chan T
	done   chan struct{}
	once   sync.Once
	stream *Stream[T]
	id     uint64
}

// NewStream creates an empty Stream
func NewStream[T any]() *Stream[T] {
	return &Stream[T]{subs: make(map[uint64]*Subscription[T])}
}

// Subscribe registers a consumer with the given channel buffer
func (s *Stream[T]) Subscribe(buffer int) *Subscription[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan T, buffer)
	sub := &Subscription[T]{
		C:      ch,
		ch:     ch,
		done:   make(chan struct{}),
		stream: s,
		id:     s.next,
	}
	s.subs[sub.id] = sub
	s.next++
	return sub
}

// Cancel removes the subscription. Pending publishes to it are abandoned.
func (sub *Subscription[T]) Cancel() {
	sub.once.Do(func() {
		sub.stream.mu.Lock()
		delete(sub.stream.subs, sub.id)
		sub.stream.mu.Unlock()
		close(sub.done)
	})
}

// Done is closed once the subscription is cancelled
func (sub *Subscription[T]) Done() <-chan struct{} {
	return sub.done
}

// Publish delivers v to every current subscriber and returns how many accepted it.
// It stops early when ctx is cancelled.
func (s *Stream[T]) Publish(ctx context.Context, v T) int {
	s.mu.RLock()
	subs := make([]*Subscription[T], 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.RUnlock()

	delivered := 0
	for _, sub := range subs {
		select {
		case sub.ch <- v:
			delivered++
		case <-sub.done:
		case <-ctx.Done():
			return delivered
		}
	}
	return delivered
}

// Len returns the number of active subscriptions
func (s *Stream[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
