// sensor.go

// Copyright (C) 2019  Boris Gromov

// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.

// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package tello

import "sync"

// Sensor is a last-value cell combined with a broadcast of changes.  It is the
// primitive used for all telemetry fan-out: one writer (the decoder that owns
// the channel), any number of subscribers.
//
// Subscribers run synchronously on the publishing goroutine and are delivered
// values in publish order; they must not block.
type Sensor[T any] struct {
	mu     sync.Mutex
	last   T
	set    bool
	eq     func(a, b T) bool // nil for raw channels
	subs   map[int]func(T)
	nextID int
}

// NewSensor returns a raw sensor channel: every publish is delivered.
func NewSensor[T any]() *Sensor[T] {
	return &Sensor[T]{subs: make(map[int]func(T))}
}

// NewDedupSensor returns a deduplicated sensor channel: a publish equal to the
// current last value is dropped.
func NewDedupSensor[T comparable]() *Sensor[T] {
	return &Sensor[T]{
		eq:   func(a, b T) bool { return a == b },
		subs: make(map[int]func(T)),
	}
}

// Publish stores v as the last value and delivers it to all subscribers.
// Only the decoder that owns the channel should call Publish.
func (s *Sensor[T]) Publish(v T) {
	s.mu.Lock()
	if s.eq != nil && s.set && s.eq(s.last, v) {
		s.mu.Unlock()
		return
	}
	s.last = v
	s.set = true
	fns := make([]func(T), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Last returns the most recently published value, if any.
func (s *Sensor[T]) Last() (v T, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.set
}

// Subscribe registers fn to be invoked for every published value and returns a
// cancellable handle.  Cancellation is idempotent.
func (s *Sensor[T]) Subscribe(fn func(T)) *Subscription {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return &Subscription{cancel: func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}}
}

// Subscription is a handle to an active sensor subscription.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Cancel removes the subscription.  It is safe to call more than once.
func (sub *Subscription) Cancel() {
	if sub == nil {
		return
	}
	sub.once.Do(sub.cancel)
}
