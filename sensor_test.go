// sensor_test.go

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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensorLastValue(t *testing.T) {
	s := NewSensor[int]()
	_, ok := s.Last()
	assert.False(t, ok)

	s.Publish(42)
	v, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestSensorRawPublishesEveryWrite(t *testing.T) {
	s := NewSensor[int]()
	var got []int
	s.Subscribe(func(v int) { got = append(got, v) })

	s.Publish(1)
	s.Publish(1)
	s.Publish(2)
	assert.Equal(t, []int{1, 1, 2}, got)
}

func TestSensorDedupDropsEqualWrites(t *testing.T) {
	s := NewDedupSensor[string]()
	var got []string
	s.Subscribe(func(v string) { got = append(got, v) })

	s.Publish("a")
	s.Publish("a")
	s.Publish("b")
	s.Publish("b")
	s.Publish("a")
	assert.Equal(t, []string{"a", "b", "a"}, got)
}

func TestSensorDeliveryOrder(t *testing.T) {
	s := NewSensor[int]()
	var a, b []int
	s.Subscribe(func(v int) { a = append(a, v) })
	s.Subscribe(func(v int) { b = append(b, v) })

	for i := 0; i < 5; i++ {
		s.Publish(i)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, a)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, b)
}

func TestSubscriptionCancelIdempotent(t *testing.T) {
	s := NewSensor[int]()
	var got []int
	sub := s.Subscribe(func(v int) { got = append(got, v) })

	s.Publish(1)
	sub.Cancel()
	sub.Cancel() // must be safe
	s.Publish(2)
	assert.Equal(t, []int{1}, got)

	var nilSub *Subscription
	nilSub.Cancel() // nil handles are ignored
}

func TestSensorSubscribeDuringDelivery(t *testing.T) {
	s := NewSensor[int]()
	var late []int
	s.Subscribe(func(v int) {
		if v == 1 {
			s.Subscribe(func(v int) { late = append(late, v) })
		}
	})
	s.Publish(1)
	s.Publish(2)
	assert.Equal(t, []int{2}, late)
}
