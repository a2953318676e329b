// pid_test.go

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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances a fixed step per call.
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func TestNewPIDRejectsNegativeGains(t *testing.T) {
	_, err := NewPID(-1, 0, 0, 0.1)
	assert.ErrorIs(t, err, ErrInvalidGains)
	_, err = NewPID(1, -0.1, 0, 0.1)
	assert.ErrorIs(t, err, ErrInvalidGains)
	_, err = NewPID(1, 0, -2, 0.1)
	assert.ErrorIs(t, err, ErrInvalidGains)
	_, err = NewPID(1, 0, 0, -0.1)
	assert.ErrorIs(t, err, ErrInvalidDeadband)
}

func TestPIDProportionalOnly(t *testing.T) {
	pid, err := NewPID(2, 0, 0, 0.05)
	require.NoError(t, err)
	pid.now = fakeClock(time.Unix(0, 0), 100*time.Millisecond)

	assert.InDelta(t, 2.0, pid.Update(1, 0), 1e-12)
	assert.InDelta(t, 1.0, pid.Update(1, 0.5), 1e-12)
	assert.InDelta(t, -0.5, pid.LastDError(), 1e-12)
}

// The integral accumulates dE*dt, not e*dt.
func TestPIDIntegralUsesErrorDelta(t *testing.T) {
	pid, err := NewPID(0, 1, 0, 0.05)
	require.NoError(t, err)
	pid.now = fakeClock(time.Unix(0, 0), 100*time.Millisecond)

	out := pid.Update(1, 0) // first call: no dt yet
	assert.InDelta(t, 0.0, out, 1e-12)
	assert.InDelta(t, 0.0, pid.IntegralError(), 1e-12)

	// e goes 1.0 -> 0.6, dE = -0.4, dt = 0.1s
	out = pid.Update(1, 0.4)
	assert.InDelta(t, -0.04, pid.IntegralError(), 1e-12)
	assert.InDelta(t, -0.04, out, 1e-12)

	// e stays 0.6, dE = 0: the integral must not move
	out = pid.Update(1, 0.4)
	assert.InDelta(t, -0.04, pid.IntegralError(), 1e-12)
	assert.InDelta(t, -0.04, out, 1e-12)
}

func TestPIDDerivative(t *testing.T) {
	pid, err := NewPID(0, 0, 1, 0.05)
	require.NoError(t, err)
	pid.now = fakeClock(time.Unix(0, 0), 100*time.Millisecond)

	assert.InDelta(t, 0.0, pid.Update(1, 0), 1e-12) // first call: d = 0
	// dE = -0.5 over 0.1s
	assert.InDelta(t, -5.0, pid.Update(1, 0.5), 1e-12)
}

func TestPIDConvergenceWindow(t *testing.T) {
	pid, err := NewPID(1, 0, 0, 0.05)
	require.NoError(t, err)
	pid.now = fakeClock(time.Unix(0, 0), 100*time.Millisecond)

	measurements := []float64{0.0, 0.2, 0.5, 0.9, 0.99}
	for _, m := range measurements {
		pid.Update(1, m)
		assert.False(t, pid.Converged())
	}
	// errors now converge; mean of the last window drops under the deadband
	for i := 0; i < defaultConvergenceWindow; i++ {
		pid.Update(1, 1.0)
	}
	assert.True(t, pid.Converged())
}

func TestPIDResetClearsStateKeepsGains(t *testing.T) {
	pid, err := NewPID(1, 1, 1, 0.05)
	require.NoError(t, err)
	pid.now = fakeClock(time.Unix(0, 0), 100*time.Millisecond)

	pid.Update(1, 0)
	pid.Update(1, 0.5)
	require.NotZero(t, pid.LastError())

	pid.Reset()
	assert.Zero(t, pid.LastError())
	assert.Zero(t, pid.LastDError())
	assert.Zero(t, pid.IntegralError())
	assert.False(t, pid.Converged())

	// gains survive: proportional response is unchanged
	assert.InDelta(t, 1.0, pid.Update(1, 0), 1e-12)
}

func TestPIDSetGainsResets(t *testing.T) {
	pid, err := NewPID(1, 0, 0, 0.05)
	require.NoError(t, err)
	pid.now = fakeClock(time.Unix(0, 0), 100*time.Millisecond)

	for i := 0; i < 10; i++ {
		pid.Update(1, 1)
	}
	require.True(t, pid.Converged())

	require.NoError(t, pid.SetGains(2, 0, 0))
	assert.False(t, pid.Converged())
	assert.Zero(t, pid.IntegralError())

	assert.Error(t, pid.SetGains(-1, 0, 0))
}
