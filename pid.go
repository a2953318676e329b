// pid.go

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
	"errors"
	"math"
	"time"
)

// Controller gain errors.
var (
	ErrInvalidGains    = errors.New("tello: PID gains must be non-negative")
	ErrInvalidDeadband = errors.New("tello: PID deadband must be non-negative")
)

const defaultConvergenceWindow = 5

// PID is a proportional-integral-derivative controller with a deadband.
// Convergence is asserted when the mean of the last few errors falls within
// the deadband.
type PID struct {
	kP, kI, kD float64
	deadband   float64

	lastError     float64
	lastDError    float64
	integralError float64
	haveLast      bool
	lastTime      time.Time
	haveTime      bool

	window    []float64
	wIdx      int
	wFilled   bool
	converged bool

	now func() time.Time // test hook
}

// NewPID returns a PID with the given gains and deadband, or an error if any
// of them is negative.
func NewPID(kP, kI, kD, deadband float64) (*PID, error) {
	pid := &PID{now: time.Now}
	if err := pid.SetGains(kP, kI, kD); err != nil {
		return nil, err
	}
	if err := pid.SetDeadband(deadband); err != nil {
		return nil, err
	}
	pid.Reset()
	return pid, nil
}

// SetGains replaces the gains and resets the controller state.
func (pid *PID) SetGains(kP, kI, kD float64) error {
	if kP < 0 || kI < 0 || kD < 0 {
		return ErrInvalidGains
	}
	pid.kP, pid.kI, pid.kD = kP, kI, kD
	pid.Reset()
	return nil
}

// SetDeadband replaces the deadband and resets the controller state.
func (pid *PID) SetDeadband(deadband float64) error {
	if deadband < 0 {
		return ErrInvalidDeadband
	}
	pid.deadband = deadband
	pid.Reset()
	return nil
}

// Reset clears all accumulated state.  Gains, deadband and the convergence
// window size are kept.
func (pid *PID) Reset() {
	pid.lastError = 0
	pid.lastDError = 0
	pid.integralError = 0
	pid.haveLast = false
	pid.haveTime = false
	pid.window = make([]float64, defaultConvergenceWindow)
	pid.wIdx = 0
	pid.wFilled = false
	pid.converged = false
}

// Update advances the controller by one measurement and returns the correction.
func (pid *PID) Update(setpoint, measured float64) float64 {
	e := setpoint - measured

	pid.window[pid.wIdx] = e
	pid.wIdx++
	if pid.wIdx == len(pid.window) {
		pid.wIdx = 0
		pid.wFilled = true
	}
	if pid.wFilled {
		var mean float64
		for _, we := range pid.window {
			mean += we
		}
		mean /= float64(len(pid.window))
		pid.converged = math.Abs(mean) <= pid.deadband
	}

	var dE float64
	if pid.haveLast {
		dE = e - pid.lastError
	}

	p := pid.kP * e
	var i, d float64
	now := pid.now()
	if pid.haveTime {
		dt := now.Sub(pid.lastTime).Seconds()
		// the integral accumulates dE*dt, not e*dt
		pid.integralError += dE * dt
		i = pid.kI * pid.integralError
		if dt > 0 {
			d = pid.kD * dE / dt
		}
	}

	pid.lastError = e
	pid.lastDError = dE
	pid.haveLast = true
	pid.lastTime = now
	pid.haveTime = true

	return p + i + d
}

// Converged reports whether the mean error over the convergence window is
// within the deadband.
func (pid *PID) Converged() bool { return pid.converged }

// LastError returns the most recent error term.
func (pid *PID) LastError() float64 { return pid.lastError }

// LastDError returns the most recent change in error.
func (pid *PID) LastDError() float64 { return pid.lastDError }

// IntegralError returns the accumulated integral term.
func (pid *PID) IntegralError() float64 { return pid.integralError }
