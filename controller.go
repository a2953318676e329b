// controller.go

// This file contains the four-axis position controller which closes the loop
// on the host from the drone's odometry stream.

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
	"math"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Pose is a sparse position/attitude tuple.  Each field is independently
// optional: different sensors deliver different axes at different rates, and
// targets may command any subset of axes.  Unset is not the same as zero.
type Pose struct {
	X, Y, Z *float64 // m
	Yaw     *float64 // rad
}

// Controls is a sparse stick tuple.  Unset fields are treated as zero when the
// keep-alive sender builds a stick packet.
type Controls struct {
	Roll, Pitch, Yaw, Thrust *float64
}

// Float is a convenience for building sparse poses: tello.Float(1.5) is a set
// X, nil is an unset one.
func Float(v float64) *float64 { return &v }

// assignNonEmpty merges the set fields of from into p.
func (p *Pose) assignNonEmpty(from Pose) {
	if from.X != nil {
		p.X = from.X
	}
	if from.Y != nil {
		p.Y = from.Y
	}
	if from.Z != nil {
		p.Z = from.Z
	}
	if from.Yaw != nil {
		p.Yaw = from.Yaw
	}
}

// assignNonEmpty merges the set fields of from into c.
func (c *Controls) assignNonEmpty(from Controls) {
	if from.Roll != nil {
		c.Roll = from.Roll
	}
	if from.Pitch != nil {
		c.Pitch = from.Pitch
	}
	if from.Yaw != nil {
		c.Yaw = from.Yaw
	}
	if from.Thrust != nil {
		c.Thrust = from.Thrust
	}
}

// PositionSample is one reading from a position source feeding the controller.
type PositionSample struct {
	Position Vector3
	Valid    AxisValidity
}

// StateKind enumerates the controller's coarse states.
type StateKind int

// Controller states.
const (
	StateIdle StateKind = iota
	StateCorrecting
	StateConverged
	StateReset
)

// ResetReason says why the controller dropped its target.
type ResetReason int

// Reset reasons.
const (
	ResetNone ResetReason = iota
	ResetOriginChanged
	ResetSensorFailure
	ResetTargetCompleted
	ResetTargetCanceled
)

// ControllerState is published on the controller's state channel.  Reason is
// only meaningful for StateReset.
type ControllerState struct {
	Kind   StateKind
	Reason ResetReason
}

// PIDGains bundles the parameters of one axis PID.
type PIDGains struct {
	P, I, D  float64
	Deadband float64
}

// positionFailureThreshold is how many consecutive invalid position samples
// latch a sensor failure and reset the controller.
const positionFailureThreshold = 30

// Controller runs one PID per axis (x, y, z, yaw) against a sparse target and
// emits stick corrections.  It is single-writer: position and orientation
// both arrive on the log-decode goroutine.
type Controller struct {
	mu sync.Mutex

	pidX, pidY, pidZ, pidYaw *PID

	originX, originY, originZ, originYaw float64

	target *Pose
	input  Pose
	output Controls

	failures int
	failed   bool

	state   *Sensor[ControllerState]
	targets *Sensor[Pose]
	outputs *Sensor[Controls]

	posSub, oriSub *Subscription
}

// NewController returns an idle controller with default gains
// (P=1, I=0, D=0, deadband 0.05) on every axis.
func NewController() *Controller {
	c := &Controller{
		state:   NewDedupSensor[ControllerState](),
		targets: NewSensor[Pose](),
		outputs: NewSensor[Controls](),
	}
	c.pidX, _ = NewPID(1, 0, 0, 0.05)
	c.pidY, _ = NewPID(1, 0, 0, 0.05)
	c.pidZ, _ = NewPID(1, 0, 0, 0.05)
	c.pidYaw, _ = NewPID(1, 0, 0, 0.05)
	c.state.Publish(ControllerState{Kind: StateIdle})
	return c
}

// State returns the controller state channel.
func (c *Controller) State() *Sensor[ControllerState] { return c.state }

// Targets returns the channel on which new targets are announced.
func (c *Controller) Targets() *Sensor[Pose] { return c.targets }

// Outputs returns the channel carrying merged stick corrections.
func (c *Controller) Outputs() *Sensor[Controls] { return c.outputs }

// SetGains replaces the gains of all four axis PIDs.  Each PID that accepts
// its gains is reset; the first invalid set of gains aborts with an error.
func (c *Controller) SetGains(x, y, z, yaw PIDGains) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ax := range []struct {
		pid *PID
		g   PIDGains
	}{{c.pidX, x}, {c.pidY, y}, {c.pidZ, z}, {c.pidYaw, yaw}} {
		if err := ax.pid.SetGains(ax.g.P, ax.g.I, ax.g.D); err != nil {
			return err
		}
		if err := ax.pid.SetDeadband(ax.g.Deadband); err != nil {
			return err
		}
	}
	return nil
}

// Source subscribes the controller to a position channel and an orientation
// channel and returns the output channel.  Any previous source is dropped.
func (c *Controller) Source(pos *Sensor[PositionSample], ori *Sensor[Imu]) *Sensor[Controls] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posSub.Cancel()
	c.oriSub.Cancel()
	c.posSub = pos.Subscribe(c.onPosition)
	c.oriSub = ori.Subscribe(c.onOrientation)
	return c.outputs
}

// SetTarget publishes a new target and zeroes all four PIDs.
func (c *Controller) SetTarget(t Pose) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tc := t
	c.target = &tc
	c.pidX.Reset()
	c.pidY.Reset()
	c.pidZ.Reset()
	c.pidYaw.Reset()
	c.targets.Publish(t)
}

// Target returns the current target, or nil if none is set.
func (c *Controller) Target() *Pose {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target == nil {
		return nil
	}
	tc := *c.target
	return &tc
}

// SetOrigin resets the controller and shifts its frame: the set fields of o
// are subtracted from every subsequent measurement.
func (c *Controller) SetOrigin(o Pose) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked(ResetOriginChanged)
	if o.X != nil {
		c.originX = *o.X
	}
	if o.Y != nil {
		c.originY = *o.Y
	}
	if o.Z != nil {
		c.originZ = *o.Z
	}
	if o.Yaw != nil {
		c.originYaw = *o.Yaw
	}
}

// SetOriginToCurrentPose makes the latest aggregated measurement the origin.
func (c *Controller) SetOriginToCurrentPose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	// input is origin-relative, so the new origin is the old one plus input
	in := c.input
	c.resetLocked(ResetOriginChanged)
	if in.X != nil {
		c.originX += *in.X
	}
	if in.Y != nil {
		c.originY += *in.Y
	}
	if in.Z != nil {
		c.originZ += *in.Z
	}
	if in.Yaw != nil {
		c.originYaw += *in.Yaw
	}
}

// Reset drops the target and clears all controller state.  A reset of an idle
// controller with no target is a no-op; an idle controller holding a target
// is reset.
func (c *Controller) Reset(reason ResetReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked(reason)
}

func (c *Controller) resetLocked(reason ResetReason) {
	// a reset of an idle, targetless controller is a no-op; a target that has
	// not seen a measurement yet must still be cancellable
	if c.target == nil {
		if st, ok := c.state.Last(); ok && st.Kind == StateIdle {
			return
		}
	}
	c.target = nil
	c.input = Pose{}
	c.output = Controls{}
	c.pidX.Reset()
	c.pidY.Reset()
	c.pidZ.Reset()
	c.pidYaw.Reset()
	c.state.Publish(ControllerState{Kind: StateReset, Reason: reason})
	c.state.Publish(ControllerState{Kind: StateIdle})
}

func (c *Controller) onPosition(s PositionSample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !s.Valid.PosX || !s.Valid.PosY {
		c.failures++
		if c.failures >= positionFailureThreshold && !c.failed {
			c.failed = true
			log.Warnf("Position sensor failed %d consecutive samples, resetting controller", c.failures)
			c.resetLocked(ResetSensorFailure)
		}
		return
	}
	c.failures = 0
	c.failed = false

	c.applyMeasurement(Pose{
		X: Float(s.Position.X - c.originX),
		Y: Float(s.Position.Y - c.originY),
		Z: Float(s.Position.Z - c.originZ),
	})
}

func (c *Controller) onOrientation(m Imu) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyMeasurement(Pose{Yaw: Float(wrapAngle(m.Yaw - c.originYaw))})
}

// applyMeasurement merges one sparse measurement into the running input,
// updates the PIDs and publishes the merged output.  Callers hold c.mu.
func (c *Controller) applyMeasurement(m Pose) {
	c.input.assignNonEmpty(m)
	out := c.updateLocked(c.input)
	if out == nil {
		return
	}
	c.output.assignNonEmpty(*out)
	c.outputs.Publish(c.output)
}

// updateLocked runs every axis PID whose target and measurement are both set,
// and moves the state machine.  Callers hold c.mu.
func (c *Controller) updateLocked(measured Pose) *Controls {
	if c.target == nil {
		c.state.Publish(ControllerState{Kind: StateIdle})
		return nil
	}
	c.state.Publish(ControllerState{Kind: StateCorrecting})

	out := Controls{}
	invoked := 0
	allConverged := true

	if corr, ok := axisUpdate(c.pidX, c.target.X, measured.X); ok {
		out.Pitch = Float(corr)
		invoked++
		allConverged = allConverged && c.pidX.Converged()
	}
	if corr, ok := axisUpdate(c.pidY, c.target.Y, measured.Y); ok {
		out.Roll = Float(-corr)
		invoked++
		allConverged = allConverged && c.pidY.Converged()
	}
	if corr, ok := axisUpdate(c.pidZ, c.target.Z, measured.Z); ok {
		out.Thrust = Float(corr)
		invoked++
		allConverged = allConverged && c.pidZ.Converged()
	}
	if corr, ok := axisUpdate(c.pidYaw, c.target.Yaw, measured.Yaw); ok {
		out.Yaw = Float(corr)
		invoked++
		allConverged = allConverged && c.pidYaw.Converged()
	}

	if invoked > 0 && allConverged {
		c.state.Publish(ControllerState{Kind: StateConverged})
	}
	return &out
}

// axisUpdate invokes one axis PID if both its target and measurement are set
// and finite.
func axisUpdate(pid *PID, target, measured *float64) (corr float64, ok bool) {
	if target == nil || measured == nil {
		return 0, false
	}
	if math.IsNaN(*target) || math.IsInf(*target, 0) ||
		math.IsNaN(*measured) || math.IsInf(*measured, 0) {
		return 0, false
	}
	return pid.Update(*target, *measured), true
}
