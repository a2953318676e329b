// flightCommands.go

// This file contains the Tello flight command API except for stick control.

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

import "encoding/binary"

// CalibrationType selects what Calibrate() calibrates.
type CalibrationType byte

// Calibration types.
const (
	CalibrateGyro CalibrationType = iota
	CalibrateIMU
)

// TakeOff sends a normal takeoff request to the Tello.
func (tello *Tello) TakeOff() {
	tello.link.send(newPacket(ptSet, msgDoTakeoff, 0, 0))
}

// ThrowTakeOff initiates a 'throw and go' launch.
func (tello *Tello) ThrowTakeOff() {
	tello.link.send(newPacket(ptGet, msgDoThrowTakeoff, 0, 0))
}

// Land sends a normal Land request to the Tello.  Any active GoTo target is
// cancelled.
func (tello *Tello) Land() {
	tello.ctrl.Reset(ResetTargetCanceled)
	pkt := newPacket(ptSet, msgDoLand, 0, 1)
	pkt.payload[0] = 0 // see StopLanding() for use of this field
	tello.link.send(pkt)
}

// StopLanding cancels a land command.
func (tello *Tello) StopLanding() {
	pkt := newPacket(ptSet, msgDoLand, 0, 1)
	pkt.payload[0] = 1
	tello.link.send(pkt)
}

// PalmLand initiates a Palm Landing.
func (tello *Tello) PalmLand() {
	tello.ctrl.Reset(ResetTargetCanceled)
	pkt := newPacket(ptSet, msgDoPalmLand, 0, 1)
	pkt.payload[0] = 0
	tello.link.send(pkt)
}

// Emergency zeroes the sticks, cancels any active target and asks the drone
// to cut its motors.
func (tello *Tello) Emergency() {
	tello.ctrl.Reset(ResetTargetCanceled)
	tello.mu.Lock()
	tello.sticks = stickState{}
	tello.mu.Unlock()
	pkt := newPacket(ptSet, msgDoLand, 0, 1)
	pkt.payload[0] = 2
	tello.link.send(pkt)
}

// Bounce toggles the bouncing mode of the Tello.
func (tello *Tello) Bounce() {
	tello.mu.Lock()
	bouncing := tello.bouncing
	tello.bouncing = !bouncing
	tello.mu.Unlock()

	pkt := newPacket(ptSet, msgDoBounce, 0, 1)
	if bouncing {
		pkt.payload[0] = 0x31
	} else {
		pkt.payload[0] = 0x30
	}
	tello.link.send(pkt)
}

// Flip sends a flip flight command to the Tello.
func (tello *Tello) Flip(dir FlipType) {
	pkt := newPacket(ptFlip, msgDoFlip, 0, 1)
	pkt.payload[0] = byte(dir)
	tello.link.send(pkt)
}

// StartSmartVideo begins a preprogrammed 'smart video' flight action.
func (tello *Tello) StartSmartVideo(cmd SvCmd) {
	pkt := newPacket(ptSet, msgDoSmartVideo, 0, 1)
	pkt.payload[0] = byte(cmd) | 0x01
	tello.link.send(pkt)
}

// StopSmartVideo ends a preprogrammed 'smart video' flight action.
func (tello *Tello) StopSmartVideo(cmd SvCmd) {
	pkt := newPacket(ptSet, msgDoSmartVideo, 0, 1)
	pkt.payload[0] = byte(cmd)
	tello.link.send(pkt)
}

// Calibrate starts the requested calibration.  IMU calibration needs the
// multi-pose sequence from the official app; this merely sends the command.
func (tello *Tello) Calibrate(ct CalibrationType) {
	pkt := newPacket(ptSet, msgDoCalibration, 0, 1)
	pkt.payload[0] = byte(ct)
	tello.link.send(pkt)
}

// SetHeightLimit sets the maximum flight altitude in metres.
func (tello *Tello) SetHeightLimit(metres uint16) {
	pkt := newPacket(ptSet, msgSetHeightLimit, 0, 2)
	binary.LittleEndian.PutUint16(pkt.payload, metres)
	tello.link.send(pkt)
}

// SetLowBatteryThreshold sets the percentage at which the drone considers its
// battery low.
func (tello *Tello) SetLowBatteryThreshold(pct uint8) {
	pkt := newPacket(ptSet, msgSetLowBattThresh, 0, 1)
	pkt.payload[0] = pct
	tello.link.send(pkt)
}

// SetSportsMode sets the fast-mode bit of subsequent stick packets.
func (tello *Tello) SetSportsMode(sports bool) {
	tello.mu.Lock()
	tello.sticks.fastMode = sports
	tello.mu.Unlock()
}

// SetFastMode sets the 'fast' or 'sports' mode of flight.
func (tello *Tello) SetFastMode() {
	tello.SetSportsMode(true)
}

// SetSlowMode sets the 'slow' or 'normal' mode of flight.
func (tello *Tello) SetSlowMode() {
	tello.SetSportsMode(false)
}

// ManualSticks takes over stick control: it cancels any active GoTo target
// and sets the axes directly.  Values are clamped to [-1, 1] when sent.
func (tello *Tello) ManualSticks(roll, pitch, yaw, thrust float64) {
	tello.ctrl.Reset(ResetTargetCanceled)
	tello.mu.Lock()
	tello.sticks.roll = roll
	tello.sticks.pitch = pitch
	tello.sticks.yaw = yaw
	tello.sticks.thrust = thrust
	tello.mu.Unlock()
}

// Hover halts all motion: the target is dropped and the sticks are zeroed.
func (tello *Tello) Hover() {
	if st, ok := tello.ctrl.State().Last(); ok && st.Kind == StateConverged {
		tello.ctrl.Reset(ResetTargetCompleted)
	} else {
		tello.ctrl.Reset(ResetTargetCanceled)
	}
	tello.mu.Lock()
	tello.sticks.roll = 0
	tello.sticks.pitch = 0
	tello.sticks.yaw = 0
	tello.sticks.thrust = 0
	tello.mu.Unlock()
}

// Flips...

// BackFlip - flip backwards.
func (tello *Tello) BackFlip() { tello.Flip(FlipBackward) }

// BackLeftFlip - flip backwards and to the left.
func (tello *Tello) BackLeftFlip() { tello.Flip(FlipBackwardLeft) }

// BackRightFlip - flip backwards and to the right.
func (tello *Tello) BackRightFlip() { tello.Flip(FlipBackwardRight) }

// ForwardFlip - flip forwards.
func (tello *Tello) ForwardFlip() { tello.Flip(FlipForward) }

// ForwardRightFlip - flip forwards and to the right.
func (tello *Tello) ForwardRightFlip() { tello.Flip(FlipForwardRight) }

// ForwardLeftFlip - flip forward and to the left.
func (tello *Tello) ForwardLeftFlip() { tello.Flip(FlipForwardLeft) }

// LeftFlip - flip to the left.
func (tello *Tello) LeftFlip() { tello.Flip(FlipLeft) }

// RightFlip - flip to the right.
func (tello *Tello) RightFlip() { tello.Flip(FlipRight) }
