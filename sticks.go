// sticks.go

// This file contains the periodic stick ("keep-alive") sender.  The stick
// packet is the only way commands reach the drone, so it is sent at a fixed
// cadence whenever the link is up, carrying the latest controls.

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
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// defaultKeepAliveInterval is the stick packet cadence: 20 Hz.
const defaultKeepAliveInterval = 50 * time.Millisecond

const (
	stickNeutral = 1024
	stickScale   = 660
)

// stickState is the dense form of the current controls.  Axes are in
// [-1.0, 1.0]; unset controller outputs default to zero.
type stickState struct {
	roll, pitch, yaw, thrust float64
	fastMode                 bool
}

// apply merges the set fields of a sparse Controls into the stick state.
func (st *stickState) apply(c Controls) {
	if c.Roll != nil {
		st.roll = *c.Roll
	}
	if c.Pitch != nil {
		st.pitch = *c.Pitch
	}
	if c.Yaw != nil {
		st.yaw = *c.Yaw
	}
	if c.Thrust != nil {
		st.thrust = *c.Thrust
	}
}

// stickToAxis clamps an axis value to [-1, 1] and maps it onto the drone's
// 11-bit range around the neutral point.
func stickToAxis(v float64) uint64 {
	v = math.Max(-1, math.Min(1, v))
	return uint64(stickNeutral + int(math.Round(stickScale*v)))
}

// encodeStickPayload packs the five axes (roll, pitch, thrust, yaw, fast mode)
// LSB-first into eleven bits each, followed by a local wall-clock tail.  The
// millisecond value is carried as two LE 16-bit words holding its low and high
// byte; redundant, but that is what the drone expects.
func encodeStickPayload(st stickState, now time.Time) []byte {
	var fast uint64
	if st.fastMode {
		fast = 1
	}
	packed := stickToAxis(st.roll) |
		stickToAxis(st.pitch)<<11 |
		stickToAxis(st.thrust)<<22 |
		stickToAxis(st.yaw)<<33 |
		fast<<44

	payload := make([]byte, 14)
	for i := 0; i < 7; i++ {
		payload[i] = byte(packed >> (8 * i))
	}

	h, m, s := now.Clock()
	ms := now.Nanosecond() / int(time.Millisecond)
	payload[7] = byte(h)
	payload[8] = byte(m)
	payload[9] = byte(s)
	binary.LittleEndian.PutUint16(payload[10:], uint16(ms&0xff))
	binary.LittleEndian.PutUint16(payload[12:], uint16(ms>>8))

	return payload
}

// keepalive fires a callback at the stick cadence.  It is pausable rather
// than merely cancellable so that disconnect/connect cycles do not leak a
// goroutine per connection.
type keepalive struct {
	interval time.Duration
	tick     func()

	mu      sync.Mutex
	paused  bool
	stopCh  chan struct{}
	started bool
}

func newKeepalive(tick func()) *keepalive {
	return &keepalive{
		interval: defaultKeepAliveInterval,
		tick:     tick,
		paused:   true,
	}
}

// start launches the timer goroutine.  It is a no-op if already started.
func (k *keepalive) start() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.started {
		return
	}
	k.started = true
	k.stopCh = make(chan struct{})
	go k.run(k.stopCh)
}

func (k *keepalive) run(stop chan struct{}) {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			k.mu.Lock()
			paused := k.paused
			k.mu.Unlock()
			if !paused {
				k.tick()
			}
		}
	}
}

// resume lets ticks fire.
func (k *keepalive) resume() {
	k.mu.Lock()
	k.paused = false
	k.mu.Unlock()
}

// pause suppresses ticks without stopping the timer.
func (k *keepalive) pause() {
	k.mu.Lock()
	k.paused = true
	k.mu.Unlock()
}

// stopAll releases the timer goroutine and leaves the keepalive paused; a
// later start launches a new goroutine.
func (k *keepalive) stopAll() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.started {
		return
	}
	k.started = false
	k.paused = true
	close(k.stopCh)
}
