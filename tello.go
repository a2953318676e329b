// tello.go

// This file wires the transport, decoders, sensor channels, keep-alive sender
// and position controller together into the drone facade.

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
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// PackageVersion is the semantic version of this library.
const PackageVersion = "v0.9.0"

// FlightState is the coarse flight phase derived from the status report.
type FlightState int

// Flight states.
const (
	FlightLanded FlightState = iota
	FlightTakingOff
	FlightFlying
	FlightHovering
	FlightLanding
)

func (s FlightState) String() string {
	switch s {
	case FlightLanded:
		return "landed"
	case FlightTakingOff:
		return "takingOff"
	case FlightFlying:
		return "flying"
	case FlightHovering:
		return "hovering"
	case FlightLanding:
		return "landing"
	}
	return "invalid"
}

// PositionSource selects which odometry stream drives the controller.
type PositionSource int

// Position sources.
const (
	PositionFromVO PositionSource = iota
	PositionFromMVO
)

// Option configures a Tello at construction.
type Option func(*Tello)

// WithTimeout overrides the receive watchdog interval (default 2s).
func WithTimeout(d time.Duration) Option {
	return func(t *Tello) { t.link.timeout = d }
}

// WithKeepAliveInterval overrides the stick packet cadence (default 50ms).
func WithKeepAliveInterval(d time.Duration) Option {
	return func(t *Tello) { t.keepalive.interval = d }
}

// WithFrameValidation enables CRC checking of inbound frames.  The drone's
// own frames are well formed, so this is off by default.
func WithFrameValidation(on bool) Option {
	return func(t *Tello) { t.link.validate = on }
}

// Tello is the drone facade: it owns the control link, the keep-alive sender,
// the position controller and all sensor channels.
type Tello struct {
	link      *link
	keepalive *keepalive
	ctrl      *Controller

	mu       sync.Mutex
	sticks   stickState
	bouncing bool

	flightData    *Sensor[FlightData]
	flightState   *Sensor[FlightState]
	wifiData      *Sensor[WifiData]
	lightStrength *Sensor[uint8]
	imu           *Sensor[Imu]
	mvo           *Sensor[Mvo]
	vo            *Sensor[Vo]
	proximity     *Sensor[float64]
	voPositions   *Sensor[PositionSample]
	mvoPositions  *Sensor[PositionSample]
}

// NewTello returns a disconnected drone facade.  The controller is sourced
// from VO odometry and IMU orientation until SetControllerSource says
// otherwise.
func NewTello(opts ...Option) *Tello {
	t := &Tello{
		link:          newLink(),
		ctrl:          NewController(),
		flightData:    NewSensor[FlightData](),
		flightState:   NewDedupSensor[FlightState](),
		wifiData:      NewDedupSensor[WifiData](),
		lightStrength: NewDedupSensor[uint8](),
		imu:           NewSensor[Imu](),
		mvo:           NewSensor[Mvo](),
		vo:            NewSensor[Vo](),
		proximity:     NewSensor[float64](),
		voPositions:   NewSensor[PositionSample](),
		mvoPositions:  NewSensor[PositionSample](),
	}
	t.keepalive = newKeepalive(t.sendStickUpdate)

	t.link.handle(msgFlightStatus, t.handleFlightStatus)
	t.link.handle(msgWifiStrength, t.handleWifiStrength)
	t.link.handle(msgLightStrength, t.handleLightStrength)
	t.link.handle(msgLogHeader, t.handleLogHeader)
	t.link.handle(msgLogData, t.handleLogData)
	t.link.handle(msgLogConfig, t.handleLogConfig)
	t.link.handle(msgSetDateTime, t.handleSetDateTime)
	t.link.handle(msgDoTakeoff, t.handleAck)
	t.link.handle(msgDoLand, t.handleAck)
	t.link.handle(msgDoCalibration, t.handleAck)
	t.link.handle(msgGetHeightLimit, t.handleAck)
	t.link.handle(msgGetLowBattThresh, t.handleAck)
	t.link.handle(msgGetAttitude, t.handleAck)
	t.link.handle(msgError1, t.handleError)
	t.link.handle(msgError2, t.handleError)

	t.link.onConnected = func() {
		log.Info("Connected to Tello control channel")
		t.keepalive.resume()
	}
	t.link.onSuspended = func() {
		t.keepalive.pause()
	}

	t.ctrl.Source(t.voPositions, t.imu)
	t.ctrl.Outputs().Subscribe(func(c Controls) {
		t.mu.Lock()
		// unset controller outputs fly as neutral sticks
		t.sticks.roll, t.sticks.pitch, t.sticks.yaw, t.sticks.thrust = 0, 0, 0, 0
		t.sticks.apply(c)
		t.mu.Unlock()
	})

	for _, opt := range opts {
		opt(t)
	}
	t.keepalive.start()
	return t
}

// Connect starts the connection handshake with a drone at the given address.
// The returned error covers socket setup only; follow ConnectionState() for
// the rest of the lifecycle.
func (tello *Tello) Connect(host string, port int) error {
	return tello.link.connect(host, port)
}

// ConnectDefault connects to a drone at the standard address.
func (tello *Tello) ConnectDefault() error {
	return tello.Connect(defaultTelloAddr, defaultTelloControlPort)
}

// Disconnect cancels any active target, pauses the keep-alive sender and
// closes the connection.  The facade can be connected again afterwards.
func (tello *Tello) Disconnect() {
	tello.ctrl.Reset(ResetTargetCanceled)
	tello.link.disconnect()
}

// Close disconnects and releases the keep-alive timer.  The facade cannot be
// reused afterwards.
func (tello *Tello) Close() {
	tello.Disconnect()
	tello.keepalive.stopAll()
}

// Sensor channel accessors.

// ConnectionState reports the control link lifecycle.
func (tello *Tello) ConnectionState() *Sensor[ConnectionState] { return tello.link.state }

// FlightData carries every decoded status report.
func (tello *Tello) FlightData() *Sensor[FlightData] { return tello.flightData }

// FlightState carries the derived flight phase; only changes are published.
func (tello *Tello) FlightState() *Sensor[FlightState] { return tello.flightState }

// WifiData carries link quality reports.
func (tello *Tello) WifiData() *Sensor[WifiData] { return tello.wifiData }

// LightStrength carries the ambient light metric.
func (tello *Tello) LightStrength() *Sensor[uint8] { return tello.lightStrength }

// IMU carries inertial samples in the canonical frame.
func (tello *Tello) IMU() *Sensor[Imu] { return tello.imu }

// MVO carries multiview visual odometry in the canonical frame.
func (tello *Tello) MVO() *Sensor[Mvo] { return tello.mvo }

// VO carries visual-inertial odometry in the canonical frame.
func (tello *Tello) VO() *Sensor[Vo] { return tello.vo }

// Proximity carries the ultrasonic height in metres.
func (tello *Tello) Proximity() *Sensor[float64] { return tello.proximity }

// Controller returns the position controller.
func (tello *Tello) Controller() *Controller { return tello.ctrl }

// Controller command surface.

// GoTo commands a position/attitude target.  Unset axes are left alone.
func (tello *Tello) GoTo(x, y, z, yaw *float64) {
	tello.ctrl.SetTarget(Pose{X: x, Y: y, Z: z, Yaw: yaw})
}

// GoToYaw commands a heading-only target in radians.
func (tello *Tello) GoToYaw(yaw float64) {
	tello.ctrl.SetTarget(Pose{Yaw: Float(yaw)})
}

// SetControllerSource picks the odometry stream feeding the controller.
func (tello *Tello) SetControllerSource(src PositionSource) {
	switch src {
	case PositionFromMVO:
		tello.ctrl.Source(tello.mvoPositions, tello.imu)
	default:
		tello.ctrl.Source(tello.voPositions, tello.imu)
	}
}

// SetControllerGains replaces the per-axis PID parameters.
func (tello *Tello) SetControllerGains(x, y, z, yaw PIDGains) error {
	return tello.ctrl.SetGains(x, y, z, yaw)
}

// SetOrigin shifts the controller's coordinate frame.
func (tello *Tello) SetOrigin(o Pose) {
	tello.ctrl.SetOrigin(o)
}

// SetOriginToCurrentPose makes the controller's latest input the origin.
func (tello *Tello) SetOriginToCurrentPose() {
	tello.ctrl.SetOriginToCurrentPose()
}

// SetOriginToVo composes an origin from the latest VO position, the
// ultrasonic height and the IMU yaw.
func (tello *Tello) SetOriginToVo() {
	o := Pose{}
	if v, ok := tello.vo.Last(); ok {
		o.X = Float(v.Position.X)
		o.Y = Float(v.Position.Y)
	}
	if h, ok := tello.proximity.Last(); ok {
		o.Z = Float(h)
	}
	if m, ok := tello.imu.Last(); ok {
		o.Yaw = Float(m.Yaw)
	}
	tello.ctrl.SetOrigin(o)
}

// SetTimeDate sends the given time to the drone.
func (tello *Tello) SetTimeDate(t time.Time) {
	tello.sendTimeDate(t)
}

// Inbound handlers.  All of them run on the receive goroutine.

func (tello *Tello) handleFlightStatus(pkt packet) {
	fd, err := decodeFlightData(pkt.payload)
	if err != nil {
		log.Warnf("Dropping short flight status payload - %v", err)
		return
	}
	tello.flightData.Publish(fd)
	if st, ok := deriveFlightState(fd.FlyMode, fd.EmSky); ok {
		tello.flightState.Publish(st)
	}
}

// deriveFlightState maps the (flyMode, emSky) pair onto a flight phase.
// Unlisted combinations leave the flight state unchanged.
func deriveFlightState(flyMode uint8, emSky bool) (FlightState, bool) {
	switch {
	case flyMode == 1 && emSky:
		return FlightFlying, true
	case flyMode == 6 && emSky:
		return FlightHovering, true
	case flyMode == 6 && !emSky:
		return FlightLanded, true
	case flyMode == 11 && emSky:
		return FlightTakingOff, true
	case flyMode == 12 && emSky:
		return FlightLanding, true
	}
	return 0, false
}

func (tello *Tello) handleWifiStrength(pkt packet) {
	if len(pkt.payload) < 2 {
		return
	}
	tello.wifiData.Publish(WifiData{Strength: pkt.payload[0], Interference: pkt.payload[1]})
}

func (tello *Tello) handleLightStrength(pkt packet) {
	if len(pkt.payload) < 1 {
		return
	}
	tello.lightStrength.Publish(pkt.payload[0])
}

// handleLogHeader acknowledges the log header so the drone starts streaming
// log data.
func (tello *Tello) handleLogHeader(pkt packet) {
	if len(pkt.payload) < 2 {
		return
	}
	ack := newPacket(ptData1, msgLogHeader, 0, 3)
	ack.payload[1] = pkt.payload[0]
	ack.payload[2] = pkt.payload[1]
	tello.link.send(ack)
}

func (tello *Tello) handleLogData(pkt packet) {
	if len(pkt.payload) < 1 {
		return
	}
	// the first payload byte is always zero and is not part of the record stream
	events, err := parseLogPayload(pkt.payload[1:])
	if err != nil {
		// a corrupted payload is discarded whole, including any records
		// parsed before the bad separator
		log.Warnf("Discarding flight log payload - %v", err)
		return
	}
	for _, ev := range events {
		switch rec := ev.(type) {
		case Mvo:
			rec.Velocity = rotateVector(rec.Velocity)
			rec.Position = rotateVector(rec.Position)
			rec.PositionCov = rotateCovariance(rec.PositionCov)
			rec.VelocityCov = rotateCovariance(rec.VelocityCov)
			tello.mvo.Publish(rec)
			tello.mvoPositions.Publish(PositionSample{Position: rec.Position, Valid: rec.Valid})
		case Imu:
			rec.Accel = rotateVector(rec.Accel)
			rec.Gyro = rotateVector(rec.Gyro)
			rec.Mag = rotateVector(rec.Mag)
			rec.Orientation, rec.Roll, rec.Pitch, rec.Yaw = rotateOrientation(rec.Orientation)
			tello.imu.Publish(rec)
		case Vo:
			rec.Velocity = rotateVector(rec.Velocity)
			rec.Position = rotateVector(rec.Position)
			tello.vo.Publish(rec)
			tello.voPositions.Publish(PositionSample{Position: rec.Position, Valid: rec.Valid})
		case Proximity:
			tello.proximity.Publish(float64(rec))
		case UnhandledRecord:
			log.Debugf("Ignoring %s log record (%d bytes)", rec.Name, rec.Length)
		case UnknownRecord:
			log.Debugf("Unknown log record type %#x", rec.Type)
		}
	}
}

func (tello *Tello) handleLogConfig(pkt packet) {
	log.Debugf("Log config received, %d bytes", len(pkt.payload))
}

// handleSetDateTime answers the drone's request for the local time.
func (tello *Tello) handleSetDateTime(pkt packet) {
	tello.sendTimeDate(time.Now())
}

func (tello *Tello) sendTimeDate(t time.Time) {
	pkt := newPacket(ptData1, msgSetDateTime, 0, 15)
	pl := pkt.payload
	pl[0] = 0
	binary.LittleEndian.PutUint16(pl[1:], uint16(t.Year()))
	binary.LittleEndian.PutUint16(pl[3:], uint16(t.Month()))
	binary.LittleEndian.PutUint16(pl[5:], uint16(t.Day()))
	binary.LittleEndian.PutUint16(pl[7:], uint16(t.Hour()))
	binary.LittleEndian.PutUint16(pl[9:], uint16(t.Minute()))
	binary.LittleEndian.PutUint16(pl[11:], uint16(t.Second()))
	binary.LittleEndian.PutUint16(pl[13:], uint16(t.Nanosecond()/int(time.Millisecond)))
	tello.link.send(pkt)
}

func (tello *Tello) handleAck(pkt packet) {
	log.Debugf("Ack for message %#x received", pkt.messageID)
}

func (tello *Tello) handleError(pkt packet) {
	log.Warnf("Drone reported error message %#x, payload %v", pkt.messageID, pkt.payload)
}

// sendStickUpdate is the keep-alive tick: it snapshots the current controls
// and emits one stick packet.
func (tello *Tello) sendStickUpdate() {
	tello.mu.Lock()
	st := tello.sticks
	tello.mu.Unlock()

	pkt := newPacket(ptData2, msgSetStick, 0, 0)
	pkt.payload = encodeStickPayload(st, time.Now())
	tello.link.send(pkt)
}
