// records.go

// This file contains the fixed-layout telemetry records reported by the drone
// and their decoders.  All records are little-endian and tightly packed.

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
	"errors"
	"math"
)

// ErrShortPayload is returned when a byte slice is shorter than the record it
// is supposed to contain.
var ErrShortPayload = errors.New("tello: payload too short for record")

// Vector3 is a three-component vector in the library's canonical frame
// (X forward, Y left, Z up) unless noted otherwise.
type Vector3 struct {
	X, Y, Z float64
}

// Matrix3 is a 3x3 matrix in row-major order.
type Matrix3 [3][3]float64

// Quaternion is an orientation quaternion with scalar part W.
type Quaternion struct {
	W, X, Y, Z float64
}

// AxisValidity flags which velocity and position axes of an odometry sample
// the drone considers trustworthy.
type AxisValidity struct {
	VelX, VelY, VelZ bool
	PosX, PosY, PosZ bool
}

// Mvo is a multiview-visual-odometry sample: a slower position/velocity
// estimate with covariance, published at roughly 5 Hz.
type Mvo struct {
	Velocity       Vector3 // m/s
	Position       Vector3 // m
	PositionCov    Matrix3
	VelocityCov    Matrix3
	Height         float64 // m
	HeightVariance float64
	Valid          AxisValidity
}

// Vo is a visual(-inertial) odometry sample, published at roughly 10 Hz.
type Vo struct {
	Velocity Vector3 // m/s
	Position Vector3 // m
	Valid    AxisValidity
}

// Imu is an inertial sample: body-frame rates and accelerations plus the
// fused orientation, published at roughly 10 Hz.
type Imu struct {
	Accel            Vector3 // m/s^2
	Gyro             Vector3 // rad/s, body frame
	Mag              Vector3
	Orientation      Quaternion
	Roll, Pitch, Yaw float64 // rad, extracted from Orientation
	Temperature      float64 // degrees C
}

// FlightData is the drone's periodic status report.
type FlightData struct {
	BatteryLow               bool
	BatteryLower             bool
	BatteryPercentage        int8
	BatteryState             bool
	CameraState              uint8
	DownVisualState          bool
	DroneBatteryLeft         int16
	DroneFlyTimeLeft         int16
	DroneHover               bool
	EmSky                    bool
	EmGround                 bool
	EmOpen                   bool
	EastSpeed                int16
	ElectricalMachineryState uint8
	FactoryMode              bool
	FlyMode                  uint8
	FlyTime                  int16
	FrontIn                  bool
	FrontLSC                 bool
	FrontOut                 bool
	GravityState             bool
	GroundSpeed              int16
	Height                   int16 // dm
	ImuCalibrationState      int8
	ImuState                 bool
	NorthSpeed               int16
	OutageRecording          bool
	OverTemp                 bool
	PowerState               bool
	PressureState            bool
	ThrowFlyTimer            int8
	VerticalSpeed            int16
	WindState                bool
}

// WifiData carries the drone's view of the wifi link quality.
type WifiData struct {
	Strength     uint8
	Interference uint8
}

const flightDataLen = 24

// decodeFlightData decodes the 24-byte flight status payload.
func decodeFlightData(pl []byte) (fd FlightData, err error) {
	if len(pl) < flightDataLen {
		return fd, ErrShortPayload
	}
	fd.Height = int16(binary.LittleEndian.Uint16(pl[0:]))
	fd.NorthSpeed = int16(binary.LittleEndian.Uint16(pl[2:]))
	fd.EastSpeed = int16(binary.LittleEndian.Uint16(pl[4:]))
	fd.VerticalSpeed = int16(binary.LittleEndian.Uint16(pl[6:]))
	fd.FlyTime = int16(binary.LittleEndian.Uint16(pl[8:]))

	fd.ImuState = pl[10]&1 == 1
	fd.PressureState = pl[10]>>1&1 == 1
	fd.DownVisualState = pl[10]>>2&1 == 1
	fd.PowerState = pl[10]>>3&1 == 1
	fd.BatteryState = pl[10]>>4&1 == 1
	fd.GravityState = pl[10]>>5&1 == 1
	// what is bit 6?
	fd.WindState = pl[10]>>7&1 == 1

	fd.ImuCalibrationState = int8(pl[11])
	fd.BatteryPercentage = int8(pl[12])
	fd.DroneFlyTimeLeft = int16(binary.LittleEndian.Uint16(pl[13:]))
	fd.DroneBatteryLeft = int16(binary.LittleEndian.Uint16(pl[15:]))

	fd.EmSky = pl[17]&1 == 1
	fd.EmGround = pl[17]>>1&1 == 1
	fd.EmOpen = pl[17]>>2&1 == 1
	fd.DroneHover = pl[17]>>3&1 == 1
	fd.OutageRecording = pl[17]>>4&1 == 1
	fd.BatteryLow = pl[17]>>5&1 == 1
	fd.BatteryLower = pl[17]>>6&1 == 1
	fd.FactoryMode = pl[17]>>7&1 == 1

	fd.FlyMode = pl[18]
	fd.ThrowFlyTimer = int8(pl[19])
	fd.CameraState = pl[20]
	fd.ElectricalMachineryState = pl[21]

	fd.FrontIn = pl[22]&1 == 1
	fd.FrontOut = pl[22]>>1&1 == 1
	fd.FrontLSC = pl[22]>>2&1 == 1
	fd.OverTemp = pl[23]&1 == 1

	return fd, nil
}

// Log-record payload layouts.  Offsets are within the de-obfuscated record
// payload, ie. after the log-record header has been stripped.
const (
	mvoPayloadLen = 80
	imuPayloadLen = 108
	voPayloadLen  = 60
)

func f32(pl []byte, off int) float64 {
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(pl[off:])))
}

func i16(pl []byte, off int) int16 {
	return int16(binary.LittleEndian.Uint16(pl[off:]))
}

// covFromTriangle fills a symmetric 3x3 from the six upper-triangle floats
// the drone reports: {c1 c2 c3 / c2 c4 c5 / c3 c5 c6}.
func covFromTriangle(pl []byte, off int) (m Matrix3) {
	c := [6]float64{}
	for i := range c {
		c[i] = f32(pl, off+4*i)
	}
	m[0][0], m[0][1], m[0][2] = c[0], c[1], c[2]
	m[1][0], m[1][1], m[1][2] = c[1], c[3], c[4]
	m[2][0], m[2][1], m[2][2] = c[2], c[4], c[5]
	return m
}

func decodeValidity(b byte) AxisValidity {
	return AxisValidity{
		VelX: b&0x01 != 0,
		VelY: b&0x02 != 0,
		VelZ: b&0x04 != 0,
		PosX: b&0x08 != 0,
		PosY: b&0x10 != 0,
		PosZ: b&0x20 != 0,
	}
}

// decodeMvoRecord decodes an MVO log record payload.  Values are left in the
// drone's native (Z-down) frame; velocities are converted from mm/s.
func decodeMvoRecord(pl []byte) (m Mvo, err error) {
	if len(pl) < mvoPayloadLen {
		return m, ErrShortPayload
	}
	m.Velocity = Vector3{
		X: float64(i16(pl, 2)) / 1000.0,
		Y: float64(i16(pl, 4)) / 1000.0,
		Z: float64(i16(pl, 6)) / 1000.0,
	}
	m.Position = Vector3{X: f32(pl, 8), Y: f32(pl, 12), Z: f32(pl, 16)}
	m.PositionCov = covFromTriangle(pl, 20)
	m.VelocityCov = covFromTriangle(pl, 44)
	m.Height = f32(pl, 68)
	m.HeightVariance = f32(pl, 72)
	m.Valid = decodeValidity(pl[76])
	return m, nil
}

// decodeImuRecord decodes an IMU log record payload in the drone's frame.
// The reported temperature is in centi-degrees.
func decodeImuRecord(pl []byte) (m Imu, err error) {
	if len(pl) < imuPayloadLen {
		return m, ErrShortPayload
	}
	m.Orientation = Quaternion{W: f32(pl, 0), X: f32(pl, 4), Y: f32(pl, 8), Z: f32(pl, 12)}
	m.Accel = Vector3{X: f32(pl, 16), Y: f32(pl, 20), Z: f32(pl, 24)}
	m.Gyro = Vector3{X: f32(pl, 28), Y: f32(pl, 32), Z: f32(pl, 36)}
	m.Mag = Vector3{X: float64(i16(pl, 40)), Y: float64(i16(pl, 42)), Z: float64(i16(pl, 44))}
	m.Temperature = float64(i16(pl, 46)) / 100.0
	return m, nil
}

// decodeVoRecord decodes an ImuEx log record payload in the drone's frame.
// The trailing ultrasonic and RTK fields are not used by this library.
func decodeVoRecord(pl []byte) (v Vo, err error) {
	if len(pl) < voPayloadLen {
		return v, ErrShortPayload
	}
	v.Velocity = Vector3{X: f32(pl, 0), Y: f32(pl, 4), Z: f32(pl, 8)}
	v.Position = Vector3{X: f32(pl, 12), Y: f32(pl, 16), Z: f32(pl, 20)}
	v.Valid = decodeValidity(pl[56])
	return v, nil
}

// decodeProximity decodes the ultrasonic distance record: a 16-bit LE
// millimetre reading converted to metres.
func decodeProximity(pl []byte) (m float64, err error) {
	if len(pl) < 2 {
		return 0, ErrShortPayload
	}
	return float64(binary.LittleEndian.Uint16(pl)) / 1000.0, nil
}
