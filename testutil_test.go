// testutil_test.go

// Test helpers for constructing the drone's wire artefacts.

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
)

// buildLogRecord assembles one flight-log record around a plaintext payload,
// obfuscating it with the given XOR key.  The trailing CRC bytes are left
// zero; inbound log records are not CRC-checked.
func buildLogRecord(typ uint16, xorKey byte, payload []byte) []byte {
	recLen := logRecHeaderLen + len(payload) + 2
	rec := make([]byte, recLen)
	rec[0] = logRecordSeparator
	binary.LittleEndian.PutUint16(rec[1:], uint16(recLen))
	binary.LittleEndian.PutUint16(rec[4:], typ)
	rec[6] = xorKey
	for i, b := range payload {
		rec[logRecHeaderLen+i] = b ^ xorKey
	}
	return rec
}

func putF32(pl []byte, off int, v float64) {
	binary.LittleEndian.PutUint32(pl[off:], math.Float32bits(float32(v)))
}

func putI16(pl []byte, off int, v int16) {
	binary.LittleEndian.PutUint16(pl[off:], uint16(v))
}

// buildMvoPayload assembles a plaintext MVO record payload.
func buildMvoPayload(velMM [3]int16, pos [3]float64, posCov, velCov [6]float64, height, hvar float64, validity byte) []byte {
	pl := make([]byte, mvoPayloadLen)
	putI16(pl, 2, velMM[0])
	putI16(pl, 4, velMM[1])
	putI16(pl, 6, velMM[2])
	putF32(pl, 8, pos[0])
	putF32(pl, 12, pos[1])
	putF32(pl, 16, pos[2])
	for i, c := range posCov {
		putF32(pl, 20+4*i, c)
	}
	for i, c := range velCov {
		putF32(pl, 44+4*i, c)
	}
	putF32(pl, 68, height)
	putF32(pl, 72, hvar)
	pl[76] = validity
	return pl
}

// buildImuPayload assembles a plaintext IMU record payload.
func buildImuPayload(q Quaternion, accel, gyro Vector3, tempCenti int16) []byte {
	pl := make([]byte, imuPayloadLen)
	putF32(pl, 0, q.W)
	putF32(pl, 4, q.X)
	putF32(pl, 8, q.Y)
	putF32(pl, 12, q.Z)
	putF32(pl, 16, accel.X)
	putF32(pl, 20, accel.Y)
	putF32(pl, 24, accel.Z)
	putF32(pl, 28, gyro.X)
	putF32(pl, 32, gyro.Y)
	putF32(pl, 36, gyro.Z)
	putI16(pl, 46, tempCenti)
	return pl
}

// buildVoPayload assembles a plaintext ImuEx record payload.
func buildVoPayload(vel, pos Vector3, validity byte) []byte {
	pl := make([]byte, voPayloadLen)
	putF32(pl, 0, vel.X)
	putF32(pl, 4, vel.Y)
	putF32(pl, 8, vel.Z)
	putF32(pl, 12, pos.X)
	putF32(pl, 16, pos.Y)
	putF32(pl, 20, pos.Z)
	pl[56] = validity
	return pl
}

// buildFlightDataPayload assembles a minimal status report.
func buildFlightDataPayload(flyMode uint8, emSky bool, batteryPct int8, heightDm int16) []byte {
	pl := make([]byte, flightDataLen)
	putI16(pl, 0, heightDm)
	pl[12] = byte(batteryPct)
	if emSky {
		pl[17] |= 0x01
	}
	pl[18] = flyMode
	return pl
}

const validityAll = 0x3f // all velocity and position axes valid
