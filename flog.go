// flog.go - handle the flight logs from the drone

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
)

// The flight log is a self-delimiting record stream embedded in the payload of
// the logData message.  Each record carries its own length, type and a one-byte
// XOR key obscuring its payload.

const (
	logRecordSeparator = 0x55
	logRecHeaderLen    = 10 // separator, 16-bit length, crc8, 16-bit type, xor key, 3 reserved
)

// log record types
const (
	logRecUSonic = 0x0010
	logRecMVO    = 0x001d
	logRecIMU    = 0x0800
	logRecImuEx  = 0x0810
)

// Record types we know the name of but do not interpret.
var logRecKnown = map[uint16]string{
	0x000c: "goTxtOrOsd",
	0x03e8: "controller",
	0x03e9: "aircraftCond",
	0x03ea: "serialApiInputs",
	0x04b0: "ctrlVertDbg",
	0x04b2: "ctrlVertVelDbg",
	0x04b3: "ctrlVertAccDbg",
	0x0514: "ctrlHorizDbg",
	0x0517: "unknown0x0517",
	0x0518: "ctrlHorizAttDbg",
	0x0519: "ctrlHorizAttRateDbg",
	0x051a: "ctrlHorizCcpmDbg",
	0x051b: "ctrlHorizMotorDbg",
	0x06ae: "battInfo",
	0x08a0: "attiMini",
	0x2765: "nsDataDebug",
	0x2766: "nsDataComponent",
	0x2774: "recAirComp",
}

// ErrCorruptedLog is returned when a log payload does not start where a record
// separator should be; the whole payload is discarded.
var ErrCorruptedLog = errors.New("tello: corrupted flight log payload")

// UnhandledRecord is a log record of a known type that the library does not
// interpret.
type UnhandledRecord struct {
	Type   uint16
	Name   string
	Length int
	Data   []byte
}

// UnknownRecord is a log record of a type we have never seen documented.
type UnknownRecord struct {
	Type uint16
	Data []byte
}

// Proximity is an ultrasonic height reading in metres.
type Proximity float64

// parseLogPayload walks the concatenated log records in data and returns the
// decoded values: Mvo, Imu, Vo and Proximity for the types we understand,
// UnhandledRecord/UnknownRecord otherwise.  Vector-valued results are left in
// the drone's native frame; the caller applies the canonical-frame rotation.
// The caller must already have dropped the leading zero byte of the logData
// message payload.
func parseLogPayload(data []byte) (events []any, err error) {
	pos := 0
	for pos < len(data)-2 {
		if data[pos] != logRecordSeparator {
			return events, ErrCorruptedLog
		}
		recLen := int(binary.LittleEndian.Uint16(data[pos+1:]))
		if recLen < logRecHeaderLen+2 || pos+recLen > len(data) {
			return events, ErrCorruptedLog
		}
		recType := binary.LittleEndian.Uint16(data[pos+4:])
		xorVal := data[pos+6]

		payload := make([]byte, recLen-logRecHeaderLen-2)
		copy(payload, data[pos+logRecHeaderLen:pos+recLen-2])
		for i := range payload {
			payload[i] ^= xorVal
		}

		switch recType {
		case logRecMVO:
			if m, derr := decodeMvoRecord(payload); derr == nil {
				events = append(events, m)
			}
		case logRecIMU:
			if m, derr := decodeImuRecord(payload); derr == nil {
				events = append(events, m)
			}
		case logRecImuEx:
			if v, derr := decodeVoRecord(payload); derr == nil {
				events = append(events, v)
			}
		case logRecUSonic:
			if p, derr := decodeProximity(payload); derr == nil {
				events = append(events, Proximity(p))
			}
		default:
			if name, known := logRecKnown[recType]; known {
				events = append(events, UnhandledRecord{Type: recType, Name: name, Length: recLen, Data: payload})
			} else {
				events = append(events, UnknownRecord{Type: recType, Data: payload})
			}
		}

		pos += recLen
	}
	return events, nil
}
