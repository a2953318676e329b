// messages.go

// This file contains the outer framed-packet codec and the protocol constants.

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

const msgHdr = 0xcc // 204

const minPktSize = 11 // smallest possible raw packet

// Framing errors.
var (
	ErrShortPacket = errors.New("tello: packet too short")
	ErrBadMagic    = errors.New("tello: bad packet magic")
	ErrBadCRC      = errors.New("tello: packet CRC mismatch")
)

// packet is our representation of the messages passed to/from the Tello
type packet struct {
	header        byte
	size13        uint16
	crc8          byte
	fromDrone     bool // the following 4 fields are encoded in a single byte in the raw packet
	toDrone       bool
	packetType    uint8 // 3-bit
	packetSubtype uint8 // 3-bit
	messageID     uint16
	sequence      uint16
	payload       []byte
	crc16         uint16
}

// tello packet types, 3 and 7 currently unknown
const (
	ptExtended = 0
	ptGet      = 1
	ptData1    = 2
	ptData2    = 4
	ptSet      = 5
	ptFlip     = 6
)

// Tello message IDs
const (
	msgDoConnect         = 0x0001 // 1
	msgConnected         = 0x0002 // 2
	msgGetSSID           = 0x0011 // 17
	msgSetSSID           = 0x0012 // 18
	msgGetSSIDPass       = 0x0013 // 19
	msgSetSSIDPass       = 0x0014 // 20
	msgGetWifiRegion     = 0x0015 // 21
	msgSetWifiRegion     = 0x0016 // 22
	msgWifiStrength      = 0x001a // 26
	msgSetVideoBitrate   = 0x0020 // 32
	msgSetDynAdjRate     = 0x0021 // 33
	msgEisSetting        = 0x0024 // 36
	msgGetVideoSPSPPS    = 0x0025 // 37
	msgGetVideoBitrate   = 0x0028 // 40
	msgDoTakePic         = 0x0030 // 48
	msgSwitchPicVideo    = 0x0031 // 49
	msgDoStartRec        = 0x0032 // 50
	msgExposureVals      = 0x0034 // 52
	msgLightStrength     = 0x0035 // 53
	msgGetJPEGQuality    = 0x0037 // 55
	msgError1            = 0x0043 // 67
	msgError2            = 0x0044 // 68
	msgGetVersion        = 0x0045 // 69
	msgSetDateTime       = 0x0046 // 70
	msgGetActivationTime = 0x0047 // 71
	msgGetLoaderVersion  = 0x0049 // 73
	msgSetStick          = 0x0050 // 80
	msgDoTakeoff         = 0x0054 // 84
	msgDoLand            = 0x0055 // 85
	msgFlightStatus      = 0x0056 // 86
	msgSetHeightLimit    = 0x0058 // 88
	msgDoFlip            = 0x005c // 92
	msgDoThrowTakeoff    = 0x005d // 93
	msgDoPalmLand        = 0x005e // 94
	msgFileSize          = 0x0062 // 98
	msgFileData          = 0x0063 // 99
	msgFileDone          = 0x0064 // 100
	msgDoSmartVideo      = 0x0080 // 128
	msgGetSmartVideo     = 0x0081 // 129
	msgLogHeader         = 0x1050 // 4176
	msgLogData           = 0x1051 // 4177
	msgLogConfig         = 0x1052 // 4178
	msgDoBounce          = 0x1053 // 4179
	msgDoCalibration     = 0x1054 // 4180
	msgSetLowBattThresh  = 0x1055 // 4181
	msgGetHeightLimit    = 0x1056 // 4182
	msgGetLowBattThresh  = 0x1057 // 4183
	msgSetAttitude       = 0x1058 // 4184
	msgGetAttitude       = 0x1059 // 4185
)

// FlipType represents a flip direction.
type FlipType byte

// Flip types
const (
	FlipForward FlipType = iota
	FlipLeft
	FlipBackward
	FlipRight
	FlipForwardLeft
	FlipBackwardLeft
	FlipBackwardRight
	FlipForwardRight
)

// SvCmd is a smart video command.
type SvCmd byte

// Smart Video messages
const (
	SvStop   SvCmd = 0
	Sv360    SvCmd = 1 << 2
	SvCircle SvCmd = 2 << 2
	SvUpOut  SvCmd = 3 << 2
)

// utility funcs for message handling

// newPacket returns a packet with the given type, message ID and sequence
// number, and a zeroed payload of payloadSize bytes.
func newPacket(pt uint8, cmd uint16, seq uint16, payloadSize int) (pkt packet) {
	pkt.header = msgHdr
	pkt.toDrone = true
	pkt.packetType = pt
	pkt.messageID = cmd
	pkt.sequence = seq
	if payloadSize > 0 {
		pkt.payload = make([]byte, payloadSize)
	}
	return pkt
}

// bufferToPacket takes a raw buffer of bytes and populates our packet struct
func bufferToPacket(buff []byte) (pkt packet, err error) {
	if len(buff) < minPktSize {
		return pkt, ErrShortPacket
	}
	if buff[0] != msgHdr {
		return pkt, ErrBadMagic
	}
	pkt.header = buff[0]
	// the total frame length is stored shifted left by 3 in a 16-bit LE field
	pkt.size13 = (uint16(buff[1]) | uint16(buff[2])<<8) >> 3
	pkt.crc8 = buff[3]
	pkt.fromDrone = buff[4]&0x80 != 0
	pkt.toDrone = buff[4]&0x40 != 0
	pkt.packetType = buff[4] >> 3 & 0x07
	pkt.packetSubtype = buff[4] & 0x07
	pkt.messageID = binary.LittleEndian.Uint16(buff[5:7])
	pkt.sequence = binary.LittleEndian.Uint16(buff[7:9])
	if int(pkt.size13) > len(buff) || pkt.size13 < minPktSize {
		return pkt, ErrShortPacket
	}
	payloadSize := int(pkt.size13) - minPktSize
	if payloadSize > 0 {
		pkt.payload = make([]byte, payloadSize)
		copy(pkt.payload, buff[9:9+payloadSize])
	}
	pkt.crc16 = binary.LittleEndian.Uint16(buff[pkt.size13-2 : pkt.size13])
	return pkt, nil
}

// validatePacket re-checks the CRCs of a raw frame.  The drone itself never
// sends malformed frames, so this is optional (see WithFrameValidation).
func validatePacket(buff []byte, pkt packet) error {
	if calculateCRC8(buff[0:3]) != pkt.crc8 {
		return ErrBadCRC
	}
	if calculateCRC16(buff[0:pkt.size13-2]) != pkt.crc16 {
		return ErrBadCRC
	}
	return nil
}

// pack the packet into raw buffer format and calculate CRCs etc.
func packetToBuffer(pkt packet) (buff []byte) {
	// create a buffer of the right size
	payloadSize := len(pkt.payload)
	packetSize := minPktSize + payloadSize
	buff = make([]byte, packetSize)

	// copy each field, manipulating if necessary
	buff[0] = pkt.header
	buff[1] = byte(packetSize << 3)
	buff[2] = byte(packetSize >> 5)
	buff[3] = calculateCRC8(buff[0:3])
	buff[4] = pkt.packetSubtype + pkt.packetType<<3
	if pkt.toDrone {
		buff[4] |= 0x40
	}
	if pkt.fromDrone {
		buff[4] |= 0x80
	}
	buff[5] = byte(pkt.messageID)
	buff[6] = byte(pkt.messageID >> 8)
	buff[7] = byte(pkt.sequence)
	buff[8] = byte(pkt.sequence >> 8)

	copy(buff[9:], pkt.payload)

	crc16 := calculateCRC16(buff[0 : 9+payloadSize])
	buff[9+payloadSize] = byte(crc16)
	buff[10+payloadSize] = byte(crc16 >> 8)

	return buff
}
