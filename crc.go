// crc.go

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

// The Tello checks every control packet with two table-driven CRCs fixed by its
// firmware: a CRC-8 over the frame preamble and a CRC-16 over the whole frame.
// The tables are the byte-reflected forms of polynomials 0x31 and 0x1021
// respectively; the seed values below are the firmware's, not the usual presets.

const (
	crc8Seed  = 0x77
	crc16Seed = 0x3692

	crc8Poly  = 0x8c   // reflected 0x31
	crc16Poly = 0x8408 // reflected 0x1021
)

var (
	crc8Table  [256]byte
	crc16Table [256]uint16
)

func init() {
	for i := 0; i < 256; i++ {
		c8 := byte(i)
		c16 := uint16(i)
		for bit := 0; bit < 8; bit++ {
			if c8&1 != 0 {
				c8 = c8>>1 ^ crc8Poly
			} else {
				c8 >>= 1
			}
			if c16&1 != 0 {
				c16 = c16>>1 ^ crc16Poly
			} else {
				c16 >>= 1
			}
		}
		crc8Table[i] = c8
		crc16Table[i] = c16
	}
}

// calculateCRC8 returns the Tello CRC-8 of buf.  It is used over the first
// three bytes of the packet preamble.
func calculateCRC8(buf []byte) (crc byte) {
	crc = crc8Seed
	for _, b := range buf {
		crc = crc8Table[crc^b]
	}
	return crc
}

// calculateCRC16 returns the Tello CRC-16 of buf.  It is used over the whole
// packet excluding the trailing two CRC bytes themselves.
func calculateCRC16(buf []byte) (crc uint16) {
	crc = crc16Seed
	for _, b := range buf {
		crc = crc>>8 ^ crc16Table[byte(crc)^b]
	}
	return crc
}
