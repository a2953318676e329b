// flog_test.go

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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXorIdempotence(t *testing.T) {
	orig := []byte{0x00, 0x55, 0xaa, 0xff, 0x42}
	key := byte(0x5a)
	buf := append([]byte(nil), orig...)
	for i := range buf {
		buf[i] ^= key
	}
	for i := range buf {
		buf[i] ^= key
	}
	assert.Equal(t, orig, buf)
}

func TestParseLogProximity(t *testing.T) {
	// 0x03e8 mm, obfuscated with 0x5a: the record carries {0xb2, 0x59}
	rec := buildLogRecord(logRecUSonic, 0x5a, []byte{0xe8, 0x03})
	assert.Equal(t, byte(0xb2), rec[logRecHeaderLen])
	assert.Equal(t, byte(0x59), rec[logRecHeaderLen+1])

	events, err := parseLogPayload(rec)
	require.NoError(t, err)
	require.Len(t, events, 1)
	prox, ok := events[0].(Proximity)
	require.True(t, ok)
	assert.InDelta(t, 1.0, float64(prox), 1e-9)
}

func TestParseLogMultipleRecords(t *testing.T) {
	data := append(
		buildLogRecord(logRecUSonic, 0x11, []byte{0xf4, 0x01}), // 0.5 m
		buildLogRecord(logRecImuEx, 0x77, buildVoPayload(Vector3{}, Vector3{X: 1}, validityAll))...,
	)
	events, err := parseLogPayload(data)
	require.NoError(t, err)
	require.Len(t, events, 2)

	prox, ok := events[0].(Proximity)
	require.True(t, ok)
	assert.InDelta(t, 0.5, float64(prox), 1e-9)

	vo, ok := events[1].(Vo)
	require.True(t, ok)
	assert.InDelta(t, 1.0, vo.Position.X, 1e-6)
	assert.True(t, vo.Valid.PosZ)
}

func TestParseLogCorrupted(t *testing.T) {
	data := []byte{0x42, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	events, err := parseLogPayload(data)
	assert.ErrorIs(t, err, ErrCorruptedLog)
	assert.Empty(t, events)
}

func TestParseLogCorruptedAfterGoodRecord(t *testing.T) {
	data := buildLogRecord(logRecUSonic, 0x00, []byte{0x00, 0x01})
	data = append(data, 0x42, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00)
	events, err := parseLogPayload(data)
	assert.ErrorIs(t, err, ErrCorruptedLog)
	assert.Len(t, events, 1)
}

func TestParseLogOverrunningRecord(t *testing.T) {
	rec := buildLogRecord(logRecUSonic, 0x00, []byte{0x00, 0x01})
	rec = rec[:len(rec)-4] // truncate: declared length now exceeds the buffer
	_, err := parseLogPayload(rec)
	assert.ErrorIs(t, err, ErrCorruptedLog)
}

// The parser must stop cleanly on the trailing bytes without reading past
// len-2.
func TestParseLogTermination(t *testing.T) {
	data := buildLogRecord(logRecUSonic, 0x00, []byte{0x00, 0x01})
	// the cursor steps over the record's trailing CRC bytes to the buffer end
	events, err := parseLogPayload(data)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	// empty and sub-minimal payloads produce nothing
	events, err = parseLogPayload(nil)
	require.NoError(t, err)
	assert.Empty(t, events)
	events, err = parseLogPayload([]byte{0x55, 0x01})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestParseLogUnhandledAndUnknown(t *testing.T) {
	data := append(
		buildLogRecord(0x06ae, 0x00, []byte{1, 2, 3, 4}), // battInfo, known but unhandled
		buildLogRecord(0x7777, 0x00, []byte{9, 9})...,
	)
	events, err := parseLogPayload(data)
	require.NoError(t, err)
	require.Len(t, events, 2)

	uh, ok := events[0].(UnhandledRecord)
	require.True(t, ok)
	assert.Equal(t, uint16(0x06ae), uh.Type)
	assert.Equal(t, "battInfo", uh.Name)
	assert.Equal(t, []byte{1, 2, 3, 4}, uh.Data)

	uk, ok := events[1].(UnknownRecord)
	require.True(t, ok)
	assert.Equal(t, uint16(0x7777), uk.Type)
}

func TestParseLogMvoRoundTrip(t *testing.T) {
	pl := buildMvoPayload(
		[3]int16{100, 200, 300},
		[3]float64{1, 2, -3},
		[6]float64{1, 2, 3, 4, 5, 6},
		[6]float64{6, 5, 4, 3, 2, 1},
		2.0, 0.1, validityAll,
	)
	events, err := parseLogPayload(buildLogRecord(logRecMVO, 0xa5, pl))
	require.NoError(t, err)
	require.Len(t, events, 1)
	m, ok := events[0].(Mvo)
	require.True(t, ok)
	assert.InDelta(t, 0.1, m.Velocity.X, 1e-9)
	assert.InDelta(t, 1.0, m.Position.X, 1e-6)
	assert.InDelta(t, -3.0, m.Position.Z, 1e-6)
	assert.True(t, m.Valid.PosZ)
}
