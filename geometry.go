// geometry.go

// This file contains the frame conversions between the drone's native Z-down
// frame and the library's canonical Z-up frame, plus orientation helpers.

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

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// frameRotation is a roll of pi about X: the single constant rotation taking
// the drone's Z-down frame into the canonical X-forward, Y-left, Z-up frame.
var frameRotation = mat.NewDense(3, 3, []float64{
	1, 0, 0,
	0, -1, 0,
	0, 0, -1,
})

// frameQuat is the quaternion form of frameRotation.
var frameQuat = quat.Number{Imag: 1}

// rotateVector applies the canonical-frame rotation to v.
func rotateVector(v Vector3) Vector3 {
	var out mat.VecDense
	out.MulVec(frameRotation, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return Vector3{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}

// rotateCovariance conjugates a 3x3 covariance with the canonical-frame
// rotation: C' = R C Rt.
func rotateCovariance(c Matrix3) (out Matrix3) {
	m := mat.NewDense(3, 3, []float64{
		c[0][0], c[0][1], c[0][2],
		c[1][0], c[1][1], c[1][2],
		c[2][0], c[2][1], c[2][2],
	})
	var rc, rcrt mat.Dense
	rc.Mul(frameRotation, m)
	rcrt.Mul(&rc, frameRotation.T())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = rcrt.At(i, j)
		}
	}
	return out
}

// rotateOrientation re-synthesizes the IMU orientation in the canonical frame.
// The drone reports orientation in a frame whose X is flipped relative to its
// own velocity frame, so after rotating we subtract pi from the extracted roll
// and rebuild the quaternion.
func rotateOrientation(q Quaternion) (out Quaternion, roll, pitch, yaw float64) {
	rotated := quat.Mul(frameQuat, quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z})
	roll, pitch, yaw = quatToEuler(Quaternion{W: rotated.Real, X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag})
	roll = wrapAngle(roll - math.Pi)
	return eulerToQuat(roll, pitch, yaw), roll, pitch, yaw
}

// quatToEuler extracts intrinsic roll (about X), pitch (about Y) and yaw
// (about Z) in radians.
func quatToEuler(q Quaternion) (roll, pitch, yaw float64) {
	roll = math.Atan2(2*(q.W*q.X+q.Y*q.Z), 1-2*(q.X*q.X+q.Y*q.Y))
	sinp := 2 * (q.W*q.Y - q.Z*q.X)
	switch {
	case sinp >= 1:
		pitch = math.Pi / 2
	case sinp <= -1:
		pitch = -math.Pi / 2
	default:
		pitch = math.Asin(sinp)
	}
	yaw = math.Atan2(2*(q.W*q.Z+q.X*q.Y), 1-2*(q.Y*q.Y+q.Z*q.Z))
	return roll, pitch, yaw
}

// eulerToQuat builds a quaternion from intrinsic roll, pitch and yaw in radians.
func eulerToQuat(roll, pitch, yaw float64) Quaternion {
	cr, sr := math.Cos(roll/2), math.Sin(roll/2)
	cp, sp := math.Cos(pitch/2), math.Sin(pitch/2)
	cy, sy := math.Cos(yaw/2), math.Sin(yaw/2)
	return Quaternion{
		W: cr*cp*cy + sr*sp*sy,
		X: sr*cp*cy - cr*sp*sy,
		Y: cr*sp*cy + sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
	}
}

// wrapAngle normalizes an angle to (-pi, pi].
func wrapAngle(a float64) float64 {
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}
