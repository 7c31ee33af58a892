// Copyright ©2025 The h10 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pmd implements interaction with the Polar Measurement Data
// Bluetooth service used by the Polar H10 for ECG streaming.
//
// Technical documentation for the PMD protocols are available from the
// [Polar BLE SDK] repository.
//
// [Polar BLE SDK]: https://github.com/polarofficial/polar-ble-sdk/tree/master/technical_documentation
package pmd

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Service and characteristic identifiers.
const (
	ServiceID      = "fb005c80-02e7-f387-1cad-8acd2d8df0c8"
	ControlPointID = "fb005c81-02e7-f387-1cad-8acd2d8df0c8"
	DataID         = "fb005c82-02e7-f387-1cad-8acd2d8df0c8"
)

// ECG frame layout on the data characteristic. The characteristic
// multiplexes frame types; only ecgFrameType frames carry ECG samples.
const (
	ecgFrameType = 0x02

	frameTypeOffset = 0
	timestampOffset = 1
	samplesOffset   = 3

	sampleStride = 3 // 3-byte little-endian signed samples
)

// MicrovoltScale converts a raw 24-bit ECG sample to microvolts.
const MicrovoltScale = 0.25

// Control point command sequences enabling and disabling the ECG
// stream. The values are fixed by the device's control protocol.
var (
	startECG = [10]byte{0x02, 0x00, 0x00, 0x01, 0x82, 0x00, 0x01, 0x01, 0x0e, 0x00}
	stopECG  = [10]byte{0x02, 0x00, 0x00, 0x01, 0x82, 0x00, 0x01, 0x01, 0x00, 0x00}
)

// ControlCommand returns the control point command sequence enabling or
// disabling ECG streaming.
func ControlCommand(enable bool) []byte {
	if enable {
		return append([]byte(nil), startECG[:]...)
	}
	return append([]byte(nil), stopECG[:]...)
}

// ErrInvalidFormat indicates an ECG frame whose sample payload is not a
// whole number of samples.
var ErrInvalidFormat = errors.New("pmd: invalid frame format")

// Sample is a single ECG sample.
type Sample struct {
	// Timestamp is the frame timestamp in device ticks, shared by all
	// samples decoded from one frame.
	Timestamp uint16

	// Microvolts is the sampled potential in µV.
	Microvolts float64
}

// DecodeFrame decodes an ECG data notification frame into samples.
// Frames of types other than ECG are ignored, yielding zero samples and
// no error. An ECG frame whose payload is not a multiple of the sample
// stride fails with ErrInvalidFormat.
func DecodeFrame(data []byte) ([]Sample, error) {
	if len(data) == 0 || data[frameTypeOffset] != ecgFrameType {
		return nil, nil
	}
	if len(data) < samplesOffset {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidFormat, len(data))
	}
	raw := data[samplesOffset:]
	if len(raw)%sampleStride != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidFormat, len(raw)%sampleStride)
	}
	ts := binary.LittleEndian.Uint16(data[timestampOffset:])
	samples := make([]Sample, 0, len(raw)/sampleStride)
	for i := 0; i < len(raw); i += sampleStride {
		samples = append(samples, Sample{
			Timestamp:  ts,
			Microvolts: float64(leInt24(raw[i:i+sampleStride])) * MicrovoltScale,
		})
	}
	return samples, nil
}

func leInt24(b []byte) int32 {
	_ = b[2] // bounds check hint to compiler; see golang.org/issue/14808
	return int32(b[0]) | int32(b[1])<<8 | int32(int8(b[2]))<<16
}
