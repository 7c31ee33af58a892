// Copyright ©2025 The h10 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package heart implements decoding of the standard 180d Bluetooth
// heart rate service notifications as sent by the Polar H10.
package heart

import (
	"errors"
	"fmt"
	"time"
)

// Service and characteristic identifiers.
const (
	RateServiceID     = "0000180d-0000-1000-8000-00805f9b34fb"
	RateMeasurementID = "00002a37-0000-1000-8000-00805f9b34fb"
)

// Physiologically plausible heart rate bounds in BPM. Values outside
// this range are rejected at decode time.
const (
	MinRate = 30
	MaxRate = 240
)

var (
	// ErrInvalidFormat indicates a notification payload that does not
	// match the device's fixed two byte heart rate layout.
	ErrInvalidFormat = errors.New("heart: invalid measurement format")

	// ErrOutOfRange indicates a decoded rate outside [MinRate, MaxRate].
	ErrOutOfRange = errors.New("heart: rate out of range")
)

// Rate is a heart rate measurement.
type Rate struct {
	BPM int
	At  time.Time
}

// Decode decodes a heart rate notification payload observed at the given
// time. The device sends a fixed two byte layout: a flags byte followed
// by the rate as an unsigned 8-bit integer.
//
// https://www.bluetooth.com/specifications/specs/heart-rate-service-1-0/
func Decode(at time.Time, data []byte) (Rate, error) {
	if len(data) != 2 {
		return Rate{}, fmt.Errorf("%w: %d bytes", ErrInvalidFormat, len(data))
	}
	bpm := int(data[1])
	if bpm < MinRate || bpm > MaxRate {
		return Rate{}, fmt.Errorf("%w: %d bpm", ErrOutOfRange, bpm)
	}
	return Rate{BPM: bpm, At: at}, nil
}
