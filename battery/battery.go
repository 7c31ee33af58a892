// Copyright ©2025 The h10 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package battery implements reading of the standard 180f Bluetooth
// battery service characteristic.
package battery

import (
	"fmt"
)

// Service and characteristic identifiers.
const (
	ServiceID             = "0000180f-0000-1000-8000-00805f9b34fb"
	LevelCharacteristicID = "00002a19-0000-1000-8000-00805f9b34fb"
)

// Conn is the subset of a GATT connection needed to read the battery
// level.
type Conn interface {
	ReadCharacteristic(characteristic string) ([]byte, error)
}

// Level returns the battery level in percent for the connected device.
func Level(conn Conn) (int, error) {
	// https://www.bluetooth.com/specifications/specs/battery-service/
	resp, err := conn.ReadCharacteristic(LevelCharacteristicID)
	if err != nil {
		return 0, fmt.Errorf("failed to read battery characteristic: %w", err)
	}
	if len(resp) == 0 {
		return 0, fmt.Errorf("empty battery level response")
	}
	return int(resp[0]), nil
}
