// Copyright ©2025 The h10 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gattx provides helper functions for interacting with
// Bluetooth devices.
package gattx

import (
	"fmt"
	"io"

	"tinygo.org/x/bluetooth"
)

// Discover enumerates the services and characteristics the device
// exposes, returning the service UUIDs and the characteristics keyed by
// their canonical UUID string.
func Discover(dev bluetooth.Device) ([]string, map[string]bluetooth.DeviceCharacteristic, error) {
	srvs, err := dev.DiscoverServices(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to discover services: %w", err)
	}
	services := make([]string, 0, len(srvs))
	chars := make(map[string]bluetooth.DeviceCharacteristic)
	for _, srv := range srvs {
		services = append(services, srv.UUID().String())
		cs, err := srv.DiscoverCharacteristics(nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to discover characteristics of %s: %w", srv.UUID(), err)
		}
		for _, c := range cs {
			chars[c.UUID().String()] = c
		}
	}
	return services, chars, nil
}

// ReadCharacteristic reads data from a Bluetooth characteristic.
func ReadCharacteristic(char bluetooth.DeviceCharacteristic) ([]byte, error) {
	mtu, err := char.GetMTU()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain mtu of characteristic: %w", err)
	}
	buf := make([]byte, mtu)
	n, err := char.Read(buf)
	if err != nil && err != io.EOF {
		return buf[:n], fmt.Errorf("failed to read response from characteristic: %w", err)
	}
	return buf[:n], nil
}
