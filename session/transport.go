// Copyright ©2025 The h10 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import "context"

// Transport is the BLE capability surface the session drives. A
// Transport targets a single peripheral: Scan locates it and caches its
// address so later Open calls need no further discovery.
//
// Characteristics and services are identified by their canonical
// lowercase UUID string form.
type Transport interface {
	// Scan locates the target peripheral, observing ctx for cancellation
	// and deadline.
	Scan(ctx context.Context) error

	// Open connects to the previously located peripheral. onDisconnect
	// is invoked when the link drops unexpectedly.
	Open(ctx context.Context, onDisconnect func()) error

	// Services returns the UUIDs of the services the connected
	// peripheral exposes.
	Services() ([]string, error)

	// Subscribe enables notifications on a characteristic, delivering
	// each notification payload to notify.
	Subscribe(characteristic string, notify func([]byte)) error

	// Unsubscribe disables notifications on a characteristic.
	Unsubscribe(characteristic string) error

	// WriteCharacteristic writes data to a characteristic.
	WriteCharacteristic(characteristic string, data []byte) error

	// ReadCharacteristic reads the current value of a characteristic.
	ReadCharacteristic(characteristic string) ([]byte, error)

	// Close tears down the connection. It is safe to call when not
	// connected.
	Close() error
}
