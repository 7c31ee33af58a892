// Copyright ©2025 The h10 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ble implements the session transport over the system
// Bluetooth Low Energy adapter.
package ble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"tinygo.org/x/bluetooth"

	"github.com/athall/h10/internal/gattx"
)

// Config selects the target peripheral. Address, when set, takes
// precedence over the Name substring match.
type Config struct {
	Name    string
	Address string
}

// Transport drives a single BLE peripheral through the default system
// adapter. It implements session.Transport.
type Transport struct {
	adapter *bluetooth.Adapter
	cfg     Config

	mu           sync.Mutex
	found        bool
	addr         bluetooth.Address
	connected    bool
	dev          bluetooth.Device
	services     []string
	chars        map[string]bluetooth.DeviceCharacteristic
	onDisconnect func()
}

// New enables the default Bluetooth adapter and returns a Transport
// targeting the peripheral selected by cfg.
func New(cfg Config) (*Transport, error) {
	if cfg.Name == "" && cfg.Address == "" {
		return nil, errors.New("ble: no device name or address configured")
	}
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable bluetooth: %w", err)
	}
	t := &Transport{adapter: adapter, cfg: cfg}
	adapter.SetConnectHandler(t.handleConnectEvent)
	return t, nil
}

// handleConnectEvent surfaces unexpected link drops. Deliberate
// disconnects clear the connected flag first and are suppressed here.
func (t *Transport) handleConnectEvent(dev bluetooth.Device, connected bool) {
	t.mu.Lock()
	if connected || !t.connected || dev.Address != t.addr {
		t.mu.Unlock()
		return
	}
	t.connected = false
	onDisconnect := t.onDisconnect
	t.mu.Unlock()
	log.Debug().Str("Addr", t.addr.String()).Msg("ble: link lost")
	if onDisconnect != nil {
		onDisconnect()
	}
}

// Scan locates the target peripheral, caching its address for Open.
// It returns once the peripheral is found or ctx is done.
func (t *Transport) Scan(ctx context.Context) error {
	t.mu.Lock()
	if t.found {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.adapter.StopScan()
	}()
	err := t.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if !t.match(result) {
			return
		}
		log.Debug().
			Str("Addr", result.Address.String()).
			Str("Name", result.LocalName()).
			Int16("RSSI", result.RSSI).
			Msg("ble: found sensor")
		t.mu.Lock()
		t.addr = result.Address
		t.found = true
		t.mu.Unlock()
		adapter.StopScan()
	})
	if err != nil {
		return fmt.Errorf("failed to scan: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.found {
		if err := ctx.Err(); err != nil {
			return err
		}
		return errors.New("no matching device found")
	}
	return nil
}

func (t *Transport) match(result bluetooth.ScanResult) bool {
	if t.cfg.Address != "" {
		return strings.EqualFold(result.Address.String(), t.cfg.Address)
	}
	return strings.Contains(result.LocalName(), t.cfg.Name)
}

// Open connects to the previously located peripheral and enumerates
// its services and characteristics.
func (t *Transport) Open(ctx context.Context, onDisconnect func()) error {
	t.mu.Lock()
	if !t.found {
		t.mu.Unlock()
		return errors.New("ble: device not located")
	}
	if t.connected {
		t.mu.Unlock()
		return errors.New("ble: already connected")
	}
	addr := t.addr
	t.mu.Unlock()

	var params bluetooth.ConnectionParams
	if deadline, ok := ctx.Deadline(); ok {
		params.ConnectionTimeout = bluetooth.NewDuration(time.Until(deadline))
	}
	dev, err := t.adapter.Connect(addr, params)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	services, chars, err := gattx.Discover(dev)
	if err != nil {
		dev.Disconnect()
		return err
	}

	t.mu.Lock()
	t.dev = dev
	t.connected = true
	t.services = services
	t.chars = chars
	t.onDisconnect = onDisconnect
	t.mu.Unlock()
	log.Debug().Str("Addr", addr.String()).Msg("ble: connected")
	return nil
}

// Services returns the UUIDs of the services the connected peripheral
// exposes.
func (t *Transport) Services() ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return nil, errors.New("ble: not connected")
	}
	return append([]string(nil), t.services...), nil
}

func (t *Transport) characteristic(id string) (bluetooth.DeviceCharacteristic, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return bluetooth.DeviceCharacteristic{}, errors.New("ble: not connected")
	}
	char, ok := t.chars[strings.ToLower(id)]
	if !ok {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("ble: characteristic %s not found", id)
	}
	return char, nil
}

// Subscribe enables notifications on a characteristic.
func (t *Transport) Subscribe(id string, notify func([]byte)) error {
	char, err := t.characteristic(id)
	if err != nil {
		return err
	}
	return char.EnableNotifications(notify)
}

// Unsubscribe disables notifications on a characteristic.
func (t *Transport) Unsubscribe(id string) error {
	char, err := t.characteristic(id)
	if err != nil {
		return err
	}
	return char.EnableNotifications(nil)
}

// WriteCharacteristic writes data to a characteristic.
func (t *Transport) WriteCharacteristic(id string, data []byte) error {
	char, err := t.characteristic(id)
	if err != nil {
		return err
	}
	_, err = char.WriteWithoutResponse(data)
	return err
}

// ReadCharacteristic reads the current value of a characteristic.
func (t *Transport) ReadCharacteristic(id string) ([]byte, error) {
	char, err := t.characteristic(id)
	if err != nil {
		return nil, err
	}
	return gattx.ReadCharacteristic(char)
}

// Close disconnects from the peripheral. It is safe to call when not
// connected.
func (t *Transport) Close() error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return nil
	}
	t.connected = false
	t.onDisconnect = nil
	t.services = nil
	t.chars = nil
	dev := t.dev
	t.mu.Unlock()
	return dev.Disconnect()
}
