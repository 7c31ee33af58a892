// Copyright ©2025 The h10 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmd

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Conn is the subset of a GATT connection the stream needs.
type Conn interface {
	Subscribe(characteristic string, notify func([]byte)) error
	Unsubscribe(characteristic string) error
	WriteCharacteristic(characteristic string, data []byte) error
}

// ErrAlreadyStreaming indicates a Start call on a stream that is
// already running.
var ErrAlreadyStreaming = errors.New("pmd: already streaming")

// Stream sequences the ECG enable/disable protocol on a connection and
// demultiplexes raw data notifications into samples.
type Stream struct {
	conn Conn

	mu        sync.Mutex
	streaming bool
	callback  func(Sample)
}

// NewStream returns a Stream bound to the provided connection.
func NewStream(conn Conn) *Stream {
	return &Stream{conn: conn}
}

// Start enables ECG streaming. Each sample decoded from subsequent data
// notifications is delivered to callback individually, in frame arrival
// order. Frames that fail to decode are logged and dropped without
// stopping the stream. If the control write or the subscription fails
// the stream is left idle.
func (s *Stream) Start(callback func(Sample)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streaming {
		return ErrAlreadyStreaming
	}
	err := s.conn.WriteCharacteristic(ControlPointID, ControlCommand(true))
	if err != nil {
		return fmt.Errorf("pmd: failed to enable ecg stream: %w", err)
	}
	err = s.conn.Subscribe(DataID, s.handleFrame)
	if err != nil {
		return fmt.Errorf("pmd: failed to subscribe to ecg data: %w", err)
	}
	s.callback = callback
	s.streaming = true
	return nil
}

// Stop disables ECG streaming. It is a no-op if the stream is idle. If
// the control write or the unsubscription fails the stream state is
// left unchanged.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.streaming {
		return nil
	}
	err := s.conn.WriteCharacteristic(ControlPointID, ControlCommand(false))
	if err != nil {
		return fmt.Errorf("pmd: failed to disable ecg stream: %w", err)
	}
	err = s.conn.Unsubscribe(DataID)
	if err != nil {
		return fmt.Errorf("pmd: failed to unsubscribe from ecg data: %w", err)
	}
	s.callback = nil
	s.streaming = false
	return nil
}

// Streaming reports whether the stream is running.
func (s *Stream) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

func (s *Stream) handleFrame(buf []byte) {
	s.mu.Lock()
	callback := s.callback
	s.mu.Unlock()
	if callback == nil {
		return
	}
	samples, err := DecodeFrame(buf)
	if err != nil {
		log.Warn().Err(err).Hex("Frame", buf).Msg("Dropping undecodable ECG frame")
		return
	}
	for _, sample := range samples {
		callback(sample)
	}
}
