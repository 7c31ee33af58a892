// Copyright ©2025 The h10 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// startMonitor launches the connection health monitor, first retiring
// any monitor left over from a previous connection.
func (s *Session) startMonitor() {
	s.mu.Lock()
	oldCancel, oldDone := s.monitorCancel, s.monitorDone
	s.mu.Unlock()
	if oldCancel != nil {
		oldCancel()
		<-oldDone
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.monitorCancel, s.monitorDone = cancel, done
	go s.monitorConnection(ctx, done)
}

// monitorConnection watches for notification silence while connected.
// When no heart rate or ECG data has arrived within DataTimeout it
// treats the link as lost and hands off to the disconnect handler.
func (s *Session) monitorConnection(ctx context.Context, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		if s.monitorDone == done {
			s.monitorCancel, s.monitorDone = nil, nil
		}
		s.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(s.cfg.ProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		state := s.state
		silence := s.now().Sub(s.lastData)
		s.mu.Unlock()
		if state != Connected {
			return
		}
		if silence > s.cfg.DataTimeout {
			log.Warn().Dur("Silence", silence).Msg("No data received from sensor")
			s.handleUnexpectedDisconnect()
			return
		}
	}
}

// handleUnexpectedDisconnect reacts to a lost link, whether reported by
// the transport or inferred from notification silence. It transitions
// to Disconnected and starts a background reconnect attempt unless one
// is already in flight.
func (s *Session) handleUnexpectedDisconnect() {
	s.mu.Lock()
	if s.state != Connected {
		s.mu.Unlock()
		return
	}
	unexpectedDisconnectsCounter.Inc()
	log.Warn().Msg("Device disconnected unexpectedly")
	s.state = Disconnected
	if s.reconnectDone != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.reconnectCancel, s.reconnectDone = cancel, done
	s.mu.Unlock()
	go s.autoReconnect(ctx, done)
}

// autoReconnect re-establishes the session and restores heart rate
// monitoring and ECG streaming if they were active before the drop.
func (s *Session) autoReconnect(ctx context.Context, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		if s.reconnectDone == done {
			s.reconnectCancel, s.reconnectDone = nil, nil
		}
		s.mu.Unlock()
		close(done)
	}()

	log.Info().Msg("Attempting automatic reconnection")
	if err := s.Connect(ctx, true); err != nil {
		log.Error().Err(err).Msg("Automatic reconnection failed")
		return
	}
	reconnectsCounter.Inc()

	s.mu.Lock()
	hrCallback, ecgCallback := s.hrCallback, s.ecgCallback
	s.mu.Unlock()
	if hrCallback != nil {
		if err := s.StartHeartRateMonitoring(hrCallback); err != nil {
			log.Error().Err(err).Msg("Failed to restore heart rate monitoring")
		}
	}
	if ecgCallback != nil {
		if err := s.StartECGStream(ecgCallback); err != nil {
			log.Error().Err(err).Msg("Failed to restore ECG streaming")
		}
	}
}
