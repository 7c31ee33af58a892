// Copyright ©2025 The h10 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package session manages a connection session with a Polar H10
// heart-rate/ECG sensor: connect with retry and backoff, heart rate
// subscription, ECG stream lifecycle, disconnect detection and
// automatic reconnection.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/athall/h10/battery"
	"github.com/athall/h10/heart"
	"github.com/athall/h10/pmd"
	"github.com/athall/h10/quality"
)

var (
	// ErrDeviceNotFound indicates that discovery timed out without
	// locating the target peripheral.
	ErrDeviceNotFound = errors.New("session: device not found")

	// ErrConnectionFailed indicates that the transport connection could
	// not be opened.
	ErrConnectionFailed = errors.New("session: connection failed")

	// ErrServiceValidation indicates that the connected peripheral does
	// not expose the required services.
	ErrServiceValidation = errors.New("session: required services missing")

	// ErrNotConnected indicates an operation that requires a connected
	// session.
	ErrNotConnected = errors.New("session: not connected")
)

// Config holds session tunables. Zero values select the defaults.
type Config struct {
	// MaxConnectAttempts bounds the retry loop of Connect. Default 5.
	MaxConnectAttempts int

	// RetryBaseInterval is the first retry backoff delay; each further
	// attempt doubles it up to RetryMaxInterval. Defaults 1s and 60s.
	RetryBaseInterval time.Duration
	RetryMaxInterval  time.Duration

	// DiscoveryTimeout bounds peripheral discovery. Default 10s.
	DiscoveryTimeout time.Duration

	// ConnectTimeout bounds opening the transport connection.
	// Default 20s.
	ConnectTimeout time.Duration

	// DataTimeout is how long the session tolerates notification
	// silence while connected before treating the link as lost.
	// Default 5s.
	DataTimeout time.Duration

	// ProbeInterval is the health monitor check period. Default 1s.
	ProbeInterval time.Duration

	// QualityBufferSize is the capacity of the heart rate quality
	// buffer. Default quality.DefaultBufferSize.
	QualityBufferSize int
}

func (c Config) withDefaults() Config {
	if c.MaxConnectAttempts <= 0 {
		c.MaxConnectAttempts = 5
	}
	if c.RetryBaseInterval <= 0 {
		c.RetryBaseInterval = time.Second
	}
	if c.RetryMaxInterval <= 0 {
		c.RetryMaxInterval = time.Minute
	}
	if c.DiscoveryTimeout <= 0 {
		c.DiscoveryTimeout = 10 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 20 * time.Second
	}
	if c.DataTimeout <= 0 {
		c.DataTimeout = 5 * time.Second
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = time.Second
	}
	return c
}

// HeartRateCallback receives each validated heart rate reading together
// with the quality statistics current after the reading was recorded.
type HeartRateCallback func(bpm int, stats quality.Stats)

// Session is the device session for a single Polar H10. A Session owns
// one transport and drives all state transitions; methods are safe for
// concurrent use, but at most one Connect call may be in flight at a
// time.
type Session struct {
	transport Transport
	cfg       Config

	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	mu          sync.Mutex
	state       State
	discovered  bool
	opened      bool
	lastData    time.Time
	quality     *quality.Monitor
	stream      *pmd.Stream
	hrCallback  HeartRateCallback
	ecgCallback func(pmd.Sample)

	monitorCancel context.CancelFunc
	monitorDone   chan struct{}

	reconnectCancel context.CancelFunc
	reconnectDone   chan struct{}
}

// New returns a Session driving the provided transport.
func New(transport Transport, cfg Config) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		transport: transport,
		cfg:       cfg,
		now:       time.Now,
		sleep:     sleepContext,
		quality:   quality.NewMonitor(cfg.QualityBufferSize),
	}
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect establishes the session: discovery if the peripheral has not
// been located yet, transport open, and service validation. On failure
// with retryOnFail set, it retries with exponential backoff until
// MaxConnectAttempts is reached, then returns the terminal failure.
func (s *Session) Connect(ctx context.Context, retryOnFail bool) error {
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.attemptConnect(ctx)
		if err == nil {
			return nil
		}
		connectFailuresCounter.Inc()
		log.Error().Err(err).Msg("Connection attempt failed")
		s.setState(Error)
		// Best-effort close of any partially opened transport.
		if cerr := s.transport.Close(); cerr != nil {
			log.Debug().Err(cerr).Msg("Error closing transport after failed attempt")
		}
		s.mu.Lock()
		s.opened = false
		s.mu.Unlock()

		attempt++
		if !retryOnFail || attempt >= s.cfg.MaxConnectAttempts {
			log.Error().Int("Attempts", attempt).Msg("Giving up connecting to sensor")
			return err
		}
		backoff := min(s.cfg.RetryBaseInterval<<min(attempt-1, 30), s.cfg.RetryMaxInterval)
		log.Info().Dur("Backoff", backoff).Int("Attempt", attempt).Msg("Retrying connection")
		if err := s.sleep(ctx, backoff); err != nil {
			return err
		}
	}
}

func (s *Session) attemptConnect(ctx context.Context) error {
	connectAttemptsCounter.Inc()
	s.setState(Connecting)

	s.mu.Lock()
	discovered := s.discovered
	s.mu.Unlock()
	if !discovered {
		log.Info().Dur("Timeout", s.cfg.DiscoveryTimeout).Msg("Scanning for sensor")
		sctx, cancel := context.WithTimeout(ctx, s.cfg.DiscoveryTimeout)
		err := s.transport.Scan(sctx)
		cancel()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
		}
		s.mu.Lock()
		s.discovered = true
		s.mu.Unlock()
	}

	octx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	err := s.transport.Open(octx, s.handleUnexpectedDisconnect)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	s.mu.Lock()
	s.opened = true
	s.mu.Unlock()

	if err := s.validateServices(); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = Connected
	s.stream = pmd.NewStream(s.transport)
	s.lastData = s.now()
	s.mu.Unlock()
	s.startMonitor()
	log.Info().Msg("Connected to sensor")
	return nil
}

func (s *Session) validateServices() error {
	services, err := s.transport.Services()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceValidation, err)
	}
	for _, required := range []string{heart.RateServiceID, pmd.ServiceID} {
		found := false
		for _, svc := range services {
			if strings.EqualFold(svc, required) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrServiceValidation, required)
		}
	}
	return nil
}

// StartHeartRateMonitoring subscribes to heart rate notifications.
// Each notification that decodes successfully is recorded in the
// quality buffer and delivered to callback; undecodable notifications
// are logged and dropped.
func (s *Session) StartHeartRateMonitoring(callback HeartRateCallback) error {
	s.mu.Lock()
	if s.state != Connected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.hrCallback = callback
	s.mu.Unlock()
	return s.transport.Subscribe(heart.RateMeasurementID, s.handleHeartRate)
}

func (s *Session) handleHeartRate(buf []byte) {
	notificationsCounter.Inc()
	rate, err := heart.Decode(s.now(), buf)
	if err != nil {
		decodeFailuresCounter.Inc()
		log.Warn().Err(err).Hex("Data", buf).Msg("Dropping invalid heart rate notification")
		return
	}
	s.mu.Lock()
	s.lastData = rate.At
	s.quality.Add(rate.At, rate.BPM)
	stats, _ := s.quality.Stats()
	callback := s.hrCallback
	s.mu.Unlock()
	if callback != nil {
		callback(rate.BPM, stats)
	}
}

// StartECGStream starts ECG streaming, delivering each decoded sample
// to callback in frame arrival order.
func (s *Session) StartECGStream(callback func(pmd.Sample)) error {
	s.mu.Lock()
	if s.state != Connected || s.stream == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	stream := s.stream
	s.ecgCallback = callback
	s.mu.Unlock()

	err := stream.Start(func(sample pmd.Sample) {
		s.touch()
		callback(sample)
	})
	if err != nil {
		s.mu.Lock()
		s.ecgCallback = nil
		s.mu.Unlock()
		return err
	}
	log.Info().Msg("ECG streaming started")
	return nil
}

// StopECGStream stops ECG streaming. It is a no-op if the stream is
// idle.
func (s *Session) StopECGStream() error {
	s.mu.Lock()
	if s.state != Connected || s.stream == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	stream := s.stream
	s.mu.Unlock()

	if err := stream.Stop(); err != nil {
		return err
	}
	s.mu.Lock()
	s.ecgCallback = nil
	s.mu.Unlock()
	log.Info().Msg("ECG streaming stopped")
	return nil
}

// QualityStats returns a snapshot of the heart rate quality statistics,
// reporting false when no readings have been recorded.
func (s *Session) QualityStats() (quality.Stats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quality.Stats()
}

// BatteryLevel reads the sensor's battery level in percent.
func (s *Session) BatteryLevel() (int, error) {
	s.mu.Lock()
	connected := s.state == Connected
	s.mu.Unlock()
	if !connected {
		return 0, ErrNotConnected
	}
	return battery.Level(s.transport)
}

// Disconnect cleanly tears the session down: the ECG stream is stopped
// if active, the health monitor and any in-flight reconnect attempt are
// cancelled and awaited, and the transport is closed. It is idempotent
// and safe to call from any state.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	s.state = Disconnecting
	stream := s.stream
	s.stream = nil
	monitorCancel, monitorDone := s.monitorCancel, s.monitorDone
	reconnectCancel, reconnectDone := s.reconnectCancel, s.reconnectDone
	opened := s.opened
	s.mu.Unlock()

	if stream != nil && stream.Streaming() {
		if err := stream.Stop(); err != nil {
			log.Warn().Err(err).Msg("Failed to stop ECG stream during disconnect")
		}
		s.mu.Lock()
		s.ecgCallback = nil
		s.mu.Unlock()
	}

	// The background tasks must have exited before the transport is
	// released so a cancelled task cannot touch a closed handle.
	if monitorCancel != nil {
		monitorCancel()
		<-monitorDone
	}
	if reconnectCancel != nil {
		reconnectCancel()
		<-reconnectDone
	}

	if opened {
		if err := s.transport.Close(); err != nil {
			log.Warn().Err(err).Msg("Error during disconnect")
		}
	}

	s.mu.Lock()
	s.opened = false
	s.state = Disconnected
	s.mu.Unlock()
	log.Info().Msg("Disconnected from device")
	return nil
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != state {
		log.Debug().Stringer("From", s.state).Stringer("To", state).Msg("Connection state transition")
	}
	s.state = state
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastData = s.now()
	s.mu.Unlock()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
