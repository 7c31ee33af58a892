// Copyright ©2025 The h10 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package record persists heart rate readings to timestamped CSV files.
package record

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Logger appends heart rate readings to a CSV file created per run.
type Logger struct {
	mu sync.Mutex
	f  *os.File
	w  *csv.Writer

	path string
}

// NewLogger creates dir if needed and starts a new log file in it,
// named after the current time.
func NewLogger(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("polar_h10_log_%s.csv", time.Now().Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"Timestamp", "HeartRate", "SignalQuality"}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to initialise log file: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to initialise log file: %w", err)
	}
	return &Logger{f: f, w: w, path: path}, nil
}

// Path returns the path of the current log file.
func (l *Logger) Path() string { return l.path }

// LogHeartRate appends one reading.
func (l *Logger) LogHeartRate(at time.Time, bpm int, signalQuality float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.w.Write([]string{
		at.Format(time.RFC3339Nano),
		strconv.Itoa(bpm),
		strconv.FormatFloat(signalQuality, 'f', 1, 64),
	})
	if err != nil {
		return fmt.Errorf("failed to log heart rate: %w", err)
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return fmt.Errorf("failed to log heart rate: %w", err)
	}
	return nil
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}
