// Copyright ©2025 The h10 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quality

import (
	"testing"
	"time"
)

var t0 = time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC)

// feed adds n readings of the same rate at a steady 1s cadence.
func feed(m *Monitor, start time.Time, bpm, n int) time.Time {
	at := start
	for i := 0; i < n; i++ {
		m.Add(at, bpm)
		at = at.Add(time.Second)
	}
	return at
}

func TestEmptyStats(t *testing.T) {
	m := NewMonitor(0)
	if _, ok := m.Stats(); ok {
		t.Error("unexpected stats from empty monitor")
	}
}

func TestCleanSignal(t *testing.T) {
	m := NewMonitor(0)
	feed(m, t0, 72, 20)
	stats, ok := m.Stats()
	if !ok {
		t.Fatal("no stats after readings")
	}
	if stats.SignalQuality != 100 {
		t.Errorf("unexpected signal quality: got %v, want 100", stats.SignalQuality)
	}
	if stats.DataGaps != 0 || stats.Anomalies != 0 {
		t.Errorf("unexpected counters: gaps=%d anomalies=%d", stats.DataGaps, stats.Anomalies)
	}
	if stats.MeanHR != 72 || stats.StdDevHR != 0 {
		t.Errorf("unexpected HR stats: mean=%v stddev=%v", stats.MeanHR, stats.StdDevHR)
	}
	if stats.BufferSize != 20 {
		t.Errorf("unexpected buffer size: got %d, want 20", stats.BufferSize)
	}
}

func TestBufferBounded(t *testing.T) {
	const capacity = 5
	m := NewMonitor(capacity)
	feed(m, t0, 70, capacity+3)
	stats, _ := m.Stats()
	if stats.BufferSize != capacity {
		t.Errorf("unexpected buffer size: got %d, want %d", stats.BufferSize, capacity)
	}
}

func TestGapPenalty(t *testing.T) {
	gapped := NewMonitor(0)
	gapped.Add(t0, 70)
	gapped.Add(t0.Add(3*time.Second), 70)
	gappedStats, _ := gapped.Stats()

	steady := NewMonitor(0)
	steady.Add(t0, 70)
	steady.Add(t0.Add(time.Second), 70)
	steadyStats, _ := steady.Stats()

	if gappedStats.DataGaps != 1 {
		t.Errorf("unexpected gap count: got %d, want 1", gappedStats.DataGaps)
	}
	if steadyStats.DataGaps != 0 {
		t.Errorf("unexpected gap count without gap: got %d, want 0", steadyStats.DataGaps)
	}
	if gappedStats.SignalQuality >= steadyStats.SignalQuality {
		t.Errorf("gap did not lower signal quality: gapped=%v steady=%v",
			gappedStats.SignalQuality, steadyStats.SignalQuality)
	}
	// 3s gap costs 30 points on the second reading: mean of 100 and 70.
	if gappedStats.SignalQuality != 85 {
		t.Errorf("unexpected signal quality: got %v, want 85", gappedStats.SignalQuality)
	}
}

func TestGapPenaltyCapped(t *testing.T) {
	m := NewMonitor(0)
	m.Add(t0, 70)
	m.Add(t0.Add(time.Minute), 70)
	stats, _ := m.Stats()
	// Penalty caps at 50 regardless of gap length.
	if stats.SignalQuality != 75 {
		t.Errorf("unexpected signal quality: got %v, want 75", stats.SignalQuality)
	}
}

func TestOutOfRangeAnomaly(t *testing.T) {
	m := NewMonitor(0)
	m.Add(t0, 75)
	m.Add(t0.Add(time.Second), 250)
	stats, _ := m.Stats()
	if stats.Anomalies != 1 {
		t.Errorf("unexpected anomaly count: got %d, want 1", stats.Anomalies)
	}
	if stats.SignalQuality >= 100 {
		t.Errorf("unexpected signal quality: got %v, want < 100", stats.SignalQuality)
	}
}

func TestJumpAnomaly(t *testing.T) {
	m := NewMonitor(0)
	m.Add(t0, 75)
	m.Add(t0.Add(time.Second), 120)
	stats, _ := m.Stats()
	if stats.Anomalies != 1 {
		t.Errorf("unexpected anomaly count: got %d, want 1", stats.Anomalies)
	}
	// Jump penalty caps at 30: mean of 100 and 70.
	if stats.SignalQuality != 85 {
		t.Errorf("unexpected signal quality: got %v, want 85", stats.SignalQuality)
	}
}

func TestSmallJumpTolerated(t *testing.T) {
	m := NewMonitor(0)
	m.Add(t0, 75)
	m.Add(t0.Add(time.Second), 95)
	stats, _ := m.Stats()
	if stats.Anomalies != 0 {
		t.Errorf("unexpected anomaly count: got %d, want 0", stats.Anomalies)
	}
	if stats.SignalQuality != 100 {
		t.Errorf("unexpected signal quality: got %v, want 100", stats.SignalQuality)
	}
}

func TestSignalQualityWindow(t *testing.T) {
	m := NewMonitor(0)
	// A penalised reading followed by more than a window of clean
	// readings no longer affects the signal quality.
	m.Add(t0, 75)
	at := t0.Add(3 * time.Second) // gap
	m.Add(at, 75)
	feed(m, at.Add(time.Second), 75, recentWindow)
	stats, _ := m.Stats()
	if stats.SignalQuality != 100 {
		t.Errorf("unexpected signal quality: got %v, want 100", stats.SignalQuality)
	}
	if stats.DataGaps != 1 {
		t.Errorf("unexpected gap count: got %d, want 1", stats.DataGaps)
	}
}

func TestMeanOverBufferedOnly(t *testing.T) {
	m := NewMonitor(3)
	m.Add(t0, 200) // evicted
	feed(m, t0.Add(time.Second), 80, 3)
	stats, _ := m.Stats()
	if stats.MeanHR != 80 {
		t.Errorf("unexpected mean: got %v, want 80", stats.MeanHR)
	}
}

func TestStdDev(t *testing.T) {
	m := NewMonitor(0)
	m.Add(t0, 70)
	m.Add(t0.Add(time.Second), 80)
	stats, _ := m.Stats()
	if got, want := stats.StdDevHR, 7.0710678118654755; got != want {
		t.Errorf("unexpected stddev: got %v, want %v", got, want)
	}
}

func TestClear(t *testing.T) {
	m := NewMonitor(0)
	m.Add(t0, 75)
	m.Add(t0.Add(5*time.Second), 250)
	m.Clear()
	if _, ok := m.Stats(); ok {
		t.Error("unexpected stats after clear")
	}
	// A fresh reading after clear is scored as if first.
	m.Add(t0.Add(time.Hour), 75)
	stats, _ := m.Stats()
	if stats.SignalQuality != 100 || stats.DataGaps != 0 || stats.Anomalies != 0 {
		t.Errorf("clear did not reset state: %+v", stats)
	}
}
