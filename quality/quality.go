// Copyright ©2025 The h10 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package quality scores the reliability of incoming heart rate data.
package quality

import (
	"math"
	"time"

	"github.com/athall/h10/heart"
	"github.com/athall/h10/internal/ring"
)

// DefaultBufferSize is the default record capacity of a Monitor.
const DefaultBufferSize = 60

// Per-reading scoring parameters. Each penalty is applied independently
// and capped; the final score is floored at zero.
const (
	expectedCadence = 1100 * time.Millisecond // expected update rate is ~1s

	gapPenaltyPerSecond = 10
	maxGapPenalty       = 50

	rangePenalty = 50

	jumpThreshold  = 20 // BPM
	maxJumpPenalty = 30

	recentWindow = 10 // records contributing to the signal quality
)

// Record is a scored heart rate reading.
type Record struct {
	At      time.Time
	BPM     int
	Quality float64 // 0–100
}

// Stats is a snapshot of quality statistics. SignalQuality reflects
// only a recent window of readings; DataGaps and Anomalies are lifetime
// counters unaffected by buffer eviction.
type Stats struct {
	SignalQuality float64
	DataGaps      int
	Anomalies     int
	MeanHR        float64
	StdDevHR      float64
	BufferSize    int
}

// Monitor keeps a bounded buffer of recent heart rate readings and a
// rolling quality score. It is not safe for concurrent use.
type Monitor struct {
	buffer *ring.Buffer[Record]

	signalQuality float64
	dataGaps      int
	anomalies     int
	lastUpdate    time.Time
}

// NewMonitor returns a Monitor holding at most size records. If size is
// not positive, DefaultBufferSize is used.
func NewMonitor(size int) *Monitor {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Monitor{
		buffer:        ring.NewBuffer[Record](size),
		signalQuality: 100,
	}
}

// Add records a heart rate reading, scoring it against the previous
// reading and the expected update cadence.
func (m *Monitor) Add(at time.Time, bpm int) {
	score := m.score(at, bpm)
	m.buffer.Push(Record{At: at, BPM: bpm, Quality: score})
	m.updateSignalQuality()
	m.lastUpdate = at
}

func (m *Monitor) score(at time.Time, bpm int) float64 {
	score := 100.0

	if !m.lastUpdate.IsZero() {
		gap := at.Sub(m.lastUpdate)
		if gap > expectedCadence {
			m.dataGaps++
			score -= min(maxGapPenalty, gap.Seconds()*gapPenaltyPerSecond)
		}
	}

	switch {
	case bpm < heart.MinRate || bpm > heart.MaxRate:
		m.anomalies++
		score -= rangePenalty
	default:
		// Sudden jumps only count against readings that are otherwise
		// plausible; an out-of-range reading is one anomaly, not two.
		if last, ok := m.buffer.Last(); ok {
			jump := bpm - last.BPM
			if jump < 0 {
				jump = -jump
			}
			if jump > jumpThreshold {
				m.anomalies++
				score -= min(maxJumpPenalty, float64(jump))
			}
		}
	}

	return max(0, score)
}

func (m *Monitor) updateSignalQuality() {
	n := m.buffer.Len()
	if n == 0 {
		return
	}
	recent := min(recentWindow, n)
	var sum float64
	for i := n - recent; i < n; i++ {
		sum += m.buffer.At(i).Quality
	}
	m.signalQuality = sum / float64(recent)
}

// Stats returns a snapshot of the current quality statistics. It
// reports false when no readings are buffered.
func (m *Monitor) Stats() (Stats, bool) {
	n := m.buffer.Len()
	if n == 0 {
		return Stats{}, false
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(m.buffer.At(i).BPM)
	}
	mean := sum / float64(n)

	// Sample standard deviation; zero when fewer than two readings.
	var stddev float64
	if n > 1 {
		var ss float64
		for i := 0; i < n; i++ {
			d := float64(m.buffer.At(i).BPM) - mean
			ss += d * d
		}
		stddev = math.Sqrt(ss / float64(n-1))
	}

	return Stats{
		SignalQuality: m.signalQuality,
		DataGaps:      m.dataGaps,
		Anomalies:     m.anomalies,
		MeanHR:        mean,
		StdDevHR:      stddev,
		BufferSize:    n,
	}, true
}

// Clear empties the buffer and resets the signal quality and the
// lifetime gap and anomaly counters.
func (m *Monitor) Clear() {
	m.buffer.Clear()
	m.signalQuality = 100
	m.dataGaps = 0
	m.anomalies = 0
	m.lastUpdate = time.Time{}
}
