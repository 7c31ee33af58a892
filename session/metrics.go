// Copyright ©2025 The h10 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import "github.com/prometheus/client_golang/prometheus"

var (
	connectAttemptsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "h10_session_connect_attempts_total",
		Help: "Connection attempts made to the sensor.",
	})
	connectFailuresCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "h10_session_connect_failures_total",
		Help: "Connection attempts that failed.",
	})
	reconnectsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "h10_session_reconnects_total",
		Help: "Successful automatic reconnections after an unexpected disconnect.",
	})
	unexpectedDisconnectsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "h10_session_unexpected_disconnects_total",
		Help: "Unexpected link drops, reported by the transport or inferred from silence.",
	})
	notificationsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "h10_session_notifications_total",
		Help: "Heart rate notifications received.",
	})
	decodeFailuresCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "h10_session_decode_failures_total",
		Help: "Heart rate notifications dropped because they failed to decode.",
	})
)

// RegisterMetrics registers the session metrics with the provided
// registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		connectAttemptsCounter,
		connectFailuresCounter,
		reconnectsCounter,
		unexpectedDisconnectsCounter,
		notificationsCounter,
		decodeFailuresCounter,
	)
}
