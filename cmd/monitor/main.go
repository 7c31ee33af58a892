// Copyright ©2025 The h10 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The monitor command connects to a Polar H10 sensor and logs heart
// rate readings with their signal quality, optionally recording them
// to CSV, streaming ECG data, serving Prometheus metrics and showing
// a live trace view.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"gioui.org/app"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/athall/h10/ble"
	"github.com/athall/h10/pmd"
	"github.com/athall/h10/quality"
	"github.com/athall/h10/record"
	"github.com/athall/h10/session"
)

func main() {
	name := flag.String("name", "Polar H10", "sensor name substring to scan for")
	addr := flag.String("addr", "", "sensor bluetooth address (takes precedence over -name)")
	ecg := flag.Bool("ecg", false, "stream ECG data")
	csvDir := flag.String("csv", "", "directory for CSV heart rate logs (disabled when empty)")
	metricsAddr := flag.String("metrics", "", "listen address for Prometheus metrics (disabled when empty)")
	visualize := flag.Bool("visualize", false, "show a live heart rate and ECG view")
	debug := flag.Bool("debug", false, "enable debug logging")
	trace := flag.Bool("trace", false, "enable trace logging")
	flag.Parse()

	zerolog.DurationFieldUnit = time.Second
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05.000",
	})
	switch {
	case *trace:
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case *debug:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	transport, err := ble.New(ble.Config{Name: *name, Address: *addr})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise Bluetooth")
	}
	s := session.New(transport, session.Config{})

	var rec *record.Logger
	if *csvDir != "" {
		rec, err = record.NewLogger(*csvDir)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to start CSV logging")
		}
		defer rec.Close()
		log.Info().Str("Path", rec.Path()).Msg("Logging heart rate to CSV")
	}

	var v *view
	if *visualize {
		v = newView()
	}

	g, ctx := errgroup.WithContext(ctx)
	if *metricsAddr != "" {
		registry := prometheus.NewRegistry()
		session.RegisterMetrics(registry)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: *metricsAddr, Handler: mux}
		g.Go(func() error {
			log.Info().Str("Addr", *metricsAddr).Msg("Serving Prometheus metrics")
			err := srv.ListenAndServe()
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}
	g.Go(func() error {
		return run(ctx, s, rec, v, *ecg)
	})

	if v == nil {
		if err := g.Wait(); err != nil {
			log.Fatal().Err(err).Msg("Monitor failed")
		}
		return
	}

	go func() {
		w := new(app.Window)
		w.Option(app.Title("Polar H10"), app.Size(296, 168))
		if err := runView(w, v); err != nil {
			log.Error().Err(err).Msg("View failed")
		}
		stop() // Treat window close as an interrupt.
	}()
	go func() {
		err := g.Wait()
		if err != nil {
			log.Error().Err(err).Msg("Monitor failed")
		}
		// app.Main never returns.
		os.Exit(0)
	}()
	app.Main()
}

func run(ctx context.Context, s *session.Session, rec *record.Logger, v *view, ecg bool) error {
	if err := s.Connect(ctx, true); err != nil {
		return fmt.Errorf("failed to connect to sensor: %w", err)
	}
	defer s.Disconnect()

	if level, err := s.BatteryLevel(); err != nil {
		log.Warn().Err(err).Msg("Failed to read battery level")
	} else {
		log.Info().Int("Percent", level).Msg("Sensor battery level")
	}

	err := s.StartHeartRateMonitoring(func(bpm int, stats quality.Stats) {
		log.Info().
			Int("BPM", bpm).
			Float64("SignalQuality", stats.SignalQuality).
			Int("Anomalies", stats.Anomalies).
			Msg("Heart rate")
		if rec != nil {
			if err := rec.LogHeartRate(time.Now(), bpm, stats.SignalQuality); err != nil {
				log.Warn().Err(err).Msg("Failed to log reading")
			}
		}
		if v != nil {
			v.addRate(bpm, stats)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to start heart rate monitoring: %w", err)
	}

	if ecg {
		err := s.StartECGStream(func(sample pmd.Sample) {
			log.Trace().Float64("Microvolts", sample.Microvolts).Msg("ECG sample")
			if v != nil {
				v.addECG(sample)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to start ECG streaming: %w", err)
		}
	}

	<-ctx.Done()
	return nil
}
