// go-cgm
// Copyright (c) 2026 The go-cgm Authors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-cgm.
//
// go-cgm is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-cgm is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-cgm; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// cgmscan reads NFC glucose sensors through a bridge adapter, either as a
// one-shot scan or as a continuous monitoring loop.
//
// Usage:
//
//	cgmscan -port /dev/ttyUSB0                 one-shot scan over UART
//	cgmscan -i2c "" -mode monitor              continuous monitoring over I2C
//	cgmscan -config cgm.yaml -mode monitor     settings from a YAML file
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	cgm "github.com/mohamedS2020/go-cgm"
	"github.com/mohamedS2020/go-cgm/adapter/i2c"
	"github.com/mohamedS2020/go-cgm/adapter/uart"
	"github.com/mohamedS2020/go-cgm/monitor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "YAML configuration file")
		portName   = flag.String("port", "", "serial port of the UART bridge")
		i2cBus     = flag.String("i2c", "", "I2C bus of the bridge (implies -adapter i2c)")
		adapterSel = flag.String("adapter", "", "bridge attachment: uart or i2c")
		mode       = flag.String("mode", "scan", "scan for a one-shot reading, monitor for a periodic loop")
		interval   = flag.Duration("interval", 0, "monitoring interval (e.g. 5m)")
		user       = flag.String("user", "", "user to attribute readings to")
		verbose    = flag.Bool("verbose", false, "enable debug logging")
		listPorts  = flag.Bool("list-ports", false, "list candidate serial ports and exit")
	)
	flag.Parse()

	if *listPorts {
		return printPorts()
	}

	cfg := defaultFileConfig()
	if *configPath != "" {
		loaded, err := loadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	// Flags override file settings.
	if *portName != "" {
		cfg.Port = *portName
		cfg.Adapter = "uart"
	}
	if *i2cBus != "" || *adapterSel == "i2c" {
		cfg.I2CBus = *i2cBus
		cfg.Adapter = "i2c"
	}
	if *adapterSel == "uart" {
		cfg.Adapter = "uart"
	}
	if *interval > 0 {
		cfg.Interval = duration(*interval)
	}
	if *user != "" {
		cfg.User = *user
	}
	if *verbose {
		cfg.Verbose = true
	}

	log := setupLogging(cfg.Verbose)

	adapter, err := openAdapter(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := adapter.Close(); err != nil {
			log.WithError(err).Warn("failed to close adapter")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "scan":
		return runScan(ctx, adapter, log)
	case "monitor":
		return runMonitor(ctx, adapter, cfg, log)
	default:
		return fmt.Errorf("unknown mode %q (want scan or monitor)", *mode)
	}
}

// setupLogging configures the process-wide logger
func setupLogging(verbose bool) logrus.FieldLogger {
	logger := logrus.StandardLogger()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// openAdapter attaches to the bridge per the effective configuration
func openAdapter(cfg fileConfig, log logrus.FieldLogger) (cgm.Adapter, error) {
	switch cfg.Adapter {
	case "i2c":
		log.WithField("bus", cfg.I2CBus).Info("opening I2C bridge")
		return i2c.New(cfg.I2CBus)
	default:
		port := cfg.Port
		if port == "" {
			ports, err := uart.ListPorts()
			if err != nil || len(ports) == 0 {
				return nil, fmt.Errorf("no serial port given and none found (try -list-ports)")
			}
			port = ports[0]
			log.WithField("port", port).Info("auto-selected serial port")
		}
		return uart.New(port)
	}
}

// printPorts lists candidate serial ports
func printPorts() error {
	ports, err := uart.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
		return nil
	}
	for _, port := range ports {
		fmt.Println(port)
	}
	return nil
}

// runScan performs one manual acquisition and prints the result
func runScan(ctx context.Context, adapter cgm.Adapter, log logrus.FieldLogger) error {
	session := cgm.NewRadioSession(adapter, cgm.WithSessionLogger(log))
	transport := cgm.NewBlockTransport(adapter, cgm.WithTransportLogger(log))
	detector := cgm.NewDetector(transport, cgm.WithDetectorLogger(log))

	guard, err := session.TryAcquire(cgm.BulkReadWatchdogTimeout)
	if err != nil {
		return err
	}
	defer guard.Release()

	sensorType := detector.Detect(ctx)
	log.WithField("sensor", sensorType).Info("detection complete")

	switch sensorType {
	case cgm.SensorLibre:
		decoder := cgm.NewLibreDecoder(transport, session, nil, cgm.WithLibreLogger(log))
		readout, err := decoder.Read(ctx, cgm.SourceManualScan)
		if err != nil {
			return err
		}
		printReading(readout.Current)
		fmt.Printf("Sensor:     %s (%d minutes remaining)\n",
			readout.Info.Model, readout.Info.RemainingLifeMinutes)
		fmt.Printf("History:    %d backfilled readings\n", len(readout.History))
		return nil
	case cgm.SensorRF430:
		decoder := cgm.NewRF430Decoder(transport, nil, cgm.WithRF430Logger(log))
		reading, err := decoder.ReadGlucose(ctx, cgm.SourceManualScan)
		if err != nil {
			return err
		}
		printReading(reading)
		return nil
	default:
		if description, ok := detector.IdentifyForeignTag(ctx); ok {
			fmt.Printf("No glucose sensor found; tag in field carries NDEF data:\n%s\n", description)
			return nil
		}
		return fmt.Errorf("no sensor detected")
	}
}

// runMonitor runs the periodic loop until interrupted
func runMonitor(ctx context.Context, adapter cgm.Adapter, cfg fileConfig, log logrus.FieldLogger) error {
	mon, err := monitor.New(adapter,
		monitor.WithLogger(log),
		monitor.WithConfig(&monitor.Config{
			Interval:               time.Duration(cfg.Interval),
			AcquireTimeout:         cgm.DefaultWatchdogTimeout,
			BulkAcquireTimeout:     cgm.BulkReadWatchdogTimeout,
			MaxConsecutiveFailures: monitor.DefaultMaxConsecutiveFailures,
		}),
	)
	if err != nil {
		return err
	}

	fatal := make(chan error, 1)
	mon.OnReading = printReading
	mon.OnError = func(err error) {
		log.WithError(err).Warn("acquisition error")
	}
	mon.OnFatal = func(err error) {
		fatal <- err
	}

	if err := mon.Start(ctx, cfg.User); err != nil {
		return err
	}
	defer mon.Stop()

	log.Info("monitoring; press Ctrl-C to stop")
	select {
	case <-ctx.Done():
		return nil
	case err := <-fatal:
		return fmt.Errorf("monitoring stopped: %w", err)
	}
}

// printReading writes one reading to stdout
func printReading(reading cgm.GlucoseReading) {
	alert := ""
	if reading.IsAlert {
		alert = "  [ALERT]"
	}
	fmt.Printf("%s  %3d mg/dL  (%s)%s\n",
		reading.Timestamp.Format(time.RFC3339), reading.Value, reading.Source, alert)
}
