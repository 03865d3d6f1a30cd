// Copyright 2025 The CO2 Canary Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package monitor sequences one wake cycle of the CO2 monitor: acquire a
// reading, append it to the retained history, refresh the display, and hand
// control back so the caller can flush the retained state and re-arm the
// wake timer.
package monitor

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/overflo23/co2-canary/render"
	"github.com/overflo23/co2-canary/retain"
	"github.com/overflo23/co2-canary/sunrise"
)

// DefaultSamples is the sensor sub-sample count used when the cycle is not
// configured otherwise.
const DefaultSamples = 2

// Display is the external collaborator that renders a cycle's refresh. It
// receives a read-only view of the already-updated history and must not
// mutate it.
type Display interface {
	Draw(view render.View, temperature physic.Temperature, hasTemperature bool, battery physic.ElectricPotential) error
}

// Outcome reports what one wake cycle produced. A degraded cycle recorded
// the sentinel reading of 0 ppm and carries the sensor error that caused
// it; the next scheduled wake is the retry.
type Outcome struct {
	CO2            sunrise.PPM
	Degraded       bool
	SensorErr      error
	Temperature    physic.Temperature
	HasTemperature bool
	Battery        physic.ElectricPotential
	DisplayErr     error
}

// Cycle holds the collaborators for wake cycles. The same Cycle can run
// many cycles; each run constructs a fresh sensor driver.
type Cycle struct {
	Bus     i2c.Bus
	Enable  gpio.PinOut
	Display Display
	// Battery supplies the battery voltage for the refresh. Nil means no
	// battery monitor attached; 0V is shown.
	Battery func() physic.ElectricPotential
	// Samples is the sensor sub-sample count. 0 means DefaultSamples.
	Samples    int
	SensorOpts *sunrise.Opts
	// AbortOnDisplayError makes a failed display refresh fatal for the
	// cycle. The retained state is already updated at that point and the
	// caller must still flush it and re-arm the wake timer.
	AbortOnDisplayError bool
	// Wait pauses for the sensor's integration time. Nil means time.Sleep;
	// tests substitute their own clock.
	Wait func(time.Duration)
}

// Run executes one wake cycle against the retained store. It borrows the
// store only for the duration of the call.
//
// Sensor failures of any kind degrade the cycle instead of failing it: the
// sentinel reading keeps the sampling cadence and calibration time keeps
// accruing. The returned error is non-nil only for a display failure with
// AbortOnDisplayError set.
func (c *Cycle) Run(store *retain.Store) (Outcome, error) {
	var out Outcome
	wait := c.Wait
	if wait == nil {
		wait = time.Sleep
	}
	samples := c.Samples
	if samples <= 0 {
		samples = DefaultSamples
	}

	poweredOn := time.Now()
	readRan := false
	dev, err := sunrise.New(c.Bus, c.Enable, c.SensorOpts)
	if err != nil {
		out.SensorErr = err
	} else {
		if err := dev.Init(samples); err != nil {
			out.SensorErr = err
		} else if err := dev.StartMeasurement(sunrise.RestoreCalibration(&store.Calibration)); err != nil {
			out.SensorErr = err
		} else {
			wait(dev.MeasurementDuration())
			readRan = true
			out.CO2, out.SensorErr = dev.ReadCO2(&store.Calibration)
		}
		out.Temperature, out.HasTemperature = dev.Temperature()
	}
	if out.SensorErr != nil {
		out.Degraded = true
		out.CO2 = 0
	}
	if !readRan {
		// ReadCO2 is what accrues operating time into the calibration
		// record; a cycle that failed before reaching it still ran the
		// sensor.
		store.Calibration.UpdateTime(time.Since(poweredOn))
	}

	store.History.AddMeasurement(uint16(out.CO2))
	if dev != nil {
		_ = dev.TurnOff()
	}

	if c.Display != nil {
		if c.Battery != nil {
			out.Battery = c.Battery()
		}
		if err := c.Display.Draw(&store.History, out.Temperature, out.HasTemperature, out.Battery); err != nil {
			out.DisplayErr = err
			if c.AbortOnDisplayError {
				return out, fmt.Errorf("monitor: display refresh: %w", err)
			}
		}
	}
	return out, nil
}
