// Copyright 2025 The CO2 Canary Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sunrise

import (
	"fmt"
	"strings"
)

// ErrorStatus is the 16-bit fault word the sensor reports in its ErrorStatus
// register. Zero means no fault.
type ErrorStatus uint16

const (
	StatusFatal              ErrorStatus = 1 << 0
	StatusI2C                ErrorStatus = 1 << 1
	StatusAlgorithm          ErrorStatus = 1 << 2
	StatusCalibration        ErrorStatus = 1 << 3
	StatusSelfDiagnostics    ErrorStatus = 1 << 4
	StatusOutOfRange         ErrorStatus = 1 << 5
	StatusMemory             ErrorStatus = 1 << 6
	StatusNoMeasurement      ErrorStatus = 1 << 7
	StatusLowInternalVoltage ErrorStatus = 1 << 8
	StatusMeasurementTimeout ErrorStatus = 1 << 9
	StatusAbnormalSignal     ErrorStatus = 1 << 10
)

var statusNames = []struct {
	bit  ErrorStatus
	name string
}{
	{StatusFatal, "fatal"},
	{StatusI2C, "i2c"},
	{StatusAlgorithm, "algorithm"},
	{StatusCalibration, "calibration"},
	{StatusSelfDiagnostics, "self diagnostics"},
	{StatusOutOfRange, "out of range"},
	{StatusMemory, "memory"},
	{StatusNoMeasurement, "no measurement completed"},
	{StatusLowInternalVoltage, "low internal voltage"},
	{StatusMeasurementTimeout, "measurement timeout"},
	{StatusAbnormalSignal, "abnormal signal level"},
}

func (s ErrorStatus) String() string {
	if s == 0 {
		return "ok"
	}
	var names []string
	for _, sn := range statusNames {
		if s&sn.bit != 0 {
			names = append(names, sn.name)
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("unknown fault 0x%04x", uint16(s))
	}
	return strings.Join(names, ", ")
}

// InitError reports a failed sensor configuration. Either the bus rejected a
// transaction (Cause is set) or the device reported a fault during setup
// (Status is non-zero).
type InitError struct {
	Cause  error
	Status ErrorStatus
}

func (e *InitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("sunrise: init: %v", e.Cause)
	}
	return fmt.Sprintf("sunrise: init: device fault: %s", e.Status)
}

func (e *InitError) Unwrap() error {
	return e.Cause
}

// MeasurementError reports a failed bus transaction while triggering or
// reading a measurement.
type MeasurementError struct {
	Op    string
	Cause error
}

func (e *MeasurementError) Error() string {
	return fmt.Sprintf("sunrise: %s: %v", e.Op, e.Cause)
}

func (e *MeasurementError) Unwrap() error {
	return e.Cause
}

// SensorError reports a sensor-internal fault encoded in the result's status
// word. The reading that accompanied it must be discarded.
type SensorError struct {
	Status ErrorStatus
}

func (e *SensorError) Error() string {
	return fmt.Sprintf("sunrise: sensor fault: %s", e.Status)
}
