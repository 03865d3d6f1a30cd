// Copyright 2025 The CO2 Canary Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sunrise

import (
	"encoding/binary"
	"fmt"
	"time"
)

// stateSize is the size of the sensor's algorithm state block, registers
// 0xC4..0xDB: the ABC time counter, ABC parameters and filter parameters.
const stateSize = 24

// CalibrationBinarySize is the size of a marshalled CalibrationData in bytes.
const CalibrationBinarySize = 8 + 1 + stateSize

// CalibrationData is the host-side calibration state for a sensor running in
// single measurement mode. It accumulates total operating time and carries
// the algorithm state snapshot read back after the last completed
// measurement. The zero value is the cold-boot state: no time accumulated,
// no snapshot. It is only ever reset by re-initializing the retained memory
// it lives in.
type CalibrationData struct {
	timeMS uint64
	state  [stateSize]byte
	valid  bool
}

// UpdateTime adds delta to the accumulated operating-time counter. It is
// safe to call on every path, including after a failed measurement; the
// counter must keep advancing or the sensor's time-based self-calibration
// drifts. Negative deltas are ignored.
func (cd *CalibrationData) UpdateTime(delta time.Duration) {
	if delta > 0 {
		cd.timeMS += uint64(delta / time.Millisecond)
	}
}

// AccumulatedTime returns the total recorded operating time.
func (cd *CalibrationData) AccumulatedTime() time.Duration {
	return time.Duration(cd.timeMS) * time.Millisecond
}

// HasState reports whether a measurement has completed since cold boot, so
// that an algorithm state snapshot is available to restore.
func (cd *CalibrationData) HasState() bool {
	return cd.valid
}

func (cd *CalibrationData) String() string {
	return fmt.Sprintf("calibration: %s operating, snapshot=%t", cd.AccumulatedTime(), cd.valid)
}

// MarshalBinary implements encoding.BinaryMarshaler. The layout is fixed
// size: time counter, snapshot flag, snapshot bytes.
func (cd *CalibrationData) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, CalibrationBinarySize)
	b = binary.BigEndian.AppendUint64(b, cd.timeMS)
	if cd.valid {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}
	b = append(b, cd.state[:]...)
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (cd *CalibrationData) UnmarshalBinary(b []byte) error {
	if len(b) != CalibrationBinarySize {
		return fmt.Errorf("sunrise: calibration image is %d bytes, expected %d", len(b), CalibrationBinarySize)
	}
	if b[8] > 1 {
		return fmt.Errorf("sunrise: corrupt calibration image")
	}
	cd.timeMS = binary.BigEndian.Uint64(b[0:8])
	cd.valid = b[8] == 1
	copy(cd.state[:], b[9:])
	return nil
}

// Calibration is the explicit choice of whether a measurement starts with
// restored calibration state.
type Calibration struct {
	data *CalibrationData
}

// NoCalibration starts the measurement with the sensor's own defaults. Only
// appropriate right after a hard reset, before any snapshot exists.
func NoCalibration() Calibration {
	return Calibration{}
}

// RestoreCalibration supplies the saved algorithm state with the measurement
// trigger. If cd holds no snapshot yet this degrades to NoCalibration.
func RestoreCalibration(cd *CalibrationData) Calibration {
	return Calibration{data: cd}
}

// payload returns the state bytes to send with the trigger, or nil.
func (c Calibration) payload() []byte {
	if c.data == nil || !c.data.valid {
		return nil
	}
	return c.data.state[:]
}
