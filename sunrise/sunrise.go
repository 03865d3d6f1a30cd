// Copyright 2025 The CO2 Canary Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sunrise

import (
	"encoding/binary"
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// SensorAddress is the factory default I²C address of the sensor.
const SensorAddress uint16 = 0x68

// PPM is a CO2 concentration in parts per million.
type PPM uint16

func (p PPM) String() string {
	return fmt.Sprintf("%d PPM", uint16(p))
}

// Registers used by the driver. The result block starts at the ErrorStatus
// register; CO2 and temperature sit inside it at fixed offsets.
const (
	regErrorStatus     byte = 0x00
	regMeasurementMode byte = 0x95
	regNumberOfSamples byte = 0x98
	regStartSingle     byte = 0xC3
	regStateData       byte = 0xC4
)

const (
	modeContinuous byte = 0x00
	modeSingle     byte = 0x01
)

// Offsets within the 10-byte result block read from regErrorStatus.
const (
	offCO2         = 6 // filtered, pressure compensated, 16-bit big endian
	offTemperature = 8 // signed, hundredths of a degree Celsius
	resultLen      = 10
)

// Faults that are expected before the first completed measurement and must
// not fail Init.
const initStatusMask = ^StatusNoMeasurement

// Opts holds the configuration options for the driver.
type Opts struct {
	// Address is the sensor's I²C address. Leave 0 for the factory default.
	Address uint16
	// BootDelay is the time the sensor needs after power-on before it
	// accepts bus traffic. Leave 0 for the datasheet value of 35ms.
	BootDelay time.Duration
	// SamplePeriod is the integration time of a single sub-sample,
	// determining the total measurement duration. Leave 0 for 300ms.
	SamplePeriod time.Duration
	// WakeDelay is the pause before retrying a transaction the sleeping
	// sensor NAKed. Leave 0 for 5ms.
	WakeDelay time.Duration
}

// DefaultOpts holds the default configuration options for the driver.
var DefaultOpts = Opts{
	Address:      SensorAddress,
	BootDelay:    35 * time.Millisecond,
	SamplePeriod: 300 * time.Millisecond,
	WakeDelay:    5 * time.Millisecond,
}

// The driver's position in the measurement protocol. A Dev is power-cycled
// every wake and never reused after TurnOff.
type state int

const (
	off state = iota
	enabled
	initialized
	measuring
	resultReady
)

// Dev drives one measurement cycle of a Sunrise sensor.
type Dev struct {
	d      *i2c.Dev
	enable gpio.PinOut
	opts   Opts

	state     state
	poweredOn time.Time
	samples   int
	rawTemp   int16
	haveTemp  bool
}

// New asserts the sensor's enable line and returns a driver ready for Init.
// No I²C traffic happens until Init; the caller may overlap the sensor's
// boot delay with other work. Opts can be nil.
func New(b i2c.Bus, enable gpio.PinOut, opts *Opts) (*Dev, error) {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	if o.Address == 0 {
		o.Address = SensorAddress
	}
	if o.BootDelay == 0 {
		o.BootDelay = DefaultOpts.BootDelay
	}
	if o.SamplePeriod == 0 {
		o.SamplePeriod = DefaultOpts.SamplePeriod
	}
	if o.WakeDelay == 0 {
		o.WakeDelay = DefaultOpts.WakeDelay
	}
	if err := enable.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("sunrise: enable: %w", err)
	}
	return &Dev{
		d:         &i2c.Dev{Bus: b, Addr: o.Address},
		enable:    enable,
		opts:      o,
		state:     enabled,
		poweredOn: time.Now(),
	}, nil
}

// Init configures the sensor for a single-shot measurement averaging samples
// sub-samples. It waits out the remainder of the sensor's boot delay first.
// Init never touches CalibrationData.
func (d *Dev) Init(samples int) error {
	if d.state != enabled {
		return d.stateError("Init")
	}
	if samples < 1 || samples > 0xFFFF {
		return &InitError{Cause: fmt.Errorf("invalid sample count %d", samples)}
	}
	if rem := d.opts.BootDelay - time.Since(d.poweredOn); rem > 0 {
		time.Sleep(rem)
	}

	var mode [1]byte
	if err := d.tx([]byte{regMeasurementMode}, mode[:]); err != nil {
		return &InitError{Cause: err}
	}
	if mode[0] != modeSingle {
		if err := d.tx([]byte{regMeasurementMode, modeSingle}, nil); err != nil {
			return &InitError{Cause: err}
		}
	}

	w := []byte{regNumberOfSamples, 0, 0}
	binary.BigEndian.PutUint16(w[1:], uint16(samples))
	if err := d.tx(w, nil); err != nil {
		return &InitError{Cause: err}
	}

	var status [2]byte
	if err := d.tx([]byte{regErrorStatus}, status[:]); err != nil {
		return &InitError{Cause: err}
	}
	if s := ErrorStatus(binary.BigEndian.Uint16(status[:])) & initStatusMask; s != 0 {
		return &InitError{Status: s}
	}

	d.samples = samples
	d.state = initialized
	return nil
}

// MeasurementDuration returns how long the caller must wait between
// StartMeasurement and ReadCO2 for the configured sample count.
func (d *Dev) MeasurementDuration() time.Duration {
	return time.Duration(d.samples) * d.opts.SamplePeriod
}

// StartMeasurement triggers one single-shot measurement. With a calibration
// payload, the saved algorithm state rides along with the trigger in the
// same transaction. The call does not block for the measurement; wait
// MeasurementDuration before ReadCO2.
func (d *Dev) StartMeasurement(cal Calibration) error {
	if d.state != initialized {
		return d.stateError("StartMeasurement")
	}
	w := []byte{regStartSingle, 0x01}
	w = append(w, cal.payload()...)
	if err := d.tx(w, nil); err != nil {
		return &MeasurementError{Op: "start measurement", Cause: err}
	}
	d.state = measuring
	return nil
}

// ReadCO2 reads the finished measurement and snapshots the sensor's
// algorithm state into cd. Success or not, it accumulates the elapsed
// operating time into cd first; a transient bus failure never leaves the
// calibration record believing no time passed. A sensor-internal fault is
// returned as a SensorError carrying the fault word, and the reading must
// be discarded.
func (d *Dev) ReadCO2(cd *CalibrationData) (PPM, error) {
	if d.state != measuring {
		return 0, d.stateError("ReadCO2")
	}
	cd.UpdateTime(time.Since(d.poweredOn))
	d.state = resultReady

	var buf [resultLen]byte
	if err := d.tx([]byte{regErrorStatus}, buf[:]); err != nil {
		return 0, &MeasurementError{Op: "read result", Cause: err}
	}
	if status := ErrorStatus(binary.BigEndian.Uint16(buf[0:2])); status != 0 {
		return 0, &SensorError{Status: status}
	}
	co2 := PPM(binary.BigEndian.Uint16(buf[offCO2 : offCO2+2]))
	d.rawTemp = int16(binary.BigEndian.Uint16(buf[offTemperature : offTemperature+2]))
	d.haveTemp = true

	// Snapshot into a scratch buffer so a failed read leaves any previous
	// snapshot in cd intact.
	var snap [stateSize]byte
	if err := d.tx([]byte{regStateData}, snap[:]); err != nil {
		return 0, &MeasurementError{Op: "read state", Cause: err}
	}
	cd.state = snap
	cd.valid = true
	return co2, nil
}

// Temperature returns the sensor die temperature delivered with the last
// result block. The second return value is false if the transaction that
// would have supplied it failed.
func (d *Dev) Temperature() (physic.Temperature, bool) {
	if !d.haveTemp {
		return 0, false
	}
	c := float64(d.rawTemp) / 100.0
	return physic.ZeroCelsius + physic.Temperature(c*float64(physic.Celsius)), true
}

// TurnOff deasserts the enable line, cutting sensor power. The driver is
// dead afterwards; the next cycle constructs a new one.
func (d *Dev) TurnOff() error {
	d.state = off
	return d.enable.Out(gpio.Low)
}

// Halt implements conn.Resource.
func (d *Dev) Halt() error {
	return d.TurnOff()
}

func (d *Dev) String() string {
	return fmt.Sprintf("sunrise: %s", d.d.String())
}

// tx is the single funnel for bus traffic. The sensor NAKs its address
// while asleep between transactions, so a failed attempt is retried once
// after a short pause.
func (d *Dev) tx(w, r []byte) error {
	if err := d.d.Tx(w, r); err == nil {
		return nil
	}
	time.Sleep(d.opts.WakeDelay)
	return d.d.Tx(w, r)
}

func (d *Dev) stateError(op string) error {
	names := map[state]string{
		off:         "off",
		enabled:     "enabled",
		initialized: "initialized",
		measuring:   "measuring",
		resultReady: "result ready",
	}
	return fmt.Errorf("sunrise: %s not valid while %s", op, names[d.state])
}

var _ conn.Resource = &Dev{}
