// Copyright 2025 The CO2 Canary Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.
//
// Unit tests for the package. Note that this supports running on a live
// sensor, or using playback mode to simulate a live device.
//
// To use a live device, define the environment variable SUNRISE with the
// name of the enable pin (e.g. SUNRISE=GPIO4) and run go test.

package sunrise

import (
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/host/v3"
)

var bus i2c.Bus
var enablePin gpio.PinOut
var liveDevice bool = false

// fastOpts keeps playback tests from sleeping out real sensor delays.
var fastOpts = Opts{
	BootDelay:    time.Millisecond,
	SamplePeriod: time.Millisecond,
	WakeDelay:    time.Millisecond,
}

// 24 recognizable algorithm state bytes for playback.
var snapshotBytes = []uint8{
	0x00, 0x2a, 0x01, 0x90, 0x02, 0x58, 0x03, 0x20,
	0x04, 0xe8, 0x05, 0xb0, 0x06, 0x78, 0x07, 0x40,
	0x08, 0x08, 0x09, 0xd0, 0x0a, 0x98, 0x0b, 0x60,
}

// playback for Init(2) when the sensor is still in continuous mode.
var initPlayback = []i2ctest.IO{
	{Addr: SensorAddress, W: []uint8{0x95}, R: []uint8{0x00}},
	{Addr: SensorAddress, W: []uint8{0x95, 0x01}},
	{Addr: SensorAddress, W: []uint8{0x98, 0x00, 0x02}},
	{Addr: SensorAddress, W: []uint8{0x00}, R: []uint8{0x00, 0x80}},
}

// playback for a full cycle on a sensor already in single measurement mode:
// Init(2), trigger without calibration, result of 556 PPM at 25.00C, state
// snapshot readback.
var measurePlayback = []i2ctest.IO{
	{Addr: SensorAddress, W: []uint8{0x95}, R: []uint8{0x01}},
	{Addr: SensorAddress, W: []uint8{0x98, 0x00, 0x02}},
	{Addr: SensorAddress, W: []uint8{0x00}, R: []uint8{0x00, 0x80}},
	{Addr: SensorAddress, W: []uint8{0xc3, 0x01}},
	{Addr: SensorAddress, W: []uint8{0x00}, R: []uint8{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x02, 0x2c, 0x09, 0xc4}},
	{Addr: SensorAddress, W: []uint8{0xc4}, R: snapshotBytes},
}

// playback for the cycle after measurePlayback: the snapshot rides along
// with the trigger write.
func restorePlayback() []i2ctest.IO {
	trigger := append([]uint8{0xc3, 0x01}, snapshotBytes...)
	return []i2ctest.IO{
		{Addr: SensorAddress, W: []uint8{0x95}, R: []uint8{0x01}},
		{Addr: SensorAddress, W: []uint8{0x98, 0x00, 0x02}},
		{Addr: SensorAddress, W: []uint8{0x00}, R: []uint8{0x00, 0x00}},
		{Addr: SensorAddress, W: trigger},
		{Addr: SensorAddress, W: []uint8{0x00}, R: []uint8{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x02, 0x3a, 0x09, 0x1a}},
		{Addr: SensorAddress, W: []uint8{0xc4}, R: snapshotBytes},
	}
}

// playback for a device-internal fault: measurement timeout reported in the
// result's status word.
var faultPlayback = []i2ctest.IO{
	{Addr: SensorAddress, W: []uint8{0x95}, R: []uint8{0x01}},
	{Addr: SensorAddress, W: []uint8{0x98, 0x00, 0x02}},
	{Addr: SensorAddress, W: []uint8{0x00}, R: []uint8{0x00, 0x00}},
	{Addr: SensorAddress, W: []uint8{0xc3, 0x01}},
	{Addr: SensorAddress, W: []uint8{0x00}, R: []uint8{0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}},
}

func init() {
	// If the environment variable is set, assume we have a live device on
	// the default i2c bus and use it for testing. If the variable is not
	// present, then use the playback/read values.
	if os.Getenv("SUNRISE") != "" {
		liveDevice = true
	}
	if _, err := host.Init(); err != nil {
		fmt.Println(err)
	}

	if liveDevice {
		var err error
		bus, err = i2creg.Open("")
		if err != nil {
			fmt.Println(err)
		}
		// Add the recorder to dump the data stream when we're using a live device.
		bus = &i2ctest.Record{Bus: bus}
		enablePin = gpioreg.ByName(os.Getenv("SUNRISE"))
	} else {
		bus = &i2ctest.Playback{DontPanic: true}
	}
}

// getDev returns a sunrise device for testing connected to either a live
// bus, or a playback bus. playbackOps is a slice of i2ctest.IO operations
// to be used for playback mode. Ignored for live device testing.
func getDev(t *testing.T, playbackOps ...[]i2ctest.IO) *Dev {
	opts := &fastOpts
	if liveDevice {
		opts = nil
		if recorder, ok := bus.(*i2ctest.Record); ok {
			recorder.Ops = make([]i2ctest.IO, 0, 16)
		}
	} else {
		pb := bus.(*i2ctest.Playback)
		pb.Ops = nil
		pb.Count = 0
		if len(playbackOps) == 1 {
			pb.Ops = playbackOps[0]
		}
		enablePin = &gpiotest.Pin{N: "EN"}
	}
	dev, err := New(bus, enablePin, opts)
	if err != nil {
		t.Fatal(err)
	}
	return dev
}

// shutdown dumps the recorder values if we were running a live device.
func shutdown(t *testing.T) {
	if recorder, ok := bus.(*i2ctest.Record); ok {
		t.Logf("%#v", recorder.Ops)
	}
}

func TestErrorStatusString(t *testing.T) {
	tests := []struct {
		status   ErrorStatus
		expected string
	}{
		{0, "ok"},
		{StatusFatal, "fatal"},
		{StatusCalibration | StatusOutOfRange, "calibration, out of range"},
	}
	for _, test := range tests {
		if s := test.status.String(); s != test.expected {
			t.Errorf("ErrorStatus(%#x).String() = %q, expected %q", uint16(test.status), s, test.expected)
		}
	}
}

func TestInit(t *testing.T) {
	dev := getDev(t, initPlayback)
	defer func() { _ = dev.TurnOff() }()
	defer shutdown(t)

	if err := dev.Init(2); err != nil {
		t.Fatal(err)
	}
	if want := 2 * fastOpts.SamplePeriod; !liveDevice && dev.MeasurementDuration() != want {
		t.Errorf("MeasurementDuration() = %s, expected %s", dev.MeasurementDuration(), want)
	}
}

func TestMeasureCycle(t *testing.T) {
	dev := getDev(t, measurePlayback)
	defer shutdown(t)

	cal := CalibrationData{}
	if err := dev.Init(2); err != nil {
		t.Fatal(err)
	}
	if err := dev.StartMeasurement(NoCalibration()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(dev.MeasurementDuration())
	co2, err := dev.ReadCO2(&cal)
	if err != nil {
		t.Fatal(err)
	}
	if !liveDevice && co2 != 556 {
		t.Errorf("ReadCO2() = %s, expected 556 PPM", co2)
	}
	temp, ok := dev.Temperature()
	if !ok {
		t.Fatal("Temperature() missing after successful read")
	}
	if !liveDevice {
		// 0x09c4 = 2500 hundredths, 25.00C.
		if c := temp.Celsius(); c < 24.99 || c > 25.01 {
			t.Errorf("Temperature() = %.2fC, expected 25.00C", c)
		}
	}
	if !cal.HasState() {
		t.Error("calibration snapshot missing after successful read")
	}
	if cal.AccumulatedTime() <= 0 {
		t.Error("no operating time accumulated")
	}
	if err := dev.TurnOff(); err != nil {
		t.Fatal(err)
	}
}

func TestRestoredCalibrationRidesTrigger(t *testing.T) {
	if liveDevice {
		t.Skip("playback-only: asserts exact trigger bytes")
	}
	// First cycle populates the snapshot.
	dev := getDev(t, measurePlayback)
	cal := CalibrationData{}
	if err := dev.Init(2); err != nil {
		t.Fatal(err)
	}
	if err := dev.StartMeasurement(NoCalibration()); err != nil {
		t.Fatal(err)
	}
	if _, err := dev.ReadCO2(&cal); err != nil {
		t.Fatal(err)
	}
	_ = dev.TurnOff()

	// Second cycle: the trigger write must carry the snapshot.
	dev = getDev(t, restorePlayback())
	if err := dev.Init(2); err != nil {
		t.Fatal(err)
	}
	if err := dev.StartMeasurement(RestoreCalibration(&cal)); err != nil {
		t.Fatal(err)
	}
	if _, err := dev.ReadCO2(&cal); err != nil {
		t.Fatal(err)
	}
	_ = dev.TurnOff()
}

func TestInitNAK(t *testing.T) {
	if liveDevice {
		t.Skip("playback-only: simulates a failed acknowledgment")
	}
	// No playback operations: every transaction fails.
	dev := getDev(t)
	cal := CalibrationData{}

	err := dev.Init(2)
	var initErr *InitError
	if !errors.As(err, &initErr) {
		t.Fatalf("Init() = %v, expected InitError", err)
	}
	if cal.AccumulatedTime() != 0 {
		t.Error("Init failure touched calibration time")
	}
	if cal.HasState() {
		t.Error("Init failure touched calibration state")
	}
}

func TestReadFailureStillAccruesTime(t *testing.T) {
	if liveDevice {
		t.Skip("playback-only: simulates a bus failure")
	}
	// Operations stop after the trigger, so the result read fails.
	dev := getDev(t, measurePlayback[:4])
	cal := CalibrationData{}
	if err := dev.Init(2); err != nil {
		t.Fatal(err)
	}
	if err := dev.StartMeasurement(NoCalibration()); err != nil {
		t.Fatal(err)
	}
	_, err := dev.ReadCO2(&cal)
	var mErr *MeasurementError
	if !errors.As(err, &mErr) {
		t.Fatalf("ReadCO2() = %v, expected MeasurementError", err)
	}
	if cal.AccumulatedTime() <= 0 {
		t.Error("failed read must still accumulate operating time")
	}
	if cal.HasState() {
		t.Error("failed read must not publish a snapshot")
	}
	if _, ok := dev.Temperature(); ok {
		t.Error("Temperature() present although the result read failed")
	}
}

func TestSensorFault(t *testing.T) {
	if liveDevice {
		t.Skip("playback-only: simulates a device fault")
	}
	dev := getDev(t, faultPlayback)
	cal := CalibrationData{}
	if err := dev.Init(2); err != nil {
		t.Fatal(err)
	}
	if err := dev.StartMeasurement(NoCalibration()); err != nil {
		t.Fatal(err)
	}
	co2, err := dev.ReadCO2(&cal)
	var sErr *SensorError
	if !errors.As(err, &sErr) {
		t.Fatalf("ReadCO2() = %v, expected SensorError", err)
	}
	if sErr.Status != StatusMeasurementTimeout {
		t.Errorf("fault = %s, expected measurement timeout", sErr.Status)
	}
	if co2 != 0 {
		t.Errorf("faulted read returned %s, expected 0", co2)
	}
	if cal.AccumulatedTime() <= 0 {
		t.Error("faulted read must still accumulate operating time")
	}
}

func TestProtocolOrder(t *testing.T) {
	if liveDevice {
		t.Skip("playback-only")
	}
	dev := getDev(t, initPlayback)
	cal := CalibrationData{}

	if err := dev.StartMeasurement(NoCalibration()); err == nil {
		t.Error("StartMeasurement before Init must fail")
	}
	if _, err := dev.ReadCO2(&cal); err == nil {
		t.Error("ReadCO2 before StartMeasurement must fail")
	}
	if err := dev.Init(2); err != nil {
		t.Fatal(err)
	}
	if err := dev.Init(2); err == nil {
		t.Error("double Init must fail")
	}
	if err := dev.TurnOff(); err != nil {
		t.Fatal(err)
	}
	if err := dev.Init(2); err == nil {
		t.Error("Init after TurnOff must fail")
	}
}

func TestInvalidSampleCount(t *testing.T) {
	if liveDevice {
		t.Skip("playback-only")
	}
	dev := getDev(t)
	var initErr *InitError
	if err := dev.Init(0); !errors.As(err, &initErr) {
		t.Errorf("Init(0) = %v, expected InitError", err)
	}
}

func TestEnableLine(t *testing.T) {
	if liveDevice {
		t.Skip("playback-only")
	}
	dev := getDev(t)
	pin := enablePin.(*gpiotest.Pin)
	if pin.L != gpio.High {
		t.Error("New() must assert the enable line")
	}
	if err := dev.TurnOff(); err != nil {
		t.Fatal(err)
	}
	if pin.L != gpio.Low {
		t.Error("TurnOff() must deassert the enable line")
	}
}

func TestTemperatureConversion(t *testing.T) {
	d := &Dev{rawTemp: -525, haveTemp: true}
	temp, ok := d.Temperature()
	if !ok {
		t.Fatal("expected a temperature")
	}
	if c := temp.Celsius(); c < -5.26 || c > -5.24 {
		t.Errorf("Temperature() = %.2fC, expected -5.25C", c)
	}
	if _, ok := (&Dev{}).Temperature(); ok {
		t.Error("zero Dev must not report a temperature")
	}
}
