// Copyright 2025 The CO2 Canary Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package battery reads the pack voltage from an INA260 power monitor so
// the display can show how much charge the monitor has left.
package battery

import (
	"encoding/binary"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// DefaultAddress is the INA260's I²C address with both address pins tied
// to ground.
const DefaultAddress uint16 = 0x40

// Registers used by the driver.
const (
	regConfig         byte = 0x00
	regCurrent        byte = 0x01
	regBusVoltage     byte = 0x02
	regPower          byte = 0x03
	regManufacturerID byte = 0xFE
)

// busVoltageLSB is the bus voltage register resolution, 1.25mV/bit.
const busVoltageLSB = 1250 * physic.MicroVolt

// Dev reads an INA260 wired across the battery.
type Dev struct {
	d *i2c.Dev
}

// New returns a battery monitor on the given bus. addr 0 selects the
// default address.
func New(b i2c.Bus, addr uint16) *Dev {
	if addr == 0 {
		addr = DefaultAddress
	}
	return &Dev{d: &i2c.Dev{Bus: b, Addr: addr}}
}

// Voltage returns the battery voltage.
func (d *Dev) Voltage() (physic.ElectricPotential, error) {
	var buf [2]byte
	if err := d.d.Tx([]byte{regBusVoltage}, buf[:]); err != nil {
		return 0, fmt.Errorf("battery: %w", err)
	}
	raw := binary.BigEndian.Uint16(buf[:])
	return physic.ElectricPotential(raw) * busVoltageLSB, nil
}

// Current returns the current drawn from the battery. Negative values mean
// the battery is charging.
func (d *Dev) Current() (physic.ElectricCurrent, error) {
	var buf [2]byte
	if err := d.d.Tx([]byte{regCurrent}, buf[:]); err != nil {
		return 0, fmt.Errorf("battery: %w", err)
	}
	raw := int16(binary.BigEndian.Uint16(buf[:]))
	// 1.25mA/bit.
	return physic.ElectricCurrent(raw) * 1250 * physic.MicroAmpere, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("battery: %s", d.d.String())
}
