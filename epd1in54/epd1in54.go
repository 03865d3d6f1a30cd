// Copyright 2025 The CO2 Canary Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package epd1in54

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Commands
const (
	driverOutputControl            byte = 0x01
	deepSleepMode                  byte = 0x10
	dataEntryModeSetting           byte = 0x11
	swReset                        byte = 0x12
	tempSensorControl              byte = 0x18
	masterActivation               byte = 0x20
	displayUpdateControl2          byte = 0x22
	writeRAMBW                     byte = 0x24
	borderWaveformControl          byte = 0x3C
	setRAMXAddressStartEndPosition byte = 0x44
	setRAMYAddressStartEndPosition byte = 0x45
	setRAMXAddressCounter          byte = 0x4E
	setRAMYAddressCounter          byte = 0x4F
)

// Dev defines the handler which is used to access the display.
type Dev struct {
	c conn.Conn

	dc   gpio.PinOut
	cs   gpio.PinOut
	rst  gpio.PinOut
	busy gpio.PinIO

	opts *Opts
}

// Opts defines the structure of the display configuration.
type Opts struct {
	Width  int
	Height int
}

// EPD1in54V2 contains display configuration for the Waveshare 1.54inch V2.
var EPD1in54V2 = Opts{
	Width:  200,
	Height: 200,
}

// dataDimensions returns the size in terms of bytes needed to fill the
// display.
func dataDimensions(opts *Opts) (int, int) {
	return opts.Height, (opts.Width + 7) / 8
}

// errorHandler is a wrapper for error management.
type errorHandler struct {
	d   *Dev
	err error
}

func (eh *errorHandler) rstOut(l gpio.Level) {
	if eh.err != nil {
		return
	}
	eh.err = eh.d.rst.Out(l)
}

func (eh *errorHandler) sendCommand(c byte) {
	if eh.err != nil {
		return
	}
	eh.err = eh.d.sendCommand([]byte{c})
}

func (eh *errorHandler) sendData(d []byte) {
	if eh.err != nil {
		return
	}
	eh.err = eh.d.sendData(d)
}

func (eh *errorHandler) waitUntilIdle() {
	if eh.err != nil {
		return
	}
	eh.d.waitUntilIdle()
}

// New creates new handler which is used to access the display.
func New(p spi.Port, dc, cs, rst gpio.PinOut, busy gpio.PinIO, opts *Opts) (*Dev, error) {
	c, err := p.Connect(5*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, err
	}

	d := &Dev{
		c:    c,
		dc:   dc,
		cs:   cs,
		rst:  rst,
		busy: busy,
		opts: opts,
	}

	return d, nil
}

// Init performs a hardware reset followed by the panel initialization
// sequence. It must be called once after power-up, and again after Sleep.
func (d *Dev) Init() error {
	if err := d.reset(); err != nil {
		return err
	}

	eh := errorHandler{d: d}
	initDisplay(&eh, d.opts)
	return eh.err
}

// Clear fills the display with the given byte pattern, 0xFF for white.
func (d *Dev) Clear(color byte) error {
	rows, cols := dataDimensions(d.opts)
	data := bytes.Repeat([]byte{color}, cols)

	eh := errorHandler{d: d}
	setMemoryPointer(&eh, d.opts)
	eh.sendCommand(writeRAMBW)
	for y := 0; y < rows && eh.err == nil; y++ {
		eh.sendData(data)
	}
	if eh.err != nil {
		return eh.err
	}

	return d.turnOnDisplay()
}

// ColorModel returns a 1Bit color model.
func (d *Dev) ColorModel() color.Model {
	return image1bit.BitModel
}

// Bounds returns the bounds for the configurated display.
func (d *Dev) Bounds() image.Rectangle {
	return image.Rect(0, 0, d.opts.Width, d.opts.Height)
}

func (d *Dev) sendImage(cmd byte, src *image1bit.VerticalLSB) error {
	eh := errorHandler{d: d}
	setMemoryPointer(&eh, d.opts)
	eh.sendCommand(cmd)

	rows, cols := dataDimensions(d.opts)

	for y := 0; y < rows && eh.err == nil; y++ {
		data := make([]byte, cols)

		for x := 0; x < cols; x++ {
			for bit := 0; bit < 8; bit++ {
				if src.BitAt((x*8)+bit, y) {
					data[x] |= 0x80 >> bit
				}
			}
		}

		eh.sendData(data)
	}

	return eh.err
}

// Draw draws the given image to the display and refreshes the panel.
func (d *Dev) Draw(dstRect image.Rectangle, src image.Image, srcPts image.Point) error {
	next := image1bit.NewVerticalLSB(dstRect)
	draw.Src.Draw(next, dstRect, src, srcPts)

	if err := d.sendImage(writeRAMBW, next); err != nil {
		return err
	}

	return d.turnOnDisplay()
}

// Sleep puts the panel into deep sleep. The image stays visible; only Init
// after a hardware reset brings the controller back.
func (d *Dev) Sleep() error {
	eh := errorHandler{d: d}
	sleepDisplay(&eh)
	return eh.err
}

// Halt clears the display.
func (d *Dev) Halt() error {
	return d.Clear(0xFF)
}

// String returns a string containing configuration information.
func (d *Dev) String() string {
	return fmt.Sprintf("epd1in54.Dev{%s, %s, Height: %d, Width: %d}", d.c, d.dc, d.opts.Height, d.opts.Width)
}

func (d *Dev) sendData(c []byte) error {
	eh := errorHandler{d: d}

	eh.err = d.dc.Out(gpio.High)
	if eh.err == nil {
		eh.err = d.cs.Out(gpio.Low)
	}
	if eh.err == nil {
		eh.err = d.c.Tx(c, nil)
	}
	if eh.err == nil {
		eh.err = d.cs.Out(gpio.High)
	}
	return eh.err
}

func (d *Dev) sendCommand(c []byte) error {
	eh := errorHandler{d: d}

	eh.err = d.dc.Out(gpio.Low)
	if eh.err == nil {
		eh.err = d.cs.Out(gpio.Low)
	}
	if eh.err == nil {
		eh.err = d.c.Tx(c, nil)
	}
	if eh.err == nil {
		eh.err = d.cs.Out(gpio.High)
	}
	return eh.err
}

func (d *Dev) turnOnDisplay() error {
	eh := errorHandler{d: d}
	updateDisplay(&eh)
	return eh.err
}

// Reset the hardware
func (d *Dev) reset() error {
	eh := errorHandler{d: d}

	eh.rstOut(gpio.High)
	time.Sleep(20 * time.Millisecond)
	eh.rstOut(gpio.Low)
	time.Sleep(5 * time.Millisecond)
	eh.rstOut(gpio.High)
	time.Sleep(20 * time.Millisecond)

	return eh.err
}

func (d *Dev) waitUntilIdle() {
	for d.busy.Read() == gpio.High {
		time.Sleep(10 * time.Millisecond)
	}
}

var _ display.Drawer = &Dev{}
