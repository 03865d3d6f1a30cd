// Copyright 2025 The CO2 Canary Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/display"
)

// ConsoleOpts represents the options available for the console sink.
type ConsoleOpts struct {
	Width   int
	Height  int
	Palette *ansi256.Palette
	// Writer receives the ANSI output. Nil means a colorable stdout.
	Writer io.Writer
}

// DefaultConsoleOpts holds the default configuration options for the
// console sink.
var DefaultConsoleOpts = ConsoleOpts{
	Width:  80,
	Height: 24,
}

// Console is a terminal stand-in for the e-paper panel, rendering frames as
// ANSI color blocks.
//
// Permits developing the monitor on a machine without the display attached.
type Console struct {
	w       io.Writer
	bounds  image.Rectangle
	palette ansi256.Palette

	buf bytes.Buffer
}

// NewConsole returns a Console that displays at the terminal. Opts can be
// nil.
func NewConsole(opts *ConsoleOpts) *Console {
	o := DefaultConsoleOpts
	if opts != nil {
		o = *opts
	}
	if o.Width <= 0 {
		o.Width = DefaultConsoleOpts.Width
	}
	if o.Height <= 0 {
		o.Height = DefaultConsoleOpts.Height
	}
	p := o.Palette
	if p == nil {
		p = ansi256.Default
	}
	w := o.Writer
	if w == nil {
		w = colorable.NewColorableStdout()
	}
	return &Console{
		w:       w,
		bounds:  image.Rect(0, 0, o.Width, o.Height),
		palette: *p,
	}
}

func (c *Console) String() string {
	return "Console"
}

// Halt implements conn.Resource.
//
// It resets the terminal colors so the shell is not corrupted.
func (c *Console) Halt() error {
	_, err := c.w.Write([]byte("\n\033[0m"))
	return err
}

// ColorModel implements display.Drawer.
func (c *Console) ColorModel() color.Model {
	return color.NRGBAModel
}

// Bounds implements display.Drawer.
func (c *Console) Bounds() image.Rectangle {
	return c.bounds
}

// Draw implements display.Drawer.
func (c *Console) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	r = r.Intersect(c.bounds)
	// This code is designed to minimize the amount of memory allocated per call.
	c.buf.Reset()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		_, _ = c.buf.WriteString("\033[0m")
		for x := r.Min.X; x < r.Max.X; x++ {
			r16, g16, b16, _ := src.At(x-r.Min.X+sp.X, y-r.Min.Y+sp.Y).RGBA()
			px := color.NRGBA{byte(r16 >> 8), byte(g16 >> 8), byte(b16 >> 8), 255}
			_, _ = io.WriteString(&c.buf, c.palette.Block(px))
		}
		_, _ = c.buf.WriteString("\033[0m\n")
	}
	_, err := c.buf.WriteTo(c.w)
	return err
}

var _ display.Drawer = &Console{}
var _ fmt.Stringer = &Console{}
