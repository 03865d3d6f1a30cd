// Copyright 2025 The CO2 Canary Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package render draws one wake cycle's refresh: the latest CO2 reading,
// the temperature, the battery voltage and the history trend graph, onto
// any display.Drawer. It only ever reads the history view it is given.
package render

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
)

// View is the read-only projection of the measurement history the renderer
// consumes: length, indexed oldest-first access and maximum-value lookup
// for vertical scaling.
type View interface {
	Len() int
	At(i int) uint16
	MaxValue() (uint16, bool)
}

// DisplayError reports a failed display refresh.
type DisplayError struct {
	Cause error
}

func (e *DisplayError) Error() string {
	return fmt.Sprintf("render: display update: %v", e.Cause)
}

func (e *DisplayError) Unwrap() error {
	return e.Cause
}

var regular *truetype.Font

func init() {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
	regular = f
}

func face(points float64) font.Face {
	return truetype.NewFace(regular, &truetype.Options{Size: points})
}

// Frame renders one refresh into an image covering bounds. Sizes are laid
// out for the 200x200 panel and scale with the bounds, so the same frame
// fits the terminal sink.
func Frame(bounds image.Rectangle, view View, temperature physic.Temperature, hasTemperature bool, battery physic.ElectricPotential) image.Image {
	w, h := bounds.Dx(), bounds.Dy()
	dc := gg.NewContext(w, h)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetRGB(0, 0, 0)

	scale := float64(h) / 200.0

	if view.Len() > 0 {
		latest := view.At(view.Len() - 1)
		dc.SetFontFace(face(42 * scale))
		dc.DrawStringAnchored(fmt.Sprintf("%d", latest), float64(w)/2, float64(h)/2+5*scale, 0.5, 0)
		dc.SetFontFace(face(25 * scale))
		dc.DrawStringAnchored("ppm", float64(w)/2, float64(h)/2+35*scale, 0.5, 0)
		drawGraph(dc, view, w, h)
	}

	dc.SetFontFace(face(14 * scale))
	if hasTemperature {
		dc.DrawStringAnchored(fmt.Sprintf("%.1f C", temperature.Celsius()), 5*scale, float64(h)-5*scale, 0, 0)
	}
	volts := float64(battery) / float64(physic.Volt)
	dc.DrawStringAnchored(fmt.Sprintf("%.2f V", volts), float64(w)-5*scale, float64(h)-5*scale, 1, 0)

	return dc.Image()
}

// drawGraph plots the history oldest to newest, spread over the full width
// and scaled vertically by the maximum retained reading. A history of all
// sentinel readings has no usable maximum and draws nothing.
func drawGraph(dc *gg.Context, view View, w, h int) {
	max, ok := view.MaxValue()
	if !ok || max == 0 {
		return
	}
	n := view.Len()
	if n < 2 {
		return
	}
	dc.SetLineWidth(2)
	for i := 0; i < n-1; i++ {
		x0 := float64(i) * float64(w) / float64(n-1)
		x1 := float64(i+1) * float64(w) / float64(n-1)
		y0 := float64(h) - float64(view.At(i))*float64(h)/float64(max)
		y1 := float64(h) - float64(view.At(i+1))*float64(h)/float64(max)
		dc.DrawLine(x0, y0, x1, y1)
	}
	dc.Stroke()
}

// Renderer is the display collaborator handed to the wake-cycle
// orchestrator: it frames the readings and pushes them to the drawer.
type Renderer struct {
	Drawer display.Drawer
}

// Draw renders the cycle's refresh. It implements the monitor's Display
// contract and never mutates the view.
func (r *Renderer) Draw(view View, temperature physic.Temperature, hasTemperature bool, battery physic.ElectricPotential) error {
	img := Frame(r.Drawer.Bounds(), view, temperature, hasTemperature, battery)
	if err := r.Drawer.Draw(r.Drawer.Bounds(), img, image.Point{}); err != nil {
		return &DisplayError{Cause: err}
	}
	return nil
}
