// Copyright 2025 The CO2 Canary Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// co2canary runs the battery powered CO2 monitor: it wakes, takes one
// reading, appends it to the retained history, refreshes the display and
// goes back to sleep until the next wake.
//
//	co2canary <config.yaml>
//
// With wake_seconds set to 0 it runs a single cycle and exits, so an
// external timer can own the sleep instead.
package main

import (
	"log"
	"os"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/overflo23/co2-canary/battery"
	"github.com/overflo23/co2-canary/epd1in54"
	"github.com/overflo23/co2-canary/monitor"
	"github.com/overflo23/co2-canary/render"
	"github.com/overflo23/co2-canary/retain"
)

func mustPin(name string) gpio.PinIO {
	p := gpioreg.ByName(name)
	if p == nil {
		log.Fatalf("gpio pin %q not found", name)
	}
	return p
}

func main() {
	log.SetFlags(log.Ltime)
	if len(os.Args) != 2 {
		log.Fatal("usage: co2canary <config.yaml>")
	}
	cfg, err := monitor.LoadConfig(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	if _, err := host.Init(); err != nil {
		log.Fatalf("host init: %v", err)
	}

	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		log.Fatalf("i2c bus: %v", err)
	}
	defer bus.Close()

	cycle := &monitor.Cycle{
		Bus:                 bus,
		Enable:              mustPin(cfg.EnablePin),
		Samples:             cfg.Samples,
		AbortOnDisplayError: cfg.AbortOnDisplayError,
	}

	var epd *epd1in54.Dev
	switch cfg.Display.Kind {
	case "console":
		cycle.Display = &render.Renderer{Drawer: render.NewConsole(nil)}
	case "epd":
		port, err := spireg.Open(cfg.Display.SPIPort)
		if err != nil {
			log.Fatalf("spi port: %v", err)
		}
		defer port.Close()
		epd, err = epd1in54.New(port,
			mustPin(cfg.Display.DCPin),
			mustPin(cfg.Display.CSPin),
			mustPin(cfg.Display.ResetPin),
			mustPin(cfg.Display.BusyPin),
			&epd1in54.EPD1in54V2)
		if err != nil {
			log.Fatalf("display: %v", err)
		}
		cycle.Display = &render.Renderer{Drawer: epd}
	}

	if cfg.Battery.Monitor {
		mon := battery.New(bus, cfg.Battery.Address)
		cycle.Battery = func() physic.ElectricPotential {
			v, err := mon.Voltage()
			if err != nil {
				log.Printf("%v", err)
				return 0
			}
			return v
		}
	}

	for {
		store, err := retain.Load(cfg.StatePath)
		if err != nil {
			log.Fatalf("retained state: %v", err)
		}

		if epd != nil {
			if err := epd.Init(); err != nil {
				log.Printf("display init: %v", err)
			}
		}
		out, err := cycle.Run(store)
		if out.Degraded {
			log.Printf("measurement failed, recorded sentinel: %v", out.SensorErr)
		} else {
			log.Printf("co2: %s", out.CO2)
		}
		if out.HasTemperature {
			log.Printf("temperature: %s", out.Temperature)
		}
		if err != nil {
			log.Printf("cycle: %v", err)
		}
		if epd != nil {
			if err := epd.Sleep(); err != nil {
				log.Printf("display sleep: %v", err)
			}
		}

		if err := store.Flush(cfg.StatePath); err != nil {
			log.Fatalf("retained state: %v", err)
		}

		if cfg.WakeSeconds == 0 {
			return
		}
		time.Sleep(cfg.WakeInterval())
	}
}
