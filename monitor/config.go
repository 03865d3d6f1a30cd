// Copyright 2025 The CO2 Canary Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package monitor

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the monitor's deployment configuration, loaded from a YAML
// file.
type Config struct {
	// Bus is the I2C bus name, empty for the first available one.
	Bus string `yaml:"bus"`
	// EnablePin is the GPIO name of the sensor's enable line.
	EnablePin string `yaml:"enable_pin"`
	// Samples is the sensor sub-sample count. 0 means DefaultSamples.
	Samples int `yaml:"samples"`
	// WakeSeconds is the interval between wake cycles. 0 means one-shot:
	// run a single cycle and exit, for an external scheduler.
	WakeSeconds int `yaml:"wake_seconds"`
	// StatePath is where the retained state blob lives.
	StatePath string `yaml:"state_path"`
	// AbortOnDisplayError makes a failed refresh fatal for the cycle.
	AbortOnDisplayError bool `yaml:"abort_on_display_error"`

	Display DisplayConfig `yaml:"display"`
	Battery BatteryConfig `yaml:"battery"`
}

// DisplayConfig selects and wires the display sink.
type DisplayConfig struct {
	// Kind is "epd" for the e-paper panel, "console" for the terminal
	// sink, or "none".
	Kind     string `yaml:"kind"`
	SPIPort  string `yaml:"spi_port"`
	DCPin    string `yaml:"dc_pin"`
	CSPin    string `yaml:"cs_pin"`
	ResetPin string `yaml:"reset_pin"`
	BusyPin  string `yaml:"busy_pin"`
}

// BatteryConfig wires the optional INA260 battery monitor.
type BatteryConfig struct {
	Monitor bool   `yaml:"monitor"`
	Address uint16 `yaml:"address"`
}

// DefaultConfig returns the configuration used where the file is silent.
func DefaultConfig() *Config {
	return &Config{
		Samples:     DefaultSamples,
		WakeSeconds: 300,
		StatePath:   "co2canary.state",
		Display:     DisplayConfig{Kind: "console"},
		Battery:     BatteryConfig{Address: 0x40},
	}
}

// LoadConfig reads the YAML configuration at path on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("monitor: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("monitor: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the monitor cannot run
// with.
func (c *Config) Validate() error {
	if c.Samples < 0 || c.Samples > 0xFFFF {
		return fmt.Errorf("monitor: invalid sample count %d", c.Samples)
	}
	if c.WakeSeconds < 0 {
		return fmt.Errorf("monitor: invalid wake interval %ds", c.WakeSeconds)
	}
	if c.EnablePin == "" {
		return fmt.Errorf("monitor: enable_pin is required")
	}
	if c.StatePath == "" {
		return fmt.Errorf("monitor: state_path is required")
	}
	switch c.Display.Kind {
	case "none", "console":
	case "epd":
		for _, p := range []struct{ name, value string }{
			{"dc_pin", c.Display.DCPin},
			{"cs_pin", c.Display.CSPin},
			{"reset_pin", c.Display.ResetPin},
			{"busy_pin", c.Display.BusyPin},
		} {
			if p.value == "" {
				return fmt.Errorf("monitor: display %s is required for kind epd", p.name)
			}
		}
	default:
		return fmt.Errorf("monitor: unknown display kind %q", c.Display.Kind)
	}
	return nil
}

// WakeInterval returns the configured time between wake cycles.
func (c *Config) WakeInterval() time.Duration {
	return time.Duration(c.WakeSeconds) * time.Second
}
