// Copyright 2025 The CO2 Canary Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package co2canary is a battery powered CO2 monitor.
//
// Every wake it powers the Senseair Sunrise sensor, takes one reading,
// appends it to a retained rolling history, redraws an e-paper panel and
// powers everything back down. The retained history and the sensor's
// calibration state survive the sleep in a small binary blob, so a fresh
// process start picks up where the last cycle left off.
package co2canary
