// Copyright 2025 The CO2 Canary Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package epd1in54 controls the Waveshare 1.54inch V2 e-paper display, the
// 200x200 black/white panel the monitor renders to. The panel keeps its
// image with no power, so it is refreshed once per wake cycle and put into
// deep sleep before the rest of the system powers down.
//
// Datasheet:
//
// https://www.waveshare.com/w/upload/e/e5/1.54inch_e-paper_V2_Datasheet.pdf
//
// Product page:
//
// https://www.waveshare.com/wiki/1.54inch_e-Paper_Module
package epd1in54
