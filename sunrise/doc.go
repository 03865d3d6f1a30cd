// Copyright 2025 The CO2 Canary Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sunrise controls a Senseair Sunrise NDIR CO2 sensor over I²C.
//
// The driver runs the sensor in single measurement mode: the host powers the
// sensor through a discrete enable line, triggers one measurement, reads the
// result and cuts power again. In this mode the sensor cannot maintain its
// self-calibration (ABC) algorithm on its own; the host must read the
// algorithm state back after every measurement and supply it again with the
// next trigger, along with an accumulated operating-time counter. That
// host-side state is CalibrationData, which the caller keeps in retained
// memory across power cycles.
//
// Datasheet: https://senseair.com/products/sunrise/
package sunrise
