// Copyright 2025 The CO2 Canary Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package epd1in54

type controller interface {
	sendCommand(byte)
	sendData([]byte)
	waitUntilIdle()
}

func initDisplay(ctrl controller, opts *Opts) {
	ctrl.waitUntilIdle()
	ctrl.sendCommand(swReset)
	ctrl.waitUntilIdle()

	ctrl.sendCommand(driverOutputControl)
	ctrl.sendData([]byte{
		byte((opts.Height - 1) & 0xFF),
		byte((opts.Height - 1) >> 8),
		0x00,
	})

	// X increment, Y decrement, per the vendor example.
	ctrl.sendCommand(dataEntryModeSetting)
	ctrl.sendData([]byte{0x01})

	ctrl.sendCommand(setRAMXAddressStartEndPosition)
	ctrl.sendData([]byte{0x00, byte(opts.Width/8 - 1)})

	ctrl.sendCommand(setRAMYAddressStartEndPosition)
	ctrl.sendData([]byte{
		byte((opts.Height - 1) & 0xFF),
		byte((opts.Height - 1) >> 8),
		0x00,
		0x00,
	})

	ctrl.sendCommand(borderWaveformControl)
	ctrl.sendData([]byte{0x01})

	// Use the controller's internal temperature sensor for waveform
	// compensation.
	ctrl.sendCommand(tempSensorControl)
	ctrl.sendData([]byte{0x80})

	ctrl.sendCommand(displayUpdateControl2)
	ctrl.sendData([]byte{0xB1})
	ctrl.sendCommand(masterActivation)
	ctrl.waitUntilIdle()
}

func setMemoryPointer(ctrl controller, opts *Opts) {
	ctrl.sendCommand(setRAMXAddressCounter)
	ctrl.sendData([]byte{0x00})

	ctrl.sendCommand(setRAMYAddressCounter)
	ctrl.sendData([]byte{
		byte((opts.Height - 1) & 0xFF),
		byte((opts.Height - 1) >> 8),
	})
	ctrl.waitUntilIdle()
}

func updateDisplay(ctrl controller) {
	ctrl.sendCommand(displayUpdateControl2)
	ctrl.sendData([]byte{0xF7})
	ctrl.sendCommand(masterActivation)
	ctrl.waitUntilIdle()
}

func sleepDisplay(ctrl controller) {
	ctrl.sendCommand(deepSleepMode)
	ctrl.sendData([]byte{0x01})
}
