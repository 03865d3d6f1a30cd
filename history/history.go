// Copyright 2025 The CO2 Canary Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package history holds the bounded time-series of CO2 readings that the
// monitor carries across deep-sleep cycles.
//
// The zero value is the cold-boot state: an empty buffer. One reading is
// appended per wake cycle; once the buffer is full, each append evicts the
// oldest reading. Logical index 0 is always the oldest retained reading.
package history

import (
	"encoding/binary"
	"fmt"
	"iter"
)

// Capacity is the fixed number of readings the buffer retains. At the
// default wake interval of 5 minutes this covers 8 hours.
const Capacity = 96

// BinarySize is the size of the marshalled buffer in bytes.
const BinarySize = 2 + 2 + 2*Capacity

// History is a ring buffer of 16-bit CO2 readings in ppm.
type History struct {
	values [Capacity]uint16
	cursor uint16
	count  uint16
}

// AddMeasurement appends a reading. When the buffer is full the oldest
// reading is overwritten. It never fails.
func (h *History) AddMeasurement(value uint16) {
	h.values[h.cursor] = value
	h.cursor = (h.cursor + 1) % Capacity
	if h.count < Capacity {
		h.count++
	}
}

// Len returns the number of retained readings.
func (h *History) Len() int {
	return int(h.count)
}

// At returns the reading at logical position i, oldest first. It panics if
// i is outside [0, Len()).
func (h *History) At(i int) uint16 {
	if i < 0 || i >= int(h.count) {
		panic(fmt.Sprintf("history: index %d out of range [0, %d)", i, h.count))
	}
	// The oldest reading sits at the cursor once the buffer has wrapped,
	// and at physical index 0 before that.
	start := 0
	if h.count == Capacity {
		start = int(h.cursor)
	}
	return h.values[(start+i)%Capacity]
}

// MaxValue returns the maximum retained reading. The second return value is
// false when the buffer is empty; callers scaling a plot must check it
// before dividing.
func (h *History) MaxValue() (uint16, bool) {
	if h.count == 0 {
		return 0, false
	}
	var max uint16
	for i := 0; i < int(h.count); i++ {
		if v := h.At(i); v > max {
			max = v
		}
	}
	return max, true
}

// All yields (index, value) pairs oldest to newest, in the order a trend
// plot consumes them.
func (h *History) All() iter.Seq2[int, uint16] {
	return func(yield func(int, uint16) bool) {
		for i := 0; i < int(h.count); i++ {
			if !yield(i, h.At(i)) {
				return
			}
		}
	}
}

// MarshalBinary implements encoding.BinaryMarshaler. The layout is fixed
// size: cursor, count, then all value slots, big endian.
func (h *History) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, BinarySize)
	b = binary.BigEndian.AppendUint16(b, h.cursor)
	b = binary.BigEndian.AppendUint16(b, h.count)
	for _, v := range h.values {
		b = binary.BigEndian.AppendUint16(b, v)
	}
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (h *History) UnmarshalBinary(b []byte) error {
	if len(b) != BinarySize {
		return fmt.Errorf("history: image is %d bytes, expected %d", len(b), BinarySize)
	}
	cursor := binary.BigEndian.Uint16(b[0:2])
	count := binary.BigEndian.Uint16(b[2:4])
	if cursor >= Capacity || count > Capacity {
		return fmt.Errorf("history: corrupt image (cursor=%d count=%d)", cursor, count)
	}
	h.cursor = cursor
	h.count = count
	for i := range h.values {
		h.values[i] = binary.BigEndian.Uint16(b[4+2*i:])
	}
	return nil
}
