// Copyright 2025 The CO2 Canary Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package history

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmpty(t *testing.T) {
	var h History
	assert.Equal(t, 0, h.Len())
	_, ok := h.MaxValue()
	assert.False(t, ok)
	for range h.All() {
		t.Fatal("empty history yielded a value")
	}
	assert.Panics(t, func() { h.At(0) })
}

func TestAddBelowCapacity(t *testing.T) {
	var h History
	for i := 0; i < 10; i++ {
		h.AddMeasurement(uint16(400 + i))
	}
	require.Equal(t, 10, h.Len())
	for i := 0; i < 10; i++ {
		assert.Equal(t, uint16(400+i), h.At(i))
	}
}

func TestEviction(t *testing.T) {
	var h History
	n := Capacity + 17
	for i := 0; i < n; i++ {
		h.AddMeasurement(uint16(i))
	}
	require.Equal(t, Capacity, h.Len())
	// The oldest retained reading is the (n-Capacity)-th inserted one.
	assert.Equal(t, uint16(n-Capacity), h.At(0))
	assert.Equal(t, uint16(n-1), h.At(Capacity-1))
}

func TestOrderAfterWrap(t *testing.T) {
	var h History
	for i := 0; i < 3*Capacity; i++ {
		h.AddMeasurement(uint16(i))
	}
	prev := -1
	for i, v := range h.All() {
		assert.Equal(t, prev+1, i)
		assert.Equal(t, h.At(i), v)
		prev = i
	}
	assert.Equal(t, Capacity-1, prev)
}

func TestMaxValue(t *testing.T) {
	var h History
	for _, v := range []uint16{400, 420, 410, 0, 450} {
		h.AddMeasurement(v)
	}
	require.Equal(t, 5, h.Len())
	assert.Equal(t, uint16(400), h.At(0))
	assert.Equal(t, uint16(450), h.At(4))
	max, ok := h.MaxValue()
	require.True(t, ok)
	assert.Equal(t, uint16(450), max)
}

func TestMaxValueAfterEviction(t *testing.T) {
	var h History
	h.AddMeasurement(9999)
	for i := 0; i < Capacity; i++ {
		h.AddMeasurement(500)
	}
	max, ok := h.MaxValue()
	require.True(t, ok)
	assert.Equal(t, uint16(500), max)
}

func TestBinaryRoundTrip(t *testing.T) {
	var h History
	for i := 0; i < Capacity+3; i++ {
		h.AddMeasurement(uint16(1000 + i))
	}
	img, err := h.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, img, BinarySize)

	var got History
	require.NoError(t, got.UnmarshalBinary(img))
	assert.Equal(t, h, got)

	img2, err := got.MarshalBinary()
	require.NoError(t, err)
	assert.True(t, bytes.Equal(img, img2))
}

func TestUnmarshalRejectsCorruptImage(t *testing.T) {
	var h History
	assert.Error(t, h.UnmarshalBinary(make([]byte, 3)))

	img := make([]byte, BinarySize)
	img[0] = 0xFF // cursor way past capacity
	img[1] = 0xFF
	assert.Error(t, h.UnmarshalBinary(img))
}
